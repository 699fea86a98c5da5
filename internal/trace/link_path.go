package trace

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
)

// LinkIdx identifies a track link. Zero is reserved for "not applicable".
type LinkIdx uint32

// LinkPath is the ordered list of links a train traverses.
type LinkPath []LinkIdx

func (p LinkPath) Len() int { return len(p) }

func (p LinkPath) Validate() error {
	if len(p) == 0 {
		return errors.Wrap(core.ErrTraceData, "link path is empty")
	}
	for i, idx := range p {
		if idx == 0 {
			return errors.Wrapf(core.ErrTraceData, "link path: reserved link index 0 at position %d", i)
		}
	}
	return nil
}

// Trim keeps the half-open range [start, end).
func (p *LinkPath) Trim(start, end *int) error {
	s, e, err := bounds("link path", start, end, len(*p))
	if err != nil {
		return err
	}
	*p = (*p)[s:e:e]
	return nil
}

// ReadLinkPath parses a single link_idx column.
func ReadLinkPath(r io.Reader) (LinkPath, error) {
	t, err := readTable(r, "link path")
	if err != nil {
		return nil, err
	}
	col, err := t.require("link_idx")
	if err != nil {
		return nil, err
	}
	path := make(LinkPath, 0, len(t.rows))
	for n, row := range t.rows {
		v, err := strconv.ParseUint(cell(row, col), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(core.ErrTraceData, "link path line %d: %v", n+2, err)
		}
		path = append(path, LinkIdx(v))
	}
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return path, nil
}

func LoadLinkPath(path string) (LinkPath, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lp, err := ReadLinkPath(f)
	return lp, errors.WithMessage(err, path)
}

func (p LinkPath) WriteCSV(w io.Writer) error {
	return writeRows(w, []string{"link_idx"}, len(p), func(i int) []string {
		return []string{strconv.FormatUint(uint64(p[i]), 10)}
	})
}

func (p LinkPath) SaveCSV(path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteCSV(f)
}
