package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/railsim/internal/sim"
)

const (
	canvasWidth  = 40
	canvasHeight = 8
	chartWidth   = 50
	maxPerTick   = 64
	sparkWidth   = 20
)

// Feed paces a walk to the UI. It observes the walker and blocks each step until the
// view has taken the previous sample.
type Feed struct {
	ctx     context.Context
	cancel  context.CancelFunc
	samples chan sim.Sample
	done    chan error
	exited  chan struct{}
}

func NewFeed(ctx context.Context) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	return &Feed{
		ctx:     ctx,
		cancel:  cancel,
		samples: make(chan sim.Sample),
		done:    make(chan error, 1),
		exited:  make(chan struct{}),
	}
}

func (f *Feed) OnStep(s sim.Sample) {
	select {
	case f.samples <- s:
	case <-f.ctx.Done():
	}
}

// Start walks w in the background. w must have been built with f as an observer.
func (f *Feed) Start(w sim.Walker) {
	go func() {
		defer close(f.exited)
		f.done <- w.Walk(f.ctx)
	}()
}

// Stop cancels the walk and waits for it to return.
func (f *Feed) Stop() {
	f.cancel()
	<-f.exited
}

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live walk view.
type Model struct {
	title    string
	total    int
	feed     *Feed
	samples  []sim.Sample
	running  bool
	finished bool
	err      error
	perTick  int
	field    int
	peak     float64
}

// NewModel follows a walk of total steps delivered through feed.
func NewModel(title string, total int, feed *Feed) Model {
	return Model{
		title:   title,
		total:   total,
		feed:    feed,
		running: true,
		perTick: 1,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

func (m Model) Err() error { return m.err }

func (m Model) Samples() []sim.Sample { return m.samples }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.feed.cancel()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "+", "=":
			m.perTick = min(m.perTick*2, maxPerTick)
		case "-", "_":
			m.perTick = max(m.perTick/2, 1)
		case "tab":
			m.field = (m.field + 1) % len(Fields)
		case "t":
			NextTheme()
		}
	case TickMsg:
		if m.running && !m.finished {
			m.pull()
		}
		return m, tick()
	}
	return m, nil
}

// pull takes up to perTick samples without blocking.
func (m *Model) pull() {
	for range m.perTick {
		select {
		case s := <-m.feed.samples:
			m.samples = append(m.samples, s)
			m.peak = max(m.peak, s.Speed)
		case err := <-m.feed.done:
			m.finished = true
			m.err = err
			return
		default:
			return
		}
	}
}

func (m Model) progress() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(len(m.samples)) / float64(m.total)
}

func (m Model) View() string {
	st := current()
	var b strings.Builder

	b.WriteString(st.title.Render(strings.ToUpper(m.title)) + "\n")
	switch {
	case m.finished && m.err != nil:
		b.WriteString(st.fail.Render("FAILED") + " " + st.muted.Render(m.err.Error()) + "\n")
	case m.finished:
		b.WriteString(st.ok.Render("DONE") + "\n")
	case !m.running:
		b.WriteString(st.warn.Render("PAUSED") + "\n")
	default:
		b.WriteString(st.ok.Render(fmt.Sprintf("RUNNING x%d", m.perTick)) + "\n")
	}
	b.WriteString(ProgressBar(m.progress(), chartWidth) +
		fmt.Sprintf(" %d/%d\n\n", len(m.samples), m.total))

	f := Fields[m.field]
	if len(m.samples) > 1 {
		chart := asciigraph.Plot(f.Series(m.samples),
			asciigraph.Height(8),
			asciigraph.Width(chartWidth),
			asciigraph.Caption(f.Label()))
		b.WriteString(chart + "\n\n")
	}

	var stats strings.Builder
	if n := len(m.samples); n > 0 {
		s := m.samples[n-1]
		row := func(k, v string) { stats.WriteString(st.label.Render(k) + st.value.Render(v) + "\n") }
		row("step", fmt.Sprintf("%d", s.I))
		row("time", fmt.Sprintf("%.1f s", s.Time))
		row("speed", fmt.Sprintf("%.2f m/s", s.Speed))
		row("pwr_out_req", fmt.Sprintf("%.3f MW", s.PwrOutReq/1e6))
		row("pwr_out", fmt.Sprintf("%.3f MW", s.PwrOut/1e6))
		row("pwr_fuel", fmt.Sprintf("%.3f MW", s.PwrFuel/1e6))
		row("pwr_res", fmt.Sprintf("%.3f MW", s.PwrRES/1e6))
		row("deficit", fmt.Sprintf("%.3f MW", s.PwrOutDeficit/1e6))
		fuel, _ := FieldByName("pwr_fuel")
		recent := m.samples[max(0, n-sparkWidth*4):]
		row("fuel trend", Sparkline(fuel.Series(recent), sparkWidth))
	}

	speed := NewCanvas(canvasWidth, canvasHeight)
	if len(m.samples) > 1 && m.peak > 0 {
		xs := make([]float64, len(m.samples))
		for i := range xs {
			xs[i] = float64(i)
		}
		sf, _ := FieldByName("speed")
		speed.Polyline(xs, sf.Series(m.samples), float64(max(m.total, len(m.samples))), 0, m.peak*1.1)
	}
	panel := st.panel.Render(st.muted.Render("speed") + "\n" + strings.TrimRight(speed.String(), "\n"))

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stats.String(), "  ", panel))
	b.WriteString("\n" + st.muted.Render("SP:Pause +/-:Speed Tab:Field T:Theme Q:Quit"))
	return b.String()
}
