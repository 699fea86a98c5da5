package viz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title, label, value, muted, ok, warn, fail, panel lipgloss.Style
}

// current builds the styles for CurrentTheme.
func current() styles {
	t := CurrentTheme
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		label: lipgloss.NewStyle().Foreground(t.Muted).Width(22),
		value: lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		muted: lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		ok:    lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		warn:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		fail:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
	}
}

// Summary renders the outcome of one run as a bordered metric table.
func Summary(sim, name string, steps int, metrics map[string]float64, err error) string {
	st := current()

	var b strings.Builder
	b.WriteString(st.title.Render(fmt.Sprintf("%s / %s", sim, name)) + "\n")
	if err != nil {
		b.WriteString(st.fail.Render("FAILED") + " " + st.muted.Render(err.Error()) + "\n")
	} else {
		b.WriteString(st.ok.Render("OK") + "\n")
	}
	b.WriteString(st.label.Render("steps") + st.value.Render(fmt.Sprintf("%d", steps)) + "\n")

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(st.label.Render(k) + st.value.Render(formatMetric(k, metrics[k])) + "\n")
	}
	return st.panel.Render(strings.TrimRight(b.String(), "\n"))
}

// formatMetric picks a unit from the metric name.
func formatMetric(name string, v float64) string {
	switch {
	case strings.HasPrefix(name, "energy_"):
		return fmt.Sprintf("%.2f MJ", v/1e6)
	case strings.HasPrefix(name, "max_pwr"), strings.HasPrefix(name, "peak"):
		return fmt.Sprintf("%.3f MW", v/1e6)
	case strings.HasSuffix(name, "_fraction"), strings.HasSuffix(name, "_free"):
		return fmt.Sprintf("%.1f %%", v*100)
	}
	return fmt.Sprintf("%.4g", v)
}

// ProgressBar renders a bar colored by how far along it is.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	st := current()
	if percent >= 1 {
		return st.ok.Render(bar)
	}
	return st.warn.Render(bar)
}

// Sparkline renders a one-line chart of values, sampled to fit width.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := int(norm * float64(len(chars)-1))
		b.WriteRune(chars[max(0, min(idx, len(chars)-1))])
	}
	return b.String()
}
