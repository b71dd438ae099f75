// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"colorizr/internal/analysis"
	"colorizr/internal/color"
	"colorizr/internal/filter"
	"colorizr/internal/param"
	"colorizr/internal/snapshot"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Display ranges.
const (
	spectrumRows  = 8
	spectrumTopDB = 0.0
	spectrumLowDB = -90.0
	curveRangeDB  = 40.0
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(0, 1)
)

// SnapshotMsg delivers a published snapshot to the monitor.
type SnapshotMsg snapshot.Snapshot

// Params is the parameter surface the monitor edits. *param.Set satisfies it.
type Params interface {
	SetTarget(id param.ID, value float64)
	Target(id param.ID) float64
}

type keyMap struct {
	Up, Down, Left, Right key.Binding
	Delta, Reset, Save     key.Binding
	Quit                   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Left, k.Delta, k.Reset, k.Save, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "select")),
	Down:  key.NewBinding(key.WithKeys("down", "j")),
	Left:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "adjust")),
	Right: key.NewBinding(key.WithKeys("right", "l")),
	Delta: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delta")),
	Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "default")),
	Save:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Title  string
	Params Params
	Save   func() error // Optional preset save.
}

// Monitor is the live Bubble Tea view of the engine.
type Monitor struct {
	title  string
	params Params
	save   func() error
	mapper *color.Mapper
	help   help.Model

	snap     snapshot.Snapshot
	has      bool
	selected param.ID
	status   string
	width    int
}

// NewMonitor creates a monitor editing opts.Params.
func NewMonitor(opts MonitorOptions) Monitor {
	title := opts.Title
	if title == "" {
		title = "colorizr"
	}
	return Monitor{
		title:  title,
		params: opts.Params,
		save:   opts.Save,
		mapper: color.NewMapper(),
		help:   help.New(),
		width:  80,
	}
}

// Init implements tea.Model.
func (m Monitor) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case SnapshotMsg:
		m.snap = snapshot.Snapshot(msg)
		m.has = true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < param.Count-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Left):
			m.step(-1)
		case key.Matches(msg, keys.Right):
			m.step(1)
		case key.Matches(msg, keys.Delta):
			m.toggle(param.Delta)
		case key.Matches(msg, keys.Reset):
			m.params.SetTarget(m.selected, param.Schema[m.selected].Default)
			m.status = param.Schema[m.selected].Name + " reset"
		case key.Matches(msg, keys.Save):
			m.status = "no preset file"
			if m.save != nil {
				if err := m.save(); err != nil {
					m.status = "save failed: " + err.Error()
				} else {
					m.status = "preset saved"
				}
			}
		}
	}
	return m, nil
}

// step moves the selected parameter by one coarse step. Discrete kinds wrap.
func (m *Monitor) step(dir float64) {
	spec := &param.Schema[m.selected]
	v := m.params.Target(m.selected) + dir*spec.StepSize
	if spec.Kind == param.Toggle || spec.Kind == param.Choice {
		if v > spec.Max {
			v = spec.Min
		} else if v < spec.Min {
			v = spec.Max
		}
	}
	m.params.SetTarget(m.selected, spec.Clamp(v))
	m.status = ""
}

func (m *Monitor) toggle(id param.ID) {
	v := 1.0
	if m.params.Target(id) >= 0.5 {
		v = 0
	}
	m.params.SetTarget(id, v)
	m.status = param.Schema[id].Name + " " + param.Schema[id].Format(v)
}

// View implements tea.Model.
func (m Monitor) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	if !m.has {
		sb.WriteString(infoStyle.Render("Waiting for audio..."))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			boxStyle.Render(m.renderColor()),
			" ",
			boxStyle.Render(m.renderSpectrum()),
		))
		sb.WriteString("\n")
		sb.WriteString(boxStyle.Render(m.renderCurve()))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderParams())
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(highlightStyle.Render(m.status))
		sb.WriteString("\n")
	}
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func (m Monitor) renderColor() string {
	s := &m.snap
	swatch := lipgloss.NewStyle().
		Background(lipgloss.Color(s.Color.Hex())).
		Width(14).
		Render(strings.Repeat(" ", 14))

	peak := "-"
	if s.PeakHz > 0 {
		peak = fmt.Sprintf("%.1f Hz", s.PeakHz)
	}
	lines := []string{
		swatch, swatch, swatch,
		labelStyle.Render("colour ") + valueStyle.Render(s.Color.Hex()),
		labelStyle.Render("peak   ") + valueStyle.Render(peak),
		labelStyle.Render("input  ") + valueStyle.Render(fmt.Sprintf("%.1f dB", s.InputDB)),
		labelStyle.Render("env    ") + valueStyle.Render(meter(s.Envelope, 7)),
		labelStyle.Render("mod    ") + valueStyle.Render(fmt.Sprintf("%+.2f", s.Modulation)),
	}
	return strings.Join(lines, "\n")
}

// renderSpectrum draws one column per band, tinted with the colour of the
// band centre frequency.
func (m Monitor) renderSpectrum() string {
	n := len(m.snap.Spectrum)
	heights := make([]float64, n)
	styles := make([]lipgloss.Style, n)
	for b, db := range m.snap.Spectrum {
		t := (float64(db) - spectrumLowDB) / (spectrumTopDB - spectrumLowDB)
		heights[b] = math.Max(0, math.Min(1, t)) * spectrumRows
		centre := math.Sqrt(analysis.BandEdges(b, n) * analysis.BandEdges(b+1, n))
		styles[b] = lipgloss.NewStyle().Foreground(lipgloss.Color(m.mapper.MapFrequency(centre).Hex()))
	}

	rows := make([]string, spectrumRows)
	for r := range rows {
		floor := float64(spectrumRows - 1 - r)
		var line strings.Builder
		for b := range heights {
			line.WriteString(styles[b].Render(string(cell(heights[b] - floor))))
		}
		rows[r] = line.String()
	}
	return strings.Join(rows, "\n")
}

// renderCurve draws the combined filter response of every voice in dB across
// the display range.
func (m Monitor) renderCurve() string {
	s := &m.snap
	width := snapshot.SpectrumBands
	count := min(max(s.BandCount, 0), filter.MaxBands)
	coeffs := s.ActiveFilters(nil)
	if s.VoiceCount == 0 {
		coeffs = s.Filters[:count]
	}
	curve := CurveDB(coeffs, s.SampleRate, width)

	var top, bottom strings.Builder
	for _, db := range curve {
		t := math.Max(-1, math.Min(1, db/curveRangeDB))
		if t >= 0 {
			top.WriteRune(cell(t))
			bottom.WriteRune(levels[8])
		} else {
			top.WriteRune(' ')
			bottom.WriteRune(cell(1 + t))
		}
	}
	label := labelStyle.Render(fmt.Sprintf("filter  %d band(s)  %d voice(s)  ±%.0f dB", count, s.VoiceCount, curveRangeDB))
	return label + "\n" + highlightStyle.Render(top.String()) + "\n" + infoStyle.Render(bottom.String())
}

func (m Monitor) renderParams() string {
	var sb strings.Builder
	for i := range param.Schema {
		spec := &param.Schema[i]
		id := param.ID(i)
		target := m.params.Target(id)
		line := fmt.Sprintf("  %-14s %-12s", spec.Name, spec.Format(target))
		if m.has && spec.Kind == param.Continuous {
			line += labelStyle.Render(fmt.Sprintf(" (%s)", spec.Format(m.snap.Params[i])))
		}
		if id == m.selected {
			line = highlightStyle.Render("▶" + line[1:])
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// CurveDB samples the magnitude of a filter chain at n log-spaced points
// between analysis.LowHz and analysis.HighHz.
func CurveDB(coeffs []filter.Coefficients, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	if sampleRate <= 0 || n == 0 {
		return out
	}
	for i := range out {
		f := analysis.LowHz * math.Pow(analysis.HighHz/analysis.LowHz, (float64(i)+0.5)/float64(n))
		mag := cmplx.Abs(filter.ChainResponse(coeffs, f, sampleRate))
		out[i] = 20 * math.Log10(math.Max(mag, 1e-9))
	}
	return out
}

// cell returns the block glyph for a fill level, where 1 is a full cell.
func cell(fill float64) rune {
	i := int(math.Round(fill * 8))
	return levels[max(0, min(8, i))]
}

func meter(v float64, width int) string {
	filled := int(math.Round(math.Max(0, math.Min(1, v)) * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
