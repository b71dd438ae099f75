// SPDX-License-Identifier: MIT
/*
Package tui holds the terminal front ends: a device picker that runs before
the stream opens, and the live monitor fed by the snapshot publisher.
*/
package tui

import (
	"fmt"
	"strings"

	"colorizr/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	InputScreen ScreenType = iota
	OutputScreen
	RateScreen
)

// SampleRates offered on the rate screen.
var SampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the outcome of the picker.
type Selection struct {
	InputID    int
	OutputID   int
	SampleRate float64
}

// DeviceListModel walks through input device, output device and sample rate.
type DeviceListModel struct {
	fetch        func() ([]audio.Device, error)
	devices      []audio.Device
	candidates   []audio.Device // Devices valid for the active screen.
	cursor       int
	viewport     viewport.Model
	ready        bool
	err          error
	activeScreen ScreenType

	selection Selection
	confirmed bool
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

var (
	upKey    = key.NewBinding(key.WithKeys("up", "k"))
	downKey  = key.NewBinding(key.WithKeys("down", "j"))
	enterKey = key.NewBinding(key.WithKeys("enter"))
	backKey  = key.NewBinding(key.WithKeys("esc"))
	quitKey  = key.NewBinding(key.WithKeys("q", "ctrl+c"))
)

// NewDeviceListModel creates a picker over the host's devices.
func NewDeviceListModel() DeviceListModel {
	return newDeviceListModel(audio.HostDevices)
}

func newDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: InputScreen,
		selection:    Selection{InputID: -1, OutputID: -1, SampleRate: 48000},
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case devicesMsg:
		m.devices = msg.devices
		m.enter(InputScreen)

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, upKey):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, downKey):
			if m.cursor < m.options()-1 {
				m.cursor++
			}
		case key.Matches(msg, backKey):
			if m.activeScreen > InputScreen {
				m.enter(m.activeScreen - 1)
			}
		case key.Matches(msg, enterKey):
			if m.options() == 0 {
				break
			}
			switch m.activeScreen {
			case InputScreen:
				m.selection.InputID = m.candidates[m.cursor].ID
				m.selection.SampleRate = m.candidates[m.cursor].DefaultSampleRate
				m.enter(OutputScreen)
			case OutputScreen:
				m.selection.OutputID = m.candidates[m.cursor].ID
				m.enter(RateScreen)
			case RateScreen:
				m.selection.SampleRate = SampleRates[m.cursor]
				m.confirmed = true
				return m, tea.Quit
			}
		}
	}

	if m.ready {
		m.viewport.SetContent(m.render())
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// enter switches screens and places the cursor on the current choice.
func (m *DeviceListModel) enter(screen ScreenType) {
	m.activeScreen = screen
	m.cursor = 0
	m.candidates = nil

	switch screen {
	case InputScreen, OutputScreen:
		for _, d := range m.devices {
			if (screen == InputScreen && d.MaxInputChannels > 0) ||
				(screen == OutputScreen && d.MaxOutputChannels > 0) {
				m.candidates = append(m.candidates, d)
			}
		}
		want := m.selection.InputID
		if screen == OutputScreen {
			want = m.selection.OutputID
		}
		for i, d := range m.candidates {
			if d.ID == want || (want < 0 && ((screen == InputScreen && d.DefaultInput) || (screen == OutputScreen && d.DefaultOutput))) {
				m.cursor = i
			}
		}
	case RateScreen:
		for i, r := range SampleRates {
			if r == m.selection.SampleRate {
				m.cursor = i
			}
		}
	}
}

func (m DeviceListModel) options() int {
	if m.activeScreen == RateScreen {
		return len(SampleRates)
	}
	return len(m.candidates)
}

// Selection returns the chosen devices and whether the user confirmed them.
func (m DeviceListModel) Selection() (Selection, bool) {
	return m.selection, m.confirmed
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title string
	switch m.activeScreen {
	case InputScreen:
		title = titleStyle.Render("Select Input Device")
	case OutputScreen:
		title = titleStyle.Render("Select Output Device")
	case RateScreen:
		title = titleStyle.Render("Select Sample Rate")
	}
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • Esc: Back • q: Quit")

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DeviceListModel) render() string {
	if m.activeScreen == RateScreen {
		return m.renderRates()
	}
	return m.renderDevices()
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.candidates) == 0 {
		return "No suitable audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.candidates {
		marker := " "
		if device.DefaultInput || device.DefaultOutput {
			marker = "*"
		}
		deviceInfo := fmt.Sprintf("[%d]%s %s (%s, %s)\n",
			device.ID, marker, device.Name, device.Type(), device.HostAPI)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz, latency %v/%v\n",
			device.DefaultSampleRate, device.LowLatency, device.HighLatency)

		if i == m.cursor {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}
		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m DeviceListModel) renderRates() string {
	var sb strings.Builder
	sb.WriteString("Sample Rate:\n")
	for i, rate := range SampleRates {
		pointer := " "
		if i == m.cursor {
			pointer = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", pointer, rate)
		if i == m.cursor {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// PickDevices runs the picker full screen. ok is false if the user quit
// without confirming.
func PickDevices() (sel Selection, ok bool, err error) {
	p := tea.NewProgram(NewDeviceListModel(), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	m, _ := final.(DeviceListModel)
	sel, ok = m.Selection()
	return sel, ok, nil
}
