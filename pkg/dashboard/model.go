package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"groundstation/pkg/station"
	"groundstation/pkg/transport"
)

type tickMsg time.Time

// Model is the interactive application loop: every tick it drains the
// link queue into the station and redraws.
type Model struct {
	station *station.Station
	events  *transport.Queue
	refresh time.Duration
}

func New(st *station.Station, events *transport.Queue, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	return Model{station: st, events: events, refresh: refresh}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) update() {
	m.station.Drain(m.events)
	m.station.Tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.update()
		return m, m.tick()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "t":
			m.station.CycleBasis()
		case "m":
			m.station.StartMission()
		case "c":
			m.station.ClearMission()
		}
	}
	return m, nil
}

func (m Model) View() string {
	return Render(m.station.Snapshot())
}

// Run shows the dashboard until the operator quits or ctx is done.
func Run(ctx context.Context, st *station.Station, events *transport.Queue, refresh time.Duration, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(st, events, refresh), opts...).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
