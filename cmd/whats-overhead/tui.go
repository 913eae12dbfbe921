package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/unklstewy/whats-overhead/internal/overhead"
	"github.com/unklstewy/whats-overhead/pkg/format"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal view (default)",
	Long:  "tui shows a live card for the selected aircraft. Keys: m toggles the mode, r refreshes, q quits.",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	m := newModel(ctx, a.service(ctx), a.cfg.ADSB.StaleWindow(), a.cfg.Display.ShowMagnetic)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	activePill   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")).Background(lipgloss.Color("86")).Padding(0, 1)
	inactivePill = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	eyebrowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	cardStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Width(48)
)

// service is the part of overhead.Service the view drives.
type service interface {
	Refresh(ctx context.Context) overhead.Snapshot
	ForceRefresh(ctx context.Context) overhead.Snapshot
	SetMode(ctx context.Context, mode selection.Mode) (overhead.Snapshot, error)
	Mode() selection.Mode
	LastPoll() time.Time
	RadiusNM() float64
}

type snapshotMsg overhead.Snapshot

// buildCard renders a snapshot's card. The magnetic model is evaluated here,
// so the view builds a card once per snapshot rather than once per frame.
var buildCard = overhead.Snapshot.Card

type tickMsg time.Time

type model struct {
	ctx      context.Context
	svc      service
	interval time.Duration
	magnetic bool

	snap    overhead.Snapshot
	card    format.PlaneCard
	loading bool
	spinner spinner.Model
}

func newModel(ctx context.Context, svc service, interval time.Duration, magnetic bool) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))

	m := model{
		ctx:      ctx,
		svc:      svc,
		interval: interval,
		magnetic: magnetic,
		loading:  true,
		spinner:  s,
	}
	m.setSnapshot(overhead.Snapshot{Mode: svc.Mode(), UpdatedAt: svc.LastPoll()})
	return m
}

func (m *model) setSnapshot(snap overhead.Snapshot) {
	m.snap = snap
	m.card = buildCard(snap, m.magnetic)
}

func (m model) refresh(force bool) tea.Cmd {
	return func() tea.Msg {
		if force {
			return snapshotMsg(m.svc.ForceRefresh(m.ctx))
		}
		return snapshotMsg(m.svc.Refresh(m.ctx))
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(false), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "m":
			snap, _ := m.svc.SetMode(m.ctx, m.svc.Mode().Toggle())
			m.setSnapshot(snap)
		case "r":
			if !m.loading {
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, m.refresh(true))
			}
		}

	case snapshotMsg:
		m.setSnapshot(overhead.Snapshot(msg))
		m.loading = false

	case tickMsg:
		if m.loading {
			return m, m.tick()
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.refresh(false), m.tick())

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("WHAT'S OVERHEAD"))
	s.WriteString("\n\n")
	s.WriteString(renderModeToggle(m.snap.Mode))
	s.WriteString("\n\n")

	// Status row
	status := []string{
		renderBadge("Location", format.Location(m.snap.Observer)),
		renderBadge("Range", format.Range(m.svc.RadiusNM())),
		renderBadge("Last update", format.LastUpdate(m.snap.UpdatedAt)),
	}
	s.WriteString(strings.Join(status, "   "))
	if m.loading {
		s.WriteString("   " + m.spinner.View() + " Refreshing…")
	}
	s.WriteString("\n\n")

	if m.snap.Error != "" {
		s.WriteString(errStyle.Render(m.snap.Error))
		s.WriteString("\n\n")
	}

	s.WriteString(renderCard(m.card))
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("m: toggle mode  r: refresh  q: quit"))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Flight data provided by ADSB.lol"))
	s.WriteString("\n")

	return s.String()
}

func renderModeToggle(mode selection.Mode) string {
	near, over := inactivePill, inactivePill
	if mode == selection.Overhead {
		over = activePill
	} else {
		near = activePill
	}
	return near.Render("Nearest") + " " + over.Render("Overhead")
}

func renderBadge(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

// renderCard draws a plane card inside a bordered box.
func renderCard(card format.PlaneCard) string {
	var s strings.Builder
	s.WriteString(eyebrowStyle.Render(card.Eyebrow))
	s.WriteString("\n\n")

	if card.Empty {
		s.WriteString(labelStyle.Render(card.Message))
		return cardStyle.Render(s.String())
	}

	s.WriteString(valueStyle.Render(card.Title))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render(card.Subtitle))
	s.WriteString("\n")
	for _, b := range card.Badges {
		s.WriteString("\n")
		s.WriteString(renderBadge(b.Label, b.Value))
	}
	return cardStyle.Render(s.String())
}

// plainCard is the uncolored card used by the once command.
func plainCard(card format.PlaneCard) string {
	var s strings.Builder
	fmt.Fprintln(&s, card.Eyebrow)
	if card.Empty {
		fmt.Fprintln(&s, card.Message)
		return s.String()
	}
	fmt.Fprintf(&s, "%s  %s\n", card.Title, card.Subtitle)
	for _, b := range card.Badges {
		fmt.Fprintf(&s, "  %-14s %s\n", b.Label+":", b.Value)
	}
	return s.String()
}
