package main

import (
	"context"
	"fmt"
	"time"

	"github.com/anphsw/ppp/internal/cfg"
	"github.com/anphsw/ppp/internal/control"
	"github.com/anphsw/ppp/internal/controlpb"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4FC1FF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#569CD6"))
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DCDCAA"))
	errStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F44747"))
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CE9178"))
)

const pollInterval = time.Second

type statsMsg struct {
	unit  int
	stats *controlpb.PPPStats
	comp  *controlpb.CompStats
	err   error
}

type tickMsg time.Time

type dashboard struct {
	client *control.Client
	unit   int
	stats  *controlpb.PPPStats
	comp   *controlpb.CompStats
	errMsg string
	quit   bool
}

func newDashboard(client *control.Client) dashboard {
	return dashboard{client: client}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(pollCmd(m.client, m.unit), tickCmd())
}

func pollCmd(client *control.Client, unit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		statsResp, err := client.Call(ctx, &controlpb.Req{UnitIndex: unit, Op: control.OpGetPPPStats})
		if err != nil {
			return statsMsg{unit: unit, err: err}
		}
		compResp, err := client.Call(ctx, &controlpb.Req{UnitIndex: unit, Op: control.OpGetCompStats})
		if err != nil {
			return statsMsg{unit: unit, err: err}
		}
		if !statsResp.Ok {
			return statsMsg{unit: unit, err: fmt.Errorf("%s", statsResp.Error)}
		}
		return statsMsg{unit: unit, stats: statsResp.Stats, comp: compResp.CompStats}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quit = true
			return m, tea.Quit
		case "right", "l":
			if m.unit < cfg.NumUnits-1 {
				m.unit++
				m.stats, m.comp = nil, nil
			}
			return m, pollCmd(m.client, m.unit)
		case "left", "h":
			if m.unit > 0 {
				m.unit--
				m.stats, m.comp = nil, nil
			}
			return m, pollCmd(m.client, m.unit)
		}
	case tickMsg:
		return m, tea.Batch(pollCmd(m.client, m.unit), tickCmd())
	case statsMsg:
		if msg.unit != m.unit {
			return m, nil
		}
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.stats = msg.stats
		m.comp = msg.comp
	}
	return m, nil
}

func (m dashboard) View() string {
	var out string
	out += titleStyle.Render(fmt.Sprintf("pppctl — unit %d", m.unit)) + "\n"
	out += helpStyle.Render("←/→ switch unit   q quit") + "\n\n"

	if m.errMsg != "" {
		out += errStyle.Render("error: "+m.errMsg) + "\n"
		return out
	}
	if m.stats == nil {
		out += helpStyle.Render("waiting for stats...") + "\n"
		return out
	}

	out += labelStyle.Render("in packets/bytes  ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.stats.InPackets, m.stats.InBytes)) + "\n"
	out += labelStyle.Render("out packets/bytes ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.stats.OutPackets, m.stats.OutBytes)) + "\n"
	out += labelStyle.Render("errors in/out     ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.stats.InErrors, m.stats.OutErrors)) + "\n"
	out += labelStyle.Render("VJ searches/miss  ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.stats.VJSearches, m.stats.VJMisses)) + "\n"
	out += labelStyle.Render("VJ compressed/err ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.stats.VJCompressed, m.stats.VJErrors)) + "\n"

	if m.comp != nil {
		out += "\n"
		out += labelStyle.Render("tx comp in/out    ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.comp.TxInBytes, m.comp.TxOutBytes)) + "\n"
		out += labelStyle.Render("rx comp in/out    ") + valueStyle.Render(fmt.Sprintf("%d / %d", m.comp.RxInBytes, m.comp.RxOutBytes)) + "\n"
	}
	return out
}

// RunDashboard launches the bubbletea stats dashboard, grounded on the
// teacher's cmd/cli/interactive.go RunCLI shape (tea.NewProgram with the
// alt screen, run to completion).
func RunDashboard(client *control.Client) error {
	p := tea.NewProgram(newDashboard(client), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
