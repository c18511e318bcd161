package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
)

// chromeHeight is the number of lines taken by the header and status bar.
const chromeHeight = 3

// Model is the transcript viewer state.
type Model struct {
	title          string
	turns          []analysis.Turn
	viewport       viewport.Model
	keys           KeyMap
	showController bool
	ready          bool
	width          int
	height         int
}

// NewModel creates a viewer for turns. Sizing happens on the first
// WindowSizeMsg.
func NewModel(title string, turns []analysis.Turn) Model {
	return Model{
		title: title,
		turns: turns,
		keys:  DefaultKeyMap,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.ToggleController):
			m.showController = !m.showController
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		h := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading transcript..."
	}

	header := TitleStyle.Render(m.title) + "  " + DimStyle.Render(fmt.Sprintf("%d turns", len(m.turns)))
	status := fmt.Sprintf("%3.f%%  %s", m.viewport.ScrollPercent()*100, m.keys.helpLine())
	bar := StatusBarStyle.Width(m.width).Render(status)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.viewport.View(), bar)
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderTurns(m.turns, m.width, m.showController))
}

// renderTurns lays out every turn with its role label, wrapped to width.
func renderTurns(turns []analysis.Turn, width int, showController bool) string {
	body := lipgloss.NewStyle().Width(max(width-2, 20))
	var blocks []string
	for i, t := range turns {
		label := SystemRoleStyle.Render("System")
		if t.Role == analysis.RoleUser {
			label = UserRoleStyle.Render("User")
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", label, DimStyle.Render(fmt.Sprintf("#%d %s", i+1, t.Model)))
		if showController && t.TurnController != nil {
			b.WriteString(ControllerStyle.Render(strings.TrimRight(*t.TurnController, "\n")) + "\n")
		}
		b.WriteString(body.Render(t.Content))
		blocks = append(blocks, b.String())
	}
	if len(blocks) == 0 {
		return DimStyle.Render("(empty transcript)")
	}
	return strings.Join(blocks, "\n\n")
}
