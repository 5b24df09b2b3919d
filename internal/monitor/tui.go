package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/rangerwatch/internal/policy"
)

var (
	critStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // dim gray

	headerStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	detailStyle    = lipgloss.NewStyle().Padding(0, 1)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Model is the BubbleTea model for the interactive policy browser.
type Model struct {
	endpoint    string
	allPolicies []policy.Record // as returned by the service
	policies    []policy.Record // current view (may be filtered)
	table       table.Model
	width       int
	height      int
	quitting    bool
	searching   bool
	searchInput textinput.Model
}

// NewModel creates a browser over a fetched policy list.
func NewModel(records []policy.Record, endpoint string) *Model {
	cols := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "NAME", Width: 30},
		{Title: "REPO", Width: 20},
		{Title: "TYPE", Width: 10},
		{Title: "ENABLED", Width: 8},
		{Title: "AUDIT", Width: 6},
		{Title: "RECURSIVE", Width: 9},
	}

	rows := make([]table.Row, len(records))
	for i := range records {
		rows[i] = recordToRow(&records[i])
	}

	s := table.DefaultStyles()
	s.Header = s.Header.Bold(true).BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("57"))

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithStyles(s),
	)

	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 64

	return &Model{
		table:       t,
		allPolicies: records,
		policies:    records,
		endpoint:    endpoint,
		width:       80,
		height:      24,
		searchInput: ti,
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles key events.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.searchInput.Value() != "" {
				m.searchInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "/":
			m.searching = true
			return m, m.searchInput.Focus()
		case "g":
			m.table.GotoTop()
			return m, nil
		case "G":
			m.table.GotoBottom()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.resize(msg)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		case "esc":
			m.searching = false
			m.searchInput.SetValue("")
			m.searchInput.Blur()
			m.applyFilter()
			return m, nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.resize(msg)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *Model) resize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.table.SetHeight(m.tableHeight())
	m.table.SetWidth(m.width)
}

// View renders the full TUI.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteByte('\n')
	b.WriteString(m.table.View())
	b.WriteByte('\n')
	b.WriteString(separatorStyle.Render(strings.Repeat("─", m.width)))
	b.WriteByte('\n')
	b.WriteString(m.detailView())
	b.WriteByte('\n')
	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) headerView() string {
	where := m.endpoint
	if where == "" {
		where = "(unknown)"
	}

	var disabled, unaudited int
	for i := range m.policies {
		if !m.policies[i].Enabled {
			disabled++
		}
		if !m.policies[i].AuditEnabled {
			unaudited++
		}
	}

	title := headerStyle.Render(fmt.Sprintf("rangerwatch · %s", where))

	totalStr := fmt.Sprintf("Total: %d", len(m.policies))
	if len(m.policies) != len(m.allPolicies) {
		totalStr = fmt.Sprintf("Showing: %d/%d", len(m.policies), len(m.allPolicies))
	}

	counts := headerStyle.Render(fmt.Sprintf(
		"%s  %s  %s",
		critStyle.Render(fmt.Sprintf("Disabled: %d", disabled)),
		warnStyle.Render(fmt.Sprintf("Unaudited: %d", unaudited)),
		totalStr,
	))

	return title + "\n" + counts
}

func (m *Model) detailView() string {
	if len(m.policies) == 0 {
		if m.searchInput.Value() != "" {
			return detailStyle.Render(dimStyle.Render("No matches."))
		}
		return detailStyle.Render("No policies.")
	}

	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.policies) {
		return ""
	}

	p := &m.policies[idx]
	var lines []string

	if p.Description != "" {
		lines = append(lines, fmt.Sprintf("Description: %s", p.Description))
	}
	if p.RepositoryName != "" {
		lines = append(lines, fmt.Sprintf("Repository: %s (%s)", p.RepositoryName, p.RepositoryType))
	}
	if !p.Enabled {
		lines = append(lines, critStyle.Render("Policy is disabled"))
	}
	if !p.AuditEnabled {
		lines = append(lines, warnStyle.Render("Auditing is off"))
	}

	if len(lines) == 0 {
		return detailStyle.Render(dimStyle.Render("(no details)"))
	}
	return detailStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) footerView() string {
	if m.searching {
		return " /" + m.searchInput.View()
	}
	help := " q quit · ↑↓/jk navigate · g/G top/bottom · / search"
	if m.searchInput.Value() != "" {
		help += " · esc clear"
	}
	return dimStyle.Render(help)
}

func (m *Model) tableHeight() int {
	// Reserve space for header, table chrome, separator, detail panel, and footer.
	reserved := 12
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) applyFilter() {
	query := strings.ToLower(m.searchInput.Value())
	if query == "" {
		m.policies = m.allPolicies
	} else {
		var filtered []policy.Record
		for i := range m.allPolicies {
			p := &m.allPolicies[i]
			hay := strings.ToLower(p.ID + " " + p.Name + " " + p.RepositoryName + " " + p.RepositoryType + " " + p.Description)
			if strings.Contains(hay, query) {
				filtered = append(filtered, m.allPolicies[i])
			}
		}
		m.policies = filtered
	}
	m.rebuildRows()
}

func (m *Model) rebuildRows() {
	rows := make([]table.Row, len(m.policies))
	for i := range m.policies {
		rows[i] = recordToRow(&m.policies[i])
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.GotoTop()
	}
}

// recordToRow converts a policy to a table row with plain text (no ANSI).
// Embedding ANSI in cells causes the table to miscalculate column widths.
func recordToRow(p *policy.Record) table.Row {
	return table.Row{
		p.ID,
		truncate(p.Name, 30),
		truncate(p.RepositoryName, 20),
		p.RepositoryType,
		policy.FormatBool(p.Enabled),
		policy.FormatBool(p.AuditEnabled),
		policy.FormatBool(p.Recursive),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
