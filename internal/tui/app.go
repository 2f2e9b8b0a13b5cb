// Package tui is the terminal dashboard served over SSH: live prices, the
// collector run ledger, and detected data gaps.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/service"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshEvery = 30 * time.Second

type PriceReader interface {
	GetCurrentPrices(ctx context.Context) ([]*domain.PriceSnapshot, error)
}

type StatusReader interface {
	Status(ctx context.Context) (*service.Status, error)
}

// Services bundles everything the dashboard reads.
type Services struct {
	Prices   PriceReader
	Status   StatusReader
	Username string
}

type tabID int

const (
	tabPrices tabID = iota
	tabStatus
	tabCount
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	tabStyle      = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("241"))
	activeTab     = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("205"))
	statusBar     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	upStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sectionHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)

type pricesMsg struct {
	prices []*domain.PriceSnapshot
	err    error
}

type statusMsg struct {
	status *service.Status
	err    error
}

type tickMsg time.Time

// AppModel is the root bubbletea model.
type AppModel struct {
	svc    Services
	tab    tabID
	width  int
	height int

	priceTable table.Model
	prices     []*domain.PriceSnapshot
	status     *service.Status
	lastErr    error
	fetchedAt  time.Time
}

func NewAppModel(svc Services) *AppModel {
	columns := []table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Price (USD)", Width: 14},
		{Title: "24h %", Width: 10},
		{Title: "24h Volume", Width: 16},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return &AppModel{svc: svc, priceTable: t}
}

func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.fetchPrices(), m.fetchStatus(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *AppModel) fetchPrices() tea.Cmd {
	return func() tea.Msg {
		if m.svc.Prices == nil {
			return pricesMsg{err: fmt.Errorf("price service unavailable")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		prices, err := m.svc.Prices.GetCurrentPrices(ctx)
		return pricesMsg{prices: prices, err: err}
	}
}

func (m *AppModel) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		if m.svc.Status == nil {
			return statusMsg{err: fmt.Errorf("status service unavailable")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		status, err := m.svc.Status.Status(ctx)
		return statusMsg{status: status, err: err}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			m.tab = (m.tab + 1) % tabCount
			return m, nil
		case "shift+tab", "left", "h":
			m.tab = (m.tab + tabCount - 1) % tabCount
			return m, nil
		case "r":
			return m, tea.Batch(m.fetchPrices(), m.fetchStatus())
		}
		var cmd tea.Cmd
		m.priceTable, cmd = m.priceTable.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(m.fetchPrices(), m.fetchStatus(), tickCmd())

	case pricesMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.prices = msg.prices
			m.fetchedAt = time.Now()
			m.priceTable.SetRows(priceRows(msg.prices))
		}
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		} else {
			m.status = msg.status
		}
		return m, nil
	}

	return m, nil
}

func priceRows(prices []*domain.PriceSnapshot) []table.Row {
	bySymbol := make(map[string]*domain.PriceSnapshot, len(prices))
	for _, p := range prices {
		bySymbol[p.Symbol] = p
	}
	rows := make([]table.Row, 0, len(prices))
	for _, symbol := range domain.SupportedSymbols {
		p, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		change := fmt.Sprintf("%+.2f%%", p.Change24hPct)
		if p.Change24hPct >= 0 {
			change = upStyle.Render(change)
		} else {
			change = downStyle.Render(change)
		}
		rows = append(rows, table.Row{
			p.Symbol,
			fmt.Sprintf("%.2f", p.PriceUSD),
			change,
			fmt.Sprintf("%.0f", p.Volume24h),
		})
	}
	return rows
}

func (m *AppModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("coinharvest"))
	if m.svc.Username != "" {
		b.WriteString(statusBar.Render("  user: " + m.svc.Username))
	}
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.tab {
	case tabPrices:
		b.WriteString(m.renderPrices())
	case tabStatus:
		b.WriteString(m.renderStatus())
	}

	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString(statusBar.Render("tab: switch  r: refresh  q: quit"))
	return b.String()
}

func (m *AppModel) renderTabs() string {
	names := []string{"Prices", "Status"}
	parts := make([]string, len(names))
	for i, name := range names {
		if tabID(i) == m.tab {
			parts[i] = activeTab.Render(name)
		} else {
			parts[i] = tabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *AppModel) renderPrices() string {
	if len(m.prices) == 0 {
		return statusBar.Render("loading prices...")
	}
	out := m.priceTable.View()
	if !m.fetchedAt.IsZero() {
		out += "\n" + statusBar.Render("updated "+m.fetchedAt.Format("15:04:05"))
	}
	return out
}

func (m *AppModel) renderStatus() string {
	if m.status == nil {
		return statusBar.Render("loading status...")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Uptime: %ds", m.status.UptimeSeconds))
	if m.status.BackfillBusy {
		b.WriteString("   " + errorStyle.Render("backfill running"))
	}
	b.WriteString("\n\n")

	b.WriteString(sectionHeader.Render("Collectors") + "\n")
	if len(m.status.Collectors) == 0 {
		b.WriteString(statusBar.Render("no runs recorded yet") + "\n")
	}
	for _, run := range m.status.Collectors {
		line := fmt.Sprintf("%-12s %-8s %5d items  %s",
			run.Collector, run.Status, run.Items, run.StartedAt.Format("Jan 02 15:04"))
		if run.Status == domain.RunStatusError {
			line = errorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	if len(m.status.Gaps) > 0 {
		b.WriteString("\n" + sectionHeader.Render("Gaps") + "\n")
		for _, gap := range m.status.Gaps {
			b.WriteString(fmt.Sprintf("%-6s %-12s missing %d of %d\n",
				gap.Symbol, gap.Table, gap.MissingRows, gap.ExpectedRows))
		}
	}

	if len(m.status.Anomalies) > 0 {
		b.WriteString("\n" + sectionHeader.Render("Anomalies") + "\n")
		for _, a := range m.status.Anomalies {
			b.WriteString(fmt.Sprintf("%-6s %s score=%.2f\n",
				a.Symbol, a.OpenTime.Format("Jan 02 15:04"), a.Score))
		}
	}

	return b.String()
}
