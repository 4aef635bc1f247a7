package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

const operatorFailedDesc = "Marked failed by operator"

type listState int

const (
	listStateBrowse listState = iota
	listStateKeyFilter
	listStateConfirmFail
)

var statusFilters = []*transaction.Status{
	nil,
	new(transaction.StatusPending),
	new(transaction.StatusCompleted),
	new(transaction.StatusFailed),
}

type ListModel struct {
	CommonModel
	txService *transaction.Service

	state listState
	table table.Model
	txs   []*transaction.Transaction
	form  *huh.Form

	statusFilterIdx int
	showDetail      bool

	filter  transaction.ListFilter
	loading bool
	err     error
	status  string
}

func NewListModel(txSvc *transaction.Service) ListModel {
	columns := []table.Column{
		{Title: "Created", Width: 17},
		{Title: "Status", Width: 10},
		{Title: "Amount", Width: 14},
		{Title: "Phone", Width: 13},
		{Title: "Reference", Width: 12},
		{Title: "Request ID", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{
		txService: txSvc,
		table:     t,
		loading:   true,
	}
}

func (m ListModel) Title() string { return "Ledger" }
func (m ListModel) ShortHelp() string {
	if m.state != listStateBrowse {
		return "Navigate form | Esc: cancel"
	}
	return "Esc: back | s: status filter | k: key filter | enter: details | f: mark failed | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.txs = msg.txs
		m.refreshTable()
		return m, nil

	case listSaveMsg:
		m.status = msg.result
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
		}
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateKeyFilter, listStateConfirmFail:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadTxsCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(statusFilters)
			m.filter.Status = statusFilters[m.statusFilterIdx]
			return m, m.loadTxsCmd()
		case "k":
			return m.enterKeyFilter()
		case "enter":
			m.showDetail = !m.showDetail
			return m, nil
		case "f":
			return m.enterConfirmFail()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ListModel) enterKeyFilter() (tea.Model, tea.Cmd) {
	var keyID string
	if m.filter.KeyID != nil {
		keyID = *m.filter.KeyID
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("key_id").
				Title("API key ID").
				Description("Leave empty to show every key").
				Value(&keyID),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateKeyFilter
	m.table.Blur()
	return m, m.form.Init()
}

func (m ListModel) enterConfirmFail() (tea.Model, tea.Cmd) {
	tx := m.selected()
	if tx == nil {
		return m, nil
	}

	if tx.Status != transaction.StatusPending {
		m.status = "Only pending transactions can be marked failed"
		return m, nil
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Mark %s as failed?", tx.RequestID)).
				Description("A late provider callback will not override this."),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateConfirmFail
	m.table.Blur()
	return m, m.form.Init()
}

func (m ListModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = listStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == listStateKeyFilter {
		m.filter.KeyID = nil
		if k := strings.TrimSpace(m.form.GetString("key_id")); k != "" {
			m.filter.KeyID = new(k)
		}

		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadTxsCmd()
	}

	if !m.form.GetBool("confirm") {
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()
		return m, nil
	}

	return m, m.markFailedCmd()
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v\n\n(Esc to back, r to retry)", m.err))
	}

	statusLabels := []string{"All", "Pending", "Completed", "Failed"}
	keyLabel := "All"
	if m.filter.KeyID != nil {
		keyLabel = *m.filter.KeyID
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | [k] Key: %s | %d transactions",
		activeStyle(statusLabels[m.statusFilterIdx]),
		activeStyle(keyLabel),
		len(m.txs),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	var side string
	switch {
	case m.state != listStateBrowse && m.form != nil:
		side = m.form.View()
	case m.showDetail:
		side = m.detail()
	}

	if side != "" {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(side)

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m ListModel) detail() string {
	tx := m.selected()
	if tx == nil {
		return "No transaction selected"
	}

	updated := "-"
	if tx.UpdatedAt != nil {
		updated = FormatTime(*tx.UpdatedAt)
	}

	return fmt.Sprintf(
		"Transaction\n\nID: %s\nRequest: %s\nKey: %s\nShortcode: %s\nAmount: %s\nPhone: %s\nReference: %s\nDescription: %s\nStatus: %s\nResult: %s\nCreated: %s\nUpdated: %s",
		tx.ID,
		tx.RequestID,
		tx.KeyID,
		tx.BusinessShortCode,
		FormatAmount(tx.Amount),
		tx.PhoneNumber,
		tx.AccountReference,
		tx.Description,
		tx.Status,
		tx.ResultDesc,
		FormatTime(tx.CreatedAt),
		updated,
	)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func (m ListModel) selected() *transaction.Transaction {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	return m.txs[idx]
}

func (m *ListModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.txs))
	for _, tx := range m.txs {
		rows = append(rows, table.Row{
			FormatTime(tx.CreatedAt),
			string(tx.Status),
			FormatAmount(tx.Amount),
			tx.PhoneNumber,
			tx.AccountReference,
			tx.RequestID,
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadListMsg struct {
	txs []*transaction.Transaction
	err error
}

func (m ListModel) loadTxsCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		txs, err := m.txService.List(ctx, filter)
		return loadListMsg{txs: txs, err: err}
	}
}

type listSaveMsg struct {
	result string
	err    error
}

func (m ListModel) markFailedCmd() tea.Cmd {
	tx := m.selected()
	if tx == nil {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		transition, err := m.txService.UpdateStatus(ctx, transaction.ByID(tx.ID), transaction.StatusFailed, operatorFailedDesc)
		if err != nil {
			return listSaveMsg{err: err}
		}

		return listSaveMsg{result: fmt.Sprintf("%s: %s", tx.RequestID, transition)}
	}
}
