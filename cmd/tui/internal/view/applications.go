package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
)

type appsState int

const (
	appsStateOwner appsState = iota
	appsStateBrowse
	appsStateCreate
	appsStateDelete
)

type ApplicationsModel struct {
	CommonModel
	appService *application.Service

	state appsState
	table table.Model
	apps  []*application.Application
	form  *huh.Form

	ownerID string
	loading bool
	status  string
}

func NewApplicationsModel(appSvc *application.Service) ApplicationsModel {
	columns := []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Environment", Width: 12},
		{Title: "Shortcode", Width: 10},
		{Title: "Credentials", Width: 11},
		{Title: "Created", Width: 17},
		{Title: "ID", Width: 36},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := ApplicationsModel{
		appService: appSvc,
		table:      t,
	}
	m.form = m.ownerForm()

	return m
}

func (m ApplicationsModel) Title() string { return "Applications" }
func (m ApplicationsModel) ShortHelp() string {
	if m.state == appsStateBrowse {
		return "Esc: back | n: new | x: delete | o: change owner | r: refresh"
	}
	return "Navigate form | Esc: cancel"
}

func (m ApplicationsModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m ApplicationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadAppsMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.apps = msg.apps
		m.refreshTable()
		return m, nil

	case appActionMsg:
		m.status = msg.result
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}
		m.browse()
		return m, m.loadAppsCmd()

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	if m.state == appsStateBrowse {
		return m.updateBrowse(msg)
	}

	return m.updateForm(msg)
}

func (m ApplicationsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadAppsCmd()
		case "o":
			m.form = m.ownerForm()
			m.state = appsStateOwner
			m.table.Blur()
			return m, m.form.Init()
		case "n":
			m.form = m.createForm()
			m.state = appsStateCreate
			m.table.Blur()
			return m, m.form.Init()
		case "x":
			app := m.selected()
			if app == nil {
				return m, nil
			}

			m.form = m.deleteForm(app)
			m.state = appsStateDelete
			m.table.Blur()
			return m, m.form.Init()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ApplicationsModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		if m.state == appsStateOwner && m.ownerID == "" {
			return m, Back
		}

		m.browse()
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	switch m.state {
	case appsStateOwner:
		m.ownerID = strings.TrimSpace(m.form.GetString("owner"))
		m.browse()
		m.loading = true
		return m, m.loadAppsCmd()
	case appsStateCreate:
		return m, m.createCmd()
	case appsStateDelete:
		if !m.form.GetBool("confirm") {
			m.browse()
			return m, nil
		}

		return m, m.deleteCmd()
	}

	return m, nil
}

func (m *ApplicationsModel) browse() {
	m.state = appsStateBrowse
	m.form = nil
	m.table.Focus()
}

func (m *ApplicationsModel) ownerForm() *huh.Form {
	owner := m.ownerID

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("owner").
				Title("Owner ID").
				Description("Applications are listed per account owner").
				Value(&owner).
				Validate(notEmpty("owner ID")),
		),
	).WithWidth(50).WithShowHelp(false)
}

// Values are read back by key since the model is copied on every update.
func (m *ApplicationsModel) createForm() *huh.Form {
	env := application.EnvironmentSandbox
	sandbox := func() bool { return env != application.EnvironmentProduction }

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Validate(notEmpty("name")),

			huh.NewSelect[application.Environment]().
				Key("environment").
				Title("Environment").
				Options(
					huh.NewOption("Sandbox", application.EnvironmentSandbox),
					huh.NewOption("Production", application.EnvironmentProduction),
				).
				Value(&env),
		),
		huh.NewGroup(
			huh.NewInput().Key("consumer_key").Title("Consumer key").Validate(notEmpty("consumer key")),
			huh.NewInput().Key("consumer_secret").Title("Consumer secret").EchoMode(huh.EchoModePassword).Validate(notEmpty("consumer secret")),
			huh.NewInput().Key("pass_key").Title("Pass key").EchoMode(huh.EchoModePassword).Validate(notEmpty("pass key")),
			huh.NewInput().Key("short_code").Title("Business shortcode").Validate(notEmpty("business shortcode")),
		).WithHideFunc(sandbox),
	).WithWidth(50).WithShowHelp(false)
}

func (m *ApplicationsModel) deleteForm(app *application.Application) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Delete %s?", app.Name)).
				Description("Production keys issued for it will stop resolving credentials."),
		),
	).WithWidth(50).WithShowHelp(false)
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " cannot be empty")
		}
		return nil
	}
}

func (m ApplicationsModel) View() string {
	if m.state == appsStateOwner && m.ownerID == "" {
		return lipgloss.NewStyle().Padding(2).Render(m.form.View())
	}

	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading applications...")
	}

	header := fmt.Sprintf("Owner: %s | %d applications", activeStyle(m.ownerID), len(m.apps))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Render(m.table.View()),
	)

	if m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(54).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m ApplicationsModel) selected() *application.Application {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.apps) {
		return nil
	}

	return m.apps[idx]
}

func (m *ApplicationsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.apps))
	for _, app := range m.apps {
		creds := "no"
		if app.HasCredentials() {
			creds = "yes"
		}

		rows = append(rows, table.Row{
			app.Name,
			string(app.Environment),
			app.BusinessShortCode,
			creds,
			FormatTime(app.CreatedAt),
			app.ID.String(),
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadAppsMsg struct {
	apps []*application.Application
	err  error
}

func (m ApplicationsModel) loadAppsCmd() tea.Cmd {
	owner := m.ownerID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		apps, err := m.appService.List(ctx, owner)
		return loadAppsMsg{apps: apps, err: err}
	}
}

type appActionMsg struct {
	result string
	err    error
}

func (m ApplicationsModel) createCmd() tea.Cmd {
	env, _ := m.form.Get("environment").(application.Environment)

	params := application.CreateParams{
		OwnerID:           m.ownerID,
		Name:              m.form.GetString("name"),
		Environment:       env,
		ConsumerKey:       m.form.GetString("consumer_key"),
		ConsumerSecret:    m.form.GetString("consumer_secret"),
		PassKey:           m.form.GetString("pass_key"),
		BusinessShortCode: m.form.GetString("short_code"),
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		app, err := m.appService.Create(ctx, params)
		if err != nil {
			return appActionMsg{err: err}
		}

		return appActionMsg{result: fmt.Sprintf("Created %s (%s)", app.Name, app.ID)}
	}
}

func (m ApplicationsModel) deleteCmd() tea.Cmd {
	app := m.selected()
	if app == nil {
		return nil
	}

	owner := m.ownerID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if err := m.appService.Delete(ctx, owner, app.ID); err != nil {
			return appActionMsg{err: err}
		}

		return appActionMsg{result: "Deleted " + app.Name}
	}
}
