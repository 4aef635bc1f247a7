package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/mpesaflow/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/mpesaflow/internal/bootstrap"
	"github.com/MrJamesThe3rd/mpesaflow/internal/config"
)

type model struct {
	services *bootstrap.Services

	currentView View

	listView view.ListModel
	appsView view.ApplicationsModel
}

type View int

const (
	ViewMenu         View = 0
	ViewTransactions View = 1
	ViewApplications View = 2
)

func initialModel(services *bootstrap.Services) model {
	return model{
		services:    services,
		currentView: ViewMenu,
		listView:    view.NewListModel(services.Transactions),
		appsView:    view.NewApplicationsModel(services.Applications),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewTransactions
				m.listView = view.NewListModel(m.services.Transactions)

				return m, m.listView.Init()
			case "2":
				m.currentView = ViewApplications
				m.appsView = view.NewApplicationsModel(m.services.Applications)

				return m, m.appsView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewTransactions:
		var newModel tea.Model
		newModel, cmd = m.listView.Update(msg)
		m.listView = newModel.(view.ListModel)
	case ViewApplications:
		var newModel tea.Model
		newModel, cmd = m.appsView.Update(msg)
		m.appsView = newModel.(view.ApplicationsModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"mpesaflow console\n\n" +
				"1. Ledger Transactions\n" +
				"2. Applications\n\n" +
				"q. Quit",
		)
	case ViewTransactions:
		return m.listView.View() + "\n" + lipgloss.NewStyle().Faint(true).Render(m.listView.ShortHelp())
	case ViewApplications:
		return m.appsView.View() + "\n" + lipgloss.NewStyle().Faint(true).Render(m.appsView.ShortHelp())
	}

	return "Unknown View"
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Keep log output off the terminal the TUI draws on.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx := context.Background()

	services, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(services), tea.WithAltScreen())
	_, runErr := p.Run()

	if err := services.Close(ctx); err != nil {
		slog.Error("failed to close storage", "error", err)
	}

	if runErr != nil {
		slog.Error("failed to run TUI", "error", runErr)
		os.Exit(1)
	}
}
