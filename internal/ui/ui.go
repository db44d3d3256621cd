package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/illegible-ink/crates/internal/catalog"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BundleListView ViewState = iota
	BundleDetailView
)

// Model represents the catalog browser state.
type Model struct {
	view       ViewState
	catalog    *catalog.Catalog
	width      int
	height     int
	bundleList list.Model
	selected   *catalog.Bundle
	help       help.Model
	keys       keyMap
}

// NewModel creates a catalog browser over the given catalog.
func NewModel(cat *catalog.Catalog) *Model {
	items := make([]list.Item, 0, cat.Len())
	for _, bundle := range cat.All() {
		items = append(items, bundleItem{bundle: bundle})
	}

	bundleList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	bundleList.Title = "Crates Catalog"

	return &Model{
		view:       BundleListView,
		catalog:    cat,
		bundleList: bundleList,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bundleList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case BundleListView:
			return m.handleBundleListKeys(msg)
		case BundleDetailView:
			return m.handleDetailKeys(msg)
		}
	}

	var cmd tea.Cmd
	m.bundleList, cmd = m.bundleList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case BundleListView:
		return m.renderBundleList()
	case BundleDetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) handleBundleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if item, ok := m.bundleList.SelectedItem().(bundleItem); ok {
			bundle := item.bundle
			m.selected = &bundle
			m.view = BundleDetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.bundleList, cmd = m.bundleList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = BundleListView
		m.selected = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) renderBundleList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.bundleList.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}

	title := styles.title.Render(m.selected.Name)

	price := m.selected.DisplayPrice()
	if m.selected.Free {
		price = styles.ok.Render("Free")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nPrice: %s\nBundle id: %s\n\nSource playlists:\n", title, price, m.selected.ID)
	for _, id := range m.selected.Playlists {
		fmt.Fprintf(&sb, "  • %s\n", id)
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s", sb.String(), helpView)
}
