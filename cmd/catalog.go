package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/illegible-ink/crates/internal/catalog"
	"github.com/illegible-ink/crates/internal/shared"
	"github.com/illegible-ink/crates/internal/ui"
)

var (
	catalogHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954"))
	catalogFreeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	catalogDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// resolveCatalog loads the catalog named by --file, defaulting to the
// runner's embedded catalog.
func (r *Runner) resolveCatalog(cmd *cli.Command) (*catalog.Catalog, error) {
	if path := cmd.String("file"); path != "" {
		return catalog.LoadFile(path)
	}
	return r.catalog, nil
}

// CatalogList prints the bundle catalog as a styled table.
func (r *Runner) CatalogList(ctx context.Context, cmd *cli.Command) error {
	cat, err := r.resolveCatalog(cmd)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(cat.All(), true)
	}

	r.writePlain("%s\n", catalogHeaderStyle.Render(fmt.Sprintf("%-24s %-28s %10s  %s", "ID", "NAME", "PRICE", "PLAYLISTS")))
	for _, bundle := range cat.All() {
		price := bundle.DisplayPrice()
		if bundle.Free {
			price = catalogFreeStyle.Render(price)
		}
		r.writePlain("%-24s %-28s %10s  %s\n",
			bundle.ID,
			bundle.Name,
			price,
			catalogDimStyle.Render(fmt.Sprintf("%d", len(bundle.Playlists))))
	}
	r.writePlain("%s\n", catalogDimStyle.Render(fmt.Sprintf("%d bundles", cat.Len())))

	return nil
}

// CatalogBrowse launches the interactive catalog browser.
func (r *Runner) CatalogBrowse(ctx context.Context, cmd *cli.Command) error {
	cat, err := r.resolveCatalog(cmd)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/crates-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(cat)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
