// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the storefront web server.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the storefront web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Bind host (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Bind port (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the storefront in the default browser",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand initializes config and the purchase database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// catalogCommand inspects the bundle catalog.
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect the bundle catalog",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List bundles in the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to a catalog TOML file (defaults to the embedded catalog)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CatalogList,
			},
			{
				Name:  "browse",
				Usage: "Browse the catalog interactively",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to a catalog TOML file (defaults to the embedded catalog)",
					},
				},
				Action: r.CatalogBrowse,
			},
		},
	}
}
