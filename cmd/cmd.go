// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config.toml to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// ingestCommand handles ingest runs and the cover art pass
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Run and inspect catalog ingests",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Fetch, transform and write every configured strategy",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "strategy",
						Aliases: []string{"s"},
						Usage:   "Strategy to run, repeatable (" + strings.Join(shared.StrategyOrder, ", ") + ")",
					},
					&cli.BoolFlag{
						Name:  "no-enrich",
						Usage: "Skip the cover art pass",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the run summary as JSON",
					},
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Output the run summary as Markdown",
					},
				},
				Action: r.IngestRun,
			},
			{
				Name:  "enrich",
				Usage: "Look up cover art for stored albums that have none",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of albums to look up (default: enrichment.batch_limit)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only albums from this provider; cover art is indexed by MusicBrainz identifiers",
						Value: models.SourceMusicBrainz,
					},
				},
				Action: r.IngestEnrich,
			},
			{
				Name:  "runs",
				Usage: "List recent ingest runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.IngestRuns,
			},
			{
				Name:  "last",
				Usage: "Show the summary of the most recent run",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.IngestLast,
			},
		},
	}
}

// catalogCommand handles read access to the catalog
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect and export the catalog",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show row counts for every catalog table",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CatalogStats,
			},
			{
				Name:  "export",
				Usage: "Export albums with their artists",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, markdown, text, json)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file path (a directory for markdown)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only albums from this provider",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of albums",
						Value: 1000,
					},
				},
				Action: r.CatalogExport,
			},
		},
	}
}

// serveCommand runs the trigger endpoint and scheduler
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the manual trigger endpoint and run the scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-schedule",
				Usage: "Disable the interval scheduler",
			},
		},
		Action: r.Serve,
	}
}
