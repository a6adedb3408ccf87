package main

import (
	"fmt"
	"os"

	"github.com/safar/hive-store/internal/backend"
	"github.com/safar/hive-store/internal/config"
	"github.com/safar/hive-store/internal/logging"
	"github.com/safar/hive-store/internal/migrations"
	"github.com/safar/hive-store/internal/seed"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "storectl",
		Usage: "manage the hive store database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply or roll back the schema",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all pending migrations",
						Action: func(c *cli.Context) error {
							url, err := databaseURL(c)
							if err != nil {
								return err
							}
							if err := migrations.Up(url); err != nil {
								return err
							}
							return printVersion(c, url)
						},
					},
					{
						Name:  "down",
						Usage: "roll back every migration",
						Action: func(c *cli.Context) error {
							url, err := databaseURL(c)
							if err != nil {
								return err
							}
							if err := migrations.Down(url); err != nil {
								return err
							}
							return printVersion(c, url)
						},
					},
					{
						Name:  "version",
						Usage: "print the applied schema version",
						Action: func(c *cli.Context) error {
							url, err := databaseURL(c)
							if err != nil {
								return err
							}
							return printVersion(c, url)
						},
					},
				},
			},
			{
				Name:  "seed",
				Usage: "load the demo catalog and accounts",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if url := c.String("database-url"); url != "" {
						cfg.Database.URL = url
						cfg.Store.Backend = config.BackendPostgres
					}

					log := logging.New(cfg.Log)
					st, err := backend.Open(c.Context, cfg, log)
					if err != nil {
						return err
					}
					defer st.Close()

					return seed.Run(c.Context, st, log)
				},
			},
		},
	}
}

func databaseURL(c *cli.Context) (string, error) {
	if url := c.String("database-url"); url != "" {
		return url, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.URL, nil
}

func printVersion(c *cli.Context, url string) error {
	version, dirty, err := migrations.Version(url)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "schema version %d (dirty: %t)\n", version, dirty)
	return err
}
