package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"example.com/tinyhttpd/internal/config"
	"example.com/tinyhttpd/internal/logger"
	"example.com/tinyhttpd/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "tinyhttpd",
		Usage: "serve static files and CGI scripts from a document root",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file (TOML, YAML or JSON)",
			},
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "listen address (ignored when --config is given)",
				Value:   config.DefaultAddress,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "document root (ignored when --config is given)",
				Value:   ".",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	var cfg *config.Config
	var err error

	if path := c.String("config"); path != "" {
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
	} else {
		// No config file: build the equivalent configuration from flags.
		addr := c.String("address")
		cfg = &config.Config{
			Server: &config.ServerConfig{Address: &addr},
			Files:  &config.FilesConfig{DocumentRoot: c.String("root")},
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
	}

	lg, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer lg.Close()

	srv, err := server.New(cfg, lg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	color.Green("Serving %s on http://%s", cfg.Files.DocumentRoot, *cfg.Server.Address)

	if err := srv.Run(); err != nil {
		lg.Error("Server stopped with error", logger.LogFields{"error": err.Error()})
		return err
	}

	lg.Info("Server shut down gracefully", nil)
	return nil
}
