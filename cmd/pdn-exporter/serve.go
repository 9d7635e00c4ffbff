package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alleycatassetacquisitions/pdn/internal/config"
	"github.com/alleycatassetacquisitions/pdn/internal/fleet"
	"github.com/alleycatassetacquisitions/pdn/internal/github"
	"github.com/alleycatassetacquisitions/pdn/internal/server"
	"github.com/alleycatassetacquisitions/pdn/internal/telemetry"
)

func (a *app) fleetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Serve fleet state metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := telemetry.New()
			e := fleet.New(fleetOptions(a.cfg), m)
			slog.Info("fleet exporter starting", "listen", a.cfg.Fleet.Listen, "state_file", a.cfg.Fleet.StateFile)
			return a.serve(cmd.Context(), a.cfg.Fleet.Listen, e, m, func(cfg *config.Config) {
				e.Reconfigure(fleetOptions(cfg))
				if cfg.Fleet.Listen != a.cfg.Fleet.Listen {
					slog.Warn("fleet: listen address changed; restart to apply", "listen", cfg.Fleet.Listen)
				}
			})
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :9101)")
	cmd.Flags().String("state-file", "", "fleet state file")
	bind(cmd.Flags(), "listen", "fleet.listen")
	bind(cmd.Flags(), "state-file", "fleet.state_file")
	return cmd
}

func (a *app) githubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "github",
		Short: "Serve GitHub issue and pull request metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := telemetry.New()
			e := github.New(githubOptions(a.cfg), nil, m)
			slog.Info("github exporter starting",
				"listen", a.cfg.GitHub.Listen,
				"repo", e.Repo(cmd.Context()),
				"command_timeout", a.cfg.GitHub.CommandTimeout,
			)
			return a.serve(cmd.Context(), a.cfg.GitHub.Listen, e, m, func(cfg *config.Config) {
				e.Reconfigure(githubOptions(cfg))
				if cfg.GitHub.Listen != a.cfg.GitHub.Listen {
					slog.Warn("github: listen address changed; restart to apply", "listen", cfg.GitHub.Listen)
				}
			})
		},
	}
	githubFlags(cmd)
	cmd.Flags().String("listen", "", "listen address (default :9102)")
	bind(cmd.Flags(), "listen", "github.listen")
	return cmd
}

func githubFlags(cmd *cobra.Command) {
	cmd.Flags().String("repo", "", "owner/name; detected from the repo-dir origin remote when empty")
	cmd.Flags().String("repo-dir", "", "checkout used for remote detection")
	cmd.Flags().String("gh", "", "gh binary")
	bind(cmd.Flags(), "repo", "github.repo")
	bind(cmd.Flags(), "repo-dir", "github.repo_dir")
	bind(cmd.Flags(), "gh", "github.gh_binary")
}

// serve runs the HTTP server and, when a config file is in use, the config
// watcher until ctx is cancelled or either fails.
func (a *app) serve(ctx context.Context, addr string, e server.Collector, m *telemetry.Metrics, reconfigure func(*config.Config)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, addr, server.New(e, m))
	})
	if a.cfgPath != "" {
		g.Go(func() error {
			return config.Watch(ctx, a.cfgPath, func(cfg *config.Config) {
				a.overlay(cfg)
				if err := cfg.Validate(); err != nil {
					slog.Error("config: reload rejected after overrides", "err", err)
					return
				}
				a.level.Set(cfg.Log.SlogLevel())
				reconfigure(cfg)
			})
		})
	}
	return g.Wait()
}
