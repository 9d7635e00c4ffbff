package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alleycatassetacquisitions/pdn/internal/config"
	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
	"github.com/alleycatassetacquisitions/pdn/internal/fleet"
	"github.com/alleycatassetacquisitions/pdn/internal/github"
)

func (a *app) renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "render fleet|github",
		Short:     "Print one exposition block to stdout",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"fleet", "github"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scrape, err := collectOnce(cmd.Context(), a.cfg, args[0])
			if err != nil {
				return err
			}
			_, err = scrape.Document.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().String("state-file", "", "fleet state file")
	bind(cmd.Flags(), "state-file", "fleet.state_file")
	githubFlags(cmd)
	return cmd
}

// collectOnce renders the named exporter without serving it.
func collectOnce(ctx context.Context, cfg *config.Config, name string) (exposition.Scrape, error) {
	switch name {
	case "github":
		return github.New(githubOptions(cfg), nil, nil).Collect(ctx), nil
	case "fleet":
		return fleet.New(fleetOptions(cfg), nil).Collect(ctx), nil
	}
	return exposition.Scrape{}, fmt.Errorf("unknown exporter %q", name)
}
