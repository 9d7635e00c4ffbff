package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/alleycatassetacquisitions/pdn/internal/config"
	"github.com/alleycatassetacquisitions/pdn/internal/contract"
	"github.com/alleycatassetacquisitions/pdn/internal/exposition"
)

const fetchTimeout = 10 * time.Second

type contractFlags struct {
	dashboard     string
	prometheus    string
	fleetURL      string
	githubURL     string
	datasourceUID string
}

func (a *app) checkContractCmd() *cobra.Command {
	var f contractFlags
	cmd := &cobra.Command{
		Use:   "check-contract",
		Short: "Check a Grafana dashboard and prometheus.yml against exporter output",
		Long: `check-contract compares the metrics, label matchers and legend placeholders
used by a Grafana dashboard with what the exporters emit, and (with
--prometheus) verifies both exporters are scraped often enough. Exporter
output is fetched from --fleet-url/--github-url when given and rendered
locally from the current config otherwise. It exits non-zero on any error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := buildContractInput(cmd.Context(), a.cfg, f)
			if err != nil {
				return err
			}
			findings := contract.Check(in)

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if err := printJSON(out, findings); err != nil {
					return err
				}
			} else {
				printContractFindings(out, findings)
			}
			if contract.HasErrors(findings) {
				return errors.New("check-contract: contract errors found")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.dashboard, "dashboard", "", "Grafana dashboard JSON (required)")
	cmd.Flags().StringVar(&f.prometheus, "prometheus", "", "prometheus.yml to check scrape jobs in")
	cmd.Flags().StringVar(&f.fleetURL, "fleet-url", "", "fetch fleet output from this /metrics URL")
	cmd.Flags().StringVar(&f.githubURL, "github-url", "", "fetch github output from this /metrics URL")
	cmd.Flags().StringVar(&f.datasourceUID, "datasource-uid", "prometheus", "uid every panel must reference (empty to skip)")
	cmd.Flags().String("state-file", "", "fleet state file rendered when --fleet-url is empty")
	bind(cmd.Flags(), "state-file", "fleet.state_file")
	_ = cmd.MarkFlagRequired("dashboard")
	githubFlags(cmd)
	return cmd
}

func buildContractInput(ctx context.Context, cfg *config.Config, f contractFlags) (contract.Input, error) {
	data, err := os.ReadFile(f.dashboard)
	if err != nil {
		return contract.Input{}, fmt.Errorf("check-contract: %w", err)
	}
	dash, err := contract.ParseDashboard(data)
	if err != nil {
		return contract.Input{}, err
	}
	in := contract.Input{Dashboard: dash, DatasourceUID: f.datasourceUID}

	if f.prometheus != "" {
		data, err := os.ReadFile(f.prometheus)
		if err != nil {
			return contract.Input{}, fmt.Errorf("check-contract: %w", err)
		}
		if in.Scrape, err = contract.ParseScrapeConfig(data); err != nil {
			return contract.Input{}, err
		}
	}

	fleetFams, err := exporterFamilies(ctx, cfg, "fleet", f.fleetURL)
	if err != nil {
		return contract.Input{}, err
	}
	githubFams, err := exporterFamilies(ctx, cfg, "github", f.githubURL)
	if err != nil {
		return contract.Input{}, err
	}
	in.Exporters = []contract.Exporter{contract.FleetExporter(fleetFams), contract.GitHubExporter(githubFams)}
	return in, nil
}

func exporterFamilies(ctx context.Context, cfg *config.Config, name, url string) (map[string]*dto.MetricFamily, error) {
	if url == "" {
		scrape, err := collectOnce(ctx, cfg, name)
		if err != nil {
			return nil, err
		}
		return contract.Index(scrape.Document.Proto()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("check-contract: %s: %w", name, err)
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check-contract: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("check-contract: fetch %s: %s", url, resp.Status)
	}
	mfs, err := exposition.Parse(resp.Body)
	if err != nil {
		// A partial family set would report every later metric as missing.
		return nil, fmt.Errorf("check-contract: %s output from %s (%d families before the error): %w", name, url, len(mfs), err)
	}
	return mfs, nil
}

func printContractFindings(w io.Writer, findings []contract.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "contract: ok")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Severity", "Rule", "Subject", "Message"})
	for _, f := range findings {
		tw.AppendRow(table.Row{strings.ToUpper(string(f.Severity)), f.Rule, f.Subject, f.Message})
	}
	tw.Render()
}
