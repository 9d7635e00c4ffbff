package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alleycatassetacquisitions/pdn/internal/fleet"
)

func (a *app) validateStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-state [FILE]",
		Short: "Check a fleet state file against the canonical schema",
		Long: `validate-state reports schema problems in a fleet state file: the
non-canonical "agents" key, agent names outside claude-agent-NN, missing or
invalid vm_id/ip/status fields, unknown statuses, malformed current_task
references and duplicate IPs or vm ids. Agents outside the configured
infrastructure (fleet.validate.ip_prefix, fleet.validate.vm_id_ranges) are
reported as warnings. It exits non-zero when any error is found. FILE defaults
to the configured fleet.state_file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Fleet.StateFile
			if len(args) == 1 {
				path = args[0]
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("validate-state: %w", err)
			}
			findings, err := fleet.ValidateStateFor(data, infrastructure(a.cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				if err := printJSON(out, findings); err != nil {
					return err
				}
			} else {
				printStateFindings(out, path, findings)
			}
			if fleet.HasErrors(findings) {
				return errors.New("validate-state: schema errors found")
			}
			return nil
		},
	}
	cmd.Flags().String("ip-prefix", "", "expected agent ip prefix; an empty value disables the check")
	bind(cmd.Flags(), "ip-prefix", "fleet.validate.ip_prefix")
	return cmd
}

func printStateFindings(w io.Writer, path string, findings []fleet.Finding) {
	if len(findings) == 0 {
		fmt.Fprintf(w, "%s: ok\n", path)
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(path)
	tw.AppendHeader(table.Row{"Severity", "Path", "Message"})
	for _, f := range findings {
		tw.AppendRow(table.Row{f.Severity, f.Path, f.Message})
	}
	tw.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
