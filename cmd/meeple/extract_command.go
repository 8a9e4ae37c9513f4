package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meeple/internal/config"
	"meeple/internal/engine"
	"meeple/internal/match"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var componentsPath string
	var algorithm string
	var allBackends bool

	cmd := &cobra.Command{
		Use:   "extract <pdf>",
		Short: "Extract images from a PDF and match them against expected components",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine()
			if err != nil {
				return err
			}
			pdfPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(componentsPath) == "" {
				return fmt.Errorf("--components is required")
			}
			specs, err := loadComponents(componentsPath)
			if err != nil {
				return err
			}

			outcome, err := eng.ExtractAndMatch(cmd.Context(), pdfPath, specs, engine.RunOptions{
				AllBackends: allBackends,
				Algorithm:   algorithm,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isTerminal(out) {
				fmt.Fprintln(out, renderMatchTable(outcome))
			} else {
				writeMatchPlain(cmd, outcome)
			}
			if n := len(outcome.Report.LowConfidence); n > 0 {
				fmt.Fprintf(out, "%d result(s) need manual review (low confidence)\n", n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&componentsPath, "components", "", "TOML manifest of expected components (required)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Hash algorithm override (dhash or blockhash)")
	cmd.Flags().BoolVar(&allBackends, "all-backends", false, "Run every extraction backend over every page")

	return cmd
}

func renderMatchTable(outcome *engine.Outcome) string {
	rows := make([][]string, 0, len(outcome.Report.Results))
	for _, res := range outcome.Report.Results {
		rows = append(rows, matchRow(res))
	}
	return renderTable(
		[]string{"Page", "Origin", "Component", "Distance", "Confidence", "Status"},
		rows,
		0, 3, 4,
	)
}

func writeMatchPlain(cmd *cobra.Command, outcome *engine.Outcome) {
	out := cmd.OutOrStdout()
	for _, res := range outcome.Report.Results {
		fmt.Fprintln(out, strings.Join(matchRow(res), "\t"))
	}
}

func matchRow(res match.Result) []string {
	component := res.Component
	if component == "" {
		component = "-"
	}
	return []string{
		fmt.Sprintf("%d", res.Candidate.SourcePage),
		res.Candidate.Origin,
		component,
		fmt.Sprintf("%d", res.HammingDistance),
		fmt.Sprintf("%.4f", res.Confidence),
		string(res.Status),
	}
}
