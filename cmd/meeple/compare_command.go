package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"meeple/internal/config"
	"meeple/internal/match"
	"meeple/internal/migrate"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var componentsPath string
	var currentFlag string
	var candidateFlag string

	cmd := &cobra.Command{
		Use:   "compare <pdf>",
		Short: "Compare two hash algorithms over one PDF before switching the default",
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
			current, err := parseAlgorithmPair(currentFlag)
			if err != nil {
				return fmt.Errorf("--current: %w", err)
			}
			candidate, err := parseAlgorithmPair(candidateFlag)
			if err != nil {
				return fmt.Errorf("--candidate: %w", err)
			}

			report, err := eng.CompareAlgorithms(cmd.Context(), pdfPath, specs, current, candidate)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s -> %s: %d image(s) compared, %d unchanged, %d changed\n",
				report.Current, report.Candidate,
				len(report.CurrentResults), report.Unchanged, len(report.Changes))
			if len(report.Changes) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(report.Changes))
			for _, change := range report.Changes {
				rows = append(rows, []string{
					fmt.Sprintf("%d", change.SourcePage),
					string(change.Origin),
					changeLabel(change.FromComponent, change.FromStatus),
					changeLabel(change.ToComponent, change.ToStatus),
					fmt.Sprintf("%+.4f", change.ConfidenceDelta),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Page", "Origin", "From", "To", "Confidence Delta"},
				rows,
				0, 4,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&componentsPath, "components", "", "TOML manifest of expected components (required)")
	cmd.Flags().StringVar(&currentFlag, "current", "dhash", "Current algorithm as name[/version]")
	cmd.Flags().StringVar(&candidateFlag, "candidate", "blockhash", "Candidate algorithm as name[/version]")

	return cmd
}

func parseAlgorithmPair(value string) (migrate.AlgorithmPair, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return migrate.AlgorithmPair{}, fmt.Errorf("algorithm required")
	}
	name, version, _ := strings.Cut(value, "/")
	if name == "" {
		return migrate.AlgorithmPair{}, fmt.Errorf("malformed algorithm %q", value)
	}
	return migrate.AlgorithmPair{Algorithm: name, Version: version}, nil
}

func changeLabel(component string, status match.Status) string {
	if component == "" {
		return string(status)
	}
	return fmt.Sprintf("%s (%s)", component, status)
}
