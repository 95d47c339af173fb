package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/connectors/manuscript"
	"github.com/custodia-labs/loom/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index [project-dir]",
	Short: "Index a manuscript project",
	Long: `Index every chapter, character, wiki entry and style sample listed in
the project's loom.yaml. Re-indexing an entity replaces its previous records.

The project directory defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	project, err := manuscript.LoadProject(projectDir(args))
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}

	cmd.Printf("Indexing %s (%s)\n", project.ID, project.Dir)
	reports := manuscript.IndexProject(cmd.Context(), project, indexService)

	failed := printReports(cmd, reports)
	cmd.Printf("\n%d entities indexed, %d failed\n", len(reports)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d entities failed to index", failed, len(reports))
	}
	return nil
}

// printReports writes one line per report and returns the failure count.
func printReports(cmd *cobra.Command, reports []domain.IndexReport) int {
	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
			cmd.Printf("  FAIL %-12s %s: %v\n", r.Kind, r.RelatedID, r.Err)
			continue
		}
		cmd.Printf("  ok   %-12s %s: %d records, %d embedded\n", r.Kind, r.RelatedID, r.Records, r.Embedded)
		for _, w := range r.Warnings {
			cmd.Printf("       warning: %s\n", w)
		}
	}
	return failed
}

func projectDir(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}
