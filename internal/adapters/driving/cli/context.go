package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/core/domain"
)

var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble context for a query",
	Long: `Retrieve the records most relevant to the query and print them as a
single context block that fits the token budget.

Candidates are ranked by a blend of embedding similarity and keyword overlap,
weighted towards recent chapters. When the embedding provider is unavailable
ranking falls back to keywords and a warning is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	contextCmd.Flags().IntP("budget", "b", 0, "token budget (0 = configured default)")
	contextCmd.Flags().String("project", "", "restrict to one project")
	contextCmd.Flags().StringSlice("kinds", nil, "record kinds: chapter, character, wiki, style_sample")
	contextCmd.Flags().StringSlice("exclude", nil, "entity IDs to leave out")
	contextCmd.Flags().Int("order", 0, "order of the chapter being written (0 = none)")
	contextCmd.Flags().Bool("json", false, "print ranked candidates as JSON")
	rootCmd.AddCommand(contextCmd)
}

// candidateJSON is the --json rendering of one ranked record.
type candidateJSON struct {
	ID        string  `json:"id"`
	RelatedID string  `json:"related_id"`
	Kind      string  `json:"kind"`
	Score     float64 `json:"score"`
	Vector    float64 `json:"vector"`
	Keyword   float64 `json:"keyword"`
	Recency   float64 `json:"recency"`
	Text      string  `json:"text"`
}

type contextJSON struct {
	Text       string          `json:"text"`
	Candidates []candidateJSON `json:"candidates"`
	Degraded   bool            `json:"degraded"`
	Warnings   []string        `json:"warnings,omitempty"`
}

func runContext(cmd *cobra.Command, args []string) error {
	if contextService == nil {
		return errors.New("context service not configured")
	}

	budget, _ := cmd.Flags().GetInt("budget") //nolint:errcheck // flag defined above
	asJSON, _ := cmd.Flags().GetBool("json")  //nolint:errcheck // flag defined above
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	result, err := contextService.BuildContext(cmd.Context(), args[0], budget, opts)
	if err != nil {
		return fmt.Errorf("building context: %w", err)
	}

	for _, w := range result.Warnings {
		cmd.PrintErrf("warning: %s\n", w)
	}

	if asJSON {
		return printContextJSON(cmd, result)
	}

	if result.Text == "" {
		cmd.Println("No relevant context found.")
		return nil
	}
	cmd.Println(result.Text)
	return nil
}

// buildOptions reads the retrieval filter flags shared by context and generate.
func buildOptions(cmd *cobra.Command) (domain.BuildOptions, error) {
	project, _ := cmd.Flags().GetString("project") //nolint:errcheck // flag defined by caller
	order, _ := cmd.Flags().GetInt("order")        //nolint:errcheck // flag defined by caller

	opts := domain.BuildOptions{ProjectID: project}
	if order > 0 {
		opts.CurrentOrder = &order
	}

	if f := cmd.Flags().Lookup("kinds"); f != nil {
		names, _ := cmd.Flags().GetStringSlice("kinds") //nolint:errcheck // flag looked up above
		kinds, err := domain.ParseRecordKinds(names)
		if err != nil {
			return domain.BuildOptions{}, err
		}
		opts.Kinds = kinds
	}
	if f := cmd.Flags().Lookup("exclude"); f != nil {
		opts.ExcludeRelatedIDs, _ = cmd.Flags().GetStringSlice("exclude") //nolint:errcheck // flag looked up above
	}
	return opts, nil
}

func printContextJSON(cmd *cobra.Command, result domain.ContextResult) error {
	out := contextJSON{
		Text:       result.Text,
		Candidates: make([]candidateJSON, len(result.Candidates)),
		Degraded:   result.Degraded,
		Warnings:   result.Warnings,
	}
	for i, c := range result.Candidates {
		out.Candidates[i] = candidateJSON{
			ID:        c.Record.ID,
			RelatedID: c.Record.RelatedID,
			Kind:      c.Record.Kind.String(),
			Score:     c.CompositeScore,
			Vector:    c.VectorSimilarity,
			Keyword:   c.KeywordScore,
			Recency:   c.RecencyWeight,
			Text:      c.Record.Text,
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}
