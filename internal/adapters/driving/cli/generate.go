package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/core/domain"
)

var generateCmd = &cobra.Command{
	Use:   "generate [instruction]",
	Short: "Generate text grounded in the manuscript",
	Long: `Assemble context for the instruction and stream the model's answer to
stdout. The retrieval query defaults to the instruction; use --query to
retrieve on something else.

Interrupting the command stops generation and keeps what was printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("query", "q", "", "retrieval query (default: the instruction)")
	generateCmd.Flags().IntP("budget", "b", 0, "context token budget (0 = configured default)")
	generateCmd.Flags().String("project", "", "restrict to one project")
	generateCmd.Flags().Int("order", 0, "order of the chapter being written (0 = none)")
	generateCmd.Flags().Int("max-tokens", 0, "maximum tokens to generate (0 = model default)")
	generateCmd.Flags().Float64("temperature", 0, "sampling temperature (0 = model default)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generationService == nil {
		return errors.New("generation service not configured")
	}

	query, _ := cmd.Flags().GetString("query")              //nolint:errcheck // flag defined above
	budget, _ := cmd.Flags().GetInt("budget")               //nolint:errcheck // flag defined above
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")        //nolint:errcheck // flag defined above
	temperature, _ := cmd.Flags().GetFloat64("temperature") //nolint:errcheck // flag defined above
	opts, err := buildOptions(cmd)
	if err != nil {
		return err
	}

	stream, err := generationService.Generate(cmd.Context(), domain.GenerationRequest{
		Instruction: args[0],
		Query:       query,
		TokenBudget: budget,
		Options:     opts,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	defer stream.Cancel()

	for _, w := range stream.Context.Warnings {
		cmd.PrintErrf("warning: %s\n", w)
	}

	out := cmd.OutOrStdout()
	for chunk := range stream.Chunks() {
		fmt.Fprint(out, chunk)
	}
	<-stream.Done()
	fmt.Fprintln(out)

	if err := stream.Err(); err != nil {
		return fmt.Errorf("generation stopped: %w", err)
	}
	return nil
}
