package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/core/domain"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [entity-id]",
	Short: "Remove every record of an entity",
	Long: `Remove every record of an entity.

Entities are scoped by project. Pass --project with the project ID from
loom.yaml to delete an entity indexed from a manuscript project.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all indexed records",
	RunE:  runClear,
}

func init() {
	deleteCmd.Flags().String("project", "", "project the entity belongs to")
	clearCmd.Flags().BoolP("force", "f", false, "skip confirmation")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	project, _ := cmd.Flags().GetString("project") //nolint:errcheck // flag defined above
	id := domain.EntityKey(strings.TrimSpace(project), strings.TrimSpace(args[0]))
	if err := indexService.DeleteEntity(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	cmd.Printf("Deleted records of %s\n", id)
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	force, _ := cmd.Flags().GetBool("force") //nolint:errcheck // flag defined above
	if !force {
		cmd.Print("Remove all indexed records? [y/N]: ")
		answer := strings.ToLower(readLine(bufio.NewReader(cmd.InOrStdin())))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := indexService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	cmd.Println("Index cleared.")
	return nil
}
