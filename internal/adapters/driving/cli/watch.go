package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/connectors/manuscript"
)

var watchCmd = &cobra.Command{
	Use:   "watch [project-dir]",
	Short: "Keep the index in sync with a manuscript project",
	Long: `Index the project, then watch its files. Written chapters are
re-indexed, removed chapters are deleted from the index, and edits to
loom.yaml reload the whole project.

Press Ctrl+C to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("skip-initial", false, "do not index the project before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	project, err := manuscript.LoadProject(projectDir(args))
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}

	skip, _ := cmd.Flags().GetBool("skip-initial") //nolint:errcheck // flag defined above
	if !skip {
		cmd.Printf("Indexing %s (%s)\n", project.ID, project.Dir)
		printReports(cmd, manuscript.IndexProject(cmd.Context(), project, indexService))
	}

	watcher, err := manuscript.NewWatcher(project, indexService, manuscript.WithOnChange(func(c manuscript.Change) {
		printChange(cmd, c)
	}))
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	cmd.Printf("Watching %s\n", project.Dir)
	if err := watcher.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}

func printChange(cmd *cobra.Command, c manuscript.Change) {
	if c.Err != nil {
		cmd.PrintErrf("error: %s: %v\n", c.Path, c.Err)
		return
	}
	switch c.Type {
	case manuscript.ChangeChapter:
		cmd.Printf("re-indexed %s\n", c.RelatedID)
	case manuscript.ChangeChapterRemoved:
		cmd.Printf("removed %s\n", c.RelatedID)
	case manuscript.ChangeManifest:
		cmd.Println("manifest reloaded")
	default:
		return
	}
	printReports(cmd, c.Reports)
}
