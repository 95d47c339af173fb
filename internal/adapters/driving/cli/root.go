// Package cli provides the cobra command tree of the loom binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/logger"
)

// version is set by SetVersion from the linker-provided build version.
var version = "dev"

// Services wired into the commands. Tests assign them directly.
var (
	contextService    driving.ContextBuilder
	indexService      driving.IndexService
	generationService driving.GenerationService
	settingsService   driving.SettingsService
	promptStore       driven.PromptStore
	configValidator   driven.AIConfigValidator
)

// Services groups everything a command may need.
type Services struct {
	Context    driving.ContextBuilder
	Index      driving.IndexService
	Generation driving.GenerationService
	Settings   driving.SettingsService
	Prompts    driven.PromptStore
	Validator  driven.AIConfigValidator

	// Close releases stores and provider clients. May be nil.
	Close func() error
}

// Options are the global flags passed to the bootstrap function.
type Options struct {
	ConfigDir string
	InMemory  bool
	Verbose   bool
}

// BootstrapFunc builds the services for one command invocation.
type BootstrapFunc func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap BootstrapFunc
	closer    func() error
	globals   Options
	envFile   string
)

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Retrieval and context assembly for long-form fiction",
	Long: `Loom indexes a manuscript (chapters, characters, world-building
entries and style samples) and assembles the most relevant excerpts into a
token-bounded context for a writing model.

Ranking blends embedding similarity with keyword overlap and favours recent
chapters. Without an embedding provider it runs keyword-only.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "print pipeline details to stderr")
	rootCmd.PersistentFlags().BoolVar(&globals.InMemory, "in-memory", false, "keep records in memory only")
	rootCmd.PersistentFlags().StringVar(&globals.ConfigDir, "config-dir", "", "configuration directory (default ~/.loom)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with API keys")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices wires services directly, bypassing bootstrap.
func SetServices(s *Services) {
	contextService = s.Context
	indexService = s.Index
	generationService = s.Generation
	settingsService = s.Settings
	promptStore = s.Prompts
	configValidator = s.Validator
	closer = s.Close
}

// Execute runs the root command and releases the services it opened.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := teardown(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(globals.Verbose)

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if bootstrap == nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}

	services, err := bootstrap(cmd.Context(), globals)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

func teardown() error {
	if closer == nil {
		return nil
	}
	err := closer()
	closer = nil
	return err
}
