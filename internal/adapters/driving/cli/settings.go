package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/loom/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, retrieval tuning and chunking.

Settings are stored in ~/.loom/config.toml. API keys may instead be provided
through OPENAI_API_KEY, LOOM_EMBED_API_KEY or LOOM_LLM_API_KEY.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a retrieval or chunker setting",
	Long:  "Set a single setting. Supported keys:\n  " + strings.Join(settingKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used for semantic ranking.

Without one, ranking is keyword-only.`,
	RunE: runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used by the generate command.`,
	RunE:  runSettingsLLM,
}

var settingsSetKeyCmd = &cobra.Command{
	Use:       "set-key [embedding|llm]",
	Short:     "Store an API key",
	Long:      `Prompt for an API key without echoing it and store it in the config file.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"embedding", "llm"},
	RunE:      runSettingsSetKey,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that configured providers are reachable",
	RunE:  runSettingsCheck,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsLLMCmd} {
		c.Flags().String("provider", "", "provider: ollama or openai (required)")
		c.Flags().String("model", "", "model name (default: provider default)")
		c.Flags().String("base-url", "", "API endpoint (default: provider default)")
		c.Flags().Bool("no-check", false, "skip the connectivity check")
		_ = c.MarkFlagRequired("provider") //nolint:errcheck // flag defined above
	}

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsSetKeyCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey)
	if settings.Embedding.Dimensions > 0 {
		cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	}
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model, settings.LLM.BaseURL, settings.LLM.APIKey)
	cmd.Println()

	r := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Weights: vector %.2f, keyword %.2f\n", r.Weights.Vector, r.Weights.Keyword)
	cmd.Printf("  Token budget: %d\n", r.TokenBudget)
	cmd.Printf("  Avg chunk tokens: %d\n", r.AvgChunkTokens)
	cmd.Printf("  Top-k: %d..%d\n", r.MinK, r.MaxK)
	cmd.Printf("  Max per entity: %d\n", r.MaxPerEntity)
	cmd.Printf("  Query timeout: %dms\n", r.QueryTimeoutMS)
	cmd.Println()

	cmd.Println("[Chunker]")
	cmd.Printf("  Max size: %d\n", settings.Chunker.MaxSize)
	cmd.Printf("  Overlap: %d\n", settings.Chunker.Overlap)

	if settings.DataDir != "" {
		cmd.Println()
		cmd.Println("[Storage]")
		cmd.Printf("  Data dir: %s\n", settings.DataDir)
	}
	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string) {
	if provider == "" {
		cmd.Println("  Provider: (not configured)")
		return
	}
	cmd.Printf("  Provider: %s\n", provider.Description())
	cmd.Printf("  Model: %s\n", model)
	cmd.Printf("  Base URL: %s\n", baseURL)
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set, read from environment)\n")
		}
	}
}

// settingSetters maps settable keys to the field they update.
var settingSetters = map[string]func(s *domain.AppSettings, v string) error{
	"retrieval.vector_weight":    floatSetter(func(s *domain.AppSettings) *float64 { return &s.Retrieval.Weights.Vector }),
	"retrieval.keyword_weight":   floatSetter(func(s *domain.AppSettings) *float64 { return &s.Retrieval.Weights.Keyword }),
	"retrieval.token_budget":     intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.TokenBudget }),
	"retrieval.avg_chunk_tokens": intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.AvgChunkTokens }),
	"retrieval.min_k":            intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.MinK }),
	"retrieval.max_k":            intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.MaxK }),
	"retrieval.max_per_entity":   intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.MaxPerEntity }),
	"retrieval.query_timeout_ms": intSetter(func(s *domain.AppSettings) *int { return &s.Retrieval.QueryTimeoutMS }),
	"chunker.max_size":           intSetter(func(s *domain.AppSettings) *int { return &s.Chunker.MaxSize }),
	"chunker.overlap":            intSetter(func(s *domain.AppSettings) *int { return &s.Chunker.Overlap }),
	"embedding.dimensions":       intSetter(func(s *domain.AppSettings) *int { return &s.Embedding.Dimensions }),
	"storage.data_dir": func(s *domain.AppSettings, v string) error {
		s.DataDir = v
		return nil
	},
}

func settingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func intSetter(field func(*domain.AppSettings) *int) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("expected a non-negative integer, got %q: %w", v, domain.ErrInvalidInput)
		}
		*field(s) = n
		return nil
	}
}

func floatSetter(field func(*domain.AppSettings) *float64) func(*domain.AppSettings, string) error {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("expected a non-negative number, got %q: %w", v, domain.ErrInvalidInput)
		}
		*field(s) = f
		return nil
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := strings.ToLower(args[0]), strings.TrimSpace(args[1])
	set, ok := settingSetters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (see 'loom settings set --help')", key)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := set(settings, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Printf("%s = %s\n", key, value)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider, model, baseURL, err := providerFlags(cmd)
	if err != nil {
		return err
	}
	if err := settingsService.SetEmbeddingProvider(provider, model, baseURL, ""); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), settings.Embedding.Model)

	if noCheck, _ := cmd.Flags().GetBool("no-check"); noCheck || configValidator == nil { //nolint:errcheck // flag defined above
		return nil
	}
	cmd.Print("Validating configuration... ")
	if err := configValidator.ValidateEmbedding(settings.Embedding); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider, model, baseURL, err := providerFlags(cmd)
	if err != nil {
		return err
	}
	if err := settingsService.SetLLMProvider(provider, model, baseURL, ""); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	cmd.Printf("LLM provider configured: %s (%s)\n", provider.Description(), settings.LLM.Model)

	if noCheck, _ := cmd.Flags().GetBool("no-check"); noCheck || configValidator == nil { //nolint:errcheck // flag defined above
		return nil
	}
	cmd.Print("Validating configuration... ")
	if err := configValidator.ValidateLLM(settings.LLM); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	return nil
}

func providerFlags(cmd *cobra.Command) (provider domain.AIProvider, model, baseURL string, err error) {
	name, _ := cmd.Flags().GetString("provider")   //nolint:errcheck // flag defined in init
	model, _ = cmd.Flags().GetString("model")      //nolint:errcheck // flag defined in init
	baseURL, _ = cmd.Flags().GetString("base-url") //nolint:errcheck // flag defined in init

	provider = domain.AIProvider(strings.ToLower(strings.TrimSpace(name)))
	if !provider.IsValid() {
		return "", "", "", fmt.Errorf("unknown provider %q (expected ollama or openai)", name)
	}
	return provider, model, baseURL, nil
}

func runSettingsSetKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	target := strings.ToLower(args[0])
	if target != "embedding" && target != "llm" {
		return fmt.Errorf("unknown target %q (expected embedding or llm)", args[0])
	}

	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd)
	cmd.Println()
	if apiKey == "" {
		return errors.New("API key is required")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if target == "embedding" {
		settings.Embedding.APIKey = apiKey
	} else {
		settings.LLM.APIKey = apiKey
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Printf("API key stored for %s: %s\n", target, maskAPIKey(apiKey))
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if configValidator == nil {
		return errors.New("config validator not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	failed := 0
	check := func(name string, configured bool, validate func() error) {
		if !configured {
			cmd.Printf("%-10s not configured\n", name)
			return
		}
		if err := validate(); err != nil {
			failed++
			cmd.Printf("%-10s FAILED: %v\n", name, err)
			return
		}
		cmd.Printf("%-10s OK\n", name)
	}
	check("embedding", settings.Embedding.Provider != "", func() error {
		return configValidator.ValidateEmbedding(settings.Embedding)
	})
	check("llm", settings.LLM.Provider != "", func() error {
		return configValidator.ValidateLLM(settings.LLM)
	})

	if failed > 0 {
		return fmt.Errorf("%d provider(s) unreachable", failed)
	}
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads without echo from a terminal and falls back to a
// plain line read from the command's input.
func readPassword(cmd *cobra.Command) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(bufio.NewReader(cmd.InOrStdin()))
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
