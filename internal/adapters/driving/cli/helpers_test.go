package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// runCmd executes the root command with args and returns stdout and stderr.
// Flags are reset afterwards so tests do not leak state into each other.
func runCmd(t *testing.T, stdin io.Reader, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return runCmdContext(context.Background(), t, stdin, args...)
}

func runCmdContext(ctx context.Context, t *testing.T, stdin io.Reader, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	if stdin == nil {
		stdin = new(bytes.Buffer)
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(append([]string{"--env-file", ""}, args...))
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err = Execute(ctx)
	return out.String(), errOut.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if s, ok := f.Value.(pflag.SliceValue); ok {
			_ = s.Replace(nil) //nolint:errcheck // resetting to empty
		} else {
			_ = f.Value.Set(f.DefValue) //nolint:errcheck // default values always parse
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// withServices installs s for the duration of the test.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	SetServices(s)
	t.Cleanup(func() { SetServices(&Services{}) })
}

// fakeContextBuilder returns a fixed result and records its inputs.
type fakeContextBuilder struct {
	result    domain.ContextResult
	err       error
	gotQuery  string
	gotBudget int
	gotOpts   domain.BuildOptions
}

func (f *fakeContextBuilder) BuildContext(
	_ context.Context, query string, budget int, opts domain.BuildOptions,
) (domain.ContextResult, error) {
	f.gotQuery, f.gotBudget, f.gotOpts = query, budget, opts
	return f.result, f.err
}

func (f *fakeContextBuilder) MatchStyleSamples(
	context.Context, string, int, string,
) ([]domain.RetrievalCandidate, error) {
	return nil, f.err
}

// fakeGenerationService streams pieces and then returns streamErr.
type fakeGenerationService struct {
	pieces    []string
	streamErr error
	err       error
	warnings  []string
	gotReq    domain.GenerationRequest
}

func (f *fakeGenerationService) Generate(
	ctx context.Context, req domain.GenerationRequest,
) (*domain.GenerationStream, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	stream := domain.NewGenerationStream(ctx, "gen-test", func(_ context.Context, emit domain.EmitFunc) error {
		for _, p := range f.pieces {
			if err := emit(p); err != nil {
				return err
			}
		}
		return f.streamErr
	})
	stream.Context = domain.ContextResult{Warnings: f.warnings, Degraded: len(f.warnings) > 0}
	return stream, nil
}

// fakeValidator fails with the configured errors.
type fakeValidator struct {
	embedErr error
	llmErr   error
	calls    int
}

func (f *fakeValidator) ValidateEmbedding(domain.EmbeddingSettings) error {
	f.calls++
	return f.embedErr
}

func (f *fakeValidator) ValidateLLM(domain.LLMSettings) error {
	f.calls++
	return f.llmErr
}

// captureOutput runs fn with watchCmd writing to buffers.
func captureOutput(fn func()) (stdout, stderr string) {
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	watchCmd.SetOut(out)
	watchCmd.SetErr(errOut)
	defer func() {
		watchCmd.SetOut(nil)
		watchCmd.SetErr(nil)
	}()
	fn()
	return out.String(), errOut.String()
}
