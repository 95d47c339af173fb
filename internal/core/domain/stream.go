package domain

import (
	"context"
	"strings"
	"sync"
)

// GenerationRequest asks for context-grounded text generation.
type GenerationRequest struct {
	// Instruction is the writing task, e.g. "continue the scene".
	Instruction string

	// Query drives retrieval. Defaults to Instruction when empty.
	Query string

	// TokenBudget bounds the assembled context.
	TokenBudget int

	// Options tunes retrieval.
	Options BuildOptions

	// MaxTokens bounds the generated output.
	MaxTokens int

	// Temperature controls randomness.
	Temperature float64
}

// EmitFunc receives one increment of generated text. Returning an error
// stops the producer.
type EmitFunc func(text string) error

// ProduceFunc produces text increments until done, the context is
// cancelled, or emit returns an error.
type ProduceFunc func(ctx context.Context, emit EmitFunc) error

// GenerationStream is a cancellable stream of generated text.
// Text already received stays available after cancellation or failure.
type GenerationStream struct {
	// ID identifies the generation request.
	ID string

	// Context is the retrieval result injected into the prompt.
	Context ContextResult

	out    chan string
	done   chan struct{}
	cancel context.CancelFunc

	mu   sync.Mutex
	text strings.Builder
	err  error
}

// NewGenerationStream starts produce in a goroutine and returns the stream.
func NewGenerationStream(ctx context.Context, id string, produce ProduceFunc) *GenerationStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &GenerationStream{
		ID:     id,
		out:    make(chan string, 16),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.out)
		defer cancel()

		err := produce(ctx, func(text string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if text == "" {
				return nil
			}
			s.mu.Lock()
			s.text.WriteString(text)
			s.mu.Unlock()

			select {
			case s.out <- text:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()

	return s
}

// Chunks returns the channel of text increments. It is closed when the
// producer finishes. Consumers that stop reading must call Cancel.
func (s *GenerationStream) Chunks() <-chan string {
	return s.out
}

// Cancel stops the producer. Accumulated text is kept.
func (s *GenerationStream) Cancel() {
	s.cancel()
}

// Done is closed once the producer has finished.
func (s *GenerationStream) Done() <-chan struct{} {
	return s.done
}

// Text returns everything generated so far.
func (s *GenerationStream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Err returns the producer error, if any. Valid after Done is closed.
func (s *GenerationStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait drains the stream and returns the full text and the producer error.
func (s *GenerationStream) Wait() (string, error) {
	for range s.out { //nolint:revive // draining
	}
	<-s.done
	return s.Text(), s.Err()
}
