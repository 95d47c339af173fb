package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/ports/driving"
	"github.com/custodia-labs/loom/internal/logger"
)

// Ensure GenerationService implements the interfaces.
var (
	_ driving.GenerationService = (*GenerationService)(nil)
	_ driven.PromptStoreAware   = (*GenerationService)(nil)
)

// GenerationService streams context-grounded text from the LLM.
type GenerationService struct {
	builder driving.ContextBuilder
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewGenerationService creates a new generation service.
// The llm parameter is optional (can be nil); Generate then fails with
// domain.ErrLLMUnavailable.
func NewGenerationService(builder driving.ContextBuilder, llm driven.LLMService) *GenerationService {
	return &GenerationService{
		builder: builder,
		llm:     llm,
	}
}

// Generate builds context for the request and starts streaming. The
// returned stream carries the context that was injected into the prompt.
func (s *GenerationService) Generate(
	ctx context.Context, req domain.GenerationRequest,
) (*domain.GenerationStream, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return nil, fmt.Errorf("generate: empty instruction: %w", domain.ErrInvalidInput)
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = instruction
	}

	built, err := s.builder.BuildContext(ctx, query, req.TokenBudget, req.Options)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	messages := BuildMessages(
		s.prompt(driven.PromptGenerationSystem),
		s.prompt(driven.PromptGenerationTask),
		built.Text,
		instruction,
	)
	opts := driven.GenerateOptions{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	id := uuid.NewString()
	logger.Info("Generation %s: model=%s, context candidates=%d", id, s.llm.ModelName(), len(built.Candidates))

	stream := domain.NewGenerationStream(ctx, id, func(ctx context.Context, emit domain.EmitFunc) error {
		return s.llm.Stream(ctx, messages, opts, emit)
	})
	stream.Context = built
	return stream, nil
}

// SetPromptStore sets the store for customised prompts.
func (s *GenerationService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

func (s *GenerationService) prompt(name string) string {
	if s.prompts != nil {
		p, err := s.prompts.Load(name)
		if err == nil && p != "" {
			return p
		}
		logger.Warn("Prompt %s unavailable, using default: %v", name, err)
	}
	return driven.DefaultPrompt(name)
}

// BuildMessages renders the chat messages for an instruction and its
// retrieved context. The task template receives the instruction through
// its first %s placeholder, or has it appended on a new line when it has none.
// The template is user-editable text, not a format string. An empty
// context is omitted.
func BuildMessages(system, taskTemplate, contextText, instruction string) []driven.ChatMessage {
	var user strings.Builder
	if contextText != "" {
		user.WriteString("参考资料：\n")
		user.WriteString(contextText)
		user.WriteString("\n\n")
	}
	if strings.Contains(taskTemplate, "%s") {
		user.WriteString(strings.Replace(taskTemplate, "%s", instruction, 1))
	} else {
		user.WriteString(taskTemplate)
		user.WriteString("\n")
		user.WriteString(instruction)
	}

	return []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user.String()},
	}
}
