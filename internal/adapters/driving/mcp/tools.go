package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// defaultStyleMatches is used when match_style is called without k.
const defaultStyleMatches = 3

// BuildContextInput is the input schema for the build_context tool.
type BuildContextInput struct {
	Query             string   `json:"query" jsonschema:"what the next passage is about; drives retrieval"`
	TokenBudget       int      `json:"token_budget,omitempty" jsonschema:"maximum context size in tokens (default from settings)"`
	ProjectID         string   `json:"project_id,omitempty" jsonschema:"restrict retrieval to one project"`
	Kinds             []string `json:"kinds,omitempty" jsonschema:"record kinds to search: chapter, character, wiki, style_sample"`
	ExcludeRelatedIDs []string `json:"exclude_related_ids,omitempty" jsonschema:"entity IDs to leave out, such as the chapter being written"`
	CurrentOrder      *int     `json:"current_order,omitempty" jsonschema:"order of the chapter being written; later chapters are ignored"`
}

// BuildContextOutput is the output schema for the build_context tool.
type BuildContextOutput struct {
	Text       string            `json:"text"`
	Candidates []CandidateOutput `json:"candidates"`
	Degraded   bool              `json:"degraded"`
	Skipped    int               `json:"skipped,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// CandidateOutput is one ranked record.
type CandidateOutput struct {
	RecordID         string  `json:"record_id"`
	RelatedID        string  `json:"related_id"`
	Kind             string  `json:"kind"`
	Text             string  `json:"text"`
	Score            float64 `json:"score"`
	VectorSimilarity float64 `json:"vector_similarity"`
	KeywordScore     float64 `json:"keyword_score"`
	RecencyWeight    float64 `json:"recency_weight"`
}

// MatchStyleInput is the input schema for the match_style tool.
type MatchStyleInput struct {
	Text      string `json:"text" jsonschema:"passage whose prose texture should be matched"`
	K         int    `json:"k,omitempty" jsonschema:"number of samples to return (default 3)"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"restrict to one project"`
}

// MatchStyleOutput is the output schema for the match_style tool.
type MatchStyleOutput struct {
	Samples []CandidateOutput `json:"samples"`
}

// IndexChapterInput is the input schema for the index_chapter tool.
type IndexChapterInput struct {
	ID        string `json:"id" jsonschema:"stable chapter ID"`
	ProjectID string `json:"project_id,omitempty"`
	Order     int    `json:"order" jsonschema:"position of the chapter in the book, starting at 1"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content" jsonschema:"full chapter text"`
	Summary   string `json:"summary,omitempty" jsonschema:"optional chapter synopsis, indexed separately"`
	Async     bool   `json:"async,omitempty" jsonschema:"queue indexing and return at once"`
}

// IndexCharacterInput is the input schema for the index_character tool.
type IndexCharacterInput struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id,omitempty"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Traits      []string `json:"traits,omitempty"`
	Async       bool     `json:"async,omitempty" jsonschema:"queue indexing and return at once"`
}

// IndexWikiEntryInput is the input schema for the index_wiki_entry tool.
type IndexWikiEntryInput struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id,omitempty"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Async       bool     `json:"async,omitempty" jsonschema:"queue indexing and return at once"`
}

// IndexOutput reports what an indexing tool wrote.
type IndexOutput struct {
	RelatedID string   `json:"related_id"`
	Kind      string   `json:"kind"`
	Records   int      `json:"records"`
	Embedded  int      `json:"embedded"`
	Warnings  []string `json:"warnings,omitempty"`
	Queued    bool     `json:"queued,omitempty"`
}

// DeleteEntityInput is the input schema for the delete_entity tool.
type DeleteEntityInput struct {
	RelatedID string `json:"related_id" jsonschema:"entity whose records are removed"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"project the entity belongs to"`
}

// DeleteEntityOutput is the output schema for the delete_entity tool.
type DeleteEntityOutput struct {
	RelatedID string `json:"related_id"`
	Deleted   bool   `json:"deleted"`
}

// GenerateInput is the input schema for the generate tool.
type GenerateInput struct {
	Instruction  string  `json:"instruction" jsonschema:"the writing task"`
	Query        string  `json:"query,omitempty" jsonschema:"retrieval query (defaults to the instruction)"`
	TokenBudget  int     `json:"token_budget,omitempty"`
	ProjectID    string  `json:"project_id,omitempty"`
	CurrentOrder *int    `json:"current_order,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// GenerateOutput is the output schema for the generate tool.
type GenerateOutput struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_context",
		Description: "Retrieve and assemble the manuscript context most relevant to a query",
	}, s.handleBuildContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "match_style",
		Description: "Find the style samples whose prose texture is closest to a passage",
	}, s.handleMatchStyle)

	if s.ports.Index != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_chapter",
			Description: "Chunk, embed and store a chapter, replacing its previous records",
		}, s.handleIndexChapter)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_character",
			Description: "Store a character profile, replacing its previous record",
		}, s.handleIndexCharacter)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "index_wiki_entry",
			Description: "Store a world-building entry, replacing its previous record",
		}, s.handleIndexWikiEntry)

		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "delete_entity",
			Description: "Remove every record of an entity",
		}, s.handleDeleteEntity)
	}

	if s.ports.Generation != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "generate",
			Description: "Generate text grounded in retrieved manuscript context",
		}, s.handleGenerate)
	}
}

func (s *Server) handleBuildContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildContextInput,
) (*mcp.CallToolResult, BuildContextOutput, error) {
	kinds, err := domain.ParseRecordKinds(input.Kinds)
	if err != nil {
		return nil, BuildContextOutput{}, err
	}

	opts := domain.BuildOptions{
		ProjectID:         input.ProjectID,
		Kinds:             kinds,
		ExcludeRelatedIDs: input.ExcludeRelatedIDs,
		CurrentOrder:      input.CurrentOrder,
	}
	result, err := s.ports.Context.BuildContext(ctx, input.Query, input.TokenBudget, opts)
	if err != nil {
		return nil, BuildContextOutput{}, err
	}

	return nil, BuildContextOutput{
		Text:       result.Text,
		Candidates: candidatesOutput(result.Candidates),
		Degraded:   result.Degraded,
		Skipped:    result.Skipped,
		Warnings:   result.Warnings,
	}, nil
}

func (s *Server) handleMatchStyle(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MatchStyleInput,
) (*mcp.CallToolResult, MatchStyleOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultStyleMatches
	}

	matches, err := s.ports.Context.MatchStyleSamples(ctx, input.Text, k, input.ProjectID)
	if err != nil {
		return nil, MatchStyleOutput{}, err
	}
	return nil, MatchStyleOutput{Samples: candidatesOutput(matches)}, nil
}

func (s *Server) handleIndexChapter(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexChapterInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if s.ports.Index == nil {
		return nil, IndexOutput{}, ErrIndexingDisabled
	}
	chapter := domain.Chapter{
		ID:        input.ID,
		ProjectID: input.ProjectID,
		Order:     input.Order,
		Title:     input.Title,
		Content:   input.Content,
		Summary:   input.Summary,
	}
	return s.runIndex(ctx, input.Async, chapter.ProjectID, chapter.ID, domain.RecordKindChapter,
		func(ctx context.Context) domain.IndexReport {
			return s.ports.Index.IndexChapter(ctx, chapter)
		})
}

func (s *Server) handleIndexCharacter(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexCharacterInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if s.ports.Index == nil {
		return nil, IndexOutput{}, ErrIndexingDisabled
	}
	character := domain.Character{
		ID:          input.ID,
		ProjectID:   input.ProjectID,
		Name:        input.Name,
		Role:        input.Role,
		Description: input.Description,
		Traits:      input.Traits,
	}
	return s.runIndex(ctx, input.Async, character.ProjectID, character.ID, domain.RecordKindCharacter,
		func(ctx context.Context) domain.IndexReport {
			return s.ports.Index.IndexCharacter(ctx, character)
		})
}

func (s *Server) handleIndexWikiEntry(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexWikiEntryInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if s.ports.Index == nil {
		return nil, IndexOutput{}, ErrIndexingDisabled
	}
	entry := domain.WikiEntry{
		ID:          input.ID,
		ProjectID:   input.ProjectID,
		Name:        input.Name,
		Aliases:     input.Aliases,
		Category:    input.Category,
		Description: input.Description,
	}
	return s.runIndex(ctx, input.Async, entry.ProjectID, entry.ID, domain.RecordKindWiki,
		func(ctx context.Context) domain.IndexReport {
			return s.ports.Index.IndexWikiEntry(ctx, entry)
		})
}

func (s *Server) handleDeleteEntity(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteEntityInput,
) (*mcp.CallToolResult, DeleteEntityOutput, error) {
	if s.ports.Index == nil {
		return nil, DeleteEntityOutput{}, ErrIndexingDisabled
	}
	id := strings.TrimSpace(input.RelatedID)
	if id == "" {
		return nil, DeleteEntityOutput{}, fmt.Errorf("related_id: %w", domain.ErrInvalidInput)
	}
	key := domain.EntityKey(strings.TrimSpace(input.ProjectID), id)
	if err := s.ports.Index.DeleteEntity(ctx, key); err != nil {
		return nil, DeleteEntityOutput{}, err
	}
	return nil, DeleteEntityOutput{RelatedID: key, Deleted: true}, nil
}

func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	if s.ports.Generation == nil {
		return nil, GenerateOutput{}, ErrGenerationDisabled
	}

	stream, err := s.ports.Generation.Generate(ctx, domain.GenerationRequest{
		Instruction: input.Instruction,
		Query:       input.Query,
		TokenBudget: input.TokenBudget,
		Options: domain.BuildOptions{
			ProjectID:    input.ProjectID,
			CurrentOrder: input.CurrentOrder,
		},
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	})
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	text, err := stream.Wait()
	if err != nil {
		return nil, GenerateOutput{}, err
	}
	return nil, GenerateOutput{
		ID:       stream.ID,
		Text:     text,
		Degraded: stream.Context.Degraded,
		Warnings: stream.Context.Warnings,
	}, nil
}

// runIndex indexes in the foreground, or queues fn and returns at once.
// A queued job outlives the request; its failure is only logged.
func (s *Server) runIndex(
	ctx context.Context,
	async bool,
	projectID, id string,
	kind domain.RecordKind,
	fn func(ctx context.Context) domain.IndexReport,
) (*mcp.CallToolResult, IndexOutput, error) {
	if !async {
		return reportOutput(fn(ctx))
	}
	if strings.TrimSpace(id) == "" {
		return nil, IndexOutput{}, fmt.Errorf("id: %w", domain.ErrInvalidInput)
	}
	s.ports.Index.IndexAsync(context.WithoutCancel(ctx), fn)
	return nil, IndexOutput{
		RelatedID: domain.EntityKey(projectID, id),
		Kind:      kind.String(),
		Queued:    true,
	}, nil
}

func reportOutput(report domain.IndexReport) (*mcp.CallToolResult, IndexOutput, error) {
	if report.Err != nil {
		return nil, IndexOutput{}, report.Err
	}
	return nil, IndexOutput{
		RelatedID: report.RelatedID,
		Kind:      report.Kind.String(),
		Records:   report.Records,
		Embedded:  report.Embedded,
		Warnings:  report.Warnings,
	}, nil
}

func candidatesOutput(candidates []domain.RetrievalCandidate) []CandidateOutput {
	out := make([]CandidateOutput, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateOutput{
			RecordID:         c.Record.ID,
			RelatedID:        c.Record.RelatedID,
			Kind:             c.Record.Kind.String(),
			Text:             c.Record.Text,
			Score:            c.CompositeScore,
			VectorSimilarity: c.VectorSimilarity,
			KeywordScore:     c.KeywordScore,
			RecencyWeight:    c.RecencyWeight,
		}
	}
	return out
}
