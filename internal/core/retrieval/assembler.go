package retrieval

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/loom/internal/core/domain"
)

// DefaultMinTruncatedTokens is the smallest remaining budget worth filling
// with a truncated candidate.
const DefaultMinTruncatedTokens = 50

// blockSeparator joins rendered blocks.
const blockSeparator = "\n\n"

// ellipsis marks a truncated block.
const ellipsis = "…"

// TokenEstimator approximates how many model tokens a text consumes.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// TokenEstimatorFunc adapts a function to TokenEstimator.
type TokenEstimatorFunc func(text string) int

// EstimateTokens calls f(text).
func (f TokenEstimatorFunc) EstimateTokens(text string) int {
	return f(text)
}

// EstimateTokens counts one token per Han ideograph and one token per four
// other characters, rounded up. It is subadditive: the estimate of a
// concatenation never exceeds the sum of the parts.
func EstimateTokens(text string) int {
	han, other := 0, 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			han++
		} else {
			other++
		}
	}
	return han + (other+3)/4
}

// Assembly is the detailed result of assembling a context.
type Assembly struct {
	// Text is the rendered context.
	Text string

	// Included is how many leading candidates were rendered.
	Included int

	// Truncated is true if the last rendered candidate was cut short.
	Truncated bool

	// Tokens is the estimated token cost of Text.
	Tokens int
}

// Assembler renders ranked candidates into a single labelled context block
// that fits a token budget.
type Assembler struct {
	estimator    TokenEstimator
	minTruncated int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithTokenEstimator replaces the default estimator.
func WithTokenEstimator(e TokenEstimator) AssemblerOption {
	return func(a *Assembler) {
		if e != nil {
			a.estimator = e
		}
	}
}

// WithMinTruncatedTokens sets the smallest remaining budget for which a
// partially fitting candidate is truncated instead of dropped.
func WithMinTruncatedTokens(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.minTruncated = n
		}
	}
}

// NewAssembler creates an assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		estimator:    TokenEstimatorFunc(EstimateTokens),
		minTruncated: DefaultMinTruncatedTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders candidates in ranked order within tokenBudget.
func (a *Assembler) Assemble(ranked []domain.RetrievalCandidate, tokenBudget int) string {
	return a.AssembleDetailed(ranked, tokenBudget).Text
}

// AssembleDetailed renders candidates in ranked order within tokenBudget.
// Each block is a label line followed by the record text; blocks are
// separated by a blank line. Assembly stops at the first candidate that
// does not fit. That candidate is truncated if at least the configured
// minimum of budget remains for its text.
func (a *Assembler) AssembleDetailed(ranked []domain.RetrievalCandidate, tokenBudget int) Assembly {
	var out Assembly
	if tokenBudget <= 0 || len(ranked) == 0 {
		return out
	}

	sepCost := a.estimator.EstimateTokens(blockSeparator)
	var sb strings.Builder
	used := 0

	for i := range ranked {
		rec := &ranked[i].Record
		label := Label(rec)
		text := strings.TrimSpace(rec.Text)

		overhead := a.estimator.EstimateTokens(label) + a.estimator.EstimateTokens("\n")
		if out.Included > 0 {
			overhead += sepCost
		}
		textCost := a.estimator.EstimateTokens(text)

		if used+overhead+textCost > tokenBudget {
			remaining := tokenBudget - used - overhead
			if remaining < a.minTruncated {
				break
			}
			cut := a.truncate(text, remaining)
			if cut == "" {
				break
			}
			text = cut
			textCost = a.estimator.EstimateTokens(text)
			out.Truncated = true
		}

		if out.Included > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(label)
		sb.WriteByte('\n')
		sb.WriteString(text)

		used += overhead + textCost
		out.Included++
		if out.Truncated {
			break
		}
	}

	out.Text = sb.String()
	out.Tokens = used
	return out
}

// truncate returns the longest rune prefix of text that, with an ellipsis
// appended, fits maxTokens. Returns "" if nothing fits.
func (a *Assembler) truncate(text string, maxTokens int) string {
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if a.estimator.EstimateTokens(string(runes[:mid])+ellipsis) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ""
	}
	return strings.TrimRightFunc(string(runes[:lo]), unicode.IsSpace) + ellipsis
}

// Label returns the heading for a record's block, derived from its kind
// and title/name metadata.
func Label(rec *domain.IndexedRecord) string {
	switch rec.Kind {
	case domain.RecordKindChapter:
		kind := "前文片段"
		if rec.MetaString(domain.MetaPart) == domain.PartSummary {
			kind = "前情摘要"
		}
		return bracket(kind, chapterTitle(rec))
	case domain.RecordKindCharacter:
		return bracket("角色设定", nameOf(rec))
	case domain.RecordKindWiki:
		return bracket("世界设定", nameOf(rec))
	case domain.RecordKindStyleSample:
		return bracket("文风参考", rec.MetaString(domain.MetaTitle))
	default:
		return bracket("参考资料", "")
	}
}

func bracket(kind, source string) string {
	if source == "" {
		return "【" + kind + "】"
	}
	return "【" + kind + "·" + source + "】"
}

func chapterTitle(rec *domain.IndexedRecord) string {
	if t := rec.MetaString(domain.MetaTitle); t != "" {
		return t
	}
	if rec.Order != nil {
		return "第" + strconv.Itoa(*rec.Order) + "章"
	}
	return rec.EntityID()
}

func nameOf(rec *domain.IndexedRecord) string {
	if n := rec.MetaString(domain.MetaName); n != "" {
		return n
	}
	return rec.EntityID()
}

// Assemble renders candidates with a default Assembler.
func Assemble(ranked []domain.RetrievalCandidate, tokenBudget int) string {
	return NewAssembler().Assemble(ranked, tokenBudget)
}
