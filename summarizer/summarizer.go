package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fintalk/fintalk/types"
)

// RemoveAllMessageID is the reserved identifier of the removal instruction
// that tells the caller to clear all prior history before applying the rest
// of a compaction result.
const RemoveAllMessageID = "__remove_all__"

// summaryHeader prefixes the system message carrying the new summary.
const summaryHeader = "Summary of the conversation so far:\n"

// Model produces a summary for a compaction prompt. The returned content may
// be a plain string or an ordered block sequence; both are normalized via
// types.Content.
type Model interface {
	Invoke(ctx context.Context, prompt string) (types.Content, error)
}

// TokenCounter maps an ordered message sequence to a token count. Any
// monotonic, deterministic counting scheme satisfies the contract.
type TokenCounter func(messages []types.Message) int

// Logger interface for summarizer diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Config holds summarizer configuration. Model, TokenCounter, and the two
// budgets are required; predicates and logger default when nil.
type Config struct {
	// Model generates the summary. Invoked at most once per pass.
	Model Model

	// TokenCounter measures the kept tail against TailTokenBudget.
	TokenCounter TokenCounter

	// TailTokenBudget is the maximum token count the kept tail may consume.
	TailTokenBudget int

	// SummaryMaxTokens is the advisory length cap communicated to the
	// model. It is not independently enforced.
	SummaryMaxTokens int

	// IncludeInSummary decides head-pool eligibility.
	// Default: DefaultIncludeInSummary.
	IncludeInSummary Predicate

	// IncludeInTail decides tail-pool eligibility.
	// Default: DefaultIncludeInTail.
	IncludeInTail Predicate

	// Logger receives a structured event for every swallowed model
	// failure. Default: no-op.
	Logger Logger
}

// Result is a non-empty compaction outcome: the replacement message list
// (remove-all marker, optional system summary, kept tail in original order)
// and the updated context blob. Summarize returns nil when nothing changed.
type Result struct {
	Messages []types.Message
	Context  map[string]any
}

// Summarizer compacts conversation history into a running summary. It is
// stateless across calls; safe for concurrent use across conversations.
type Summarizer struct {
	model            Model
	tokenCounter     TokenCounter
	tailTokenBudget  int
	summaryMaxTokens int
	includeInSummary Predicate
	includeInTail    Predicate
	logger           Logger
}

// New creates a Summarizer from the given configuration.
func New(cfg Config) (*Summarizer, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if cfg.TokenCounter == nil {
		return nil, fmt.Errorf("%w: token counter is required", ErrInvalidConfig)
	}
	if cfg.TailTokenBudget <= 0 {
		return nil, fmt.Errorf("%w: tail_token_budget must be positive, got %d", ErrInvalidConfig, cfg.TailTokenBudget)
	}
	if cfg.SummaryMaxTokens <= 0 {
		return nil, fmt.Errorf("%w: summary_max_tokens must be positive, got %d", ErrInvalidConfig, cfg.SummaryMaxTokens)
	}
	if cfg.IncludeInSummary == nil {
		cfg.IncludeInSummary = DefaultIncludeInSummary
	}
	if cfg.IncludeInTail == nil {
		cfg.IncludeInTail = DefaultIncludeInTail
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Summarizer{
		model:            cfg.Model,
		tokenCounter:     cfg.TokenCounter,
		tailTokenBudget:  cfg.TailTokenBudget,
		summaryMaxTokens: cfg.SummaryMaxTokens,
		includeInSummary: cfg.IncludeInSummary,
		includeInTail:    cfg.IncludeInTail,
		logger:           cfg.Logger,
	}, nil
}

// Summarize runs one compaction pass over the conversation so far.
//
// A nil result means the caller's state is unchanged: the history already
// fits within the tail budget, the input was empty, or the model call failed
// and the pass was abandoned. Model failures never propagate; they are
// logged and the prior state is left intact for a future turn. The input
// context blob is never mutated; a non-nil result carries a shallow copy
// with only the running-summary key replaced.
func (s *Summarizer) Summarize(ctx context.Context, messages []types.Message, convContext map[string]any) *Result {
	if len(messages) == 0 {
		return nil
	}

	tail, boundary := s.selectTail(messages)
	if boundary == 0 {
		// The tail already holds everything within budget.
		return nil
	}

	var head []types.Message
	for _, msg := range messages[:boundary] {
		if s.includeInSummary(msg) {
			head = append(head, msg)
		}
	}

	if len(head) == 0 {
		// Only noise precedes the tail. Injected banners must not linger
		// in state even when there is nothing substantive to compress, so
		// emit a removal without a new summary.
		out := make([]types.Message, 0, len(tail)+1)
		out = append(out, removeAllMessage())
		out = append(out, tail...)
		return &Result{Messages: out, Context: cloneContext(convContext)}
	}

	var previousSummary string
	if prior, ok := RunningSummaryFromContext(convContext); ok {
		previousSummary = prior.Summary
	}

	prompt := BuildSummaryPrompt(previousSummary, head, s.summaryMaxTokens)
	content, err := s.model.Invoke(ctx, prompt)
	if err != nil {
		s.logger.Warn("summarization model call failed, history left untouched",
			"error", err,
			"head_messages", len(head),
			"tail_messages", len(tail),
		)
		return nil
	}

	summaryText := content.Text()
	if strings.TrimSpace(summaryText) == "" {
		s.logger.Warn("summarization model returned empty output, history left untouched",
			"head_messages", len(head),
		)
		return nil
	}

	ids := make(map[string]bool, len(head))
	lastID := ""
	for _, msg := range head {
		if msg.ID == "" {
			continue
		}
		ids[msg.ID] = true
		lastID = msg.ID
	}

	out := make([]types.Message, 0, len(tail)+2)
	out = append(out, removeAllMessage())
	out = append(out, types.Message{
		ID:        uuid.NewString(),
		Role:      types.RoleSystem,
		Content:   types.PlainText(summaryHeader + summaryText),
		CreatedAt: time.Now().UTC(),
	})
	out = append(out, tail...)

	updated := cloneContext(convContext)
	updated[ContextKeyRunningSummary] = &RunningSummary{
		Summary:                 summaryText,
		SummarizedMessageIDs:    ids,
		LastSummarizedMessageID: lastID,
	}
	return &Result{Messages: out, Context: updated}
}

// selectTail walks backward from the newest message, greedily collecting
// tail-eligible messages while the accumulated set stays within budget.
// Ineligible messages are skipped over without breaking the walk; the walk
// stops at the first eligible message that would push the set over budget.
//
// It returns the kept tail in chronological order and the index of the
// earliest tail member. Everything strictly before that index is the head
// region; a boundary of len(messages) means no message fit the tail.
func (s *Summarizer) selectTail(messages []types.Message) ([]types.Message, int) {
	var tail []types.Message
	boundary := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		if !s.includeInTail(messages[i]) {
			continue
		}
		candidate := make([]types.Message, 0, len(tail)+1)
		candidate = append(candidate, messages[i])
		candidate = append(candidate, tail...)
		if s.tokenCounter(candidate) > s.tailTokenBudget {
			break
		}
		tail = candidate
		boundary = i
	}
	return tail, boundary
}

func removeAllMessage() types.Message {
	return types.Message{ID: RemoveAllMessageID, Role: types.RoleRemove}
}
