package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/types"
)

// DefaultRecallLimit caps how many memories are injected per turn.
const DefaultRecallLimit = 5

// Recaller selects the memories most relevant to an incoming turn and
// renders them as a preamble message.
type Recaller struct {
	store  Store
	limit  int
	logger zerolog.Logger
}

// NewRecaller creates a Recaller over the given store.
func NewRecaller(store Store, limit int, logger zerolog.Logger) *Recaller {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}
	return &Recaller{store: store, limit: limit, logger: logger}
}

// Recall ranks the user's memories against the query and returns the best
// matches, recording a usage event for each. A usage-tracking failure is
// logged and swallowed; recall itself still succeeds.
func (r *Recaller) Recall(ctx context.Context, userID, query string) ([]*Memory, error) {
	candidates, err := r.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := RankBM25(query, candidates, r.limit)
	if len(scored) == 0 {
		return nil, nil
	}

	memories := make([]*Memory, len(scored))
	ids := make([]string, len(scored))
	for i, s := range scored {
		memories[i] = s.Memory
		ids[i] = s.Memory.ID
	}

	if err := r.store.RecordUsage(ctx, ids); err != nil {
		r.logger.Warn().Err(err).Int("count", len(ids)).Msg("failed to record memory usage")
	}
	return memories, nil
}

// PreambleMessage renders recalled memories as the per-turn context message.
// It carries the memory preamble marker so compaction drops it instead of
// summarizing stale recall output. Returns nil when there is nothing to say.
func PreambleMessage(sessionID string, memories []*Memory) *types.Message {
	if len(memories) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(summarizer.MemoryPreambleMarker)
	for _, mem := range memories {
		sb.WriteString("\n- ")
		sb.WriteString(mem.Content)
	}

	return &types.Message{
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   types.PlainText(sb.String()),
	}
}
