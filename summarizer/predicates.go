package summarizer

import (
	"strings"

	"github.com/fintalk/fintalk/types"
)

// Markers identifying injected, non-conversational messages. Messages whose
// text starts with one of these prefixes carry pipeline plumbing, not user
// dialogue, and must not linger in compacted state.
const (
	// ContextProfileMarker prefixes user-profile context injected ahead of
	// a turn.
	ContextProfileMarker = "CONTEXT_PROFILE:"

	// MemoryPreambleMarker prefixes recalled-memory preambles injected by
	// the memory store.
	MemoryPreambleMarker = "Relevant context for tailoring this turn:"
)

// Predicate decides whether a message participates in a compaction pool.
type Predicate func(msg types.Message) bool

// DefaultIncludeInSummary is the default eligibility predicate for the head
// (to-be-summarized) pool. It excludes noise: system messages, injected
// context and memory banners, and internal handoff-back markers.
func DefaultIncludeInSummary(msg types.Message) bool {
	return !isNoise(msg)
}

// DefaultIncludeInTail is the default eligibility predicate for the kept
// tail. It applies the same noise filter as DefaultIncludeInSummary; a
// message excluded by both predicates is dropped outright on compaction.
func DefaultIncludeInTail(msg types.Message) bool {
	return !isNoise(msg)
}

func isNoise(msg types.Message) bool {
	if msg.Role == types.RoleSystem {
		return true
	}
	text := msg.Content.Text()
	if strings.HasPrefix(text, ContextProfileMarker) || strings.HasPrefix(text, MemoryPreambleMarker) {
		return true
	}
	return msg.IsHandoffBack()
}
