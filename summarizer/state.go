package summarizer

import "encoding/json"

// ContextKeyRunningSummary is the single context-blob key the summarizer
// reads and writes. Every other key is passed through untouched.
const ContextKeyRunningSummary = "running_summary"

// RunningSummary is the compaction state persisted across turns.
//
// It is replaced wholesale on every compaction pass: SummarizedMessageIDs
// holds the identifiers folded into the summary by that pass, not a
// cumulative superset across passes. Messages without identifiers are simply
// omitted; identifiers are never synthesized for them.
type RunningSummary struct {
	// Summary is the cumulative prose summary of compacted history.
	Summary string `json:"summary"`

	// SummarizedMessageIDs is the set of message identifiers sent to the
	// model in the most recent pass.
	SummarizedMessageIDs map[string]bool `json:"summarized_message_ids"`

	// LastSummarizedMessageID is the identifier of the chronologically
	// last summarized message that had one, or empty if none did. Kept
	// for external bookkeeping only.
	LastSummarizedMessageID string `json:"last_summarized_message_id"`
}

// RunningSummaryFromContext extracts the prior running summary from a
// context blob. It tolerates both in-process values and JSON-decoded maps,
// since the blob round-trips through caller-owned persistence.
func RunningSummaryFromContext(convContext map[string]any) (*RunningSummary, bool) {
	if convContext == nil {
		return nil, false
	}
	raw, ok := convContext[ContextKeyRunningSummary]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case *RunningSummary:
		return v, true
	case RunningSummary:
		return &v, true
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var rs RunningSummary
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, false
		}
		return &rs, true
	default:
		return nil, false
	}
}

// cloneContext shallow-copies a context blob so the caller's map is never
// mutated in place.
func cloneContext(convContext map[string]any) map[string]any {
	clone := make(map[string]any, len(convContext)+1)
	for k, v := range convContext {
		clone[k] = v
	}
	return clone
}
