// Package summarizer implements running-summary compaction of conversation
// history under a token budget.
//
// On every turn the caller hands the full conversation so far plus the
// session's context blob to Summarize. The summarizer decides whether
// compaction is needed; if so it keeps a trailing window of messages within
// the tail token budget, folds everything older into a model-generated prose
// summary, and returns a replacement instruction set: a remove-all marker,
// one system summary message, and the kept tail. Injected context banners,
// memory-retrieval preambles, and internal handoff markers are dropped
// entirely - they are never summarized and never kept.
//
// The summarizer holds no state between calls. All persistent state lives in
// the RunningSummary value round-tripped through the caller's context blob.
// A nil result means "do nothing this turn": either everything already fits,
// or the summarization model failed and the pass was abandoned. A broken
// summarizer must never corrupt or truncate conversation state, so every
// failure mode degrades to a no-op.
//
// Callers are responsible for serializing compaction per conversation;
// concurrent Summarize calls for different conversations are independent.
package summarizer
