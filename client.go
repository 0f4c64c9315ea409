package fintalk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/hooks"
	"github.com/fintalk/fintalk/llm"
	"github.com/fintalk/fintalk/memory"
	"github.com/fintalk/fintalk/prompts"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/streaming"
	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/tokens"
	"github.com/fintalk/fintalk/tools"
	"github.com/fintalk/fintalk/types"
)

// Version is the current fintalk version
const Version = "1.0.0"

// Defaults for option-controlled settings.
const (
	DefaultTailTokenBudget  = 20000
	DefaultSummaryMaxTokens = 500
)

// ChatModel runs one chat turn against the model. *llm.Client is the
// production implementation.
type ChatModel interface {
	Complete(ctx context.Context, system string, history []types.Message, tools []llm.ToolDef, onDelta llm.TextDelta) (types.Message, error)
}

// Config holds the required collaborators for a Client.
type Config struct {
	// Store persists sessions and conversation history (required)
	Store store.Store

	// Memories persists durable user facts (required)
	Memories memory.Store

	// Chat runs agent turns against the model (required)
	Chat ChatModel

	// Summary generates history summaries for compaction (optional)
	// When nil, auto compaction is disabled.
	Summary summarizer.Model
}

// Client is the conversation engine: it routes turns through the supervisor,
// runs the selected agent's tool loop, and compacts history afterwards.
type Client struct {
	store    store.Store
	memories memory.Store
	chat     ChatModel
	recaller *memory.Recaller
	summ     *summarizer.Summarizer
	hooks    *hooks.Registry
	logger   zerolog.Logger

	autoCompaction bool
}

// NewClient creates a Client from the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if cfg.Memories == nil {
		return nil, fmt.Errorf("%w: memory store is required", ErrInvalidConfig)
	}
	if cfg.Chat == nil {
		return nil, fmt.Errorf("%w: chat client is required", ErrInvalidConfig)
	}

	ic := &internalConfig{
		logger:           zerolog.Nop(),
		autoCompaction:   true,
		tailTokenBudget:  DefaultTailTokenBudget,
		summaryMaxTokens: DefaultSummaryMaxTokens,
		recallLimit:      memory.DefaultRecallLimit,
		hooks:            hooks.NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(ic); err != nil {
			return nil, err
		}
	}

	if ic.tokenCounter == nil {
		counter, err := tokens.NewCounter()
		if err != nil {
			ic.logger.Warn().Err(err).Msg("tokenizer unavailable, falling back to approximate counting")
			counter = tokens.NewApproximateCounter()
		}
		ic.tokenCounter = counter.Count
	}

	c := &Client{
		store:          cfg.Store,
		memories:       cfg.Memories,
		chat:           cfg.Chat,
		recaller:       memory.NewRecaller(cfg.Memories, ic.recallLimit, ic.logger),
		hooks:          ic.hooks,
		logger:         ic.logger,
		autoCompaction: ic.autoCompaction && cfg.Summary != nil,
	}

	if cfg.Summary != nil {
		summ, err := summarizer.New(summarizer.Config{
			Model:            cfg.Summary,
			TokenCounter:     ic.tokenCounter,
			TailTokenBudget:  ic.tailTokenBudget,
			SummaryMaxTokens: ic.summaryMaxTokens,
			Logger:           zerologAdapter{ic.logger},
		})
		if err != nil {
			return nil, err
		}
		c.summ = summ
	}

	return c, nil
}

// Hooks returns the hook registry for this client.
func (c *Client) Hooks() *hooks.Registry {
	return c.hooks
}

// Store returns the session store for direct access.
func (c *Client) Store() store.Store {
	return c.store
}

// Memories returns the memory store for direct access.
func (c *Client) Memories() memory.Store {
	return c.memories
}

// RunTurn processes one user turn: recall, routing, the agent tool loop,
// persistence, and post-turn compaction. stream may be nil; when set it
// receives lifecycle events for SSE relay and is closed before returning.
func (c *Client) RunTurn(ctx context.Context, sessionID, text string, stream *streaming.Stream) (*types.Message, error) {
	if stream != nil {
		defer stream.Close()
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewAgentErrorWithSession("run turn", sessionID, ErrEmptyMessage)
	}

	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("run turn", sessionID, err)
	}

	userMsg := types.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   types.PlainText(text),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.hooks.TriggerBeforeTurn(ctx, sessionID, &userMsg); err != nil {
		return nil, NewAgentErrorWithSession("before turn hook", sessionID, err)
	}

	// Inject the per-turn context: the profile banner and recalled memories.
	// Both carry noise markers so compaction drops them from history later.
	if err := c.injectTurnContext(ctx, session, text); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("turn context injection failed")
	}

	if err := c.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, NewAgentErrorWithSession("append user message", sessionID, err)
	}

	history, err := c.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("load history", sessionID, err)
	}

	agentName, err := c.route(ctx, session, text)
	if err != nil {
		return nil, NewAgentErrorWithSession("route turn", sessionID, err)
	}
	if stream != nil {
		stream.Publish(&streaming.AgentSelectedEvent{Agent: agentName})
	}
	if agentName != session.ActiveAgent {
		if err := c.store.SetActiveAgent(ctx, sessionID, agentName); err != nil {
			c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to persist active agent")
		}
	}

	reply, handedBack, err := c.runAgentLoop(ctx, session, agentName, history, stream)
	if err != nil {
		if stream != nil {
			stream.Publish(&streaming.ErrorEvent{Message: err.Error()})
		}
		return nil, &AgentError{Op: "agent turn", Agent: agentName, SessionID: sessionID, Err: err}
	}

	reply.ID = uuid.NewString()
	reply.SessionID = sessionID
	reply.CreatedAt = time.Now().UTC()
	if handedBack {
		if reply.ResponseMetadata == nil {
			reply.ResponseMetadata = map[string]any{}
		}
		reply.ResponseMetadata[types.MetadataHandoffBack] = true
		if err := c.store.SetActiveAgent(ctx, sessionID, ""); err != nil {
			c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to clear active agent")
		}
		if stream != nil {
			stream.Publish(&streaming.HandoffEvent{From: agentName, To: "supervisor", Back: true})
		}
	}

	if err := c.store.AppendMessage(ctx, *reply); err != nil {
		return nil, NewAgentErrorWithSession("append reply", sessionID, err)
	}

	if err := c.hooks.TriggerAfterTurn(ctx, sessionID, reply); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("after turn hook failed")
	}
	if stream != nil {
		event := &streaming.TurnCompleteEvent{MessageID: reply.ID}
		if reply.Usage != nil {
			event.InputTokens = reply.Usage.InputTokens
			event.OutputTokens = reply.Usage.OutputTokens
		}
		stream.Publish(event)
	}

	if c.autoCompaction {
		c.compactSession(ctx, sessionID)
	}

	return reply, nil
}

// Compact runs one compaction pass over the session history. Returns the
// result, or nil when nothing changed.
func (c *Client) Compact(ctx context.Context, sessionID string) (*summarizer.Result, error) {
	if c.summ == nil {
		return nil, fmt.Errorf("%w: no summary model configured", ErrInvalidConfig)
	}

	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("compact", sessionID, err)
	}
	history, err := c.store.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, NewAgentErrorWithSession("compact", sessionID, err)
	}

	if err := c.hooks.TriggerBeforeCompaction(ctx, sessionID); err != nil {
		return nil, NewAgentErrorWithSession("before compaction hook", sessionID, err)
	}

	result := c.summ.Summarize(ctx, history, session.Context)
	if result == nil {
		return nil, nil
	}

	if err := c.applyCompaction(ctx, sessionID, result); err != nil {
		return nil, err
	}
	if err := c.hooks.TriggerAfterCompaction(ctx, sessionID, result); err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("after compaction hook failed")
	}
	return result, nil
}

// compactSession is the post-turn compaction path. Failures are logged and
// swallowed; the turn already succeeded.
func (c *Client) compactSession(ctx context.Context, sessionID string) {
	result, err := c.Compact(ctx, sessionID)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("post-turn compaction failed")
		return
	}
	if result != nil {
		c.logger.Info().
			Str("session_id", sessionID).
			Int("messages_after", len(result.Messages)).
			Msg("session history compacted")
	}
}

// applyCompaction rewrites the stored history and context from a compaction
// result. The removal marker clears prior history; what follows it is the
// replacement.
func (c *Client) applyCompaction(ctx context.Context, sessionID string, result *summarizer.Result) error {
	replacement := make([]types.Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		if msg.ID == summarizer.RemoveAllMessageID || msg.Role == types.RoleRemove {
			continue
		}
		replacement = append(replacement, msg)
	}

	if err := c.store.ReplaceMessages(ctx, sessionID, replacement); err != nil {
		return NewAgentErrorWithSession("apply compaction", sessionID, err)
	}
	if err := c.store.UpdateSessionContext(ctx, sessionID, result.Context); err != nil {
		return NewAgentErrorWithSession("persist session context", sessionID, err)
	}
	return nil
}

// injectTurnContext appends the profile banner and the recalled-memory
// preamble ahead of the user's message.
func (c *Client) injectTurnContext(ctx context.Context, session *store.Session, query string) error {
	memories, err := c.memories.ListByUser(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}

	if fields := profileFields(memories); len(fields) > 0 {
		banner := types.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Role:      types.RoleUser,
			Content:   types.PlainText(prompts.ContextBanner(fields, tools.ProfileFields)),
			CreatedAt: time.Now().UTC(),
		}
		if err := c.store.AppendMessage(ctx, banner); err != nil {
			return fmt.Errorf("append context banner: %w", err)
		}
	}

	recalled, err := c.recaller.Recall(ctx, session.UserID, query)
	if err != nil {
		return fmt.Errorf("recall memories: %w", err)
	}
	if preamble := memory.PreambleMessage(session.ID, recalled); preamble != nil {
		preamble.ID = uuid.NewString()
		preamble.CreatedAt = time.Now().UTC()
		if err := c.store.AppendMessage(ctx, *preamble); err != nil {
			return fmt.Errorf("append memory preamble: %w", err)
		}
	}
	return nil
}

// profileFields extracts "Profile field: value" memories into a field map,
// newest value winning.
func profileFields(memories []*memory.Memory) map[string]string {
	fields := map[string]string{}
	for _, mem := range memories {
		if mem.Category != "profile" {
			continue
		}
		rest, ok := strings.CutPrefix(mem.Content, "Profile ")
		if !ok {
			continue
		}
		key, value, ok := strings.Cut(rest, ": ")
		if !ok {
			continue
		}
		fields[key] = value
	}
	return fields
}

// zerologAdapter bridges zerolog to the summarizer's slog-style logger.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (a zerologAdapter) log(ev *zerolog.Event, msg string, args ...any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

func (a zerologAdapter) Debug(msg string, args ...any) { a.log(a.logger.Debug(), msg, args...) }
func (a zerologAdapter) Info(msg string, args ...any)  { a.log(a.logger.Info(), msg, args...) }
func (a zerologAdapter) Warn(msg string, args ...any)  { a.log(a.logger.Warn(), msg, args...) }
func (a zerologAdapter) Error(msg string, args ...any) { a.log(a.logger.Error(), msg, args...) }
