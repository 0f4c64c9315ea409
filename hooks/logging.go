package hooks

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/types"
)

// RegisterLogging wires structured logging hooks for every lifecycle point.
func RegisterLogging(registry *Registry, logger zerolog.Logger) {
	registry.OnBeforeTurn(func(_ context.Context, sessionID string, _ *types.Message) error {
		logger.Debug().Str("session_id", sessionID).Msg("turn started")
		return nil
	})

	registry.OnAfterTurn(func(_ context.Context, sessionID string, reply *types.Message) error {
		ev := logger.Info().Str("session_id", sessionID)
		if reply != nil {
			ev = ev.Str("message_id", reply.ID)
			if reply.Usage != nil {
				ev = ev.Int("input_tokens", reply.Usage.InputTokens).
					Int("output_tokens", reply.Usage.OutputTokens)
			}
		}
		ev.Msg("turn complete")
		return nil
	})

	registry.OnToolCall(func(_ context.Context, toolName string, _ json.RawMessage, output string, err error) error {
		if err != nil {
			logger.Warn().Str("tool", toolName).Err(err).Msg("tool call failed")
			return nil
		}
		preview := output
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		logger.Debug().Str("tool", toolName).Str("output", preview).Msg("tool call succeeded")
		return nil
	})

	registry.OnBeforeCompaction(func(_ context.Context, sessionID string) error {
		logger.Debug().Str("session_id", sessionID).Msg("compaction started")
		return nil
	})

	registry.OnAfterCompaction(func(_ context.Context, sessionID string, result *summarizer.Result) error {
		logger.Info().
			Str("session_id", sessionID).
			Int("messages_after", len(result.Messages)).
			Msg("compaction rewrote history")
		return nil
	})
}
