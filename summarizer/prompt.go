package summarizer

import (
	"fmt"
	"strings"

	"github.com/fintalk/fintalk/types"
)

// summarySystemInstruction heads the compaction prompt. The model is asked
// for bullet prose because bullets survive repeated re-summarization better
// than narrative paragraphs.
const summarySystemInstruction = `You maintain the running summary of an ongoing conversation between a user and a financial assistant.

Condense the conversation below into concise prose bullets. Each bullet captures exactly one fact, decision, or request. Preserve names, amounts, dates, and goals verbatim. Do not add information that is not in the conversation. Do not address the user. Output only the bullets.`

// BuildSummaryPrompt assembles the single prompt sent to the summarization
// model: the standing instruction, the previous summary when one exists (so
// each pass produces a fresh cumulative summary), the advisory length cap,
// and the head messages as a labeled transcript.
func BuildSummaryPrompt(previousSummary string, head []types.Message, maxTokens int) string {
	var sb strings.Builder
	sb.WriteString(summarySystemInstruction)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Keep the summary under approximately %d tokens.\n\n", maxTokens)

	if previousSummary != "" {
		sb.WriteString("<previous_summary>\n")
		sb.WriteString(previousSummary)
		sb.WriteString("\n</previous_summary>\n\n")
		sb.WriteString("Carry forward everything from the previous summary that is still relevant, merged with the new conversation below.\n\n")
	}

	sb.WriteString("<conversation>\n")
	sb.WriteString(formatTranscript(head))
	sb.WriteString("</conversation>")
	return sb.String()
}

func formatTranscript(messages []types.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(roleLabel(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content.Text())
		sb.WriteString("\n")
	}
	return sb.String()
}

func roleLabel(role types.Role) string {
	switch role {
	case types.RoleAssistant:
		return "Assistant"
	case types.RoleSystem:
		return "System"
	default:
		return "User"
	}
}
