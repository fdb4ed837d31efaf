package agent

import (
	"fmt"
	"sort"
	"strings"

	"ragchat/types"
)

const HistoryLimit = 10

// FormatHistory renders the last limit turns, oldest first.
func FormatHistory(turns []types.ConversationTurn, limit int) string {
	sorted := make([]types.ConversationTurn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	var sb strings.Builder
	for _, t := range sorted {
		label := "[LLM]"
		if t.Sender == types.SenderUser {
			label = "[User]"
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, t.Content)
	}
	return sb.String()
}

// FormatDomainDescription numbers the document summaries from 1.
func FormatDomainDescription(descriptions []string) string {
	lines := make([]string, len(descriptions))
	for i, d := range descriptions {
		lines[i] = fmt.Sprintf("Document %d: %s\n", i+1, d)
	}
	return strings.Join(lines, "\n")
}

func formatClassifierInput(history, input string) string {
	return fmt.Sprintf("[[Conversation History]]:\n%s\n[[User Input]]:\n%s", history, input)
}

func formatResponderInput(domain, input string, label types.Label, rag, history string) string {
	return fmt.Sprintf("[Context of the Documents]:\n%s\n\n[User Input]:\n%s\n\n[Validator LLM Classification]:\n%s\n\n[RAG Answer]:\n%s\n\n[Conversational History]:\n%s",
		domain, input, label, rag, history)
}
