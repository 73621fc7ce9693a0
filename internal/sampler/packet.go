package sampler

import (
	"fmt"
	"strings"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// EffectivePerConversationCharBudget derives the per-conversation char cap
// from the configured per-conversation and total budgets (§4.5).
func EffectivePerConversationCharBudget(maxCharsPerConversation, maxTotalChars, selectedCount int) int {
	if selectedCount < 1 {
		selectedCount = 1
	}
	fromTotal := maxTotalChars / selectedCount
	if fromTotal < 1 {
		fromTotal = 1
	}
	if fromTotal < maxCharsPerConversation {
		return fromTotal
	}
	return maxCharsPerConversation
}

// BuildPacket walks messages in order, appending "[role] content\n" lines
// until the next line would exceed the char or message-count budget.
// Packets with zero messages used or an empty trimmed transcript are
// signaled via the ok return value (§4.5).
func BuildPacket(conversationID, sourceFile string, messages []models.CleanedMessage, perConversationCharBudget, maxMessagesPerConversation int) (models.ConversationPacket, bool) {
	var b strings.Builder
	messagesUsed := 0

	for _, m := range messages {
		if maxMessagesPerConversation > 0 && messagesUsed >= maxMessagesPerConversation {
			break
		}

		line := fmt.Sprintf("[%s] %s\n", m.Role, m.Text)
		if b.Len()+len(line) > perConversationCharBudget {
			break
		}

		b.WriteString(line)
		messagesUsed++
	}

	transcript := b.String()
	if messagesUsed == 0 || strings.TrimSpace(transcript) == "" {
		return models.ConversationPacket{}, false
	}

	return models.ConversationPacket{
		ConversationID: conversationID,
		SourceFile:     sourceFile,
		Transcript:     transcript,
		MessagesUsed:   messagesUsed,
		CharCount:      len(transcript),
		TokenEstimate:  estimateTokens(transcript),
	}, true
}

func estimateTokens(s string) int {
	n := len(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
