package vendorformat

import (
	"encoding/json"
	"time"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

type vendorBBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type vendorBMessage struct {
	Sender    string         `json:"sender"`
	CreatedAt string         `json:"created_at"`
	Content   []vendorBBlock `json:"content"`
}

// VendorBConversation is the flat message-array export shape.
type VendorBConversation struct {
	UUID         string           `json:"uuid"`
	Name         string           `json:"name"`
	ChatMessages []vendorBMessage `json:"chat_messages"`
}

// ParseVendorB unmarshals a raw conversation object known to be vendor-B.
func ParseVendorB(raw json.RawMessage) (*VendorBConversation, error) {
	var conv VendorBConversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConversationID returns the export's conversation identifier.
func (c *VendorBConversation) ConversationID() string {
	return c.UUID
}

// CleanMessages normalizes chat_messages into the common shape. Only
// type="text" content blocks are retained; sender=human maps to role=user.
func (c *VendorBConversation) CleanMessages(modelTag string) []models.CleanedMessage {
	out := make([]models.CleanedMessage, 0, len(c.ChatMessages))
	for _, m := range c.ChatMessages {
		role := models.RoleAssistant
		if m.Sender == "human" {
			role = models.RoleUser
		}

		text := ""
		for _, block := range m.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		out = append(out, models.CleanedMessage{
			Role:        role,
			CreateTime:  parseISOTime(m.CreatedAt),
			ContentType: "text",
			Text:        text,
			Model:       modelTag,
		})
	}
	return out
}

func parseISOTime(s string) *float64 {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	unix := float64(t.Unix())
	return &unix
}
