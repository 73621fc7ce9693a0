package vendorformat

import (
	"encoding/json"
	"sort"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// OrderingPolicy selects how vendor-A messages are linearized out of their
// tree shape (§4.3).
type OrderingPolicy string

const (
	OrderingTime        OrderingPolicy = "time"
	OrderingCurrentPath OrderingPolicy = "current-path"
)

var modelMetadataKeys = []string{"model_slug", "default_model_slug", "model"}

type vendorANode struct {
	Message *vendorAMessage `json:"message"`
	Parent  *string         `json:"parent"`
}

type vendorAMessage struct {
	ID      string `json:"id"`
	Author  *struct {
		Role string `json:"role"`
	} `json:"author"`
	Content *struct {
		ContentType string          `json:"content_type"`
		Parts       []json.RawMessage `json:"parts"`
	} `json:"content"`
	Metadata   map[string]json.RawMessage `json:"metadata"`
	CreateTime *float64                   `json:"create_time"`
}

// VendorAConversation is the tree-structured export shape.
type VendorAConversation struct {
	ID          string                 `json:"conversation_id"`
	AltID       string                 `json:"id"`
	Title       string                 `json:"title"`
	Mapping     map[string]vendorANode `json:"mapping"`
	CurrentNode *string                `json:"current_node"`
}

// ParseVendorA unmarshals a raw conversation object known to be vendor-A.
func ParseVendorA(raw json.RawMessage) (*VendorAConversation, error) {
	var conv VendorAConversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConversationID returns the export's conversation identifier, falling
// back to the alternate "id" field some exports use instead.
func (c *VendorAConversation) ConversationID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.AltID
}

// orderedMessages returns (nodeID, message) pairs for nodes whose message
// has a role in roles, in tree order under the given policy.
func (c *VendorAConversation) orderedMessages(roles map[models.Role]bool, policy OrderingPolicy) []*vendorAMessage {
	switch policy {
	case OrderingCurrentPath:
		return c.currentPathMessages(roles)
	default:
		return c.timeOrderedMessages(roles)
	}
}

func (c *VendorAConversation) timeOrderedMessages(roles map[models.Role]bool) []*vendorAMessage {
	type entry struct {
		hasTime bool
		time    float64
		order   int
		msg     *vendorAMessage
	}

	var entries []entry
	order := 0
	for _, node := range c.Mapping {
		msg := node.Message
		if msg == nil || msg.Author == nil {
			continue
		}
		role := models.Role(msg.Author.Role)
		if !roles[role] {
			continue
		}
		e := entry{order: order, msg: msg}
		if msg.CreateTime != nil {
			e.hasTime = true
			e.time = *msg.CreateTime
		}
		entries = append(entries, e)
		order++
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].hasTime != entries[j].hasTime {
			return !entries[i].hasTime
		}
		if entries[i].hasTime {
			return entries[i].time < entries[j].time
		}
		return entries[i].order < entries[j].order
	})

	out := make([]*vendorAMessage, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

func (c *VendorAConversation) currentPathMessages(roles map[models.Role]bool) []*vendorAMessage {
	if c.CurrentNode == nil {
		return nil
	}

	var collected []*vendorAMessage
	visited := make(map[string]bool)
	nodeID := *c.CurrentNode

	for nodeID != "" {
		if visited[nodeID] {
			break
		}
		visited[nodeID] = true

		node, ok := c.Mapping[nodeID]
		if !ok {
			break
		}
		if node.Message != nil && node.Message.Author != nil {
			role := models.Role(node.Message.Author.Role)
			if roles[role] {
				collected = append(collected, node.Message)
			}
		}
		if node.Parent == nil {
			break
		}
		nodeID = *node.Parent
	}

	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected
}

// CleanMessages normalizes the requested roles into the common shape.
func (c *VendorAConversation) CleanMessages(roles []models.Role, policy OrderingPolicy) []models.CleanedMessage {
	roleSet := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}

	msgs := c.orderedMessages(roleSet, policy)
	out := make([]models.CleanedMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, cleanVendorAMessage(m))
	}
	return out
}

func cleanVendorAMessage(m *vendorAMessage) models.CleanedMessage {
	cm := models.CleanedMessage{
		ID:         m.ID,
		Role:       models.Role(m.Author.Role),
		CreateTime: m.CreateTime,
		Model:      firstModelKey(m.Metadata),
	}

	if m.Content != nil {
		cm.ContentType = m.Content.ContentType
		allStrings := true
		parts := make([]string, 0, len(m.Content.Parts))
		for _, part := range m.Content.Parts {
			var s string
			if json.Unmarshal(part, &s) != nil {
				allStrings = false
				continue
			}
			parts = append(parts, s)
		}
		cm.Parts = parts
		if allStrings && len(parts) > 0 {
			cm.Text = joinParts(parts)
		}
	}

	return cm
}

func joinParts(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func firstModelKey(metadata map[string]json.RawMessage) string {
	if metadata == nil {
		return ""
	}
	for _, key := range modelMetadataKeys {
		raw, ok := metadata[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// ModelCounts is the result of per-conversation model discovery: message
// counts and conversation-occurrence counts, keyed by model tag.
type ModelCounts struct {
	MessageCounts      map[string]int
	ConversationCounts map[string]int
}

// DiscoverModels scans assistant messages for model metadata and tallies
// message counts plus a single per-conversation occurrence per model.
func (c *VendorAConversation) DiscoverModels() ModelCounts {
	messageCounts := make(map[string]int)
	seenInConversation := make(map[string]bool)

	for _, node := range c.Mapping {
		msg := node.Message
		if msg == nil || msg.Author == nil || msg.Author.Role != string(models.RoleAssistant) {
			continue
		}
		model := firstModelKey(msg.Metadata)
		if model == "" {
			continue
		}
		messageCounts[model]++
		seenInConversation[model] = true
	}

	conversationCounts := make(map[string]int, len(seenInConversation))
	for model := range seenInConversation {
		conversationCounts[model] = 1
	}

	return ModelCounts{MessageCounts: messageCounts, ConversationCounts: conversationCounts}
}

// PrimaryModel selects the model with the highest message count in counts,
// breaking ties by picking the lexicographically greater string (§4.3).
func PrimaryModel(messageCounts map[string]int) string {
	var best string
	var bestCount int
	first := true

	for model, count := range messageCounts {
		switch {
		case first:
			best, bestCount, first = model, count, false
		case count > bestCount:
			best, bestCount = model, count
		case count == bestCount && model > best:
			best = model
		}
	}
	return best
}
