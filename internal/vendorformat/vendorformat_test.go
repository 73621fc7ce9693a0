package vendorformat

import (
	"encoding/json"
	"testing"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

func TestDetect_VendorA(t *testing.T) {
	raw := json.RawMessage(`{"mapping": {"n1": {}}}`)
	if got := Detect(raw); got != models.FormatOpenAI {
		t.Errorf("expected FormatOpenAI, got %s", got)
	}
}

func TestDetect_VendorB(t *testing.T) {
	raw := json.RawMessage(`{"chat_messages": []}`)
	if got := Detect(raw); got != models.FormatAnthropic {
		t.Errorf("expected FormatAnthropic, got %s", got)
	}
}

func TestDetect_Unknown(t *testing.T) {
	raw := json.RawMessage(`{"foo": "bar"}`)
	if got := Detect(raw); got != models.FormatUnknown {
		t.Errorf("expected FormatUnknown, got %s", got)
	}
}

// S1: two candidate models across two conversations.
func TestDiscoverModels_S1(t *testing.T) {
	raw := json.RawMessage(`{
		"conversation_id": "conv1",
		"mapping": {
			"a1": {"message": {"author": {"role": "assistant"}, "metadata": {"model_slug": "m-a"}}},
			"a2": {"message": {"author": {"role": "assistant"}, "metadata": {"model_slug": "m-a"}}},
			"a3": {"message": {"author": {"role": "assistant"}, "metadata": {"model_slug": "m-a"}}},
			"a4": {"message": {"author": {"role": "assistant"}, "metadata": {"model_slug": "m-b"}}},
			"u1": {"message": {"author": {"role": "user"}, "metadata": {"model_slug": "m-a"}}}
		}
	}`)
	conv, err := ParseVendorA(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	counts := conv.DiscoverModels()
	if counts.MessageCounts["m-a"] != 3 {
		t.Errorf("expected 3 m-a messages, got %d", counts.MessageCounts["m-a"])
	}
	if counts.MessageCounts["m-b"] != 1 {
		t.Errorf("expected 1 m-b message, got %d", counts.MessageCounts["m-b"])
	}
	if _, ok := counts.MessageCounts["m-a"]; !ok || counts.ConversationCounts["m-a"] != 1 {
		t.Errorf("expected m-a to appear once in conversation counts")
	}
}

func TestPrimaryModel_TieBreaksOnLexicographicallyGreater(t *testing.T) {
	counts := map[string]int{"m-a": 3, "m-b": 3}
	if got := PrimaryModel(counts); got != "m-b" {
		t.Errorf("expected m-b to win tie, got %s", got)
	}
}

func TestPrimaryModel_HighestCountWins(t *testing.T) {
	counts := map[string]int{"m-a": 5, "m-b": 3}
	if got := PrimaryModel(counts); got != "m-a" {
		t.Errorf("expected m-a, got %s", got)
	}
}

func TestVendorAConversation_NonAssistantMessagesIgnored(t *testing.T) {
	raw := json.RawMessage(`{
		"mapping": {
			"u1": {"message": {"author": {"role": "user"}, "metadata": {"model_slug": "m-x"}}},
			"s1": {"message": {"author": {"role": "system"}, "metadata": {"model_slug": "m-y"}}}
		}
	}`)
	conv, err := ParseVendorA(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	counts := conv.DiscoverModels()
	if len(counts.MessageCounts) != 0 {
		t.Errorf("expected no models discovered from non-assistant messages, got %v", counts.MessageCounts)
	}
}

func TestVendorBCleanMessages_FiltersNonTextBlocks(t *testing.T) {
	raw := json.RawMessage(`{
		"uuid": "conv-1",
		"chat_messages": [
			{"sender": "human", "created_at": "2023-11-14T00:00:00Z", "content": [{"type": "text", "text": "hello"}]},
			{"sender": "assistant", "created_at": "2023-11-14T00:01:00Z", "content": [
				{"type": "tool_use", "text": "ignored"},
				{"type": "text", "text": "part one "},
				{"type": "text", "text": "part two"}
			]}
		]
	}`)
	conv, err := ParseVendorB(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	msgs := conv.CleanMessages("claude")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser {
		t.Errorf("expected human->user mapping, got %s", msgs[0].Role)
	}
	if msgs[1].Text != "part one part two" {
		t.Errorf("expected concatenated text blocks, got %q", msgs[1].Text)
	}
}

func TestFilenameBuilder_SchemaAndCollisions(t *testing.T) {
	ts := 1700000000.0
	b := NewFilenameBuilder()

	first := b.Build("m-a", &ts, "conv/a?1", "jsonl")
	if first != "m-a_20231114_conv_a_1.jsonl" {
		t.Errorf("unexpected filename: %s", first)
	}

	second := b.Build("m-a", &ts, "conv/a?1", "jsonl")
	if second != "m-a_20231114_conv_a_1_2.jsonl" {
		t.Errorf("unexpected collision filename: %s", second)
	}

	third := b.Build("m-a", &ts, "conv/a?1", "jsonl")
	if third != "m-a_20231114_conv_a_1_3.jsonl" {
		t.Errorf("unexpected collision filename: %s", third)
	}
}

func TestFilenameBuilder_UnknownDate(t *testing.T) {
	b := NewFilenameBuilder()
	name := b.Build("claude", nil, "conv-1", "json")
	if name != "claude_unknown-date_conv-1.json" {
		t.Errorf("unexpected filename: %s", name)
	}
}

func TestSanitize_TrimsAndReplaces(t *testing.T) {
	if got := Sanitize("__weird/name?here__"); got != "weird_name_here" {
		t.Errorf("unexpected sanitized value: %q", got)
	}
}
