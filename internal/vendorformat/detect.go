// Package vendorformat classifies each conversation object as vendor-A
// (tree-structured, per-message model metadata) or vendor-B (flat message
// array, single implicit model), and normalizes both into the common
// CleanedMessage shape (§4.3).
package vendorformat

import (
	"encoding/json"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

type shapeProbe struct {
	Mapping      json.RawMessage `json:"mapping"`
	ChatMessages json.RawMessage `json:"chat_messages"`
}

// Detect classifies a single conversation object. A conversation is
// vendor-A iff it has a "mapping" object, vendor-B iff it has a
// "chat_messages" array; otherwise unknown.
func Detect(raw json.RawMessage) models.ExportFormat {
	var probe shapeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return models.FormatUnknown
	}
	if len(probe.Mapping) > 0 && string(probe.Mapping) != "null" {
		return models.FormatOpenAI
	}
	if len(probe.ChatMessages) > 0 && string(probe.ChatMessages) != "null" {
		return models.FormatAnthropic
	}
	return models.FormatUnknown
}
