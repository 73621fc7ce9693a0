// Package models defines the data shapes shared across the extraction,
// sampling, and generation stages of the pipeline.
package models

import "math"

// Role is the speaker role of a cleaned message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ExportFormat identifies which vendor export shape a conversation came from.
type ExportFormat string

const (
	FormatOpenAI    ExportFormat = "openai"
	FormatAnthropic ExportFormat = "anthropic"
	FormatUnknown   ExportFormat = "unknown"
)

// CleanedMessage is the common normalized shape both vendor exporters produce.
type CleanedMessage struct {
	ID          string   `json:"id,omitempty"`
	Role        Role     `json:"role"`
	Name        string   `json:"name,omitempty"`
	CreateTime  *float64 `json:"create_time"`
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts,omitempty"`
	Text        string   `json:"text"`
	Model       string   `json:"model,omitempty"`
}

// ConversationScore is the weight input for sampling.
type ConversationScore struct {
	FileName       string
	FilePath       string
	AssistantChars int
	AssistantTurns int
	Turns          int
}

// Weight implements the §4.5 scoring formula.
func (s ConversationScore) Weight() float64 {
	chars := s.AssistantChars
	if chars < 1 {
		chars = 1
	}
	w := math.Sqrt(float64(chars)) + 0.5*float64(s.AssistantTurns) + 0.15*float64(s.Turns)
	if w < 1 {
		w = 1
	}
	return w
}

// ConversationPacket is a token-budgeted transcript ready to be injected
// into an LLM prompt.
type ConversationPacket struct {
	ConversationID string
	SourceFile     string
	Transcript     string
	MessagesUsed   int
	CharCount      int
	TokenEstimate  int
}

// ModelExportEntry records the on-disk state of one model's extraction
// under one source fingerprint.
type ModelExportEntry struct {
	FileCount          int    `json:"fileCount"`
	ReusedExtraction   bool   `json:"reusedExtraction"`
	ExtractedInLastRun bool   `json:"extractedInLastRun"`
	UpdatedAt          string `json:"updatedAt"`
}

// ExtractionCacheManifest is the persisted state of the per-source cache (C4).
type ExtractionCacheManifest struct {
	SourceFilePath     string                      `json:"sourceFilePath"`
	SourceFileSizeByte int64                       `json:"sourceFileSizeBytes"`
	SourceFileMtimeMs  int64                       `json:"sourceFileMtimeMs"`
	SourceFingerprint  string                      `json:"sourceFingerprint"`
	CacheRoot          string                      `json:"cacheRoot"`
	ModelExportsDir    string                      `json:"modelExportsDir"`
	Models             map[string]ModelExportEntry `json:"models"`
}

// ScannedFileInfo records one memory-stage scan of a conversation file.
type ScannedFileInfo struct {
	FileSize    int64  `json:"fileSize"`
	FileMtimeMs int64  `json:"fileMtimeMs"`
	ScannedAt   string `json:"scannedAtUtc"`
}

// ScanManifest tracks which conversation files have been processed by the
// memory-extraction stage of a given run.
type ScanManifest struct {
	InputDir      string                      `json:"inputDir"`
	CreatedAtUtc  string                      `json:"createdAtUtc"`
	UpdatedAtUtc  string                      `json:"updatedAtUtc"`
	ScannedFiles  map[string]ScannedFileInfo  `json:"scannedFiles"`
}

// PersonaObservation is the parsed per-conversation persona extraction payload.
type PersonaObservation struct {
	ConversationID      string   `json:"conversation_id"`
	ObservedTraits      []string `json:"observed_traits"`
	VoiceMarkers        []string `json:"voice_markers"`
	RelationalPatterns  []string `json:"relational_patterns"`
	EmotionalDynamics   []string `json:"emotional_dynamics"`
	EvidenceSnippets    []string `json:"evidence_snippets"`
}

// MemoryCandidate is a raw memory proposal before dedup/compaction.
type MemoryCandidate struct {
	Name              string `json:"name"`
	Keys              []string `json:"keys"`
	Content           string `json:"content"`
	Category          string `json:"category"`
	Priority          int    `json:"priority"`
	SourceConversation string `json:"sourceConversation,omitempty"`
	SourceDate        string `json:"sourceDate,omitempty"`
}

// LorebookEntry is a compacted, keyed memory ready for retrieval injection.
type LorebookEntry struct {
	Name               string `json:"name"`
	Keys               []string `json:"keys"`
	Content            string `json:"content"`
	Category           string `json:"category"`
	Priority           int    `json:"priority"`
	SourceConversation string `json:"sourceConversation,omitempty"`
	SourceDate         string `json:"sourceDate,omitempty"`
}

// ResumeCheckpoint is the durable state that makes a run resumable.
type ResumeCheckpoint struct {
	Version                       int                            `json:"version"`
	Signature                     string                         `json:"signature"`
	CreatedAtUtc                  string                          `json:"createdAtUtc"`
	UpdatedAtUtc                  string                          `json:"updatedAtUtc"`
	PersonaObservationsByConvID   map[string]PersonaObservation   `json:"personaObservationsByConversation"`
	MemoryCandidatesBySourceFile  map[string][]MemoryCandidate    `json:"memoryCandidatesBySourceFile"`
	ProcessedMemoryFiles          []string                        `json:"processedMemoryFiles"`
}

// CharacterCardDraft is the structured payload shaped into a Character Card V3.
type CharacterCardDraft struct {
	Name                     string   `json:"name"`
	Description              string   `json:"description"`
	Personality              string   `json:"personality"`
	Scenario                 string   `json:"scenario"`
	FirstMes                 string   `json:"first_mes"`
	MesExample               string   `json:"mes_example"`
	CreatorNotes             string   `json:"creator_notes"`
	Tags                     []string `json:"tags"`
	SystemPrompt             string   `json:"system_prompt"`
	PostHistoryInstructions  string   `json:"post_history_instructions"`
	AlternateGreetings       []string `json:"alternate_greetings"`
}

// GenerationMode distinguishes a full run from an append-memories run.
type GenerationMode string

const (
	ModeFull            GenerationMode = "full"
	ModeAppendMemories  GenerationMode = "appendMemories"
)

// SamplingPolicy is one of the three selection strategies (§4.5).
type SamplingPolicy string

const (
	PolicyTop            SamplingPolicy = "top"
	PolicyRandomUniform  SamplingPolicy = "random-uniform"
	PolicyWeightedRandom SamplingPolicy = "weighted-random"
)

// SamplingRequest bundles the §4.5 packet-construction budgets plus policy.
type SamplingRequest struct {
	Policy                     SamplingPolicy
	Seed                       int64
	SampleSize                 int
	MaxMessagesPerConversation int
	MaxCharsPerConversation    int
	MaxTotalChars              int
}

// LLMProviderKind enumerates the four provider contracts named in §6.
type LLMProviderKind string

const (
	ProviderOpenAICompatible LLMProviderKind = "openai"
	ProviderLocal            LLMProviderKind = "ollama"
	ProviderProxy            LLMProviderKind = "openrouter"
	ProviderAnthropic        LLMProviderKind = "anthropic"
)

// LLMConfig describes one provider/model pairing for the client.
type LLMConfig struct {
	Provider       LLMProviderKind
	BaseURL        string
	Model          string
	APIKey         string
	SiteURL        string
	AppName        string
	Temperature    float64
	TimeoutSeconds int
	MaxTokens      int
	ContextWindow  int
}

// GenerationRequest is the top-level input to the generation engine (§4.6.1).
type GenerationRequest struct {
	ModelDir        string
	RunDir          string
	CompanionName   string
	Mode            GenerationMode
	Sampling        SamplingRequest
	LLM             LLMConfig
	PromptOverrides map[string]string
	MaxParallelCalls int
	MaxMemories     int
	ForceRerun      bool
}

// GenerationOutput is everything a completed (or cancelled) run produces.
type GenerationOutput struct {
	Card               CharacterCardDraft
	Lorebook           []LorebookEntry
	PersonaSourceFiles []string
	MemorySourceFiles  []string
	ProcessedFiles     []string
	CheckpointPath     string
	ScanManifestPath   string
	Status             string
	Errors             []string
}

// ProgressPhase enumerates the generation engine's state machine phases (§4.6.2).
type ProgressPhase string

const (
	PhaseInit               ProgressPhase = "init"
	PhasePreflight          ProgressPhase = "preflight"
	PhasePersonaObservation ProgressPhase = "persona_observation"
	PhaseMemoryExtract      ProgressPhase = "memory_extract"
	PhasePersonaSynthesis   ProgressPhase = "persona_synthesis"
	PhaseMemorySynthesis    ProgressPhase = "memory_synthesis"
	PhaseManifest           ProgressPhase = "manifest"
	PhaseDone               ProgressPhase = "done"
)

// ProgressEvent is emitted on every stage transition and LLM call lifecycle
// event (§4.6.11).
type ProgressEvent struct {
	Phase         ProgressPhase
	Message       string
	StartedCalls  int
	CompletedCalls int
	FailedCalls   int
	ActiveCalls   int
	TotalCalls    int
}
