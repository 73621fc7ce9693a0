// Package prompts renders the eight named prompt templates the generation
// engine uses for persona/memory extraction and synthesis, substituting
// single-brace placeholders while preserving the {{user}}/{{char}}
// literal tokens verbatim (§4.6.4).
package prompts

// Role names one of the eight prompt templates (§4.6.4).
type Role string

const (
	PersonaObservationSystem Role = "personaObservationSystem"
	PersonaObservationUser   Role = "personaObservationUser"
	PersonaSynthesisSystem   Role = "personaSynthesisSystem"
	PersonaSynthesisUser     Role = "personaSynthesisUser"
	MemorySystem             Role = "memorySystem"
	MemoryUser               Role = "memoryUser"
	MemorySynthesisSystem    Role = "memorySynthesisSystem"
	MemorySynthesisUser      Role = "memorySynthesisUser"
)

// AllRoles lists every template role the engine expects to be able to
// render.
var AllRoles = []Role{
	PersonaObservationSystem,
	PersonaObservationUser,
	PersonaSynthesisSystem,
	PersonaSynthesisUser,
	MemorySystem,
	MemoryUser,
	MemorySynthesisSystem,
	MemorySynthesisUser,
}
