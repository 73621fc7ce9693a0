package engine

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// SignatureInputs are the run-shaping parameters that, taken together,
// determine whether a prior checkpoint may be reused (§3 ResumeCheckpoint,
// property #11).
type SignatureInputs struct {
	ModelDir                   string
	PrimaryModel               string
	CompanionName              string
	SamplingPolicy             string
	SamplingSeed               int64
	MaxMessagesPerConversation int
	MaxCharsPerConversation    int
	MaxTotalChars              int
	ContextWindow              int
}

// ComputeSignature hashes the run-shaping parameters with blake2b, matching
// the fingerprinting approach internal/cache already uses for source files.
func ComputeSignature(in SignatureInputs) string {
	payload := fmt.Sprintf(
		"%s|%s|%s|%s|%d|%d|%d|%d|%d",
		in.ModelDir, in.PrimaryModel, in.CompanionName, in.SamplingPolicy,
		in.SamplingSeed, in.MaxMessagesPerConversation, in.MaxCharsPerConversation,
		in.MaxTotalChars, in.ContextWindow,
	)
	sum := blake2b.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
