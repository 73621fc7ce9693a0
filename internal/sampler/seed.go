package sampler

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/axAilotl/companion-keeper/pkg/models"
)

// SeedComponents captures every run-shaping parameter that must be folded
// into a derived seed so that "no seed" runs are reproducible across
// restarts given identical inputs (§4.5).
type SeedComponents struct {
	ResolvedModelDir           string
	PrimaryModel               string
	CompanionName              string
	SampleSize                 int
	SamplingMode               models.SamplingPolicy
	MaxMessagesPerConversation int
	MaxCharsPerConversation    int
	MaxTotalChars              int
	PromptOverrideDigest       string
}

// DeriveSeed produces a stable 32-bit-range hash of the seed components,
// used when the caller does not supply an explicit seed.
func DeriveSeed(c SeedComponents) int64 {
	key := strings.Join([]string{
		c.ResolvedModelDir,
		c.PrimaryModel,
		c.CompanionName,
		fmt.Sprintf("%d", c.SampleSize),
		string(c.SamplingMode),
		fmt.Sprintf("%d", c.MaxMessagesPerConversation),
		fmt.Sprintf("%d", c.MaxCharsPerConversation),
		fmt.Sprintf("%d", c.MaxTotalChars),
		c.PromptOverrideDigest,
	}, "|")

	sum := blake2b.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint32(sum[:4]))
}
