// Package persona holds the character configuration records the gateway's
// callers consume: who the engine is pretending to be, how mouthy it is,
// and the book of canned taunt lines used when the language model is
// unreachable.
//
// These are plain read-only records loaded at process start. There is no
// CRUD surface — editing a character means editing its files.
package persona

import (
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is one character: identity, a voice prompt for persona-flavored
// completions, and the taunt knobs.
type Profile struct {
	ID          string      `yaml:"id" json:"id"`
	Description string      `yaml:"description" json:"description"`
	Voice       string      `yaml:"voice" json:"voice"`
	Taunts      TauntConfig `yaml:"taunts" json:"taunts"`
}

// TauntConfig tunes when and how the character talks trash.
type TauntConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	File    string `yaml:"file" json:"file"`

	// Intensity is the percentage chance of speaking at all (0–100).
	Intensity int `yaml:"intensity" json:"intensity"`

	// Rudeness steers line selection (0–100): low values avoid lines
	// tagged rude, high values avoid lines tagged polite.
	Rudeness int `yaml:"rudeness" json:"rudeness"`

	// WhenLosing damps taunting while the engine is behind (0–100):
	// the percentage chance a losing-side event still gets a line.
	WhenLosing int `yaml:"when_losing" json:"whenLosing"`
}

// DefaultProfile returns the built-in character, tuned to the same values
// the engine ships with: always talking, middle-of-the-road rudeness, half
// as chatty when losing.
func DefaultProfile() Profile {
	return Profile{
		ID:          "default",
		Description: "Default coachgate character profile",
		Taunts: TauntConfig{
			Enabled:    true,
			File:       "taunts.txt",
			Intensity:  100,
			Rudeness:   50,
			WhenLosing: 50,
		},
	}
}

// LoadProfile reads a character record from a YAML file. Fields the file
// leaves out keep their defaults, so a profile can be just an id and a
// voice line.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &profile, nil
}

// ---------------------------------------------------------------------------
// Speak-or-stay-quiet decision
// ---------------------------------------------------------------------------

// ShouldSpeak rolls the dice on whether this game event deserves a remark
// at all, honoring the intensity and when-losing knobs.
func (c TauntConfig) ShouldSpeak(cat Category) bool {
	return c.shouldSpeak(cat, rand.IntN)
}

// shouldSpeak is the deterministic core; intn is injected so tests can pin
// the dice.
func (c TauntConfig) shouldSpeak(cat Category, intn func(int) int) bool {
	if !c.Enabled || c.Intensity <= 0 {
		return false
	}

	// Nobody likes a sore loser who won't shut up. Losing-side events get
	// an extra damping roll.
	if (cat == Losing || cat == Disadvantage) && c.WhenLosing < 100 {
		if intn(100) >= c.WhenLosing {
			return false
		}
	}

	if c.Intensity >= 100 {
		return true
	}
	return intn(100) < c.Intensity
}
