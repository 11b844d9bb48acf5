package persona

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// Category classifies a game moment the character might comment on.
type Category string

const (
	General       Category = "general"
	Capture       Category = "capture"
	UserBlunder   Category = "user-blunder"
	EngineBlunder Category = "engine-blunder"
	Losing        Category = "losing"
	Winning       Category = "winning"
	Crushing      Category = "crushing"
	Advantage     Category = "advantage"
	Balance       Category = "balance"
	Disadvantage  Category = "disadvantage"
	Escape        Category = "escape"
	Gaining       Category = "gaining"
)

// CategoryFromName parses a category from a section header or an API event
// name. Taunt files use UPPERCASE_WITH_UNDERSCORES; the HTTP surface uses
// lowercase-with-hyphens; both land in the same place. Unknown names fall
// back to General rather than failing — a typo in a taunt file should cost
// one section, not the whole book.
func CategoryFromName(name string) Category {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "capture":
		return Capture
	case "user-blunder":
		return UserBlunder
	case "engine-blunder":
		return EngineBlunder
	case "losing":
		return Losing
	case "winning":
		return Winning
	case "crushing":
		return Crushing
	case "advantage":
		return Advantage
	case "balance":
		return Balance
	case "disadvantage":
		return Disadvantage
	case "escape":
		return Escape
	case "gaining":
		return Gaining
	default:
		return General
	}
}

// Tag bits allow multi-dimensional line selection. Sections without tags
// are neutral and always eligible.
type Tag uint8

const (
	TagRude Tag = 1 << iota
	TagPolite
	TagSelfDep // self-deprecating
	TagStreet  // street / hustler flavor
)

func tagFromName(name string) Tag {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "RUDE":
		return TagRude
	case "POLITE":
		return TagPolite
	case "SELFDEP":
		return TagSelfDep
	case "STREET":
		return TagStreet
	default:
		return 0
	}
}

// Line is one canned remark with its tag bits.
type Line struct {
	Text string
	Tags Tag
}

// Book is a parsed taunt file: canned lines grouped by category. Read-only
// after load.
type Book struct {
	lines map[Category][]Line
}

// LoadBook parses a taunt file. The format is INI-flavored:
//
//	# comment (";" also works)
//	[WINNING;RUDE;STREET]
//	Your position is a crime scene.
//
// A section header is CATEGORY or CATEGORY;TAG;TAG; every non-blank,
// non-comment line below it joins that section with those tags. Lines
// before any header land in GENERAL untagged.
func LoadBook(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening taunt file: %w", err)
	}
	defer f.Close()

	book := &Book{lines: make(map[Category][]Line)}
	current := General
	var currentTags Tag

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.TrimSpace(line[1 : len(line)-1])
			if section == "" {
				continue
			}
			parts := strings.Split(section, ";")
			current = CategoryFromName(parts[0])
			currentTags = 0
			for _, part := range parts[1:] {
				currentTags |= tagFromName(part)
			}
			continue
		}

		book.lines[current] = append(book.lines[current], Line{Text: line, Tags: currentTags})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading taunt file: %w", err)
	}

	return book, nil
}

// Len returns the total number of lines across all categories.
func (b *Book) Len() int {
	n := 0
	for _, v := range b.lines {
		n += len(v)
	}
	return n
}

// Pick selects a random line from the category, honoring the rudeness
// setting. Returns "" when the category is empty.
func (b *Book) Pick(cat Category, rudeness int) string {
	return b.pick(cat, rudeness, rand.IntN)
}

func (b *Book) pick(cat Category, rudeness int, intn func(int) int) string {
	lines := b.lines[cat]
	if len(lines) == 0 {
		return ""
	}

	// First try the rudeness-filtered list; if the filter removed
	// everything, fall back to the full list rather than going silent.
	var candidates []Line
	for _, l := range lines {
		if passRudeness(l, rudeness) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		candidates = lines
	}

	return candidates[intn(len(candidates))].Text
}

// passRudeness applies the rudeness filter: untagged lines always pass,
// low settings avoid RUDE lines, high settings avoid POLITE lines, and the
// mid-range accepts both.
func passRudeness(l Line, rudeness int) bool {
	if l.Tags&(TagRude|TagPolite) == 0 {
		return true
	}
	if rudeness <= 33 && l.Tags&TagRude != 0 {
		return false
	}
	if rudeness >= 67 && l.Tags&TagPolite != 0 {
		return false
	}
	return true
}
