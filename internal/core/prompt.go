package core

import (
	"math/rand/v2"
	"strings"

	"github.com/dreamsync/dreamsync-backend/internal/store"
)

// Lens is the interpretive angle a prompt asks the model to take.
type Lens string

const (
	LensSymbolic  Lens = "symbolic"
	LensEmotional Lens = "emotional"
	LensNarrative Lens = "narrative"
	LensMemory    Lens = "memory-based"
)

var Lenses = []Lens{LensSymbolic, LensEmotional, LensNarrative, LensMemory}

func (l Lens) instruction() string {
	switch l {
	case LensEmotional:
		return "Focus on the emotional movement of the dream: how feelings shift from moment to moment and what they might be circling around."
	case LensNarrative:
		return "Read the dream as a story: its setting, turning points, and the way it ends or refuses to end."
	case LensMemory:
		return "Look for echoes between this dream and the past dreams listed below, naming concrete repeated images or moods. If none are listed, focus on what feels familiar inside this dream."
	default:
		return "Focus on the symbols in the dream: objects, places, and figures, and what each might represent for the dreamer."
	}
}

// LensPicker chooses the lens for one prompt.
type LensPicker func() Lens

// RandomLens picks one of Lenses uniformly.
func RandomLens() Lens {
	return Lenses[rand.IntN(len(Lenses))]
}

// FixedLens always returns l.
func FixedLens(l Lens) LensPicker {
	return func() Lens { return l }
}

// fillerPhrases are stock openers the model falls back on when it is not
// looking at the actual dream.
var fillerPhrases = []string{
	"this dream suggests",
	"on a deeper level",
	"journey of self-discovery",
	"your subconscious is telling you",
	"it is important to remember",
}

type PromptInput struct {
	Entry  store.Entry
	Lens   Lens
	Memory []string
}

// BuildPrompt assembles the user prompt for an interpretation. The output
// depends only on its input.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are a reflective dream analysis assistant.\n")
	b.WriteString("Your tone is calm, grounded, and psychologically aware.\n")
	b.WriteString("Do not diagnose. Do not predict the future. Do not give advice or instructions.\n")
	b.WriteString("Offer symbolic interpretations and gentle reflective questions only.\n")
	b.WriteString("Avoid authoritative claims; use soft language (\"may\", \"might\", \"could\").\n\n")

	b.WriteString("Interpretive lens: ")
	b.WriteString(string(in.Lens))
	b.WriteString("\n")
	b.WriteString(in.Lens.instruction())
	b.WriteString("\n\n")

	b.WriteString("Ground every field in concrete details, images, and words from THIS dream. Do not write anything that could apply to any dream.\n")
	b.WriteString("Never use these generic phrases: ")
	quoted := make([]string, len(fillerPhrases))
	for i, p := range fillerPhrases {
		quoted[i] = `"` + p + `"`
	}
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(".\n\n")

	b.WriteString("Output rules:\n")
	b.WriteString("- Return ONLY valid JSON (no markdown, no extra text).\n")
	b.WriteString("- No medical, legal, or deterministic claims.\n\n")
	b.WriteString("JSON format:\n")
	b.WriteString("{\n")
	b.WriteString("  \"summary\": string, // 2-4 sentences, reflective and nuanced\n")
	b.WriteString("  \"themes\": string[], // 4-7 short noun phrases, most prominent first\n")
	b.WriteString("  \"emotionalTone\": string, // 1-3 words\n")
	b.WriteString("  \"reflectionPrompts\": string[], // 4-6 open-ended questions\n")
	b.WriteString("  \"symbolTags\": string[], // 6-12 lowercase tags, 1-2 words each\n")
	b.WriteString("  \"wordReflections\": { \"word\": string, \"reflection\": string }[] // 4-8 items, word taken from the dream, reflection 1-2 sentences\n")
	b.WriteString("}\n\n")

	b.WriteString("Current dream:\n")
	if title := deref(in.Entry.Title); title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n")
	}
	b.WriteString(strings.TrimSpace(in.Entry.Content))
	b.WriteString("\n")
	if mood := deref(in.Entry.Mood); mood != "" {
		b.WriteString("Mood: ")
		b.WriteString(mood)
		b.WriteString("\n")
	}
	if len(in.Entry.Tags) > 0 {
		b.WriteString("Tags: ")
		b.WriteString(strings.Join(in.Entry.Tags, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(in.Memory) > 0 {
		b.WriteString("Relevant past dreams:\n- ")
		b.WriteString(strings.Join(in.Memory, "\n- "))
	} else {
		b.WriteString("No relevant past dreams found.")
	}

	return b.String()
}
