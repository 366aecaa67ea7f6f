package core

import (
	"strings"

	"github.com/dreamsync/dreamsync-backend/internal/store"
)

const memoryNoteMaxRunes = 200

// StructuredEntryText is the representation embedded for semantic memory.
func StructuredEntryText(e store.Entry) string {
	parts := make([]string, 0, 4)
	if title := deref(e.Title); title != "" {
		parts = append(parts, "Title: "+title)
	}
	parts = append(parts, "Dream: "+strings.TrimSpace(e.Content))
	if mood := deref(e.Mood); mood != "" {
		parts = append(parts, "Mood: "+mood)
	}
	if len(e.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(e.Tags, ", "))
	}
	return strings.Join(parts, "\n")
}

// MemoryNote condenses a past entry into one line of prompt context.
func MemoryNote(e store.Entry) string {
	body := strings.Join(strings.Fields(e.Content), " ")
	if runes := []rune(body); len(runes) > memoryNoteMaxRunes {
		body = string(runes[:memoryNoteMaxRunes]) + "..."
	}

	parts := []string{"Dream: " + body}
	if mood := deref(e.Mood); mood != "" {
		parts = append(parts, "Mood: "+mood)
	}
	if len(e.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(e.Tags, ", "))
	}
	return strings.Join(parts, " | ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
