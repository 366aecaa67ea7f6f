package interpretation

// Fallback returns the pre-authored interpretation used whenever generated
// output cannot be trusted. Each call returns a fresh copy.
func Fallback() Payload {
	return Payload{
		Summary: "This dream feels like an inner processing space where impressions are still settling. " +
			"It may be highlighting subtle feelings or questions that are not fully resolved yet.",
		Themes:        []string{"reflection", "inner awareness", "transition", "uncertainty"},
		EmotionalTone: "quiet, contemplative",
		ReflectionPrompts: []string{
			"What part of the dream felt most emotionally charged?",
			"Which image or moment lingered after waking?",
			"If the dream had a message, what might it be asking you to notice?",
			"Where do you feel a similar tone in your waking life lately?",
		},
		SymbolTags: []string{"processing", "inner world", "transition", "uncertainty", "reflection", "emotion"},
		WordReflections: []WordReflection{
			{
				Word:       "moment",
				Reflection: "The idea of a moment can point to something small yet important that wants your attention.",
			},
			{
				Word:       "settling",
				Reflection: "Settling suggests emotions or thoughts finding their place after a period of movement.",
			},
			{
				Word:       "question",
				Reflection: "A question in a dream often hints at curiosity, a decision point, or a gentle uncertainty.",
			},
		},
	}
}
