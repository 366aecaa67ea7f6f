package interpretation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStructure = errors.New("interpretation: invalid structure")
	ErrUnsafeContent    = errors.New("interpretation: unsafe content")
)

// deniedPhrases covers diagnostic, predictive and directive language.
var deniedPhrases = []string{
	"you will",
	"this means you must",
	"this predicts",
	"mental illness",
	"diagnosis",
	"guarantees that",
	"this proves",
	"you should",
}

// DeniedPhrases returns a copy of the safety denylist.
func DeniedPhrases() []string {
	return append([]string(nil), deniedPhrases...)
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindStringList
	kindReflectionList
)

var requiredFields = []struct {
	name string
	kind fieldKind
}{
	{"summary", kindString},
	{"themes", kindStringList},
	{"emotionalTone", kindString},
	{"reflectionPrompts", kindStringList},
	{"symbolTags", kindStringList},
	{"wordReflections", kindReflectionList},
}

// Validate checks that raw is a JSON object carrying every schema field with
// the right shape and returns the decoded payload. Any missing or mistyped
// field rejects the whole object.
func Validate(raw []byte) (Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Payload{}, fmt.Errorf("%w: not a JSON object", ErrInvalidStructure)
	}

	for _, f := range requiredFields {
		value, ok := fields[f.name]
		if !ok {
			return Payload{}, fmt.Errorf("%w: missing %q", ErrInvalidStructure, f.name)
		}
		if err := checkKind(value, f.kind); err != nil {
			return Payload{}, fmt.Errorf("%w: field %q: %v", ErrInvalidStructure, f.name, err)
		}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if strings.TrimSpace(p.Summary) == "" {
		return Payload{}, fmt.Errorf("%w: empty summary", ErrInvalidStructure)
	}
	return p, nil
}

// ValidatePayload runs the structural check over an already decoded payload.
func ValidatePayload(p Payload) error {
	raw, err := p.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	_, err = Validate(raw)
	return err
}

func checkKind(value json.RawMessage, kind fieldKind) error {
	switch kind {
	case kindString:
		var s string
		if !isJSON(value, '"') || json.Unmarshal(value, &s) != nil {
			return errors.New("want string")
		}
	case kindStringList:
		var list []json.RawMessage
		if !isJSON(value, '[') || json.Unmarshal(value, &list) != nil {
			return errors.New("want array of strings")
		}
		for i, item := range list {
			if checkKind(item, kindString) != nil {
				return fmt.Errorf("item %d: want string", i)
			}
		}
	case kindReflectionList:
		var items []map[string]json.RawMessage
		if !isJSON(value, '[') || json.Unmarshal(value, &items) != nil {
			return errors.New("want array of objects")
		}
		for i, item := range items {
			for _, key := range []string{"word", "reflection"} {
				v, ok := item[key]
				if !ok || checkKind(v, kindString) != nil {
					return fmt.Errorf("item %d: want string %q", i, key)
				}
			}
		}
	}
	return nil
}

// isJSON reports whether value starts with the given delimiter, which rules out
// null and values of other types that encoding/json would otherwise accept.
func isJSON(value json.RawMessage, first byte) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) > 0 && trimmed[0] == first
}

// CheckSafety scans every text field for denylisted phrases, ignoring case and
// treating any run of whitespace as a single space.
func CheckSafety(p Payload) error {
	text := strings.ToLower(flattenText(p))
	for _, phrase := range deniedPhrases {
		if strings.Contains(text, phrase) {
			return fmt.Errorf("%w: contains %q", ErrUnsafeContent, phrase)
		}
	}
	return nil
}

// IsSafe is CheckSafety as a predicate.
func IsSafe(p Payload) bool {
	return CheckSafety(p) == nil
}

func flattenText(p Payload) string {
	var b strings.Builder
	write := func(s string) {
		b.WriteString(strings.Join(strings.Fields(s), " "))
		b.WriteByte('\n')
	}
	write(p.Summary)
	write(p.EmotionalTone)
	for _, s := range p.Themes {
		write(s)
	}
	for _, s := range p.ReflectionPrompts {
		write(s)
	}
	for _, s := range p.SymbolTags {
		write(s)
	}
	for _, r := range p.WordReflections {
		write(r.Word)
		write(r.Reflection)
	}
	return b.String()
}
