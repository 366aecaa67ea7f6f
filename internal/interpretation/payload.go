// Package interpretation holds the reflective interpretation payload attached
// to a journal entry, together with the checks every stored payload must pass.
package interpretation

import "encoding/json"

type WordReflection struct {
	Word       string `json:"word"`
	Reflection string `json:"reflection"`
}

// Payload is the interpretation contract shared by the generator, the store
// and API clients. Field order matches the JSON shape requested from the model.
type Payload struct {
	Summary           string           `json:"summary"`
	Themes            []string         `json:"themes"`
	EmotionalTone     string           `json:"emotionalTone"`
	ReflectionPrompts []string         `json:"reflectionPrompts"`
	SymbolTags        []string         `json:"symbolTags"`
	WordReflections   []WordReflection `json:"wordReflections"`
}

// Marshal encodes the payload with empty sequences rendered as [] rather than null,
// so a stored payload always decodes back through Validate.
func (p Payload) Marshal() ([]byte, error) {
	c := p
	if c.Themes == nil {
		c.Themes = []string{}
	}
	if c.ReflectionPrompts == nil {
		c.ReflectionPrompts = []string{}
	}
	if c.SymbolTags == nil {
		c.SymbolTags = []string{}
	}
	if c.WordReflections == nil {
		c.WordReflections = []WordReflection{}
	}
	return json.Marshal(c)
}
