// Package tagform holds the state of the tag editor form.
package tagform

import (
	"net/url"

	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/validate"
)

// State is the current content of the editor together with the result of
// validating it. The zero value is an empty, invalid form.
type State struct {
	tags   domain.TagSet
	fields map[domain.TagName]bool
	valid  bool
}

// New returns a State for tags with validity already computed.
func New(tags domain.TagSet) *State {
	s := &State{}
	s.Update(tags)
	return s
}

// Update replaces the whole TagSet and reruns every field validator.
func (s *State) Update(tags domain.TagSet) {
	fields := make(map[domain.TagName]bool, len(domain.TagNames))
	valid := true
	for _, name := range domain.TagNames {
		ok := validate.ForTag(name)(tags.Field(name))
		fields[name] = ok
		valid = valid && ok
	}
	s.tags = tags
	s.fields = fields
	s.valid = valid
}

func (s *State) Tags() domain.TagSet { return s.tags }

// Valid reports whether every field passed validation.
func (s *State) Valid() bool { return s.valid }

// FieldValid reports whether the named field passed validation.
func (s *State) FieldValid(name domain.TagName) bool { return s.fields[name] }

// Field is one row of the rendered form.
type Field struct {
	Name  domain.TagName
	Label string
	Value string
	Valid bool
}

// Fields returns the form rows in display order.
func (s *State) Fields() []Field {
	out := make([]Field, 0, len(domain.TagNames))
	for _, name := range domain.TagNames {
		out = append(out, Field{
			Name:  name,
			Label: name.Label(),
			Value: s.tags.Field(name),
			Valid: s.fields[name],
		})
	}
	return out
}

// ParseForm builds a TagSet from submitted form values keyed by TagName.
// Values are kept as submitted; missing keys become empty strings.
func ParseForm(values url.Values) domain.TagSet {
	var tags domain.TagSet
	for _, name := range domain.TagNames {
		tags = tags.With(name, values.Get(string(name)))
	}
	return tags
}
