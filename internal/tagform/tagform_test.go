package tagform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vbonduro/exifedit/internal/domain"
)

func validTags() domain.TagSet {
	return domain.TagSet{
		DateTime:  "2023:01:06 20:30:45",
		Latitude:  "41/1,24/1,3000/100",
		Longitude: "2/1,10/1,2600/100",
		Make:      "Canon",
		Model:     "EOS 5D",
	}
}

func TestNewValid(t *testing.T) {
	s := New(validTags())

	assert.True(t, s.Valid())
	for _, name := range domain.TagNames {
		assert.True(t, s.FieldValid(name), "field %s", name)
	}
	assert.Equal(t, validTags(), s.Tags())
}

func TestZeroStateInvalid(t *testing.T) {
	var s State
	assert.False(t, s.Valid())
	assert.False(t, New(domain.TagSet{}).Valid())
}

func TestUpdateEachFieldGatesValidity(t *testing.T) {
	bad := map[domain.TagName]string{
		domain.TagDateTime:  "not-a-date",
		domain.TagLatitude:  "abc",
		domain.TagLongitude: "abc123",
		domain.TagMake:      "C",
		domain.TagModel:     "",
	}
	for name, value := range bad {
		t.Run(string(name), func(t *testing.T) {
			s := New(validTags())
			s.Update(validTags().With(name, value))

			assert.False(t, s.Valid())
			assert.False(t, s.FieldValid(name))
			for _, other := range domain.TagNames {
				if other != name {
					assert.True(t, s.FieldValid(other), "field %s", other)
				}
			}
		})
	}
}

func TestUpdateRecoversValidity(t *testing.T) {
	s := New(validTags().With(domain.TagMake, "x"))
	assert.False(t, s.Valid())

	s.Update(validTags())
	assert.True(t, s.Valid())
}

func TestFieldsOrder(t *testing.T) {
	fields := New(validTags()).Fields()

	assert.Len(t, fields, len(domain.TagNames))
	for i, f := range fields {
		assert.Equal(t, domain.TagNames[i], f.Name)
		assert.Equal(t, validTags().Field(f.Name), f.Value)
		assert.True(t, f.Valid)
	}
	assert.Equal(t, "Creation date", fields[0].Label)
}

func TestParseForm(t *testing.T) {
	values := url.Values{
		"datetime": {"2023:01:06 20:30:45"},
		"latitude": {"12.34"},
		"make":     {"Nikon"},
	}

	tags := ParseForm(values)

	assert.Equal(t, domain.TagSet{
		DateTime: "2023:01:06 20:30:45",
		Latitude: "12.34",
		Make:     "Nikon",
	}, tags)
}

func TestParseFormKeepsWhitespace(t *testing.T) {
	tags := ParseForm(url.Values{
		"datetime": {" 2023:01:06 20:30:45 "},
		"model":    {"  "},
	})

	assert.Equal(t, " 2023:01:06 20:30:45 ", tags.DateTime)
	assert.Equal(t, "  ", tags.Model)

	form := New(tags)
	assert.False(t, form.FieldValid(domain.TagDateTime))
	assert.True(t, form.FieldValid(domain.TagModel))
}
