package domain

import "time"

// ImageID is the opaque handle used to refer to an indexed image.
type ImageID int64

type Image struct {
	ID          ImageID
	StorageKey  string
	DisplayName string
	MimeType    string
	SizeBytes   int64
	ModifiedAt  time.Time
	IndexedAt   time.Time
}

// TagSet holds the editable metadata attributes of an image. Attributes that
// are absent from the source metadata are empty strings.
type TagSet struct {
	DateTime  string
	Latitude  string
	Longitude string
	Make      string
	Model     string
}

// TagName identifies one field of a TagSet.
type TagName string

const (
	TagDateTime  TagName = "datetime"
	TagLatitude  TagName = "latitude"
	TagLongitude TagName = "longitude"
	TagMake      TagName = "make"
	TagModel     TagName = "model"
)

// TagNames lists the TagSet fields in display order.
var TagNames = []TagName{TagDateTime, TagLatitude, TagLongitude, TagMake, TagModel}

// Label returns the human readable name shown next to the field.
func (n TagName) Label() string {
	switch n {
	case TagDateTime:
		return "Creation date"
	case TagLatitude:
		return "GPS latitude"
	case TagLongitude:
		return "GPS longitude"
	case TagMake:
		return "Device type"
	case TagModel:
		return "Model"
	default:
		return string(n)
	}
}

// Field returns the value stored under name, or "" for an unknown name.
func (t TagSet) Field(name TagName) string {
	switch name {
	case TagDateTime:
		return t.DateTime
	case TagLatitude:
		return t.Latitude
	case TagLongitude:
		return t.Longitude
	case TagMake:
		return t.Make
	case TagModel:
		return t.Model
	default:
		return ""
	}
}

// With returns a copy of t with name set to value.
func (t TagSet) With(name TagName, value string) TagSet {
	switch name {
	case TagDateTime:
		t.DateTime = value
	case TagLatitude:
		t.Latitude = value
	case TagLongitude:
		t.Longitude = value
	case TagMake:
		t.Make = value
	case TagModel:
		t.Model = value
	}
	return t
}

// IsEmpty reports whether every field is empty.
func (t TagSet) IsEmpty() bool {
	return t == TagSet{}
}
