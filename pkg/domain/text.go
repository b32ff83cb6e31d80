package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
)

// Text is a raw textual field value that is either absent or present.
// The zero value is absent.
type Text struct {
	raw     string
	present bool
}

// Present returns a Text holding raw.
func Present(raw string) Text {
	return Text{raw: raw, present: true}
}

// Absent returns a Text with no value.
func Absent() Text {
	return Text{}
}

// TextOf converts a nullable string into a Text.
func TextOf(raw *string) Text {
	if raw == nil {
		return Absent()
	}
	return Present(*raw)
}

// Value returns the raw string and whether it was provided.
func (t Text) Value() (string, bool) {
	return t.raw, t.present
}

// IsPresent reports whether the field was provided.
func (t Text) IsPresent() bool {
	return t.present
}

func (t Text) String() string {
	if !t.present {
		return "<absent>"
	}
	return fmt.Sprintf("%q", t.raw)
}

// MarshalJSON encodes an absent value as null.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.present {
		return []byte("null"), nil
	}
	return json.Marshal(t.raw)
}

// UnmarshalJSON accepts null, a string, or a bare JSON number. Numbers keep
// their literal spelling so they are parsed by the same rules as strings.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Absent()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Present(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*t = Present(string(data))
		return nil
	default:
		return fmt.Errorf("text field: unsupported JSON value %s", data)
	}
}

// MarshalYAML encodes an absent value as null.
func (t Text) MarshalYAML() (any, error) {
	if !t.present {
		return nil, nil
	}
	return t.raw, nil
}

// UnmarshalYAML accepts null, a string, or a numeric scalar.
func (t *Text) UnmarshalYAML(data []byte) error {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*t = Absent()
	case string:
		*t = Present(val)
	case int, int64, uint64, float64:
		*t = Present(strings.TrimSpace(string(data)))
	default:
		return fmt.Errorf("text field: unsupported YAML value %T", v)
	}
	return nil
}
