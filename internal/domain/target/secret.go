package target

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// redactedPlaceholder is what a Secret renders as everywhere a value
// could leak: String, GoString, fmt verbs, and every marshal path.
const redactedPlaceholder = "[redacted]"

// Secret holds a sensitive value such as an auth key, connection URL,
// or signing secret. The value is only reachable through Reveal; every
// printing and marshalling path renders a placeholder instead.
type Secret struct {
	value string
}

// NewSecret creates a Secret from a raw value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the underlying value.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero returns true if the Secret holds no value.
func (s Secret) IsZero() bool {
	return s.value == ""
}

// Equals compares the underlying values.
func (s Secret) Equals(other Secret) bool {
	return s.value == other.value
}

// String returns a placeholder, never the value.
func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return redactedPlaceholder
}

// GoString returns a placeholder so %#v cannot leak the value.
func (s Secret) GoString() string {
	return "target.Secret{" + s.String() + "}"
}

// Format implements fmt.Formatter. fmt prefers Formatter over Stringer
// and GoStringer, so this covers every verb including %v, %s, %q, %x.
func (s Secret) Format(f fmt.State, verb rune) {
	switch verb {
	case 'q':
		fmt.Fprint(f, strconv.Quote(s.String()))
	case 'v':
		if f.Flag('#') {
			fmt.Fprint(f, s.GoString())
			return
		}
		fmt.Fprint(f, s.String())
	default:
		fmt.Fprint(f, s.String())
	}
}

// MarshalJSON writes a placeholder, never the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads the raw value.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.value = v
	return nil
}

// MarshalYAML writes a placeholder, never the value.
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML reads the raw value from a target file.
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	var v string
	if err := node.Decode(&v); err != nil {
		return err
	}
	s.value = v
	return nil
}

// MarshalText writes a placeholder. TOML encoding goes through here.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText reads the raw value. TOML decoding goes through here.
func (s *Secret) UnmarshalText(data []byte) error {
	s.value = string(data)
	return nil
}
