package credential

const redacted = "[redacted]"

// Secret is an opaque credential handle. It never prints its value; callers
// read it with Reveal at the moment a connection is opened.
type Secret struct {
	value string
}

// NewSecret wraps a plaintext value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the plaintext value.
func (s Secret) Reveal() string {
	return s.value
}

// Empty reports whether no value is held.
func (s Secret) Empty() bool {
	return s.value == ""
}

// String implements fmt.Stringer without exposing the value.
func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the value.
func (s Secret) GoString() string {
	return "credential.Secret{" + s.String() + "}"
}

// MarshalText keeps encoders from writing the value.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
