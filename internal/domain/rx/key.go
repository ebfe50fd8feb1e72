package rx

import "strings"

// Key is the identity of a medicine within a session. Two records with the
// same Key are the same medicine: comparison is exact and case-sensitive,
// after surrounding whitespace has been trimmed once.
type Key string

// KeyOf derives the identity key for a medicine name.
func KeyOf(name string) Key {
	return Key(strings.TrimSpace(name))
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool { return k == "" }

func (k Key) String() string { return string(k) }
