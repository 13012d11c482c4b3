package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "mv-6f1c...".
func New(prefix string) string {
	if prefix == "" {
		return UUID()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func UUID() string {
	return uuid.NewString()
}

// Valid reports whether id, stripped of an optional prefix, is a UUID.
func Valid(id string, prefix string) bool {
	if prefix != "" {
		if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
			return false
		}
		id = id[len(prefix):]
	}
	_, err := uuid.Parse(id)
	return err == nil
}
