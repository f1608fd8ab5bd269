package uid

import "github.com/google/uuid"

// New generates a request identifier.
func New() string {
	return uuid.New().String()
}

// Handle generates an identifier for a shown notification surface, such as
// "toast-<uuid>". The prefix names the surface that owns it.
func Handle(surface string) string {
	return surface + "-" + uuid.New().String()
}

// Surface returns the prefix of a handle made by Handle, or "" when h is not
// one.
func Surface(h string) string {
	const n = 36
	if len(h) < n+2 || h[len(h)-n-1] != '-' {
		return ""
	}
	if _, err := uuid.Parse(h[len(h)-n:]); err != nil {
		return ""
	}
	return h[:len(h)-n-1]
}
