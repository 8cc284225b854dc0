package engine

import "context"

// Request describes a single extraction attempt.
type Request struct {
	// Archive is the absolute path of the archive file.
	Archive string

	// Dest is the directory the archive is extracted into. It exists and
	// is empty (or holds only this attempt's output) when Extract is called.
	Dest string

	// Password is the secret to decrypt the archive with. Empty means no
	// password is supplied.
	Password string
}

// Engine extracts archives. Implementations report failures as *Error so
// callers can classify them.
type Engine interface {
	Name() string
	Extract(ctx context.Context, req Request) error
}
