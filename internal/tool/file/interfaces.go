package file

import "context"

// readOps is the part of sandbox.ReadOps the read tool needs.
type readOps interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Access(ctx context.Context, path string) error
	DetectImageMime(ctx context.Context, path string) (string, error)
}

type writeOps interface {
	WriteFile(ctx context.Context, path string, data []byte) error
}

type editOps interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Access(ctx context.Context, path string) error
	WriteFile(ctx context.Context, path string, data []byte) error
}

// pathResolver turns tool arguments into host paths.
type pathResolver interface {
	Abs(path string) (string, error)
	Rel(path string) (string, error)
}

// checksumManager records the content hash of files as the agent last saw them.
type checksumManager interface {
	Compute(data []byte) string
	Get(path string) (checksum string, ok bool)
	Update(path string, checksum string)
}
