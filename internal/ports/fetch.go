package ports

import (
	"context"

	"stardate-formula/internal/types"
)

// FetcherPort downloads a URL to a local file, hashing the bytes while
// they are written.
type FetcherPort interface {
	Fetch(ctx context.Context, url string, dest string) (types.FetchResult, error)
}

// SignaturePort checks an armored detached signature over an artifact.
type SignaturePort interface {
	VerifyDetached(ctx context.Context, artifactPath string, signaturePath string, keyringPath string) (string, error)
}

// DigestPort computes the SHA-256 of a local file.
type DigestPort interface {
	DigestFile(path string) (digest string, size int64, err error)
}
