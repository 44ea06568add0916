package app

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/core"
	"stardate-formula/internal/shared"
)

// Checksum computes the SHA-256 of a local file or a URL.  With Write it
// replaces the declared checksum in the manifest, which is how
// placeholder checksums get regenerated.
func (s Service) Checksum(ctx context.Context, req ChecksumRequest) (ChecksumResult, error) {
	target := strings.TrimSpace(req.Target)
	manifestPath := strings.TrimSpace(req.ManifestPath)
	previous := ""
	if manifestPath != "" {
		// the declared checksum may be the very thing being fixed, so
		// only the document is loaded, not validated
		manifest, err := s.loadManifest(manifestPath)
		if err != nil {
			return ChecksumResult{}, err
		}
		previous = manifest.Source.SHA256
		if target == "" {
			target = manifest.Source.URL
		}
	}
	if target == "" {
		return ChecksumResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("a file, url or manifest is required")
	}
	if req.Write && manifestPath == "" {
		return ChecksumResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("--write needs a manifest")
	}

	digest, size, err := s.digestTarget(ctx, target)
	if err != nil {
		return ChecksumResult{}, err
	}
	result := ChecksumResult{Target: target, SHA256: digest, Size: size, Previous: previous}
	if req.Write && core.NormalizeChecksum(previous) != digest {
		if err := s.Manifests.UpdateChecksum(manifestPath, digest); err != nil {
			return ChecksumResult{}, err
		}
		result.Written = true
		log.Ctx(ctx).Info().Str("manifest", manifestPath).Str("sha256", digest).Msg("checksum updated")
	}
	return result, nil
}

func (s Service) digestTarget(ctx context.Context, target string) (string, int64, error) {
	if !isRemoteTarget(target) {
		return s.Digests.DigestFile(target)
	}
	tmp, err := os.MkdirTemp("", "stardate-formula-checksum-*")
	if err != nil {
		return "", 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temp directory").
			WithCause(err)
	}
	defer os.RemoveAll(tmp)
	fetched, err := s.Fetcher.Fetch(ctx, target, filepath.Join(tmp, shared.ArtifactName(target)))
	if err != nil {
		return "", 0, err
	}
	return fetched.SHA256, fetched.Size, nil
}

func isRemoteTarget(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "file":
		return true
	default:
		return false
	}
}
