package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/core"
	"stardate-formula/internal/shared"
	"stardate-formula/internal/types"
)

func (s Service) Fetch(ctx context.Context, req FetchRequest) (FetchResult, error) {
	manifest, err := s.loadValidManifest(ctx, req.ManifestPath)
	if err != nil {
		return FetchResult{}, err
	}
	fetched, signer, err := s.fetchVerified(ctx, manifest, req.CacheDir, req.Keyring)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{
		Name:   manifest.Metadata.Name,
		Path:   fetched.Path,
		SHA256: fetched.SHA256,
		Size:   fetched.Size,
		Cached: fetched.Cached,
		Signer: signer,
	}, nil
}

// CachePath is where the artifact of manifest is kept inside cacheDir,
// e.g. "<cache>/stardate--stardate-1.0.0.tar.gz".
func CachePath(cacheDir string, manifest types.Manifest) string {
	name := manifest.Metadata.Name + "--" + shared.ArtifactName(manifest.Source.URL)
	return filepath.Join(cacheDir, name)
}

// fetchVerified downloads the artifact into the cache unless a copy with
// the declared digest is already there.  A download whose digest does
// not match is deleted so it cannot be installed later.
func (s Service) fetchVerified(ctx context.Context, manifest types.Manifest, cacheDir string, keyring string) (types.FetchResult, string, error) {
	cacheDir = strings.TrimSpace(cacheDir)
	if cacheDir == "" {
		return types.FetchResult{}, "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cache directory is required")
	}
	expected := core.NormalizeChecksum(manifest.Source.SHA256)
	dest := CachePath(cacheDir, manifest)
	logger := log.Ctx(ctx).With().Str("manifest", manifest.Metadata.Name).Str("url", manifest.Source.URL).Logger()

	fetched, ok := s.cachedArtifact(dest, expected)
	if ok {
		logger.Debug().Str("path", dest).Msg("using cached artifact")
	} else {
		var err error
		fetched, err = s.Fetcher.Fetch(ctx, manifest.Source.URL, dest)
		if err != nil {
			return types.FetchResult{}, "", err
		}
		if err := core.VerifyDigest(expected, fetched.SHA256); err != nil {
			if removeErr := os.Remove(fetched.Path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
				logger.Warn().Err(removeErr).Str("path", fetched.Path).Msg("failed to remove rejected artifact")
			}
			return types.FetchResult{}, "", err
		}
		logger.Info().Str("sha256", fetched.SHA256).Int64("size", fetched.Size).Msg("artifact fetched and verified")
	}

	signer, err := s.verifySignature(ctx, manifest, fetched.Path, keyring)
	if err != nil {
		return types.FetchResult{}, "", err
	}
	return fetched, signer, nil
}

func (s Service) cachedArtifact(dest string, expected string) (types.FetchResult, bool) {
	if _, err := os.Stat(dest); err != nil {
		return types.FetchResult{}, false
	}
	digest, size, err := s.Digests.DigestFile(dest)
	if err != nil || core.NormalizeChecksum(digest) != expected {
		log.Debug().Str("path", dest).Msg("cached artifact is stale, fetching again")
		return types.FetchResult{}, false
	}
	return types.FetchResult{Path: dest, SHA256: digest, Size: size, Cached: true}, true
}

func (s Service) verifySignature(ctx context.Context, manifest types.Manifest, artifactPath string, keyring string) (string, error) {
	signatureURL := strings.TrimSpace(manifest.Source.SignatureURL)
	keyring = strings.TrimSpace(keyring)
	switch {
	case signatureURL == "":
		return "", nil
	case keyring == "":
		log.Ctx(ctx).Warn().Str("manifest", manifest.Metadata.Name).Msg("signature_url set but no keyring configured, skipping signature check")
		return "", nil
	}
	signature, err := s.Fetcher.Fetch(ctx, signatureURL, artifactPath+".asc")
	if err != nil {
		return "", err
	}
	signer, err := s.Signatures.VerifyDetached(ctx, artifactPath, signature.Path, keyring)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("signature verification failed for %s", manifest.Metadata.Name)).
			WithCause(err)
	}
	log.Ctx(ctx).Info().Str("manifest", manifest.Metadata.Name).Str("signer", signer).Msg("signature verified")
	return signer, nil
}
