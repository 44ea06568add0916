package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/shared"
	"stardate-formula/internal/types"
)

const defaultFetchRetries = 3
const defaultFetchRetryDelay = 200 * time.Millisecond
const defaultFetchTimeout = 60 * time.Second
const maxFetchRetryDelay = 5 * time.Second

// HTTPFetcherAdapter downloads artifacts over http(s) or copies them
// from file:// URLs, hashing the bytes as they are written.
type HTTPFetcherAdapter struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	Client   *http.Client
}

func NewHTTPFetcherAdapter(timeoutSec int, retries int, retryDelayMs int, progress io.Writer) HTTPFetcherAdapter {
	return HTTPFetcherAdapter{
		Timeout:    normalizeFetchTimeout(timeoutSec),
		Retries:    normalizeFetchRetries(retries),
		RetryDelay: normalizeFetchRetryDelay(retryDelayMs),
		Progress:   progress,
	}
}

func (a HTTPFetcherAdapter) Fetch(ctx context.Context, rawURL string, dest string) (types.FetchResult, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("fetch failed: invalid url %s", rawURL)).
			WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download directory").
			WithCause(err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "file":
		return a.copyLocal(parsed.Path, dest)
	case "http", "https":
		return a.download(ctx, parsed.String(), dest)
	default:
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("fetch failed: unsupported scheme %s", parsed.Scheme))
	}
}

func (a HTTPFetcherAdapter) download(ctx context.Context, rawURL string, dest string) (types.FetchResult, error) {
	retries := normalizeFetchRetries(a.Retries)
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if ctx.Err() != nil {
			return types.FetchResult{}, ctx.Err()
		}
		result, retry, err := a.downloadOnce(ctx, rawURL, dest)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry || attempt == retries-1 {
			return types.FetchResult{}, err
		}
		delay := a.retryDelay(attempt)
		log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt+1).Dur("backoff", delay).Msg("download failed, retrying")
		select {
		case <-ctx.Done():
			return types.FetchResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	if lastErr == nil {
		lastErr = errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("fetch failed")
	}
	return types.FetchResult{}, lastErr
}

func (a HTTPFetcherAdapter) downloadOnce(ctx context.Context, rawURL string, dest string) (types.FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return types.FetchResult{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download request").
			WithCause(err)
	}
	req.Header.Set("User-Agent", "stardate-formula")
	resp, err := a.client().Do(req)
	if err != nil {
		return types.FetchResult{}, true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("fetch failed: %s", rawURL)).
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := shared.HTTPStatusErrorWithBody(resp.StatusCode, rawURL, strings.TrimSpace(string(body)))
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		code := errbuilder.CodeInternal
		if resp.StatusCode == http.StatusNotFound {
			code = errbuilder.CodeNotFound
		}
		return types.FetchResult{}, retry, errbuilder.New().
			WithCode(code).
			WithMsg(fmt.Sprintf("fetch failed: %s returned %d", rawURL, resp.StatusCode)).
			WithCause(cause)
	}
	var sink io.Writer = io.Discard
	var bar *progressbar.ProgressBar
	if a.Progress != nil && resp.ContentLength > 0 {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(a.Progress),
			progressbar.OptionSetDescription("downloading "+shared.ArtifactName(rawURL)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		sink = bar
	}
	result, err := writeHashed(resp.Body, dest, sink)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(a.Progress)
	}
	if err != nil {
		// a truncated body is worth another attempt
		return types.FetchResult{}, true, err
	}
	log.Debug().Str("url", rawURL).Int64("bytes", result.Size).Msg("artifact downloaded")
	return result, false, nil
}

func (a HTTPFetcherAdapter) copyLocal(path string, dest string) (types.FetchResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("fetch failed: %s", path)).
			WithCause(err)
	}
	defer file.Close()
	return writeHashed(file, dest, io.Discard)
}

// writeHashed streams src into a temporary sibling of dest and renames
// it into place only once the copy completed.
func writeHashed(src io.Reader, dest string, progress io.Writer) (types.FetchResult, error) {
	partial := dest + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create download file").
			WithCause(err)
	}
	hasher := sha256.New()
	size, copyErr := io.Copy(io.MultiWriter(out, hasher, progress), src)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partial)
		cause := copyErr
		if cause == nil {
			cause = closeErr
		}
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("fetch failed: interrupted while writing artifact").
			WithCause(cause)
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return types.FetchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to move download into place").
			WithCause(err)
	}
	return types.FetchResult{
		Path:   dest,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}, nil
}

func (a HTTPFetcherAdapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (a HTTPFetcherAdapter) retryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay <= 0 {
		delay = defaultFetchRetryDelay
	}
	if delay > maxFetchRetryDelay {
		delay = maxFetchRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

func normalizeFetchTimeout(value int) time.Duration {
	timeout := time.Duration(value) * time.Second
	if timeout <= 0 {
		return defaultFetchTimeout
	}
	return timeout
}

func normalizeFetchRetries(value int) int {
	if value <= 0 {
		return defaultFetchRetries
	}
	return value
}

func normalizeFetchRetryDelay(value int) time.Duration {
	delay := time.Duration(value) * time.Millisecond
	if delay <= 0 {
		return defaultFetchRetryDelay
	}
	return delay
}

// FileDigestAdapter hashes local files.
type FileDigestAdapter struct{}

func NewFileDigestAdapter() FileDigestAdapter {
	return FileDigestAdapter{}
}

func (a FileDigestAdapter) DigestFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("file not found: %s", path)).
			WithCause(err)
	}
	defer file.Close()
	hasher := sha256.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", path)).
			WithCause(err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

var _ ports.FetcherPort = HTTPFetcherAdapter{}
var _ ports.DigestPort = FileDigestAdapter{}
