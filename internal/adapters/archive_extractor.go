package adapters

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/ulikunitz/xz"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ArchiveExtractorAdapter unpacks release artifacts.  Tarballs may be
// gzip, xz or zstd compressed; anything else is staged as a single file.
type ArchiveExtractorAdapter struct{}

func NewArchiveExtractorAdapter() ArchiveExtractorAdapter {
	return ArchiveExtractorAdapter{}
}

// DetectArchiveFormat picks a format from the artifact name, falling
// back to the leading magic bytes.
func DetectArchiveFormat(name string, header []byte) types.ArchiveFormat {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return types.ArchiveFormatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return types.ArchiveFormatTarXz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return types.ArchiveFormatTarZst
	case strings.HasSuffix(lower, ".tar"):
		return types.ArchiveFormatTar
	}
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return types.ArchiveFormatTarGz
	case bytes.HasPrefix(header, xzMagic):
		return types.ArchiveFormatTarXz
	case bytes.HasPrefix(header, zstdMagic):
		return types.ArchiveFormatTarZst
	default:
		return types.ArchiveFormatFile
	}
}

func (a ArchiveExtractorAdapter) Extract(ctx context.Context, artifactPath string, name string, destDir string) (types.ArchiveFormat, error) {
	file, err := os.Open(artifactPath)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("artifact not found").
			WithCause(err)
	}
	defer file.Close()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create staging directory").
			WithCause(err)
	}
	reader := bufio.NewReader(file)
	header, _ := reader.Peek(len(xzMagic))
	format := DetectArchiveFormat(name, header)
	log.Debug().Str("artifact", name).Str("format", string(format)).Msg("extracting artifact")

	var stream io.Reader
	switch format {
	case types.ArchiveFormatTarGz:
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return format, archiveError("gzip", err)
		}
		defer gz.Close()
		stream = gz
	case types.ArchiveFormatTarXz:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return format, archiveError("xz", err)
		}
		stream = xzReader
	case types.ArchiveFormatTarZst:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return format, archiveError("zstd", err)
		}
		defer decoder.Close()
		stream = decoder
	case types.ArchiveFormatTar:
		stream = reader
	default:
		return format, stageSingleFile(reader, destDir, name)
	}
	return format, extractTar(ctx, stream, destDir)
}

// extractTar unpacks stream below destDir through an os.Root, so no
// entry can be created or followed outside the staging directory even
// when earlier entries planted symlinks.
func extractTar(ctx context.Context, stream io.Reader, destDir string) error {
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return archiveError("tar", err)
	}
	defer root.Close()
	realRoot, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return archiveError("tar", err)
	}
	realRoot, err = filepath.Abs(realRoot)
	if err != nil {
		return archiveError("tar", err)
	}
	tr := tar.NewReader(stream)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return archiveError("tar", err)
		}
		name, err := entryName(header.Name)
		if err != nil {
			return err
		}
		if name == "." {
			continue
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, 0o755); err != nil {
				return entryError(header.Name, err)
			}
		case tar.TypeReg:
			if err := mkdirParent(root, name); err != nil {
				return entryError(header.Name, err)
			}
			if err := writeArchiveFile(root, name, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return entryError(header.Name, err)
			}
		case tar.TypeSymlink:
			if err := mkdirParent(root, name); err != nil {
				return entryError(header.Name, err)
			}
			link, err := checkSymlink(realRoot, name, header.Linkname)
			if err != nil {
				return err
			}
			if err := root.Symlink(link, name); err != nil {
				return entryError(header.Name, err)
			}
		default:
			log.Debug().Str("entry", header.Name).Msg("skipping unsupported tar entry")
		}
	}
}

func mkdirParent(root *os.Root, name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	return root.MkdirAll(dir, 0o755)
}

func writeArchiveFile(root *os.Root, name string, src io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func stageSingleFile(src io.Reader, destDir string, name string) error {
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return archiveError("file", err)
	}
	defer root.Close()
	if err := writeArchiveFile(root, filepath.Base(name), src, 0o755); err != nil {
		return entryError(name, err)
	}
	return nil
}

// entryName cleans an archive entry name into a path relative to the
// staging directory and rejects names that climb out of it.
func entryName(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(name, "/") {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive entry has absolute path: %s", name))
	}
	if !filepath.IsLocal(cleaned) && cleaned != "." {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive entry escapes staging directory: %s", name))
	}
	return cleaned, nil
}

// checkSymlink resolves where a link would point on disk, starting from
// the real location of its parent directory, and returns the cleaned
// link text to store.  Parents are resolved with EvalSymlinks because an
// earlier entry may have turned a path component into a link.
func checkSymlink(realRoot string, name string, linkname string) (string, error) {
	reject := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("archive symlink escapes staging directory: %s -> %s", name, linkname))
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return "", reject
	}
	parent, err := filepath.EvalSymlinks(filepath.Join(realRoot, filepath.Dir(name)))
	if err != nil || !withinRoot(realRoot, parent) {
		return "", reject
	}
	link := filepath.Clean(filepath.FromSlash(linkname))
	if !withinRoot(realRoot, filepath.Join(parent, link)) {
		return "", reject
	}
	return link, nil
}

func withinRoot(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func entryError(name string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("failed to extract archive entry %s", name)).
		WithCause(err)
}

func archiveError(kind string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("failed to read %s archive", kind)).
		WithCause(err)
}

var _ ports.ExtractorPort = ArchiveExtractorAdapter{}
