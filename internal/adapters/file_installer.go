package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

// FileInstallerAdapter copies planned files from the staged archive into
// the install prefix.
type FileInstallerAdapter struct{}

func NewFileInstallerAdapter() FileInstallerAdapter {
	return FileInstallerAdapter{}
}

// Apply places the plan in two phases.  Every file is first copied next
// to its destination as "<dest>.installing"; only then are they renamed
// into place.  A file being replaced is parked as "<dest>.previous"
// until the whole plan has landed, so a failure leaves the prefix as it
// was.  Sources are opened through an os.Root so symlinks in the staged
// archive cannot reach outside it.
func (a FileInstallerAdapter) Apply(ctx context.Context, archiveRoot string, plan []types.PlannedCopy) ([]types.InstalledFile, error) {
	src, err := os.OpenRoot(archiveRoot)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("staged archive not found").
			WithCause(err)
	}
	defer src.Close()

	staged := make([]string, 0, len(plan))
	discard := func(tmps []string) {
		for _, tmp := range tmps {
			_ = os.Remove(tmp)
		}
	}
	for _, item := range plan {
		if ctx.Err() != nil {
			discard(staged)
			return nil, ctx.Err()
		}
		tmp, err := stageInstallFile(src, item)
		if err != nil {
			discard(staged)
			return nil, err
		}
		staged = append(staged, tmp)
	}

	placed := make([]placedFile, 0, len(plan))
	for i, item := range plan {
		entry, err := placeInstallFile(staged[i], item.Destination)
		if err != nil {
			a.rollback(placed)
			discard(staged[i+1:])
			return nil, err
		}
		placed = append(placed, entry)
		log.Debug().Str("source", item.Source).Str("destination", item.Destination).Msg("file installed")
	}

	installed := make([]types.InstalledFile, 0, len(plan))
	for i, entry := range placed {
		if entry.backup != "" {
			if err := os.Remove(entry.backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("path", entry.backup).Msg("failed to remove replaced file")
			}
		}
		installed = append(installed, types.InstalledFile{Path: entry.path, Mode: uint32(plan[i].Mode)})
	}
	return installed, nil
}

func (a FileInstallerAdapter) Remove(ctx context.Context, prefix string, files []types.InstalledFile) error {
	var failed []string
	dirs := map[string]struct{}{}
	for _, file := range files {
		if err := os.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failed = append(failed, file.Path)
			continue
		}
		for dir := filepath.Dir(file.Path); withinRoot(prefix, dir) && dir != prefix; dir = filepath.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}
	pruneEmptyDirs(dirs)
	if len(failed) > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to remove %d installed files: %v", len(failed), failed))
	}
	return nil
}

type placedFile struct {
	path   string
	backup string
}

// rollback undoes placed files newest first, restoring whatever they
// replaced.
func (a FileInstallerAdapter) rollback(placed []placedFile) {
	for i := len(placed) - 1; i >= 0; i-- {
		entry := placed[i]
		if err := os.Remove(entry.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", entry.path).Msg("failed to roll back installed file")
			continue
		}
		if entry.backup == "" {
			continue
		}
		if err := os.Rename(entry.backup, entry.path); err != nil {
			log.Warn().Err(err).Str("path", entry.path).Msg("failed to restore replaced file")
		}
	}
}

// pruneEmptyDirs removes the deepest directories first; non-empty ones
// fail to delete and are left alone.
func pruneEmptyDirs(dirs map[string]struct{}) {
	ordered := make([]string, 0, len(dirs))
	for dir := range dirs {
		ordered = append(ordered, dir)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})
	for _, dir := range ordered {
		_ = os.Remove(dir)
	}
}

// stageInstallFile copies one planned source next to its destination
// and returns the temporary path.
func stageInstallFile(src *os.Root, item types.PlannedCopy) (string, error) {
	in, err := src.Open(filepath.FromSlash(item.Source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("install mapping source not found: %s", item.Source)).
				WithCause(err)
		}
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("install mapping source cannot be read from the archive: %s", item.Source)).
			WithCause(err)
	}
	defer in.Close()
	destination := item.Destination
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create install directory").
			WithCause(err)
	}
	mode := item.Mode
	if mode == 0 {
		mode = 0o644
	}
	tmp := destination + ".installing"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s", destination)).
			WithCause(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", destination)).
			WithCause(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", destination)).
			WithCause(err)
	}
	// OpenFile honours the umask; the planned mode must win
	if err := os.Chmod(tmp, mode); err != nil {
		_ = os.Remove(tmp)
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to set mode on %s", destination)).
			WithCause(err)
	}
	return tmp, nil
}

// placeInstallFile renames a staged file over its destination, parking
// an existing file as "<dest>.previous".
func placeInstallFile(tmp string, destination string) (placedFile, error) {
	entry := placedFile{path: destination}
	if info, err := os.Lstat(destination); err == nil && !info.IsDir() {
		backup := destination + ".previous"
		if err := os.Rename(destination, backup); err != nil {
			_ = os.Remove(tmp)
			return placedFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to replace %s", destination)).
				WithCause(err)
		}
		entry.backup = backup
	}
	if err := os.Rename(tmp, destination); err != nil {
		_ = os.Remove(tmp)
		if entry.backup != "" {
			_ = os.Rename(entry.backup, destination)
		}
		return placedFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to place %s", destination)).
			WithCause(err)
	}
	return entry, nil
}

var _ ports.FileInstallerPort = FileInstallerAdapter{}
