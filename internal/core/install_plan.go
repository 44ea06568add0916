package core

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/types"
)

const executableMode fs.FileMode = 0o755

type InstallPlanner struct{}

func NewInstallPlanner() InstallPlanner {
	return InstallPlanner{}
}

// ArchiveRoot returns the directory inside an extracted archive that
// install mappings are relative to.  Release tarballs that wrap
// everything in a single top-level directory are entered automatically.
func ArchiveRoot(fsys fs.FS) (string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read extracted archive").
			WithCause(err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return entries[0].Name(), nil
	}
	return ".", nil
}

// Plan expands every install mapping against the extracted archive.  A
// bin source that does not exist, or a prefix glob that matches
// nothing, fails the whole plan so nothing gets installed.
func (p InstallPlanner) Plan(ctx context.Context, archive fs.FS, prefix string, mappings []types.InstallMapping) ([]types.PlannedCopy, error) {
	var plan []types.PlannedCopy
	for _, mapping := range mappings {
		switch mapping.Kind {
		case types.InstallKindBin:
			entry, err := planBin(archive, prefix, mapping)
			if err != nil {
				return nil, err
			}
			plan = append(plan, entry)
		case types.InstallKindPrefix:
			copies, err := planPrefix(archive, prefix, mapping)
			if err != nil {
				return nil, err
			}
			plan = append(plan, copies...)
		default:
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unsupported install kind: %s", mapping.Kind))
		}
	}
	if err := checkDuplicateDestinations(plan); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Int("files", len(plan)).Str("prefix", prefix).Msg("install planned")
	return plan, nil
}

func planBin(archive fs.FS, prefix string, mapping types.InstallMapping) (types.PlannedCopy, error) {
	source := path.Clean(mapping.From)
	info, err := fs.Stat(archive, source)
	if err != nil {
		return types.PlannedCopy{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("install mapping source not found: %s", mapping.From)).
			WithCause(err)
	}
	if !info.Mode().IsRegular() {
		return types.PlannedCopy{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("bin mapping source is not a regular file: %s", mapping.From))
	}
	return types.PlannedCopy{
		Source:      source,
		Destination: filepath.Join(prefix, "bin", mapping.To),
		Mode:        executableMode,
	}, nil
}

func planPrefix(archive fs.FS, prefix string, mapping types.InstallMapping) ([]types.PlannedCopy, error) {
	matches, err := fs.Glob(archive, path.Clean(mapping.From))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid install glob: %s", mapping.From)).
			WithCause(err)
	}
	if len(matches) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("install mapping source not found: %s", mapping.From))
	}
	sort.Strings(matches)
	target := filepath.Join(prefix, filepath.FromSlash(path.Clean(mapping.To)))
	var plan []types.PlannedCopy
	for _, match := range matches {
		base := path.Dir(match)
		err := fs.WalkDir(archive, match, func(current string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			rel := current
			if base != "." {
				rel = current[len(base)+1:]
			}
			plan = append(plan, types.PlannedCopy{
				Source:      current,
				Destination: filepath.Join(target, filepath.FromSlash(rel)),
				Mode:        info.Mode().Perm(),
			})
			return nil
		})
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to walk install source %s", match)).
				WithCause(err)
		}
	}
	return plan, nil
}

func checkDuplicateDestinations(plan []types.PlannedCopy) error {
	seen := map[string]string{}
	for _, item := range plan {
		if previous, ok := seen[item.Destination]; ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("install destination %s is written by both %s and %s", item.Destination, previous, item.Source))
		}
		seen[item.Destination] = item.Source
	}
	return nil
}
