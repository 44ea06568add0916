package core

import (
	"regexp"
	"sort"
	"strings"

	debversion "github.com/knqyf263/go-deb-version"

	"stardate-formula/internal/types"
)

var (
	releaseTagPattern  = regexp.MustCompile(`/v?(\d+(?:\.\d+)+(?:[~+-][0-9A-Za-z.~+-]*)?)/`)
	releaseFilePattern = regexp.MustCompile(`-v?(\d+(?:\.\d+)+)\.(?:tar\.gz|tgz|tar\.xz|tar\.zst|tar|zip)$`)
)

// ReleaseVersion returns metadata.version when set, otherwise the
// version encoded in the download URL's release path or file name.
// It returns "" when no version can be found.
func ReleaseVersion(manifest types.Manifest) string {
	if version := strings.TrimSpace(manifest.Metadata.Version); version != "" {
		return strings.TrimPrefix(version, "v")
	}
	return VersionFromURL(manifest.Source.URL)
}

// VersionFromURL extracts a release version from a download URL such as
// https://github.com/o/r/releases/download/v1.0.0/stardate-1.0.0.tar.gz.
func VersionFromURL(url string) string {
	if match := releaseTagPattern.FindStringSubmatch(url); match != nil {
		return match[1]
	}
	if match := releaseFilePattern.FindStringSubmatch(url); match != nil {
		return match[1]
	}
	return ""
}

// CompareReleaseVersions orders release versions with Debian semantics,
// which treat "1.0.0~rc1" as older than "1.0.0".  Unparsable versions
// compare equal.
func CompareReleaseVersions(a string, b string) int {
	left, err := debversion.NewVersion(a)
	if err != nil {
		return 0
	}
	right, err := debversion.NewVersion(b)
	if err != nil {
		return 0
	}
	return left.Compare(right)
}

// SortRevisions orders revisions oldest first.  Revisions without a
// version keep their input order ahead of versioned ones.
func SortRevisions(revisions []types.Revision) []types.Revision {
	ordered := append([]types.Revision(nil), revisions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		vi, vj := ordered[i].Version, ordered[j].Version
		if vi == "" || vj == "" {
			return vi == "" && vj != ""
		}
		return CompareReleaseVersions(vi, vj) < 0
	})
	return ordered
}

// NewRevision wraps a manifest with its label and release version.
func NewRevision(label string, manifest types.Manifest) types.Revision {
	return types.Revision{
		Label:    label,
		Version:  ReleaseVersion(manifest),
		Manifest: manifest,
	}
}
