package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"stardate-formula/internal/types"
)

// ParseRuntimeDependency splits a depends_on entry of the form
// "name" or "name@version" (Homebrew versioned formula syntax).  The
// version must be a valid PEP 440 release such as "3.10".
func ParseRuntimeDependency(raw string) (types.RuntimeDependency, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return types.RuntimeDependency{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty runtime dependency")
	}
	name, version, _ := strings.Cut(value, "@")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if !isFormulaName(name) {
		return types.RuntimeDependency{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid runtime dependency name: %s", raw))
	}
	if strings.Contains(value, "@") {
		if version == "" {
			return types.RuntimeDependency{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("runtime dependency has empty version: %s", raw))
		}
		if _, err := pep440.Parse(version); err != nil {
			return types.RuntimeDependency{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid runtime dependency version: %s", raw)).
				WithCause(err)
		}
	}
	return types.RuntimeDependency{Raw: value, Name: name, Version: version}, nil
}

// CompareRuntimeVersions compares two PEP 440 versions so that "3.10"
// sorts after "3.9".
func CompareRuntimeVersions(a string, b string) (int, error) {
	left, err := pep440.Parse(a)
	if err != nil {
		return 0, err
	}
	right, err := pep440.Parse(b)
	if err != nil {
		return 0, err
	}
	return left.Compare(right), nil
}

// RuntimeSpecifier turns a versioned dependency into the PEP 440 range
// an interpreter must fall into: "3.10" becomes ">=3.10,<3.11".  An
// unversioned dependency accepts anything and yields "".
func RuntimeSpecifier(dep types.RuntimeDependency) (string, error) {
	if dep.Version == "" {
		return "", nil
	}
	segments := strings.Split(dep.Version, ".")
	last, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("runtime dependency version must be numeric: %s", dep.Raw)).
			WithCause(err)
	}
	upper := append([]string(nil), segments[:len(segments)-1]...)
	upper = append(upper, strconv.Itoa(last+1))
	return fmt.Sprintf(">=%s,<%s", dep.Version, strings.Join(upper, ".")), nil
}

// SatisfiesRuntime reports whether an interpreter reporting version
// actual can serve dep.
func SatisfiesRuntime(dep types.RuntimeDependency, actual string) (bool, error) {
	spec, err := RuntimeSpecifier(dep)
	if err != nil {
		return false, err
	}
	if spec == "" {
		return true, nil
	}
	specifiers, err := pep440.NewSpecifiers(spec)
	if err != nil {
		return false, err
	}
	version, err := pep440.Parse(strings.TrimSpace(actual))
	if err != nil {
		return false, err
	}
	return specifiers.Check(version), nil
}

// RuntimeExecutables lists the executable names probed for dep, most
// specific first.  Python formulae map "python@3.10" to "python3.10".
func RuntimeExecutables(dep types.RuntimeDependency) []string {
	if dep.Version == "" {
		return []string{dep.Name}
	}
	if dep.Name == "python" {
		return []string{"python" + dep.Version, "python3", "python"}
	}
	return []string{dep.Name + dep.Version, dep.Name + "@" + dep.Version, dep.Name}
}

func isFormulaName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '+' || r == '/':
		default:
			return false
		}
	}
	return true
}
