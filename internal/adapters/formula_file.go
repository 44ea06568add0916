package adapters

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"stardate-formula/internal/types"
)

// FormulaFileAdapter reads and writes the subset of the Homebrew formula
// DSL that declarative formulae use: metadata stanzas, depends_on, an
// install block of bin/prefix installs and a test block of system calls.
type FormulaFileAdapter struct{}

var (
	formulaClassPattern   = regexp.MustCompile(`^class\s+([A-Z][A-Za-z0-9]*)\s*<\s*Formula$`)
	formulaStanzaPattern  = regexp.MustCompile(`^(desc|homepage|url|sha256|version|depends_on)\s+(.+)$`)
	formulaStringPattern  = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	binInstallPattern     = regexp.MustCompile(`^bin\.install\s+(.+)$`)
	subdirInstallPattern  = regexp.MustCompile(`^\(prefix\s*/\s*"([^"]+)"\)\.install\s+(.+)$`)
	prefixInstallPattern  = regexp.MustCompile(`^prefix\.install\s+(.+)$`)
	dirGlobPattern        = regexp.MustCompile(`^Dir\["((?:[^"\\]|\\.)*)"\]$`)
	systemCallPattern     = regexp.MustCompile(`^system\s+(.+)$`)
	checksumStanzaPattern = regexp.MustCompile(`(?m)^(\s*sha256\s+)"[^"]*"`)
)

type formulaBlock int

const (
	formulaBlockTop formulaBlock = iota
	formulaBlockInstall
	formulaBlockTest
)

func NewFormulaFileAdapter() FormulaFileAdapter {
	return FormulaFileAdapter{}
}

// Parse decodes a formula.  The manifest name comes from the file name
// when path is set, following Homebrew, and from the class name
// otherwise.
func (a FormulaFileAdapter) Parse(path string, data []byte) (types.Manifest, error) {
	manifest := types.Manifest{
		APIVersion: types.ManifestAPIVersion,
		Kind:       types.ManifestKindFormula,
		Path:       path,
	}
	block := formulaBlockTop
	sawClass := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch block {
		case formulaBlockTop:
			switch {
			case formulaClassPattern.MatchString(line):
				match := formulaClassPattern.FindStringSubmatch(line)
				manifest.Metadata.Name = classToFormulaName(match[1])
				sawClass = true
			case line == "def install":
				block = formulaBlockInstall
			case line == "test do":
				block = formulaBlockTest
			case line == "end":
			case formulaStanzaPattern.MatchString(line):
				if err := applyStanza(&manifest, line); err != nil {
					return types.Manifest{}, formulaLineError(path, lineNo, err)
				}
			default:
				log.Debug().Str("formula", path).Int("line", lineNo).Str("text", line).Msg("ignoring formula statement")
			}
		case formulaBlockInstall:
			if line == "end" {
				block = formulaBlockTop
				continue
			}
			mappings, err := parseInstallStatement(line)
			if err != nil {
				return types.Manifest{}, formulaLineError(path, lineNo, err)
			}
			manifest.Install = append(manifest.Install, mappings...)
		case formulaBlockTest:
			if line == "end" {
				block = formulaBlockTop
				continue
			}
			command, err := parseSystemCall(line)
			if err != nil {
				return types.Manifest{}, formulaLineError(path, lineNo, err)
			}
			if len(manifest.Test.Command) > 0 {
				return types.Manifest{}, formulaLineError(path, lineNo, fmt.Errorf("only one system call is supported in the test block"))
			}
			manifest.Test.Command = command
		}
	}
	if err := scanner.Err(); err != nil {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read formula").
			WithCause(err)
	}
	if !sawClass {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("formula has no `class X < Formula` declaration")
	}
	if block != formulaBlockTop {
		return types.Manifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("formula has an unterminated block")
	}
	if base := strings.TrimSuffix(filepath.Base(path), ".rb"); path != "" && base != "" {
		manifest.Metadata.Name = base
	}
	return manifest, nil
}

// Render encodes a manifest as a formula.  signature_url has no formula
// equivalent and is dropped.
func (a FormulaFileAdapter) Render(manifest types.Manifest) ([]byte, error) {
	if strings.TrimSpace(manifest.Metadata.Name) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cannot render formula without metadata.name")
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "class %s < Formula\n", formulaNameToClass(manifest.Metadata.Name))
	writeStanza(&buf, "desc", manifest.Metadata.Description)
	writeStanza(&buf, "homepage", manifest.Metadata.Homepage)
	writeStanza(&buf, "url", manifest.Source.URL)
	writeStanza(&buf, "version", manifest.Metadata.Version)
	writeStanza(&buf, "sha256", manifest.Source.SHA256)
	if len(manifest.DependsOn) > 0 {
		buf.WriteString("\n")
		for _, dep := range manifest.DependsOn {
			writeStanza(&buf, "depends_on", dep)
		}
	}
	buf.WriteString("\n  def install\n")
	for _, mapping := range manifest.Install {
		statement, err := renderInstallStatement(mapping)
		if err != nil {
			return nil, err
		}
		buf.WriteString("    " + statement + "\n")
	}
	buf.WriteString("  end\n")
	if len(manifest.Test.Command) > 0 {
		quoted := make([]string, 0, len(manifest.Test.Command))
		for _, arg := range manifest.Test.Command {
			quoted = append(quoted, rubyQuote(arg))
		}
		buf.WriteString("\n  test do\n")
		buf.WriteString("    system " + strings.Join(quoted, ", ") + "\n")
		buf.WriteString("  end\n")
	}
	buf.WriteString("end\n")
	return buf.Bytes(), nil
}

// ReplaceChecksum rewrites the sha256 stanza in place.
func (a FormulaFileAdapter) ReplaceChecksum(data []byte, checksum string) ([]byte, error) {
	loc := checksumStanzaPattern.FindSubmatchIndex(data)
	if loc == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("formula has no sha256 stanza")
	}
	var out bytes.Buffer
	out.Write(data[:loc[3]])
	out.WriteString(rubyQuote(checksum))
	out.Write(data[loc[1]:])
	return out.Bytes(), nil
}

func applyStanza(manifest *types.Manifest, line string) error {
	match := formulaStanzaPattern.FindStringSubmatch(line)
	keyword, rest := match[1], match[2]
	values := rubyStrings(rest)
	if len(values) == 0 {
		return fmt.Errorf("%s expects a string literal", keyword)
	}
	value := values[0]
	switch keyword {
	case "desc":
		manifest.Metadata.Description = value
	case "homepage":
		manifest.Metadata.Homepage = value
	case "url":
		manifest.Source.URL = value
	case "sha256":
		manifest.Source.SHA256 = value
	case "version":
		manifest.Metadata.Version = value
	case "depends_on":
		if strings.Contains(rest, ":build") || strings.Contains(rest, ":test") {
			return nil
		}
		manifest.DependsOn = append(manifest.DependsOn, value)
	}
	return nil
}

func parseInstallStatement(line string) ([]types.InstallMapping, error) {
	switch {
	case binInstallPattern.MatchString(line):
		args := binInstallPattern.FindStringSubmatch(line)[1]
		return parseBinInstall(args)
	case subdirInstallPattern.MatchString(line):
		match := subdirInstallPattern.FindStringSubmatch(line)
		return parsePrefixInstall(unescapeRuby(match[1]), match[2])
	case prefixInstallPattern.MatchString(line):
		args := prefixInstallPattern.FindStringSubmatch(line)[1]
		return parsePrefixInstall(".", args)
	default:
		return nil, fmt.Errorf("unsupported install statement: %s", line)
	}
}

// parseBinInstall handles `bin.install "a" => "b"` and
// `bin.install "a", "b"`.
func parseBinInstall(args string) ([]types.InstallMapping, error) {
	if strings.Contains(args, "=>") {
		left, right, _ := strings.Cut(args, "=>")
		from := rubyStrings(left)
		to := rubyStrings(right)
		if len(from) != 1 || len(to) != 1 {
			return nil, fmt.Errorf("unsupported bin.install rename: %s", args)
		}
		return []types.InstallMapping{{From: from[0], To: to[0], Kind: types.InstallKindBin}}, nil
	}
	sources := rubyStrings(args)
	if len(sources) == 0 {
		return nil, fmt.Errorf("bin.install expects string literals: %s", args)
	}
	mappings := make([]types.InstallMapping, 0, len(sources))
	for _, source := range sources {
		mappings = append(mappings, types.InstallMapping{From: source, To: filepath.Base(source), Kind: types.InstallKindBin})
	}
	return mappings, nil
}

func parsePrefixInstall(to string, args string) ([]types.InstallMapping, error) {
	args = strings.TrimSpace(args)
	if match := dirGlobPattern.FindStringSubmatch(args); match != nil {
		return []types.InstallMapping{{From: unescapeRuby(match[1]), To: to, Kind: types.InstallKindPrefix}}, nil
	}
	sources := rubyStrings(args)
	if len(sources) == 0 {
		return nil, fmt.Errorf("prefix install expects string literals or Dir[...]: %s", args)
	}
	mappings := make([]types.InstallMapping, 0, len(sources))
	for _, source := range sources {
		mappings = append(mappings, types.InstallMapping{From: source, To: to, Kind: types.InstallKindPrefix})
	}
	return mappings, nil
}

// parseSystemCall turns `system "#{bin}/stardate", "--help"` into
// [stardate --help].
func parseSystemCall(line string) ([]string, error) {
	match := systemCallPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, fmt.Errorf("unsupported test statement: %s", line)
	}
	args := rubyStrings(match[1])
	if len(args) == 0 {
		return nil, fmt.Errorf("system expects string literals: %s", line)
	}
	args[0] = strings.TrimPrefix(args[0], "#{bin}/")
	return args, nil
}

func renderInstallStatement(mapping types.InstallMapping) (string, error) {
	switch mapping.Kind {
	case types.InstallKindBin:
		if filepath.Base(mapping.From) == mapping.To {
			return "bin.install " + rubyQuote(mapping.From), nil
		}
		return fmt.Sprintf("bin.install %s => %s", rubyQuote(mapping.From), rubyQuote(mapping.To)), nil
	case types.InstallKindPrefix:
		source := rubyQuote(mapping.From)
		if strings.ContainsAny(mapping.From, "*?[") {
			source = fmt.Sprintf("Dir[%s]", rubyQuote(mapping.From))
		}
		if mapping.To == "." {
			return "prefix.install " + source, nil
		}
		return fmt.Sprintf("(prefix/%s).install %s", rubyQuote(mapping.To), source), nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("cannot render install kind %q", mapping.Kind))
	}
}

func writeStanza(buf *bytes.Buffer, keyword string, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(buf, "  %s %s\n", keyword, rubyQuote(value))
}

func rubyStrings(value string) []string {
	matches := formulaStringPattern.FindAllStringSubmatch(value, -1)
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, unescapeRuby(match[1]))
	}
	return out
}

func unescapeRuby(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	unquoted, err := strconv.Unquote(`"` + strings.ReplaceAll(value, `\#`, `#`) + `"`)
	if err != nil {
		return value
	}
	return unquoted
}

func rubyQuote(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `#{`, `\#{`)
	return `"` + replacer.Replace(value) + `"`
}

// classToFormulaName follows Homebrew: "StardateCli" becomes
// "stardate-cli".
func classToFormulaName(class string) string {
	var b strings.Builder
	for i, r := range class {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formulaNameToClass(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r == '-' || r == '_' || r == '.':
			upper = true
		case r == '@':
			b.WriteString("AT")
			upper = false
		case upper:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formulaLineError(path string, line int, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("%s:%d: %s", path, line, err.Error()))
}
