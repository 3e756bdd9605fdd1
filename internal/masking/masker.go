// Package masking replaces numeric values in document text with reversible
// mask tokens.
//
// Values are classified by pattern class. At every candidate position the
// classes are tried in Priority order, so a currency amount is consumed as a
// whole before its comma-grouped digits could be matched as a smaller plain
// integer, and a percentage keeps its trailing sign.
package masking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultTokenPrefix is the reserved, non-numeric prefix of every mask token
	DefaultTokenPrefix = "NUM_"
	// DefaultTokenWidth is the minimum zero-padded width of the token counter
	DefaultTokenWidth = 6
)

// PatternClass identifies the kind of numeric value a token stands for
type PatternClass string

const (
	ClassCurrency            PatternClass = "currency"
	ClassPercentage          PatternClass = "percentage"
	ClassCommaGroupedInteger PatternClass = "comma_grouped_integer"
	ClassDecimal             PatternClass = "decimal"
	ClassPlainInteger        PatternClass = "plain_integer"
)

// Priority is the order in which pattern classes are attempted at a position.
var Priority = []PatternClass{
	ClassCurrency,
	ClassPercentage,
	ClassCommaGroupedInteger,
	ClassDecimal,
	ClassPlainInteger,
}

// patternSources are anchored at the scan position.
var patternSources = map[PatternClass]string{
	ClassCurrency:            `^[$€£¥](?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?`,
	ClassPercentage:          `^\d+(?:\.\d+)?%`,
	ClassCommaGroupedInteger: `^\d{1,3}(?:,\d{3})+(?:\.\d+)?`,
	ClassDecimal:             `^\d+\.\d+`,
	ClassPlainInteger:        `^\d+`,
}

type pattern struct {
	class PatternClass
	re    *regexp.Regexp
	// closed patterns are delimited by a symbol and need no trailing
	// boundary, so "$2.5M" masks "$2.5" and keeps the magnitude suffix
	closed bool
}

var patterns = compilePatterns()

func compilePatterns() []pattern {
	compiled := make([]pattern, 0, len(Priority))
	for _, class := range Priority {
		compiled = append(compiled, pattern{
			class:  class,
			re:     regexp.MustCompile(patternSources[class]),
			closed: class == ClassPercentage || class == ClassCurrency,
		})
	}
	return compiled
}

// MaskEntry records one masked value. Position is the byte range of the value
// in the masker's input text.
type MaskEntry struct {
	Token    string       `json:"masked"`
	Original string       `json:"original"`
	Class    PatternClass `json:"pattern_class"`
	Position [2]int       `json:"position"`
}

// Masker issues mask tokens of the form <prefix><zero padded counter>.
// A Masker holds no per-document state and is safe for concurrent use.
type Masker struct {
	prefix string
	width  int
}

// NewMasker creates a masker. The prefix must not contain digits so tokens
// are never themselves candidates for masking.
func NewMasker(prefix string, width int) (*Masker, error) {
	if prefix == "" {
		return nil, fmt.Errorf("token prefix must not be empty")
	}
	if strings.IndexFunc(prefix, unicode.IsDigit) >= 0 {
		return nil, fmt.Errorf("token prefix must not contain digits: %q", prefix)
	}
	last, _ := utf8.DecodeLastRuneInString(prefix)
	if !isWordRune(last) {
		return nil, fmt.Errorf("token prefix must end with a letter or underscore: %q", prefix)
	}
	if width < 1 {
		return nil, fmt.Errorf("token width must be positive: %d", width)
	}
	return &Masker{prefix: prefix, width: width}, nil
}

// Default returns a masker producing NUM_000000 style tokens
func Default() *Masker {
	return &Masker{prefix: DefaultTokenPrefix, width: DefaultTokenWidth}
}

// Prefix returns the token prefix
func (m *Masker) Prefix() string {
	return m.prefix
}

// Mask replaces every recognised numeric value in text with a fresh token and
// returns the masked text along with the entries in order of appearance.
// Counters start at zero for every call.
func (m *Masker) Mask(text string) (string, []MaskEntry) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	width := m.tokenWidth(text)
	var (
		out     strings.Builder
		entries []MaskEntry
		copied  int
	)

	for i := 0; i < len(text); {
		class, end, ok := m.matchAt(text, i)
		if !ok {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}

		token := fmt.Sprintf("%s%0*d", m.prefix, width, len(entries))
		out.WriteString(text[copied:i])
		out.WriteString(token)
		entries = append(entries, MaskEntry{
			Token:    token,
			Original: text[i:end],
			Class:    class,
			Position: [2]int{i, end},
		})
		copied = end
		i = end
	}

	if len(entries) == 0 {
		return text, nil
	}
	out.WriteString(text[copied:])
	return out.String(), entries
}

// matchAt tries each pattern class in priority order at byte offset i.
func (m *Masker) matchAt(text string, i int) (PatternClass, int, bool) {
	if !startsCandidate(text, i) {
		return "", 0, false
	}
	rest := text[i:]
	for _, p := range patterns {
		loc := p.re.FindStringIndex(rest)
		if loc == nil {
			continue
		}
		end := i + loc[1]
		if !p.closed && !endsOnBoundary(text, end) {
			continue
		}
		return p.class, end, true
	}
	return "", 0, false
}

// tokenWidth fixes the counter width for one call so that no token can be a
// prefix of another. Every match starts a new digit run, so the number of
// digit runs bounds the number of tokens.
func (m *Masker) tokenWidth(text string) int {
	runs := 0
	inRun := false
	for i := 0; i < len(text); i++ {
		digit := text[i] >= '0' && text[i] <= '9'
		if digit && !inRun {
			runs++
		}
		inRun = digit
	}
	if runs == 0 {
		return m.width
	}
	if n := len(strconv.Itoa(runs - 1)); n > m.width {
		return n
	}
	return m.width
}

// startsCandidate reports whether a numeric value may begin at i: the byte is
// a digit or currency symbol and the value is not glued to a preceding word,
// number or version component.
func startsCandidate(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	if !isASCIIDigit(r) && !isCurrencySymbol(r) {
		return false
	}
	if i == 0 {
		return true
	}
	prev, size := utf8.DecodeLastRuneInString(text[:i])
	if isWordRune(prev) || isASCIIDigit(prev) {
		return false
	}
	if prev == '.' && isASCIIDigit(r) {
		// "v1.2" or "1.2.3": the trailing component belongs to the identifier
		before, _ := utf8.DecodeLastRuneInString(text[:i-size])
		if before != utf8.RuneError && (isWordRune(before) || isASCIIDigit(before)) {
			return false
		}
	}
	return true
}

// endsOnBoundary reports whether a value ending at end is not followed by a
// letter, digit, underscore or a further ".digit" component.
func endsOnBoundary(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	next, size := utf8.DecodeRuneInString(text[end:])
	if isWordRune(next) || isASCIIDigit(next) {
		return false
	}
	if next == '.' && end+size < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end+size:])
		if isASCIIDigit(after) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isCurrencySymbol(r rune) bool {
	switch r {
	case '$', '€', '£', '¥':
		return true
	}
	return false
}
