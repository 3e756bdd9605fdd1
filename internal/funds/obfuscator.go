package funds

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ObfuscationEntry maps one placeholder back to the fund name it replaced.
// A placeholder covers every occurrence of its fund in the document; Original
// keeps the casing of the first occurrence.
type ObfuscationEntry struct {
	Placeholder string   `json:"placeholder"`
	Original    string   `json:"original"`
	Positions   [][2]int `json:"position"`
	Occurrences int      `json:"occurrences"`
}

// Substitution is one replaced range, in raw and in obfuscated coordinates
type Substitution struct {
	RawStart, RawEnd int
	OutStart, OutEnd int
}

// Result is the outcome of obfuscating one text
type Result struct {
	Text          string
	Entries       []ObfuscationEntry
	Substitutions []Substitution
}

// RawOffset maps a byte offset in the obfuscated text back to the raw text.
// Offsets inside a placeholder map to the start of the replaced name.
func (r *Result) RawOffset(p int) int {
	delta := 0
	for _, s := range r.Substitutions {
		if s.OutStart >= p {
			break
		}
		if p < s.OutEnd {
			return s.RawStart
		}
		delta += (s.RawEnd - s.RawStart) - (s.OutEnd - s.OutStart)
	}
	return p + delta
}

// Snapshot is an immutable view of the registry with a compiled matcher
type Snapshot struct {
	names   []string
	byKey   map[string]string
	matcher *regexp.Regexp
	// anchored holds one pattern per name, longest first, for retrying
	// shorter names at a position the matcher's pick was rejected at
	anchored []*regexp.Regexp
}

func newSnapshot(names []string, byKey map[string]string) *Snapshot {
	s := &Snapshot{
		names: append([]string(nil), names...),
		byKey: make(map[string]string, len(byKey)),
	}
	for k, v := range byKey {
		s.byKey[k] = v
	}
	if len(s.names) == 0 {
		return s
	}

	alternatives := make([]string, 0, len(s.names))
	for _, name := range sortedByLength(s.names) {
		alternatives = append(alternatives, wordPattern(name))
		s.anchored = append(s.anchored, regexp.MustCompile(`^(?i)(?:`+wordPattern(name)+`)`))
	}
	s.matcher = regexp.MustCompile(`(?i)(?:` + strings.Join(alternatives, "|") + `)`)
	return s
}

// wordPattern quotes name and anchors it on ASCII word boundaries where its
// edges are word characters.
func wordPattern(name string) string {
	p := regexp.QuoteMeta(name)
	first, _ := utf8.DecodeRuneInString(name)
	last, _ := utf8.DecodeLastRuneInString(name)
	if isASCIIWord(first) {
		p = `\b` + p
	}
	if isASCIIWord(last) {
		p = p + `\b`
	}
	return p
}

// Len returns the number of registered names
func (s *Snapshot) Len() int {
	return len(s.names)
}

// PlaceholderFor returns the placeholder of a fund name, compared
// case-insensitively
func (s *Snapshot) PlaceholderFor(name string) (string, bool) {
	if p, ok := s.byKey[strings.ToLower(name)]; ok {
		return p, true
	}
	for _, known := range s.names {
		if strings.EqualFold(known, name) {
			return s.byKey[strings.ToLower(known)], true
		}
	}
	return "", false
}

// Obfuscate replaces every whole-word occurrence of a registered fund name,
// longest name first, with the name's placeholder.
func (s *Snapshot) Obfuscate(text string) *Result {
	result := &Result{Text: text}
	if s.matcher == nil || text == "" {
		return result
	}

	var (
		out    strings.Builder
		copied int
	)
	index := make(map[string]int)

	for pos := 0; pos < len(text); {
		loc := s.matcher.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		placeholder, ok := s.PlaceholderFor(text[start:end])
		if !ok || !onWordBoundary(text, start, end) {
			end, placeholder, ok = s.shorterAt(text, start, end)
		}
		if !ok {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}
		match := text[start:end]

		out.WriteString(text[copied:start])
		outStart := out.Len()
		out.WriteString(placeholder)
		result.Substitutions = append(result.Substitutions, Substitution{
			RawStart: start, RawEnd: end,
			OutStart: outStart, OutEnd: out.Len(),
		})

		i, seen := index[placeholder]
		if !seen {
			i = len(result.Entries)
			index[placeholder] = i
			result.Entries = append(result.Entries, ObfuscationEntry{
				Placeholder: placeholder,
				Original:    match,
			})
		}
		result.Entries[i].Positions = append(result.Entries[i].Positions, [2]int{start, end})
		result.Entries[i].Occurrences++

		copied = end
		pos = end
	}

	if len(result.Substitutions) > 0 {
		out.WriteString(text[copied:])
		result.Text = out.String()
	}
	return result
}

// shorterAt looks for the longest registered name starting at start that ends
// before limit and passes the Unicode boundary check.
func (s *Snapshot) shorterAt(text string, start, limit int) (int, string, bool) {
	rest := text[start:]
	for _, re := range s.anchored {
		loc := re.FindStringIndex(rest)
		if loc == nil || loc[1] == 0 || start+loc[1] >= limit {
			continue
		}
		end := start + loc[1]
		if !onWordBoundary(text, start, end) {
			continue
		}
		if placeholder, ok := s.PlaceholderFor(text[start:end]); ok {
			return end, placeholder, true
		}
	}
	return 0, "", false
}

// Obfuscate replaces registered fund names in text using the registry's
// current snapshot.
func Obfuscate(text string, registry *Registry) (string, []ObfuscationEntry) {
	result := registry.Snapshot().Obfuscate(text)
	return result.Text, result.Entries
}

// onWordBoundary applies the Unicode-aware boundary check that the ASCII \b
// in the matcher cannot express.
func onWordBoundary(text string, start, end int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:end])
		if isWord(first) && isWord(prev) {
			return false
		}
	}
	if end < len(text) {
		next, _ := utf8.DecodeRuneInString(text[end:])
		last, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isWord(last) && isWord(next) {
			return false
		}
	}
	return true
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIWord(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
