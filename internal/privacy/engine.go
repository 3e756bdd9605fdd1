// Package privacy composes fund obfuscation and number masking into
// reversible processing records, and reverses them over AI-edited text.
package privacy

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/masking"
)

// Engine produces ProcessingRecords. It holds no per-document state.
type Engine struct {
	masker   *masking.Masker
	registry *funds.Registry
	now      func() time.Time
	newID    func() string
}

// NewEngine creates an engine that masks with masker and obfuscates with the
// current contents of registry.
func NewEngine(masker *masking.Masker, registry *funds.Registry) *Engine {
	if masker == nil {
		masker = masking.Default()
	}
	return &Engine{
		masker:   masker,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Registry returns the fund registry the engine obfuscates with
func (e *Engine) Registry() *funds.Registry {
	return e.registry
}

// Process obfuscates fund names, then masks numbers, and returns the record.
// Fund names go first so digits inside a name such as "MasterFund1" are never
// masked on their own.
func (e *Engine) Process(raw string, meta DocumentMetadata) *ProcessingRecord {
	var obfuscated *funds.Result
	if e.registry != nil {
		obfuscated = e.registry.Snapshot().Obfuscate(raw)
	} else {
		obfuscated = &funds.Result{Text: raw}
	}

	masked, maskEntries := e.masker.Mask(obfuscated.Text)

	record := &ProcessingRecord{
		ID:              e.newID(),
		ProcessedAt:     e.now(),
		OriginalText:    raw,
		MaskedText:      masked,
		TotalCharacters: utf8.RuneCountInString(raw),
		PDFMetadata:     meta,
		MaskingInfo: MaskingInfo{
			MaskedValues: make(map[string]masking.MaskEntry, len(maskEntries)),
			TotalMasked:  len(maskEntries),
		},
		ObfuscationInfo: ObfuscationInfo{
			ObfuscatedFunds: make(map[string]funds.ObfuscationEntry, len(obfuscated.Entries)),
		},
	}

	for _, entry := range maskEntries {
		entry.Position = [2]int{
			obfuscated.RawOffset(entry.Position[0]),
			obfuscated.RawOffset(entry.Position[1]),
		}
		record.MaskingInfo.MaskedValues[entry.Token] = entry
	}

	occurrences := 0
	for _, entry := range obfuscated.Entries {
		record.ObfuscationInfo.ObfuscatedFunds[entry.Placeholder] = entry
		occurrences += entry.Occurrences
	}
	record.ObfuscationInfo.TotalObfuscated = occurrences

	record.TotalMaskedValues = len(maskEntries)
	record.TotalObfuscatedFunds = occurrences
	return record
}

// DecryptResult is the reconstructed text plus how much of the record's
// vocabulary was found in the candidate text.
type DecryptResult struct {
	Text string `json:"decrypted_text"`
	// Requested is the number of tokens and placeholders in the record
	Requested int `json:"requested"`
	// Resolved is the number of those that occurred at least once
	Resolved int `json:"resolved"`
	// Replacements counts every substituted occurrence
	Replacements int      `json:"replacements"`
	Missing      []string `json:"missing,omitempty"`
}

// Complete reports whether every identifier of the record was restored
func (d DecryptResult) Complete() bool {
	return d.Resolved == d.Requested
}

// Decrypt restores original values in candidate, which may be any text derived
// from the record's masked text. Substitution is driven by the identifiers,
// never by recorded positions. Placeholders are tried before tokens and longer
// identifiers before shorter ones, in a single pass so a restored value is
// never itself rewritten.
func Decrypt(candidate string, record *ProcessingRecord) DecryptResult {
	result := DecryptResult{Text: candidate}
	if record == nil {
		return result
	}

	var placeholders, tokens []identifier
	for id, e := range record.ObfuscationInfo.ObfuscatedFunds {
		placeholders = append(placeholders, identifier{id, e.Original})
	}
	for id, e := range record.MaskingInfo.MaskedValues {
		tokens = append(tokens, identifier{id, e.Original})
	}
	sortLongestFirst(placeholders)
	sortLongestFirst(tokens)

	ordered := append(placeholders, tokens...)
	result.Requested = len(ordered)
	if len(ordered) == 0 {
		return result
	}

	oldnew := make([]string, 0, 2*len(ordered))
	for _, p := range ordered {
		if p.id == "" {
			continue
		}
		oldnew = append(oldnew, p.id, p.original)
	}

	counts := countOccurrences(candidate, ordered)
	for _, p := range ordered {
		if n := counts[p.id]; n > 0 {
			result.Resolved++
			result.Replacements += n
		} else {
			result.Missing = append(result.Missing, p.id)
		}
	}
	sort.Slice(result.Missing, func(i, j int) bool {
		return lessIdentifier(result.Missing[i], result.Missing[j])
	})

	result.Text = strings.NewReplacer(oldnew...).Replace(candidate)
	return result
}

type identifier struct {
	id       string
	original string
}

func sortLongestFirst(ids []identifier) {
	sort.Slice(ids, func(i, j int) bool { return lessIdentifier(ids[j].id, ids[i].id) })
}

// countOccurrences counts non-overlapping matches with the precedence the
// replacer applies: at each position the first identifier in order wins.
// Identifiers are grouped by length so each position costs one map lookup
// per group rather than one comparison per identifier.
func countOccurrences(text string, ordered []identifier) map[string]int {
	type group struct {
		length int
		ids    map[string]bool
	}
	var groups []group
	for _, p := range ordered {
		if p.id == "" {
			continue
		}
		if n := len(groups); n == 0 || groups[n-1].length != len(p.id) {
			groups = append(groups, group{length: len(p.id), ids: make(map[string]bool)})
		}
		groups[len(groups)-1].ids[p.id] = true
	}

	counts := make(map[string]int, len(ordered))
	for i := 0; i < len(text); {
		matched := false
		for _, g := range groups {
			if i+g.length > len(text) {
				continue
			}
			if id := text[i : i+g.length]; g.ids[id] {
				counts[id]++
				i += g.length
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return counts
}
