package vocabulary

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultVocabulary []byte

type file struct {
	Version  int                 `yaml:"version"`
	Keywords []string            `yaml:"keywords"`
	Synonyms map[string][]string `yaml:"synonyms"`
}

// Vocabulary is an immutable keyword list plus synonym table. Safe for
// concurrent use.
type Vocabulary struct {
	keywords []string
	synonyms map[string][]string
	synTerms []string
}

// Load reads the vocabulary file at path. An empty path selects the built-in
// default.
func Load(path string) (*Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultVocabulary)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return Parse(raw)
}

func Default() *Vocabulary {
	v, err := Parse(defaultVocabulary)
	if err != nil {
		panic(fmt.Sprintf("built-in vocabulary: %v", err))
	}
	return v
}

func Parse(raw []byte) (*Vocabulary, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}

	keywords := normalizeTerms(f.Keywords)
	if len(keywords) == 0 {
		return nil, errors.New("vocabulary has no keywords")
	}

	synonyms := make(map[string][]string, len(f.Synonyms))
	for term, alts := range f.Synonyms {
		term = normalizeTerm(term)
		if term == "" {
			continue
		}
		if alts = normalizeTerms(alts); len(alts) > 0 {
			synonyms[term] = alts
		}
	}

	synTerms := make([]string, 0, len(synonyms))
	for term := range synonyms {
		synTerms = append(synTerms, term)
	}
	sort.Strings(synTerms)

	return &Vocabulary{keywords: keywords, synonyms: synonyms, synTerms: synTerms}, nil
}

// ExpandQuery appends the synonyms of every table term found in query.
// The original query always comes first; nothing is removed.
func (v *Vocabulary) ExpandQuery(query string) string {
	lowered := strings.ToLower(query)
	seen := make(map[string]struct{})
	additions := make([]string, 0)
	for _, term := range v.synTerms {
		if !strings.Contains(lowered, term) {
			continue
		}
		for _, alt := range v.synonyms[term] {
			if _, ok := seen[alt]; ok || strings.Contains(lowered, alt) {
				continue
			}
			seen[alt] = struct{}{}
			additions = append(additions, alt)
		}
	}
	if len(additions) == 0 {
		return query
	}
	return strings.TrimSpace(query) + " " + strings.Join(additions, " ")
}

// MatchKeywords returns the keywords that occur in query, in list order.
func (v *Vocabulary) MatchKeywords(query string) []string {
	lowered := strings.ToLower(strings.TrimSpace(query))
	out := make([]string, 0)
	for _, kw := range v.keywords {
		if strings.Contains(lowered, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// KeywordTerms returns the chunk match terms for query: every matched
// keyword followed by that keyword's synonym family.
func (v *Vocabulary) KeywordTerms(query string) []string {
	matched := v.MatchKeywords(query)
	out := make([]string, 0, len(matched))
	seen := make(map[string]struct{}, len(matched))
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	for _, kw := range matched {
		add(kw)
		for _, alt := range v.synonyms[kw] {
			add(alt)
		}
	}
	return out
}

func (v *Vocabulary) Keywords() []string {
	return append([]string(nil), v.keywords...)
}

func normalizeTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		term := normalizeTerm(raw)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
