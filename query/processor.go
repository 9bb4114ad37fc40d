package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/semsearch/core"
)

// Config holds configuration for query processing.
type Config struct {
	// EnableSynonyms appends configured synonyms to matching queries.
	EnableSynonyms bool

	// EnableSpellCorrection rewrites known misspellings.
	EnableSpellCorrection bool

	// MaxSynonyms caps how many synonyms one matching term may append.
	MaxSynonyms int

	Synonyms    []Synonym
	Corrections []Correction

	// Intents are checked in order; the first matching pattern wins.
	Intents []IntentPatterns

	// MatchConfidence is reported when an intent pattern matches.
	MatchConfidence float64

	// DefaultConfidence is reported for the fallback product_search intent.
	DefaultConfidence float64

	Technologies []string
	Industries   []string
	UseCases     []string
}

// DefaultConfig returns a Config with the built-in vocabularies.
func DefaultConfig() *Config {
	return &Config{
		EnableSynonyms:        true,
		EnableSpellCorrection: true,
		MaxSynonyms:           2,
		Synonyms:              defaultSynonyms,
		Corrections:           defaultCorrections,
		Intents:               defaultIntents,
		MatchConfidence:       0.8,
		DefaultConfidence:     0.5,
		Technologies:          defaultTechnologies,
		Industries:            defaultIndustries,
		UseCases:              defaultUseCases,
	}
}

type compiledSynonym struct {
	pattern  *regexp.Regexp
	synonyms []string
}

type compiledCorrection struct {
	pattern     *regexp.Regexp
	misspelling string
	correction  string
}

type compiledIntent struct {
	category string
	patterns []*regexp.Regexp
}

var (
	budgetPattern = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+|\d+)`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Processor normalizes, expands and classifies search queries.
// All patterns are compiled once; a Processor is safe for concurrent use.
type Processor struct {
	config      *Config
	synonyms    []compiledSynonym
	corrections []compiledCorrection
	intents     []compiledIntent
}

// NewProcessor compiles the configured tables. A nil config uses DefaultConfig.
func NewProcessor(config *Config) (*Processor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Processor{config: config}

	for _, s := range config.Synonyms {
		re, err := wordPattern(s.Term)
		if err != nil {
			return nil, err
		}
		p.synonyms = append(p.synonyms, compiledSynonym{pattern: re, synonyms: s.Synonyms})
	}

	for _, c := range config.Corrections {
		re, err := wordPattern(c.Misspelling)
		if err != nil {
			return nil, err
		}
		p.corrections = append(p.corrections, compiledCorrection{
			pattern:     re,
			misspelling: c.Misspelling,
			correction:  c.Correction,
		})
	}

	for _, intent := range config.Intents {
		ci := compiledIntent{category: intent.Category}
		for _, pattern := range intent.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, err
			}
			ci.patterns = append(ci.patterns, re)
		}
		p.intents = append(p.intents, ci)
	}

	return p, nil
}

func wordPattern(term string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(term)) + `\b`)
}

// Normalize trims, lower-cases and collapses whitespace.
func Normalize(raw string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(strings.ToLower(raw), " "))
}

// ProcessQuery normalizes the raw query, then expands synonyms and corrects
// spelling when those steps are enabled.
func (p *Processor) ProcessQuery(raw string) string {
	q := Normalize(raw)
	if p.config.EnableSynonyms {
		q = p.ExpandSynonyms(q)
	}
	if p.config.EnableSpellCorrection {
		q = p.SpellCorrect(q)
	}
	return q
}

// ExpandSynonyms appends up to MaxSynonyms synonyms for each configured term
// found in the query. Existing tokens are never removed or reordered, and a
// synonym already present is not appended again.
func (p *Processor) ExpandSynonyms(query string) string {
	q := query
	for _, s := range p.synonyms {
		if !s.pattern.MatchString(query) {
			continue
		}
		added := 0
		for _, syn := range s.synonyms {
			if p.config.MaxSynonyms > 0 && added >= p.config.MaxSynonyms {
				break
			}
			re, err := wordPattern(syn)
			if err == nil && re.MatchString(q) {
				continue
			}
			q += " " + syn
			added++
		}
	}
	return q
}

// SpellCorrect replaces known misspellings at word boundaries.
func (p *Processor) SpellCorrect(query string) string {
	q := query
	for _, c := range p.corrections {
		q = c.pattern.ReplaceAllLiteralString(q, c.correction)
	}
	return q
}

// Corrections returns the table entries that match the query, in table order.
func (p *Processor) Corrections(query string) []Correction {
	var found []Correction
	for _, c := range p.corrections {
		if c.pattern.MatchString(query) {
			found = append(found, Correction{Misspelling: c.misspelling, Correction: c.correction})
		}
	}
	return found
}

// DetectIntent classifies the query. The first matching category wins with
// MatchConfidence; otherwise product_search with DefaultConfidence. Entities
// are always extracted.
func (p *Processor) DetectIntent(query string) core.Intent {
	intent := core.Intent{
		Category:   IntentProductSearch,
		Confidence: p.config.DefaultConfidence,
		Entities:   p.ExtractEntities(query),
	}

	for _, ci := range p.intents {
		for _, re := range ci.patterns {
			if re.MatchString(query) {
				intent.Category = ci.category
				intent.Confidence = p.config.MatchConfidence
				return intent
			}
		}
	}
	return intent
}

// ExtractEntities finds vocabulary terms by case-insensitive substring match
// and a "$1,000"-style budget.
func (p *Processor) ExtractEntities(query string) core.Entities {
	lower := strings.ToLower(query)
	entities := core.Entities{
		Technologies: matchVocabulary(lower, p.config.Technologies),
		Industries:   matchVocabulary(lower, p.config.Industries),
		UseCases:     matchVocabulary(lower, p.config.UseCases),
	}

	if m := budgetPattern.FindStringSubmatch(query); m != nil {
		if budget, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			entities.Budget = &budget
		}
	}
	return entities
}

func matchVocabulary(lower string, vocabulary []string) []string {
	found := []string{}
	for _, term := range vocabulary {
		if strings.Contains(lower, strings.ToLower(term)) {
			found = append(found, term)
		}
	}
	return found
}
