// Package extract turns cleaned posting or profile text into structured
// signals: canonical skills, an experience level and required years.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// yearsRe matches "3 years", "5+ years", "3-5 years", "2 – 4 ans". Group 1 is the lower bound.
var yearsRe = regexp.MustCompile(`(\d+)\s*(?:[-–]\s*\d+\s*)?\+?\s*(?:years?|yrs?|ans)\b`)

// Signals is the structured output of Extract.
type Signals struct {
	Skills          []string
	ExperienceLevel Level
	YearsExperience int
}

type skillPattern struct {
	re        *regexp.Regexp
	canonical string
}

// Extractor is safe for concurrent use once constructed.
type Extractor struct {
	patterns  []skillPattern
	rules     []LevelRule
	canonical []string
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLevelRules replaces the default priority-ordered experience rules.
func WithLevelRules(rules []LevelRule) Option {
	return func(e *Extractor) {
		e.rules = make([]LevelRule, 0, len(rules))
		for _, rule := range rules {
			keywords := make([]string, 0, len(rule.Keywords))
			for _, k := range rule.Keywords {
				keywords = append(keywords, strings.ToLower(k))
			}
			e.rules = append(e.rules, LevelRule{Level: rule.Level, Keywords: keywords})
		}
	}
}

// New compiles the vocabulary into whole-word matchers.
func New(vocab Vocabulary, opts ...Option) *Extractor {
	e := &Extractor{
		rules:     DefaultLevelRules(),
		canonical: vocab.Canonical(),
	}

	seen := make(map[string]struct{})
	add := func(surface, canonical string) {
		surface = strings.ToLower(strings.TrimSpace(surface))
		canonical = strings.TrimSpace(canonical)
		if surface == "" || canonical == "" {
			return
		}
		key := surface + "\x00" + canonical
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		e.patterns = append(e.patterns, skillPattern{
			re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(surface) + `\b`),
			canonical: canonical,
		})
	}

	for _, skill := range vocab.Skills {
		add(skill, skill)
	}
	for _, alias := range sortedKeys(vocab.Aliases) {
		add(alias, vocab.Aliases[alias])
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// NewDefault returns an Extractor over DefaultVocabulary.
func NewDefault() *Extractor {
	return New(DefaultVocabulary())
}

// Vocabulary returns the canonical names this extractor can report.
func (e *Extractor) Vocabulary() []string {
	out := make([]string, len(e.canonical))
	copy(out, e.canonical)
	return out
}

// Extract runs all three extractions over text.
func (e *Extractor) Extract(text string) Signals {
	return Signals{
		Skills:          e.Skills(text),
		ExperienceLevel: e.ExperienceLevel(text),
		YearsExperience: e.YearsOfExperience(text),
	}
}

// Skills returns the sorted, de-duplicated canonical skills mentioned in text.
func (e *Extractor) Skills(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	lowered := strings.ToLower(text)
	found := make(map[string]struct{})
	for _, p := range e.patterns {
		if _, ok := found[p.canonical]; ok {
			continue
		}
		if p.re.MatchString(lowered) {
			found[p.canonical] = struct{}{}
		}
	}

	skills := make([]string, 0, len(found))
	for skill := range found {
		skills = append(skills, skill)
	}
	sort.Strings(skills)

	return skills
}

// ExperienceLevel classifies text by the first rule, in declared order, with a keyword hit.
func (e *Extractor) ExperienceLevel(text string) Level {
	if strings.TrimSpace(text) == "" {
		return LevelUnknown
	}

	lowered := strings.ToLower(text)
	for _, rule := range e.rules {
		if rule.matches(lowered) {
			return rule.Level
		}
	}

	return LevelUnknown
}

// YearsOfExperience returns the first "N years" figure in text, the lower bound
// for ranges, or 0.
func (e *Extractor) YearsOfExperience(text string) int {
	match := yearsRe.FindStringSubmatch(strings.ToLower(text))
	if match == nil {
		return 0
	}

	years, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}

	return years
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
