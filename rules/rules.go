// Package rules implements the deterministic half of the memory
// admission decision: cheap lexical checks that dispose of obvious
// noise and obvious keepers without a model round trip.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
	"gopkg.in/yaml.v3"
)

// Config is the YAML shape of a rule file.
type Config struct {
	NoisePatterns     []string `yaml:"noise_patterns"`
	ImportantKeywords []string `yaml:"important_keywords"`
	BlockedWords      []string `yaml:"blocked_words"`
	Language          string   `yaml:"language"`
}

// Rules is a compiled, immutable rule set.
type Rules struct {
	noise    []*regexp.Regexp
	keywords []string
	blocked  map[string]struct{} // stemmed
	language string
}

// Load reads and compiles a rule file.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	return New(cfg)
}

// New compiles a rule set from config.
func New(cfg Config) (*Rules, error) {
	r := &Rules{
		blocked:  make(map[string]struct{}, len(cfg.BlockedWords)),
		language: cfg.Language,
	}
	if r.language == "" {
		r.language = "english"
	}

	for _, pattern := range cfg.NoisePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile noise pattern %q: %w", pattern, err)
		}
		r.noise = append(r.noise, re)
	}

	for _, kw := range cfg.ImportantKeywords {
		r.keywords = append(r.keywords, strings.ToLower(kw))
	}

	// Block-list entries are stemmed once at load time so surface
	// variants ("smoking", "smoked") match a single entry.
	for _, word := range cfg.BlockedWords {
		r.blocked[r.stem(word)] = struct{}{}
	}

	return r, nil
}

// IsShort reports whether the text has fewer than three words.
func (r *Rules) IsShort(text string) bool {
	return len(strings.Fields(text)) < 3
}

// IsNoise reports whether the text matches any configured noise pattern.
func (r *Rules) IsNoise(text string) bool {
	for _, re := range r.noise {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// IsQuestion reports whether the text ends with "?" after trimming.
// Questions express an information need, not a fact to remember.
func (r *Rules) IsQuestion(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), "?")
}

// HasImportantKeyword reports whether the text contains any allow-list
// keyword, case-insensitively.
func (r *Rules) HasImportantKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var wordRe = regexp.MustCompile(`\w+`)

// HasBlockedWord tokenizes the text, normalizes each token by
// lower-casing and stemming, and checks for block-list hits.
func (r *Rules) HasBlockedWord(text string) bool {
	if len(r.blocked) == 0 {
		return false
	}
	for _, word := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if _, hit := r.blocked[r.stem(word)]; hit {
			return true
		}
	}
	return false
}

// IsSpam groups the hard-reject rules: too short, noise, or blocked.
func (r *Rules) IsSpam(text string) bool {
	return r.IsShort(text) || r.IsNoise(text) || r.HasBlockedWord(text)
}

// Decision is the outcome of the cheap rule stages.
type Decision int

const (
	// Reject means the text is never admitted; the model judge is not consulted.
	Reject Decision = iota

	// Admit means the text is admitted without a model call.
	Admit

	// AskJudge means the cheap rules are inconclusive.
	AskJudge
)

// Decide runs the rule stages in cost order: hard rejects first,
// then the keyword allow-list, then defer to the model judge.
func (r *Rules) Decide(text string) Decision {
	if r.IsSpam(text) || r.IsQuestion(text) {
		return Reject
	}
	if r.HasImportantKeyword(text) {
		return Admit
	}
	return AskJudge
}

func (r *Rules) stem(word string) string {
	stemmed, err := snowball.Stem(word, r.language, false)
	if err != nil {
		// Unknown language or token the stemmer chokes on: fall back
		// to the lower-cased surface form.
		return strings.ToLower(word)
	}
	return stemmed
}
