package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chronofact/chronofact/pkg/types"
)

// RulePattern is one extraction rule. The regular expression uses named
// capture groups; entity specs bind those groups to entity drafts.
type RulePattern struct {
	// Name labels the rule in logs.
	Name string `yaml:"name"`
	// Match is the regular expression applied per sentence.
	Match string `yaml:"match"`
	// Entities binds capture groups to draft entities.
	Entities []RuleEntity `yaml:"entities"`
	// Confidence assigned to drafts from this rule; defaults to 0.8.
	Confidence float64 `yaml:"confidence"`

	compiled *regexp.Regexp
}

// RuleEntity binds a capture group to an entity draft.
type RuleEntity struct {
	Group string            `yaml:"group"`
	Type  types.EntityType  `yaml:"type"`
	Role  types.MentionRole `yaml:"role"`
}

type rulesFile struct {
	Patterns []RulePattern `yaml:"patterns"`
}

// RuleExtractor matches text against a fixed pattern set. It is the default
// extractor when no LLM is configured, and useful in tests for deterministic
// output.
type RuleExtractor struct {
	patterns []RulePattern
	logger   *slog.Logger
}

// defaultRules covers common employment, location and leadership statements.
const defaultRules = `
patterns:
  - name: employment
    match: '(?P<subject>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*) (?:works at|joined|is employed by) (?P<org>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*)'
    confidence: 0.8
    entities:
      - group: subject
        type: person
        role: subject
      - group: org
        type: organization
        role: object
  - name: leadership
    match: '(?P<subject>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*) is (?:the )?(?:CEO|CTO|CFO|president|chair) of (?P<org>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*)'
    confidence: 0.85
    entities:
      - group: subject
        type: person
        role: subject
      - group: org
        type: organization
        role: object
  - name: location
    match: '(?P<subject>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*) (?:lives in|is located in|is based in|moved to) (?P<place>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*)'
    confidence: 0.75
    entities:
      - group: subject
        type: person
        role: subject
      - group: place
        type: place
        role: location
  - name: acquisition
    match: '(?P<subject>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*) acquired (?P<org>[A-Z][\w.-]*(?: [A-Z][\w.-]*)*)'
    confidence: 0.8
    entities:
      - group: subject
        type: organization
        role: subject
      - group: org
        type: organization
        role: object
`

// NewRuleExtractor loads patterns from a YAML file, or the built-in pattern
// set when path is empty.
func NewRuleExtractor(path string, logger *slog.Logger) (*RuleExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw := []byte(defaultRules)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		raw = data
	}

	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("rules file defines no patterns")
	}

	for i := range file.Patterns {
		compiled, err := regexp.Compile(file.Patterns[i].Match)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", file.Patterns[i].Name, err)
		}
		file.Patterns[i].compiled = compiled
		if file.Patterns[i].Confidence == 0 {
			file.Patterns[i].Confidence = 0.8
		}
	}
	return &RuleExtractor{patterns: file.Patterns, logger: logger}, nil
}

func (r *RuleExtractor) Name() string { return "rule" }

// Extract applies every pattern to each sentence of the text.
func (r *RuleExtractor) Extract(ctx context.Context, sourceID, text string, refTime time.Time) ([]types.DraftFact, error) {
	if refTime.IsZero() {
		refTime = time.Now().UTC()
	}

	var drafts []types.DraftFact
	for _, sentence := range splitSentences(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pattern := range r.patterns {
			match := pattern.compiled.FindStringSubmatch(sentence)
			if match == nil {
				continue
			}
			groups := map[string]string{}
			for i, name := range pattern.compiled.SubexpNames() {
				if name != "" && i < len(match) {
					groups[name] = match[i]
				}
			}

			draft := types.DraftFact{
				Text:       strings.TrimSpace(pattern.compiled.FindString(sentence)),
				ValidAt:    refTime,
				Confidence: pattern.Confidence,
				SourceID:   sourceID,
				Excerpt:    strings.TrimSpace(sentence),
				Method:     r.Name(),
			}
			for _, spec := range pattern.Entities {
				name, ok := groups[spec.Group]
				if !ok || name == "" {
					continue
				}
				draft.Entities = append(draft.Entities, types.DraftEntity{
					Name: name,
					Type: spec.Type,
					Role: spec.Role,
				})
			}
			drafts = append(drafts, draft)
			r.logger.Debug("rule matched", "rule", pattern.Name, "text", draft.Text)
		}
	}
	return drafts, nil
}

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+|\n+`)

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}
