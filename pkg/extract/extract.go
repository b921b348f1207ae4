// Package extract turns source text into draft facts ready for ingestion.
//
// Two extractors are provided: a rule extractor driven by regular
// expression patterns, and an LLM extractor that prompts an
// OpenAI-compatible model. Either can be wrapped in a circuit breaker for
// use against flaky backends.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/types"
)

// Extractor produces draft facts from a piece of source text. The reference
// time anchors statements that carry no explicit date of their own.
type Extractor interface {
	// Name identifies the extractor, recorded on drafts as the
	// extraction method.
	Name() string
	Extract(ctx context.Context, sourceID, text string, refTime time.Time) ([]types.DraftFact, error)
}

// NewFromConfig builds the configured extractor chain: the LLM extractor
// when an API key is present, the rule extractor otherwise, with the
// circuit breaker wrapped around either when enabled.
func NewFromConfig(cfg config.ExtractConfig, logger *slog.Logger) (Extractor, error) {
	var (
		extractor Extractor
		err       error
	)
	if cfg.OpenAIAPIKey != "" {
		extractor = NewOpenAIExtractor(cfg, logger)
	} else {
		extractor, err = NewRuleExtractor(cfg.RulesPath, logger)
		if err != nil {
			return nil, fmt.Errorf("build rule extractor: %w", err)
		}
	}
	if cfg.BreakerEnabled {
		extractor = NewBreakerExtractor(extractor, logger)
	}
	return extractor, nil
}
