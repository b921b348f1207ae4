package chronofact

import (
	"context"
	"log/slog"
	"time"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/extract"
	"github.com/chronofact/chronofact/pkg/facts"
	"github.com/chronofact/chronofact/pkg/pipeline"
	"github.com/chronofact/chronofact/pkg/resolver"
	"github.com/chronofact/chronofact/pkg/store"
	"github.com/chronofact/chronofact/pkg/temporal"
	"github.com/chronofact/chronofact/pkg/types"
)

// Engine is the full temporal knowledge engine surface.
type Engine interface {
	// ResolveEntity finds the canonical entity for a mention.
	ResolveEntity(ctx context.Context, mention string, entityType types.EntityType) (*types.Entity, error)

	// CreateEntity registers a new entity without attempting resolution.
	CreateEntity(ctx context.Context, name string, entityType types.EntityType) (*types.Entity, error)

	// AddAlias attaches an alias to an entity; inadmissible aliases drop
	// silently.
	AddAlias(ctx context.Context, entityID, alias string, kind types.AliasKind) error

	// MergeEntities folds mergeID into keepID and returns the survivor.
	MergeEntities(ctx context.Context, keepID, mergeID string) (*types.Entity, error)

	// GetEntity follows merge pointers to the canonical record.
	GetEntity(ctx context.Context, entityID string) (*types.Entity, error)

	// RecordFact stores a fact, idempotently on content and valid_at.
	RecordFact(ctx context.Context, in facts.CreateInput) (*types.Fact, bool, error)

	// GetFact fetches one fact by id.
	GetFact(ctx context.Context, factID string) (*types.Fact, error)

	// Supersede replaces a fact with a newer statement.
	Supersede(ctx context.Context, oldFactID, newText string, validAt time.Time) (*types.Fact, error)

	// Corroborate records independent support for a fact.
	Corroborate(ctx context.Context, factID, corroboratingID string) (*types.Fact, error)

	// Synthesize derives a new fact from several source facts.
	Synthesize(ctx context.Context, text string, validAt time.Time, derivedFromIDs []string) (*types.Fact, error)

	// Invalidate closes a fact's validity window without replacement.
	Invalidate(ctx context.Context, factID string, at time.Time) (*types.Fact, error)

	// FindConflicts surfaces divergent overlapping fact pairs, optionally
	// scoped to an entity or topic.
	FindConflicts(ctx context.Context, entityID, topic string) ([]types.Conflict, error)

	// ResolveConflict settles a conflict in favor of one fact.
	ResolveConflict(ctx context.Context, keepID string, supersedeIDs []string, reason string) error

	// Query evaluates a temporal query.
	Query(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error)

	// Timeline assembles an entity's full fact history, optionally
	// restricted to a time range.
	Timeline(ctx context.Context, entityID string, from, to *time.Time) (*temporal.Timeline, error)

	// Diff compares believed state between two instants, optionally scoped
	// to an entity or topic.
	Diff(ctx context.Context, t1, t2 time.Time, entityID, topic string) (*types.DiffResult, error)

	// IngestText extracts draft facts from text and ingests them.
	IngestText(ctx context.Context, sourceID, text string, refTime time.Time) ([]pipeline.Result, error)

	// IngestDrafts runs a draft batch through the concurrent pipeline.
	IngestDrafts(ctx context.Context, drafts []types.DraftFact) []pipeline.Result

	// Close releases the underlying store.
	Close() error
}

// Client is the main implementation of the Engine interface.
type Client struct {
	store     store.Store
	resolver  *resolver.Resolver
	facts     *facts.Service
	temporal  *temporal.Engine
	pipeline  *pipeline.Pipeline
	extractor extract.Extractor
	config    *config.Config
	logger    *slog.Logger
}

var _ Engine = (*Client)(nil)

// NewClient assembles an engine over an initialized store. A nil config
// takes defaults; a nil extractor disables IngestText; a nil logger falls
// back to slog.Default.
func NewClient(s store.Store, extractor extract.Extractor, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		store:     s,
		resolver:  resolver.New(s, cfg.Resolver, logger),
		facts:     facts.NewService(s, cfg.Facts, logger),
		temporal:  temporal.NewEngine(s, logger),
		pipeline:  pipeline.New(cfg.Pipeline, logger),
		extractor: extractor,
		config:    cfg,
		logger:    logger,
	}, nil
}

// Store exposes the underlying store, mainly for tests and tooling.
func (c *Client) Store() store.Store { return c.store }

// Close releases the store's resources.
func (c *Client) Close() error { return c.store.Close() }
