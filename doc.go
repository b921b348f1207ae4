// Package chronofact provides a temporal knowledge engine for Go.
//
// Chronofact stores facts with explicit validity windows on the event
// clock, resolves entity mentions to canonical identities, and answers
// questions about what was believed at any instant. Facts are never
// deleted: newer information supersedes older facts while the full history
// stays queryable.
//
// # Basic Usage
//
// Create a client over a store backend:
//
//	st, err := store.New(config.DatabaseConfig{Driver: "sqlite", DSN: "facts.db"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := st.Initialize(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := chronofact.NewClient(st, nil, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// # Recording Facts
//
// Facts carry the time they became true, not the time they were recorded:
//
//	fact, created, err := client.RecordFact(ctx, facts.CreateInput{
//		Text:    "Satya Nadella is CEO of Microsoft",
//		ValidAt: time.Date(2014, 2, 4, 0, 0, 0, 0, time.UTC),
//	})
//
// When a statement stops holding, supersede it rather than editing it:
//
//	newer, err := client.Supersede(ctx, fact.ID,
//		"Satya Nadella is Chairman and CEO of Microsoft",
//		time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC))
//
// # Temporal Queries
//
// Ask what was believed at an instant, or how belief changed between two:
//
//	then := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
//	snapshot, err := client.Query(ctx, types.QuerySpec{At: &then})
//
//	diff, err := client.Diff(ctx, then, time.Now(), "", "")
//
// # Entity Identity
//
// Mentions resolve through exact, alias and fuzzy tiers, and near-duplicate
// entities can be merged without losing either record:
//
//	entity, err := client.ResolveEntity(ctx, "MSFT", types.EntityTypeOrganization)
//
// # Batch Ingestion
//
// Drafts, whether hand-built or produced by an extractor, ingest through a
// bounded worker pool that preserves input order and isolates failures:
//
//	results := client.IngestDrafts(ctx, drafts)
//
// # Architecture
//
//   - pkg/store: storage backends (memory, SQLite, PostgreSQL)
//   - pkg/resolver: entity identity resolution
//   - pkg/facts: fact lifecycle and conflict handling
//   - pkg/temporal: point-in-time queries, timelines and diffs
//   - pkg/pipeline: concurrent batch ingestion
//   - pkg/extract: rule and LLM fact extraction
//   - pkg/types: core type definitions
package chronofact
