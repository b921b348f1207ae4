package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chronofact/chronofact/pkg/types"
)

// Dialect selects the SQL flavor of a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Store on database/sql. SQLite and PostgreSQL share the
// implementation; the dialect only drives placeholder style, the schema
// bootstrap, and the text-match operator.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// DB exposes the underlying handle, used by tests and migrations.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders into the dialect's positional form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func marshalJSON(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}

func unmarshalStrings(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalMetadata(raw sql.NullString) map[string]interface{} {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

func (s *SQLStore) CreateEntity(ctx context.Context, entity *types.Entity) error {
	metadata, err := marshalJSON(entity.Metadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create entity: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO entities (id, name, type, resolution_status, canonical_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?)`),
		entity.ID, entity.Name, string(entity.Type), string(entity.ResolutionStatus),
		metadata, entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}

	for _, alias := range entity.Aliases {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO aliases (entity_id, text, kind, confidence) VALUES (?, ?, ?, ?)`),
			entity.ID, alias.Text, string(alias.Kind), alias.Confidence)
		if err != nil {
			return fmt.Errorf("insert alias: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, type, resolution_status, canonical_id, metadata, created_at, updated_at
		FROM entities WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("select entity: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, &types.NotFoundError{Kind: "entity", ID: id}
	}
	entity, err := scanEntity(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	entity.Aliases, err = s.aliasesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func scanEntity(rows *sql.Rows) (*types.Entity, error) {
	var (
		entity      types.Entity
		typ, status string
		canonicalID sql.NullString
		metadata    sql.NullString
	)
	if err := rows.Scan(&entity.ID, &entity.Name, &typ, &status, &canonicalID,
		&metadata, &entity.CreatedAt, &entity.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	entity.Type = types.EntityType(typ)
	entity.ResolutionStatus = types.ResolutionStatus(status)
	if canonicalID.Valid {
		id := canonicalID.String
		entity.CanonicalID = &id
	}
	entity.Metadata = unmarshalMetadata(metadata)
	return &entity, nil
}

func (s *SQLStore) aliasesFor(ctx context.Context, entityID string) ([]types.Alias, error) {
	rows, err := s.query(ctx, `
		SELECT text, kind, confidence FROM aliases WHERE entity_id = ?`, entityID)
	if err != nil {
		return nil, fmt.Errorf("select aliases: %w", err)
	}
	defer rows.Close()

	var aliases []types.Alias
	for rows.Next() {
		var alias types.Alias
		var kind string
		if err := rows.Scan(&alias.Text, &kind, &alias.Confidence); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		alias.Kind = types.AliasKind(kind)
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func (s *SQLStore) ListEntities(ctx context.Context, entityType types.EntityType, includeMerged bool) ([]*types.Entity, error) {
	query := `
		SELECT id, name, type, resolution_status, canonical_id, metadata, created_at, updated_at
		FROM entities WHERE 1=1`
	var args []interface{}
	if entityType != "" {
		query += ` AND type = ?`
		args = append(args, string(entityType))
	}
	if !includeMerged {
		query += ` AND resolution_status != ?`
		args = append(args, string(types.ResolutionMerged))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entity := range entities {
		if entity.Aliases, err = s.aliasesFor(ctx, entity.ID); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (s *SQLStore) AddAlias(ctx context.Context, entityID string, alias types.Alias) error {
	if _, err := s.GetEntity(ctx, entityID); err != nil {
		return err
	}
	// Insert-if-absent keyed on (entity_id, text); a duplicate alias is a
	// no-op, matching the memory store.
	res, err := s.exec(ctx, `
		INSERT INTO aliases (entity_id, text, kind, confidence)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM aliases WHERE entity_id = ? AND LOWER(text) = LOWER(?)
		)`,
		entityID, alias.Text, string(alias.Kind), alias.Confidence, entityID, alias.Text)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	_, _ = res.RowsAffected()
	return nil
}

func (s *SQLStore) MergeEntities(ctx context.Context, keepID, mergeID string) error {
	if _, err := s.GetEntity(ctx, keepID); err != nil {
		return err
	}
	if _, err := s.GetEntity(ctx, mergeID); err != nil {
		return err
	}

	// The status guard makes the tombstone write race-safe: a concurrent
	// merge of the same entity updates zero rows and reports a conflict.
	res, err := s.exec(ctx, `
		UPDATE entities
		SET resolution_status = ?, canonical_id = ?, updated_at = ?
		WHERE id = ? AND resolution_status != ?`,
		string(types.ResolutionMerged), keepID, time.Now().UTC(),
		mergeID, string(types.ResolutionMerged))
	if err != nil {
		return fmt.Errorf("merge entities: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("merge entities: %w", err)
	}
	if affected == 0 {
		return &types.ConflictError{Op: "merge", Reason: "entity " + mergeID + " is already merged"}
	}
	return nil
}

func (s *SQLStore) UpdateEntityStatus(ctx context.Context, entityID string, status types.ResolutionStatus) error {
	res, err := s.exec(ctx, `
		UPDATE entities SET resolution_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("update entity status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &types.NotFoundError{Kind: "entity", ID: entityID}
	}
	return nil
}

func (s *SQLStore) CreateFact(ctx context.Context, fact *types.Fact, mentions []*types.EntityMention, sources []*types.FactSource) (*types.Fact, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin create fact: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertFactTx(ctx, tx, fact); err != nil {
		// Creation races are expected: fall back to the existing row for
		// the same (digest, valid_at) rather than failing. Release the
		// transaction first so the lookup can use the connection.
		tx.Rollback()
		existing, lookupErr := s.factByDigest(ctx, fact.Digest, fact.ValidAt)
		if lookupErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert fact: %w", err)
	}

	for _, m := range mentions {
		if err := s.insertMentionTx(ctx, tx, fact.ID, m); err != nil {
			return nil, false, err
		}
	}
	for _, src := range sources {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO fact_sources (fact_id, source_id, kind, excerpt, confidence)
			VALUES (?, ?, ?, ?, ?)`),
			fact.ID, src.SourceID, string(src.Kind), src.Excerpt, src.Confidence)
		if err != nil {
			return nil, false, fmt.Errorf("insert fact source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit create fact: %w", err)
	}
	return fact, true, nil
}

func (s *SQLStore) insertFactTx(ctx context.Context, tx *sql.Tx, fact *types.Fact) error {
	metadata, err := marshalJSON(fact.Metadata)
	if err != nil {
		return err
	}
	derived, err := marshalJSON(fact.DerivedFromIDs)
	if err != nil {
		return err
	}
	corroborated, err := marshalJSON(fact.CorroboratedByIDs)
	if err != nil {
		return err
	}

	var invalidAt interface{}
	if fact.InvalidAt != nil {
		invalidAt = *fact.InvalidAt
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO facts (id, text, content_digest, valid_at, invalid_at, status,
			superseded_by_id, derived_from_ids, corroborated_by_ids,
			confidence, extraction_method, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, ?)`),
		fact.ID, fact.Text, fact.Digest, fact.ValidAt, invalidAt, string(fact.Status),
		derived, corroborated, fact.Confidence, fact.ExtractionMethod, metadata, fact.CreatedAt)
	return err
}

func (s *SQLStore) insertMentionTx(ctx context.Context, tx *sql.Tx, factID string, m *types.EntityMention) error {
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO mentions (fact_id, entity_id, mention_text, mention_role, confidence)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM mentions WHERE fact_id = ? AND entity_id = ? AND mention_text = ?
		)`,
	), factID, m.EntityID, m.Text, string(m.Role), m.Confidence, factID, m.EntityID, m.Text)
	if err != nil {
		return fmt.Errorf("insert mention: %w", err)
	}
	return nil
}

func (s *SQLStore) factByDigest(ctx context.Context, digest string, validAt time.Time) (*types.Fact, error) {
	rows, err := s.query(ctx, factSelect+` WHERE content_digest = ? AND valid_at = ?`, digest, validAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, &types.NotFoundError{Kind: "fact", ID: digest}
	}
	return scanFact(rows)
}

const factSelect = `
	SELECT id, text, content_digest, valid_at, invalid_at, status,
		superseded_by_id, derived_from_ids, corroborated_by_ids,
		confidence, extraction_method, metadata, created_at
	FROM facts`

func scanFact(rows *sql.Rows) (*types.Fact, error) {
	var (
		fact           types.Fact
		invalidAt      sql.NullTime
		status         string
		supersededBy   sql.NullString
		derived        sql.NullString
		corroborated   sql.NullString
		extractionNull sql.NullString
		metadata       sql.NullString
	)
	if err := rows.Scan(&fact.ID, &fact.Text, &fact.Digest, &fact.ValidAt, &invalidAt,
		&status, &supersededBy, &derived, &corroborated,
		&fact.Confidence, &extractionNull, &metadata, &fact.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan fact: %w", err)
	}
	if invalidAt.Valid {
		t := invalidAt.Time
		fact.InvalidAt = &t
	}
	fact.Status = types.FactStatus(status)
	if supersededBy.Valid {
		id := supersededBy.String
		fact.SupersededByID = &id
	}
	fact.DerivedFromIDs = unmarshalStrings(derived)
	fact.CorroboratedByIDs = unmarshalStrings(corroborated)
	fact.ExtractionMethod = extractionNull.String
	fact.Metadata = unmarshalMetadata(metadata)
	return &fact, nil
}

func (s *SQLStore) GetFact(ctx context.Context, id string) (*types.Fact, error) {
	rows, err := s.query(ctx, factSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("select fact: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, &types.NotFoundError{Kind: "fact", ID: id}
	}
	return scanFact(rows)
}

func (s *SQLStore) ListFacts(ctx context.Context, spec types.QuerySpec) ([]*types.Fact, error) {
	query := factSelect + ` WHERE 1=1`
	var args []interface{}

	statuses := spec.EffectiveStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	query += ` AND status IN (` + placeholders + `)`
	for _, status := range statuses {
		args = append(args, string(status))
	}

	if spec.At != nil {
		query += ` AND valid_at <= ? AND (invalid_at IS NULL OR invalid_at > ?)`
		args = append(args, *spec.At, *spec.At)
	}
	if spec.From != nil && spec.To != nil {
		query += ` AND valid_at <= ? AND (invalid_at IS NULL OR invalid_at > ?)`
		args = append(args, *spec.To, *spec.From)
	} else if spec.From != nil {
		query += ` AND (invalid_at IS NULL OR invalid_at > ?)`
		args = append(args, *spec.From)
	} else if spec.To != nil {
		query += ` AND valid_at <= ?`
		args = append(args, *spec.To)
	}

	if spec.EntityID != "" {
		query += ` AND id IN (SELECT fact_id FROM mentions WHERE entity_id = ?)`
		args = append(args, spec.EntityID)
	}
	if spec.Topic != "" {
		if s.dialect == DialectPostgres {
			query += ` AND text ILIKE ?`
		} else {
			query += ` AND text LIKE ?`
		}
		args = append(args, "%"+spec.Topic+"%")
	}

	query += ` ORDER BY valid_at ASC, id ASC`
	if spec.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, spec.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []*types.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

func (s *SQLStore) MentionsForFact(ctx context.Context, factID string) ([]*types.EntityMention, error) {
	rows, err := s.query(ctx, `
		SELECT fact_id, entity_id, mention_text, mention_role, confidence
		FROM mentions WHERE fact_id = ?`, factID)
	if err != nil {
		return nil, fmt.Errorf("select mentions: %w", err)
	}
	defer rows.Close()

	var mentions []*types.EntityMention
	for rows.Next() {
		var m types.EntityMention
		var role string
		if err := rows.Scan(&m.FactID, &m.EntityID, &m.Text, &role, &m.Confidence); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		m.Role = types.MentionRole(role)
		mentions = append(mentions, &m)
	}
	return mentions, rows.Err()
}

func (s *SQLStore) SourcesForFact(ctx context.Context, factID string) ([]*types.FactSource, error) {
	rows, err := s.query(ctx, `
		SELECT fact_id, source_id, kind, excerpt, confidence
		FROM fact_sources WHERE fact_id = ?`, factID)
	if err != nil {
		return nil, fmt.Errorf("select fact sources: %w", err)
	}
	defer rows.Close()

	var sources []*types.FactSource
	for rows.Next() {
		var src types.FactSource
		var kind string
		if err := rows.Scan(&src.FactID, &src.SourceID, &kind, &src.Excerpt, &src.Confidence); err != nil {
			return nil, fmt.Errorf("scan fact source: %w", err)
		}
		src.Kind = types.SourceKind(kind)
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

func (s *SQLStore) MarkSuperseded(ctx context.Context, oldID string, newFact *types.Fact, mentions []*types.EntityMention) (*types.Fact, error) {
	if _, err := s.GetFact(ctx, oldID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin supersede: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertFactTx(ctx, tx, newFact); err != nil {
		return nil, fmt.Errorf("insert superseding fact: %w", err)
	}
	for _, m := range mentions {
		if err := s.insertMentionTx(ctx, tx, newFact.ID, m); err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE facts SET status = ?, invalid_at = ?, superseded_by_id = ?
		WHERE id = ? AND status != ?`),
		string(types.StatusSuperseded), newFact.ValidAt, newFact.ID,
		oldID, string(types.StatusSuperseded))
	if err != nil {
		return nil, fmt.Errorf("supersede fact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Lost the race to a concurrent writer; roll back the insert too.
		return nil, &types.ConflictError{Op: "supersede", Reason: "fact " + oldID + " is already superseded"}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit supersede: %w", err)
	}
	return newFact, nil
}

func (s *SQLStore) MarkSupersededBy(ctx context.Context, factIDs []string, keepID string, invalidAt time.Time, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resolve conflict: %w", err)
	}
	defer tx.Rollback()

	for _, id := range factIDs {
		rows, err := tx.QueryContext(ctx, s.rebind(`SELECT status, valid_at, metadata FROM facts WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("select fact for resolve: %w", err)
		}
		if !rows.Next() {
			rows.Close()
			return &types.NotFoundError{Kind: "fact", ID: id}
		}
		var status string
		var validAt time.Time
		var metadataRaw sql.NullString
		if err := rows.Scan(&status, &validAt, &metadataRaw); err != nil {
			rows.Close()
			return fmt.Errorf("scan fact for resolve: %w", err)
		}
		rows.Close()

		if types.FactStatus(status) == types.StatusSuperseded {
			return &types.ConflictError{Op: "resolve conflict", Reason: "fact " + id + " is already superseded"}
		}

		metadata := unmarshalMetadata(metadataRaw)
		if metadata == nil {
			metadata = make(map[string]interface{})
		}
		metadata["resolution_reason"] = reason
		encoded, err := marshalJSON(metadata)
		if err != nil {
			return err
		}

		// Close the window only when invalid_at stays strictly after the
		// loser's valid_at.
		if invalidAt.After(validAt) {
			_, err = tx.ExecContext(ctx, s.rebind(`
				UPDATE facts SET status = ?, superseded_by_id = ?, invalid_at = ?, metadata = ?
				WHERE id = ?`),
				string(types.StatusSuperseded), keepID, invalidAt, encoded, id)
		} else {
			_, err = tx.ExecContext(ctx, s.rebind(`
				UPDATE facts SET status = ?, superseded_by_id = ?, metadata = ?
				WHERE id = ?`),
				string(types.StatusSuperseded), keepID, encoded, id)
		}
		if err != nil {
			return fmt.Errorf("resolve conflict update: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLStore) SetCorroboration(ctx context.Context, factID string, corroboratedBy []string, status types.FactStatus) error {
	encoded, err := marshalJSON(corroboratedBy)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, `
		UPDATE facts SET corroborated_by_ids = ?,
			status = CASE WHEN status = ? THEN status ELSE ? END
		WHERE id = ?`,
		encoded, string(types.StatusSuperseded), string(status), factID)
	if err != nil {
		return fmt.Errorf("set corroboration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &types.NotFoundError{Kind: "fact", ID: factID}
	}
	return nil
}

func (s *SQLStore) SetInvalidAt(ctx context.Context, factID string, at time.Time) error {
	res, err := s.exec(ctx, `UPDATE facts SET invalid_at = ? WHERE id = ?`, at, factID)
	if err != nil {
		return fmt.Errorf("set invalid_at: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &types.NotFoundError{Kind: "fact", ID: factID}
	}
	return nil
}
