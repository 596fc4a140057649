// Package postgres is the production index backend: tsvector full-text
// search for the lexical side and pgvector cosine KNN for the semantic side,
// fused with reciprocal rank fusion.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mindloom/mindloom/internal/index"
)

// Store implements index.Backend on PostgreSQL.
type Store struct {
	db *sql.DB

	// pgvectorAvailable is false when the vector extension could not be
	// created; searches then run lexical-only.
	pgvectorAvailable bool
}

var _ index.Backend = (*Store)(nil)

// Options configures the postgres backend.
type Options struct {
	// VectorDim is the embedding dimension of the vector column
	// (default 768, matching nomic-embed-text).
	VectorDim int
}

// Open connects to the database at dsn and applies the schema. A missing
// pgvector extension is tolerated; the store degrades to lexical-only and
// logs once.
func Open(dsn string, opts Options) (*Store, error) {
	if opts.VectorDim == 0 {
		opts.VectorDim = 768
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{db: db, pgvectorAvailable: true}
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		log.Printf("postgres: pgvector unavailable, lexical-only mode: %v", err)
		s.pgvectorAvailable = false
	}

	if err := s.applySchema(opts.VectorDim); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) applySchema(vectorDim int) error {
	vectorColumn := ""
	if s.pgvectorAvailable {
		vectorColumn = fmt.Sprintf(",\n\tvector vector(%d)", vectorDim)
	}

	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	tenant_id           TEXT NOT NULL DEFAULT '',
	session_id          TEXT NOT NULL DEFAULT '',
	source              TEXT NOT NULL DEFAULT '',
	timestamp           TIMESTAMPTZ NOT NULL,
	version             INTEGER NOT NULL DEFAULT 1,
	is_active           BOOLEAN NOT NULL DEFAULT TRUE,
	expiry              TIMESTAMPTZ,
	content             TEXT NOT NULL,
	searchable_content  TEXT NOT NULL DEFAULT '',
	search_tsv          TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', searchable_content)) STORED,
	semantic_summary    TEXT NOT NULL DEFAULT '',
	ontology_domain     TEXT NOT NULL DEFAULT '',
	ontology_category   TEXT NOT NULL DEFAULT '',
	ontology_concept_id TEXT NOT NULL DEFAULT '',
	ontology_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	hybrid_confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	importance_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	semantic_tags       TEXT NOT NULL DEFAULT '',
	all_tags            TEXT NOT NULL DEFAULT '',
	entities_json       TEXT NOT NULL DEFAULT '',
	relations_json      TEXT NOT NULL DEFAULT '',
	context_json        TEXT NOT NULL DEFAULT '',
	hybrid_json         TEXT NOT NULL DEFAULT '',
	properties_json     TEXT NOT NULL DEFAULT ''` + vectorColumn + `
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents (user_id, is_active);
CREATE INDEX IF NOT EXISTS idx_documents_domain ON documents (ontology_domain, ontology_category);
CREATE INDEX IF NOT EXISTS idx_documents_tsv ON documents USING GIN (search_tsv);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}

	if s.pgvectorAvailable {
		// ivfflat needs rows to build useful lists; creation failure on an
		// empty table is harmless and retried on next start.
		if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_vec ON documents USING ivfflat (vector vector_cosine_ops)`); err != nil {
			log.Printf("postgres: ivfflat index not created: %v", err)
		}
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const documentColumns = `
	id, user_id, tenant_id, session_id, source, timestamp, version,
	is_active, expiry, content, searchable_content, semantic_summary,
	ontology_domain, ontology_category, ontology_concept_id,
	ontology_confidence, ai_confidence, hybrid_confidence, importance_score,
	semantic_tags, all_tags,
	entities_json, relations_json, context_json, hybrid_json, properties_json
`

// Upsert inserts or replaces the document by ID.
func (s *Store) Upsert(ctx context.Context, doc *index.Document) error {
	cols := documentColumns
	placeholders := make([]string, 26)
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}

	var expiry any
	if doc.Expiry != nil {
		expiry = doc.Expiry.UTC()
	}

	args := []any{
		doc.ID, doc.UserID, doc.TenantID, doc.SessionID, doc.Source,
		doc.Timestamp.UTC(), doc.Version, doc.IsActive, expiry,
		doc.Content, doc.SearchableContent, doc.SemanticSummary,
		doc.OntologyDomain, doc.OntologyCategory, doc.OntologyConceptID,
		doc.OntologyConfidence, doc.AIConfidence, doc.HybridConfidence,
		doc.ImportanceScore,
		index.JoinTags(doc.SemanticTags), wrapTags(doc.AllTags),
		doc.EntitiesJSON, doc.RelationsJSON, doc.ContextJSON,
		doc.HybridJSON, doc.PropertiesJSON,
	}

	if s.pgvectorAvailable {
		cols += ", vector"
		if len(doc.Vector) > 0 {
			placeholders = append(placeholders, "$27")
			args = append(args, pgvector.NewVector(doc.Vector))
		} else {
			placeholders = append(placeholders, "NULL")
		}
	}

	upsertSQL := `
		INSERT INTO documents (` + cols + `)
		VALUES (` + strings.Join(placeholders, ", ") + `)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			tenant_id = excluded.tenant_id,
			session_id = excluded.session_id,
			source = excluded.source,
			timestamp = excluded.timestamp,
			version = excluded.version,
			is_active = excluded.is_active,
			expiry = excluded.expiry,
			content = excluded.content,
			searchable_content = excluded.searchable_content,
			semantic_summary = excluded.semantic_summary,
			ontology_domain = excluded.ontology_domain,
			ontology_category = excluded.ontology_category,
			ontology_concept_id = excluded.ontology_concept_id,
			ontology_confidence = excluded.ontology_confidence,
			ai_confidence = excluded.ai_confidence,
			hybrid_confidence = excluded.hybrid_confidence,
			importance_score = excluded.importance_score,
			semantic_tags = excluded.semantic_tags,
			all_tags = excluded.all_tags,
			entities_json = excluded.entities_json,
			relations_json = excluded.relations_json,
			context_json = excluded.context_json,
			hybrid_json = excluded.hybrid_json,
			properties_json = excluded.properties_json` +
		upsertVectorSet(s.pgvectorAvailable)

	if _, err := s.db.ExecContext(ctx, upsertSQL, args...); err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", doc.ID, err)
	}
	return nil
}

func upsertVectorSet(available bool) string {
	if !available {
		return ""
	}
	return ",\n\t\t\tvector = excluded.vector"
}

// Get fetches one document by ID.
func (s *Store) Get(ctx context.Context, id string) (*index.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document. Deleting an absent ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", id, err)
	}
	return nil
}

// Search runs the lexical and vector sides and fuses them via index.Fuse.
func (s *Store) Search(ctx context.Context, q index.Query) ([]index.Hit, error) {
	if q.Top <= 0 {
		return nil, fmt.Errorf("%w: top must be positive", index.ErrInvalidInput)
	}

	candidateLimit := q.Top * 3
	if candidateLimit < 30 {
		candidateLimit = 30
	}

	lexical, err := s.lexicalSearch(ctx, q, candidateLimit)
	if err != nil {
		return nil, err
	}

	var vector []index.Ranked
	if len(q.Vector) > 0 && s.pgvectorAvailable {
		vector, err = s.vectorSearch(ctx, q, candidateLimit)
		if err != nil {
			// The vector side failing is non-fatal; keyword results still
			// serve the request.
			log.Printf("postgres: vector search failed, lexical-only: %v", err)
		}
	}

	return index.Fuse(lexical, vector, q.Top), nil
}

func (s *Store) lexicalSearch(ctx context.Context, q index.Query, limit int) ([]index.Ranked, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}

	where, args := filterSQL(q.Filter, 2)
	querySQL := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE search_tsv @@ plainto_tsquery('english', $1) AND ` + where + `
		ORDER BY ts_rank(search_tsv, plainto_tsquery('english', $1)) DESC
		LIMIT ` + strconv.Itoa(limit)
	args = append([]any{q.Text}, args...)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: lexical search %q: %w", q.Text, err)
	}
	defer rows.Close()

	var out []index.Ranked
	rank := 0
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: lexical scan: %w", err)
		}
		out = append(out, index.Ranked{Doc: doc, Score: 1.0 / float64(1+rank)})
		rank++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: lexical rows: %w", err)
	}
	return out, nil
}

func (s *Store) vectorSearch(ctx context.Context, q index.Query, limit int) ([]index.Ranked, error) {
	candidates := q.KNNCandidates
	if candidates <= 0 {
		candidates = 100
	}
	if candidates < limit {
		candidates = limit
	}

	where, args := filterSQL(q.Filter, 2)
	querySQL := `
		SELECT ` + documentColumns + `, 1 - (vector <=> $1) AS similarity
		FROM documents
		WHERE vector IS NOT NULL AND ` + where + `
		ORDER BY vector <=> $1
		LIMIT ` + strconv.Itoa(candidates)
	args = append([]any{pgvector.NewVector(q.Vector)}, args...)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()

	var out []index.Ranked
	for rows.Next() {
		doc, sim, err := scanDocumentWithSimilarity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: vector scan: %w", err)
		}
		if sim <= 0 {
			continue
		}
		out = append(out, index.Ranked{Doc: doc, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: vector rows: %w", err)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// filterSQL renders an index.Filter as a WHERE fragment using positional
// placeholders starting at startArg. The is_active and expiry clauses are
// always present.
func filterSQL(f index.Filter, startArg int) (string, []any) {
	n := startArg
	next := func() string {
		p := "$" + strconv.Itoa(n)
		n++
		return p
	}

	clauses := []string{"is_active = TRUE"}
	var args []any

	clauses = append(clauses, "(expiry IS NULL OR expiry > "+next()+")")
	args = append(args, time.Now().UTC())

	eq := func(col, val string) {
		if val != "" {
			clauses = append(clauses, col+" = "+next())
			args = append(args, val)
		}
	}
	eq("user_id", f.UserID)
	eq("tenant_id", f.TenantID)
	eq("ontology_domain", f.Domain)
	eq("ontology_category", f.Category)
	eq("source", f.Source)

	if f.MinAIConfidence > 0 {
		clauses = append(clauses, "ai_confidence >= "+next())
		args = append(args, f.MinAIConfidence)
	}
	if f.MinImportance > 0 {
		clauses = append(clauses, "importance_score >= "+next())
		args = append(args, f.MinImportance)
	}
	if f.Since != nil {
		clauses = append(clauses, "timestamp >= "+next())
		args = append(args, f.Since.UTC())
	}

	if len(f.Tags) > 0 {
		tagClauses := make([]string, len(f.Tags))
		for i, tag := range f.Tags {
			tagClauses[i] = "all_tags LIKE " + next()
			args = append(args, "%,"+strings.ToLower(tag)+",%")
		}
		clauses = append(clauses, "("+strings.Join(tagClauses, " OR ")+")")
	}

	return strings.Join(clauses, " AND "), args
}

// wrapTags stores tags as ",a,b," so a LIKE '%,tag,%' match cannot hit a
// substring of another tag.
func wrapTags(tags []string) string {
	csv := index.JoinTags(tags)
	if csv == "" {
		return ""
	}
	return "," + csv + ","
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*index.Document, error) {
	doc, _, err := scanInto(row, false)
	return doc, err
}

func scanDocumentWithSimilarity(row scanner) (*index.Document, float64, error) {
	return scanInto(row, true)
}

// scanInto reads one row in documentColumns order, optionally with a
// trailing similarity column.
func scanInto(row scanner, withSimilarity bool) (*index.Document, float64, error) {
	var (
		doc          index.Document
		expiry       sql.NullTime
		semanticTags string
		allTags      string
		similarity   float64
	)

	dest := []any{
		&doc.ID, &doc.UserID, &doc.TenantID, &doc.SessionID, &doc.Source,
		&doc.Timestamp, &doc.Version, &doc.IsActive, &expiry,
		&doc.Content, &doc.SearchableContent, &doc.SemanticSummary,
		&doc.OntologyDomain, &doc.OntologyCategory, &doc.OntologyConceptID,
		&doc.OntologyConfidence, &doc.AIConfidence, &doc.HybridConfidence,
		&doc.ImportanceScore,
		&semanticTags, &allTags,
		&doc.EntitiesJSON, &doc.RelationsJSON, &doc.ContextJSON,
		&doc.HybridJSON, &doc.PropertiesJSON,
	}
	if withSimilarity {
		dest = append(dest, &similarity)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	if expiry.Valid {
		t := expiry.Time
		doc.Expiry = &t
	}
	doc.SemanticTags = index.SplitTags(semanticTags)
	doc.AllTags = index.SplitTags(strings.Trim(allTags, ","))

	return &doc, similarity, nil
}
