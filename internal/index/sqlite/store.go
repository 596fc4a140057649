// Package sqlite is the embedded index backend: FTS5 for the lexical side
// and in-process cosine similarity over stored vectors for the semantic
// side, fused with reciprocal rank fusion.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mindloom/mindloom/internal/index"
)

// Store implements index.Backend on a single SQLite database.
type Store struct {
	db *sql.DB
}

var _ index.Backend = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store. The connection pool is capped at
// one connection; modernc sqlite does not tolerate concurrent writers.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const documentColumns = `
	id, user_id, tenant_id, session_id, source, timestamp, version,
	is_active, expiry, content, searchable_content, semantic_summary,
	ontology_domain, ontology_category, ontology_concept_id,
	ontology_confidence, ai_confidence, hybrid_confidence, importance_score,
	semantic_tags, all_tags,
	entities_json, relations_json, context_json, hybrid_json, properties_json,
	vector
`

// Upsert inserts or replaces the document by ID.
func (s *Store) Upsert(ctx context.Context, doc *index.Document) error {
	const upsertSQL = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
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
			properties_json = excluded.properties_json,
			vector = excluded.vector
	`

	var expiry any
	if doc.Expiry != nil {
		expiry = doc.Expiry.UTC()
	}

	_, err := s.db.ExecContext(ctx, upsertSQL,
		doc.ID, doc.UserID, doc.TenantID, doc.SessionID, doc.Source,
		doc.Timestamp.UTC(), doc.Version, boolToInt(doc.IsActive), expiry,
		doc.Content, doc.SearchableContent, doc.SemanticSummary,
		doc.OntologyDomain, doc.OntologyCategory, doc.OntologyConceptID,
		doc.OntologyConfidence, doc.AIConfidence, doc.HybridConfidence,
		doc.ImportanceScore,
		index.JoinTags(doc.SemanticTags), wrapTags(doc.AllTags),
		doc.EntitiesJSON, doc.RelationsJSON, doc.ContextJSON,
		doc.HybridJSON, doc.PropertiesJSON,
		encodeVector(doc.Vector),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert %s: %w", doc.ID, err)
	}
	return nil
}

// Get fetches one document by ID.
func (s *Store) Get(ctx context.Context, id string) (*index.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes a document. Deleting an absent ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", id, err)
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
	if len(q.Vector) > 0 {
		vector, err = s.vectorSearch(ctx, q, candidateLimit)
		if err != nil {
			return nil, err
		}
	}

	return index.Fuse(lexical, vector, q.Top), nil
}

// lexicalSearch runs an FTS5 match over searchable_content with the filter
// applied. An empty query text yields no lexical candidates.
func (s *Store) lexicalSearch(ctx context.Context, q index.Query, limit int) ([]index.Ranked, error) {
	ftsQuery := sanitizeFTSQuery(q.Text)
	if ftsQuery == "" {
		return nil, nil
	}

	where, args := filterSQL(q.Filter)
	querySQL := `
		SELECT ` + prefixColumns("d.") + `
		FROM documents_fts fts
		JOIN documents d ON d.rowid = fts.rowid
		WHERE documents_fts MATCH ? AND ` + where + `
		ORDER BY rank
		LIMIT ?
	`
	args = append([]any{ftsQuery}, args...)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lexical search %q: %w", q.Text, err)
	}
	defer rows.Close()

	var out []index.Ranked
	rank := 0
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: lexical scan: %w", err)
		}
		out = append(out, index.Ranked{Doc: doc, Score: 1.0 / float64(1+rank)})
		rank++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: lexical rows: %w", err)
	}
	return out, nil
}

// vectorSearch loads up to KNNCandidates recent filtered vectors and ranks
// them by cosine similarity in process. SQLite has no vector index; the
// candidate cap keeps this linear scan bounded.
func (s *Store) vectorSearch(ctx context.Context, q index.Query, limit int) ([]index.Ranked, error) {
	candidates := q.KNNCandidates
	if candidates <= 0 {
		candidates = 100
	}

	where, args := filterSQL(q.Filter)
	querySQL := `
		SELECT ` + prefixColumns("d.") + `
		FROM documents d
		WHERE d.vector IS NOT NULL AND ` + where + `
		ORDER BY d.timestamp DESC
		LIMIT ?
	`
	args = append(args, candidates)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: vector candidates: %w", err)
	}
	defer rows.Close()

	var out []index.Ranked
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: vector scan: %w", err)
		}
		sim := cosineSimilarity(q.Vector, doc.Vector)
		if sim <= 0 {
			continue
		}
		out = append(out, index.Ranked{Doc: doc, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: vector rows: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// filterSQL renders an index.Filter as a WHERE fragment with ? placeholders.
// The is_active and expiry clauses are always present.
func filterSQL(f index.Filter) (string, []any) {
	clauses := []string{
		"d.is_active = 1",
		"(d.expiry IS NULL OR d.expiry > ?)",
	}
	args := []any{time.Now().UTC()}

	eq := func(col, val string) {
		if val != "" {
			clauses = append(clauses, "d."+col+" = ?")
			args = append(args, val)
		}
	}
	eq("user_id", f.UserID)
	eq("tenant_id", f.TenantID)
	eq("ontology_domain", f.Domain)
	eq("ontology_category", f.Category)
	eq("source", f.Source)

	if f.MinAIConfidence > 0 {
		clauses = append(clauses, "d.ai_confidence >= ?")
		args = append(args, f.MinAIConfidence)
	}
	if f.MinImportance > 0 {
		clauses = append(clauses, "d.importance_score >= ?")
		args = append(args, f.MinImportance)
	}
	if f.Since != nil {
		clauses = append(clauses, "d.timestamp >= ?")
		args = append(args, f.Since.UTC())
	}

	if len(f.Tags) > 0 {
		tagClauses := make([]string, len(f.Tags))
		for i, tag := range f.Tags {
			tagClauses[i] = "d.all_tags LIKE ?"
			args = append(args, "%,"+strings.ToLower(tag)+",%")
		}
		clauses = append(clauses, "("+strings.Join(tagClauses, " OR ")+")")
	}

	return strings.Join(clauses, " AND "), args
}

// sanitizeFTSQuery converts free-form text into a safe OR-of-words FTS5
// query. FTS5 syntax is fragile; a stray quote or operator keyword breaks
// the MATCH expression.
func sanitizeFTSQuery(text string) string {
	var terms []string
	for _, field := range strings.Fields(text) {
		term := strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, field)
		if term != "" {
			terms = append(terms, `"`+term+`"`)
		}
	}
	return strings.Join(terms, " OR ")
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

func unwrapTags(s string) []string {
	return index.SplitTags(strings.Trim(s, ","))
}

// encodeVector serializes float32 little-endian. Nil vectors store as NULL.
func encodeVector(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// prefixColumns qualifies documentColumns with a table alias.
func prefixColumns(prefix string) string {
	cols := strings.Split(documentColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one row in documentColumns order.
func scanDocument(row scanner) (*index.Document, error) {
	var (
		doc          index.Document
		isActive     int
		expiry       sql.NullTime
		semanticTags string
		allTags      string
		vecBlob      []byte
	)

	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.TenantID, &doc.SessionID, &doc.Source,
		&doc.Timestamp, &doc.Version, &isActive, &expiry,
		&doc.Content, &doc.SearchableContent, &doc.SemanticSummary,
		&doc.OntologyDomain, &doc.OntologyCategory, &doc.OntologyConceptID,
		&doc.OntologyConfidence, &doc.AIConfidence, &doc.HybridConfidence,
		&doc.ImportanceScore,
		&semanticTags, &allTags,
		&doc.EntitiesJSON, &doc.RelationsJSON, &doc.ContextJSON,
		&doc.HybridJSON, &doc.PropertiesJSON,
		&vecBlob,
	)
	if err != nil {
		return nil, err
	}

	doc.IsActive = isActive != 0
	if expiry.Valid {
		t := expiry.Time
		doc.Expiry = &t
	}
	doc.SemanticTags = index.SplitTags(semanticTags)
	doc.AllTags = unwrapTags(allTags)
	doc.Vector = decodeVector(vecBlob)

	return &doc, nil
}
