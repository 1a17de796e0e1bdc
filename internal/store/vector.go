package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// ErrNoEmbedder is returned when neither the store nor the call options
// provide an embedder.
var ErrNoEmbedder = errors.New("vector store: no embedder configured")

var ErrInvalidScoreThreshold = errors.New("vector store: score threshold must be between 0 and 1")

// DefaultNamespace holds documents added without a namespace option.
const DefaultNamespace = "documents"

// VectorStore is a sqlite-backed vectorstores.VectorStore. Similarity is
// computed by scanning the namespace, which suits local collections of a
// few thousand chunks.
type VectorStore struct {
	DB       *sql.DB
	Embedder embeddings.Embedder
}

var _ vectorstores.VectorStore = (*VectorStore)(nil)

func NewVectorStore(db *sql.DB, embedder embeddings.Embedder) *VectorStore {
	return &VectorStore{DB: db, Embedder: embedder}
}

func (s *VectorStore) options(opts []vectorstores.Option) (vectorstores.Options, embeddings.Embedder, error) {
	o := vectorstores.Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.NameSpace == "" {
		o.NameSpace = DefaultNamespace
	}
	e := o.Embedder
	if e == nil {
		e = s.Embedder
	}
	if e == nil {
		return o, nil, ErrNoEmbedder
	}
	return o, e, nil
}

// AddDocuments embeds and stores docs. Documents whose content and metadata
// are already stored in the namespace are skipped and their existing IDs
// returned.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	o, embedder, err := s.options(opts)
	if err != nil {
		return nil, err
	}
	if o.Deduplicater != nil {
		kept := docs[:0:0]
		for _, d := range docs {
			if !o.Deduplicater(ctx, d) {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		if d.Metadata == nil {
			meta = []byte("{}")
		}
		emb, err := json.Marshal(vectors[i])
		if err != nil {
			return nil, err
		}
		hash := hashOf(d.PageContent, string(meta))

		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO vectors (id, namespace, content, metadata, embedding, hash) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), o.NameSpace, d.PageContent, string(meta), string(emb), hash)
		if err != nil {
			return nil, err
		}

		var id string
		err = tx.QueryRowContext(ctx, `SELECT id FROM vectors WHERE namespace = ? AND hash = ?`, o.NameSpace, hash).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, tx.Commit()
}

// SimilaritySearch returns up to numDocuments documents ordered by cosine
// similarity to query. Options honored: namespace, score threshold,
// embedder, and map[string]any filters matched against metadata.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	o, embedder, err := s.options(opts)
	if err != nil {
		return nil, err
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > 1 {
		return nil, ErrInvalidScoreThreshold
	}
	filters, _ := o.Filters.(map[string]any)

	qv, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT content, metadata, embedding FROM vectors WHERE namespace = ?`, o.NameSpace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var content, metaRaw, embRaw string
		if err := rows.Scan(&content, &metaRaw, &embRaw); err != nil {
			return nil, err
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if !matches(meta, filters) {
			continue
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embRaw), &emb); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		score := cosine(qv, emb)
		if score < o.ScoreThreshold {
			continue
		}
		docs = append(docs, schema.Document{PageContent: content, Metadata: meta, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if numDocuments > 0 && len(docs) > numDocuments {
		docs = docs[:numDocuments]
	}
	return docs, nil
}

// Count returns the number of documents in namespace.
func (s *VectorStore) Count(ctx context.Context, namespace string) (int, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE namespace = ?`, namespace).Scan(&n)
	return n, err
}

// Delete removes the documents in namespace whose metadata matches every
// filter. It returns the number of documents removed.
func (s *VectorStore) Delete(ctx context.Context, namespace string, filters map[string]any) (int, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, metadata FROM vectors WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id, metaRaw string
		if err := rows.Scan(&id, &metaRaw); err != nil {
			rows.Close()
			return 0, err
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decode metadata: %w", err)
		}
		if matches(meta, filters) {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return len(ids), tx.Commit()
}

func matches(meta, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := meta[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
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
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
