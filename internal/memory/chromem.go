package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// #region chromem-store

const chromemCollection = "experiences"

// ChromemStore persists experience records in an embedded chromem-go
// vector database. Each record is stored as a document whose embedding is
// the decision context, so past decisions can be queried by similarity.
// Documents are persisted to disk as they are added; Clear removes the
// collection's files.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
	dim int
	seq int64
}

// NewChromemStore opens (creating if needed) a persistent vector store
// rooted at dir. dim > 0 enforces a context dimension on Add.
func NewChromemStore(dir string, dim int) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	col, err := db.GetOrCreateCollection(chromemCollection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	return &ChromemStore{
		db:  db,
		col: col,
		dim: dim,
		seq: int64(col.Count()),
	}, nil
}

// noEmbedding guards against text-based operations: every document
// carries a precomputed context vector.
func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("experience contexts are precomputed, no embedding function available")
}

// #endregion chromem-store

// #region add

// Add appends one record and persists it immediately.
func (s *ChromemStore) Add(rec Record) error {
	if s.dim > 0 && len(rec.Context) != s.dim {
		return fmt.Errorf("add: context dimension %d, want %d", len(rec.Context), s.dim)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	content := ""
	if len(rec.Metadata) > 0 {
		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		content = string(metaJSON)
	}

	// The index normalizes embeddings on insert, so the exact context is
	// carried separately in the document metadata.
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	seq := s.seq + 1
	doc := chromem.Document{
		ID:        docID(seq),
		Embedding: toFloat32(rec.Context),
		Content:   content,
		Metadata: map[string]string{
			"record_id":  rec.ID,
			"context":    string(ctxJSON),
			"arm":        strconv.Itoa(rec.Arm),
			"reward":     strconv.FormatFloat(rec.Reward, 'g', -1, 64),
			"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := s.col.AddDocument(context.Background(), doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	s.seq = seq
	return nil
}

// #endregion add

// #region all

// All returns every record in insertion order.
func (s *ChromemStore) All() ([]Record, error) {
	out := make([]Record, 0, s.seq)
	for seq := int64(1); seq <= s.seq; seq++ {
		doc, err := s.col.GetByID(context.Background(), docID(seq))
		if err != nil {
			return nil, fmt.Errorf("get document %d: %w", seq, err)
		}
		rec, err := docToRecord(seq, doc.Metadata, doc.Embedding, doc.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// #endregion all

// #region clear

// Clear drops the collection and its persisted files.
func (s *ChromemStore) Clear() error {
	if err := s.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(chromemCollection, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.col = col
	s.seq = 0
	return nil
}

// #endregion clear

// #region nearest

// Nearest returns the k records most similar to the query context.
func (s *ChromemStore) Nearest(query []float64, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("nearest: k must be positive, got %d", k)
	}
	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.col.QueryEmbedding(context.Background(), toFloat32(query), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(results))
	for _, r := range results {
		var seq int64
		fmt.Sscanf(r.ID, "exp-%d", &seq)
		rec, err := docToRecord(seq, r.Metadata, r.Embedding, r.Content)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, Neighbor{
			Record:     rec,
			Similarity: float64(r.Similarity),
		})
	}
	return neighbors, nil
}

// #endregion nearest

// #region helpers

func docID(seq int64) string {
	return fmt.Sprintf("exp-%08d", seq)
}

func docToRecord(seq int64, meta map[string]string, embedding []float32, content string) (Record, error) {
	arm, err := strconv.Atoi(meta["arm"])
	if err != nil {
		return Record{}, fmt.Errorf("record %d: bad arm %q", seq, meta["arm"])
	}
	reward, err := strconv.ParseFloat(meta["reward"], 64)
	if err != nil {
		return Record{}, fmt.Errorf("record %d: bad reward %q", seq, meta["reward"])
	}

	rec := Record{
		ID:     meta["record_id"],
		Seq:    seq,
		Arm:    arm,
		Reward: reward,
	}
	if ctxJSON := meta["context"]; ctxJSON != "" {
		if err := json.Unmarshal([]byte(ctxJSON), &rec.Context); err != nil {
			return Record{}, fmt.Errorf("record %d: unmarshal context: %w", seq, err)
		}
	} else {
		rec.Context = toFloat64(embedding)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["created_at"])
	if content != "" {
		if err := json.Unmarshal([]byte(content), &rec.Metadata); err != nil {
			return Record{}, fmt.Errorf("record %d: unmarshal metadata: %w", seq, err)
		}
	}
	return rec, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// #endregion helpers
