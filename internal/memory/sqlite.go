package memory

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema

const experiencesSchema = `
CREATE TABLE IF NOT EXISTS experiences (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id     TEXT NOT NULL UNIQUE,
	context       BLOB NOT NULL,
	arm           INTEGER NOT NULL,
	reward        REAL NOT NULL,
	metadata_json TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region sqlite-store

// SQLiteStore persists experience records in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	dim int
}

// NewSQLiteStore opens (creating if needed) the experience database at
// path. dim > 0 enforces a context dimension on Add; 0 disables the check.
func NewSQLiteStore(path string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(experiencesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, dim: dim}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB so other components (e.g. the
// decision log) can share the connection.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion sqlite-store

// #region add

// Add inserts one record. The record ID defaults to a fresh UUID.
func (s *SQLiteStore) Add(rec Record) error {
	if s.dim > 0 && len(rec.Context) != s.dim {
		return fmt.Errorf("add: context dimension %d, want %d", len(rec.Context), s.dim)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var metaPtr any
	if len(rec.Metadata) > 0 {
		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaPtr = string(metaJSON)
	}

	_, err := s.db.Exec(
		`INSERT INTO experiences (record_id, context, arm, reward, metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, encodeContext(rec.Context), rec.Arm, rec.Reward,
		metaPtr, rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert experience: %w", err)
	}
	return nil
}

// #endregion add

// #region all

// All returns every record in insertion order.
func (s *SQLiteStore) All() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT seq, record_id, context, arm, reward, metadata_json, created_at
		 FROM experiences ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("query experiences: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var blob []byte
		var metaJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.Seq, &rec.ID, &blob, &rec.Arm, &rec.Reward, &metaJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		rec.Context = decodeContext(blob)
		if metaJSON.Valid {
			if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}
	return out, nil
}

// #endregion all

// #region clear

// Clear deletes all records and resets the sequence counter.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM experiences`); err != nil {
		return fmt.Errorf("clear experiences: %w", err)
	}
	// Ignore failure: the table is absent until the first AUTOINCREMENT insert.
	s.db.Exec(`DELETE FROM sqlite_sequence WHERE name = 'experiences'`)
	return nil
}

// #endregion clear

// #region nearest

// Nearest returns the k records most similar to the query context.
// Similarity is computed in Go; the driver has no vector functions.
func (s *SQLiteStore) Nearest(query []float64, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("nearest: k must be positive, got %d", k)
	}
	records, err := s.All()
	if err != nil {
		return nil, err
	}
	mem := InMemoryStore{records: records}
	return mem.Nearest(query, k)
}

// #endregion nearest

// #region context-encoding

func encodeContext(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeContext(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion context-encoding
