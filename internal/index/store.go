package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dgallion1/lawsearch/internal/division"
	_ "modernc.org/sqlite"
)

const dbFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	seq       INTEGER PRIMARY KEY,
	label     TEXT NOT NULL,
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL
);`

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// writeIndex creates a fresh database at path holding chunks and vectors.
func writeIndex(ctx context.Context, path, scheme string, chunks []division.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}

	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range map[string]string{"scheme": scheme, "dims": strconv.Itoa(dims)} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (seq, label, text, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(vectors[i]) != dims {
			return fmt.Errorf("chunk %d: vector has %d dims, want %d", c.Sequence, len(vectors[i]), dims)
		}
		if _, err := stmt.ExecContext(ctx, c.Sequence, c.DivisionLabel, c.Text, float32SliceToBytes(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// readScheme returns the scheme recorded in the database at path.
func readScheme(ctx context.Context, path string) (string, error) {
	db, err := openDB(path)
	if err != nil {
		return "", err
	}
	defer db.Close()
	return metaValue(ctx, db, "scheme")
}

func metaValue(ctx context.Context, db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q missing", key)
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %q: %w", key, err)
	}
	return v, nil
}

// loadIndex reads the whole database at path into memory.
func loadIndex(ctx context.Context, path, label string) (*Index, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	scheme, err := metaValue(ctx, db, "scheme")
	if err != nil {
		return nil, err
	}
	dimsStr, err := metaValue(ctx, db, "dims")
	if err != nil {
		return nil, err
	}
	dims, err := strconv.Atoi(dimsStr)
	if err != nil {
		return nil, fmt.Errorf("parsing dims %q: %w", dimsStr, err)
	}

	rows, err := db.QueryContext(ctx, `SELECT seq, text, embedding FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	ix := &Index{Label: label, Scheme: scheme, Dims: dims}
	for rows.Next() {
		var (
			c    division.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.Sequence, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.DivisionLabel = label
		vec := bytesToFloat32Slice(blob)
		if len(vec) != dims {
			return nil, fmt.Errorf("chunk %d: stored vector has %d dims, want %d", c.Sequence, len(vec), dims)
		}
		ix.add(c, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return ix, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return []byte{}
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
