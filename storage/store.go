// Package storage implements the .arbors file format: a single-file MVCC
// key/value store backing the on-disk Arbor surface (§4.9, §6.3, §6.4).
// It registers itself as package arbor's storage Backend from init(),
// the database/sql driver-registration idiom, so arbor never imports
// storage directly and the two packages don't form a cycle even though
// storage's backend accepts arbor.Options and arbor.NamedData values.
//
// The connection lifecycle below — open, configure the pool, run the
// statement, close — is the same shape internal/database/db_manager.go's
// DBManager.Connect/Execute used for the teacher's ad hoc SQL connections,
// narrowed to the one schema and one driver (modernc.org/sqlite, a pure
// Go build with no cgo) this format needs.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tugtool/arbor/arbor"
	"github.com/tugtool/arbor/errs"
	"github.com/tugtool/arbor/tree"
)

func init() {
	arbor.RegisterBackend(sqliteBackend{})
}

type sqliteBackend struct{}

func (sqliteBackend) Open(path, name string, opts arbor.Options) (tree.Source, tree.Schema, error) {
	return openNamed(path, name, opts)
}

func (sqliteBackend) List(path string) ([]string, error) {
	return listNames(path)
}

func (sqliteBackend) Delete(path, name string) (bool, error) {
	return deleteNamed(path, name)
}

func (sqliteBackend) SaveMultiple(path string, items []arbor.NamedData, opts arbor.Options) error {
	return saveMultipleNamed(path, items, opts)
}

// TreesPerBatch is the storage-layer grouping §4.8 calls "trees_per_batch":
// the unit a stored arbor's rows are chunked into on disk, so that a
// selection touching only some backing indices (Head, Take, ...) decodes
// only the batches those indices fall in, never the whole name.
const TreesPerBatch = 256

// schema is two tables, not one blob-per-name column (§6.3's "opaque to
// the core" contract still holds — nothing outside this file parses
// either blob's structure): `arbors` carries the metadata every Open
// needs before touching a single row (length, schema), `arbor_batches`
// carries the actual row data chunked by TreesPerBatch so Open never has
// to decode more than that metadata up front.
const createArborsTableSQL = `CREATE TABLE IF NOT EXISTS arbors (
	name TEXT PRIMARY KEY,
	length INTEGER NOT NULL,
	schema BLOB NOT NULL
)`

const createBatchesTableSQL = `CREATE TABLE IF NOT EXISTS arbor_batches (
	name TEXT NOT NULL,
	batch_idx INTEGER NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (name, batch_idx)
)`

func openDB(path string, opts arbor.Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to open .arbors file")
	}
	// WAL mode (§4.9's snapshot isolation): a storedSource's long-lived
	// read transaction must never block a concurrent writer's BEGIN
	// IMMEDIATE, the way the default rollback-journal mode would once a
	// reader has touched a page the writer needs. WAL lets readers keep
	// consulting their own snapshot of the file while writers commit new
	// versions independently.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to set journal_mode")
	}
	if opts.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout)); err != nil {
			db.Close()
			return nil, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to set busy_timeout")
		}
	}
	if _, err := db.Exec(createArborsTableSQL); err != nil {
		db.Close()
		return nil, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to ensure arbors schema")
	}
	if _, err := db.Exec(createBatchesTableSQL); err != nil {
		db.Close()
		return nil, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to ensure arbor_batches schema")
	}
	return db, nil
}

// fileExists distinguishes "no .arbors file here yet" from "file exists,
// name absent" — sql.Open (and modernc.org/sqlite's CREATE TABLE IF NOT
// EXISTS) would otherwise silently create an empty file on a read path,
// which §4.9's open/list/delete contracts never call for.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// storedSource is the lazy, batch-decoding tree.Source a Scoped plan leaf
// holds for a name opened from a .arbors file (§4.8 step 3). It keeps one
// connection and one still-open BEGIN DEFERRED read transaction alive for
// as long as it is reachable, so every batch it decodes — no matter how
// many separate GetBacking calls trigger the decode — sees the same
// point-in-time snapshot a plain eager read would have (§5: "a stale
// Arbor simply continues to see its snapshot until dropped or
// refreshed"). Decoded batches are cached so a batch already touched by
// an earlier logical position is never decoded twice (§4.8: "decode each
// needed batch exactly once").
type storedSource struct {
	mu      sync.Mutex
	db      *sql.DB
	conn    *sql.Conn
	name    string
	length  int
	batches map[int][]*tree.OwnedTree
	closed  bool
}

func newStoredSource(db *sql.DB, conn *sql.Conn, name string, length int) *storedSource {
	s := &storedSource{
		db:      db,
		conn:    conn,
		name:    name,
		length:  length,
		batches: make(map[int][]*tree.OwnedTree),
	}
	// No explicit Close() is part of tree.Source or the Arbor surface
	// (§3.9's Arbor lifecycle is "destroyed when the last reference
	// drops", not an explicit disposal call); the finalizer is the
	// idiomatic Go backstop for releasing the connection and ending the
	// read transaction once nothing can reach this snapshot anymore, the
	// same role runtime.SetFinalizer plays for *os.File.
	runtime.SetFinalizer(s, (*storedSource).close)
	return s
}

func (s *storedSource) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	ctx := context.Background()
	s.conn.ExecContext(ctx, "COMMIT")
	s.conn.Close()
	s.db.Close()
}

func (s *storedSource) Len() int { return s.length }

func (s *storedSource) GetBacking(backingIdx int) (*tree.OwnedTree, error) {
	if backingIdx < 0 || backingIdx >= s.length {
		return nil, errs.OutOfBounds("storage.GetBacking", backingIdx, s.length)
	}
	batchIdx := backingIdx / TreesPerBatch
	s.mu.Lock()
	trees, ok := s.batches[batchIdx]
	if ok {
		s.mu.Unlock()
	} else {
		ctx := context.Background()
		var blob []byte
		scanErr := s.conn.QueryRowContext(ctx,
			"SELECT value FROM arbor_batches WHERE name = ? AND batch_idx = ?", s.name, batchIdx).Scan(&blob)
		if scanErr != nil {
			s.mu.Unlock()
			if errors.Is(scanErr, sql.ErrNoRows) {
				return nil, errs.OutOfBounds("storage.GetBacking", backingIdx, s.length)
			}
			return nil, errs.Wrap(scanErr, errs.StorageErr, "storage.GetBacking", "failed to decode batch")
		}
		decoded, err := decodeBatch(blob)
		if err != nil {
			s.mu.Unlock()
			return nil, errs.Wrap(err, errs.StorageErr, "storage.GetBacking", "failed to decode batch")
		}
		s.batches[batchIdx] = decoded
		trees = decoded
		s.mu.Unlock()
	}
	local := backingIdx - batchIdx*TreesPerBatch
	if local < 0 || local >= len(trees) {
		return nil, errs.OutOfBounds("storage.GetBacking", backingIdx, s.length)
	}
	return trees[local], nil
}

func openNamed(path, name string, opts arbor.Options) (tree.Source, tree.Schema, error) {
	if !fileExists(path) {
		return nil, tree.Schema{}, errs.NotFoundName("storage.open", name)
	}
	db, err := openDB(path, opts)
	if err != nil {
		return nil, tree.Schema{}, err
	}

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, tree.Schema{}, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to acquire connection")
	}

	// BEGIN DEFERRED for snapshot isolation (§4.9): this transaction stays
	// open on conn for storedSource's entire lifetime, so every later
	// lazy batch decode reads through the same point-in-time view this
	// first query establishes, rather than whatever a concurrent writer
	// has committed by the time that batch happens to be touched.
	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		conn.Close()
		db.Close()
		return nil, tree.Schema{}, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to begin read transaction")
	}

	var length int
	var schemaBlob []byte
	scanErr := conn.QueryRowContext(ctx, "SELECT length, schema FROM arbors WHERE name = ?", name).Scan(&length, &schemaBlob)
	if scanErr != nil {
		conn.ExecContext(ctx, "COMMIT")
		conn.Close()
		db.Close()
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, tree.Schema{}, errs.NotFoundName("storage.open", name)
		}
		return nil, tree.Schema{}, errs.Wrap(scanErr, errs.StorageErr, "storage.open", "failed to read arbor metadata")
	}

	schema, err := decodeSchema(schemaBlob)
	if err != nil {
		conn.ExecContext(ctx, "COMMIT")
		conn.Close()
		db.Close()
		return nil, tree.Schema{}, errs.Wrap(err, errs.StorageErr, "storage.open", "failed to decode schema")
	}

	src := newStoredSource(db, conn, name, length)
	return src, schema, nil
}

func listNames(path string) ([]string, error) {
	if !fileExists(path) {
		return nil, nil
	}
	db, err := openDB(path, arbor.Options{})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.StorageErr, "storage.list", "failed to acquire connection")
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return nil, errs.Wrap(err, errs.StorageErr, "storage.list", "failed to begin read transaction")
	}
	rows, err := conn.QueryContext(ctx, "SELECT name FROM arbors ORDER BY name")
	if err != nil {
		conn.ExecContext(ctx, "ROLLBACK")
		return nil, errs.Wrap(err, errs.StorageErr, "storage.list", "failed to query names")
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, errs.Wrap(err, errs.StorageErr, "storage.list", "failed to scan name")
		}
		names = append(names, name)
	}
	rows.Close()
	conn.ExecContext(ctx, "COMMIT")
	return names, nil
}

func deleteNamed(path, name string) (bool, error) {
	if !fileExists(path) {
		return false, nil
	}
	db, err := openDB(path, arbor.Options{})
	if err != nil {
		return false, err
	}
	defer db.Close()

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return false, errs.Wrap(err, errs.StorageErr, "storage.delete", "failed to acquire connection")
	}
	defer conn.Close()

	// Write transactions open BEGIN IMMEDIATE (§4.9): acquire the
	// reserved lock up front so two concurrent deletes/saves fail fast
	// against each other rather than deadlocking on a later upgrade.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return false, errs.Wrap(err, errs.StorageErr, "storage.delete", "failed to begin write transaction")
	}
	res, err := conn.ExecContext(ctx, "DELETE FROM arbors WHERE name = ?", name)
	if err != nil {
		conn.ExecContext(ctx, "ROLLBACK")
		return false, errs.Wrap(err, errs.StorageErr, "storage.delete", "failed to delete arbor")
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM arbor_batches WHERE name = ?", name); err != nil {
		conn.ExecContext(ctx, "ROLLBACK")
		return false, errs.Wrap(err, errs.StorageErr, "storage.delete", "failed to delete arbor batches")
	}
	n, _ := res.RowsAffected()
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return false, errs.Wrap(err, errs.StorageErr, "storage.delete", "failed to commit")
	}
	return n > 0, nil
}

// saveMultipleNamed writes every item in one BEGIN IMMEDIATE transaction:
// an all-or-nothing batch (§4.9), with later items overwriting earlier
// ones of the same name inside the same commit (last write wins). txnID
// only appears in error messages, to let an operator correlate a failed
// multi-row save across log lines without exposing any internal id.
func saveMultipleNamed(path string, items []arbor.NamedData, opts arbor.Options) error {
	db, err := openDB(path, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return errs.Wrap(err, errs.StorageErr, "storage.save_multiple", "failed to acquire connection")
	}
	defer conn.Close()

	txnID := uuid.New().String()
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return errs.Wrap(err, errs.StorageErr, "storage.save_multiple", "failed to begin write transaction")
	}

	const upsertMetaSQL = `INSERT INTO arbors(name, length, schema) VALUES(?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET length = excluded.length, schema = excluded.schema`
	const upsertBatchSQL = `INSERT INTO arbor_batches(name, batch_idx, value) VALUES(?, ?, ?)
		ON CONFLICT(name, batch_idx) DO UPDATE SET value = excluded.value`

	for _, item := range items {
		schemaBlob, err := encodeSchema(item.Data.Schema)
		if err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return errs.Wrap(err, errs.StorageErr, "storage.save_multiple",
				fmt.Sprintf("txn %s: failed to encode schema for %q", txnID, item.Name))
		}
		if _, err := conn.ExecContext(ctx, upsertMetaSQL, item.Name, len(item.Data.Trees), schemaBlob); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return errs.Wrap(err, errs.StorageErr, "storage.save_multiple",
				fmt.Sprintf("txn %s: failed to write metadata for %q", txnID, item.Name))
		}

		// A later write overwriting a shorter-than-before arbor must not
		// leave stale trailing batches behind for a still-referenced
		// batch_idx to resurrect; clearing first keeps the batch table an
		// exact image of item.Data.Trees rather than a superset of it.
		if _, err := conn.ExecContext(ctx, "DELETE FROM arbor_batches WHERE name = ?", item.Name); err != nil {
			conn.ExecContext(ctx, "ROLLBACK")
			return errs.Wrap(err, errs.StorageErr, "storage.save_multiple",
				fmt.Sprintf("txn %s: failed to clear stale batches for %q", txnID, item.Name))
		}

		for batchIdx, start := 0, 0; start < len(item.Data.Trees); batchIdx, start = batchIdx+1, start+TreesPerBatch {
			end := start + TreesPerBatch
			if end > len(item.Data.Trees) {
				end = len(item.Data.Trees)
			}
			blob, err := encodeBatch(item.Data.Trees[start:end])
			if err != nil {
				conn.ExecContext(ctx, "ROLLBACK")
				return errs.Wrap(err, errs.StorageErr, "storage.save_multiple",
					fmt.Sprintf("txn %s: failed to encode batch %d of %q", txnID, batchIdx, item.Name))
			}
			if _, err := conn.ExecContext(ctx, upsertBatchSQL, item.Name, batchIdx, blob); err != nil {
				conn.ExecContext(ctx, "ROLLBACK")
				return errs.Wrap(err, errs.StorageErr, "storage.save_multiple",
					fmt.Sprintf("txn %s: failed to write batch %d of %q (%s)", txnID, batchIdx, item.Name, humanize.Bytes(uint64(len(blob)))))
			}
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return errs.Wrap(err, errs.StorageErr, "storage.save_multiple", fmt.Sprintf("txn %s: failed to commit", txnID))
	}
	return nil
}

// encodeSchema/decodeSchema and encodeBatch/decodeBatch are the opaque
// on-disk wire format (§6.3: "no other metadata is part of the public
// file contract"): plain encoding/gob, not a structural format any other
// part of the core reads or indexes into. gob was picked over
// encoding/json specifically because §4.5 calls for "no JSON round trip
// on [the] hot path," and while storage's save/open path isn't itself
// the query hot path, keeping one binary encoding convention end to end
// (Value's MarshalBinary/UnmarshalBinary) avoids introducing JSON
// anywhere Value's unexported fields would have to be worked around a
// second way.
func encodeSchema(s tree.Schema) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSchema(data []byte) (tree.Schema, error) {
	var s tree.Schema
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return tree.Schema{}, err
	}
	return s, nil
}

func encodeBatch(trees []*tree.OwnedTree) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(trees); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBatch(data []byte) ([]*tree.OwnedTree, error) {
	var trees []*tree.OwnedTree
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&trees); err != nil {
		return nil, err
	}
	return trees, nil
}
