// Package sqlite persiste el almacén en memoria en una tabla SQLite como blobs JSON.
// Pensado para instalaciones de un solo nodo: cada commit escribe el estado completo
// antes de publicarse en memoria.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // driver sqlite en Go puro

	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
)

const (
	bucketDrugs        = "drugs"
	bucketStocks       = "stocks"
	bucketTransactions = "transactions"
	bucketTransfers    = "transfers"
)

var buckets = []string{bucketDrugs, bucketStocks, bucketTransactions, bucketTransfers}

// Store almacén en memoria con snapshot durable en SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// Open abre (o crea) la base en path y carga el último snapshot.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "farmacia.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("crear directorios: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("abrir sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("crear tabla state: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("leer state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap memory.Snapshot
	found := false
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		found = true
		var target any
		switch bucket {
		case bucketDrugs:
			target = &snap.Drugs
		case bucketStocks:
			target = &snap.Stocks
		case bucketTransactions:
			target = &snap.Transactions
		case bucketTransfers:
			target = &snap.Transfers
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decodificar %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("leer state: %w", err)
	}
	if !found {
		return nil
	}
	return s.ImportState(snap)
}

// persist escribe el snapshot en una transacción SQLite; se invoca con el candado de escritura tomado.
func (s *Store) persist(snap memory.Snapshot) (retErr error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sqlite: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch bucket {
		case bucketDrugs:
			data, err = json.Marshal(snap.Drugs)
		case bucketStocks:
			data, err = json.Marshal(snap.Stocks)
		case bucketTransactions:
			data, err = json.Marshal(snap.Transactions)
		case bucketTransfers:
			data, err = json.Marshal(snap.Transfers)
		}
		if err != nil {
			return fmt.Errorf("codificar %s: %w", bucket, err)
		}
		if _, err := tx.Exec(`INSERT INTO state(bucket, payload) VALUES(?, ?)
			ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Close cierra la base.
func (s *Store) Close() error { return s.db.Close() }

// Path ruta de la base.
func (s *Store) Path() string { return s.path }
