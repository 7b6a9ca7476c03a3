// Package store implements the optional audit-log persistence layer
// (SPEC_FULL.md's store component): every RIB change a session accepts
// is batched and written to Postgres for later reconstruction of a
// peer's route history, independent of whatever that peer currently
// holds in memory. Disabled unless StoreConfig.Enabled is set.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
)

// Row is one recorded RIB change, ready for insertion.
type Row struct {
	Time     time.Time
	Peer     string
	Family   bgp.Family
	Prefix   []byte // NLRI.Encode()
	Withdraw bool
	Raw      []byte // optional wire frame, compressed if the store is configured to
}

// Store batches Rows and flushes them to route_events in one
// transaction per batch, the same shape as a streaming ingest pipeline
// that cannot afford one round trip per event.
type Store struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	compressRaw bool
	encoder     *zstd.Encoder
}

// Open connects to dsn and returns a Store. Close must be called on
// shutdown to release the pool.
func Open(ctx context.Context, dsn string, compressRaw bool, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	var enc *zstd.Encoder
	if compressRaw {
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: zstd encoder: %w", err)
		}
	}

	return &Store{pool: pool, logger: logger, compressRaw: compressRaw, encoder: enc}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

const insertSQL = `
	INSERT INTO route_events (event_time, peer, afi, safi, prefix, withdraw, raw)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT DO NOTHING`

// FlushBatch writes rows in one transaction, returning the number of
// rows actually inserted (a dedup-driven no-op per row returns 0
// affected without erroring, matching the "ON CONFLICT DO NOTHING"
// write-at-least-once discipline the rest of this core assumes at its
// ingress boundaries).
func (s *Store) FlushBatch(ctx context.Context, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		raw := r.Raw
		if s.compressRaw && len(raw) > 0 {
			raw = s.encoder.EncodeAll(raw, nil)
		}
		batch.Queue(insertSQL, r.Time, r.Peer, r.Family.AFI, r.Family.SAFI, r.Prefix, r.Withdraw, raw)
	}

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("store: insert row %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("store: closing batch results: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return inserted, nil
}

// RowFromChange adapts a rib.Change into the Row shape this package
// writes, keeping the rib package itself free of a storage dependency.
func RowFromChange(peer string, family bgp.Family, nlri message.NLRI, withdraw bool, raw []byte) Row {
	return Row{
		Time:     time.Now(),
		Peer:     peer,
		Family:   family,
		Prefix:   nlri.Encode(),
		Withdraw: withdraw,
		Raw:      raw,
	}
}
