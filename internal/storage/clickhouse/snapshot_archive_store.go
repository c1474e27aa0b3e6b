package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coin-dashboard/internal/domain"
	"coin-dashboard/internal/observability"
	"coin-dashboard/internal/storage"
)

// decimalScale matches the Decimal(38, 12) columns of price_snapshots.
const decimalScale = 12

// ArchivedSnapshot is one archived row.
type ArchivedSnapshot struct {
	FetchedAtMs int64
	Snapshot    domain.PriceSnapshot
}

// SnapshotArchiveStore implements storage.SnapshotArchive using ClickHouse.
type SnapshotArchiveStore struct {
	conn *Conn
}

// NewSnapshotArchiveStore creates a new SnapshotArchiveStore.
func NewSnapshotArchiveStore(conn *Conn) *SnapshotArchiveStore {
	return &SnapshotArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotArchive = (*SnapshotArchiveStore)(nil)

// InsertSnapshots appends a batch observed at fetchedAtMs. The table is
// append-only; repeated batches are kept as separate observations.
func (s *SnapshotArchiveStore) InsertSnapshots(ctx context.Context, fetchedAtMs int64, snapshots []domain.PriceSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	if fetchedAtMs < 0 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "snapshot_insert", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_snapshots (
			fetched_at_ms, code, name, price, change_24h_pct, volume, market_cap_usd
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			uint64(fetchedAtMs), string(snap.Code), snap.Name,
			snap.Price.Round(decimalScale), snap.Change24hPct.Round(decimalScale),
			snap.Volume.Round(decimalScale), snap.MarketCapUSD.Round(decimalScale),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByCode retrieves archived snapshots of code within [startMs, endMs]
// (inclusive), ordered by fetch time ASC.
func (s *SnapshotArchiveStore) GetByCode(ctx context.Context, code domain.Symbol, startMs, endMs int64) ([]ArchivedSnapshot, error) {
	query := `
		SELECT fetched_at_ms, code, name, price, change_24h_pct, volume, market_cap_usd
		FROM price_snapshots
		WHERE code = ? AND fetched_at_ms >= ? AND fetched_at_ms <= ?
		ORDER BY fetched_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, string(code), uint64(startMs), uint64(endMs))
	if err != nil {
		return nil, fmt.Errorf("query snapshots by code: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSnapshot
	for rows.Next() {
		var (
			fetchedAtMs uint64
			sym, name   string
			price       decimal.Decimal
			change      decimal.Decimal
			volume      decimal.Decimal
			marketCap   decimal.Decimal
		)
		if err := rows.Scan(&fetchedAtMs, &sym, &name, &price, &change, &volume, &marketCap); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, ArchivedSnapshot{
			FetchedAtMs: int64(fetchedAtMs),
			Snapshot: domain.PriceSnapshot{
				Code:         domain.Symbol(sym),
				Name:         name,
				Price:        price,
				Change24hPct: change,
				Volume:       volume,
				MarketCapUSD: marketCap,
			},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return out, nil
}
