package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

// WarehouseStorage holds bin configuration per warehouse
type WarehouseStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewWarehouseStorage creates a new SQLite warehouse storage
func NewWarehouseStorage(db *sql.DB, log *logger.Logger) (*WarehouseStorage, error) {
	storage := &WarehouseStorage{
		db:     db,
		logger: log.Named("sqlite-whse"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *WarehouseStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS whseconfig (
			whseid TEXT PRIMARY KEY,
			binarrangement TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create whseconfig table: %w", err)
	}

	// Ranged warehouses fill binfrom/binthrough, listed ones binfrom/bindesc
	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS whsebins (
			whseid TEXT NOT NULL REFERENCES whseconfig(whseid) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			binfrom TEXT NOT NULL,
			binthrough TEXT,
			bindesc TEXT,
			PRIMARY KEY (whseid, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create whsebins table: %w", err)
	}

	return nil
}

// GetWarehouse loads the bin configuration for whseID.
// Returns whse.ErrWarehouseNotFound if the warehouse is not configured.
func (s *WarehouseStorage) GetWarehouse(ctx context.Context, whseID string) (*whse.Warehouse, error) {
	var arrangement string
	err := s.db.QueryRowContext(ctx,
		`SELECT binarrangement FROM whseconfig WHERE whseid = ?`, whseID,
	).Scan(&arrangement)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, whse.ErrWarehouseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query whse config: %w", err)
	}

	warehouse := &whse.Warehouse{
		ID:          whseID,
		Arrangement: whse.BinArrangement(arrangement),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT binfrom, binthrough, bindesc FROM whsebins WHERE whseid = ? ORDER BY seq`, whseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query whse bins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			from           string
			through, descr sql.NullString
		)
		if err := rows.Scan(&from, &through, &descr); err != nil {
			return nil, fmt.Errorf("failed to scan whse bin: %w", err)
		}
		if warehouse.AreBinsRanged() {
			warehouse.Ranges = append(warehouse.Ranges, whse.BinRange{From: from, Through: through.String})
		} else {
			warehouse.Bins = append(warehouse.Bins, whse.Bin{Code: from, Description: descr.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate whse bins: %w", err)
	}

	return warehouse, nil
}

// SaveWarehouse replaces the bin configuration for a warehouse
func (s *WarehouseStorage) SaveWarehouse(ctx context.Context, warehouse *whse.Warehouse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM whsebins WHERE whseid = ?`, warehouse.ID); err != nil {
		return fmt.Errorf("failed to clear whse bins: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO whseconfig (whseid, binarrangement) VALUES (?, ?)
		ON CONFLICT(whseid) DO UPDATE SET binarrangement = excluded.binarrangement`,
		warehouse.ID, string(warehouse.Arrangement))
	if err != nil {
		return fmt.Errorf("failed to upsert whse config: %w", err)
	}

	insert := `INSERT INTO whsebins (whseid, seq, binfrom, binthrough, bindesc) VALUES (?, ?, ?, ?, ?)`
	if warehouse.AreBinsRanged() {
		for i, r := range warehouse.Ranges {
			if _, err := tx.ExecContext(ctx, insert, warehouse.ID, i, r.From, r.Through, nil); err != nil {
				return fmt.Errorf("failed to insert bin range: %w", err)
			}
		}
	} else {
		for i, b := range warehouse.Bins {
			if _, err := tx.ExecContext(ctx, insert, warehouse.ID, i, b.Code, nil, b.Description); err != nil {
				return fmt.Errorf("failed to insert bin: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit whse config: %w", err)
	}

	s.logger.Info("Saved warehouse bin configuration",
		logger.String("whse_id", warehouse.ID),
		logger.String("arranged", string(warehouse.Arrangement)),
		logger.Int("ranges", len(warehouse.Ranges)),
		logger.Int("bins", len(warehouse.Bins)))

	return nil
}
