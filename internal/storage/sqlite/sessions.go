package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

const (
	queryLoadSession = `
		SELECT sessionid, date, time, loginid, whseid, ordn, binnbr, palletnbr, cartonnbr, status, function
		FROM whsesession
		WHERE sessionid = ?
		LIMIT 1`

	querySessionExists = `
		SELECT COUNT(*)
		FROM whsesession
		WHERE sessionid = ?`

	queryPickedItems = `
		SELECT sessionid, ordn, itemid, recordnumber, barcode, binnbr, palletnbr, qty
		FROM whseitempick
		WHERE sessionid = ? AND ordn = ? AND itemid = ?
		ORDER BY recordnumber`

	queryPickedQtyTotal = `
		SELECT COALESCE(SUM(qty), 0)
		FROM whseitempick
		WHERE sessionid = ? AND ordn = ? AND itemid = ?`

	queryDeletePickedItems = `
		DELETE FROM whseitempick
		WHERE sessionid = ?`
)

var statements = map[whse.Op]string{
	whse.OpLoadSession:       queryLoadSession,
	whse.OpSessionExists:     querySessionExists,
	whse.OpPickedItems:       queryPickedItems,
	whse.OpPickedQtyTotal:    queryPickedQtyTotal,
	whse.OpDeletePickedItems: queryDeletePickedItems,
}

// SessionStorage reads whse session records and picked items written by the execution backend
type SessionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSessionStorage creates a new SQLite session storage
func NewSessionStorage(db *sql.DB, log *logger.Logger) (*SessionStorage, error) {
	storage := &SessionStorage{
		db:     db,
		logger: log.Named("sqlite-session"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

// initDB creates the tables when the backend has not created them yet
func (s *SessionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS whsesession (
			sessionid TEXT PRIMARY KEY,
			date INTEGER NOT NULL DEFAULT 0,
			time INTEGER NOT NULL DEFAULT 0,
			loginid TEXT,
			whseid TEXT,
			ordn TEXT,
			binnbr TEXT,
			palletnbr TEXT,
			cartonnbr TEXT,
			status TEXT,
			function TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create whsesession table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS whseitempick (
			sessionid TEXT NOT NULL,
			ordn TEXT NOT NULL,
			itemid TEXT NOT NULL,
			recordnumber INTEGER NOT NULL,
			barcode TEXT,
			binnbr TEXT,
			palletnbr TEXT,
			qty INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (sessionid, ordn, itemid, recordnumber)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create whseitempick table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_whseitempick_session ON whseitempick(sessionid)`)
	if err != nil {
		return fmt.Errorf("failed to create whseitempick session index: %w", err)
	}

	return nil
}

// GetSession loads the session record for sessionID.
// Returns whse.ErrSessionNotFound if there is no such record.
func (s *SessionStorage) GetSession(ctx context.Context, sessionID string) (*whse.Session, error) {
	var (
		date, tm                                   int
		loginID, whseID, ordn, bin, pallet, carton sql.NullString
		status, function                           sql.NullString
	)

	err := s.db.QueryRowContext(ctx, queryLoadSession, sessionID).Scan(
		new(string), &date, &tm, &loginID, &whseID, &ordn, &bin, &pallet, &carton, &status, &function,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, whse.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query whse session: %w", err)
	}

	session := whse.NewSession(sessionID)
	session.Date = date
	session.Time = tm
	session.LoginID = loginID.String
	session.WarehouseID = whseID.String
	session.OrderNumber = ordn.String
	session.BinNumber = bin.String
	session.PalletNumber = pallet.String
	session.CartonNumber = carton.String
	session.Status = status.String
	session.Function = function.String

	return session, nil
}

// SessionExists reports whether a record exists for sessionID
func (s *SessionStorage) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, querySessionExists, sessionID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count whse sessions: %w", err)
	}
	return count > 0, nil
}

// PickedItems returns the picked item rows for an order line
func (s *SessionStorage) PickedItems(ctx context.Context, sessionID, orderNumber, itemID string) ([]whse.PickedItem, error) {
	rows, err := s.db.QueryContext(ctx, queryPickedItems, sessionID, orderNumber, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query picked items: %w", err)
	}
	defer rows.Close()

	items := make([]whse.PickedItem, 0)
	for rows.Next() {
		var (
			item                    whse.PickedItem
			barcode, bin, palletNbr sql.NullString
		)
		if err := rows.Scan(&item.SessionID, &item.OrderNumber, &item.ItemID, &item.RecordNumber,
			&barcode, &bin, &palletNbr, &item.Qty); err != nil {
			return nil, fmt.Errorf("failed to scan picked item: %w", err)
		}
		item.Barcode = barcode.String
		item.BinNumber = bin.String
		item.PalletNumber = palletNbr.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picked items: %w", err)
	}

	return items, nil
}

// PickedQtyTotal returns the summed quantity picked for an order line
func (s *SessionStorage) PickedQtyTotal(ctx context.Context, sessionID, orderNumber, itemID string) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, queryPickedQtyTotal, sessionID, orderNumber, itemID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum picked qty: %w", err)
	}
	return total, nil
}

// DeletePickedItems removes every picked item for the session
func (s *SessionStorage) DeletePickedItems(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryDeletePickedItems, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete picked items: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Explain renders the statement op runs with args interpolated
func (s *SessionStorage) Explain(op whse.Op, args ...string) (string, error) {
	query, ok := statements[op]
	if !ok {
		return "", fmt.Errorf("unknown operation: %s", op)
	}
	return renderQuery(query, args...)
}

// UpsertSession writes a session record, replacing any existing one
func (s *SessionStorage) UpsertSession(ctx context.Context, session *whse.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whsesession (sessionid, date, time, loginid, whseid, ordn, binnbr, palletnbr, cartonnbr, status, function)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sessionid) DO UPDATE SET
			date = excluded.date,
			time = excluded.time,
			loginid = excluded.loginid,
			whseid = excluded.whseid,
			ordn = excluded.ordn,
			binnbr = excluded.binnbr,
			palletnbr = excluded.palletnbr,
			cartonnbr = excluded.cartonnbr,
			status = excluded.status,
			function = excluded.function`,
		session.SessionID(), session.Date, session.Time, session.LoginID, session.WarehouseID,
		session.OrderNumber, session.BinNumber, session.PalletNumber, session.CartonNumber,
		session.Status, session.Function,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert whse session: %w", err)
	}

	s.logger.Debug("Upserted whse session", logger.String("session_id", session.SessionID()))
	return nil
}

// InsertPickedItem records one picked barcode
func (s *SessionStorage) InsertPickedItem(ctx context.Context, item whse.PickedItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whseitempick (sessionid, ordn, itemid, recordnumber, barcode, binnbr, palletnbr, qty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SessionID, item.OrderNumber, item.ItemID, item.RecordNumber,
		item.Barcode, item.BinNumber, item.PalletNumber, item.Qty,
	)
	if err != nil {
		return fmt.Errorf("failed to insert picked item: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *SessionStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
