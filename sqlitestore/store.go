// Package sqlitestore provides the durable SQLite-backed ledger store and
// registries.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/etnz/tracker"
)

// timeLayout is a fixed-width RFC 3339 variant: unlike time.RFC3339Nano it
// never trims trailing zeros, so the textual date_time column sorts
// chronologically. All instants are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	date_time TEXT NOT NULL,
	account_id TEXT NOT NULL,
	asset_id TEXT NOT NULL,
	tx_type TEXT NOT NULL,
	quantity TEXT NOT NULL,
	unit_price TEXT NOT NULL DEFAULT '0',
	notes TEXT NOT NULL DEFAULT '',
	transfer_group_id TEXT NOT NULL DEFAULT '',
	separated INTEGER NOT NULL DEFAULT 0,
	external_reference TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_chrono ON transactions(date_time, id);
CREATE INDEX IF NOT EXISTS idx_transactions_position ON transactions(account_id, asset_id);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	pricing_mode TEXT NOT NULL DEFAULT 'MANUAL',
	manual_price TEXT NOT NULL DEFAULT '0'
);
`

// Store is a SQLite-backed tracker.LedgerStore that also serves as the
// account and asset registries. Quantities and prices are stored as decimal
// strings: REAL columns would reintroduce the float rounding the decimal
// arithmetic exists to avoid.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func formatTime(at time.Time) string { return at.UTC().Format(timeLayout) }

// Append adds rows to the ledger in a single transaction.
func (s *Store) Append(txs ...tracker.LedgerTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	dbtx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer dbtx.Rollback()

	stmt, err := dbtx.Prepare(`INSERT INTO transactions
		(id, date_time, account_id, asset_id, tx_type, quantity, unit_price,
		 notes, transfer_group_id, separated, external_reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, tx := range txs {
		if _, err := stmt.Exec(
			tx.ID, formatTime(tx.DateTime), tx.AccountID, tx.AssetID,
			string(tx.Type), tx.Quantity.String(), tx.UnitPrice.String(),
			tx.Notes, tx.TransferGroupID, tx.Separated, tx.ExternalReference,
		); err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return dbtx.Commit()
}

const txColumns = `id, date_time, account_id, asset_id, tx_type, quantity,
	unit_price, notes, transfer_group_id, separated, external_reference`

func scanTx(row interface{ Scan(...any) error }) (tracker.LedgerTransaction, error) {
	var tx tracker.LedgerTransaction
	var dateTime, txType, quantity, unitPrice string
	if err := row.Scan(
		&tx.ID, &dateTime, &tx.AccountID, &tx.AssetID, &txType, &quantity,
		&unitPrice, &tx.Notes, &tx.TransferGroupID, &tx.Separated,
		&tx.ExternalReference,
	); err != nil {
		return tx, err
	}

	at, err := time.Parse(timeLayout, dateTime)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: corrupt date_time %q: %w", tx.ID, dateTime, err)
	}
	tx.DateTime = at.UTC()
	if tx.Type, err = tracker.ParseTxType(txType); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if tx.Quantity, err = tracker.ParseQuantity(quantity); err != nil {
		return tx, fmt.Errorf("transaction %s: corrupt quantity %q: %w", tx.ID, quantity, err)
	}
	if tx.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return tx, fmt.Errorf("transaction %s: corrupt unit_price %q: %w", tx.ID, unitPrice, err)
	}
	return tx, nil
}

// Get returns the row with the given id.
func (s *Store) Get(id string) (tracker.LedgerTransaction, error) {
	row := s.db.QueryRow(`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTx(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.LedgerTransaction{}, &tracker.NotFoundError{Kind: "transaction", ID: id}
	}
	return tx, err
}

// Query returns the matching rows in chronological order. The fixed-width
// date_time encoding makes the textual ORDER BY a chronological one, with
// the id as deterministic tie-breaker like the in-memory store.
func (s *Store) Query(f tracker.Filter) ([]tracker.LedgerTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions`
	var conds []string
	var args []any
	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.AssetID != "" {
		conds = append(conds, "asset_id = ?")
		args = append(args, f.AssetID)
	}
	if f.Type != "" {
		conds = append(conds, "tx_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.Before.IsZero() {
		conds = append(conds, "date_time < ?")
		args = append(args, formatTime(f.Before))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date_time, id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracker.LedgerTransaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Update mutates the matcher state of one row.
func (s *Store) Update(id string, fields tracker.Fields) error {
	var sets []string
	var args []any
	if fields.TransferGroupID != nil {
		sets = append(sets, "transfer_group_id = ?")
		args = append(args, *fields.TransferGroupID)
	}
	if fields.Separated != nil {
		sets = append(sets, "separated = ?")
		args = append(args, *fields.Separated)
	}
	if len(sets) == 0 {
		// Nothing to change, but the row must still exist.
		_, err := s.Get(id)
		return err
	}
	args = append(args, id)

	res, err := s.db.Exec(`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &tracker.NotFoundError{Kind: "transaction", ID: id}
	}
	return nil
}

// Delete removes rows by id. Unknown ids are ignored.
func (s *Store) Delete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.Exec(`DELETE FROM transactions WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// UpsertAccount creates or updates a registry account.
func (s *Store) UpsertAccount(a tracker.Account) error {
	_, err := s.db.Exec(`INSERT INTO accounts (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, a.ID, a.Name)
	return err
}

// Account implements tracker.AccountRegistry.
func (s *Store) Account(id string) (tracker.Account, bool) {
	var a tracker.Account
	err := s.db.QueryRow(`SELECT id, name FROM accounts WHERE id = ?`, id).Scan(&a.ID, &a.Name)
	return a, err == nil
}

// UpsertAsset creates or updates a registry asset. An unset pricing mode is
// stored as MANUAL.
func (s *Store) UpsertAsset(a tracker.Asset) error {
	mode := a.PricingMode
	if mode == "" {
		mode = tracker.PricingManual
	}
	_, err := s.db.Exec(`INSERT INTO assets (id, symbol, name, pricing_mode, manual_price)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET symbol = excluded.symbol, name = excluded.name,
			pricing_mode = excluded.pricing_mode, manual_price = excluded.manual_price`,
		a.ID, a.Symbol, a.Name, string(mode), a.ManualPrice.String())
	return err
}

// Asset implements tracker.AssetRegistry.
func (s *Store) Asset(id string) (tracker.Asset, bool) {
	var a tracker.Asset
	var mode, price string
	err := s.db.QueryRow(`SELECT id, symbol, name, pricing_mode, manual_price FROM assets WHERE id = ?`, id).
		Scan(&a.ID, &a.Symbol, &a.Name, &mode, &price)
	if err != nil {
		return a, false
	}
	if a.PricingMode, err = tracker.ParsePricingMode(mode); err != nil {
		return a, false
	}
	if a.ManualPrice, err = decimal.NewFromString(price); err != nil {
		return a, false
	}
	return a, true
}
