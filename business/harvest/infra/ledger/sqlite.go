// Package ledger keeps an append-only record of harvest attempts in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/fd1az/harvest-keeper/business/harvest/domain"
	"github.com/fd1az/harvest-keeper/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS harvest_attempts (
    id           TEXT PRIMARY KEY,
    strategy     TEXT    NOT NULL,
    block_number INTEGER NOT NULL,
    gas_price    TEXT    NOT NULL,
    gas_limit    INTEGER NOT NULL,
    success      INTEGER NOT NULL,
    tx_hash      TEXT,
    want_earned  TEXT,
    gas_used     INTEGER NOT NULL DEFAULT 0,
    error        TEXT,
    attempted_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_strategy ON harvest_attempts(strategy, attempted_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_at       ON harvest_attempts(attempted_at DESC);
`

const selectColumns = `id, strategy, block_number, gas_price, gas_limit, success, tx_hash, want_earned, gas_used, error, attempted_at`

// SQLiteLedger implements the harvest Ledger port.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates the database at path. ":memory:" works
// for tests.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperror.New(apperror.CodeLedgerError,
			apperror.WithCause(err),
			apperror.WithContext("open "+path))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperror.New(apperror.CodeLedgerError,
			apperror.WithCause(err),
			apperror.WithContext("apply schema"))
	}
	return &SQLiteLedger{db: db}, nil
}

// RecordAttempt inserts one attempt.
func (l *SQLiteLedger) RecordAttempt(ctx context.Context, a domain.Attempt) error {
	var txHash, wantEarned, errMsg sql.NullString
	if a.TxHash != (common.Hash{}) {
		txHash = sql.NullString{String: a.TxHash.Hex(), Valid: true}
	}
	if a.WantEarned != nil {
		wantEarned = sql.NullString{String: a.WantEarned.String(), Valid: true}
	}
	if a.Error != "" {
		errMsg = sql.NullString{String: a.Error, Valid: true}
	}
	gasPrice := "0"
	if a.GasPrice != nil {
		gasPrice = a.GasPrice.String()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO harvest_attempts (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Strategy.Hex(), a.BlockNumber, gasPrice, a.GasLimit, a.Success,
		txHash, wantEarned, a.GasUsed, errMsg, a.Timestamp.Unix(),
	)
	if err != nil {
		return apperror.New(apperror.CodeLedgerError,
			apperror.WithCause(err),
			apperror.WithContext("insert attempt "+a.ID))
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]domain.Attempt, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM harvest_attempts ORDER BY attempted_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperror.New(apperror.CodeLedgerError, apperror.WithCause(err), apperror.WithContext("query recent"))
	}
	return scanAttempts(rows)
}

// ForStrategy returns the attempts recorded for one strategy, newest first.
func (l *SQLiteLedger) ForStrategy(ctx context.Context, strategy common.Address, limit int) ([]domain.Attempt, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM harvest_attempts WHERE strategy = ? ORDER BY attempted_at DESC, rowid DESC LIMIT ?`,
		strategy.Hex(), limit)
	if err != nil {
		return nil, apperror.New(apperror.CodeLedgerError, apperror.WithCause(err), apperror.WithContext("query strategy"))
	}
	return scanAttempts(rows)
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func scanAttempts(rows *sql.Rows) ([]domain.Attempt, error) {
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var (
			a                          domain.Attempt
			strategy, gasPrice         string
			txHash, wantEarned, errMsg sql.NullString
			attemptedAt                int64
		)
		if err := rows.Scan(&a.ID, &strategy, &a.BlockNumber, &gasPrice, &a.GasLimit, &a.Success,
			&txHash, &wantEarned, &a.GasUsed, &errMsg, &attemptedAt); err != nil {
			return nil, apperror.New(apperror.CodeLedgerError, apperror.WithCause(err), apperror.WithContext("scan attempt"))
		}

		a.Strategy = common.HexToAddress(strategy)
		a.GasPrice = parseInt(gasPrice)
		if txHash.Valid {
			a.TxHash = common.HexToHash(txHash.String)
		}
		if wantEarned.Valid {
			a.WantEarned = parseInt(wantEarned.String)
		}
		a.Error = errMsg.String
		a.Timestamp = time.Unix(attemptedAt, 0)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func parseInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
