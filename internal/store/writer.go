package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/db"
	"github.com/oHaruki/SmurfMGT/internal/models"
)

// failureClass buckets relational write errors by how the writer reacts.
type failureClass int

const (
	// classUnknownColumn: the statement referenced a column the live
	// schema does not have; retry with a narrower statement.
	classUnknownColumn failureClass = iota
	// classConstraint: duplicate key or similar; propagate as Conflict.
	classConstraint
	// classConnectivity: the backend is unusable for this call (down,
	// missing table, anything unclassifiable); engage the fallback.
	classConnectivity
)

// insertShapes are the account insert statements in priority order, widest
// first. Each drops exactly one more optional column than the previous, so
// a column is only abandoned once its absence has caused a failure.
var insertShapes = [][]string{
	{"user_id", "login_username", "login_password", "login_password_encrypted", "summoner_name", "server", "favorite"},
	{"user_id", "login_username", "login_password", "summoner_name", "server", "favorite"},
	{"user_id", "login_username", "login_password", "summoner_name", "server"},
}

// adaptiveWriter performs account inserts against the relational backend,
// negotiating the widest statement the live schema accepts. The negotiated
// shape is cached after the first success; a connectivity failure resets
// it so a recovered or freshly migrated database is re-probed.
type adaptiveWriter struct {
	conn *gorm.DB

	mu    sync.Mutex
	shape int
}

func newAdaptiveWriter(conn *gorm.DB) *adaptiveWriter {
	return &adaptiveWriter{conn: conn}
}

func (w *adaptiveWriter) cachedShape() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.shape
}

func (w *adaptiveWriter) setShape(shape int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shape = shape
}

// insert persists acc and fills in its assigned ID. The account fields
// covered by dropped columns are zeroed on the returned record so callers
// see exactly what the database now holds.
func (w *adaptiveWriter) insert(ctx context.Context, acc *models.Account) error {
	if w == nil || w.conn == nil {
		return fmt.Errorf("%w: no connection", errBackend)
	}

	var lastErr error
	for shape := w.cachedShape(); shape < len(insertShapes); shape++ {
		query, args := buildAccountInsert(acc, insertShapes[shape])
		var id uint64
		errExec := w.conn.WithContext(ctx).Raw(query, args...).Scan(&id).Error
		if errExec == nil {
			acc.ID = id
			if shape >= 1 {
				acc.LoginPasswordEncrypted = ""
			}
			if shape >= 2 {
				acc.Favorite = false
			}
			w.setShape(shape)
			return nil
		}
		lastErr = errExec
		switch classifyError(w.conn, errExec) {
		case classUnknownColumn:
			continue
		case classConstraint:
			return fmt.Errorf("%w: %v", ErrConflict, errExec)
		default:
			w.setShape(0)
			return fmt.Errorf("%w: %v", errBackend, errExec)
		}
	}
	w.setShape(0)
	return fmt.Errorf("%w: %v", errBackend, lastErr)
}

func buildAccountInsert(acc *models.Account, columns []string) (string, []any) {
	values := map[string]any{
		"user_id":                  acc.UserID,
		"login_username":           acc.LoginUsername,
		"login_password":           acc.LoginPasswordDigest,
		"login_password_encrypted": acc.LoginPasswordEncrypted,
		"summoner_name":            acc.SummonerName,
		"server":                   acc.Server,
		"favorite":                 acc.Favorite,
	}
	args := make([]any, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for _, column := range columns {
		args = append(args, values[column])
		placeholders = append(placeholders, "?")
	}
	query := fmt.Sprintf(
		"INSERT INTO lol_accounts (%s) VALUES (%s) RETURNING id",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args
}

// classifyError buckets a relational error for the current dialect.
func classifyError(conn *gorm.DB, err error) failureClass {
	if err == nil {
		return classConnectivity
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42703": // undefined_column
			return classUnknownColumn
		case "23505": // unique_violation
			return classConstraint
		case "23503": // foreign_key_violation
			return classConstraint
		}
		return classConnectivity
	}

	if db.IsSQLite(conn) {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
			return classUnknownColumn
		case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "constraint failed: unique"):
			return classConstraint
		case strings.Contains(msg, "foreign key constraint"):
			return classConstraint
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return classConstraint
	}
	return classConnectivity
}

// isConflict reports whether a relational error is a uniqueness violation.
func isConflict(conn *gorm.DB, err error) bool {
	return err != nil && classifyError(conn, err) == classConstraint
}
