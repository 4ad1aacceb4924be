package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/oHaruki/SmurfMGT/internal/db"
	"github.com/oHaruki/SmurfMGT/internal/models"
)

// GormStore is the relational backend. Every method reports recoverable
// failures (connectivity, schema drift) wrapped in errBackend so the
// manager can engage the fallback store; semantic outcomes (ErrNotFound,
// ErrConflict) pass through untouched.
type GormStore struct {
	conn   *gorm.DB
	writer *adaptiveWriter
}

// NewGormStore constructs a GormStore. A nil connection is legal and makes
// every operation report errBackend.
func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{conn: conn, writer: newAdaptiveWriter(conn)}
}

func (s *GormStore) ready() error {
	if s == nil || s.conn == nil {
		return fmt.Errorf("%w: no connection", errBackend)
	}
	return nil
}

func (s *GormStore) backendErr(err error) error {
	return fmt.Errorf("%w: %v", errBackend, err)
}

// accountFlairRow carries one aggregated list query result.
type accountFlairRow struct {
	models.Account `gorm:"embedded"`
	FlairNames     string `gorm:"column:flair_names"`
}

// ListAccounts returns all accounts owned by ownerID with their flair
// names aggregated in one query. Reads use SELECT a.* so optional columns
// the live schema lacks simply stay zero-valued.
func (s *GormStore) ListAccounts(ctx context.Context, ownerID uint64) ([]accountFlairRow, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	query := fmt.Sprintf(`
		SELECT a.*, %s AS flair_names
		FROM lol_accounts a
		LEFT JOIN account_flairs af ON a.id = af.account_id
		LEFT JOIN flairs f ON af.flair_id = f.id
		WHERE a.user_id = ?
		GROUP BY a.id`, db.FlairNamesAggExpr(s.conn))
	var rows []accountFlairRow
	if errFind := s.conn.WithContext(ctx).Raw(query, ownerID).Scan(&rows).Error; errFind != nil {
		return nil, s.backendErr(errFind)
	}
	return rows, nil
}

// GetAccount returns the owner-scoped account or ErrNotFound.
func (s *GormStore) GetAccount(ctx context.Context, id, ownerID uint64) (*models.Account, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	var rows []models.Account
	errFind := s.conn.WithContext(ctx).
		Raw("SELECT * FROM lol_accounts WHERE id = ? AND user_id = ?", id, ownerID).
		Scan(&rows).Error
	if errFind != nil {
		return nil, s.backendErr(errFind)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// CreateAccount persists a new account through the schema-adaptive writer.
func (s *GormStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	return s.writer.insert(ctx, acc)
}

// UpdateAccount applies the given column updates to the owner-scoped
// account. ErrNotFound when no row matched.
func (s *GormStore) UpdateAccount(ctx context.Context, id, ownerID uint64, updates map[string]any) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	res := s.conn.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return s.backendErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount removes the owner-scoped account and its flair assignments
// in one transaction. ErrNotFound when no row matched.
func (s *GormStore) DeleteAccount(ctx context.Context, id, ownerID uint64) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	var deleted int64
	errTx := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDelFlairs := tx.Where("account_id = ?", id).Delete(&models.AccountFlair{}).Error; errDelFlairs != nil {
			return errDelFlairs
		}
		res := tx.Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Account{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if errTx != nil {
		return s.backendErr(errTx)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAssignments removes every flair assignment for an account id,
// regardless of which backend held the account itself.
func (s *GormStore) DeleteAssignments(ctx context.Context, accountID uint64) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	if errDel := s.conn.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.AccountFlair{}).Error; errDel != nil {
		return s.backendErr(errDel)
	}
	return nil
}

// AccountFlairNames returns the flair names assigned to an account.
func (s *GormStore) AccountFlairNames(ctx context.Context, accountID uint64) ([]string, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	var names []string
	errFind := s.conn.WithContext(ctx).
		Raw(`SELECT f.flair_name FROM account_flairs af JOIN flairs f ON af.flair_id = f.id WHERE af.account_id = ?`, accountID).
		Scan(&names).Error
	if errFind != nil {
		return nil, s.backendErr(errFind)
	}
	return names, nil
}

// HasAssignment reports whether the flair is already assigned.
func (s *GormStore) HasAssignment(ctx context.Context, accountID, flairID uint64) (bool, error) {
	if errReady := s.ready(); errReady != nil {
		return false, errReady
	}
	var count int64
	errCount := s.conn.WithContext(ctx).Model(&models.AccountFlair{}).
		Where("account_id = ? AND flair_id = ?", accountID, flairID).
		Count(&count).Error
	if errCount != nil {
		return false, s.backendErr(errCount)
	}
	return count > 0, nil
}

// AddAssignment inserts an assignment; the composite primary key is the
// final arbiter, so a lost race surfaces as ErrConflict.
func (s *GormStore) AddAssignment(ctx context.Context, accountID, flairID uint64) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	assignment := models.AccountFlair{AccountID: accountID, FlairID: flairID}
	if errCreate := s.conn.WithContext(ctx).Create(&assignment).Error; errCreate != nil {
		if isConflict(s.conn, errCreate) {
			return ErrConflict
		}
		return s.backendErr(errCreate)
	}
	return nil
}

// RemoveAssignment deletes an assignment. Removing a non-existent
// assignment is not an error.
func (s *GormStore) RemoveAssignment(ctx context.Context, accountID, flairID uint64) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	errDel := s.conn.WithContext(ctx).
		Where("account_id = ? AND flair_id = ?", accountID, flairID).
		Delete(&models.AccountFlair{}).Error
	if errDel != nil {
		return s.backendErr(errDel)
	}
	return nil
}

// ListFlairs returns the flair catalog.
func (s *GormStore) ListFlairs(ctx context.Context) ([]models.Flair, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	var rows []models.Flair
	if errFind := s.conn.WithContext(ctx).Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, s.backendErr(errFind)
	}
	return rows, nil
}

// CreateUser inserts a new user; duplicate username or email surfaces as
// ErrConflict.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if errReady := s.ready(); errReady != nil {
		return errReady
	}
	if errCreate := s.conn.WithContext(ctx).Create(user).Error; errCreate != nil {
		if isConflict(s.conn, errCreate) {
			return ErrConflict
		}
		return s.backendErr(errCreate)
	}
	return nil
}

// FindUserByEmail returns the user with the given email or ErrNotFound.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if errReady := s.ready(); errReady != nil {
		return nil, errReady
	}
	var user models.User
	errFind := s.conn.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.backendErr(errFind)
	}
	return &user, nil
}

// UserExists reports whether a user with the given username or email is
// already registered.
func (s *GormStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	if errReady := s.ready(); errReady != nil {
		return false, errReady
	}
	var count int64
	errCount := s.conn.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	if errCount != nil {
		return false, s.backendErr(errCount)
	}
	return count > 0, nil
}

// touchLastModified stamps updates maps with the mutation time.
func touchLastModified(updates map[string]any, now time.Time) map[string]any {
	updates["last_modified"] = now.UTC()
	return updates
}
