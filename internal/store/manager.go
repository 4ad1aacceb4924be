package store

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/oHaruki/SmurfMGT/internal/flairs"
	"github.com/oHaruki/SmurfMGT/internal/models"
	"github.com/oHaruki/SmurfMGT/internal/secrets"
)

// Manager composes the relational backend and the in-process fallback
// store behind one account API. Relational is always tried first; any
// backend failure routes the operation to the fallback so callers never
// see an outage. Semantic errors (ErrNotFound, ErrConflict) are the only
// errors it returns for normal traffic.
type Manager struct {
	rel    *GormStore
	mem    *MemoryStore
	cipher *secrets.Cipher
}

// NewManager wires the two backends and the credential cipher together.
func NewManager(rel *GormStore, mem *MemoryStore, cipher *secrets.Cipher) *Manager {
	if mem == nil {
		mem = NewMemoryStore()
	}
	return &Manager{rel: rel, mem: mem, cipher: cipher}
}

// CreateUser registers a new user, enforcing username and email uniqueness
// across both backends.
func (m *Manager) CreateUser(ctx context.Context, username, email, passwordDigest string) (*models.User, error) {
	if m.mem.UserExists(username, email) {
		return nil, ErrConflict
	}
	exists, errExists := m.rel.UserExists(ctx, username, email)
	if errExists == nil && exists {
		return nil, ErrConflict
	}

	user := &models.User{Username: username, Email: email, PasswordDigest: passwordDigest}
	if errExists == nil {
		errCreate := m.rel.CreateUser(ctx, user)
		if errCreate == nil {
			return user, nil
		}
		if !isBackendFailure(errCreate) {
			return nil, errCreate
		}
		log.WithError(errCreate).Warn("relational user create failed, using fallback store")
	} else {
		log.WithError(errExists).Warn("relational backend unavailable, registering user in fallback store")
	}
	m.mem.CreateUser(user)
	return user, nil
}

// FindUserByEmail resolves a user from either backend.
func (m *Manager) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, errFind := m.rel.FindUserByEmail(ctx, email)
	if errFind == nil {
		return user, nil
	}
	if !isBackendFailure(errFind) && !errors.Is(errFind, ErrNotFound) {
		return nil, errFind
	}
	if fallback, ok := m.mem.FindUserByEmail(email); ok {
		return &fallback, nil
	}
	return nil, ErrNotFound
}

// CreateAccount stores a new game account. The login password is kept in
// two tiers: a bcrypt digest, and a reversible secret sealed by the
// cipher. When the relational backend rejects the write the account lands
// in the fallback store with its plaintext retained, so the credential
// stays recoverable for the rest of the process lifetime.
func (m *Manager) CreateAccount(ctx context.Context, params NewAccountParams) (*AccountView, error) {
	digest, errDigest := secrets.Digest(params.LoginPassword)
	if errDigest != nil {
		return nil, errDigest
	}
	sealed := m.cipher.Seal(params.LoginPassword)

	acc := &models.Account{
		UserID:                 params.OwnerID,
		LoginUsername:          params.LoginUsername,
		LoginPasswordDigest:    digest,
		LoginPasswordEncrypted: sealed.Encode(),
		SummonerName:           params.SummonerName,
		Server:                 params.Server,
	}

	errCreate := m.rel.CreateAccount(ctx, acc)
	switch {
	case errCreate == nil:
		// Relational write succeeded, possibly with the encrypted column
		// dropped by the schema-adaptive writer.
	case isBackendFailure(errCreate):
		log.WithError(errCreate).Warn("relational account create failed, using fallback store")
		acc.LoginPasswordEncrypted = sealed.Encode()
		m.mem.CreateAccount(acc, params.LoginPassword)
	default:
		return nil, errCreate
	}

	view := m.buildView(ctx, *acc, nil)
	// The caller just supplied the password; echo it even when the
	// narrowed schema could not keep the reversible tier.
	view.DecryptedPassword = params.LoginPassword
	return &view, nil
}

// ListAccounts returns every account the owner can see: relational rows
// with overlays applied, merged with fallback-held rows. When the
// relational read fails the fallback rows alone are served.
func (m *Manager) ListAccounts(ctx context.Context, ownerID uint64) ([]AccountView, error) {
	views := make([]AccountView, 0)

	rows, errList := m.rel.ListAccounts(ctx, ownerID)
	if errList != nil {
		if !isBackendFailure(errList) {
			return nil, errList
		}
		log.WithError(errList).Warn("relational account list failed, serving fallback store only")
	} else {
		for _, row := range rows {
			acc := row.Account
			m.mem.Overlay(acc.ID).apply(&acc)
			// Non-nil even when empty so name resolution does not
			// re-query what the aggregate already answered.
			names := make([]string, 0)
			if row.FlairNames != "" {
				names = strings.Split(row.FlairNames, ",")
			}
			views = append(views, m.buildView(ctx, acc, names))
		}
	}

	for _, acc := range m.mem.ListAccounts(ownerID) {
		views = append(views, m.buildView(ctx, acc, nil))
	}
	return views, nil
}

// GetAccount returns one owner-scoped account from whichever backend holds
// it.
func (m *Manager) GetAccount(ctx context.Context, id, ownerID uint64) (*AccountView, error) {
	if acc, ok := m.mem.GetAccount(id, ownerID); ok {
		view := m.buildView(ctx, acc, nil)
		return &view, nil
	}
	acc, errGet := m.rel.GetAccount(ctx, id, ownerID)
	if errGet != nil {
		if isBackendFailure(errGet) {
			return nil, ErrNotFound
		}
		return nil, errGet
	}
	m.mem.Overlay(acc.ID).apply(acc)
	view := m.buildView(ctx, *acc, nil)
	return &view, nil
}

// UpdateAccount applies a patch of mutable fields. Favorite writes always
// land in the fallback overlay and are mirrored relationally on a
// best-effort basis, so toggling a favorite succeeds even mid-outage. Rank
// fields go relational first and fall back to the overlay.
func (m *Manager) UpdateAccount(ctx context.Context, id, ownerID uint64, patch AccountPatch) (*AccountView, error) {
	if patch.isEmpty() {
		return m.GetAccount(ctx, id, ownerID)
	}
	if _, errGet := m.GetAccount(ctx, id, ownerID); errGet != nil {
		return nil, errGet
	}
	now := time.Now()

	if m.mem.Owns(id) {
		m.mem.ApplyOverlay(id, patch, now)
		return m.GetAccount(ctx, id, ownerID)
	}

	if patch.Favorite != nil {
		m.mem.ApplyOverlay(id, AccountPatch{Favorite: patch.Favorite}, now)
		updates := touchLastModified(map[string]any{"favorite": *patch.Favorite}, now)
		if errMirror := m.rel.UpdateAccount(ctx, id, ownerID, updates); errMirror != nil && isBackendFailure(errMirror) {
			log.WithError(errMirror).Debug("favorite mirror write skipped")
		}
	}

	if patch.hasNonFavorite() {
		updates := map[string]any{}
		if patch.Rank != nil {
			updates["rank"] = *patch.Rank
		}
		if patch.RankDivision != nil {
			updates["rank_division"] = *patch.RankDivision
		}
		touchLastModified(updates, now)
		errUpdate := m.rel.UpdateAccount(ctx, id, ownerID, updates)
		switch {
		case errUpdate == nil:
			// A degraded write may have left these fields in the
			// overlay; clear them or the stale values mask this
			// update at read time.
			m.mem.ClearOverlayFields(id, AccountPatch{Rank: patch.Rank, RankDivision: patch.RankDivision})
		case isBackendFailure(errUpdate):
			log.WithError(errUpdate).Warn("relational account update failed, writing fallback overlay")
			m.mem.ApplyOverlay(id, AccountPatch{Rank: patch.Rank, RankDivision: patch.RankDivision}, now)
		default:
			return nil, errUpdate
		}
	}
	return m.GetAccount(ctx, id, ownerID)
}

// DeleteAccount removes the account and everything hanging off it from
// both backends. ErrNotFound only when neither backend held it.
func (m *Manager) DeleteAccount(ctx context.Context, id, ownerID uint64) error {
	removedFallback := m.mem.DeleteAccount(id, ownerID)

	errDel := m.rel.DeleteAccount(ctx, id, ownerID)
	switch {
	case errDel == nil:
		m.mem.DropOverlay(id)
		return nil
	case isBackendFailure(errDel):
		if removedFallback {
			return nil
		}
		log.WithError(errDel).Warn("relational account delete failed")
		return ErrNotFound
	default:
		if removedFallback {
			// The fallback copy is gone; clean up stray relational
			// assignments in case both backends ever saw this id.
			if errClean := m.rel.DeleteAssignments(ctx, id); errClean != nil && !isBackendFailure(errClean) {
				log.WithError(errClean).Warn("assignment cleanup failed")
			}
			return nil
		}
		return errDel
	}
}

// AddFlair assigns a flair to an owner-scoped account. Assigning a flair
// that is already present, or one that does not exist in the catalog,
// reports ErrConflict and ErrNotFound respectively.
func (m *Manager) AddFlair(ctx context.Context, accountID, ownerID, flairID uint64) error {
	if _, errGet := m.GetAccount(ctx, accountID, ownerID); errGet != nil {
		return errGet
	}
	if !m.flairExists(ctx, flairID) {
		return ErrNotFound
	}

	// The pair may already be assigned in the fallback store, left there
	// by a write that degraded mid-outage. Both backends count.
	if m.mem.HasAssignment(accountID, flairID) {
		return ErrConflict
	}

	if m.mem.Owns(accountID) {
		if !m.mem.AddAssignment(accountID, flairID) {
			return ErrConflict
		}
		return nil
	}

	exists, errHas := m.rel.HasAssignment(ctx, accountID, flairID)
	if errHas == nil && exists {
		return ErrConflict
	}
	if errHas != nil {
		if !isBackendFailure(errHas) {
			return errHas
		}
		log.WithError(errHas).Warn("relational flair assignment failed, using fallback store")
		if !m.mem.AddAssignment(accountID, flairID) {
			return ErrConflict
		}
		return nil
	}

	errAdd := m.rel.AddAssignment(ctx, accountID, flairID)
	switch {
	case errAdd == nil:
		return nil
	case isBackendFailure(errAdd):
		log.WithError(errAdd).Warn("relational flair assignment failed, using fallback store")
		if !m.mem.AddAssignment(accountID, flairID) {
			return ErrConflict
		}
		return nil
	default:
		return errAdd
	}
}

// RemoveFlair removes a flair assignment from both backends. Removing an
// assignment that is not present is not an error.
func (m *Manager) RemoveFlair(ctx context.Context, accountID, ownerID, flairID uint64) error {
	if _, errGet := m.GetAccount(ctx, accountID, ownerID); errGet != nil {
		return errGet
	}
	m.mem.RemoveAssignment(accountID, flairID)
	if errDel := m.rel.RemoveAssignment(ctx, accountID, flairID); errDel != nil && !isBackendFailure(errDel) {
		return errDel
	}
	return nil
}

// ListFlairs returns the flair catalog, serving the built-in defaults when
// the relational backend cannot answer.
func (m *Manager) ListFlairs(ctx context.Context) ([]models.Flair, error) {
	rows, errList := m.rel.ListFlairs(ctx)
	if errList == nil && len(rows) > 0 {
		return rows, nil
	}
	if errList != nil && !isBackendFailure(errList) {
		return nil, errList
	}
	return flairs.Defaults(), nil
}

func (m *Manager) flairExists(ctx context.Context, flairID uint64) bool {
	catalog, errList := m.ListFlairs(ctx)
	if errList != nil {
		return false
	}
	for _, flair := range catalog {
		if flair.ID == flairID {
			return true
		}
	}
	return false
}

// buildView enriches an account with its flair names and the recovered
// plaintext password. flairNames may carry names pre-resolved by an
// aggregate list query; a nil value means resolve relationally here.
func (m *Manager) buildView(ctx context.Context, acc models.Account, flairNames []string) AccountView {
	view := AccountView{
		Account: acc,
		Flairs:  m.resolveFlairNames(ctx, acc.ID, flairNames),
	}
	view.DecryptedPassword = m.recoverPassword(acc)
	return view
}

// resolveFlairNames merges an account's assignments across backends.
// Assignments that landed in the fallback store during an outage stay
// visible next to the relational ones, deduplicated by name.
func (m *Manager) resolveFlairNames(ctx context.Context, accountID uint64, base []string) []string {
	names := make([]string, 0, len(base))
	seen := make(map[string]struct{}, len(base))
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, name := range base {
		add(name)
	}
	if base == nil && !m.mem.Owns(accountID) {
		relNames, errNames := m.rel.AccountFlairNames(ctx, accountID)
		if errNames == nil {
			for _, name := range relNames {
				add(name)
			}
		} else if isBackendFailure(errNames) {
			log.WithError(errNames).Debug("relational flair lookup failed")
		}
	}
	if ids := m.mem.AssignedFlairIDs(accountID); len(ids) > 0 {
		catalog, errList := m.ListFlairs(ctx)
		if errList == nil {
			byID := make(map[uint64]string, len(catalog))
			for _, flair := range catalog {
				byID[flair.ID] = flair.FlairName
			}
			for _, id := range ids {
				if name, ok := byID[id]; ok {
					add(name)
				}
			}
		}
	}
	return names
}

// recoverPassword resolves the reversible credential tier. Fallback-held
// accounts serve their retained plaintext; relational accounts go through
// the cipher. Irrecoverable values are omitted, never guessed at, and the
// plaintext itself is never logged.
func (m *Manager) recoverPassword(acc models.Account) string {
	if pw, ok := m.mem.Plaintext(acc.ID); ok {
		return pw
	}
	if acc.LoginPasswordEncrypted == "" {
		return ""
	}
	plaintext, errOpen := m.cipher.Open(secrets.Decode(acc.LoginPasswordEncrypted))
	if errOpen != nil {
		log.WithError(errOpen).WithField("account_id", acc.ID).Warn("stored credential unrecoverable")
		return ""
	}
	return plaintext
}
