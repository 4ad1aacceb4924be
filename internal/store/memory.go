package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oHaruki/SmurfMGT/internal/models"
)

// fallbackIDBase is the first ID handed out by the fallback store. Keeping
// fallback IDs far above any plausible relational sequence means the two
// backends never collide and an ID's origin is recognizable at a glance.
const fallbackIDBase uint64 = 1 << 31

// MemoryStore is the in-process fallback backend. It holds accounts and
// users created while the relational backend was down, plus sparse
// overlays of mutable fields for accounts whose primary record lives
// relationally. Everything in it is lost on process exit; it exists so the
// API keeps answering during an outage, not as durable storage.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      uint64
	accounts    map[uint64]*models.Account
	plaintext   map[uint64]string
	overlays    map[uint64]*overlay
	assignments map[uint64]map[uint64]struct{}
	users       map[uint64]*models.User
	nextUserID  uint64
}

// NewMemoryStore constructs an empty fallback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      fallbackIDBase,
		nextUserID:  fallbackIDBase,
		accounts:    make(map[uint64]*models.Account),
		plaintext:   make(map[uint64]string),
		overlays:    make(map[uint64]*overlay),
		assignments: make(map[uint64]map[uint64]struct{}),
		users:       make(map[uint64]*models.User),
	}
}

// CreateAccount stores a fallback account, assigns it an ID and retains
// the plaintext password so reads can keep serving decrypted_password.
func (s *MemoryStore) CreateAccount(acc *models.Account, plaintextPassword string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc.ID = s.nextID
	s.nextID++
	cp := *acc
	s.accounts[cp.ID] = &cp
	s.plaintext[cp.ID] = plaintextPassword
}

// ListAccounts returns copies of all fallback accounts owned by ownerID,
// with overlays applied, in ID order.
func (s *MemoryStore) ListAccounts(ownerID uint64) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Account
	for _, acc := range s.accounts {
		if acc.UserID != ownerID {
			continue
		}
		cp := *acc
		s.overlays[cp.ID].apply(&cp)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetAccount returns a copy of the owner-scoped fallback account, or false
// when it does not exist here.
func (s *MemoryStore) GetAccount(id, ownerID uint64) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.UserID != ownerID {
		return models.Account{}, false
	}
	cp := *acc
	s.overlays[cp.ID].apply(&cp)
	return cp, true
}

// Owns reports whether the fallback store holds the account itself, as
// opposed to merely an overlay for it.
func (s *MemoryStore) Owns(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.accounts[id]
	return ok
}

// Plaintext returns the retained plaintext password for a fallback-held
// account.
func (s *MemoryStore) Plaintext(id uint64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pw, ok := s.plaintext[id]
	return pw, ok
}

// ApplyOverlay merges patch into the overlay for the given account and
// stamps the overlay's modification time. The account itself does not have
// to live in this store.
func (s *MemoryStore) ApplyOverlay(id uint64, patch AccountPatch, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.overlays[id]
	if o == nil {
		o = &overlay{}
		s.overlays[id] = o
	}
	if patch.Favorite != nil {
		o.Favorite = patch.Favorite
	}
	if patch.Rank != nil {
		o.Rank = patch.Rank
	}
	if patch.RankDivision != nil {
		o.RankDivision = patch.RankDivision
	}
	ts := now.UTC()
	o.LastModified = &ts
}

// ClearOverlayFields drops the fields named by patch from an account's
// overlay, so a value now held relationally stops being shadowed at read
// time. An overlay left with no fields (a timestamp alone does not count)
// is discarded.
func (s *MemoryStore) ClearOverlayFields(id uint64, patch AccountPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.overlays[id]
	if o == nil {
		return
	}
	if patch.Favorite != nil {
		o.Favorite = nil
	}
	if patch.Rank != nil {
		o.Rank = nil
	}
	if patch.RankDivision != nil {
		o.RankDivision = nil
	}
	if o.Favorite == nil && o.Rank == nil && o.RankDivision == nil {
		delete(s.overlays, id)
	}
}

// Overlay returns the stored overlay for an account id, or nil.
func (s *MemoryStore) Overlay(id uint64) *overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overlays[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// DeleteAccount removes the owner-scoped fallback account together with
// its overlay, plaintext and flair assignments. It reports whether a
// fallback-held account was actually removed.
func (s *MemoryStore) DeleteAccount(id, ownerID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.UserID != ownerID {
		return false
	}
	delete(s.accounts, id)
	delete(s.plaintext, id)
	delete(s.overlays, id)
	delete(s.assignments, id)
	return true
}

// DropOverlay discards overlay state for an account, used when the primary
// relational record is deleted.
func (s *MemoryStore) DropOverlay(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlays, id)
	delete(s.assignments, id)
}

// HasAssignment reports whether the flair is assigned to the account in
// the fallback store.
func (s *MemoryStore) HasAssignment(accountID, flairID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.assignments[accountID][flairID]
	return ok
}

// AddAssignment records a flair assignment. Returns false when the
// assignment already existed.
func (s *MemoryStore) AddAssignment(accountID, flairID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.assignments[accountID]
	if set == nil {
		set = make(map[uint64]struct{})
		s.assignments[accountID] = set
	}
	if _, ok := set[flairID]; ok {
		return false
	}
	set[flairID] = struct{}{}
	return true
}

// RemoveAssignment removes a flair assignment if present.
func (s *MemoryStore) RemoveAssignment(accountID, flairID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments[accountID], flairID)
}

// AssignedFlairIDs returns the flair IDs assigned to an account, sorted.
func (s *MemoryStore) AssignedFlairIDs(accountID uint64) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.assignments[accountID]
	if len(set) == 0 {
		return nil
	}
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CreateUser stores a fallback user and assigns it an ID.
func (s *MemoryStore) CreateUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.nextUserID
	s.nextUserID++
	cp := *user
	s.users[cp.ID] = &cp
}

// FindUserByEmail returns a copy of the fallback user with the given
// email, or false.
func (s *MemoryStore) FindUserByEmail(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			return *user, true
		}
	}
	return models.User{}, false
}

// UserExists reports whether a fallback user with the given username or
// email is already registered.
func (s *MemoryStore) UserExists(username, email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) || strings.EqualFold(user.Username, username) {
			return true
		}
	}
	return false
}
