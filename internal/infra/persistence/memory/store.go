// Package memory provides an in-memory implementation of the persistence
// store used for tests, ephemeral runs, and as the transactional core of the
// SQL-backed stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"formulacore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// ConstituentRecord aliases domain.ConstituentRecord.
	ConstituentRecord = domain.ConstituentRecord
	// LipidRecord aliases domain.LipidRecord.
	LipidRecord = domain.LipidRecord
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	constituents map[string]ConstituentRecord
	lipids       map[string]LipidRecord
}

func newMemoryState() memoryState {
	return memoryState{
		constituents: make(map[string]ConstituentRecord),
		lipids:       make(map[string]LipidRecord),
	}
}

// Records are flat values, so copying the maps is a deep copy.
func (s memoryState) clone() memoryState {
	out := memoryState{
		constituents: make(map[string]ConstituentRecord, len(s.constituents)),
		lipids:       make(map[string]LipidRecord, len(s.lipids)),
	}
	for k, v := range s.constituents {
		out.constituents[k] = v
	}
	for k, v := range s.lipids {
		out.lipids[k] = v
	}
	return out
}

// Snapshot captures a point-in-time copy of the store state.
type Snapshot struct {
	Constituents map[string]ConstituentRecord `json:"constituents"`
	Lipids       map[string]LipidRecord       `json:"lipids"`
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used to stamp CreatedAt.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides how record IDs are assigned when callers leave them empty.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Store is an in-memory PersistentStore. Transactions are serialized and
// operate on a private copy of the state that is swapped in on success.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
	newID func() string
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState copies the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.clone()
	return Snapshot{Constituents: st.constituents, Lipids: st.lipids}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	st := newMemoryState()
	for k, v := range snapshot.Constituents {
		st.constituents[k] = v
	}
	for k, v := range snapshot.Lipids {
		st.lipids[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		transactionView: transactionView{state: s.state.clone()},
		store:           s,
		now:             s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: snapshot})
}

type transactionView struct {
	state memoryState
}

func (v transactionView) ListConstituents() []ConstituentRecord {
	out := make([]ConstituentRecord, 0, len(v.state.constituents))
	for _, c := range v.state.constituents {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessBase(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindConstituent(id string) (ConstituentRecord, bool) {
	c, ok := v.state.constituents[id]
	return c, ok
}

func (v transactionView) ListLipids() []LipidRecord {
	out := make([]LipidRecord, 0, len(v.state.lipids))
	for _, l := range v.state.lipids {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return lessBase(out[i].Base, out[j].Base) })
	return out
}

func (v transactionView) FindLipid(id string) (LipidRecord, bool) {
	l, ok := v.state.lipids[id]
	return l, ok
}

func lessBase(a, b domain.Base) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

type transaction struct {
	transactionView
	store *Store
	now   time.Time
}

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = tx.now
	}
}

// CreateConstituent stores a new constituent within the transaction.
func (tx *transaction) CreateConstituent(c ConstituentRecord) (ConstituentRecord, error) {
	tx.stamp(&c.Base)
	if _, exists := tx.state.constituents[c.ID]; exists {
		return ConstituentRecord{}, domain.ErrDuplicate{Entity: domain.EntityConstituent, ID: c.ID}
	}
	tx.state.constituents[c.ID] = c
	return c, nil
}

// DeleteConstituent removes a constituent from the transaction state.
func (tx *transaction) DeleteConstituent(id string) error {
	if _, ok := tx.state.constituents[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityConstituent, ID: id}
	}
	delete(tx.state.constituents, id)
	return nil
}

// CreateLipid stores a new lipid within the transaction.
func (tx *transaction) CreateLipid(l LipidRecord) (LipidRecord, error) {
	tx.stamp(&l.Base)
	if _, exists := tx.state.lipids[l.ID]; exists {
		return LipidRecord{}, domain.ErrDuplicate{Entity: domain.EntityLipid, ID: l.ID}
	}
	tx.state.lipids[l.ID] = l
	return l, nil
}

// DeleteLipid removes a lipid from the transaction state.
func (tx *transaction) DeleteLipid(id string) error {
	if _, ok := tx.state.lipids[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityLipid, ID: id}
	}
	delete(tx.state.lipids, id)
	return nil
}
