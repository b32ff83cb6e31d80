package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	TransactionView
	CreateConstituent(ConstituentRecord) (ConstituentRecord, error)
	DeleteConstituent(id string) error
	CreateLipid(LipidRecord) (LipidRecord, error)
	DeleteLipid(id string) error
}

// TransactionView provides read-only access to stored records. List methods
// order records by creation time, then ID.
type TransactionView interface {
	ListConstituents() []ConstituentRecord
	FindConstituent(id string) (ConstituentRecord, bool)
	ListLipids() []LipidRecord
	FindLipid(id string) (LipidRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. A
// transaction whose function returns an error leaves the stored state as it was.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
}
