// Package store defines the persistence seams of the reconciliation engine:
// by-id reads, filtered reads, and atomic read-modify-write updates per
// entity. Backends: in-memory (single process) and postgres via gorm.
package store

import (
	"context"

	"stratmgr/internal/schema"
)

// OrderSnapshotStore holds the current state of each order keyed by order id.
type OrderSnapshotStore interface {
	Create(ctx context.Context, snap schema.OrderSnapshot) (schema.OrderSnapshot, error)
	GetByOrderID(ctx context.Context, orderID string) (schema.OrderSnapshot, error)
	// Update applies a mutation atomically and returns the stored result.
	Update(ctx context.Context, orderID string, apply func(*schema.OrderSnapshot) error) (schema.OrderSnapshot, error)
	CountOpenBySymbolSide(ctx context.Context, secID string, side schema.Side) (int64, error)
	ListBySymbol(ctx context.Context, secID string) ([]schema.OrderSnapshot, error)
	DeleteBySymbols(ctx context.Context, secIDs ...string) error
}

// SymbolSideSnapshotStore holds at most one aggregate per (security, side).
type SymbolSideSnapshotStore interface {
	Create(ctx context.Context, snap schema.SymbolSideSnapshot) (schema.SymbolSideSnapshot, error)
	Get(ctx context.Context, secID string, side schema.Side) (schema.SymbolSideSnapshot, error)
	Update(ctx context.Context, secID string, side schema.Side, apply func(*schema.SymbolSideSnapshot) error) (schema.SymbolSideSnapshot, error)
	DeleteBySymbols(ctx context.Context, secIDs ...string) error
}

// StratBriefStore holds exactly one consumable-limit brief per active strategy.
type StratBriefStore interface {
	Create(ctx context.Context, brief schema.StratBrief) (schema.StratBrief, error)
	GetByStratID(ctx context.Context, stratID int64) (schema.StratBrief, error)
	// GetBySymbol resolves the single brief whose either leg trades the symbol.
	GetBySymbol(ctx context.Context, secID string) (schema.StratBrief, error)
	Update(ctx context.Context, stratID int64, apply func(*schema.StratBrief) error) (schema.StratBrief, error)
	Delete(ctx context.Context, stratID int64) error
}

// PairStratStore holds strategy definitions, limits, and running status.
type PairStratStore interface {
	Create(ctx context.Context, ps schema.PairStrat) (schema.PairStrat, error)
	GetByID(ctx context.Context, id int64) (schema.PairStrat, error)
	// FindOngoingBySymbolSide resolves the single ongoing strategy whose
	// either leg matches (symbol, side).
	FindOngoingBySymbolSide(ctx context.Context, secID string, side schema.Side) (schema.PairStrat, error)
	ListOngoing(ctx context.Context) ([]schema.PairStrat, error)
	Update(ctx context.Context, id int64, apply func(*schema.PairStrat) error) (schema.PairStrat, error)
	Delete(ctx context.Context, id int64) error
}

// PortfolioStatusStore holds the singleton global aggregate.
type PortfolioStatusStore interface {
	GetOrCreate(ctx context.Context) (schema.PortfolioStatus, error)
	Get(ctx context.Context) (schema.PortfolioStatus, error)
	Update(ctx context.Context, apply func(*schema.PortfolioStatus) error) (schema.PortfolioStatus, error)
}

// CancelOrderStore holds at most one cancel request per order id.
type CancelOrderStore interface {
	Create(ctx context.Context, co schema.CancelOrder) (schema.CancelOrder, error)
	GetByOrderID(ctx context.Context, orderID string) (schema.CancelOrder, error)
	Update(ctx context.Context, orderID string, apply func(*schema.CancelOrder) error) (schema.CancelOrder, error)
}

// OrderJournalStore is the append-only order lifecycle stream.
type OrderJournalStore interface {
	Append(ctx context.Context, oj schema.OrderJournal) (schema.OrderJournal, error)
	// LastNByOrderID returns up to n journal entries for the order, newest first.
	LastNByOrderID(ctx context.Context, orderID string, n int) ([]schema.OrderJournal, error)
}

// FillJournalStore is the append-only execution stream.
type FillJournalStore interface {
	Append(ctx context.Context, fj schema.FillJournal) (schema.FillJournal, error)
}

// Store bundles every entity store behind one handle.
type Store struct {
	OrderSnapshots OrderSnapshotStore
	SymbolSides    SymbolSideSnapshotStore
	StratBriefs    StratBriefStore
	PairStrats     PairStratStore
	Portfolio      PortfolioStatusStore
	CancelOrders   CancelOrderStore
	OrderJournals  OrderJournalStore
	FillJournals   FillJournalStore
}
