package store

import (
	"context"
	"sync"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// NewMemory creates a fully in-memory store bundle.
func NewMemory() *Store {
	return &Store{
		OrderSnapshots: &memOrderSnapshots{byOrderID: make(map[string]*schema.OrderSnapshot)},
		SymbolSides:    &memSymbolSides{bySymbolSide: make(map[symbolSideKey]*schema.SymbolSideSnapshot)},
		StratBriefs:    &memStratBriefs{byStratID: make(map[int64]*schema.StratBrief)},
		PairStrats:     &memPairStrats{byID: make(map[int64]*schema.PairStrat)},
		Portfolio:      &memPortfolio{},
		CancelOrders:   &memCancelOrders{byOrderID: make(map[string]*schema.CancelOrder)},
		OrderJournals:  &memOrderJournals{},
		FillJournals:   &memFillJournals{},
	}
}

type symbolSideKey struct {
	secID string
	side  schema.Side
}

// ---- order snapshots ----

type memOrderSnapshots struct {
	mu        sync.RWMutex
	nextID    int64
	byOrderID map[string]*schema.OrderSnapshot
}

func (m *memOrderSnapshots) Create(_ context.Context, snap schema.OrderSnapshot) (schema.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrderID[snap.OrderBrief.OrderID]; ok {
		return schema.OrderSnapshot{}, exception.ErrDuplicateRecord
	}
	m.nextID++
	snap.ID = m.nextID
	stored := cloneOrderSnapshot(snap)
	m.byOrderID[snap.OrderBrief.OrderID] = &stored
	return cloneOrderSnapshot(stored), nil
}

func (m *memOrderSnapshots) GetByOrderID(_ context.Context, orderID string) (schema.OrderSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.byOrderID[orderID]
	if !ok {
		return schema.OrderSnapshot{}, exception.ErrNotFound
	}
	return cloneOrderSnapshot(*snap), nil
}

func (m *memOrderSnapshots) Update(_ context.Context, orderID string, apply func(*schema.OrderSnapshot) error) (schema.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.byOrderID[orderID]
	if !ok {
		return schema.OrderSnapshot{}, exception.ErrNotFound
	}
	next := cloneOrderSnapshot(*snap)
	if err := apply(&next); err != nil {
		return schema.OrderSnapshot{}, err
	}
	next.ID = snap.ID
	m.byOrderID[orderID] = &next
	return cloneOrderSnapshot(next), nil
}

func (m *memOrderSnapshots) CountOpenBySymbolSide(_ context.Context, secID string, side schema.Side) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, snap := range m.byOrderID {
		if snap.OrderBrief.Security.SecID == secID &&
			snap.OrderBrief.Side == side &&
			snap.OrderStatus.IsOpen() {
			count++
		}
	}
	return count, nil
}

func (m *memOrderSnapshots) ListBySymbol(_ context.Context, secID string) ([]schema.OrderSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schema.OrderSnapshot
	for _, snap := range m.byOrderID {
		if snap.OrderBrief.Security.SecID == secID {
			out = append(out, cloneOrderSnapshot(*snap))
		}
	}
	return out, nil
}

func (m *memOrderSnapshots) DeleteBySymbols(_ context.Context, secIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for orderID, snap := range m.byOrderID {
		for _, secID := range secIDs {
			if snap.OrderBrief.Security.SecID == secID {
				delete(m.byOrderID, orderID)
				break
			}
		}
	}
	return nil
}

// ---- symbol side snapshots ----

type memSymbolSides struct {
	mu           sync.RWMutex
	nextID       int64
	bySymbolSide map[symbolSideKey]*schema.SymbolSideSnapshot
}

func (m *memSymbolSides) Create(_ context.Context, snap schema.SymbolSideSnapshot) (schema.SymbolSideSnapshot, error) {
	key := symbolSideKey{secID: snap.Security.SecID, side: snap.Side}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySymbolSide[key]; ok {
		return schema.SymbolSideSnapshot{}, exception.ErrDuplicateRecord
	}
	m.nextID++
	snap.ID = m.nextID
	stored := snap
	m.bySymbolSide[key] = &stored
	return stored, nil
}

func (m *memSymbolSides) Get(_ context.Context, secID string, side schema.Side) (schema.SymbolSideSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.bySymbolSide[symbolSideKey{secID: secID, side: side}]
	if !ok {
		return schema.SymbolSideSnapshot{}, exception.ErrNotFound
	}
	return *snap, nil
}

func (m *memSymbolSides) Update(_ context.Context, secID string, side schema.Side, apply func(*schema.SymbolSideSnapshot) error) (schema.SymbolSideSnapshot, error) {
	key := symbolSideKey{secID: secID, side: side}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.bySymbolSide[key]
	if !ok {
		return schema.SymbolSideSnapshot{}, exception.ErrNotFound
	}
	next := *snap
	if err := apply(&next); err != nil {
		return schema.SymbolSideSnapshot{}, err
	}
	next.ID = snap.ID
	m.bySymbolSide[key] = &next
	return next, nil
}

func (m *memSymbolSides) DeleteBySymbols(_ context.Context, secIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.bySymbolSide {
		for _, secID := range secIDs {
			if key.secID == secID {
				delete(m.bySymbolSide, key)
				break
			}
		}
	}
	return nil
}

// ---- strat briefs ----

type memStratBriefs struct {
	mu        sync.RWMutex
	nextID    int64
	byStratID map[int64]*schema.StratBrief
}

func (m *memStratBriefs) Create(_ context.Context, brief schema.StratBrief) (schema.StratBrief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byStratID[brief.PairStratID]; ok {
		return schema.StratBrief{}, exception.ErrDuplicateRecord
	}
	m.nextID++
	brief.ID = m.nextID
	stored := brief
	m.byStratID[brief.PairStratID] = &stored
	return stored, nil
}

func (m *memStratBriefs) GetByStratID(_ context.Context, stratID int64) (schema.StratBrief, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	brief, ok := m.byStratID[stratID]
	if !ok {
		return schema.StratBrief{}, exception.ErrNotFound
	}
	return *brief, nil
}

func (m *memStratBriefs) GetBySymbol(_ context.Context, secID string) (schema.StratBrief, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *schema.StratBrief
	for _, brief := range m.byStratID {
		if brief.BuySideBrief.Security.SecID == secID || brief.SellSideBrief.Security.SecID == secID {
			if found != nil {
				return schema.StratBrief{}, exception.ErrMultipleMatches
			}
			found = brief
		}
	}
	if found == nil {
		return schema.StratBrief{}, exception.ErrNotFound
	}
	return *found, nil
}

func (m *memStratBriefs) Update(_ context.Context, stratID int64, apply func(*schema.StratBrief) error) (schema.StratBrief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	brief, ok := m.byStratID[stratID]
	if !ok {
		return schema.StratBrief{}, exception.ErrNotFound
	}
	next := *brief
	if err := apply(&next); err != nil {
		return schema.StratBrief{}, err
	}
	next.ID = brief.ID
	next.PairStratID = brief.PairStratID
	m.byStratID[stratID] = &next
	return next, nil
}

func (m *memStratBriefs) Delete(_ context.Context, stratID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byStratID[stratID]; !ok {
		return exception.ErrNotFound
	}
	delete(m.byStratID, stratID)
	return nil
}

// ---- pair strats ----

type memPairStrats struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*schema.PairStrat
}

func (m *memPairStrats) Create(_ context.Context, ps schema.PairStrat) (schema.PairStrat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ps.ID == 0 {
		m.nextID++
		ps.ID = m.nextID
	} else if ps.ID > m.nextID {
		m.nextID = ps.ID
	}
	if _, ok := m.byID[ps.ID]; ok {
		return schema.PairStrat{}, exception.ErrDuplicateRecord
	}
	stored := clonePairStrat(ps)
	m.byID[ps.ID] = &stored
	return clonePairStrat(stored), nil
}

func (m *memPairStrats) GetByID(_ context.Context, id int64) (schema.PairStrat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.byID[id]
	if !ok {
		return schema.PairStrat{}, exception.ErrNotFound
	}
	return clonePairStrat(*ps), nil
}

func (m *memPairStrats) FindOngoingBySymbolSide(_ context.Context, secID string, side schema.Side) (schema.PairStrat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *schema.PairStrat
	for _, ps := range m.byID {
		if !ps.StratStatus.StratState.IsOngoing() {
			continue
		}
		if _, ok := ps.LegFor(secID, side); !ok {
			continue
		}
		if found != nil {
			return schema.PairStrat{}, exception.ErrMultipleMatches
		}
		found = ps
	}
	if found == nil {
		return schema.PairStrat{}, exception.ErrNotFound
	}
	return clonePairStrat(*found), nil
}

func (m *memPairStrats) ListOngoing(_ context.Context) ([]schema.PairStrat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schema.PairStrat
	for _, ps := range m.byID {
		if ps.StratStatus.StratState.IsOngoing() {
			out = append(out, clonePairStrat(*ps))
		}
	}
	return out, nil
}

func (m *memPairStrats) Update(_ context.Context, id int64, apply func(*schema.PairStrat) error) (schema.PairStrat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.byID[id]
	if !ok {
		return schema.PairStrat{}, exception.ErrNotFound
	}
	next := clonePairStrat(*ps)
	if err := apply(&next); err != nil {
		return schema.PairStrat{}, err
	}
	next.ID = ps.ID
	m.byID[id] = &next
	return clonePairStrat(next), nil
}

func (m *memPairStrats) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return exception.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// ---- portfolio status ----

type memPortfolio struct {
	mu     sync.RWMutex
	status *schema.PortfolioStatus
}

func (m *memPortfolio) GetOrCreate(_ context.Context) (schema.PortfolioStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		m.status = &schema.PortfolioStatus{ID: schema.PortfolioStatusID}
	}
	return clonePortfolioStatus(*m.status), nil
}

func (m *memPortfolio) Get(_ context.Context) (schema.PortfolioStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return schema.PortfolioStatus{}, exception.ErrPortfolioStatusGone
	}
	return clonePortfolioStatus(*m.status), nil
}

func (m *memPortfolio) Update(_ context.Context, apply func(*schema.PortfolioStatus) error) (schema.PortfolioStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return schema.PortfolioStatus{}, exception.ErrPortfolioStatusGone
	}
	next := clonePortfolioStatus(*m.status)
	if err := apply(&next); err != nil {
		return schema.PortfolioStatus{}, err
	}
	next.ID = schema.PortfolioStatusID
	m.status = &next
	return clonePortfolioStatus(next), nil
}

// ---- cancel orders ----

type memCancelOrders struct {
	mu        sync.RWMutex
	nextID    int64
	byOrderID map[string]*schema.CancelOrder
}

func (m *memCancelOrders) Create(_ context.Context, co schema.CancelOrder) (schema.CancelOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrderID[co.OrderID]; ok {
		return schema.CancelOrder{}, exception.ErrDuplicateRecord
	}
	m.nextID++
	co.ID = m.nextID
	stored := co
	m.byOrderID[co.OrderID] = &stored
	return stored, nil
}

func (m *memCancelOrders) GetByOrderID(_ context.Context, orderID string) (schema.CancelOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	co, ok := m.byOrderID[orderID]
	if !ok {
		return schema.CancelOrder{}, exception.ErrNotFound
	}
	return *co, nil
}

func (m *memCancelOrders) Update(_ context.Context, orderID string, apply func(*schema.CancelOrder) error) (schema.CancelOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	co, ok := m.byOrderID[orderID]
	if !ok {
		return schema.CancelOrder{}, exception.ErrNotFound
	}
	next := *co
	if err := apply(&next); err != nil {
		return schema.CancelOrder{}, err
	}
	next.ID = co.ID
	m.byOrderID[orderID] = &next
	return next, nil
}

// ---- journals ----

type memOrderJournals struct {
	mu      sync.RWMutex
	nextID  int64
	entries []schema.OrderJournal
}

func (m *memOrderJournals) Append(_ context.Context, oj schema.OrderJournal) (schema.OrderJournal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	oj.ID = m.nextID
	m.entries = append(m.entries, cloneOrderJournal(oj))
	return oj, nil
}

func (m *memOrderJournals) LastNByOrderID(_ context.Context, orderID string, n int) ([]schema.OrderJournal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schema.OrderJournal
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		if m.entries[i].Order.OrderID == orderID {
			out = append(out, cloneOrderJournal(m.entries[i]))
		}
	}
	return out, nil
}

type memFillJournals struct {
	mu      sync.RWMutex
	nextID  int64
	entries []schema.FillJournal
}

func (m *memFillJournals) Append(_ context.Context, fj schema.FillJournal) (schema.FillJournal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	fj.ID = m.nextID
	m.entries = append(m.entries, fj)
	return fj, nil
}

// ---- clone helpers ----

func cloneOrderSnapshot(snap schema.OrderSnapshot) schema.OrderSnapshot {
	snap.OrderBrief = cloneOrderBrief(snap.OrderBrief)
	return snap
}

func cloneOrderBrief(brief schema.OrderBrief) schema.OrderBrief {
	if len(brief.Text) > 0 {
		text := make([]string, len(brief.Text))
		copy(text, brief.Text)
		brief.Text = text
	}
	return brief
}

func cloneOrderJournal(oj schema.OrderJournal) schema.OrderJournal {
	oj.Order = cloneOrderBrief(oj.Order)
	return oj
}

func clonePairStrat(ps schema.PairStrat) schema.PairStrat {
	if len(ps.StratStatus.StratAlerts) > 0 {
		alerts := make([]schema.Alert, len(ps.StratStatus.StratAlerts))
		copy(alerts, ps.StratStatus.StratAlerts)
		ps.StratStatus.StratAlerts = alerts
	}
	return ps
}

func clonePortfolioStatus(status schema.PortfolioStatus) schema.PortfolioStatus {
	if len(status.PortfolioAlerts) > 0 {
		alerts := make([]schema.Alert, len(status.PortfolioAlerts))
		copy(alerts, status.PortfolioAlerts)
		status.PortfolioAlerts = alerts
	}
	return status
}
