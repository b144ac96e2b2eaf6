// Package strat drives the pair-strat lifecycle state machine: activation
// with occupancy and same-day guards, operator pause/resume, unload to
// SNOOZED with snapshot teardown, and the portfolio kill switch.
package strat

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stratmgr/internal/lock"
	"stratmgr/internal/obs"
	"stratmgr/internal/schema"
	"stratmgr/internal/store"
	"stratmgr/pkg/exception"
)

const (
	activationLockKey = "activation"
	activationLockTTL = 10 * time.Second
)

// Manager owns the strat lifecycle transitions. Event-driven pauses are the
// reconciliation engine's job; everything operator-initiated lands here.
type Manager struct {
	store       *store.Store
	guard       lock.Guard
	activations ActivationRegistry
	metrics     *obs.Metrics
}

// NewManager creates a lifecycle manager.
func NewManager(s *store.Store, guard lock.Guard, activations ActivationRegistry, metrics *obs.Metrics) *Manager {
	return &Manager{store: s, guard: guard, activations: activations, metrics: metrics}
}

// Activate transitions a READY strategy to ACTIVE. Preconditions: kill
// switch disengaged, neither leg's (symbol, side) held by another ongoing
// strategy, and neither symbol activated earlier today. Activation creates
// the strategy's trading brief.
func (m *Manager) Activate(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	if err := m.guard.Lock(ctx, activationLockKey, activationLockTTL); err != nil {
		return schema.PairStrat{}, errors.Wrap(err, "acquire activation lock")
	}
	defer func() {
		if err := m.guard.Unlock(ctx, activationLockKey); err != nil {
			logs.Errorf("release activation lock: %+v", err)
		}
	}()

	ps, err := m.store.PairStrats.GetByID(ctx, stratID)
	if err != nil {
		return schema.PairStrat{}, exception.ErrStratNotFound
	}
	if ps.StratStatus.StratState != schema.StratStateReady {
		return schema.PairStrat{}, errors.Wrap(exception.ErrStratNotReady, "activate").
			With("state", ps.StratStatus.StratState.String())
	}

	if err := m.checkKillSwitch(ctx); err != nil {
		return schema.PairStrat{}, err
	}
	if err := m.checkLegOccupancy(ctx, ps); err != nil {
		return schema.PairStrat{}, err
	}
	if err := m.checkDayGuard(ctx, ps); err != nil {
		return schema.PairStrat{}, err
	}

	_, err = m.store.StratBriefs.Create(ctx, schema.StratBrief{
		PairStratID:    ps.ID,
		BuySideBrief:   sideBrief(ps, schema.SideBuy),
		SellSideBrief:  sideBrief(ps, schema.SideSell),
		LastUpdateTime: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, exception.ErrDuplicateRecord) {
		return schema.PairStrat{}, errors.Wrap(err, "create strat brief")
	}

	updated, err := m.store.PairStrats.Update(ctx, stratID, func(p *schema.PairStrat) error {
		p.StratStatus.StratState = schema.StratStateActive
		p.LastActiveTime = time.Now().UTC()
		return nil
	})
	if err != nil {
		return schema.PairStrat{}, err
	}

	for _, secID := range legSymbols(ps) {
		if err := m.activations.MarkActivated(ctx, secID, ps.ID); err != nil {
			logs.Errorf("mark activation for %s: %+v", secID, err)
		}
	}
	logs.Infof("strat %d activated (%s/%s)", ps.ID,
		ps.Params.Leg1.Sec.SecID, ps.Params.Leg2.Sec.SecID)
	return updated, nil
}

// Resume re-activates a PAUSED or ERROR strategy after operator review.
func (m *Manager) Resume(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	if err := m.checkKillSwitch(ctx); err != nil {
		return schema.PairStrat{}, err
	}
	return m.transition(ctx, stratID, schema.StratStateActive,
		schema.StratStatePaused, schema.StratStateError)
}

// Pause forces an ACTIVE strategy to PAUSED.
func (m *Manager) Pause(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	return m.transition(ctx, stratID, schema.StratStatePaused, schema.StratStateActive)
}

// MarkDone completes an ACTIVE strategy.
func (m *Manager) MarkDone(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	return m.transition(ctx, stratID, schema.StratStateDone, schema.StratStateActive)
}

// Unload moves a READY or DONE strategy to SNOOZED and tears down its
// derived state: trading brief, symbol-side snapshots, and order snapshots
// for both legs.
func (m *Manager) Unload(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	ps, err := m.store.PairStrats.GetByID(ctx, stratID)
	if err != nil {
		return schema.PairStrat{}, exception.ErrStratNotFound
	}
	switch ps.StratStatus.StratState {
	case schema.StratStateReady, schema.StratStateDone:
	default:
		return schema.PairStrat{}, errors.Wrap(exception.ErrStratUnloadableState, "unload").
			With("state", ps.StratStatus.StratState.String())
	}

	symbols := legSymbols(ps)
	if err := m.store.StratBriefs.Delete(ctx, stratID); err != nil && !errors.Is(err, exception.ErrNotFound) {
		return schema.PairStrat{}, errors.Wrap(err, "delete strat brief")
	}
	if err := m.store.SymbolSides.DeleteBySymbols(ctx, symbols...); err != nil {
		return schema.PairStrat{}, errors.Wrap(err, "delete symbol side snapshots")
	}
	if err := m.store.OrderSnapshots.DeleteBySymbols(ctx, symbols...); err != nil {
		return schema.PairStrat{}, errors.Wrap(err, "delete order snapshots")
	}

	return m.store.PairStrats.Update(ctx, stratID, func(p *schema.PairStrat) error {
		p.StratStatus.StratState = schema.StratStateSnoozed
		return nil
	})
}

// Reload brings a SNOOZED strategy back to READY.
func (m *Manager) Reload(ctx context.Context, stratID int64) (schema.PairStrat, error) {
	return m.transition(ctx, stratID, schema.StratStateReady, schema.StratStateSnoozed)
}

// SetKillSwitch flips the global kill switch on the portfolio status.
func (m *Manager) SetKillSwitch(ctx context.Context, engaged bool) error {
	if _, err := m.store.Portfolio.GetOrCreate(ctx); err != nil {
		return err
	}
	_, err := m.store.Portfolio.Update(ctx, func(p *schema.PortfolioStatus) error {
		p.KillSwitch = engaged
		p.AlertUpdateSeq++
		return nil
	})
	if err != nil {
		return err
	}
	m.metrics.SetKillSwitch(engaged)
	logs.Infof("kill switch set to %v", engaged)
	return nil
}

func (m *Manager) transition(ctx context.Context, stratID int64, to schema.StratState, from ...schema.StratState) (schema.PairStrat, error) {
	updated, err := m.store.PairStrats.Update(ctx, stratID, func(p *schema.PairStrat) error {
		for _, state := range from {
			if p.StratStatus.StratState == state {
				p.StratStatus.StratState = to
				p.LastActiveTime = time.Now().UTC()
				return nil
			}
		}
		return errors.Wrap(exception.ErrStratInvalidTransition, "transition").
			With("from", p.StratStatus.StratState.String()).
			With("to", to.String())
	})
	if err != nil {
		if errors.Is(err, exception.ErrNotFound) {
			return schema.PairStrat{}, exception.ErrStratNotFound
		}
		return schema.PairStrat{}, err
	}
	return updated, nil
}

func (m *Manager) checkKillSwitch(ctx context.Context) error {
	status, err := m.store.Portfolio.GetOrCreate(ctx)
	if err != nil {
		return errors.Wrap(err, "read portfolio status")
	}
	if status.KillSwitch {
		return exception.ErrKillSwitchEngaged
	}
	return nil
}

func (m *Manager) checkLegOccupancy(ctx context.Context, ps schema.PairStrat) error {
	ongoing, err := m.store.PairStrats.ListOngoing(ctx)
	if err != nil {
		return errors.Wrap(err, "list ongoing strats")
	}
	for _, other := range ongoing {
		if other.ID == ps.ID {
			continue
		}
		for _, leg := range []schema.StratLeg{ps.Params.Leg1, ps.Params.Leg2} {
			if _, held := other.LegFor(leg.Sec.SecID, leg.Side); held {
				return errors.Wrap(exception.ErrStratLegOccupied, "activate").
					With("sec", leg.Sec.SecID).
					With("side", leg.Side.String()).
					With("held_by", other.ID)
			}
		}
	}
	return nil
}

func (m *Manager) checkDayGuard(ctx context.Context, ps schema.PairStrat) error {
	for _, secID := range legSymbols(ps) {
		activated, err := m.activations.HasActivatedToday(ctx, secID)
		if err != nil {
			return errors.Wrap(err, "activation registry").With("sec", secID)
		}
		if activated {
			return errors.Wrap(exception.ErrStratActivatedToday, "activate").With("sec", secID)
		}
	}
	return nil
}

func legSymbols(ps schema.PairStrat) []string {
	return []string{ps.Params.Leg1.Sec.SecID, ps.Params.Leg2.Sec.SecID}
}

func sideBrief(ps schema.PairStrat, side schema.Side) schema.PairSideTradingBrief {
	leg := ps.Params.Leg1
	if ps.Params.Leg2.Side == side {
		leg = ps.Params.Leg2
	}
	return schema.PairSideTradingBrief{
		Security:       leg.Sec,
		Side:           side,
		LastUpdateTime: time.Now().UTC(),
	}
}
