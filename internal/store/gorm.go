package store

import (
	"context"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stratmgr/internal/schema"
	"stratmgr/pkg/exception"
)

// Row models keep queryable keys as plain columns and the full entity as a
// json payload, so schema evolution never needs a column migration.

type orderSnapshotRow struct {
	ID      int64                `gorm:"primaryKey;autoIncrement"`
	OrderID string               `gorm:"uniqueIndex;size:64"`
	SecID   string               `gorm:"index:idx_order_snap_sec_side;size:64"`
	Side    uint16               `gorm:"index:idx_order_snap_sec_side"`
	Open    bool                 `gorm:"index"`
	Data    schema.OrderSnapshot `gorm:"serializer:json"`
}

func (orderSnapshotRow) TableName() string { return "order_snapshots" }

type symbolSideSnapshotRow struct {
	ID    int64                     `gorm:"primaryKey;autoIncrement"`
	SecID string                    `gorm:"uniqueIndex:idx_symbol_side,priority:1;size:64"`
	Side  uint16                    `gorm:"uniqueIndex:idx_symbol_side,priority:2"`
	Data  schema.SymbolSideSnapshot `gorm:"serializer:json"`
}

func (symbolSideSnapshotRow) TableName() string { return "symbol_side_snapshots" }

type stratBriefRow struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"`
	PairStratID int64             `gorm:"uniqueIndex"`
	BuySecID    string            `gorm:"index;size:64"`
	SellSecID   string            `gorm:"index;size:64"`
	Data        schema.StratBrief `gorm:"serializer:json"`
}

func (stratBriefRow) TableName() string { return "strat_briefs" }

type pairStratRow struct {
	ID      int64            `gorm:"primaryKey"`
	Leg1Sec string           `gorm:"index;size:64"`
	Leg2Sec string           `gorm:"index;size:64"`
	Ongoing bool             `gorm:"index"`
	Data    schema.PairStrat `gorm:"serializer:json"`
}

func (pairStratRow) TableName() string { return "pair_strats" }

type portfolioStatusRow struct {
	ID   int64                  `gorm:"primaryKey"`
	Data schema.PortfolioStatus `gorm:"serializer:json"`
}

func (portfolioStatusRow) TableName() string { return "portfolio_status" }

type cancelOrderRow struct {
	ID      int64              `gorm:"primaryKey;autoIncrement"`
	OrderID string             `gorm:"uniqueIndex;size:64"`
	Data    schema.CancelOrder `gorm:"serializer:json"`
}

func (cancelOrderRow) TableName() string { return "cancel_orders" }

type orderJournalRow struct {
	ID      int64               `gorm:"primaryKey;autoIncrement"`
	OrderID string              `gorm:"index;size:64"`
	Data    schema.OrderJournal `gorm:"serializer:json"`
}

func (orderJournalRow) TableName() string { return "order_journals" }

type fillJournalRow struct {
	ID      int64              `gorm:"primaryKey;autoIncrement"`
	OrderID string             `gorm:"index;size:64"`
	Data    schema.FillJournal `gorm:"serializer:json"`
}

func (fillJournalRow) TableName() string { return "fill_journals" }

// NewGorm creates a postgres-backed store bundle and migrates the tables.
func NewGorm(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&orderSnapshotRow{},
		&symbolSideSnapshotRow{},
		&stratBriefRow{},
		&pairStratRow{},
		&portfolioStatusRow{},
		&cancelOrderRow{},
		&orderJournalRow{},
		&fillJournalRow{},
	); err != nil {
		return nil, errors.Wrap(err, "migrate store tables")
	}
	return &Store{
		OrderSnapshots: &gormOrderSnapshots{db: db},
		SymbolSides:    &gormSymbolSides{db: db},
		StratBriefs:    &gormStratBriefs{db: db},
		PairStrats:     &gormPairStrats{db: db},
		Portfolio:      &gormPortfolio{db: db},
		CancelOrders:   &gormCancelOrders{db: db},
		OrderJournals:  &gormOrderJournals{db: db},
		FillJournals:   &gormFillJournals{db: db},
	}, nil
}

func translateGormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return exception.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return exception.ErrDuplicateRecord
	}
	return err
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ---- order snapshots ----

type gormOrderSnapshots struct {
	db *gorm.DB
}

func (g *gormOrderSnapshots) Create(ctx context.Context, snap schema.OrderSnapshot) (schema.OrderSnapshot, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&orderSnapshotRow{}).
			Where("order_id = ?", snap.OrderBrief.OrderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return exception.ErrDuplicateRecord
		}
		row := orderSnapshotRow{
			OrderID: snap.OrderBrief.OrderID,
			SecID:   snap.OrderBrief.Security.SecID,
			Side:    uint16(snap.OrderBrief.Side),
			Open:    snap.OrderStatus.IsOpen(),
			Data:    snap,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		snap.ID = row.ID
		row.Data.ID = row.ID
		return tx.Model(&orderSnapshotRow{}).Where("id = ?", row.ID).Update("data", row.Data).Error
	})
	if err != nil {
		return schema.OrderSnapshot{}, translateGormErr(err)
	}
	return snap, nil
}

func (g *gormOrderSnapshots) GetByOrderID(ctx context.Context, orderID string) (schema.OrderSnapshot, error) {
	var row orderSnapshotRow
	if err := g.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return schema.OrderSnapshot{}, translateGormErr(err)
	}
	return row.Data, nil
}

func (g *gormOrderSnapshots) Update(ctx context.Context, orderID string, apply func(*schema.OrderSnapshot) error) (schema.OrderSnapshot, error) {
	var out schema.OrderSnapshot
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderSnapshotRow
		if err := forUpdate(tx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = row.ID
		row.Data = next
		row.Open = next.OrderStatus.IsOpen()
		out = next
		return tx.Model(&orderSnapshotRow{}).Where("id = ?", row.ID).
			Updates(map[string]any{"data": row.Data, "open": row.Open}).Error
	})
	if err != nil {
		return schema.OrderSnapshot{}, translateGormErr(err)
	}
	return out, nil
}

func (g *gormOrderSnapshots) CountOpenBySymbolSide(ctx context.Context, secID string, side schema.Side) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&orderSnapshotRow{}).
		Where("sec_id = ? AND side = ? AND open", secID, uint16(side)).
		Count(&count).Error
	return count, err
}

func (g *gormOrderSnapshots) ListBySymbol(ctx context.Context, secID string) ([]schema.OrderSnapshot, error) {
	var rows []orderSnapshotRow
	if err := g.db.WithContext(ctx).Where("sec_id = ?", secID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]schema.OrderSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Data)
	}
	return out, nil
}

func (g *gormOrderSnapshots) DeleteBySymbols(ctx context.Context, secIDs ...string) error {
	if len(secIDs) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Where("sec_id IN ?", secIDs).Delete(&orderSnapshotRow{}).Error
}

// ---- symbol side snapshots ----

type gormSymbolSides struct {
	db *gorm.DB
}

func (g *gormSymbolSides) Create(ctx context.Context, snap schema.SymbolSideSnapshot) (schema.SymbolSideSnapshot, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&symbolSideSnapshotRow{}).
			Where("sec_id = ? AND side = ?", snap.Security.SecID, uint16(snap.Side)).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return exception.ErrDuplicateRecord
		}
		row := symbolSideSnapshotRow{SecID: snap.Security.SecID, Side: uint16(snap.Side), Data: snap}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		snap.ID = row.ID
		row.Data.ID = row.ID
		return tx.Model(&symbolSideSnapshotRow{}).Where("id = ?", row.ID).Update("data", row.Data).Error
	})
	if err != nil {
		return schema.SymbolSideSnapshot{}, translateGormErr(err)
	}
	return snap, nil
}

func (g *gormSymbolSides) Get(ctx context.Context, secID string, side schema.Side) (schema.SymbolSideSnapshot, error) {
	var row symbolSideSnapshotRow
	err := g.db.WithContext(ctx).Where("sec_id = ? AND side = ?", secID, uint16(side)).First(&row).Error
	if err != nil {
		return schema.SymbolSideSnapshot{}, translateGormErr(err)
	}
	return row.Data, nil
}

func (g *gormSymbolSides) Update(ctx context.Context, secID string, side schema.Side, apply func(*schema.SymbolSideSnapshot) error) (schema.SymbolSideSnapshot, error) {
	var out schema.SymbolSideSnapshot
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row symbolSideSnapshotRow
		if err := forUpdate(tx).Where("sec_id = ? AND side = ?", secID, uint16(side)).First(&row).Error; err != nil {
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = row.ID
		out = next
		return tx.Model(&symbolSideSnapshotRow{}).Where("id = ?", row.ID).Update("data", next).Error
	})
	if err != nil {
		return schema.SymbolSideSnapshot{}, translateGormErr(err)
	}
	return out, nil
}

func (g *gormSymbolSides) DeleteBySymbols(ctx context.Context, secIDs ...string) error {
	if len(secIDs) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Where("sec_id IN ?", secIDs).Delete(&symbolSideSnapshotRow{}).Error
}

// ---- strat briefs ----

type gormStratBriefs struct {
	db *gorm.DB
}

func (g *gormStratBriefs) Create(ctx context.Context, brief schema.StratBrief) (schema.StratBrief, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&stratBriefRow{}).
			Where("pair_strat_id = ?", brief.PairStratID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return exception.ErrDuplicateRecord
		}
		row := stratBriefRow{
			PairStratID: brief.PairStratID,
			BuySecID:    brief.BuySideBrief.Security.SecID,
			SellSecID:   brief.SellSideBrief.Security.SecID,
			Data:        brief,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		brief.ID = row.ID
		row.Data.ID = row.ID
		return tx.Model(&stratBriefRow{}).Where("id = ?", row.ID).Update("data", row.Data).Error
	})
	if err != nil {
		return schema.StratBrief{}, translateGormErr(err)
	}
	return brief, nil
}

func (g *gormStratBriefs) GetByStratID(ctx context.Context, stratID int64) (schema.StratBrief, error) {
	var row stratBriefRow
	if err := g.db.WithContext(ctx).Where("pair_strat_id = ?", stratID).First(&row).Error; err != nil {
		return schema.StratBrief{}, translateGormErr(err)
	}
	return row.Data, nil
}

func (g *gormStratBriefs) GetBySymbol(ctx context.Context, secID string) (schema.StratBrief, error) {
	var rows []stratBriefRow
	err := g.db.WithContext(ctx).
		Where("buy_sec_id = ? OR sell_sec_id = ?", secID, secID).
		Limit(2).Find(&rows).Error
	if err != nil {
		return schema.StratBrief{}, err
	}
	switch len(rows) {
	case 0:
		return schema.StratBrief{}, exception.ErrNotFound
	case 1:
		return rows[0].Data, nil
	default:
		return schema.StratBrief{}, exception.ErrMultipleMatches
	}
}

func (g *gormStratBriefs) Update(ctx context.Context, stratID int64, apply func(*schema.StratBrief) error) (schema.StratBrief, error) {
	var out schema.StratBrief
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row stratBriefRow
		if err := forUpdate(tx).Where("pair_strat_id = ?", stratID).First(&row).Error; err != nil {
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = row.ID
		next.PairStratID = row.PairStratID
		out = next
		return tx.Model(&stratBriefRow{}).Where("id = ?", row.ID).Update("data", next).Error
	})
	if err != nil {
		return schema.StratBrief{}, translateGormErr(err)
	}
	return out, nil
}

func (g *gormStratBriefs) Delete(ctx context.Context, stratID int64) error {
	result := g.db.WithContext(ctx).Where("pair_strat_id = ?", stratID).Delete(&stratBriefRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exception.ErrNotFound
	}
	return nil
}

// ---- pair strats ----

type gormPairStrats struct {
	db *gorm.DB
}

func (g *gormPairStrats) Create(ctx context.Context, ps schema.PairStrat) (schema.PairStrat, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ps.ID != 0 {
			var count int64
			if err := tx.Model(&pairStratRow{}).Where("id = ?", ps.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return exception.ErrDuplicateRecord
			}
		}
		row := pairStratRow{
			ID:      ps.ID,
			Leg1Sec: ps.Params.Leg1.Sec.SecID,
			Leg2Sec: ps.Params.Leg2.Sec.SecID,
			Ongoing: ps.StratStatus.StratState.IsOngoing(),
			Data:    ps,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		ps.ID = row.ID
		row.Data.ID = row.ID
		return tx.Model(&pairStratRow{}).Where("id = ?", row.ID).Update("data", row.Data).Error
	})
	if err != nil {
		return schema.PairStrat{}, translateGormErr(err)
	}
	return ps, nil
}

func (g *gormPairStrats) GetByID(ctx context.Context, id int64) (schema.PairStrat, error) {
	var row pairStratRow
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return schema.PairStrat{}, translateGormErr(err)
	}
	return row.Data, nil
}

func (g *gormPairStrats) FindOngoingBySymbolSide(ctx context.Context, secID string, side schema.Side) (schema.PairStrat, error) {
	var rows []pairStratRow
	err := g.db.WithContext(ctx).
		Where("ongoing AND (leg1_sec = ? OR leg2_sec = ?)", secID, secID).
		Find(&rows).Error
	if err != nil {
		return schema.PairStrat{}, err
	}
	var found *schema.PairStrat
	for i := range rows {
		if _, ok := rows[i].Data.LegFor(secID, side); !ok {
			continue
		}
		if found != nil {
			return schema.PairStrat{}, exception.ErrMultipleMatches
		}
		found = &rows[i].Data
	}
	if found == nil {
		return schema.PairStrat{}, exception.ErrNotFound
	}
	return *found, nil
}

func (g *gormPairStrats) ListOngoing(ctx context.Context) ([]schema.PairStrat, error) {
	var rows []pairStratRow
	if err := g.db.WithContext(ctx).Where("ongoing").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]schema.PairStrat, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Data)
	}
	return out, nil
}

func (g *gormPairStrats) Update(ctx context.Context, id int64, apply func(*schema.PairStrat) error) (schema.PairStrat, error) {
	var out schema.PairStrat
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row pairStratRow
		if err := forUpdate(tx).Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = row.ID
		out = next
		return tx.Model(&pairStratRow{}).Where("id = ?", row.ID).
			Updates(map[string]any{"data": next, "ongoing": next.StratStatus.StratState.IsOngoing()}).Error
	})
	if err != nil {
		return schema.PairStrat{}, translateGormErr(err)
	}
	return out, nil
}

func (g *gormPairStrats) Delete(ctx context.Context, id int64) error {
	result := g.db.WithContext(ctx).Where("id = ?", id).Delete(&pairStratRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return exception.ErrNotFound
	}
	return nil
}

// ---- portfolio status ----

type gormPortfolio struct {
	db *gorm.DB
}

func (g *gormPortfolio) GetOrCreate(ctx context.Context) (schema.PortfolioStatus, error) {
	var out schema.PortfolioStatus
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row portfolioStatusRow
		err := forUpdate(tx).Where("id = ?", schema.PortfolioStatusID).First(&row).Error
		if err == nil {
			out = row.Data
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		out = schema.PortfolioStatus{ID: schema.PortfolioStatusID}
		return tx.Create(&portfolioStatusRow{ID: schema.PortfolioStatusID, Data: out}).Error
	})
	if err != nil {
		return schema.PortfolioStatus{}, translateGormErr(err)
	}
	return out, nil
}

func (g *gormPortfolio) Get(ctx context.Context) (schema.PortfolioStatus, error) {
	var row portfolioStatusRow
	err := g.db.WithContext(ctx).Where("id = ?", schema.PortfolioStatusID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return schema.PortfolioStatus{}, exception.ErrPortfolioStatusGone
	}
	if err != nil {
		return schema.PortfolioStatus{}, err
	}
	return row.Data, nil
}

func (g *gormPortfolio) Update(ctx context.Context, apply func(*schema.PortfolioStatus) error) (schema.PortfolioStatus, error) {
	var out schema.PortfolioStatus
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row portfolioStatusRow
		if err := forUpdate(tx).Where("id = ?", schema.PortfolioStatusID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return exception.ErrPortfolioStatusGone
			}
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = schema.PortfolioStatusID
		out = next
		return tx.Model(&portfolioStatusRow{}).Where("id = ?", row.ID).Update("data", next).Error
	})
	if err != nil {
		return schema.PortfolioStatus{}, translateGormErr(err)
	}
	return out, nil
}

// ---- cancel orders ----

type gormCancelOrders struct {
	db *gorm.DB
}

func (g *gormCancelOrders) Create(ctx context.Context, co schema.CancelOrder) (schema.CancelOrder, error) {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&cancelOrderRow{}).Where("order_id = ?", co.OrderID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return exception.ErrDuplicateRecord
		}
		row := cancelOrderRow{OrderID: co.OrderID, Data: co}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		co.ID = row.ID
		row.Data.ID = row.ID
		return tx.Model(&cancelOrderRow{}).Where("id = ?", row.ID).Update("data", row.Data).Error
	})
	if err != nil {
		return schema.CancelOrder{}, translateGormErr(err)
	}
	return co, nil
}

func (g *gormCancelOrders) GetByOrderID(ctx context.Context, orderID string) (schema.CancelOrder, error) {
	var row cancelOrderRow
	if err := g.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return schema.CancelOrder{}, translateGormErr(err)
	}
	return row.Data, nil
}

func (g *gormCancelOrders) Update(ctx context.Context, orderID string, apply func(*schema.CancelOrder) error) (schema.CancelOrder, error) {
	var out schema.CancelOrder
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row cancelOrderRow
		if err := forUpdate(tx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
			return err
		}
		next := row.Data
		if err := apply(&next); err != nil {
			return err
		}
		next.ID = row.ID
		out = next
		return tx.Model(&cancelOrderRow{}).Where("id = ?", row.ID).Update("data", next).Error
	})
	if err != nil {
		return schema.CancelOrder{}, translateGormErr(err)
	}
	return out, nil
}

// ---- journals ----

type gormOrderJournals struct {
	db *gorm.DB
}

func (g *gormOrderJournals) Append(ctx context.Context, oj schema.OrderJournal) (schema.OrderJournal, error) {
	row := orderJournalRow{OrderID: oj.Order.OrderID, Data: oj}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return schema.OrderJournal{}, err
	}
	oj.ID = row.ID
	return oj, nil
}

func (g *gormOrderJournals) LastNByOrderID(ctx context.Context, orderID string, n int) ([]schema.OrderJournal, error) {
	var rows []orderJournalRow
	err := g.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id DESC").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]schema.OrderJournal, 0, len(rows))
	for _, row := range rows {
		entry := row.Data
		entry.ID = row.ID
		out = append(out, entry)
	}
	return out, nil
}

type gormFillJournals struct {
	db *gorm.DB
}

func (g *gormFillJournals) Append(ctx context.Context, fj schema.FillJournal) (schema.FillJournal, error) {
	row := fillJournalRow{OrderID: fj.OrderID, Data: fj}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return schema.FillJournal{}, err
	}
	fj.ID = row.ID
	return fj, nil
}
