package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stratexec/internal/errs"
)

// Ledger is the append-only facade Runtime writes through and the rest of
// the application reads through.
type Ledger struct {
	db *gorm.DB
}

// New wraps an already-opened gorm.DB, auto-migrating the schema.
func New(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&Strategy{}, &Run{}, &Trade{}, &Position{}, &PositionLot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// OpenRun starts a new Run for strategyID. Precondition: no open run for
// this strategy; returns a Policy error otherwise.
func (l *Ledger) OpenRun(strategyID string, initialCapitalEth string, mode, userAddr string, dryRun bool) (string, error) {
	var openCount int64
	if err := l.db.Model(&Run{}).Where("strategy_id = ? AND stopped_at IS NULL", strategyID).Count(&openCount).Error; err != nil {
		return "", fmt.Errorf("failed to check for an open run: %w", err)
	}
	if openCount > 0 {
		return "", errs.New(errs.KindParameterOutOfRange, "strategy already has an open run")
	}

	run := Run{
		ID:                uuid.NewString(),
		StrategyID:        strategyID,
		StartedAt:         time.Now(),
		InitialCapitalEth: initialCapitalEth,
		Mode:              mode,
		UserAddress:       userAddr,
		DryRun:            dryRun,
	}
	if err := l.db.Create(&run).Error; err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

// CloseRun sets stop=now. Idempotent: closing an already-closed run is a
// no-op.
func (l *Ledger) CloseRun(runID string) error {
	now := time.Now()
	return l.db.Model(&Run{}).Where("id = ? AND stopped_at IS NULL", runID).Update("stopped_at", &now).Error
}

// AppendTrade records one fill, consuming FIFO lots on a sell and assigning
// the monotonic per-run idx and running cumulative PnL.
func (l *Ledger) AppendTrade(runID, side, pair string, ethAmountWei, tokenAmountWei *big.Int, txHash string) (*Trade, error) {
	var trade Trade
	err := l.db.Transaction(func(tx *gorm.DB) error {
		position, err := loadOrCreatePosition(tx, runID, pair)
		if err != nil {
			return err
		}

		var pnl, pnlPct *big.Rat
		if side == "buy" {
			if err := pushLot(tx, position.ID, tokenAmountWei, ethAmountWei); err != nil {
				return err
			}
			position.TokenAmountWei = addStr(position.TokenAmountWei, tokenAmountWei)
			pnl, pnlPct = big.NewRat(0, 1), big.NewRat(0, 1)
		} else {
			consumedCost, err := consumeLotsFIFO(tx, position.ID, tokenAmountWei)
			if err != nil {
				return err
			}
			proceeds := new(big.Rat).SetInt(ethAmountWei)
			pnl = new(big.Rat).Sub(proceeds, consumedCost)
			if consumedCost.Sign() > 0 {
				pnlPct = new(big.Rat).Quo(pnl, consumedCost)
				pnlPct.Mul(pnlPct, big.NewRat(100, 1))
			} else {
				pnlPct = big.NewRat(0, 1)
			}
			position.TokenAmountWei = subStr(position.TokenAmountWei, tokenAmountWei)
		}

		if err := tx.Save(position).Error; err != nil {
			return fmt.Errorf("failed to update position: %w", err)
		}

		var idx int64
		if err := tx.Model(&Trade{}).Where("run_id = ?", runID).Count(&idx).Error; err != nil {
			return fmt.Errorf("failed to compute trade index: %w", err)
		}

		lastCumulative := big.NewRat(0, 1)
		var last Trade
		if err := tx.Where("run_id = ?", runID).Order("idx DESC").First(&last).Error; err == nil {
			r, ok := new(big.Rat).SetString(last.CumulativePnlEth)
			if ok {
				lastCumulative = r
			}
		}
		cumulative := new(big.Rat).Add(lastCumulative, pnl)

		trade = Trade{
			ID:               uuid.NewString(),
			RunID:            runID,
			Idx:              int(idx),
			Timestamp:        time.Now(),
			Side:             side,
			Pair:             pair,
			EthAmountWei:     ethAmountWei.String(),
			TokenAmountWei:   tokenAmountWei.String(),
			PnlEth:           ratToDecimalString(pnl),
			PnlPct:           ratToDecimalString(pnlPct),
			CumulativePnlEth: ratToDecimalString(cumulative),
			TxHash:           txHash,
		}
		if err := tx.Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to store trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func loadOrCreatePosition(tx *gorm.DB, runID, pair string) (*Position, error) {
	var position Position
	err := tx.Where("run_id = ? AND token = ?", runID, pair).First(&position).Error
	if err == nil {
		return &position, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	position = Position{ID: uuid.NewString(), RunID: runID, Token: pair, TokenAmountWei: "0"}
	if err := tx.Create(&position).Error; err != nil {
		return nil, fmt.Errorf("failed to create position: %w", err)
	}
	return &position, nil
}

func pushLot(tx *gorm.DB, positionID string, tokenAmountWei, ethCostBasis *big.Int) error {
	lot := PositionLot{
		ID:             uuid.NewString(),
		PositionID:     positionID,
		TokenAmountWei: tokenAmountWei.String(),
		EthCostBasis:   ethCostBasis.String(),
		CreatedAt:      time.Now(),
	}
	if err := tx.Create(&lot).Error; err != nil {
		return fmt.Errorf("failed to push position lot: %w", err)
	}
	return nil
}

// consumeLotsFIFO consumes tokenAmountWei worth of lots oldest-first,
// returning the total cost basis of the consumed portion. A lot consumed
// only partially has its cost basis split proportionally to the fraction of
// tokens taken from it.
func consumeLotsFIFO(tx *gorm.DB, positionID string, tokenAmountWei *big.Int) (*big.Rat, error) {
	var lots []PositionLot
	if err := tx.Where("position_id = ?", positionID).Order("created_at ASC").Find(&lots).Error; err != nil {
		return nil, fmt.Errorf("failed to load position lots: %w", err)
	}

	remaining := new(big.Int).Set(tokenAmountWei)
	consumedCost := big.NewRat(0, 1)

	for i := range lots {
		if remaining.Sign() <= 0 {
			break
		}
		lot := &lots[i]
		lotAmount, ok := new(big.Int).SetString(lot.TokenAmountWei, 10)
		if !ok || lotAmount.Sign() <= 0 {
			continue
		}
		lotCost, ok := new(big.Rat).SetString(lot.EthCostBasis)
		if !ok {
			lotCost = big.NewRat(0, 1)
		}

		taken := new(big.Int).Set(lotAmount)
		if taken.Cmp(remaining) > 0 {
			taken = new(big.Int).Set(remaining)
		}

		fraction := new(big.Rat).SetFrac(taken, lotAmount)
		costTaken := new(big.Rat).Mul(lotCost, fraction)
		consumedCost.Add(consumedCost, costTaken)

		newLotAmount := new(big.Int).Sub(lotAmount, taken)
		newLotCost := new(big.Rat).Sub(lotCost, costTaken)
		if err := tx.Model(&PositionLot{}).Where("id = ?", lot.ID).
			Updates(map[string]interface{}{
				"token_amount_wei": newLotAmount.String(),
				"eth_cost_basis":   ratToDecimalString(newLotCost),
			}).Error; err != nil {
			return nil, fmt.Errorf("failed to update consumed lot: %w", err)
		}

		remaining.Sub(remaining, taken)
	}

	if remaining.Sign() > 0 {
		return nil, errs.New(errs.KindInsufficientBalance, "sell amount exceeds the position's token inventory")
	}
	return consumedCost, nil
}

func addStr(s string, delta *big.Int) string {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	return v.Add(v, delta).String()
}

func subStr(s string, delta *big.Int) string {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		v = big.NewInt(0)
	}
	return v.Sub(v, delta).String()
}

func ratToDecimalString(r *big.Rat) string {
	return r.FloatString(18)
}

// GetRun loads a single run by id.
func (l *Ledger) GetRun(runID string) (*Run, error) {
	var run Run
	if err := l.db.Where("id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

// RunsByStrategy lists every Run for a strategy, newest first.
func (l *Ledger) RunsByStrategy(strategyID string) ([]Run, error) {
	var runs []Run
	if err := l.db.Where("strategy_id = ?", strategyID).Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// TradesByRun lists every trade in a run, in idx order.
func (l *Ledger) TradesByRun(runID string) ([]Trade, error) {
	var trades []Trade
	if err := l.db.Where("run_id = ?", runID).Order("idx ASC").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}
