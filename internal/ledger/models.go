// Package ledger is the append-only facade over the persistent store: runs,
// trades, and open positions, with the FIFO cost-basis accounting and
// summary statistics the rest of the core reads back through performance().
package ledger

import "time"

// Strategy is a persistent strategy definition.
type Strategy struct {
	ID                  string `gorm:"primaryKey"`
	Name                string `gorm:"not null"`
	Description         string
	VenueTag            string
	Status              string `gorm:"not null;index"` // draft|active|paused|error
	SourceText          string `gorm:"type:text"`
	ParamSchema         string `gorm:"type:text"` // JSON-encoded @param declarations
	ParamValues         string `gorm:"type:text"` // JSON-encoded name -> value
	DashboardSpec       string `gorm:"type:text"`
	ConversationHistory string `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (Strategy) TableName() string { return "strategies" }

// Run is a single activation interval of a strategy.
type Run struct {
	ID               string `gorm:"primaryKey"`
	StrategyID       string `gorm:"not null;index"`
	StartedAt        time.Time
	StoppedAt        *time.Time
	InitialCapitalEth string `gorm:"type:varchar(78)"` // decimal string, ETH
	Mode             string `gorm:"not null"`         // direct|delegate|simulated
	UserAddress      string
	DryRun           bool
}

func (Run) TableName() string { return "runs" }

// Trade is a single fill inside a Run.
type Trade struct {
	ID                string `gorm:"primaryKey"`
	RunID             string `gorm:"not null;index"`
	Idx               int    `gorm:"not null"`
	Timestamp         time.Time
	Side              string `gorm:"not null"` // buy|sell
	Pair              string `gorm:"not null;index"`
	EthAmountWei      string `gorm:"type:varchar(78);not null"`
	TokenAmountWei    string `gorm:"type:varchar(78);not null"`
	PnlEth            string `gorm:"type:varchar(78);not null"`
	PnlPct            string `gorm:"type:varchar(40);not null"`
	CumulativePnlEth  string `gorm:"type:varchar(78);not null"`
	TxHash            string
}

func (Trade) TableName() string { return "trades" }

// Position is per-(run, token) inventory, maintained FIFO via PositionLot.
type Position struct {
	ID             string `gorm:"primaryKey"`
	RunID          string `gorm:"not null;index"`
	Token          string `gorm:"not null"` // pair address
	TokenAmountWei string `gorm:"type:varchar(78);not null"`
}

func (Position) TableName() string { return "positions" }

// PositionLot is a single FIFO-consumable buy lot belonging to a Position.
type PositionLot struct {
	ID             string `gorm:"primaryKey"`
	PositionID     string `gorm:"not null;index"`
	TokenAmountWei string `gorm:"type:varchar(78);not null"` // remaining amount
	EthCostBasis   string `gorm:"type:varchar(78);not null"` // gross ETH spent, pre-fee
	CreatedAt      time.Time `gorm:"autoCreateTime;index"`
}

func (PositionLot) TableName() string { return "position_lots" }
