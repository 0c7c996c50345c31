// Package strategyrt is the Strategy Runtime: the per-strategy scheduler,
// the declarative Program/Interpreter that stands in for an open code
// sandbox, the capability surface those programs run against, and the
// supporting parameter, logging, and rate-limiting machinery.
package strategyrt

import "github.com/shopspring/decimal"

// StepKind tags one instruction in a Program.
type StepKind string

const (
	StepBuy      StepKind = "buy"
	StepSell     StepKind = "sell"
	StepLog      StepKind = "log"
	StepSchedule StepKind = "schedule"
	StepIf       StepKind = "if"
)

// ConditionRead selects what a Condition reads before comparing.
type ConditionRead string

const (
	ReadPrice     ConditionRead = "price"
	ReadMarketCap ConditionRead = "marketCap"
	ReadBalance   ConditionRead = "balance"
)

// CompareOp is a Condition's comparison operator.
type CompareOp string

const (
	OpLess           CompareOp = "<"
	OpLessOrEqual    CompareOp = "<="
	OpGreater        CompareOp = ">"
	OpGreaterOrEqual CompareOp = ">="
	OpEqual          CompareOp = "=="
)

// Condition guards a StepIf step: read one live value, compare it against
// Value with Operator.
type Condition struct {
	Read     ConditionRead
	Pair     string // pair or token address literal, or a "$param" reference
	Operator CompareOp
	Value    decimal.Decimal
}

// AmountSource selects where a Buy/Sell Step's traded amount actually comes
// from. The default, AmountLiteral, resolves Amount as a float literal or a
// "$paramName" reference. AmountBalance ignores Amount entirely and reads
// the wallet's live balance for the step's Pair instead, letting a strategy
// chain a prior buy's proceeds into a sell amount (e.g. "sell everything
// this pair's balance holds") without knowing the quoted amount in advance.
type AmountSource string

const (
	AmountLiteral AmountSource = ""
	AmountBalance AmountSource = "balance"
)

// Step is one instruction of a Program. Amount and Pair/Token may be a
// literal or a "$paramName" reference resolved against the strategy's
// loaded parameters at execution time, unless Source overrides Amount with
// a live capability read.
type Step struct {
	Kind     StepKind
	Pair     string
	Amount   string
	Source   AmountSource
	Message  string
	Interval string

	Condition *Condition
	Then      []Step
	Else      []Step
}

// Program is the declarative strategy body: a typed sequence of Steps
// executed in order against the capability surface. There is no eval, no
// reflection-based method lookup, and no import — a Program can only do
// what a Step can express: every Step kind except StepIf maps to exactly
// one capability-surface operation, and StepIf only reads a value and
// selects which nested Steps run.
type Program struct {
	Decls []ParamDecl
	Steps []Step
}
