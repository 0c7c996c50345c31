package strategyrt

import (
	"context"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"stratexec/internal/errs"
)

// Interpreter tree-walks a Program's Steps against one Capability for a
// single tick, resolving "$param" references against a loaded parameter
// mapping.
type Interpreter struct {
	cap    *Capability
	params map[string]Value
}

// NewInterpreter binds an interpreter to one tick's capability surface and
// parameter mapping.
func NewInterpreter(cap *Capability, params map[string]Value) *Interpreter {
	return &Interpreter{cap: cap, params: params}
}

// Run executes every Step of prog.Steps in order. A Step's error aborts the
// remaining Steps and is returned to the caller, which per the runtime's
// crash-isolation policy ends the Run with status error.
func (in *Interpreter) Run(ctx context.Context, prog *Program) error {
	return in.runSteps(ctx, prog.Steps)
}

func (in *Interpreter) runSteps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if err := in.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) runStep(ctx context.Context, step Step) error {
	switch step.Kind {
	case StepBuy:
		pair, err := in.resolveAddress(step.Pair)
		if err != nil {
			return err
		}
		amount, err := in.resolveStepAmount(ctx, step, pair)
		if err != nil {
			return err
		}
		_, err = in.cap.Buy(ctx, pair, amount)
		return err

	case StepSell:
		pair, err := in.resolveAddress(step.Pair)
		if err != nil {
			return err
		}
		amount, err := in.resolveStepAmount(ctx, step, pair)
		if err != nil {
			return err
		}
		_, err = in.cap.Sell(ctx, pair, amount)
		return err

	case StepLog:
		in.cap.Log(LogInfo, in.resolveString(step.Message))
		return nil

	case StepSchedule:
		return in.cap.Schedule(in.resolveString(step.Interval))

	case StepIf:
		ok, err := in.evalCondition(ctx, step.Condition)
		if err != nil {
			return err
		}
		if ok {
			return in.runSteps(ctx, step.Then)
		}
		return in.runSteps(ctx, step.Else)

	default:
		return errs.New(errs.KindParameterOutOfRange, "unrecognized step kind: "+string(step.Kind))
	}
}

func (in *Interpreter) evalCondition(ctx context.Context, cond *Condition) (bool, error) {
	if cond == nil {
		return false, errs.New(errs.KindParameterOutOfRange, "if step is missing its condition")
	}

	pair, err := in.resolveAddress(cond.Pair)
	if err != nil {
		return false, err
	}

	var observed decimal.Decimal
	switch cond.Read {
	case ReadPrice:
		observed, err = in.cap.GetPrice(ctx, pair)
	case ReadMarketCap:
		observed, err = in.cap.GetMarketCap(ctx, pair)
	case ReadBalance:
		balWei, balErr := in.cap.GetBalance(ctx, pair)
		err = balErr
		if err == nil {
			observed = decimal.NewFromBigInt(balWei, 0)
		}
	default:
		return false, errs.New(errs.KindParameterOutOfRange, "unrecognized condition read: "+string(cond.Read))
	}
	if err != nil {
		return false, err
	}

	switch cond.Operator {
	case OpLess:
		return observed.LessThan(cond.Value), nil
	case OpLessOrEqual:
		return observed.LessThanOrEqual(cond.Value), nil
	case OpGreater:
		return observed.GreaterThan(cond.Value), nil
	case OpGreaterOrEqual:
		return observed.GreaterThanOrEqual(cond.Value), nil
	case OpEqual:
		return observed.Equal(cond.Value), nil
	default:
		return false, errs.New(errs.KindParameterOutOfRange, "unrecognized comparison operator: "+string(cond.Operator))
	}
}

func (in *Interpreter) resolveString(raw string) string {
	if strings.HasPrefix(raw, "$") {
		if v, ok := in.params[strings.TrimPrefix(raw, "$")]; ok && v.String != nil {
			return *v.String
		}
	}
	return raw
}

func (in *Interpreter) resolveAddress(raw string) (common.Address, error) {
	resolved := in.resolveString(raw)
	if resolved == "" {
		return common.Address{}, errs.New(errs.KindBadAddress, "empty pair/token reference")
	}
	return common.HexToAddress(resolved), nil
}

// resolveStepAmount picks a Buy/Sell step's traded amount: a live balance
// read when the step names AmountBalance, otherwise the literal/"$param"
// Amount field.
func (in *Interpreter) resolveStepAmount(ctx context.Context, step Step, pair common.Address) (decimal.Decimal, error) {
	if step.Source == AmountBalance {
		balWei, err := in.cap.GetBalance(ctx, pair)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return weiToDecimal(balWei), nil
	}
	return in.resolveAmount(step.Amount)
}

func (in *Interpreter) resolveAmount(raw string) (decimal.Decimal, error) {
	if strings.HasPrefix(raw, "$") {
		name := strings.TrimPrefix(raw, "$")
		v, ok := in.params[name]
		if !ok || v.Number == nil {
			return decimal.Decimal{}, errs.New(errs.KindParameterOutOfRange, "amount references unknown numeric param: "+name)
		}
		return decimal.NewFromFloat(*v.Number), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return decimal.Decimal{}, errs.New(errs.KindParameterOutOfRange, "malformed amount literal: "+raw)
	}
	return decimal.NewFromFloat(f), nil
}
