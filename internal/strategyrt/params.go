package strategyrt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"stratexec/internal/errs"
)

// ParamType is a @param declaration's type tag.
type ParamType string

const (
	ParamNumber   ParamType = "number"
	ParamEth      ParamType = "eth"
	ParamUsd      ParamType = "usd"
	ParamInt      ParamType = "int"
	ParamBps      ParamType = "bps"
	ParamPct      ParamType = "pct"
	ParamBoolean  ParamType = "boolean"
	ParamString   ParamType = "string"
	ParamAddress  ParamType = "address"
	ParamPair     ParamType = "pair"
	ParamToken    ParamType = "token"
	ParamInterval ParamType = "interval"
)

// ParamDecl is one `@param name type default description` declaration.
type ParamDecl struct {
	Name        string
	Type        ParamType
	Default     string
	Description string
	EnumOptions []string // populated when Type is an enum[...] tag
}

var declPattern = regexp.MustCompile(`^@param\s+(\S+)\s+(\S+)\s+(\S+)\s*(.*)$`)
var enumPattern = regexp.MustCompile(`^enum\[(.+)\]$`)
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
var intervalValuePattern = regexp.MustCompile(`^(\d+[smhd]|once)$`)

// ParseDecl parses a single `@param ...` source line.
func ParseDecl(line string) (ParamDecl, error) {
	m := declPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return ParamDecl{}, errs.New(errs.KindParameterOutOfRange, "malformed @param declaration: "+line)
	}
	decl := ParamDecl{Name: m[1], Type: ParamType(m[2]), Default: m[3], Description: strings.TrimSpace(m[4])}
	if em := enumPattern.FindStringSubmatch(m[2]); em != nil {
		decl.Type = "enum"
		decl.EnumOptions = strings.Split(em[1], "|")
	}
	return decl, nil
}

// Value is a coerced parameter value ready for injection into a running
// strategy's parameter mapping.
type Value struct {
	Number *float64
	Int    *int64
	Bool   *bool
	String *string
}

// Coerce validates and converts raw (the persisted or default value) against
// decl's type tag, per the parameter injection coercion table. Invalid
// values are refused here — at load time — so a malformed parameter never
// reaches a running tick.
func Coerce(decl ParamDecl, raw string) (Value, error) {
	switch decl.Type {
	case ParamNumber, ParamEth, ParamUsd:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, badParam(decl, raw)
		}
		return Value{Number: &f}, nil

	case ParamInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, badParam(decl, raw)
		}
		return Value{Int: &n}, nil

	case ParamBps:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 || n > 5000 {
			return Value{}, badParam(decl, raw)
		}
		return Value{Int: &n}, nil

	case ParamPct:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 100 {
			return Value{}, badParam(decl, raw)
		}
		return Value{Number: &f}, nil

	case ParamBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, badParam(decl, raw)
		}
		return Value{Bool: &b}, nil

	case ParamString:
		return Value{String: &raw}, nil

	case ParamAddress, ParamPair, ParamToken:
		if raw != "" && !addressPattern.MatchString(raw) {
			return Value{}, badParam(decl, raw)
		}
		return Value{String: &raw}, nil

	case ParamInterval:
		if !intervalValuePattern.MatchString(raw) {
			return Value{}, badParam(decl, raw)
		}
		return Value{String: &raw}, nil

	case "enum":
		for _, opt := range decl.EnumOptions {
			if opt == raw {
				return Value{String: &raw}, nil
			}
		}
		return Value{}, badParam(decl, raw)

	default:
		return Value{}, errs.New(errs.KindParameterOutOfRange, fmt.Sprintf("unrecognized @param type %q for %s", decl.Type, decl.Name))
	}
}

func badParam(decl ParamDecl, raw string) error {
	return errs.New(errs.KindParameterOutOfRange, fmt.Sprintf("invalid value %q for @param %s (%s)", raw, decl.Name, decl.Type))
}

// LoadParams coerces every declaration against values, falling back to each
// declaration's default, and returns the resulting mapping. An error from
// any declaration aborts the whole load — a strategy is not started with a
// partially-valid parameter set.
func LoadParams(decls []ParamDecl, values map[string]string) (map[string]Value, error) {
	out := make(map[string]Value, len(decls))
	for _, decl := range decls {
		raw, ok := values[decl.Name]
		if !ok || raw == "" {
			raw = decl.Default
		}
		v, err := Coerce(decl, raw)
		if err != nil {
			return nil, err
		}
		out[decl.Name] = v
	}
	return out, nil
}
