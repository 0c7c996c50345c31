package strategyrt

import (
	"encoding/json"
	"fmt"

	"stratexec/internal/errs"
)

// ParseParamSchema parses a strategy's persisted parameter schema: a
// JSON-encoded array of `@param` declaration lines.
func ParseParamSchema(schemaJSON string) ([]ParamDecl, error) {
	if schemaJSON == "" {
		return nil, nil
	}
	var lines []string
	if err := json.Unmarshal([]byte(schemaJSON), &lines); err != nil {
		return nil, errs.Wrap(errs.KindParameterOutOfRange, "malformed parameter schema", err)
	}
	decls := make([]ParamDecl, 0, len(lines))
	for _, line := range lines {
		decl, err := ParseDecl(line)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// ParseParamValues parses a strategy's persisted parameter value mapping.
func ParseParamValues(valuesJSON string) (map[string]string, error) {
	if valuesJSON == "" {
		return map[string]string{}, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return nil, errs.Wrap(errs.KindParameterOutOfRange, "malformed parameter values", err)
	}
	return values, nil
}

// ParseProgram parses a strategy's source text. The runtime treats user
// code as already transformed into the Program/Step shape by an upstream
// code-generation stage — this is a JSON decode, not a language parser.
func ParseProgram(sourceJSON string) (*Program, error) {
	var steps []Step
	if err := json.Unmarshal([]byte(sourceJSON), &steps); err != nil {
		return nil, errs.Wrap(errs.KindParameterOutOfRange, fmt.Sprintf("malformed program source: %v", err), err)
	}
	return &Program{Steps: steps}, nil
}
