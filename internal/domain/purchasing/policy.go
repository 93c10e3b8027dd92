package purchasing

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Stock rules shipped with the service. DefaultStockRule books stock when
// the order is placed and when it is paid; InvoicedStockRule also books it on
// invoicing.
const (
	DefaultStockRule  = `status in ["ORDER", "PAID"]`
	InvoicedStockRule = `status in ["ORDER", "INVOICED", "PAID"]`
)

// StockPolicy decides which order statuses move inventory. The rule is a CEL
// boolean expression over the variable `status` (the status name).
type StockPolicy struct {
	rule    string
	program cel.Program
}

// NewStockPolicy compiles rule. An empty rule selects DefaultStockRule.
func NewStockPolicy(rule string) (*StockPolicy, error) {
	if rule == "" {
		rule = DefaultStockRule
	}

	env, err := cel.NewEnv(cel.Variable("status", cel.StringType))
	if err != nil {
		return nil, fmt.Errorf("stock policy env: %w", err)
	}

	ast, issues := env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile stock rule %q: %w", rule, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("stock rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build stock rule %q: %w", rule, err)
	}
	return &StockPolicy{rule: rule, program: program}, nil
}

// MustStockPolicy is NewStockPolicy that panics on error.
// Use only for constants and tests.
func MustStockPolicy(rule string) *StockPolicy {
	p, err := NewStockPolicy(rule)
	if err != nil {
		panic(err)
	}
	return p
}

// Rule returns the source expression.
func (p *StockPolicy) Rule() string {
	return p.rule
}

// Affects reports whether an order in status moves inventory.
func (p *StockPolicy) Affects(status Status) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{"status": status.String()})
	if err != nil {
		return false, fmt.Errorf("evaluate stock rule for %s: %w", status, err)
	}
	affects, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("stock rule returned %T", out.Value())
	}
	return affects, nil
}
