package solver

import (
	"context"
	"fmt"

	sat "github.com/crillab/gophersat/solver"
)

// PseudoBoolean hands problems to the gophersat CDCL pseudo-boolean solver.
// Rows are rewritten as sum(w*l) >= k with positive weights over literals.
type PseudoBoolean struct{}

func NewPseudoBoolean() *PseudoBoolean {
	return &PseudoBoolean{}
}

// Solve runs the search on its own goroutine. A cancelled ctx returns
// ErrInconclusive at once; the abandoned search finishes in the background.
func (PseudoBoolean) Solve(ctx context.Context, p *Problem) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}

	constrs, feasible := pbConstraints(p)
	if !feasible {
		return Result{}, nil
	}
	if len(constrs) == 0 {
		return Result{Feasible: true, Values: make([]bool, p.NumVars())}, nil
	}

	type outcome struct {
		status sat.Status
		model  []bool
	}
	done := make(chan outcome, 1)
	go func() {
		s := sat.New(sat.ParsePBConstrs(constrs))
		status := s.Solve()
		var model []bool
		if status == sat.Sat {
			model = s.Model()
		}
		done <- outcome{status: status, model: model}
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrInconclusive, ctx.Err())
	case out := <-done:
		switch out.status {
		case sat.Unsat:
			return Result{}, nil
		case sat.Sat:
			// Variables absent from every row are free; they stay false.
			values := make([]bool, p.NumVars())
			copy(values, out.model)
			return Result{Feasible: true, Values: values}, nil
		default:
			return Result{}, fmt.Errorf("%w: solver status %v", ErrInconclusive, out.status)
		}
	}
}

// pbConstraints normalises every constraint to >= rows with positive
// weights. Negative coefficients flip the literal: a*x == a + |a|*(not x).
// It reports false when some row can never hold.
func pbConstraints(p *Problem) ([]sat.PBConstr, bool) {
	var out []sat.PBConstr

	add := func(coefs map[Var]int, order []Var, atLeast int) bool {
		var c sat.PBConstr
		total := 0
		for _, v := range order {
			a := coefs[v]
			lit := int(v) + 1
			switch {
			case a == 0:
				continue
			case a < 0:
				lit = -lit
				atLeast -= a
				a = -a
			}
			c.Lits = append(c.Lits, lit)
			c.Weights = append(c.Weights, a)
			total += a
		}
		if atLeast <= 0 {
			return true
		}
		if total < atLeast {
			return false
		}
		c.AtLeast = atLeast
		out = append(out, c)
		return true
	}

	for _, c := range p.constraints {
		coefs := make(map[Var]int, len(c.Terms))
		order := make([]Var, 0, len(c.Terms))
		for _, t := range c.Terms {
			if _, seen := coefs[t.Var]; !seen {
				order = append(order, t.Var)
			}
			coefs[t.Var] += t.Coef
		}

		if c.Op == GE || c.Op == EQ {
			if !add(coefs, order, c.RHS) {
				return nil, false
			}
		}
		if c.Op == LE || c.Op == EQ {
			neg := make(map[Var]int, len(coefs))
			for v, a := range coefs {
				neg[v] = -a
			}
			if !add(neg, order, -c.RHS) {
				return nil, false
			}
		}
	}
	return out, true
}

// New builds the backend named by name: "pb" or "backtrack". maxNodes only
// applies to the backtracking search.
func New(name string, maxNodes int) (Solver, error) {
	switch name {
	case "", "pb":
		return NewPseudoBoolean(), nil
	case "backtrack":
		return NewBacktracking(maxNodes), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", name)
	}
}
