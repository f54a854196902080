// Package solver decides feasibility of small 0/1 linear problems.
package solver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInconclusive is returned when a search is cancelled or runs out of budget.
// It means neither feasible nor infeasible.
var ErrInconclusive = errors.New("solver: inconclusive")

// Var is a binary variable of a Problem.
type Var int

type Term struct {
	Var  Var
	Coef int
}

type Op int

const (
	LE Op = iota
	GE
	EQ
)

func (o Op) String() string {
	switch o {
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return "<="
	}
}

type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   int
}

func (c Constraint) String() string {
	var sb strings.Builder
	for i, t := range c.Terms {
		if i > 0 {
			sb.WriteString(" + ")
		}
		fmt.Fprintf(&sb, "%d*x%d", t.Coef, t.Var)
	}
	if len(c.Terms) == 0 {
		sb.WriteString("0")
	}
	fmt.Fprintf(&sb, " %s %d", c.Op, c.RHS)
	return sb.String()
}

// Problem is a feasibility problem over binary variables.
type Problem struct {
	Label       string
	names       []string
	constraints []Constraint
}

func NewProblem(label string) *Problem {
	return &Problem{Label: label}
}

func (p *Problem) NewVar(name string) Var {
	p.names = append(p.names, name)
	return Var(len(p.names) - 1)
}

func (p *Problem) NumVars() int {
	return len(p.names)
}

func (p *Problem) NumConstraints() int {
	return len(p.constraints)
}

func (p *Problem) Constraints() []Constraint {
	return p.constraints
}

func (p *Problem) Add(c Constraint) {
	p.constraints = append(p.constraints, c)
}

func (p *Problem) AddLE(name string, terms []Term, rhs int) {
	p.Add(Constraint{Name: name, Terms: terms, Op: LE, RHS: rhs})
}

func (p *Problem) AddGE(name string, terms []Term, rhs int) {
	p.Add(Constraint{Name: name, Terms: terms, Op: GE, RHS: rhs})
}

func (p *Problem) AddEQ(name string, terms []Term, rhs int) {
	p.Add(Constraint{Name: name, Terms: terms, Op: EQ, RHS: rhs})
}

// Fix forces v to value.
func (p *Problem) Fix(name string, v Var, value bool) {
	rhs := 0
	if value {
		rhs = 1
	}
	p.AddEQ(name, []Term{{Var: v, Coef: 1}}, rhs)
}

// Ones builds a unit-coefficient sum over vars.
func Ones(vars ...Var) []Term {
	terms := make([]Term, len(vars))
	for i, v := range vars {
		terms[i] = Term{Var: v, Coef: 1}
	}
	return terms
}

// Satisfied checks an assignment against every constraint.
func (p *Problem) Satisfied(values []bool) bool {
	if len(values) != len(p.names) {
		return false
	}
	for _, c := range p.constraints {
		sum := 0
		for _, t := range c.Terms {
			if values[t.Var] {
				sum += t.Coef
			}
		}
		switch c.Op {
		case LE:
			if sum > c.RHS {
				return false
			}
		case GE:
			if sum < c.RHS {
				return false
			}
		case EQ:
			if sum != c.RHS {
				return false
			}
		}
	}
	return true
}

// Result of a completed search.
type Result struct {
	Feasible bool
	Values   []bool // One entry per variable when Feasible
	Nodes    int
}

func (r Result) Value(v Var) bool {
	return r.Feasible && r.Values[v]
}

// Solver is the narrow interface the game depends on. Implementations must
// return ErrInconclusive, possibly wrapped, instead of guessing.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (Result, error)
}
