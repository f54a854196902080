package solver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pigeonhole puts n pigeons into m holes, each pigeon in exactly one hole and
// each hole holding at most one pigeon.
func pigeonhole(n, m int) *Problem {
	p := NewProblem("pigeonhole")
	x := make([][]Var, n)
	for i := range x {
		x[i] = make([]Var, m)
		for j := range x[i] {
			x[i][j] = p.NewVar(fmt.Sprintf("x_%d_%d", i, j))
		}
		p.AddEQ(fmt.Sprintf("pigeon %d", i), Ones(x[i]...), 1)
	}
	for j := 0; j < m; j++ {
		col := make([]Var, n)
		for i := range x {
			col[i] = x[i][j]
		}
		p.AddLE(fmt.Sprintf("hole %d", j), Ones(col...), 1)
	}
	return p
}

var backends = []struct {
	name   string
	solver Solver
}{
	{"backtrack", NewBacktracking(0)},
	{"pb", NewPseudoBoolean()},
}

func TestSolveFeasible(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Problem
	}{
		{"empty", func() *Problem { return NewProblem("empty") }},
		{"exactly one", func() *Problem {
			p := NewProblem("one")
			a, b, c := p.NewVar("a"), p.NewVar("b"), p.NewVar("c")
			p.AddEQ("one", Ones(a, b, c), 1)
			p.Fix("not a", a, false)
			return p
		}},
		{"big-m implication", func() *Problem {
			p := NewProblem("bigm")
			k, d1, d2 := p.NewVar("k"), p.NewVar("d1"), p.NewVar("d2")
			// 2k + d1 + d2 <= 2: k excludes both dangers
			p.AddLE("safe", []Term{{k, 2}, {d1, 1}, {d2, 1}}, 2)
			p.Fix("king", k, true)
			return p
		}},
		{"ge with negative coefficients", func() *Problem {
			p := NewProblem("neg")
			a, b := p.NewVar("a"), p.NewVar("b")
			p.AddGE("a minus b", []Term{{a, 1}, {b, -1}}, 1)
			return p
		}},
		{"pigeonhole 3 into 3", func() *Problem { return pigeonhole(3, 3) }},
	}
	for _, be := range backends {
		for _, tt := range tests {
			t.Run(be.name+"/"+tt.name, func(t *testing.T) {
				p := tt.build()
				res, err := be.solver.Solve(context.Background(), p)
				require.NoError(t, err)
				require.True(t, res.Feasible)
				assert.True(t, p.Satisfied(res.Values), "assignment must satisfy every constraint")
			})
		}
	}
}

func TestSolveValues(t *testing.T) {
	p := NewProblem("values")
	k, d1, d2 := p.NewVar("k"), p.NewVar("d1"), p.NewVar("d2")
	p.AddLE("safe", []Term{{k, 2}, {d1, 1}, {d2, 1}}, 2)
	p.Fix("king", k, true)

	for _, be := range backends {
		res, err := be.solver.Solve(context.Background(), p)
		require.NoError(t, err, be.name)
		assert.True(t, res.Value(k), be.name)
		assert.False(t, res.Value(d1), be.name)
		assert.False(t, res.Value(d2), be.name)
	}
}

func TestSolveInfeasible(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Problem
	}{
		{"empty ge", func() *Problem {
			p := NewProblem("empty ge")
			p.AddGE("need one", nil, 1)
			return p
		}},
		{"contradiction", func() *Problem {
			p := NewProblem("contradiction")
			a := p.NewVar("a")
			p.Fix("on", a, true)
			p.Fix("off", a, false)
			return p
		}},
		{"duplicate terms merge", func() *Problem {
			p := NewProblem("dup")
			a := p.NewVar("a")
			p.AddEQ("twice", []Term{{a, 1}, {a, 1}}, 1)
			return p
		}},
		{"pigeonhole 4 into 3", func() *Problem { return pigeonhole(4, 3) }},
	}
	for _, be := range backends {
		for _, tt := range tests {
			t.Run(be.name+"/"+tt.name, func(t *testing.T) {
				res, err := be.solver.Solve(context.Background(), tt.build())
				require.NoError(t, err)
				assert.False(t, res.Feasible)
				assert.False(t, res.Value(0))
			})
		}
	}
}

func TestSolveNodeBudget(t *testing.T) {
	_, err := NewBacktracking(5).Solve(context.Background(), pigeonhole(7, 6))
	assert.ErrorIs(t, err, ErrInconclusive)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, be := range backends {
		_, err := be.solver.Solve(ctx, pigeonhole(3, 3))
		assert.ErrorIs(t, err, ErrInconclusive, be.name)
	}
}

func TestNewBackend(t *testing.T) {
	s, err := New("", 0)
	require.NoError(t, err)
	assert.IsType(t, &PseudoBoolean{}, s)

	s, err = New("backtrack", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, s.(*Backtracking).MaxNodes)

	_, err = New("simplex", 0)
	assert.Error(t, err)
}

func TestConstraintString(t *testing.T) {
	c := Constraint{Terms: []Term{{0, 1}, {2, -3}}, Op: GE, RHS: 1}
	assert.Equal(t, "1*x0 + -3*x2 >= 1", c.String())
	assert.Equal(t, "0 <= 0", Constraint{}.String())
}
