package solver

import (
	"context"
	"fmt"
)

const (
	ctxCheckInterval = 256
	conflictBump     = 4
)

// Backtracking is a depth-first search with bound propagation over rows
// normalised to sum(a*x) <= b.
type Backtracking struct {
	// MaxNodes bounds the number of search nodes. Zero means unlimited.
	MaxNodes int
}

func NewBacktracking(maxNodes int) *Backtracking {
	return &Backtracking{MaxNodes: maxNodes}
}

type occurrence struct {
	row  int
	coef int
}

type row struct {
	vars  []int
	coefs []int
	rhs   int
}

type search struct {
	ctx      context.Context
	maxNodes int
	nodes    int

	rows     []row
	occurs   [][]occurrence
	minSum   []int
	assign   []int8 // -1 unassigned
	activity []int
	trail    []int
	queue    []int
	inQueue  []bool
}

func (b *Backtracking) Solve(ctx context.Context, p *Problem) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInconclusive, err)
	}

	s := newSearch(ctx, p, b.MaxNodes)
	for r := range s.rows {
		s.enqueue(r)
	}

	ok := s.propagate()
	if ok {
		var err error
		ok, err = s.dfs()
		if err != nil {
			return Result{Nodes: s.nodes}, err
		}
	}
	if !ok {
		return Result{Nodes: s.nodes}, nil
	}

	values := make([]bool, len(s.assign))
	for v, a := range s.assign {
		values[v] = a == 1
	}
	return Result{Feasible: true, Values: values, Nodes: s.nodes}, nil
}

func newSearch(ctx context.Context, p *Problem, maxNodes int) *search {
	s := &search{
		ctx:      ctx,
		maxNodes: maxNodes,
		occurs:   make([][]occurrence, p.NumVars()),
		assign:   make([]int8, p.NumVars()),
	}
	for v := range s.assign {
		s.assign[v] = -1
	}

	addRow := func(coefs map[int]int, order []int, rhs int) {
		r := row{rhs: rhs}
		for _, v := range order {
			if a := coefs[v]; a != 0 {
				r.vars = append(r.vars, v)
				r.coefs = append(r.coefs, a)
			}
		}
		s.rows = append(s.rows, r)
	}

	for _, c := range p.constraints {
		coefs := make(map[int]int, len(c.Terms))
		order := make([]int, 0, len(c.Terms))
		for _, t := range c.Terms {
			if _, seen := coefs[int(t.Var)]; !seen {
				order = append(order, int(t.Var))
			}
			coefs[int(t.Var)] += t.Coef
		}
		if c.Op == LE || c.Op == EQ {
			addRow(coefs, order, c.RHS)
		}
		if c.Op == GE || c.Op == EQ {
			neg := make(map[int]int, len(coefs))
			for v, a := range coefs {
				neg[v] = -a
			}
			addRow(neg, order, -c.RHS)
		}
	}

	s.minSum = make([]int, len(s.rows))
	s.inQueue = make([]bool, len(s.rows))
	for i, r := range s.rows {
		for j, v := range r.vars {
			a := r.coefs[j]
			s.minSum[i] += min(0, a)
			s.occurs[v] = append(s.occurs[v], occurrence{row: i, coef: a})
		}
	}

	// Variables in many rows are branched on first.
	s.activity = make([]int, len(s.assign))
	for v := range s.activity {
		s.activity[v] = len(s.occurs[v])
	}
	return s
}

func (s *search) enqueue(r int) {
	if !s.inQueue[r] {
		s.inQueue[r] = true
		s.queue = append(s.queue, r)
	}
}

func (s *search) clearQueue() {
	for _, r := range s.queue {
		s.inQueue[r] = false
	}
	s.queue = s.queue[:0]
}

func (s *search) set(v int, val int8) {
	s.assign[v] = val
	s.trail = append(s.trail, v)
	for _, o := range s.occurs[v] {
		s.minSum[o.row] += o.coef*int(val) - min(0, o.coef)
		s.enqueue(o.row)
	}
}

func (s *search) undo(mark int) {
	for len(s.trail) > mark {
		v := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		val := s.assign[v]
		for _, o := range s.occurs[v] {
			s.minSum[o.row] -= o.coef*int(val) - min(0, o.coef)
		}
		s.assign[v] = -1
	}
}

// propagate runs until fixpoint and reports false on conflict.
func (s *search) propagate() bool {
	for len(s.queue) > 0 {
		r := s.queue[0]
		s.queue = s.queue[1:]
		s.inQueue[r] = false

		rw := &s.rows[r]
		if s.minSum[r] > rw.rhs {
			for _, v := range rw.vars {
				s.activity[v] += conflictBump
			}
			s.clearQueue()
			return false
		}
		for j, v := range rw.vars {
			if s.assign[v] >= 0 {
				continue
			}
			a := rw.coefs[j]
			switch {
			case a > 0 && s.minSum[r]+a > rw.rhs:
				s.set(v, 0)
			case a < 0 && s.minSum[r]-a > rw.rhs:
				s.set(v, 1)
			}
		}
	}
	return true
}

// pick returns the unassigned variable with the highest activity, lowest
// index first on ties.
func (s *search) pick() int {
	best := -1
	for v, a := range s.assign {
		if a < 0 && (best < 0 || s.activity[v] > s.activity[best]) {
			best = v
		}
	}
	return best
}

func (s *search) dfs() (bool, error) {
	s.nodes++
	if s.maxNodes > 0 && s.nodes > s.maxNodes {
		return false, fmt.Errorf("%w: node budget %d exhausted", ErrInconclusive, s.maxNodes)
	}
	if s.nodes%ctxCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInconclusive, err)
		}
	}

	v := s.pick()
	if v < 0 {
		return true, nil
	}
	for _, val := range [2]int8{1, 0} {
		mark := len(s.trail)
		s.set(v, val)
		if s.propagate() {
			ok, err := s.dfs()
			if err != nil || ok {
				return ok, err
			}
		}
		s.undo(mark)
	}
	return false, nil
}
