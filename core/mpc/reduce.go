package mpc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// linear is c plus w·x over the free columns of a program.
type linear struct {
	w []float64
	c float64
}

// standardForm is a program with its eliminated columns substituted:
//
//	minimize c·z subject to A·z = b, z >= 0
//
// where z holds the active free columns, shifted by their lower bounds,
// followed by one slack per kept inequality. Free columns that no row
// references sit at their lower bound.
type standardForm struct {
	c      []float64
	a      *mat.Dense
	b      []float64
	base   []float64 // program point with every free column at its lower bound
	active []int     // program column of z[i], i < len(active)
}

// substitution maps every program column to a linear expression over the
// free columns.
type substitution struct {
	pos  []int // free index of a column, -1 when eliminated
	expr []*linear
	free int
}

func newSubstitution(p *Program) (*substitution, error) {
	n := p.Vars.N
	elim := p.eliminated()
	s := &substitution{pos: make([]int, n), expr: make([]*linear, n)}
	for col := range s.pos {
		s.pos[col] = -1
		if !elim[col] {
			s.pos[col] = s.free
			s.free++
		}
	}
	for _, e := range p.elim {
		r := p.eq[e.row]
		a := r.coef(e.col)
		if a == 0 {
			return nil, fmt.Errorf("%s does not reference column %d", r.name, e.col)
		}
		l := &linear{w: make([]float64, s.free), c: r.rhs / a}
		for _, c := range r.coefs {
			if c.col == e.col {
				continue
			}
			if err := s.add(l, -c.val/a, c.col); err != nil {
				return nil, fmt.Errorf("%s: %w", r.name, err)
			}
		}
		s.expr[e.col] = l
	}
	return s, nil
}

// add accumulates f times column col into l.
func (s *substitution) add(l *linear, f float64, col int) error {
	if i := s.pos[col]; i >= 0 {
		l.w[i] += f
		return nil
	}
	e := s.expr[col]
	if e == nil {
		return fmt.Errorf("column %d is used before it is eliminated", col)
	}
	floats.AddScaled(l.w, f, e.w)
	l.c += f * e.c
	return nil
}

func (s *substitution) row(r row) (*linear, error) {
	l := &linear{w: make([]float64, s.free)}
	for _, c := range r.coefs {
		if err := s.add(l, c.val, c.col); err != nil {
			return nil, fmt.Errorf("%s: %w", r.name, err)
		}
	}
	return l, nil
}

type reducedRow struct {
	w   []float64
	rhs float64
}

// reduce substitutes the eliminated columns of p. Free columns are taken to be
// non-negative. Rows on a single column become bounds of that column, rows
// left without coefficients are checked against tol. Bounds or rows that
// cannot hold report lp.ErrInfeasible.
func reduce(p *Program, tol float64) (*standardForm, error) {
	s, err := newSubstitution(p)
	if err != nil {
		return nil, err
	}
	eliminating := make(map[int]bool, len(p.elim))
	for _, e := range p.elim {
		eliminating[e.row] = true
	}

	lo := make([]float64, s.free)
	hi := make([]float64, s.free)
	for j := range hi {
		hi[j] = math.Inf(1)
	}
	var ineq, eq []reducedRow
	for _, r := range p.ineq {
		l, err := s.row(r)
		if err != nil {
			return nil, err
		}
		rhs := r.rhs - l.c
		switch nz, j := nonzero(l.w); {
		case nz == 0:
			if rhs < -tol*(1+math.Abs(r.rhs)) {
				return nil, fmt.Errorf("%s: %w", r.name, lp.ErrInfeasible)
			}
		case nz == 1 && l.w[j] > 0:
			hi[j] = math.Min(hi[j], rhs/l.w[j])
		case nz == 1:
			lo[j] = math.Max(lo[j], rhs/l.w[j])
		default:
			ineq = append(ineq, reducedRow{w: l.w, rhs: rhs})
		}
	}
	for i, r := range p.eq {
		if eliminating[i] {
			continue
		}
		l, err := s.row(r)
		if err != nil {
			return nil, err
		}
		rhs := r.rhs - l.c
		if nz, _ := nonzero(l.w); nz == 0 {
			if math.Abs(rhs) > tol*(1+math.Abs(r.rhs)) {
				return nil, fmt.Errorf("%s: %w", r.name, lp.ErrInfeasible)
			}
			continue
		}
		eq = append(eq, reducedRow{w: l.w, rhs: rhs})
	}

	// shift every free column to its lower bound
	for _, rows := range [][]reducedRow{ineq, eq} {
		for i := range rows {
			rows[i].rhs -= floats.Dot(rows[i].w, lo)
		}
	}
	for j := range hi {
		if math.IsInf(hi[j], 1) {
			continue
		}
		gap := hi[j] - lo[j]
		if gap < -tol*(1+math.Abs(hi[j])) {
			return nil, fmt.Errorf("column %d bounded to [%g, %g]: %w", colOf(s.pos, j), lo[j], hi[j], lp.ErrInfeasible)
		}
		w := make([]float64, s.free)
		w[j] = 1
		ineq = append(ineq, reducedRow{w: w, rhs: math.Max(gap, 0)})
	}

	cost := &linear{w: make([]float64, s.free)}
	for col, c := range p.C {
		if c != 0 {
			if err := s.add(cost, c, col); err != nil {
				return nil, err
			}
		}
	}

	used := make([]bool, s.free)
	for _, rows := range [][]reducedRow{ineq, eq} {
		for _, r := range rows {
			for j, v := range r.w {
				if v != 0 {
					used[j] = true
				}
			}
		}
	}
	sf := &standardForm{base: make([]float64, p.Vars.N)}
	for col, j := range s.pos {
		if j < 0 {
			continue
		}
		sf.base[col] = lo[j]
		if used[j] {
			sf.active = append(sf.active, col)
		} else if cost.w[j] < 0 {
			return nil, fmt.Errorf("column %d: %w", col, lp.ErrUnbounded)
		}
	}

	m := len(ineq) + len(eq)
	if m == 0 {
		return sf, nil
	}
	k := len(sf.active)
	n := k + len(ineq)
	sf.c = make([]float64, n)
	sf.b = make([]float64, m)
	sf.a = mat.NewDense(m, n, nil)
	for j, col := range sf.active {
		sf.c[j] = cost.w[s.pos[col]]
	}
	set := func(i int, r reducedRow) {
		for j, col := range sf.active {
			sf.a.Set(i, j, r.w[s.pos[col]])
		}
		sf.b[i] = r.rhs
	}
	for i, r := range ineq {
		set(i, r)
		sf.a.Set(i, k+i, 1)
	}
	for i, r := range eq {
		set(len(ineq)+i, r)
	}
	return sf, nil
}

// expand returns the full program point for the standard form solution z.
func (sf *standardForm) expand(p *Program, z []float64) []float64 {
	x := make([]float64, p.Vars.N)
	copy(x, sf.base)
	for j, col := range sf.active {
		x[col] += z[j]
	}
	p.complete(x)
	return x
}

func nonzero(w []float64) (n, last int) {
	for i, v := range w {
		if v != 0 {
			n++
			last = i
		}
	}
	return n, last
}

func colOf(pos []int, j int) int {
	for col, i := range pos {
		if i == j {
			return col
		}
	}
	return -1
}
