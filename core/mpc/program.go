package mpc

import (
	"fmt"
	"math"

	"github.com/power2u/flexheat/core/greybox"
	"gonum.org/v1/gonum/mat"
)

// Block is a contiguous range of columns.
type Block struct {
	Offset int
	Len    int
}

// At returns the column of element i.
func (b Block) At(i int) int { return b.Offset + i }

// Variables is the column layout of the program.
type Variables struct {
	Power       Block
	Temperature Block
	BelowError  Block
	AboveError  Block
	InTempDiff  Block
	N           int
}

func newVariables(h, maxLag int) Variables {
	var v Variables
	next := 0
	alloc := func(n int) Block {
		b := Block{Offset: next, Len: n}
		next += n
		return b
	}
	v.Power = alloc(h)
	v.Temperature = alloc(h + 1)
	v.BelowError = alloc(h + 1)
	v.AboveError = alloc(h + 1)
	v.InTempDiff = alloc(maxLag + h)
	v.N = next
	return v
}

func (v Variables) column(k greybox.VarKind, i int) int {
	switch k {
	case greybox.Temperature:
		return v.Temperature.At(i)
	case greybox.Power:
		return v.Power.At(i)
	default:
		return v.InTempDiff.At(i)
	}
}

type coef struct {
	col int
	val float64
}

type row struct {
	name  string
	coefs []coef
	rhs   float64
}

func (r row) dot(x []float64) float64 {
	var s float64
	for _, c := range r.coefs {
		s += c.val * x[c.col]
	}
	return s
}

func (r row) coef(col int) float64 {
	var v float64
	for _, c := range r.coefs {
		if c.col == col {
			v += c.val
		}
	}
	return v
}

// Program is a linear program
//
//	minimize   c·x + Constant
//	subject to G·x <= h, A·x = b.
//
// Temperature and indoor difference columns are fully determined by equality
// rows. Those rows are recorded in elim in the order they can be evaluated,
// so a solver may substitute them and search over the remaining columns only.
// Every remaining column carries a non-negativity row.
type Program struct {
	Vars     Variables
	C        []float64
	Constant float64
	ineq     []row
	eq       []row
	elim     []elimination
}

// elimination solves equality row eq[row] for column col.
type elimination struct {
	col int
	row int
}

func newProgram(v Variables) *Program {
	return &Program{Vars: v, C: make([]float64, v.N)}
}

// le adds the constraint Σ coefs <= rhs.
func (p *Program) le(name string, rhs float64, coefs ...coef) {
	p.ineq = append(p.ineq, row{name: name, coefs: coefs, rhs: rhs})
}

// equal adds the constraint Σ coefs = rhs and returns its row index.
func (p *Program) equal(name string, rhs float64, coefs ...coef) int {
	p.eq = append(p.eq, row{name: name, coefs: coefs, rhs: rhs})
	return len(p.eq) - 1
}

// eliminate marks equality row r as the definition of col. Columns referenced
// by r other than col must be free or eliminated earlier.
func (p *Program) eliminate(col, r int) {
	p.elim = append(p.elim, elimination{col: col, row: r})
}

// eliminated reports whether col is defined by an equality row.
func (p *Program) eliminated() []bool {
	out := make([]bool, p.Vars.N)
	for _, e := range p.elim {
		out[e.col] = true
	}
	return out
}

// complete fills the eliminated columns of x from the free ones, in
// elimination order.
func (p *Program) complete(x []float64) {
	for _, e := range p.elim {
		r := p.eq[e.row]
		a := r.coef(e.col)
		v := r.rhs / a
		for _, c := range r.coefs {
			if c.col != e.col {
				v -= c.val / a * x[c.col]
			}
		}
		x[e.col] = v
	}
}

// NumInequalities returns the number of G rows.
func (p *Program) NumInequalities() int { return len(p.ineq) }

// NumEqualities returns the number of A rows.
func (p *Program) NumEqualities() int { return len(p.eq) }

// Inequalities returns G and h.
func (p *Program) Inequalities() (*mat.Dense, []float64) { return dense(p.ineq, p.Vars.N) }

// Equalities returns A and b.
func (p *Program) Equalities() (*mat.Dense, []float64) { return dense(p.eq, p.Vars.N) }

func dense(rows []row, n int) (*mat.Dense, []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	m := mat.NewDense(len(rows), n, nil)
	rhs := make([]float64, len(rows))
	for i, r := range rows {
		for _, c := range r.coefs {
			m.Set(i, c.col, m.At(i, c.col)+c.val)
		}
		rhs[i] = r.rhs
	}
	return m, rhs
}

// Objective evaluates c·x plus the constant term.
func (p *Program) Objective(x []float64) float64 {
	v := p.Constant
	for i, c := range p.C {
		v += c * x[i]
	}
	return v
}

// Violation returns an error naming the first constraint x violates by more
// than tol, scaled by the magnitude of its right-hand side.
func (p *Program) Violation(x []float64, tol float64) error {
	for _, r := range p.eq {
		if d := r.dot(x) - r.rhs; math.Abs(d) > tol*(1+math.Abs(r.rhs)) {
			return fmt.Errorf("%s: residual %g", r.name, d)
		}
	}
	for _, r := range p.ineq {
		if d := r.dot(x) - r.rhs; d > tol*(1+math.Abs(r.rhs)) {
			return fmt.Errorf("%s: exceeded by %g", r.name, d)
		}
	}
	return nil
}
