package greybox

import (
	"fmt"

	"github.com/power2u/flexheat/core/logger"
)

// VarKind identifies a decision variable family of the MPC program.
type VarKind int

const (
	Temperature VarKind = iota
	Power
	InTempDiff
)

func (k VarKind) String() string {
	switch k {
	case Temperature:
		return "temperature"
	case Power:
		return "power"
	case InTempDiff:
		return "in_temp_diff"
	default:
		return fmt.Sprintf("VarKind(%d)", int(k))
	}
}

// Term is Coef times a decision variable.
type Term struct {
	Kind  VarKind
	Index int
	Coef  float64
}

// Affine is Const plus a sum of terms.
type Affine struct {
	Const float64
	Terms []Term
}

// Scale returns a copy of a multiplied by f.
func (a Affine) Scale(f float64) Affine {
	out := Affine{Const: a.Const * f, Terms: make([]Term, len(a.Terms))}
	for i, t := range a.Terms {
		t.Coef *= f
		out.Terms[i] = t
	}
	return out
}

// Eval evaluates the expression using value to look up variables.
func (a Affine) Eval(value func(VarKind, int) float64) float64 {
	v := a.Const
	for _, t := range a.Terms {
		v += t.Coef * value(t.Kind, t.Index)
	}
	return v
}

func variable(k VarKind, i int) Affine { return Affine{Terms: []Term{{Kind: k, Index: i, Coef: 1}}} }
func constant(v float64) Affine        { return Affine{Const: v} }

// Exogenous holds the known inputs of the dynamics. Outdoor and Solar cover
// the horizon, the difference series cover max_lag+horizon steps.
type Exogenous struct {
	Outdoor     []float64
	Solar       []float64
	OutTempDiff []float64
	SolarDiff   []float64
}

// Dynamics predicts the indoor temperature of one subcentral.
type Dynamics struct {
	cfg    Config
	model  Model
	maxLag int
}

// New validates cfg and model and returns the dynamics. A coefficient length
// mismatch is a configuration fault and is logged as an error.
func New(cfg Config, model Model, log logger.Logger) (*Dynamics, error) {
	log = logger.OrNop(log)
	if err := cfg.Validate(); err != nil {
		log.Errorf("dynamic model configuration: %v", err)
		return nil, err
	}
	if err := model.Check(cfg); err != nil {
		log.Errorf("dynamic model: %v", err)
		return nil, err
	}
	return &Dynamics{cfg: cfg, model: model, maxLag: cfg.MaxLag()}, nil
}

// MaxLag returns the largest configured lag.
func (d *Dynamics) MaxLag() int { return d.maxLag }

// Config returns the lag configuration.
func (d *Dynamics) Config() Config { return d.cfg }

// Regressor returns the regressor of step t (1-based). The order must match
// the layout the coefficients were trained with.
func (d *Dynamics) Regressor(t int, ex Exogenous) []Affine {
	reg := make([]Affine, 0, d.cfg.RegressorCount())
	reg = append(reg,
		variable(Temperature, t-1),
		constant(ex.Solar[t-1]),
		variable(Power, t-1),
		Affine{Const: -ex.Outdoor[t-1], Terms: []Term{{Kind: Temperature, Index: t - 1, Coef: 1}}},
	)
	base := d.maxLag + t - 1
	for _, i := range d.cfg.InTempDiffLag {
		reg = append(reg, variable(InTempDiff, base-i))
	}
	for _, i := range d.cfg.OutTempDiffLag {
		reg = append(reg, constant(ex.OutTempDiff[base-i]))
	}
	for _, i := range d.cfg.SolarDiffLag {
		reg = append(reg, constant(ex.SolarDiff[base-i]))
	}
	return reg
}

// NextTemperature returns the expression for T(t). The intercept enters both
// through Coefficients[0] times one and as an added constant.
func (d *Dynamics) NextTemperature(t int, ex Exogenous) Affine {
	c := d.model.Coefficients
	eq := Affine{Const: c[0] + d.model.Intercept}
	for k, r := range d.Regressor(t, ex) {
		s := r.Scale(c[k+1])
		eq.Const += s.Const
		eq.Terms = append(eq.Terms, s.Terms...)
	}
	return eq
}

// Simulate runs the model forward for the given power trajectory. knownInDiff
// holds the indoor temperature differences for indices 0..max_lag. It returns
// the temperatures T(0..H).
func (d *Dynamics) Simulate(initial float64, power []float64, knownInDiff []float64, ex Exogenous) []float64 {
	h := len(power)
	temps := make([]float64, h+1)
	temps[0] = initial
	diff := make([]float64, d.maxLag+h)
	copy(diff, knownInDiff[:d.maxLag+1])
	value := func(k VarKind, i int) float64 {
		switch k {
		case Temperature:
			return temps[i]
		case Power:
			return power[i]
		default:
			return diff[i]
		}
	}
	for t := 1; t <= h; t++ {
		temps[t] = d.NextTemperature(t, ex).Eval(value)
		if i := d.maxLag + t; i < len(diff) {
			diff[i] = temps[t] - temps[t-1]
		}
	}
	return temps
}
