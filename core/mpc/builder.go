package mpc

import (
	"fmt"

	"github.com/power2u/flexheat/core/greybox"
)

// Build assembles the program for one subcentral. cfg must already be the
// configuration effective for mode.
func Build(mode Mode, cfg Config, dyn *greybox.Dynamics, in Input) (*Program, error) {
	h := cfg.Horizon
	maxLag := dyn.MaxLag()
	if err := in.Forecast.validate(h, mode); err != nil {
		return nil, err
	}
	if err := in.Diff.validate(maxLag, h); err != nil {
		return nil, err
	}

	v := newVariables(h, maxLag)
	p := newProgram(v)
	f := in.Forecast

	// nonnegativity
	for t := 0; t < h; t++ {
		p.le(fmt.Sprintf("power_nonneg[%d]", t), 0, coef{v.Power.At(t), -1})
	}
	for t := 0; t <= h; t++ {
		p.le(fmt.Sprintf("below_nonneg[%d]", t), 0, coef{v.BelowError.At(t), -1})
		p.le(fmt.Sprintf("above_nonneg[%d]", t), 0, coef{v.AboveError.At(t), -1})
	}

	// dynamics
	ex := greybox.Exogenous{
		Outdoor:     f.OutTemp,
		Solar:       f.Solar,
		OutTempDiff: in.Diff.OutTemp,
		SolarDiff:   in.Diff.Solar,
	}
	dynamics := make([]int, h+1)
	for t := 1; t <= h; t++ {
		next := dyn.NextTemperature(t, ex)
		coefs := []coef{{v.Temperature.At(t), 1}}
		for _, term := range next.Terms {
			coefs = append(coefs, coef{v.column(term.Kind, term.Index), -term.Coef})
		}
		dynamics[t] = p.equal(fmt.Sprintf("dynamics[%d]", t), next.Const, coefs...)
	}
	p.eliminate(v.Temperature.At(0),
		p.equal("initial_temperature", in.Initial.IndoorTemperature, coef{v.Temperature.At(0), 1}))

	// indoor temperature differences
	for i := 0; i <= maxLag; i++ {
		p.eliminate(v.InTempDiff.At(i),
			p.equal(fmt.Sprintf("in_temp_diff_known[%d]", i), in.Diff.InTemp[i], coef{v.InTempDiff.At(i), 1}))
	}
	link := make([]int, maxLag+h)
	for i := maxLag + 1; i < maxLag+h; i++ {
		link[i] = p.equal(fmt.Sprintf("in_temp_diff_link[%d]", i), 0,
			coef{v.InTempDiff.At(i), 1},
			coef{v.Temperature.At(i - maxLag), -1},
			coef{v.Temperature.At(i - maxLag - 1), 1},
		)
	}
	// T(t) reads in_temp_diff up to max_lag+t-1, which is known or linked to
	// T(t-1)-T(t-2).
	for t := 1; t <= h; t++ {
		p.eliminate(v.Temperature.At(t), dynamics[t])
		if i := maxLag + t; i < maxLag+h {
			p.eliminate(v.InTempDiff.At(i), link[i])
		}
	}

	// rate limits and reference bounds
	for t := 0; t < h; t++ {
		pw := v.Power.At(t)
		p.le(fmt.Sprintf("rate_upper[%d]", t), cfg.RateLimitUpper, coef{pw, 1})
		p.le(fmt.Sprintf("rate_lower[%d]", t), -cfg.RateLimitLower, coef{pw, -1})
		p.le(fmt.Sprintf("reference_upper[%d]", t), f.BaselinePower[t]+cfg.MaxPowerOffset, coef{pw, 1})
		p.le(fmt.Sprintf("reference_lower[%d]", t), -(f.BaselinePower[t] - cfg.MaxPowerOffset), coef{pw, -1})
	}

	// comfort band errors
	for t := 0; t <= h; t++ {
		tc := v.Temperature.At(t)
		p.le(fmt.Sprintf("below_error[%d]", t), -(cfg.Setpoint - cfg.HysteresisBelow),
			coef{tc, -1}, coef{v.BelowError.At(t), -1})
		p.le(fmt.Sprintf("above_error[%d]", t), cfg.Setpoint+cfg.HysteresisAbove,
			coef{tc, 1}, coef{v.AboveError.At(t), -1})
	}

	// ramp
	p.le("ramp_initial_up", cfg.MaxRamp+in.Initial.HeatPower, coef{v.Power.At(0), 1})
	p.le("ramp_initial_down", cfg.MaxRamp-in.Initial.HeatPower, coef{v.Power.At(0), -1})
	for t := 1; t < h; t++ {
		p.le(fmt.Sprintf("ramp_up[%d]", t), cfg.MaxRamp, coef{v.Power.At(t), 1}, coef{v.Power.At(t - 1), -1})
		p.le(fmt.Sprintf("ramp_down[%d]", t), cfg.MaxRamp, coef{v.Power.At(t - 1), 1}, coef{v.Power.At(t), -1})
	}

	// rebound
	for t := 1; t < h; t++ {
		p.le(fmt.Sprintf("rebound[%d]", t), f.BaselinePower[t]*(1+cfg.ReboundLimit), coef{v.Power.At(t), 1})
	}

	setObjective(p, mode, cfg, f)
	return p, nil
}

// setObjective fills c and the constant term. The flexibility term is
// baseline-power in Plan and dispatch-power-baseline in Execution, weighted by
// the peak flag.
func setObjective(p *Program, mode Mode, cfg Config, f ForecastFrame) {
	v := p.Vars
	h := cfg.Horizon
	dt := float64(cfg.TimestepSeconds) / 3600
	energy := cfg.EnergyPricePriority * cfg.EnergyPrice * dt
	flex := cfg.FlexibilityPricePriority * cfg.FlexibilityPrice * dt

	for t := 0; t <= h; t++ {
		p.C[v.BelowError.At(t)] = cfg.BelowErrorPriority
		p.C[v.AboveError.At(t)] = cfg.AboveErrorPriority
	}
	for t := 0; t < h; t++ {
		w := flex * f.PeakHour[t]
		p.C[v.Power.At(t)] = energy + w
		switch mode {
		case Plan:
			p.Constant -= w * f.BaselinePower[t]
		case Execution:
			p.Constant -= w * (f.Dispatch[t] - f.BaselinePower[t])
		}
	}
}
