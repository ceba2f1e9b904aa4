// Package heatcurve converts between outside temperature, heating power and
// inflow temperature for one subcentral using its piecewise-linear heat curve.
//
// Inputs outside the curve are saturated with a warning rather than rejected;
// the inflow temperature to power direction extrapolates below the curve
// instead of clamping.
package heatcurve
