// Package forecast prepares the inputs of a subcentral solve: it reconstructs
// the outdoor temperature, fills measurement gaps, derives the baseline power
// from the heat curve and computes the first differences used as regressors.
package forecast
