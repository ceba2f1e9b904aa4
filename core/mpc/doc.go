// Package mpc builds and solves the linear model predictive control programs
// that schedule the heating power of a subcentral.
//
// Two variants share one constraint set. Plan prepares a day-ahead schedule
// that earns flexibility income by running below the baseline during peak
// hours. Execution follows the dispatch order issued to the grid zone.
package mpc
