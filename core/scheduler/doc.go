// Package scheduler runs the scheduling stages of a grid zone: per-subcentral
// Plan and Execution solves, dispatch allocation and reporting. Subcentral
// work fans out on a bounded worker pool and a failing subcentral never stops
// its siblings.
package scheduler
