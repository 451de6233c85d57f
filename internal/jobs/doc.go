// Package jobs turns extractions and manual input into work orders, wiring
// customer matching, scheduling, and the job state machine together.
package jobs
