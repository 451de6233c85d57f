// Package pipeline drives calls through transcription, extraction, and
// matching. A manager polls the store for the next actionable call, hands
// it to the stage registered for its status, and advances or parks it based
// on the outcome. Stage handlers stay ignorant of scheduling; the manager
// owns status transitions, heartbeats, and failure classification.
package pipeline
