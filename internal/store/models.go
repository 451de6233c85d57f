package store

import (
	"strings"
	"time"
)

// CallStatus represents the lifecycle of a call record moving through the
// intake pipeline.
type CallStatus string

const (
	CallStatusPending      CallStatus = "pending"
	CallStatusTranscribing CallStatus = "transcribing"
	CallStatusTranscribed  CallStatus = "transcribed"
	CallStatusExtracting   CallStatus = "extracting"
	CallStatusExtracted    CallStatus = "extracted"
	CallStatusMatching     CallStatus = "matching"
	CallStatusReview       CallStatus = "review"
	CallStatusCompleted    CallStatus = "completed"
	CallStatusFailed       CallStatus = "failed"
)

// DaemonStopReason is the error message set when calls are failed due to
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allCallStatuses = []CallStatus{
	CallStatusPending,
	CallStatusTranscribing,
	CallStatusTranscribed,
	CallStatusExtracting,
	CallStatusExtracted,
	CallStatusMatching,
	CallStatusReview,
	CallStatusCompleted,
	CallStatusFailed,
}

var callStatusSet = func() map[CallStatus]struct{} {
	set := make(map[CallStatus]struct{}, len(allCallStatuses))
	for _, status := range allCallStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingCallStatuses = map[CallStatus]struct{}{
	CallStatusTranscribing: {},
	CallStatusExtracting:   {},
	CallStatusMatching:     {},
}

// AllCallStatuses returns the ordered list of known call statuses.
func AllCallStatuses() []CallStatus {
	cp := make([]CallStatus, len(allCallStatuses))
	copy(cp, allCallStatuses)
	return cp
}

// ParseCallStatus converts a string into a known CallStatus.
func ParseCallStatus(value string) (CallStatus, bool) {
	normalized := CallStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := callStatusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status CallStatus) bool {
	_, ok := processingCallStatuses[status]
	return ok
}

// Call represents one inbound phone call persisted in SQLite.
type Call struct {
	ID                   int64
	UserID               string
	AudioPath            string
	Status               CallStatus
	TranscriptText       string
	TranscriptConfidence float64
	DurationSeconds      float64
	Language             string
	ExtractionID         int64
	ErrorMessage         string
	NeedsReview          bool
	ReviewReason         string
	LastHeartbeat        *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsProcessing returns true when the call is in an in-flight stage.
func (c Call) IsProcessing() bool {
	return IsProcessingStatus(c.Status)
}

// HasTranscript reports whether transcription already produced text.
func (c Call) HasTranscript() bool {
	return strings.TrimSpace(c.TranscriptText) != ""
}

// SetFailed marks the call as failed with the given error message and clears
// the heartbeat.
func (c *Call) SetFailed(message string) {
	c.Status = CallStatusFailed
	c.ErrorMessage = message
	c.LastHeartbeat = nil
}

// CustomerStatus enumerates customer lifecycle states. Soft-deleted customers
// become former; blacklist is modeled as a status of its own.
type CustomerStatus string

const (
	CustomerStatusActive      CustomerStatus = "active"
	CustomerStatusFormer      CustomerStatus = "former"
	CustomerStatusBlacklisted CustomerStatus = "blacklisted"
)

// ParseCustomerStatus converts a string into a known CustomerStatus.
func ParseCustomerStatus(value string) (CustomerStatus, bool) {
	switch CustomerStatus(strings.ToLower(strings.TrimSpace(value))) {
	case CustomerStatusActive:
		return CustomerStatusActive, true
	case CustomerStatusFormer:
		return CustomerStatusFormer, true
	case CustomerStatusBlacklisted:
		return CustomerStatusBlacklisted, true
	default:
		return "", false
	}
}

// Customer is a deduplicated caller identity owned by one user.
type Customer struct {
	ID              int64
	PublicID        string
	UserID          string
	Name            string
	Phone           string
	Email           string
	Address         string
	Tags            []string
	TotalJobs       int
	TotalSpent      float64
	AverageJobValue float64
	LastContactDate *time.Time
	Status          CustomerStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Extraction is the structured appointment data produced for one call.
// Confidence is always stored on the 0-1 scale.
type Extraction struct {
	ID                int64
	CallID            int64
	UserID            string
	CustomerID        int64
	HasAppointment    bool
	CustomerName      string
	CustomerPhone     string
	CustomerEmail     string
	ServiceType       string
	Description       string
	Urgency           string
	PreferredDate     string
	PreferredTime     string
	Flexibility       string
	Address           string
	AddressConfidence float64
	QuotedPrice       float64
	BudgetMentioned   bool
	PricingNote       string
	Confidence        float64
	Issues            []string
	Reviewed          bool
	ManualOverride    bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FeedbackRecord is one append-only human correction event.
type FeedbackRecord struct {
	ID               int64
	UserID           string
	CallID           int64
	ExtractionID     int64
	Category         string
	Rating           int
	OriginalValue    string
	CorrectedValue   string
	Comment          string
	ModelImprovement bool
	ConfidenceDelta  float64
	CreatedAt        time.Time
}

// JobStatus enumerates the work-order state machine.
type JobStatus string

const (
	JobStatusQuoting    JobStatus = "quoting"
	JobStatusConfirmed  JobStatus = "confirmed"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	switch JobStatus(strings.ToLower(strings.TrimSpace(value))) {
	case JobStatusQuoting:
		return JobStatusQuoting, true
	case JobStatusConfirmed:
		return JobStatusConfirmed, true
	case JobStatusInProgress:
		return JobStatusInProgress, true
	case JobStatusCompleted:
		return JobStatusCompleted, true
	case JobStatusCancelled:
		return JobStatusCancelled, true
	default:
		return "", false
	}
}

// jobTransitions lists the allowed forward edges of the status machine.
// Cancelled is reachable from any non-terminal state; completed can move
// back to in_progress for rework, clearing completed_at.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusQuoting:    {JobStatusConfirmed, JobStatusCancelled},
	JobStatusConfirmed:  {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusCancelled},
	JobStatusCompleted:  {JobStatusInProgress},
	JobStatusCancelled:  {},
}

// JobTransitionAllowed reports whether from -> to is a legal status change.
func JobTransitionAllowed(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobPriority enumerates work-order priorities.
type JobPriority string

const (
	JobPriorityLow    JobPriority = "low"
	JobPriorityNormal JobPriority = "normal"
	JobPriorityHigh   JobPriority = "high"
	JobPriorityUrgent JobPriority = "urgent"
)

// Job is the terminal work-order entity.
type Job struct {
	ID            int64
	PublicID      string
	UserID        string
	CustomerID    int64
	ExtractionID  int64
	Title         string
	ServiceType   string
	Description   string
	Status        JobStatus
	Priority      JobPriority
	EstimatedCost float64
	ActualCost    float64
	ScheduledDate *time.Time
	Address       string
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HealthSummary describes aggregated call counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Review     int
	Failed     int
	Completed  int
}
