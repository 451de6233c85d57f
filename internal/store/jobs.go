package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, public_id, user_id, customer_id, extraction_id, title, service_type, description, status, priority, estimated_cost, actual_cost, scheduled_date, address, completed_at, created_at, updated_at"

// ErrIllegalTransition indicates a job status change outside the state machine.
var ErrIllegalTransition = errors.New("illegal job status transition")

// CreateJob inserts a work order and atomically bumps the owning customer's
// job counter within the same transaction.
func (s *Store) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if job.UserID == "" || job.CustomerID == 0 {
		return nil, errors.New("job requires user id and customer id")
	}
	if job.PublicID == "" {
		job.PublicID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = JobStatusQuoting
	}
	if job.Priority == "" {
		job.Priority = JobPriorityNormal
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := nowStamp()
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
            public_id, user_id, customer_id, extraction_id, title,
            service_type, description, status, priority,
            estimated_cost, actual_cost, scheduled_date, address,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.PublicID,
		job.UserID,
		job.CustomerID,
		nullableInt64(job.ExtractionID),
		job.Title,
		nullableString(job.ServiceType),
		nullableString(job.Description),
		job.Status,
		job.Priority,
		job.EstimatedCost,
		job.ActualCost,
		nullableTime(job.ScheduledDate),
		nullableString(job.Address),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE customers
         SET total_jobs = total_jobs + 1, last_contact_date = ?, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		timestamp, timestamp, job.CustomerID, job.UserID,
	); err != nil {
		return nil, fmt.Errorf("bump customer job counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit job: %w", err)
	}
	return s.GetJob(ctx, job.UserID, id)
}

// GetJob fetches a job scoped to its owner.
func (s *Store) GetJob(ctx context.Context, userID string, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the owner's jobs, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, userID string, statuses ...JobStatus) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id = ?`
	orderClause := ` ORDER BY created_at`

	args := []any{userID}
	query := baseQuery + orderClause
	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		for _, status := range statuses {
			args = append(args, status)
		}
		query = baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// TransitionJobStatus moves a job through the state machine inside one
// transaction. Entering completed stamps completed_at and credits the
// customer's spend; leaving completed clears the stamp and reverses it.
func (s *Store) TransitionJobStatus(ctx context.Context, userID string, id int64, to JobStatus) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job for transition: %w", err)
	}

	if !JobTransitionAllowed(job.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, to)
	}

	now := time.Now().UTC()
	var completedAt any
	switch {
	case to == JobStatusCompleted:
		completedAt = now.Format(time.RFC3339Nano)
	default:
		completedAt = nil
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		to, completedAt, now.Format(time.RFC3339Nano), id, userID,
	); err != nil {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	// Spend aggregates follow completion state so reversals stay balanced.
	if to == JobStatusCompleted {
		if err := applyCompletedDelta(ctx, tx, userID, job.CustomerID, job.ActualCost); err != nil {
			return nil, err
		}
	} else if job.Status == JobStatusCompleted {
		if err := applyCompletedDelta(ctx, tx, userID, job.CustomerID, -job.ActualCost); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return s.GetJob(ctx, userID, id)
}

// SetJobActualCost records the final cost for a job.
func (s *Store) SetJobActualCost(ctx context.Context, userID string, id int64, cost float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET actual_cost = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		cost, nowStamp(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("set job actual cost: %w", err)
	}
	return nil
}

// DeleteJob hard-deletes a job and decrements the linked customer's job
// counter in the same transaction.
func (s *Store) DeleteJob(ctx context.Context, userID string, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var customerID int64
	err = tx.QueryRowContext(ctx,
		`SELECT customer_id FROM jobs WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load job for delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE customers SET total_jobs = MAX(total_jobs - 1, 0), updated_at = ? WHERE id = ? AND user_id = ?`,
		nowStamp(), customerID, userID,
	); err != nil {
		return false, fmt.Errorf("decrement customer job counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

func applyCompletedDelta(ctx context.Context, tx *sql.Tx, userID string, customerID int64, amount float64) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE customers
         SET total_spent = MAX(total_spent + ?, 0),
             average_job_value = CASE WHEN total_jobs > 0
                 THEN MAX(total_spent + ?, 0) / total_jobs
                 ELSE MAX(total_spent + ?, 0) END,
             updated_at = ?
         WHERE id = ? AND user_id = ?`,
		amount, amount, amount, nowStamp(), customerID, userID,
	)
	if err != nil {
		return fmt.Errorf("apply completed delta: %w", err)
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            int64
		publicID      string
		userID        string
		customerID    int64
		extractionID  sql.NullInt64
		title         string
		serviceType   sql.NullString
		description   sql.NullString
		statusStr     string
		priorityStr   string
		estimatedCost float64
		actualCost    float64
		scheduledRaw  sql.NullString
		address       sql.NullString
		completedRaw  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&publicID,
		&userID,
		&customerID,
		&extractionID,
		&title,
		&serviceType,
		&description,
		&statusStr,
		&priorityStr,
		&estimatedCost,
		&actualCost,
		&scheduledRaw,
		&address,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		PublicID:      publicID,
		UserID:        userID,
		CustomerID:    customerID,
		ExtractionID:  extractionID.Int64,
		Title:         title,
		ServiceType:   serviceType.String,
		Description:   description.String,
		Status:        JobStatus(statusStr),
		Priority:      JobPriority(priorityStr),
		EstimatedCost: estimatedCost,
		ActualCost:    actualCost,
		ScheduledDate: timePointer(scheduledRaw),
		Address:       address.String,
		CompletedAt:   timePointer(completedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
