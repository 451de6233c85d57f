package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const callColumns = "id, user_id, audio_path, status, transcript_text, transcript_confidence, duration_seconds, language, extraction_id, error_message, needs_review, review_reason, last_heartbeat, created_at, updated_at"

// NewCall inserts a pending call awaiting transcription.
func (s *Store) NewCall(ctx context.Context, userID, audioPath string) (*Call, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	timestamp := nowStamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO calls (user_id, audio_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		userID,
		nullableString(audioPath),
		CallStatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCall(ctx, id)
}

// NewTranscribedCall inserts a call that already carries a transcript and
// skips the transcription stage.
func (s *Store) NewTranscribedCall(ctx context.Context, userID, transcript string, confidence, durationSeconds float64, language string) (*Call, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	timestamp := nowStamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO calls (user_id, status, transcript_text, transcript_confidence, duration_seconds, language, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID,
		CallStatusTranscribed,
		transcript,
		confidence,
		durationSeconds,
		nullableString(language),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transcribed call: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCall(ctx, id)
}

// GetCall fetches a call by identifier. Returns nil when absent.
func (s *Store) GetCall(ctx context.Context, id int64) (*Call, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = ?`, id)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

// GetUserCall fetches a call scoped to its owner. Owner mismatch is
// indistinguishable from absence.
func (s *Store) GetUserCall(ctx context.Context, userID string, id int64) (*Call, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE id = ? AND user_id = ?`, id, userID)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return call, nil
}

// UpdateCall persists changes to an existing call.
func (s *Store) UpdateCall(ctx context.Context, call *Call) error {
	if call == nil {
		return errors.New("call is nil")
	}
	call.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE calls
         SET audio_path = ?, status = ?, transcript_text = ?, transcript_confidence = ?,
             duration_seconds = ?, language = ?, extraction_id = ?, error_message = ?,
             needs_review = ?, review_reason = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(call.AudioPath),
		call.Status,
		nullableString(call.TranscriptText),
		call.TranscriptConfidence,
		call.DurationSeconds,
		nullableString(call.Language),
		nullableInt64(call.ExtractionID),
		nullableString(call.ErrorMessage),
		boolToInt(call.NeedsReview),
		nullableString(call.ReviewReason),
		nullableTime(call.LastHeartbeat),
		call.UpdatedAt.Format(time.RFC3339Nano),
		call.ID,
	)
	if err != nil {
		return fmt.Errorf("update call: %w", err)
	}
	return nil
}

// ListCalls returns calls filtered by status set (or all calls when no status
// is provided), ordered by creation time.
func (s *Store) ListCalls(ctx context.Context, statuses ...CallStatus) ([]*Call, error) {
	baseQuery := `SELECT ` + callColumns + ` FROM calls`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []*Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// NextCallForStatuses returns the oldest call matching any provided status.
func (s *Store) NextCallForStatuses(ctx context.Context, statuses ...CallStatus) (*Call, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	query := `SELECT ` + callColumns + ` FROM calls WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	call, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return call, nil
}

// UpdateCallHeartbeat updates the last heartbeat timestamp for an in-flight call.
func (s *Store) UpdateCallHeartbeat(ctx context.Context, id int64) error {
	timestamp := nowStamp()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE calls SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		timestamp, timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns calls stuck in processing back to pending
// when their heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE calls
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		CallStatusPending,
		nowStamp(),
		CallStatusTranscribing,
		CallStatusExtracting,
		CallStatusMatching,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale calls: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing resets calls left in processing states back to pending,
// regardless of heartbeat. Used at daemon startup.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE calls
         SET status = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		CallStatusPending,
		nowStamp(),
		CallStatusTranscribing,
		CallStatusExtracting,
		CallStatusMatching,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck calls: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedCalls moves failed calls back to pending for reprocessing. With
// no ids, every failed call is retried.
func (s *Store) RetryFailedCalls(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE calls SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
			CallStatusPending,
			nowStamp(),
			CallStatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed calls: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, CallStatusPending, nowStamp())
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE calls SET status = ?, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(CallStatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected calls: %w", err)
	}
	return res.RowsAffected()
}

// CallStats returns a count of calls grouped by status.
func (s *Store) CallStats(ctx context.Context) (map[CallStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM calls GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("call stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[CallStatus]int)
	for rows.Next() {
		var status CallStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates call state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.CallStats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case CallStatusPending:
			health.Pending += count
		case CallStatusFailed:
			health.Failed += count
		case CallStatusReview:
			health.Review += count
		case CallStatusCompleted:
			health.Completed += count
		default:
			if IsProcessingStatus(status) {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// ClearCompletedCalls removes completed calls.
func (s *Store) ClearCompletedCalls(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE status = ?`, CallStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed calls: %w", err)
	}
	return res.RowsAffected()
}

func scanCall(scanner interface{ Scan(dest ...any) error }) (*Call, error) {
	var (
		id              int64
		userID          string
		audioPath       sql.NullString
		statusStr       string
		transcript      sql.NullString
		transcriptConf  sql.NullFloat64
		durationSeconds sql.NullFloat64
		language        sql.NullString
		extractionID    sql.NullInt64
		errorMessage    sql.NullString
		needsReview     sql.NullInt64
		reviewReason    sql.NullString
		heartbeatRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&audioPath,
		&statusStr,
		&transcript,
		&transcriptConf,
		&durationSeconds,
		&language,
		&extractionID,
		&errorMessage,
		&needsReview,
		&reviewReason,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	call := &Call{
		ID:                   id,
		UserID:               userID,
		AudioPath:            audioPath.String,
		Status:               CallStatus(statusStr),
		TranscriptText:       transcript.String,
		TranscriptConfidence: transcriptConf.Float64,
		DurationSeconds:      durationSeconds.Float64,
		Language:             language.String,
		ExtractionID:         extractionID.Int64,
		ErrorMessage:         errorMessage.String,
		ReviewReason:         reviewReason.String,
		LastHeartbeat:        timePointer(heartbeatRaw),
	}
	if needsReview.Valid {
		call.NeedsReview = needsReview.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		call.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		call.UpdatedAt = updated
	}
	return call, nil
}
