package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const feedbackColumns = "id, user_id, call_id, extraction_id, category, rating, original_value, corrected_value, comment, model_improvement, confidence_delta, created_at"

// CreateFeedback inserts one append-only correction event. Feedback rows are
// never updated or deleted.
func (s *Store) CreateFeedback(ctx context.Context, record *FeedbackRecord) (*FeedbackRecord, error) {
	if record == nil {
		return nil, errors.New("feedback record is nil")
	}
	if record.UserID == "" || record.ExtractionID == 0 {
		return nil, errors.New("feedback requires user id and extraction id")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feedback (
            user_id, call_id, extraction_id, category, rating,
            original_value, corrected_value, comment,
            model_improvement, confidence_delta, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID,
		record.CallID,
		record.ExtractionID,
		record.Category,
		record.Rating,
		nullableString(record.OriginalValue),
		nullableString(record.CorrectedValue),
		nullableString(record.Comment),
		boolToInt(record.ModelImprovement),
		record.ConfidenceDelta,
		nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetFeedback(ctx, record.UserID, id)
}

// GetFeedback fetches one feedback record scoped to its owner.
func (s *Store) GetFeedback(ctx context.Context, userID string, id int64) (*FeedbackRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback WHERE id = ? AND user_id = ?`, id, userID)
	record, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return record, nil
}

// ListFeedbackSince returns the owner's feedback created after the cutoff,
// oldest first.
func (s *Store) ListFeedbackSince(ctx context.Context, userID string, since time.Time) ([]*FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
         WHERE user_id = ? AND created_at >= ? ORDER BY created_at`,
		userID, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var records []*FeedbackRecord
	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListFeedbackForExtraction returns every correction recorded against one
// extraction, oldest first.
func (s *Store) ListFeedbackForExtraction(ctx context.Context, userID string, extractionID int64) ([]*FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
         WHERE user_id = ? AND extraction_id = ? ORDER BY created_at`,
		userID, extractionID)
	if err != nil {
		return nil, fmt.Errorf("list feedback for extraction: %w", err)
	}
	defer rows.Close()

	var records []*FeedbackRecord
	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanFeedback(scanner interface{ Scan(dest ...any) error }) (*FeedbackRecord, error) {
	var (
		id               int64
		userID           string
		callID           int64
		extractionID     int64
		category         string
		rating           int
		originalValue    sql.NullString
		correctedValue   sql.NullString
		comment          sql.NullString
		modelImprovement sql.NullInt64
		confidenceDelta  float64
		createdRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&callID,
		&extractionID,
		&category,
		&rating,
		&originalValue,
		&correctedValue,
		&comment,
		&modelImprovement,
		&confidenceDelta,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	record := &FeedbackRecord{
		ID:               id,
		UserID:           userID,
		CallID:           callID,
		ExtractionID:     extractionID,
		Category:         category,
		Rating:           rating,
		OriginalValue:    originalValue.String,
		CorrectedValue:   correctedValue.String,
		Comment:          comment.String,
		ModelImprovement: modelImprovement.Int64 != 0,
		ConfidenceDelta:  confidenceDelta,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}
