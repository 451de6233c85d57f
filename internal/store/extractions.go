package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const extractionColumns = "id, call_id, user_id, customer_id, has_appointment, customer_name, customer_phone, customer_email, service_type, description, urgency, preferred_date, preferred_time, flexibility, address, address_confidence, quoted_price, budget_mentioned, pricing_note, confidence, issues_json, reviewed, manual_override, created_at, updated_at"

// CreateExtraction inserts the structured result for a call.
func (s *Store) CreateExtraction(ctx context.Context, extraction *Extraction) (*Extraction, error) {
	if extraction == nil {
		return nil, errors.New("extraction is nil")
	}
	if extraction.CallID == 0 || extraction.UserID == "" {
		return nil, errors.New("extraction requires call id and user id")
	}
	issuesJSON, err := marshalIssues(extraction.Issues)
	if err != nil {
		return nil, err
	}

	timestamp := nowStamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO extractions (
            call_id, user_id, customer_id, has_appointment,
            customer_name, customer_phone, customer_email,
            service_type, description, urgency,
            preferred_date, preferred_time, flexibility,
            address, address_confidence,
            quoted_price, budget_mentioned, pricing_note,
            confidence, issues_json, reviewed, manual_override,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		extraction.CallID,
		extraction.UserID,
		nullableInt64(extraction.CustomerID),
		boolToInt(extraction.HasAppointment),
		nullableString(extraction.CustomerName),
		nullableString(extraction.CustomerPhone),
		nullableString(extraction.CustomerEmail),
		nullableString(extraction.ServiceType),
		nullableString(extraction.Description),
		nullableString(extraction.Urgency),
		nullableString(extraction.PreferredDate),
		nullableString(extraction.PreferredTime),
		nullableString(extraction.Flexibility),
		nullableString(extraction.Address),
		extraction.AddressConfidence,
		extraction.QuotedPrice,
		boolToInt(extraction.BudgetMentioned),
		nullableString(extraction.PricingNote),
		extraction.Confidence,
		issuesJSON,
		boolToInt(extraction.Reviewed),
		boolToInt(extraction.ManualOverride),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert extraction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetExtraction(ctx, extraction.UserID, id)
}

// GetExtraction fetches an extraction scoped to its owner.
func (s *Store) GetExtraction(ctx context.Context, userID string, id int64) (*Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE id = ? AND user_id = ?`, id, userID)
	extraction, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction: %w", err)
	}
	return extraction, nil
}

// GetExtractionByCall fetches the extraction attached to a call, or nil.
func (s *Store) GetExtractionByCall(ctx context.Context, userID string, callID int64) (*Extraction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+extractionColumns+` FROM extractions WHERE call_id = ? AND user_id = ? ORDER BY id DESC LIMIT 1`,
		callID, userID)
	extraction, err := scanExtraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction by call: %w", err)
	}
	return extraction, nil
}

// UpdateExtraction persists reviewable fields of an extraction.
func (s *Store) UpdateExtraction(ctx context.Context, extraction *Extraction) error {
	if extraction == nil {
		return errors.New("extraction is nil")
	}
	issuesJSON, err := marshalIssues(extraction.Issues)
	if err != nil {
		return err
	}
	extraction.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE extractions
         SET customer_id = ?, has_appointment = ?, customer_name = ?, customer_phone = ?,
             customer_email = ?, service_type = ?, description = ?, urgency = ?,
             preferred_date = ?, preferred_time = ?, flexibility = ?, address = ?,
             address_confidence = ?, quoted_price = ?, budget_mentioned = ?, pricing_note = ?,
             confidence = ?, issues_json = ?, reviewed = ?, manual_override = ?, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		nullableInt64(extraction.CustomerID),
		boolToInt(extraction.HasAppointment),
		nullableString(extraction.CustomerName),
		nullableString(extraction.CustomerPhone),
		nullableString(extraction.CustomerEmail),
		nullableString(extraction.ServiceType),
		nullableString(extraction.Description),
		nullableString(extraction.Urgency),
		nullableString(extraction.PreferredDate),
		nullableString(extraction.PreferredTime),
		nullableString(extraction.Flexibility),
		nullableString(extraction.Address),
		extraction.AddressConfidence,
		extraction.QuotedPrice,
		boolToInt(extraction.BudgetMentioned),
		nullableString(extraction.PricingNote),
		extraction.Confidence,
		issuesJSON,
		boolToInt(extraction.Reviewed),
		boolToInt(extraction.ManualOverride),
		extraction.UpdatedAt.Format(time.RFC3339Nano),
		extraction.ID,
		extraction.UserID,
	)
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	return nil
}

// AdjustExtractionConfidence applies a delta to the stored confidence,
// clamping into [0,1] inside SQL so concurrent feedback never races a Go-side
// read-modify-write.
func (s *Store) AdjustExtractionConfidence(ctx context.Context, userID string, id int64, delta float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE extractions
         SET confidence = MIN(1.0, MAX(0.0, confidence + ?)), updated_at = ?
         WHERE id = ? AND user_id = ?`,
		delta, nowStamp(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("adjust extraction confidence: %w", err)
	}
	return nil
}

// ConfidencesSince returns extraction confidences created after the cutoff,
// used for feedback summary aggregation.
func (s *Store) ConfidencesSince(ctx context.Context, userID string, since time.Time) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT confidence FROM extractions WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("confidences since: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func marshalIssues(issues []string) (any, error) {
	if len(issues) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return nil, fmt.Errorf("marshal issues: %w", err)
	}
	return string(data), nil
}

func scanExtraction(scanner interface{ Scan(dest ...any) error }) (*Extraction, error) {
	var (
		id             int64
		callID         int64
		userID         string
		customerID     sql.NullInt64
		hasAppointment sql.NullInt64
		customerName   sql.NullString
		customerPhone  sql.NullString
		customerEmail  sql.NullString
		serviceType    sql.NullString
		description    sql.NullString
		urgency        sql.NullString
		preferredDate  sql.NullString
		preferredTime  sql.NullString
		flexibility    sql.NullString
		address        sql.NullString
		addressConf    float64
		quotedPrice    float64
		budget         sql.NullInt64
		pricingNote    sql.NullString
		confidence     float64
		issuesJSON     sql.NullString
		reviewed       sql.NullInt64
		manualOverride sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&callID,
		&userID,
		&customerID,
		&hasAppointment,
		&customerName,
		&customerPhone,
		&customerEmail,
		&serviceType,
		&description,
		&urgency,
		&preferredDate,
		&preferredTime,
		&flexibility,
		&address,
		&addressConf,
		&quotedPrice,
		&budget,
		&pricingNote,
		&confidence,
		&issuesJSON,
		&reviewed,
		&manualOverride,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	extraction := &Extraction{
		ID:                id,
		CallID:            callID,
		UserID:            userID,
		CustomerID:        customerID.Int64,
		HasAppointment:    hasAppointment.Int64 != 0,
		CustomerName:      customerName.String,
		CustomerPhone:     customerPhone.String,
		CustomerEmail:     customerEmail.String,
		ServiceType:       serviceType.String,
		Description:       description.String,
		Urgency:           urgency.String,
		PreferredDate:     preferredDate.String,
		PreferredTime:     preferredTime.String,
		Flexibility:       flexibility.String,
		Address:           address.String,
		AddressConfidence: addressConf,
		QuotedPrice:       quotedPrice,
		BudgetMentioned:   budget.Int64 != 0,
		PricingNote:       pricingNote.String,
		Confidence:        confidence,
		Reviewed:          reviewed.Int64 != 0,
		ManualOverride:    manualOverride.Int64 != 0,
	}
	if issuesJSON.Valid && issuesJSON.String != "" {
		if err := json.Unmarshal([]byte(issuesJSON.String), &extraction.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		extraction.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		extraction.UpdatedAt = updated
	}
	return extraction, nil
}
