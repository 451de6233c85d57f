package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const customerColumns = "id, public_id, user_id, name, phone, email, address, tags_json, total_jobs, total_spent, average_job_value, last_contact_date, status, created_at, updated_at"

// CreateCustomer inserts a new customer record. Phone must already be
// normalized and email lowercased by the caller. A concurrent insert with the
// same (user_id, phone) loses the unique-index race and gets
// ErrDuplicateCustomer; callers re-fetch and treat the winner as a match.
func (s *Store) CreateCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	if customer == nil {
		return nil, errors.New("customer is nil")
	}
	if customer.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if customer.PublicID == "" {
		customer.PublicID = uuid.NewString()
	}
	if customer.Status == "" {
		customer.Status = CustomerStatusActive
	}
	tagsJSON, err := marshalTags(customer.Tags)
	if err != nil {
		return nil, err
	}

	timestamp := nowStamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO customers (
            public_id, user_id, name, phone, email, address, tags_json,
            last_contact_date, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.PublicID,
		customer.UserID,
		nullableString(customer.Name),
		nullableString(customer.Phone),
		nullableString(customer.Email),
		nullableString(customer.Address),
		tagsJSON,
		nullableTime(customer.LastContactDate),
		customer.Status,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateCustomer, err)
		}
		return nil, fmt.Errorf("insert customer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetCustomer(ctx, customer.UserID, id)
}

// GetCustomer fetches a customer scoped to its owner.
func (s *Store) GetCustomer(ctx context.Context, userID string, id int64) (*Customer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ? AND user_id = ?`, id, userID)
	customer, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

// FindCustomerByPhone returns the owner's customer with the given normalized
// phone, or nil.
func (s *Store) FindCustomerByPhone(ctx context.Context, userID, normalizedPhone string) (*Customer, error) {
	if normalizedPhone == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = ? AND phone = ? LIMIT 1`,
		userID, normalizedPhone)
	customer, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer by phone: %w", err)
	}
	return customer, nil
}

// FindCustomerByEmail returns the owner's customer with the given lowercased
// email, or nil.
func (s *Store) FindCustomerByEmail(ctx context.Context, userID, email string) (*Customer, error) {
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = ? AND email = ? LIMIT 1`,
		userID, email)
	customer, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer by email: %w", err)
	}
	return customer, nil
}

// ListCustomers returns the owner's customers ordered by creation time.
func (s *Store) ListCustomers(ctx context.Context, userID string) ([]*Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []*Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// UpdateCustomer persists profile fields. Aggregate counters are never
// written here; use the Apply* increments or RefreshCustomerAggregates.
func (s *Store) UpdateCustomer(ctx context.Context, customer *Customer) error {
	if customer == nil {
		return errors.New("customer is nil")
	}
	tagsJSON, err := marshalTags(customer.Tags)
	if err != nil {
		return err
	}
	customer.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE customers
         SET name = ?, phone = ?, email = ?, address = ?, tags_json = ?,
             last_contact_date = ?, status = ?, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		nullableString(customer.Name),
		nullableString(customer.Phone),
		nullableString(customer.Email),
		nullableString(customer.Address),
		tagsJSON,
		nullableTime(customer.LastContactDate),
		customer.Status,
		customer.UpdatedAt.Format(time.RFC3339Nano),
		customer.ID,
		customer.UserID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicateCustomer, err)
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// SoftDeleteCustomer marks the customer former and clears contact fields.
// The row is retained for job referential integrity.
func (s *Store) SoftDeleteCustomer(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE customers
         SET status = ?, phone = NULL, email = NULL, address = NULL, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		CustomerStatusFormer,
		nowStamp(),
		id,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("soft delete customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ApplyJobCreated atomically bumps the customer's job counter and refreshes
// the last contact date. Never read-modify-write these counters in Go;
// concurrent job creation for the same customer would lose updates.
func (s *Store) ApplyJobCreated(ctx context.Context, userID string, customerID int64) error {
	timestamp := nowStamp()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE customers
         SET total_jobs = total_jobs + 1, last_contact_date = ?, updated_at = ?
         WHERE id = ? AND user_id = ?`,
		timestamp, timestamp, customerID, userID,
	)
	if err != nil {
		return fmt.Errorf("apply job created: %w", err)
	}
	return nil
}

// ApplyJobDeleted atomically decrements the customer's job counter.
func (s *Store) ApplyJobDeleted(ctx context.Context, userID string, customerID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE customers
         SET total_jobs = MAX(total_jobs - 1, 0), updated_at = ?
         WHERE id = ? AND user_id = ?`,
		nowStamp(), customerID, userID,
	)
	if err != nil {
		return fmt.Errorf("apply job deleted: %w", err)
	}
	return nil
}

// ApplyJobCompleted atomically adds the completed job's cost to the
// customer's spend and recomputes the average in SQL.
func (s *Store) ApplyJobCompleted(ctx context.Context, userID string, customerID int64, amount float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE customers
         SET total_spent = total_spent + ?,
             average_job_value = CASE WHEN total_jobs > 0
                 THEN (total_spent + ?) / total_jobs
                 ELSE total_spent + ? END,
             updated_at = ?
         WHERE id = ? AND user_id = ?`,
		amount, amount, amount, nowStamp(), customerID, userID,
	)
	if err != nil {
		return fmt.Errorf("apply job completed: %w", err)
	}
	return nil
}

// RefreshCustomerAggregates recomputes counters from the jobs table in one
// set-based statement. Run periodically to correct drift; increments remain
// the hot path.
func (s *Store) RefreshCustomerAggregates(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE customers SET
            total_jobs = (
                SELECT COUNT(1) FROM jobs
                WHERE jobs.customer_id = customers.id AND jobs.status != 'cancelled'
            ),
            total_spent = COALESCE((
                SELECT SUM(actual_cost) FROM jobs
                WHERE jobs.customer_id = customers.id AND jobs.status = 'completed'
            ), 0),
            average_job_value = COALESCE((
                SELECT AVG(actual_cost) FROM jobs
                WHERE jobs.customer_id = customers.id AND jobs.status = 'completed'
            ), 0),
            updated_at = ?`,
		nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("refresh customer aggregates: %w", err)
	}
	return res.RowsAffected()
}

func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

func scanCustomer(scanner interface{ Scan(dest ...any) error }) (*Customer, error) {
	var (
		id              int64
		publicID        string
		userID          string
		name            sql.NullString
		phoneVal        sql.NullString
		email           sql.NullString
		address         sql.NullString
		tagsJSON        sql.NullString
		totalJobs       int
		totalSpent      float64
		averageJobValue float64
		lastContactRaw  sql.NullString
		statusStr       string
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&publicID,
		&userID,
		&name,
		&phoneVal,
		&email,
		&address,
		&tagsJSON,
		&totalJobs,
		&totalSpent,
		&averageJobValue,
		&lastContactRaw,
		&statusStr,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	customer := &Customer{
		ID:              id,
		PublicID:        publicID,
		UserID:          userID,
		Name:            name.String,
		Phone:           phoneVal.String,
		Email:           email.String,
		Address:         address.String,
		TotalJobs:       totalJobs,
		TotalSpent:      totalSpent,
		AverageJobValue: averageJobValue,
		LastContactDate: timePointer(lastContactRaw),
		Status:          CustomerStatus(statusStr),
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &customer.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		customer.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		customer.UpdatedAt = updated
	}
	return customer, nil
}
