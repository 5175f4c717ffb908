package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// customerColumns is the column list used for SELECT statements on the customers table.
const customerColumns = `id, user_id, name, email, phone, age, gender,
	left_eye_power, right_eye_power, left_sphere, right_sphere,
	left_cylinder, right_cylinder, left_axis, right_axis, left_add, right_add,
	left_pd_near, right_pd_distance, lens_type, doctor_name,
	include_prescription, prescription_notes, notes, created_at`

// consultationColumns is the column list used for SELECT statements on consultation_requests.
const consultationColumns = `id, name, email, phone, message, status, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// argList hands out positional placeholders in order.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func queryCreateCustomer(ctx context.Context, db executor, c *model.Customer) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO customers (
			id, user_id, name, email, phone, age, gender,
			left_eye_power, right_eye_power, left_sphere, right_sphere,
			left_cylinder, right_cylinder, left_axis, right_axis, left_add, right_add,
			left_pd_near, right_pd_distance, lens_type, doctor_name,
			include_prescription, prescription_notes, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23, $24
		)
		RETURNING created_at`,
		c.ID,
		nullString(c.UserID),
		c.Name,
		c.Email,
		c.Phone,
		nullIntPtr(c.Age),
		nullString(c.Gender),
		nullString(c.LeftEyePower),
		nullString(c.RightEyePower),
		nullString(c.LeftSphere),
		nullString(c.RightSphere),
		nullString(c.LeftCylinder),
		nullString(c.RightCylinder),
		nullString(c.LeftAxis),
		nullString(c.RightAxis),
		nullString(c.LeftAdd),
		nullString(c.RightAdd),
		nullString(c.LeftPDNear),
		nullString(c.RightPDDistance),
		nullString(c.LensType),
		nullString(c.DoctorName),
		c.IncludePrescription,
		nullString(c.PrescriptionNotes),
		nullString(c.Notes),
	).Scan(&c.CreatedAt)
}

func queryGetCustomer(ctx context.Context, db executor, id string) (*model.Customer, error) {
	row := db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

func queryListCustomers(ctx context.Context, db executor, filter model.CustomerFilter) ([]*model.Customer, int, error) {
	var (
		whereClauses []string
		args         argList
	)

	if filter.UserID != "" {
		whereClauses = append(whereClauses, "user_id = "+args.add(filter.UserID))
	}
	if !filter.CreatedSince.IsZero() {
		whereClauses = append(whereClauses, "created_at >= "+args.add(filter.CreatedSince))
	}
	if filter.Search != "" {
		p := args.add(filter.Search)
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(name ILIKE '%%' || %s || '%%' OR email ILIKE '%%' || %s || '%%' OR phone LIKE '%%' || %s || '%%' OR lens_type ILIKE '%%' || %s || '%%')",
			p, p, p, p))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + customerColumns + " FROM customers" + whereSQL + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		dataQuery += " LIMIT " + args.add(filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + args.add(filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []*model.Customer
	var total int
	for rows.Next() {
		c, t, err := scanCustomerWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customers: %w", err)
		}
		total = t
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan customers: %w", err)
	}

	return customers, total, nil
}

func queryDeleteCustomer(ctx context.Context, db executor, id string) error {
	return execExpectingRow(ctx, db, `DELETE FROM customers WHERE id = $1`, id)
}

func queryCreateConsultation(ctx context.Context, db executor, r *model.ConsultationRequest) error {
	if r.Status == "" {
		r.Status = model.ConsultationPending
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO consultation_requests (id, name, email, phone, message, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		r.ID,
		r.Name,
		r.Email,
		r.Phone,
		nullString(r.Message),
		string(r.Status),
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func queryListConsultations(ctx context.Context, db executor, filter model.ConsultationFilter) ([]*model.ConsultationRequest, int, error) {
	var (
		whereClauses []string
		args         argList
	)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = args.add(string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Search != "" {
		p := args.add(filter.Search)
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(name ILIKE '%%' || %s || '%%' OR email ILIKE '%%' || %s || '%%' OR phone LIKE '%%' || %s || '%%')",
			p, p, p))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + consultationColumns + " FROM consultation_requests" + whereSQL + " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		dataQuery += " LIMIT " + args.add(filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + args.add(filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list consultation requests: %w", err)
	}
	defer rows.Close()

	var reqs []*model.ConsultationRequest
	var total int
	for rows.Next() {
		var r model.ConsultationRequest
		var message sql.NullString
		if err := rows.Scan(&total, &r.ID, &r.Name, &r.Email, &r.Phone, &message, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan consultation requests: %w", err)
		}
		r.Message = message.String
		reqs = append(reqs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan consultation requests: %w", err)
	}

	return reqs, total, nil
}

func queryUpdateConsultationStatus(ctx context.Context, db executor, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE consultation_requests
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+consultationColumns,
		id, string(status),
	)
	return scanConsultation(row)
}

func queryDeleteConsultation(ctx context.Context, db executor, id string) error {
	return execExpectingRow(ctx, db, `DELETE FROM consultation_requests WHERE id = $1`, id)
}

func queryGetStats(ctx context.Context, db executor, recentSince time.Time) (*model.Stats, error) {
	var st model.Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM customers WHERE created_at >= $1),
			(SELECT COUNT(*) FROM consultation_requests),
			(SELECT COUNT(*) FROM consultation_requests WHERE status = 'pending')`,
		recentSince,
	).Scan(&st.TotalCustomers, &st.RecentCustomers, &st.ConsultationRequests, &st.PendingRequests)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &st, nil
}

// execExpectingRow runs a statement and maps zero affected rows to sql.ErrNoRows.
func execExpectingRow(ctx context.Context, db executor, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
