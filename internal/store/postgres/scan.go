package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// customerNulls holds the nullable customer columns during a scan.
type customerNulls struct {
	userID, gender                             sql.NullString
	leftPower, rightPower                      sql.NullString
	leftSphere, rightSphere                    sql.NullString
	leftCyl, rightCyl, leftAxis, rightAxis     sql.NullString
	leftAdd, rightAdd, leftPDNear, rightPDDist sql.NullString
	lensType, doctor, prescriptionNotes, notes sql.NullString
	age                                        sql.NullInt64
}

// dest returns scan targets in customerColumns order.
func (n *customerNulls) dest(c *model.Customer) []any {
	return []any{
		&c.ID, &n.userID, &c.Name, &c.Email, &c.Phone, &n.age, &n.gender,
		&n.leftPower, &n.rightPower, &n.leftSphere, &n.rightSphere,
		&n.leftCyl, &n.rightCyl, &n.leftAxis, &n.rightAxis, &n.leftAdd, &n.rightAdd,
		&n.leftPDNear, &n.rightPDDist, &n.lensType, &n.doctor,
		&c.IncludePrescription, &n.prescriptionNotes, &n.notes, &c.CreatedAt,
	}
}

func (n *customerNulls) apply(c *model.Customer) {
	c.UserID = n.userID.String
	c.Gender = n.gender.String
	c.LeftEyePower = n.leftPower.String
	c.RightEyePower = n.rightPower.String
	c.LeftSphere = n.leftSphere.String
	c.RightSphere = n.rightSphere.String
	c.LeftCylinder = n.leftCyl.String
	c.RightCylinder = n.rightCyl.String
	c.LeftAxis = n.leftAxis.String
	c.RightAxis = n.rightAxis.String
	c.LeftAdd = n.leftAdd.String
	c.RightAdd = n.rightAdd.String
	c.LeftPDNear = n.leftPDNear.String
	c.RightPDDistance = n.rightPDDist.String
	c.LensType = n.lensType.String
	c.DoctorName = n.doctor.String
	c.PrescriptionNotes = n.prescriptionNotes.String
	c.Notes = n.notes.String
	if n.age.Valid {
		age := int(n.age.Int64)
		c.Age = &age
	}
}

// scanCustomer scans a single row into a model.Customer.
// The row must contain columns in the order defined by customerColumns.
func scanCustomer(row scannable) (*model.Customer, error) {
	var c model.Customer
	var n customerNulls
	if err := row.Scan(n.dest(&c)...); err != nil {
		return nil, err
	}
	n.apply(&c)
	return &c, nil
}

// scanCustomerWithTotal scans a row with a leading total_count column.
func scanCustomerWithTotal(row scannable) (*model.Customer, int, error) {
	var c model.Customer
	var n customerNulls
	var total int
	if err := row.Scan(append([]any{&total}, n.dest(&c)...)...); err != nil {
		return nil, 0, err
	}
	n.apply(&c)
	return &c, total, nil
}

// scanConsultation scans a row in consultationColumns order.
func scanConsultation(row scannable) (*model.ConsultationRequest, error) {
	var r model.ConsultationRequest
	var message sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Email, &r.Phone, &message, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Message = message.String
	return &r, nil
}

func scanSession(row scannable) (*model.Session, error) {
	var s model.Session
	var revokedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.Email, &s.IssuedAt, &s.ExpiresAt, &revokedAt); err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return &s, nil
}

// nullString converts an empty string to a NULL value.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullIntPtr converts a nil *int to a NULL value.
func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
