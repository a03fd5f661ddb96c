// Package authz checks actor authority for grading. Coordinators may only
// grade co-op work for students in their own department.
package authz

import (
	"context"
	"database/sql"
	"errors"
)

// Service provides authorization helpers backed by SQL.
type Service struct {
	DB *sql.DB
}

// CoordinatorDepartment returns the department of the faculty member with the
// given ID, or "" with ok=false when no such faculty member exists.
func (s Service) CoordinatorDepartment(ctx context.Context, tx *sql.Tx, facultyID string) (string, bool, error) {
	if facultyID == "" {
		return "", false, errors.New("faculty id required")
	}
	var dept string
	err := tx.QueryRowContext(ctx, `SELECT department FROM faculty WHERE id=?`, facultyID).Scan(&dept)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return dept, true, nil
}

// SameDepartment reports whether the coordinator and the student share a
// department. Comparison is exact; departments are stored canonically.
func SameDepartment(coordinatorDept, studentDept string) bool {
	return coordinatorDept != "" && coordinatorDept == studentDept
}
