package repo

import (
	"context"
	"database/sql"
	"strings"

	"coopline/internal/domain"
)

func (r Repo) InsertCoopRecord(ctx context.Context, tx *sql.Tx, c domain.CoopRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO coop_records(application_id,summary_text,grade,coordinator_id,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		c.ApplicationID, nullableStringPtr(c.SummaryText), nullableStringPtr(c.Grade), nullableStringPtr(c.CoordinatorID), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCoopRecord(ctx context.Context, applicationID string) (domain.CoopRecord, error) {
	return scanCoopRecord(r.DB.QueryRowContext(ctx, `SELECT application_id,summary_text,grade,coordinator_id,created_at,updated_at FROM coop_records WHERE application_id=?`, applicationID))
}

func (r Repo) GetCoopRecordTx(ctx context.Context, tx *sql.Tx, applicationID string) (domain.CoopRecord, error) {
	return scanCoopRecord(tx.QueryRowContext(ctx, `SELECT application_id,summary_text,grade,coordinator_id,created_at,updated_at FROM coop_records WHERE application_id=?`, applicationID))
}

func scanCoopRecord(row *sql.Row) (domain.CoopRecord, error) {
	var c domain.CoopRecord
	var summary, grade, coordinator sql.NullString
	err := row.Scan(&c.ApplicationID, &summary, &grade, &coordinator, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if summary.Valid {
		c.SummaryText = &summary.String
	}
	if grade.Valid {
		c.Grade = &grade.String
	}
	if coordinator.Valid {
		c.CoordinatorID = &coordinator.String
	}
	return c, nil
}

func (r Repo) UpdateCoopRecord(ctx context.Context, tx *sql.Tx, c domain.CoopRecord) error {
	res, err := tx.ExecContext(ctx, `UPDATE coop_records SET summary_text=?, grade=?, coordinator_id=?, updated_at=? WHERE application_id=?`,
		nullableStringPtr(c.SummaryText), nullableStringPtr(c.Grade), nullableStringPtr(c.CoordinatorID), c.UpdatedAt, c.ApplicationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type CoopReviewFilters struct {
	Department string
	Status     string
	Limit      int
}

// ListCoopReview returns the coordinator review surface: applications that
// entered the co-op track, joined with their record and owning student.
func (r Repo) ListCoopReview(ctx context.Context, f CoopReviewFilters) ([]domain.CoopReviewItem, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Department != "" {
		clauses = append(clauses, "s.department=?")
		args = append(args, f.Department)
	}
	if f.Status != "" {
		clauses = append(clauses, "a.status=?")
		args = append(args, f.Status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + prefixedCols("a", applicationCols) + `, c.summary_text, c.grade, c.coordinator_id, c.created_at, c.updated_at, s.full_name, s.department
FROM coop_records c
JOIN applications a ON a.id = c.application_id
JOIN students s ON s.id = a.student_id ` + where + ` ORDER BY c.created_at DESC, a.id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CoopReviewItem
	for rows.Next() {
		var item domain.CoopReviewItem
		a := &item.Application
		c := &item.Coop
		var verdict, reasons, evaluatedAt, summary, grade, coordinator sql.NullString
		if err := rows.Scan(&a.ID, &a.StudentID, &a.PositionID, &a.Status, &a.SubmittedAt, &a.UpdatedAt, &verdict, &reasons, &evaluatedAt,
			&summary, &grade, &coordinator, &c.CreatedAt, &c.UpdatedAt, &item.StudentName, &item.Department); err != nil {
			return nil, err
		}
		if verdict.Valid {
			a.Verdict = &verdict.String
		}
		if evaluatedAt.Valid {
			a.EvaluatedAt = &evaluatedAt.String
		}
		a.EligibilityReasons = unmarshalStringSlice(reasons)
		if summary.Valid {
			c.SummaryText = &summary.String
		}
		if grade.Valid {
			c.Grade = &grade.String
		}
		if coordinator.Valid {
			c.CoordinatorID = &coordinator.String
		}
		c.ApplicationID = a.ID
		item.PositionID = a.PositionID
		res = append(res, item)
	}
	return res, rows.Err()
}

func prefixedCols(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + "." + p
	}
	return strings.Join(parts, ",")
}
