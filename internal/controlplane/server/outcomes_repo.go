package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
)

// OutcomeRow is one persisted outcome, as the API returns it.
type OutcomeRow struct {
	ID        int64          `json:"id"`
	CreatedAt string         `json:"created_at"`
	Outcome   domain.Outcome `json:"outcome"`
}

// RecordOutcome stores one terminal outcome. The processor calls this for
// every comment it finishes.
func (s *Server) RecordOutcome(ctx context.Context, o domain.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcomes (comment_id, status, author, reason, parent_author, confirmer,
  parent_new_flair, confirmer_new_flair, error_type, error, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, o.CommentID, string(o.Status), o.Author, string(o.Reason), o.ParentAuthor, o.Confirmer,
		o.ParentNewFlair, o.ConfirmerNewFlair, o.ErrorType, o.Error,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Server) listOutcomes(ctx context.Context, status string, limit int) ([]OutcomeRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
SELECT id, comment_id, status, author, reason, parent_author, confirmer,
  parent_new_flair, confirmer_new_flair, error_type, error, created_at
FROM outcomes
`
	args := []interface{}{}
	if status != "" {
		query += `WHERE status=?
`
		args = append(args, status)
	}
	query += `ORDER BY id DESC
LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var (
			row               OutcomeRow
			statusStr, reason string
			author            sql.NullString
			parentAuthor      sql.NullString
			confirmer         sql.NullString
			parentFlair       sql.NullString
			confirmerFlair    sql.NullString
			errType           sql.NullString
			errStr            sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.Outcome.CommentID, &statusStr, &author, &reason,
			&parentAuthor, &confirmer, &parentFlair, &confirmerFlair, &errType, &errStr,
			&row.CreatedAt); err != nil {
			return nil, err
		}
		row.Outcome.Status = domain.OutcomeStatus(statusStr)
		row.Outcome.Reason = domain.RejectionReason(reason)
		row.Outcome.Author = author.String
		row.Outcome.ParentAuthor = parentAuthor.String
		row.Outcome.Confirmer = confirmer.String
		row.Outcome.ParentNewFlair = parentFlair.String
		row.Outcome.ConfirmerNewFlair = confirmerFlair.String
		row.Outcome.ErrorType = errType.String
		row.Outcome.Error = errStr.String
		out = append(out, row)
	}
	return out, rows.Err()
}
