package server

import (
	"context"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  comment_id TEXT NOT NULL,
  status TEXT NOT NULL,
  author TEXT,
  reason TEXT,
  parent_author TEXT,
  confirmer TEXT,
  parent_new_flair TEXT,
  confirmer_new_flair TEXT,
  error_type TEXT,
  error TEXT,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status_created ON outcomes(status, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_comment ON outcomes(comment_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
