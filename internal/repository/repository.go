// Package repository provides data access for wizard session drafts.
//
// The single repository interface, SessionRepository, persists serialized
// session snapshots so an intake run survives restarts. The PostgreSQL
// implementation stores the snapshot as JSONB.
//
// All implementations are safe for concurrent use; the underlying pgxpool
// handles connection pooling and synchronization. Methods return
// domain-specific errors (domain.ErrNotFound for missing drafts) and wrap
// database errors with fmt.Errorf %w.
//
// Use the DBTX interface to support both pool and transaction contexts;
// pass a transaction from database.DB.WithTransaction for atomic work.
package repository

import (
	"github.com/knowledgehub/article-intake-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Repository constructors accept DBTX so the same implementation
// serves direct pool use, transactions, and pgxmock in tests.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
