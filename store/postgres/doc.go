// Package postgres provides a PostgreSQL-backed checkpoint and review
// store for Cascade, built on pgx/v5 with pgxpool connection pooling.
// Execution leases are claimed with single-statement compare-and-set
// updates, so multiple engine processes can share one database safely.
package postgres
