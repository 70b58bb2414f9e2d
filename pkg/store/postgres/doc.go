// Package postgres implements the billing store contracts on PostgreSQL with
// pgx.
//
// Every method resolves its connection through pg.Conn, so calls made inside
// pg.Transactor.WithTx share the caller's transaction. GetByProviderID reads
// with FOR UPDATE; the meter primitives are single conditional UPDATE
// statements whose affected-row count decides the outcome. The schema lives
// in db/migrations.
package postgres
