package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/edvin/warehouse/internal/model"
)

// OpenWarehouse opens a SQL connection to a Redshift cluster through the
// descriptor's driver and verifies it with a ping.
func OpenWarehouse(ctx context.Context, conn model.ConnectionDescriptor) (*sql.DB, error) {
	switch conn.Driver {
	case model.DriverPgx, model.DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", conn.Driver)
	}

	db, err := sql.Open(conn.Driver, conn.DSN())
	if err != nil {
		return nil, fmt.Errorf("open warehouse %s: %w", conn, err)
	}
	db.SetMaxOpenConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping warehouse %s: %w", conn, err)
	}
	return db, nil
}
