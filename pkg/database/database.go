// Package database opens and health-checks the warehouse connection pool
// used by the sink.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
)

// ConnectSQL opens a pooled connection to the warehouse and verifies it
// with a bounded ping before returning it to the caller.
func ConnectSQL(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("error opening warehouse database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to warehouse (ping failed): %w", err)
	}

	logger.Successf("connected to warehouse")
	return db, nil
}
