package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// SchemaStatus lists migrations with their applied state. *Migrator
// satisfies it.
type SchemaStatus interface {
	Status(ctx context.Context) ([]MigrationStatus, error)
}

// Health is the /health/db body. The booking tables and the active-slot
// index come from migrations, so a pending migration makes the service
// unready even when the database answers.
type Health struct {
	Status            string   `json:"status"`
	Database          string   `json:"database"`
	PendingMigrations []string `json:"pending_migrations,omitempty"`
	AcquiredConns     int32    `json:"acquired_conns"`
	MaxConns          int32    `json:"max_conns"`
}

func assess(pingErr error, statuses []MigrationStatus, statusErr error) (int, Health) {
	h := Health{Status: "ready", Database: "up"}
	if pingErr != nil {
		h.Status, h.Database = "unavailable", "down"
		return http.StatusServiceUnavailable, h
	}
	if statusErr != nil {
		h.Status = "unknown-schema"
		return http.StatusServiceUnavailable, h
	}
	for _, st := range statuses {
		if !st.Applied {
			h.PendingMigrations = append(h.PendingMigrations, st.Name)
		}
	}
	if len(h.PendingMigrations) > 0 {
		h.Status = "migrations-pending"
		return http.StatusServiceUnavailable, h
	}
	return http.StatusOK, h
}

// HealthHandler reports whether the database is reachable and fully
// migrated. Driver errors are logged, not echoed to the caller.
func HealthHandler(pool *pgxpool.Pool, schema SchemaStatus) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		pingErr := pool.Ping(ctx)
		var statuses []MigrationStatus
		var statusErr error
		if pingErr == nil {
			statuses, statusErr = schema.Status(ctx)
		}
		if err := firstErr(pingErr, statusErr); err != nil {
			c.Logger().Errorf("database health check: %v", err)
		}

		code, h := assess(pingErr, statuses, statusErr)
		stat := pool.Stat()
		h.AcquiredConns, h.MaxConns = stat.AcquiredConns(), stat.MaxConns()
		return c.JSON(code, h)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
