package extract

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

// PgxRunner executes queries against PostgreSQL through a pgx connection
// pool. It implements QueryRunner.
type PgxRunner struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgxRunner opens a connection pool against cfg and validates it with
// a round trip before returning.
func NewPgxRunner(ctx context.Context, cfg *config.SQLConfig, logger *zap.Logger) (*PgxRunner, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeConfig, "failed to parse connection string")
	}

	// A single-threaded agent needs very few connections.
	poolConfig.MaxConns = 2
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second
	if cfg.Timeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = time.Duration(cfg.Timeout) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeConnection, "failed to create connection pool")
	}

	// Validation is advisory only: a database that is down at startup
	// must not keep the agent from looping until it comes back.
	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		logger.Warn("source database not reachable yet",
			zap.String("host", cfg.Host),
			zap.Error(err))
	} else {
		logger.Info("connected to PostgreSQL",
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Database),
			zap.String("version", version))
	}

	return &PgxRunner{
		pool:   pool,
		logger: logger.With(zap.String("component", "pgx_runner")),
	}, nil
}

// Query runs sql with args and returns all result rows keyed by column
// name. Byte slices are converted to strings; timestamps stay time.Time
// so watermark advancement can compare them natively.
func (r *PgxRunner) Query(ctx context.Context, sql string, args []interface{}) ([]models.Row, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeConnection, "failed to acquire connection")
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeQuery, "failed to execute query")
	}
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescriptions))
	for i, fd := range fieldDescriptions {
		columns[i] = fd.Name
	}

	var out []models.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeData, "failed to get row values")
		}
		row := make(models.Row, len(columns))
		for i, value := range values {
			row[columns[i]] = convertValue(value)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, skimerrors.Wrap(err, skimerrors.ErrorTypeQuery, "row iteration failed")
	}

	return out, nil
}

// Close releases the underlying connection pool.
func (r *PgxRunner) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

func convertValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}
