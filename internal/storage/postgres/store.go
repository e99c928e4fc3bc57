package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/payments-reconciler/internal/interfaces"
	"github.com/sheikh-saqib/payments-reconciler/internal/models"
)

const schema = `CREATE TABLE IF NOT EXISTS reconciliation_runs (
	id                text PRIMARY KEY,
	started_at        timestamptz NOT NULL,
	finished_at       timestamptz NOT NULL,
	status            text NOT NULL,
	window_from       date NOT NULL,
	window_to         date NOT NULL,
	fetched           integer NOT NULL,
	eligible          integer NOT NULL,
	recorded_invoices text[] NOT NULL,
	failed_postings   bigint[] NOT NULL,
	error             text NOT NULL DEFAULT ''
)`

type PostgresRunStore struct {
	db *sql.DB
}

func NewPostgresRunStore(db *sql.DB) *PostgresRunStore {
	return &PostgresRunStore{
		db: db,
	}
}

// Migrate creates the runs table if it does not exist.
func (p *PostgresRunStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresRunStore) SaveRun(ctx context.Context, report models.RunReport) error {
	const query = `INSERT INTO reconciliation_runs (id, started_at, finished_at, status, window_from, window_to,
	fetched, eligible, recorded_invoices, failed_postings, error)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	recorded := report.RecordedInvoices
	if recorded == nil {
		recorded = []string{}
	}
	failed := report.FailedPostings
	if failed == nil {
		failed = []int64{}
	}

	_, err := p.db.ExecContext(ctx, query,
		report.ID,
		report.StartedAt,
		report.FinishedAt,
		string(report.Status),
		report.WindowFrom,
		report.WindowTo,
		report.Fetched,
		report.Eligible,
		pq.Array(recorded),
		pq.Array(failed),
		report.Error,
	)
	return err
}

func (p *PostgresRunStore) ListRuns(ctx context.Context, limit int) ([]models.RunReport, error) {
	const query = `SELECT id, started_at, finished_at, status, to_char(window_from, 'YYYY-MM-DD'),
	to_char(window_to, 'YYYY-MM-DD'), fetched, eligible, recorded_invoices, failed_postings, error
	FROM reconciliation_runs ORDER BY started_at DESC LIMIT $1`

	// LIMIT NULL means no limit
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := p.db.QueryContext(ctx, query, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunReport
	for rows.Next() {
		var (
			run    models.RunReport
			status string
		)
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&status,
			&run.WindowFrom,
			&run.WindowTo,
			&run.Fetched,
			&run.Eligible,
			pq.Array(&run.RecordedInvoices),
			pq.Array(&run.FailedPostings),
			&run.Error,
		); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

var _ interfaces.RunStore = (*PostgresRunStore)(nil)
