package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Organizations ---

func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var o models.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, token_balance, created_at, updated_at FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.TokenBalance, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

// GetSourceOrganization returns the organization owning a feature record.
func (s *PostgresStore) GetSourceOrganization(ctx context.Context, source, sourceID string) (uuid.UUID, error) {
	var orgID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT organization_id FROM source_records WHERE source = $1 AND source_id = $2`, source, sourceID,
	).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("get source organization: %w", err)
	}
	return orgID, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, organization_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OrganizationID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, organization_id, job_type, source, source_id, provider, model, task_id,
	callback_token, input_url, secondary_input_url, prompt, settings, status, result_url,
	error_message, error_code, callback_received, attempt_count, max_attempts,
	created_at, submitted_at, callback_at, completed_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.OrganizationID, &j.JobType, &j.Source, &j.SourceID, &j.Provider,
		&j.Model, &j.TaskID, &j.CallbackToken, &j.InputURL, &j.SecondaryInputURL, &j.Prompt,
		&j.Settings, &j.Status, &j.ResultURL, &j.ErrorMessage, &j.ErrorCode, &j.CallbackReceived,
		&j.AttemptCount, &j.MaxAttempts, &j.CreatedAt, &j.SubmittedAt, &j.CallbackAt,
		&j.CompletedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	settings := job.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	status := job.Status
	if status == "" {
		status = models.JobStatusPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_jobs (id, organization_id, job_type, source, source_id, provider, model,
			callback_token, input_url, secondary_input_url, prompt, settings, status,
			max_attempts, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		job.ID, job.OrganizationID, job.JobType, job.Source, job.SourceID, job.Provider, job.Model,
		job.CallbackToken, job.InputURL, job.SecondaryInputURL, job.Prompt, settings, status,
		job.MaxAttempts, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ai_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) FindJobByTaskID(ctx context.Context, taskID string) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM ai_jobs WHERE task_id = $1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job by task id: %w", err)
	}
	return j, nil
}

// MarkSubmitted records the provider task id. It applies only to a pending
// job that has never been given a task id.
func (s *PostgresStore) MarkSubmitted(ctx context.Context, id uuid.UUID, taskID string) (bool, error) {
	now := s.now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE ai_jobs
		 SET status = 'submitted', task_id = $2, submitted_at = $3, updated_at = $3,
		     attempt_count = attempt_count + 1
		 WHERE id = $1 AND status = 'pending' AND task_id IS NULL`,
		id, taskID, now)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, ErrDuplicateKey
		}
		return false, fmt.Errorf("mark job submitted: %w", err)
	}
	return s.applied(ctx, id, tag)
}

// MarkProcessing moves a submitted job to processing. It never sets
// callback_received, so the sweeper keeps watching the job.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ai_jobs SET status = 'processing', updated_at = $2
		 WHERE id = $1 AND status IN ('submitted', 'processing')`,
		id, s.now())
	if err != nil {
		return false, fmt.Errorf("mark job processing: %w", err)
	}
	return s.applied(ctx, id, tag)
}

// TransitionToTerminal resolves a job and returns the row as written. The
// WHERE clause is the only guard against concurrent resolution: whichever
// caller's update matches first wins. Losers get (nil, false, nil).
func (s *PostgresStore) TransitionToTerminal(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.Job, bool, error) {
	params, err := terminalParams(status, opts)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", err, status)
	}

	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE ai_jobs
		 SET status = $2, result_url = $3, error_message = $4, error_code = $5,
		     callback_received = callback_received OR $6,
		     callback_at = CASE WHEN $6 THEN $7 ELSE callback_at END,
		     completed_at = $7, updated_at = $7
		 WHERE id = $1 AND status NOT IN ('success', 'failed', 'timeout', 'cancelled')
		 RETURNING `+jobColumns,
		id, status, params.ResultURL, params.ErrorMessage, params.ErrorCode, params.CallbackReceived, s.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.jobExists(ctx, id); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("transition job to %s: %w", status, err)
	}
	return j, true, nil
}

// applied distinguishes a lost race from a missing row.
func (s *PostgresStore) applied(ctx context.Context, id uuid.UUID, tag pgconn.CommandTag) (bool, error) {
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if err := s.jobExists(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) jobExists(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ai_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check job exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListStuck(ctx context.Context, filter StuckFilter) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM ai_jobs
		 WHERE status = ANY($1) AND callback_received = FALSE AND created_at < $2
		 ORDER BY created_at ASC
		 LIMIT $3`,
		filter.statuses(), filter.CreatedBefore, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Tokens ---

// SettleJobTokens records a job's token transaction and applies its amount to
// the organization balance. A job settles at most once; later calls return false.
func (s *PostgresStore) SettleJobTokens(ctx context.Context, t *models.TokenTransaction) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO token_transactions (id, organization_id, job_id, kind, amount, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (job_id) DO NOTHING`,
		t.ID, t.OrganizationID, t.JobID, t.Kind, t.Amount, t.Model, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert token transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if t.Amount != 0 {
		tag, err = tx.Exec(ctx,
			`UPDATE organizations SET token_balance = token_balance + $2, updated_at = NOW() WHERE id = $1`,
			t.OrganizationID, t.Amount)
		if err != nil {
			return false, fmt.Errorf("update token balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit settle tx: %w", err)
	}
	return true, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
