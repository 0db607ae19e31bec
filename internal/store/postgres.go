package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Rule lists, target users, variations and segment conditions are stored as
// jsonb so the schema does not have to track every condition shape.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the flags and segments tables if they do not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS flags (
			key               text PRIMARY KEY,
			description       text NOT NULL DEFAULT '',
			enabled           boolean NOT NULL DEFAULT false,
			rollout           integer NOT NULL DEFAULT 0,
			target_users      jsonb NOT NULL DEFAULT '[]',
			rules             jsonb NOT NULL DEFAULT '[]',
			variations        jsonb NOT NULL DEFAULT '{}',
			default_variation text NOT NULL DEFAULT '',
			env               text NOT NULL DEFAULT 'production',
			updated_at        timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS segments (
			id         text PRIMARY KEY,
			conditions jsonb NOT NULL DEFAULT '[]'
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const flagColumns = `key, description, enabled, rollout, target_users, rules, variations, default_variation, env, updated_at`

// ListFlags retrieves all flags for the given environment.
func (p *PostgresStore) ListFlags(ctx context.Context, env string) ([]rules.Flag, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE env = $1 ORDER BY key`, env)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flags []rules.Flag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}

// GetFlag retrieves a single flag by its key.
func (p *PostgresStore) GetFlag(ctx context.Context, key string) (*rules.Flag, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+flagColumns+` FROM flags WHERE key = $1`, key)
	flag, err := scanFlag(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flag %q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return &flag, nil
}

// UpsertFlag creates or updates a flag.
func (p *PostgresStore) UpsertFlag(ctx context.Context, flag rules.Flag) error {
	targetUsers, err := json.Marshal(orEmptySlice(flag.TargetUsers))
	if err != nil {
		return err
	}
	ruleList, err := json.Marshal(orEmptyRules(flag.Rules))
	if err != nil {
		return err
	}
	variations, err := json.Marshal(orEmptyMap(flag.Variations))
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO flags (key, description, enabled, rollout, target_users, rules, variations, default_variation, env, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (key) DO UPDATE SET
			description = EXCLUDED.description,
			enabled = EXCLUDED.enabled,
			rollout = EXCLUDED.rollout,
			target_users = EXCLUDED.target_users,
			rules = EXCLUDED.rules,
			variations = EXCLUDED.variations,
			default_variation = EXCLUDED.default_variation,
			env = EXCLUDED.env,
			updated_at = now()
	`, flag.Key, flag.Description, flag.Enabled, flag.RolloutPercentage,
		targetUsers, ruleList, variations, flag.DefaultVariation, flag.Env)
	return err
}

// DeleteFlag removes a flag. Idempotent.
func (p *PostgresStore) DeleteFlag(ctx context.Context, key, env string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM flags WHERE key = $1 AND env = $2`, key, env)
	return err
}

// ListSegments retrieves all segments.
func (p *PostgresStore) ListSegments(ctx context.Context) ([]rules.Segment, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, conditions FROM segments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []rules.Segment
	for rows.Next() {
		var (
			segment   rules.Segment
			condBytes []byte
		)
		if err := rows.Scan(&segment.ID, &condBytes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(condBytes, &segment.Conditions); err != nil {
			return nil, fmt.Errorf("segment %q conditions: %w", segment.ID, err)
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

// UpsertSegment creates or updates a segment.
func (p *PostgresStore) UpsertSegment(ctx context.Context, segment rules.Segment) error {
	conditions, err := json.Marshal(orEmptyConditions(segment.Conditions))
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO segments (id, conditions) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET conditions = EXCLUDED.conditions
	`, segment.ID, conditions)
	return err
}

// DeleteSegment removes a segment. Idempotent.
func (p *PostgresStore) DeleteSegment(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	return err
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func scanFlag(row pgx.Row) (rules.Flag, error) {
	var (
		flag        rules.Flag
		targetUsers []byte
		ruleList    []byte
		variations  []byte
	)
	err := row.Scan(&flag.Key, &flag.Description, &flag.Enabled, &flag.RolloutPercentage,
		&targetUsers, &ruleList, &variations, &flag.DefaultVariation, &flag.Env, &flag.UpdatedAt)
	if err != nil {
		return rules.Flag{}, err
	}

	if err := json.Unmarshal(targetUsers, &flag.TargetUsers); err != nil {
		return rules.Flag{}, fmt.Errorf("flag %q target_users: %w", flag.Key, err)
	}
	if err := json.Unmarshal(ruleList, &flag.Rules); err != nil {
		return rules.Flag{}, fmt.Errorf("flag %q rules: %w", flag.Key, err)
	}
	if err := json.Unmarshal(variations, &flag.Variations); err != nil {
		return rules.Flag{}, fmt.Errorf("flag %q variations: %w", flag.Key, err)
	}
	return flag, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyRules(r []rules.Rule) []rules.Rule {
	if r == nil {
		return []rules.Rule{}
	}
	return r
}

func orEmptyConditions(c []rules.Condition) []rules.Condition {
	if c == nil {
		return []rules.Condition{}
	}
	return c
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
