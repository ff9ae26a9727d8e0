package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type document struct {
	Key       string    `db:"key"`
	Value     []byte    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *Repository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc document

	query, args, err := squirrel.
		Select("key", "value", "updated_at").
		From("documents").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	err = r.db.GetContext(ctx, &doc, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return doc.Value, true, nil
}

func (r *Repository) Set(ctx context.Context, key string, value []byte) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("documents").
			SetMap(map[string]interface{}{
				"key":        key,
				"value":      string(value),
				"updated_at": time.Now().UTC(),
			}).
			Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build document upsert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}

		return nil
	})
}

func (r *Repository) Remove(ctx context.Context, key string) error {
	query, args, err := squirrel.
		Delete("documents").
		Where(squirrel.Eq{"key": key}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) Keys(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := squirrel.
		Select("key").
		From("documents").
		Where(squirrel.Like{"key": prefix + "%"}).
		OrderBy("key").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var keys []string
	err = r.db.SelectContext(ctx, &keys, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list document keys: %w", err)
	}
	return keys, nil
}
