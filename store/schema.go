package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
)

// SchemaVersion is the schema version this code upgrades databases to.
const SchemaVersion = 3

type schemaMeta struct {
	bun.BaseModel `bun:"table:schema_meta"`

	ID      int `bun:"id,pk"`
	Version int `bun:"version,notnull"`
}

// upgradeStep moves the schema from Version-1 to Version. Steps only create tables and
// indices; they never drop data.
type upgradeStep struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, db bun.IDB) error
}

func (s *Store) upgradeSteps() []upgradeStep {
	return []upgradeStep{
		{
			Version: 1,
			Name:    "create restaurants and reviews",
			Apply: func(ctx context.Context, db bun.IDB) error {
				if err := s.Restaurants.createTable(ctx, db); err != nil {
					return err
				}
				return s.Reviews.createTable(ctx, db)
			},
		},
		{
			Version: 2,
			Name:    "index restaurant name and review restaurant id",
			Apply: func(ctx context.Context, db bun.IDB) error {
				if err := s.Restaurants.createIndexes(ctx, db); err != nil {
					return err
				}
				return s.Reviews.createIndexes(ctx, db)
			},
		},
		{
			Version: 3,
			Name:    "create pending mutation queue",
			Apply: func(ctx context.Context, db bun.IDB) error {
				if err := s.Mutations.createTable(ctx, db); err != nil {
					return err
				}
				return s.Mutations.createIndexes(ctx, db)
			},
		},
	}
}

func currentVersion(ctx context.Context, db bun.IDB) (int, error) {
	meta := new(schemaMeta)
	err := db.NewSelect().Model(meta).Where("id = 1").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, newError("version", "schema_meta", classify(err), err)
	}
	return meta.Version, nil
}

// upgrade applies every step between the recorded version and target, each in its own
// transaction together with the version bump.
func upgrade(ctx context.Context, db *bun.DB, target int, steps []upgradeStep, logger *slog.Logger) error {
	if _, err := db.NewCreateTable().Model((*schemaMeta)(nil)).IfNotExists().Exec(ctx); err != nil {
		return newError("upgrade", "schema_meta", ErrStoreUnavailable, err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	if current > target {
		return newError("upgrade", "", ErrSchemaMismatch,
			fmt.Errorf("database version %d is newer than supported version %d", current, target))
	}

	byVersion := make(map[int]upgradeStep, len(steps))
	for _, step := range steps {
		byVersion[step.Version] = step
	}

	for v := current + 1; v <= target; v++ {
		step, ok := byVersion[v]
		if !ok {
			return newError("upgrade", "", ErrSchemaMismatch, fmt.Errorf("no upgrade step to version %d", v))
		}

		err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := step.Apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.NewInsert().
				Model(&schemaMeta{ID: 1, Version: v}).
				On("CONFLICT (id) DO UPDATE").
				Exec(ctx)
			return err
		})
		if err != nil {
			return newError("upgrade", "", classify(err), fmt.Errorf("step %d (%s): %w", v, step.Name, err))
		}

		logger.Debug("store schema upgraded", "version", v, "step", step.Name)
	}

	return nil
}
