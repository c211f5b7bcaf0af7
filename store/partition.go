package store

import (
	"context"
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Index declares a secondary index on a partition.
type Index struct {
	Name   string
	Column string
	Unique bool
}

// Partition is a typed handle over one table of the store.
type Partition[T any] struct {
	store      *Store
	name       string
	primaryKey string
	indexes    map[string]Index
	order      []Index
}

func newPartition[T any](s *Store, name, primaryKey string, indexes ...Index) *Partition[T] {
	p := &Partition[T]{
		store:      s,
		name:       name,
		primaryKey: primaryKey,
		indexes:    make(map[string]Index, len(indexes)),
		order:      indexes,
	}
	for _, idx := range indexes {
		p.indexes[idx.Name] = idx
	}
	return p
}

// Name returns the partition name.
func (p *Partition[T]) Name() string {
	return p.name
}

// Get returns the record stored under key, or ErrNotFound.
func (p *Partition[T]) Get(ctx context.Context, key any) (*T, error) {
	if err := p.store.checkOpen("get", p.name); err != nil {
		return nil, err
	}

	record := new(T)
	err := p.store.db.NewSelect().
		Model(record).
		Where("? = ?", bun.Ident(p.primaryKey), key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, p.store.wrap("get", p.name, err)
	}
	return record, nil
}

// GetAll returns every record of the partition ordered by primary key. Criteria can
// narrow or reorder the scan.
func (p *Partition[T]) GetAll(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, error) {
	if err := p.store.checkOpen("getAll", p.name); err != nil {
		return nil, err
	}

	records := make([]T, 0)
	q := p.store.db.NewSelect().Model(&records)
	for _, c := range criteria {
		q = c(q)
	}
	if len(criteria) == 0 {
		q = q.OrderExpr("? ASC", bun.Ident(p.primaryKey))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, p.store.wrap("getAll", p.name, err)
	}
	return records, nil
}

// GetAllByIndex returns the records whose indexed column equals value.
func (p *Partition[T]) GetAllByIndex(ctx context.Context, index string, value any) ([]T, error) {
	idx, ok := p.indexes[index]
	if !ok {
		return nil, newError("getAllByIndex", p.name, ErrUnknownIndex, fmt.Errorf("index %q", index))
	}
	return p.GetAll(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("? = ?", bun.Ident(idx.Column), value).
			OrderExpr("? ASC", bun.Ident(p.primaryKey))
	})
}

// Put upserts record by primary key. An existing record is overwritten.
func (p *Partition[T]) Put(ctx context.Context, record *T) error {
	if err := p.store.checkOpen("put", p.name); err != nil {
		return err
	}

	_, err := p.store.db.NewInsert().
		Model(record).
		On("CONFLICT (?) DO UPDATE", bun.Ident(p.primaryKey)).
		Exec(ctx)
	return p.store.wrap("put", p.name, err)
}

// PutMany upserts records inside a single transaction.
func (p *Partition[T]) PutMany(ctx context.Context, records []T) error {
	if err := p.store.checkOpen("putMany", p.name); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	err := p.store.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range records {
			_, err := tx.NewInsert().
				Model(&records[i]).
				On("CONFLICT (?) DO UPDATE", bun.Ident(p.primaryKey)).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return p.store.wrap("putMany", p.name, err)
}

// Add inserts record, failing with ErrKeyExists when the key is taken.
func (p *Partition[T]) Add(ctx context.Context, record *T) error {
	if err := p.store.checkOpen("add", p.name); err != nil {
		return err
	}

	_, err := p.store.db.NewInsert().Model(record).Exec(ctx)
	return p.store.wrap("add", p.name, err)
}

// Count returns the number of records in the partition.
func (p *Partition[T]) Count(ctx context.Context) (int, error) {
	if err := p.store.checkOpen("count", p.name); err != nil {
		return 0, err
	}

	n, err := p.store.db.NewSelect().Model((*T)(nil)).Count(ctx)
	if err != nil {
		return 0, p.store.wrap("count", p.name, err)
	}
	return n, nil
}

// Delete removes the record stored under key. Deleting a missing key is not an error.
func (p *Partition[T]) Delete(ctx context.Context, key any) error {
	if err := p.store.checkOpen("delete", p.name); err != nil {
		return err
	}

	_, err := p.store.db.NewDelete().
		Model((*T)(nil)).
		Where("? = ?", bun.Ident(p.primaryKey), key).
		Exec(ctx)
	return p.store.wrap("delete", p.name, err)
}

// MaxInt returns the largest value of an integer column, or 0 for an empty partition.
func (p *Partition[T]) MaxInt(ctx context.Context, column string) (int64, error) {
	if err := p.store.checkOpen("max", p.name); err != nil {
		return 0, err
	}

	var maxValue int64
	err := p.store.db.NewSelect().
		Model((*T)(nil)).
		ColumnExpr("COALESCE(MAX(?), 0)", bun.Ident(column)).
		Scan(ctx, &maxValue)
	if err != nil {
		return 0, p.store.wrap("max", p.name, err)
	}
	return maxValue, nil
}

func (p *Partition[T]) createTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().Model((*T)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (p *Partition[T]) createIndexes(ctx context.Context, db bun.IDB) error {
	for _, idx := range p.order {
		q := db.NewCreateIndex().
			Model((*T)(nil)).
			Index(p.name + "_" + idx.Name + "_idx").
			Column(idx.Column).
			IfNotExists()
		if idx.Unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
