package repository

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
)

var ErrDuplicate = errors.New("duplicate entry")

type Scope = func(*gorm.DB) *gorm.DB

func Where(query interface{}, args ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

func OrderBy(order string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}
}

// Preload is skipped when the scopes run for the total count in List.
func Preload(assoc string, args ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if _, counting := db.Statement.Dest.(*int64); counting {
			return db
		}
		return db.Preload(assoc, args...)
	}
}

// Repository is the CRUD gateway for one table. Every entity it serves is keyed
// by an "id" column.
type Repository[T any] struct {
	db       *gorm.DB
	name     string
	notFound error
}

func New[T any](db *gorm.DB, name string, notFound error) Repository[T] {
	return Repository[T]{db: db, name: name, notFound: notFound}
}

func (r Repository[T]) Get(id uuid.UUID, scopes ...Scope) (T, error) {
	var entity T

	result := r.db.Scopes(scopes...).First(&entity, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entity, r.notFound
		}
		slog.Error("sql error in get", "table", r.name, "id", id, "error", result.Error)
		return entity, schema.ErrDbAccessFailed
	}

	return entity, nil
}

func (r Repository[T]) Find(scopes ...Scope) ([]T, error) {
	var entities []T

	result := r.db.Scopes(scopes...).Find(&entities)
	if result.Error != nil {
		slog.Error("sql error in find", "table", r.name, "error", result.Error)
		return nil, schema.ErrDbAccessFailed
	}

	return entities, nil
}

// List returns one page of matching rows along with the total match count.
func (r Repository[T]) List(page utils.Page, scopes ...Scope) ([]T, int64, error) {
	var total int64
	result := r.db.Model(new(T)).Scopes(scopes...).Count(&total)
	if result.Error != nil {
		slog.Error("sql error counting rows", "table", r.name, "error", result.Error)
		return nil, 0, schema.ErrDbAccessFailed
	}

	entities := make([]T, 0)
	result = r.db.Scopes(scopes...).Offset(page.Offset()).Limit(page.PageSize).Find(&entities)
	if result.Error != nil {
		slog.Error("sql error listing rows", "table", r.name, "error", result.Error)
		return nil, 0, schema.ErrDbAccessFailed
	}

	return entities, total, nil
}

func (r Repository[T]) Exists(scopes ...Scope) (bool, error) {
	var count int64
	result := r.db.Model(new(T)).Scopes(scopes...).Limit(1).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking existence", "table", r.name, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}
	return count > 0, nil
}

func (r Repository[T]) Create(entity *T) error {
	result := r.db.Create(entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%v: %w", r.name, ErrDuplicate)
		}
		slog.Error("sql error in create", "table", r.name, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// Save writes every column of entity, associations excluded.
func (r Repository[T]) Save(entity *T) error {
	result := r.db.Omit(clause.Associations).Save(entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%v: %w", r.name, ErrDuplicate)
		}
		slog.Error("sql error in save", "table", r.name, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	return nil
}

// Updates changes the given columns of one row. A row that no longer exists is
// reported with the repository's not found error.
func (r Repository[T]) Updates(id uuid.UUID, values map[string]interface{}) error {
	result := r.db.Model(new(T)).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%v: %w", r.name, ErrDuplicate)
		}
		slog.Error("sql error in update", "table", r.name, "id", id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return r.recheck(id)
	}
	return nil
}

func (r Repository[T]) Delete(id uuid.UUID) error {
	result := r.db.Where("id = ?", id).Delete(new(T))
	if result.Error != nil {
		slog.Error("sql error in delete", "table", r.name, "id", id, "error", result.Error)
		return schema.ErrDbAccessFailed
	}
	if result.RowsAffected == 0 {
		return r.notFound
	}
	return nil
}

// recheck distinguishes a vanished row from an update that matched but wrote
// identical values, which some drivers report as zero rows affected.
func (r Repository[T]) recheck(id uuid.UUID) error {
	exists, err := r.Exists(Where("id = ?", id))
	if err != nil {
		return err
	}
	if !exists {
		return r.notFound
	}
	return nil
}
