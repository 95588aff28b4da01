package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pictura/pictura/model"
)

// Timeout bounds every remote store call
const Timeout = 15 * time.Second

// casAttempts bounds revision-checked retry loops
const casAttempts = 5

// ErrConflict is returned by CheckAndSetField when the document
// revision moved between read and write
var ErrConflict = errors.New("document revision conflict")

// Collection names
const (
	Posts = "posts"
	Users = "users"
)

// Filter operators
const (
	OpEquals        = "=="
	OpArrayContains = "array-contains"
)

// Filter restricts a query to documents matching one field
type Filter struct {
	Field string
	Op    string
	Value string
}

// Query describes an ordered, filtered read over a collection.
// Results are always sorted by createdAt descending, ties
// broken by document ID descending
type Query struct {
	Collection string
	Filter     *Filter
	// Limit caps the page size; 0 means unbounded
	Limit int
	// StartAfterTime and StartAfterId skip every document at or
	// before the given sort key. Zero time starts from the
	// newest document
	StartAfterTime time.Time
	StartAfterId   string
}

// FieldOp kinds
const (
	OpSet = iota
	OpArrayUnion
	OpArrayRemove
	OpIncrement
)

// FieldOp is one atomic partial update on a document field.
// Union and remove are set operations: applying one twice has
// the same effect as applying it once
type FieldOp struct {
	Kind  int
	Field string
	Value any
}

// Document is one stored record with its revision counter
type Document struct {
	Id   string
	Rev  int64
	Data map[string]any
}

// DocumentStore is the capability the core needs from the
// remote document database
type DocumentStore interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection string, id string) (Document, error)
	Set(ctx context.Context, collection string, id string, data map[string]any) error
	UpdateFields(ctx context.Context, collection string, id string, ops []FieldOp) error
	// CheckAndSetField replaces one field only when the document
	// revision still matches; fails with ErrConflict otherwise
	CheckAndSetField(ctx context.Context, collection string, id string, field string, value any, rev int64) error
	Delete(ctx context.Context, collection string, id string) error
}

// appendListField appends one value to a list field through a
// bounded revision-checked replace loop, for stores without an
// atomic list append
func appendListField(ctx context.Context, store DocumentStore, collection string, id string, field string, value any) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		doc, err := store.Get(ctx, collection, id)
		if err != nil {
			return err
		}

		list := append(anyList(doc.Data[field]), value)
		err = store.CheckAndSetField(ctx, collection, id, field, list, doc.Rev)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}

	return fmt.Errorf("append to %s on %s/%s kept conflicting: %w", field, collection, id, model.ErrNetwork)
}
