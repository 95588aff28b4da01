package database

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/pictura/pictura/model"
)

// Memory is an in-process DocumentStore, used by tests and by
// local development without a graph database
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]*record
}

type record struct {
	rev  int64
	data map[string]any
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]*record)}
}

func (m *Memory) collection(name string) map[string]*record {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]*record)
		m.collections[name] = c
	}
	return c
}

// Query returns matching documents sorted by createdAt
// descending, ties broken by ID descending
func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []Document
	for id, rec := range m.collection(q.Collection) {
		if !matches(q.Filter, rec.data) {
			continue
		}
		docs = append(docs, Document{Id: id, Rev: rec.rev, Data: copyData(rec.data)})
	}

	sort.Slice(docs, func(i, j int) bool {
		ti, tj := docTime(docs[i].Data), docTime(docs[j].Data)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return docs[i].Id > docs[j].Id
	})

	if !q.StartAfterTime.IsZero() {
		after := 0
		for after < len(docs) {
			t := docTime(docs[after].Data)
			if t.Before(q.StartAfterTime) ||
				(t.Equal(q.StartAfterTime) && docs[after].Id < q.StartAfterId) {
				break
			}
			after++
		}
		docs = docs[after:]
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, nil
}

// Get returns one document by ID
func (m *Memory) Get(ctx context.Context, collection string, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.collection(collection)[id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}

	return Document{Id: id, Rev: rec.rev, Data: copyData(rec.data)}, nil
}

// Set writes a whole document, replacing any previous value
func (m *Memory) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	rev := int64(1)
	if prev, ok := c[id]; ok {
		rev = prev.rev + 1
	}
	c[id] = &record{rev: rev, data: copyData(data)}

	return nil
}

// UpdateFields applies partial updates atomically under the
// store lock
func (m *Memory) UpdateFields(ctx context.Context, collection string, id string, ops []FieldOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.collection(collection)[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			rec.data[op.Field] = copyValue(op.Value)
		case OpArrayUnion:
			list := anyList(rec.data[op.Field])
			if !listContains(list, op.Value) {
				list = append(list, copyValue(op.Value))
			}
			rec.data[op.Field] = list
		case OpArrayRemove:
			list := anyList(rec.data[op.Field])
			kept := make([]any, 0, len(list))
			for _, e := range list {
				if !reflect.DeepEqual(e, op.Value) {
					kept = append(kept, e)
				}
			}
			rec.data[op.Field] = kept
		case OpIncrement:
			cur, _ := rec.data[op.Field].(int64)
			delta, _ := op.Value.(int64)
			rec.data[op.Field] = cur + delta
		}
	}
	rec.rev++

	return nil
}

// CheckAndSetField replaces one field when the revision still
// matches, the optimistic-concurrency primitive behind nested
// reply writes
func (m *Memory) CheckAndSetField(ctx context.Context, collection string, id string, field string, value any, rev int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.collection(collection)[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotFound)
	}
	if rec.rev != rev {
		return ErrConflict
	}

	rec.data[field] = copyValue(value)
	rec.rev++

	return nil
}

// Delete removes a document; deleting a missing document is
// not an error
func (m *Memory) Delete(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collection(collection), id)

	return nil
}

func matches(f *Filter, data map[string]any) bool {
	if f == nil {
		return true
	}

	switch f.Op {
	case OpEquals:
		s, _ := data[f.Field].(string)
		return s == f.Value
	case OpArrayContains:
		for _, e := range anyList(data[f.Field]) {
			if e == f.Value {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// docTime reads the sort key of a document
func docTime(data map[string]any) time.Time {
	switch t := data["createdAt"].(type) {
	case time.Time:
		return t
	case int64:
		return time.UnixMilli(t).UTC()
	default:
		return time.Time{}
	}
}

// anyList normalizes a stored list field to []any
func anyList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, 0, len(list))
		for _, e := range list {
			out = append(out, e)
		}
		return out
	default:
		return []any{}
	}
}

func listContains(list []any, v any) bool {
	for _, e := range list {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

// copyData deep-copies document data, so callers can mutate
// results without touching the stored record
func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyData(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}
