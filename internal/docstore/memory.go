package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memRow struct {
	seq  uint64
	body []byte
}

type memTable struct {
	mu   sync.RWMutex
	seq  uint64
	rows map[string]memRow
}

func newMemTable() *memTable {
	return &memTable{rows: map[string]memRow{}}
}

type memoryCollection[T any] struct {
	table  *memTable
	name   string
	hub    *Hub
	logger *zap.Logger
}

func (c *memoryCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	id := uuid.NewString()
	created, err := c.PutIfAbsent(ctx, id, doc)
	if err != nil {
		return "", err
	}
	if !created {
		return "", ErrExists
	}
	return id, nil
}

func (c *memoryCollection[T]) Put(ctx context.Context, id string, doc T) error {
	body, err := encodeRow(id, doc)
	if err != nil {
		return err
	}
	c.table.mu.Lock()
	row, ok := c.table.rows[id]
	if !ok {
		c.table.seq++
		row.seq = c.table.seq
	}
	row.body = body
	c.table.rows[id] = row
	c.table.mu.Unlock()

	c.hub.Publish(c.name)
	return nil
}

func (c *memoryCollection[T]) PutIfAbsent(ctx context.Context, id string, doc T) (bool, error) {
	body, err := encodeRow(id, doc)
	if err != nil {
		return false, err
	}
	c.table.mu.Lock()
	if _, ok := c.table.rows[id]; ok {
		c.table.mu.Unlock()
		return false, nil
	}
	c.table.seq++
	c.table.rows[id] = memRow{seq: c.table.seq, body: body}
	c.table.mu.Unlock()

	c.hub.Publish(c.name)
	return true, nil
}

func (c *memoryCollection[T]) Get(ctx context.Context, id string) (*Record[T], error) {
	c.table.mu.RLock()
	row, ok := c.table.rows[id]
	c.table.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var doc T
	if err := json.Unmarshal(row.body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", c.name, id, err)
	}
	return &Record[T]{ID: id, Data: doc}, nil
}

func (c *memoryCollection[T]) List(ctx context.Context) ([]Record[T], error) {
	return c.scan(func(map[string]any) bool { return true })
}

func (c *memoryCollection[T]) Find(ctx context.Context, field string, value any) ([]Record[T], error) {
	want, err := normalize(value)
	if err != nil {
		return nil, err
	}
	return c.scan(func(fields map[string]any) bool {
		return reflect.DeepEqual(fields[field], want)
	})
}

func (c *memoryCollection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	c.table.mu.Lock()
	row, ok := c.table.rows[id]
	if !ok {
		c.table.mu.Unlock()
		return ErrNotFound
	}
	current := map[string]any{}
	if err := json.Unmarshal(row.body, &current); err != nil {
		c.table.mu.Unlock()
		return fmt.Errorf("unmarshal %s/%s: %w", c.name, id, err)
	}
	for k, v := range fields {
		nv, err := normalize(v)
		if err != nil {
			c.table.mu.Unlock()
			return err
		}
		current[k] = nv
	}
	current["id"] = id
	body, err := json.Marshal(current)
	if err != nil {
		c.table.mu.Unlock()
		return fmt.Errorf("marshal %s/%s: %w", c.name, id, err)
	}
	row.body = body
	c.table.rows[id] = row
	c.table.mu.Unlock()

	c.hub.Publish(c.name)
	return nil
}

func (c *memoryCollection[T]) Delete(ctx context.Context, id string) error {
	c.table.mu.Lock()
	_, ok := c.table.rows[id]
	delete(c.table.rows, id)
	c.table.mu.Unlock()

	if ok {
		c.hub.Publish(c.name)
	}
	return nil
}

func (c *memoryCollection[T]) Subscribe(ctx context.Context, onChange func([]Record[T])) (func(), error) {
	return subscribeVia(ctx, c.hub, c.name, c.List, onChange, c.logger)
}

// scan returns matching rows in insertion order.
func (c *memoryCollection[T]) scan(match func(map[string]any) bool) ([]Record[T], error) {
	type entry struct {
		id  string
		row memRow
	}
	c.table.mu.RLock()
	entries := make([]entry, 0, len(c.table.rows))
	for id, row := range c.table.rows {
		entries = append(entries, entry{id: id, row: row})
	}
	c.table.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].row.seq < entries[j].row.seq })

	out := make([]Record[T], 0, len(entries))
	for _, e := range entries {
		fields := map[string]any{}
		if err := json.Unmarshal(e.row.body, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", c.name, e.id, err)
		}
		if !match(fields) {
			continue
		}
		doc, err := fromFields[T](fields)
		if err != nil {
			return nil, err
		}
		out = append(out, Record[T]{ID: e.id, Data: doc})
	}
	return out, nil
}

func encodeRow[T any](id string, doc T) ([]byte, error) {
	fields, err := toFields(id, doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
