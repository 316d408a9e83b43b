package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PersistFunc is called with the full contents of a collection after every
// successful mutation. A non-nil error rolls the mutation back.
type PersistFunc func(collection string, docs []Document) error

// Memory is an in-process Store. All collections share one lock, so Replace
// is atomic with respect to every other operation.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	persist     PersistFunc
	newID       func() string
}

type memCollection struct {
	name  string
	mem   *Memory
	docs  map[string]Document
	order []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		newID:       uuid.NewString,
	}
}

// SetPersist installs a hook that makes mutations durable.
func (m *Memory) SetPersist(fn PersistFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = fn
}

// Load replaces a collection's contents without invoking the persist hook.
// Documents without a storage id are given one.
func (m *Memory) Load(name string, docs []Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collectionLocked(name)
	c.docs = make(map[string]Document, len(docs))
	c.order = c.order[:0]
	for _, doc := range docs {
		d := doc.Clone()
		id := d.ID()
		if id == "" {
			id = m.newID()
			d[IDField] = id
		}
		if _, exists := c.docs[id]; !exists {
			c.order = append(c.order, id)
		}
		c.docs[id] = d
	}
}

// Names returns the names of every collection that has been opened.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names
}

// Collection returns the named collection, creating it on first use.
func (m *Memory) Collection(name string) Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionLocked(name)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) collectionLocked(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{name: name, mem: m, docs: make(map[string]Document)}
		m.collections[name] = c
	}
	return c
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) Find(ctx context.Context, filter Filter, sorts ...Sort) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("find", c.name, err)
	}
	c.mem.mu.RLock()
	defer c.mem.mu.RUnlock()
	return c.findLocked(filter, sorts), nil
}

func (c *memCollection) findLocked(filter Filter, sorts []Sort) []Document {
	var out []Document
	for _, id := range c.order {
		doc := c.docs[id]
		if filter.Match(doc) {
			out = append(out, doc.Clone())
		}
	}
	SortDocuments(out, sorts)
	return out
}

func (c *memCollection) FindOne(ctx context.Context, filter Filter, sorts ...Sort) (Document, error) {
	docs, err := c.Find(ctx, filter, sorts...)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *memCollection) Count(ctx context.Context, filter Filter) (int, error) {
	docs, err := c.Find(ctx, filter)
	return len(docs), err
}

func (c *memCollection) Upsert(ctx context.Context, docs ...Document) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap("upsert", c.name, err)
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	undo := c.snapshot()
	ids := c.upsertLocked(docs)
	if err := c.persistLocked(); err != nil {
		c.restore(undo)
		return nil, Wrap("upsert", c.name, err)
	}
	return ids, nil
}

func (c *memCollection) upsertLocked(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		d := doc.Clone()
		if d == nil {
			d = Document{}
		}
		id := d.ID()
		if id == "" {
			id = c.mem.newID()
			d[IDField] = id
		}
		if _, exists := c.docs[id]; !exists {
			c.order = append(c.order, id)
		}
		c.docs[id] = d
		ids = append(ids, id)
	}
	return ids
}

func (c *memCollection) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return Wrap("remove", c.name, err)
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return nil
	}
	undo := c.snapshot()
	c.removeLocked(id)
	if err := c.persistLocked(); err != nil {
		c.restore(undo)
		return Wrap("remove", c.name, err)
	}
	return nil
}

func (c *memCollection) removeLocked(id string) {
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Replace removes every match of filter and inserts doc under a single lock.
func (c *memCollection) Replace(ctx context.Context, filter Filter, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Wrap("replace", c.name, err)
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	undo := c.snapshot()
	for _, old := range c.findLocked(filter, nil) {
		c.removeLocked(old.ID())
	}
	insert := doc.Clone()
	delete(insert, IDField)
	ids := c.upsertLocked([]Document{insert})
	if err := c.persistLocked(); err != nil {
		c.restore(undo)
		return "", Wrap("replace", c.name, err)
	}
	return ids[0], nil
}

type memSnapshot struct {
	docs  map[string]Document
	order []string
}

func (c *memCollection) snapshot() memSnapshot {
	docs := make(map[string]Document, len(c.docs))
	for k, v := range c.docs {
		docs[k] = v
	}
	order := make([]string, len(c.order))
	copy(order, c.order)
	return memSnapshot{docs: docs, order: order}
}

func (c *memCollection) restore(s memSnapshot) {
	c.docs = s.docs
	c.order = s.order
}

func (c *memCollection) persistLocked() error {
	if c.mem.persist == nil {
		return nil
	}
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, c.docs[id])
	}
	if err := c.mem.persist(c.name, docs); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}
