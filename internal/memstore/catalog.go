package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
)

type Catalog struct {
	mu    sync.Mutex
	items map[string]inventory.Item
}

func NewCatalog(items ...inventory.Item) *Catalog {
	c := &Catalog{items: make(map[string]inventory.Item, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

func (c *Catalog) Put(it inventory.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[it.ID] = it
}

func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

// Stock returns -1 for unknown items.
func (c *Catalog) Stock(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return -1
	}
	return it.Stock
}

func (c *Catalog) Get(_ context.Context, id string) (inventory.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return inventory.Item{}, apperr.New(apperr.NotFound, "product %s not found", id)
	}
	return it, nil
}

func (c *Catalog) ConditionalDecrement(_ context.Context, id string, qty int) (inventory.Item, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok || it.Stock < qty {
		return inventory.Item{}, false, nil
	}
	it.Stock -= qty
	c.items[id] = it
	return it, true, nil
}

func (c *Catalog) Increment(_ context.Context, id string, qty int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok {
		return false, nil
	}
	it.Stock += qty
	c.items[id] = it
	return true, nil
}

func (c *Catalog) ProductIDsByBusiness(_ context.Context, businessID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id, it := range c.items {
		if it.BusinessID == businessID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type Discrepancies struct {
	mu   sync.Mutex
	list []inventory.Discrepancy
}

func (d *Discrepancies) Record(_ context.Context, x inventory.Discrepancy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = append(d.list, x)
	return nil
}

// List is newest first.
func (d *Discrepancies) List(_ context.Context, limit int) ([]inventory.Discrepancy, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]inventory.Discrepancy, 0, len(d.list))
	for i := len(d.list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, d.list[i])
	}
	return out, nil
}
