package memstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

// Stores is one consistent set of in-process stores.
type Stores struct {
	Catalog       *Catalog
	Carts         *Carts
	Orders        *Orders
	Businesses    *Businesses
	Ratings       *Ratings
	Discrepancies *Discrepancies
	Cache         *Cache
}

func New() *Stores {
	o := NewOrders()
	return &Stores{
		Catalog:       NewCatalog(),
		Carts:         NewCarts(),
		Orders:        o,
		Businesses:    NewBusinesses(),
		Ratings:       NewRatings(o),
		Discrepancies: &Discrepancies{},
		Cache:         NewCache(),
	}
}

type seedFile struct {
	Businesses []orders.Business `json:"businesses"`
	Products   []inventory.Item  `json:"products"`
}

// LoadSeed fills the catalog and businesses from a JSON file. Product
// business name and phone default to the owning business.
func (s *Stores) LoadSeed(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	byID := make(map[string]orders.Business, len(f.Businesses))
	s.Businesses.mu.Lock()
	for _, biz := range f.Businesses {
		s.Businesses.byID[biz.ID] = biz
		byID[biz.ID] = biz
	}
	s.Businesses.mu.Unlock()

	for _, it := range f.Products {
		if biz, ok := byID[it.BusinessID]; ok {
			if it.BusinessName == "" {
				it.BusinessName = biz.Name
			}
			if it.BusinessPhone == "" {
				it.BusinessPhone = biz.Phone
			}
		}
		s.Catalog.Put(it)
	}
	return nil
}
