package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
)

type Orders struct {
	mu     sync.Mutex
	orders map[string]*orders.Order
}

func NewOrders() *Orders {
	return &Orders{orders: map[string]*orders.Order{}}
}

func clone(o *orders.Order) *orders.Order {
	c := *o
	c.Lines = append([]orders.Line(nil), o.Lines...)
	if o.SellerRating != nil {
		r := *o.SellerRating
		c.SellerRating = &r
	}
	if o.BuyerRating != nil {
		r := *o.BuyerRating
		c.BuyerRating = &r
	}
	return &c
}

func (s *Orders) Create(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return nil
	}
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *Orders) Get(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "order %s not found", id)
	}
	return clone(o), nil
}

func (s *Orders) TransitionStatus(_ context.Context, id string, from, to orders.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Orders) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return apperr.New(apperr.NotFound, "order %s not found", id)
	}
	delete(s.orders, id)
	return nil
}

func (s *Orders) FindByBuyer(_ context.Context, buyerID string) ([]orders.Order, error) {
	return s.filter(func(o *orders.Order) bool { return o.BuyerID == buyerID }), nil
}

func (s *Orders) FindBySellerOrProducts(_ context.Context, businessID string, productIDs []string) ([]orders.Order, error) {
	set := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		set[id] = struct{}{}
	}
	return s.filter(func(o *orders.Order) bool {
		return (businessID != "" && o.BusinessID == businessID) || o.HasProduct(set)
	}), nil
}

// Len is the number of stored orders.
func (s *Orders) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Orders) filter(keep func(*orders.Order) bool) []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *clone(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type Businesses struct {
	mu   sync.Mutex
	byID map[string]orders.Business
}

func NewBusinesses(bs ...orders.Business) *Businesses {
	s := &Businesses{byID: map[string]orders.Business{}}
	for _, b := range bs {
		s.byID[b.ID] = b
	}
	return s
}

func (s *Businesses) Get(_ context.Context, id string) (orders.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return orders.Business{}, apperr.New(apperr.NotFound, "business %s not found", id)
	}
	return b, nil
}

func (s *Businesses) OwnedBy(_ context.Context, userID string) (orders.Business, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.byID {
		if b.OwnerID == userID {
			return b, true, nil
		}
	}
	return orders.Business{}, false, nil
}
