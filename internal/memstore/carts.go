package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
)

type Carts struct {
	mu    sync.Mutex
	carts map[string]checkout.Cart
}

func NewCarts() *Carts {
	return &Carts{carts: map[string]checkout.Cart{}}
}

func (s *Carts) Get(_ context.Context, buyerID string) (checkout.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[buyerID]
	if !ok {
		return checkout.Cart{BuyerID: buyerID, Lines: []checkout.Line{}}, nil
	}
	c.Lines = append([]checkout.Line{}, c.Lines...)
	return c, nil
}

func (s *Carts) Save(_ context.Context, c checkout.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Lines = append([]checkout.Line{}, c.Lines...)
	s.carts[c.BuyerID] = c
	return nil
}

func (s *Carts) Clear(_ context.Context, buyerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[buyerID] = checkout.Cart{BuyerID: buyerID, Lines: []checkout.Line{}, UpdatedAt: time.Now().UTC()}
	return nil
}
