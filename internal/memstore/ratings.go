package memstore

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/ratings"
)

// Ratings shares the Orders lock so the rating slot and the aggregate move
// together.
type Ratings struct {
	Orders *Orders

	mu         sync.Mutex
	businesses map[string]ratings.Aggregate
	buyers     map[string]ratings.Aggregate
}

func NewRatings(o *Orders) *Ratings {
	return &Ratings{
		Orders:     o,
		businesses: map[string]ratings.Aggregate{},
		buyers:     map[string]ratings.Aggregate{},
	}
}

func (s *Ratings) RecordSellerRating(_ context.Context, orderID, businessID string, r orders.Rating) error {
	s.Orders.mu.Lock()
	defer s.Orders.mu.Unlock()
	o, ok := s.Orders.orders[orderID]
	if !ok || o.Status != orders.StatusDelivered || o.SellerRating != nil {
		return apperr.New(apperr.AlreadyRated, "order %s already rated", orderID)
	}
	o.SellerRating = &r

	if businessID != "" {
		s.mu.Lock()
		s.businesses[businessID] = s.businesses[businessID].Add(r.Score)
		s.mu.Unlock()
	}
	return nil
}

func (s *Ratings) RecordBuyerRating(_ context.Context, orderID, buyerID string, r orders.Rating) error {
	s.Orders.mu.Lock()
	defer s.Orders.mu.Unlock()
	o, ok := s.Orders.orders[orderID]
	if !ok || o.Status != orders.StatusDelivered || o.BuyerRating != nil {
		return apperr.New(apperr.AlreadyRated, "buyer of order %s already rated", orderID)
	}
	o.BuyerRating = &r

	s.mu.Lock()
	s.buyers[buyerID] = s.buyers[buyerID].Add(r.Score)
	s.mu.Unlock()
	return nil
}

func (s *Ratings) BusinessReputation(_ context.Context, businessID string) (ratings.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businesses[businessID], nil
}

func (s *Ratings) BuyerReputation(_ context.Context, userID string) (ratings.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buyers[userID], nil
}
