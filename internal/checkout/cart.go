package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/rs/zerolog"
)

// Carts implements cart mutations. Quantities are clamped to the stock seen
// at mutation time; checkout re-validates against live stock anyway.
type Carts struct {
	Store   Store
	Catalog inventory.Store
	Log     zerolog.Logger
}

func (s *Carts) item(ctx context.Context, itemID string) (inventory.Item, error) {
	it, err := s.Catalog.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return inventory.Item{}, apperr.New(apperr.NotFound, "product %s not found", itemID)
		}
		return inventory.Item{}, fmt.Errorf("load product %s: %w", itemID, err)
	}
	return it, nil
}

func (s *Carts) Get(ctx context.Context, buyerID string) (View, error) {
	c, err := s.Store.Get(ctx, buyerID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	return s.view(ctx, c)
}

func (s *Carts) Add(ctx context.Context, buyerID, itemID string, qty int) (View, error) {
	if qty < 1 {
		return View{}, apperr.New(apperr.InvalidInput, "quantity must be at least 1")
	}
	it, err := s.item(ctx, itemID)
	if err != nil {
		return View{}, err
	}
	if it.Stock <= 0 {
		return View{}, apperr.Stock(it.Name)
	}
	c, err := s.Store.Get(ctx, buyerID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	if i := c.find(itemID); i >= 0 {
		c.Lines[i].Quantity = min(it.Stock, c.Lines[i].Quantity+qty)
	} else {
		c.Lines = append(c.Lines, Line{ItemID: itemID, Quantity: min(it.Stock, qty)})
	}
	return s.save(ctx, c)
}

func (s *Carts) Update(ctx context.Context, buyerID, itemID string, qty int) (View, error) {
	if qty < 1 {
		return View{}, apperr.New(apperr.InvalidInput, "quantity must be at least 1")
	}
	c, err := s.Store.Get(ctx, buyerID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	i := c.find(itemID)
	if i < 0 {
		return View{}, apperr.New(apperr.NotFound, "product %s is not in the cart", itemID)
	}
	it, err := s.item(ctx, itemID)
	if err != nil {
		return View{}, err
	}
	c.Lines[i].Quantity = max(1, min(it.Stock, qty))
	return s.save(ctx, c)
}

func (s *Carts) Remove(ctx context.Context, buyerID, itemID string) (View, error) {
	c, err := s.Store.Get(ctx, buyerID)
	if err != nil {
		return View{}, fmt.Errorf("load cart: %w", err)
	}
	if i := c.find(itemID); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
	return s.save(ctx, c)
}

func (s *Carts) Clear(ctx context.Context, buyerID string) error {
	if err := s.Store.Clear(ctx, buyerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Carts) save(ctx context.Context, c Cart) (View, error) {
	c.UpdatedAt = time.Now().UTC()
	if err := s.Store.Save(ctx, c); err != nil {
		return View{}, fmt.Errorf("save cart: %w", err)
	}
	return s.view(ctx, c)
}

func (s *Carts) view(ctx context.Context, c Cart) (View, error) {
	v := View{Items: make([]LineView, 0, len(c.Lines)), UpdatedAt: c.UpdatedAt}
	for _, l := range c.Lines {
		lv := LineView{ItemID: l.ItemID, Quantity: l.Quantity}
		it, err := s.Catalog.Get(ctx, l.ItemID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			lv.Missing = true
		case err != nil:
			return View{}, fmt.Errorf("load product %s: %w", l.ItemID, err)
		default:
			lv.Name = it.Name
			lv.PriceCents = it.PriceCents
			lv.Discount = it.Discount
			lv.UnitPriceCents = it.UnitPriceCents()
			lv.Stock = it.Stock
			lv.BusinessID = it.BusinessID
			lv.BusinessName = it.BusinessName
			lv.BusinessPhone = it.BusinessPhone
			v.TotalCents += lv.UnitPriceCents * int64(l.Quantity)
		}
		v.Items = append(v.Items, lv)
	}
	return v, nil
}
