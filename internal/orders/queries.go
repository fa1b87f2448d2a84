package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Get returns the order if the caller is its buyer or one of its sellers.
func (m *Machine) Get(ctx context.Context, callerID, orderID string) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID == callerID {
		return o, nil
	}
	seller, err := m.isSeller(ctx, o, callerID)
	if err != nil {
		return nil, fmt.Errorf("resolve seller: %w", err)
	}
	if !seller {
		return nil, apperr.New(apperr.Unauthorized, "order %s is not yours", orderID)
	}
	return o, nil
}

func (m *Machine) ListForBuyer(ctx context.Context, callerID string) ([]Order, error) {
	out, err := m.Store.FindByBuyer(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list buyer orders: %w", err)
	}
	return out, nil
}

// ListForSeller returns orders sold by the caller's business or containing its
// products. Orders matched only by product keep only the caller's lines.
func (m *Machine) ListForSeller(ctx context.Context, callerID string) ([]Order, error) {
	biz, products, ok, err := m.sellerScope(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("resolve seller: %w", err)
	}
	if !ok {
		return []Order{}, nil
	}
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	found, err := m.Store.FindBySellerOrProducts(ctx, biz.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}

	seen := make(map[string]bool, len(found))
	out := make([]Order, 0, len(found))
	for _, o := range found {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		if o.BusinessID != biz.ID {
			lines := make([]Line, 0, len(o.Lines))
			for _, l := range o.Lines {
				if _, mine := products[l.ProductID]; mine {
					lines = append(lines, l)
				}
			}
			o.Lines = lines
		}
		out = append(out, o)
	}
	return out, nil
}
