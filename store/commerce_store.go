package store

import "context"

// CreateItem inserts a catalog item, assigning an ID when none is set.
func (s *Store) CreateItem(ctx context.Context, create *Item) (*Item, error) {
	if create.ID == "" {
		create.ID = NewItemID()
	}
	if create.Status == "" {
		create.Status = ItemActive
	}
	return s.driver.CreateItem(ctx, create)
}

// ListItems lists catalog items matching the given filter.
func (s *Store) ListItems(ctx context.Context, find *FindItem) ([]*Item, error) {
	return s.driver.ListItems(ctx, find)
}

// GetItem returns the item with the given id, or nil.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	list, err := s.driver.ListItems(ctx, &FindItem{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateItem updates an item's mutable fields.
func (s *Store) UpdateItem(ctx context.Context, update *UpdateItem) (*Item, error) {
	return s.driver.UpdateItem(ctx, update)
}

// GetCart returns the user's cart, or an empty unsaved cart (Version 0).
func (s *Store) GetCart(ctx context.Context, userID string) (*Cart, error) {
	cart, err := s.driver.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &Cart{UserID: userID}, nil
	}
	return cart, nil
}

// SaveCart writes the cart if its version still matches the stored one and
// returns the cart with the bumped version.
func (s *Store) SaveCart(ctx context.Context, cart *Cart) (*Cart, error) {
	return s.driver.SaveCart(ctx, cart)
}

// CheckoutCart converts the cart into a purchase request atomically.
func (s *Store) CheckoutCart(ctx context.Context, checkout *CheckoutCart) (*PurchaseRequest, error) {
	return s.driver.CheckoutCart(ctx, checkout)
}

// ListPurchaseRequests lists purchase requests with their items, newest first.
func (s *Store) ListPurchaseRequests(ctx context.Context, find *FindPurchaseRequest) ([]*PurchaseRequest, error) {
	return s.driver.ListPurchaseRequests(ctx, find)
}
