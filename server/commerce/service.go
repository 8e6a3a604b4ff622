package commerce

import (
	"github.com/procura/procura/internal/cache"
	"github.com/procura/procura/store"
)

// Service bundles the catalog, cart and purchasing operations.
type Service struct {
	Catalog    *Catalog
	Carts      *Carts
	Purchasing *Purchasing
}

// NewService wires the commerce operations over one store.
func NewService(s *store.Store, c cache.Cache, index Index) (*Service, error) {
	catalog, err := NewCatalog(s, c, index)
	if err != nil {
		return nil, err
	}
	return &Service{
		Catalog:    catalog,
		Carts:      NewCarts(s, catalog),
		Purchasing: NewPurchasing(s),
	}, nil
}
