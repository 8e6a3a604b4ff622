package store

import (
	"strings"

	"github.com/google/uuid"
)

// ItemStatus is the catalog lifecycle of an item.
type ItemStatus string

const (
	ItemActive        ItemStatus = "ACTIVE"
	ItemPendingReview ItemStatus = "PENDING_REVIEW"
	ItemInactive      ItemStatus = "INACTIVE"
)

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemActive, ItemPendingReview, ItemInactive:
		return true
	}
	return false
}

// Item is a catalog entry. ID is a 24-character lowercase hex string.
type Item struct {
	ID          string
	Name        string
	Category    string
	Description string
	Price       float64
	Status      ItemStatus
	CreatedTs   int64
	UpdatedTs   int64
}

// FindItem filters for ListItems. Words keeps items whose name, description
// or category contains any of the words, case-insensitively.
type FindItem struct {
	ID       *string
	IDs      []string
	Status   *ItemStatus
	Category *string
	Words    []string
	Limit    *int
}

// UpdateItem carries fields accepted by UpdateItem.
type UpdateItem struct {
	ID          string
	Name        *string
	Category    *string
	Description *string
	Price       *float64
	Status      *ItemStatus
}

// NewItemID returns a fresh 24-hex item identifier.
func NewItemID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}
