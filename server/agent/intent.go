package agent

// Tool names understood by the router, the validator and the MCP endpoint.
const (
	ToolSearchCatalog      = "search_catalog"
	ToolGetItemDetails     = "get_item_details"
	ToolRegisterItem       = "register_item"
	ToolAddToCart          = "add_to_cart"
	ToolRemoveFromCart     = "remove_from_cart"
	ToolUpdateCartQuantity = "update_cart_quantity"
	ToolViewCart           = "view_cart"
	ToolCheckout           = "checkout"
)

// Intent is what the router resolved a message to. The set of variants is
// closed; dispatch switches over every one of them.
type Intent interface {
	intent()
}

// ToolIntent is an Intent that executes a tool.
type ToolIntent interface {
	Intent
	Tool() string
	Args() map[string]any
}

type SearchIntent struct {
	Query    string
	MinPrice *float64
	MaxPrice *float64
}

type ItemDetailsIntent struct {
	ItemID string
}

type RegisterItemIntent struct {
	Name             string
	Category         string
	Description      string
	Price            float64
	ConfirmDuplicate bool
}

type AddToCartIntent struct {
	ItemID   string
	Quantity int
}

type RemoveFromCartIntent struct {
	ItemID string
}

type UpdateQuantityIntent struct {
	ItemID   string
	Quantity int
}

type ViewCartIntent struct{}

// CheckoutIntent commits only when Confirmed; otherwise the user is asked to
// confirm first.
type CheckoutIntent struct {
	Confirmed       bool
	ShippingAddress string
	PaymentMethod   string
}

// ClarifyIntent asks the user for missing details instead of guessing.
type ClarifyIntent struct {
	Question string
}

// ChatIntent is answered by the model provider without touching any state.
type ChatIntent struct{}

func (SearchIntent) intent()         {}
func (ItemDetailsIntent) intent()    {}
func (RegisterItemIntent) intent()   {}
func (AddToCartIntent) intent()      {}
func (RemoveFromCartIntent) intent() {}
func (UpdateQuantityIntent) intent() {}
func (ViewCartIntent) intent()       {}
func (CheckoutIntent) intent()       {}
func (ClarifyIntent) intent()        {}
func (ChatIntent) intent()           {}

func (SearchIntent) Tool() string         { return ToolSearchCatalog }
func (ItemDetailsIntent) Tool() string    { return ToolGetItemDetails }
func (RegisterItemIntent) Tool() string   { return ToolRegisterItem }
func (AddToCartIntent) Tool() string      { return ToolAddToCart }
func (RemoveFromCartIntent) Tool() string { return ToolRemoveFromCart }
func (UpdateQuantityIntent) Tool() string { return ToolUpdateCartQuantity }
func (ViewCartIntent) Tool() string       { return ToolViewCart }
func (CheckoutIntent) Tool() string       { return ToolCheckout }

func (i SearchIntent) Args() map[string]any {
	args := map[string]any{"query": i.Query}
	if i.MinPrice != nil {
		args["minPrice"] = *i.MinPrice
	}
	if i.MaxPrice != nil {
		args["maxPrice"] = *i.MaxPrice
	}
	return args
}

func (i ItemDetailsIntent) Args() map[string]any {
	return map[string]any{"itemId": i.ItemID}
}

func (i RegisterItemIntent) Args() map[string]any {
	args := map[string]any{
		"name":     i.Name,
		"category": i.Category,
		"price":    i.Price,
	}
	if i.Description != "" {
		args["description"] = i.Description
	}
	if i.ConfirmDuplicate {
		args["confirmDuplicate"] = true
	}
	return args
}

func (i AddToCartIntent) Args() map[string]any {
	return map[string]any{"itemId": i.ItemID, "quantity": i.Quantity}
}

func (i RemoveFromCartIntent) Args() map[string]any {
	return map[string]any{"itemId": i.ItemID}
}

func (i UpdateQuantityIntent) Args() map[string]any {
	return map[string]any{"itemId": i.ItemID, "quantity": i.Quantity}
}

func (ViewCartIntent) Args() map[string]any {
	return map[string]any{}
}

func (i CheckoutIntent) Args() map[string]any {
	args := map[string]any{}
	if i.ShippingAddress != "" {
		args["shippingAddress"] = i.ShippingAddress
	}
	if i.PaymentMethod != "" {
		args["paymentMethod"] = i.PaymentMethod
	}
	return args
}
