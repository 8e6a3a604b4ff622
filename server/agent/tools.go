package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tmc/langchaingo/tools"

	"github.com/procura/procura/server/commerce"
	"github.com/procura/procura/store"
)

// Result types carried in ToolResult.Type and in message metadata.
const (
	ResultSearch               = "search_results"
	ResultItem                 = "item"
	ResultRegisteredItem       = "registered_item"
	ResultCart                 = "cart"
	ResultCheckoutConfirmation = "checkout_confirmation"
	ResultPurchaseRequest      = "purchase_request"
)

// ToolResult is the structured outcome of one tool execution.
type ToolResult struct {
	Type            string
	Query           string
	Semantic        bool
	Items           []*store.Item
	Item            *store.Item
	Cart            *store.Cart
	PurchaseRequest *store.PurchaseRequest
}

// View returns the JSON projection of the result.
func (r *ToolResult) View() any {
	switch r.Type {
	case ResultSearch:
		items := make([]ItemView, 0, len(r.Items))
		for _, item := range r.Items {
			items = append(items, NewItemView(item))
		}
		return map[string]any{"type": r.Type, "query": r.Query, "semantic": r.Semantic, "items": items}
	case ResultItem, ResultRegisteredItem:
		return map[string]any{"type": r.Type, "item": NewItemView(r.Item)}
	case ResultCart, ResultCheckoutConfirmation:
		return map[string]any{"type": r.Type, "cart": NewCartView(r.Cart)}
	case ResultPurchaseRequest:
		return map[string]any{"type": r.Type, "purchaseRequest": NewPurchaseRequestView(r.PurchaseRequest)}
	}
	return map[string]any{"type": r.Type}
}

// Tool executes one named operation for a single user. It satisfies
// langchaingo's tools.Tool so the same executors can be handed to an agent
// runtime or exposed over MCP.
type Tool struct {
	name   string
	userID string
	run    func(ctx context.Context, userID string, args Args) (*ToolResult, error)
}

var _ tools.Tool = (*Tool)(nil)

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return ToolDescription(t.name) }

// Execute validates raw arguments and runs the tool.
func (t *Tool) Execute(ctx context.Context, raw map[string]any) (*ToolResult, error) {
	args, err := Validate(t.name, raw)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, t.userID, args)
}

// Call takes a JSON object of arguments and returns the JSON result view.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	slog.Info("[AGENT TOOL CALL]", "tool", t.name, "user", t.userID)
	raw, err := ParseArgs(input)
	if err != nil {
		return "", err
	}
	result, err := t.Execute(ctx, raw)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result.View())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewTools returns every tool bound to userID.
func NewTools(svc *commerce.Service, userID string) map[string]*Tool {
	runs := map[string]func(ctx context.Context, userID string, args Args) (*ToolResult, error){
		ToolSearchCatalog: func(ctx context.Context, _ string, args Args) (*ToolResult, error) {
			result, err := svc.Catalog.Search(ctx, commerce.SearchQuery{
				Query:    args.String("query"),
				MinPrice: args.Float("minPrice"),
				MaxPrice: args.Float("maxPrice"),
				Limit:    args.Int("limit"),
			})
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultSearch, Query: args.String("query"), Semantic: result.Semantic, Items: result.Items}, nil
		},
		ToolGetItemDetails: func(ctx context.Context, _ string, args Args) (*ToolResult, error) {
			item, err := svc.Catalog.GetItem(ctx, args.String("itemId"))
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultItem, Item: item}, nil
		},
		ToolRegisterItem: func(ctx context.Context, _ string, args Args) (*ToolResult, error) {
			price := args.Float("price")
			item, err := svc.Catalog.RegisterItem(ctx, commerce.RegisterItem{
				Name:             args.String("name"),
				Category:         args.String("category"),
				Description:      args.String("description"),
				Price:            *price,
				ConfirmDuplicate: args.Bool("confirmDuplicate"),
			})
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultRegisteredItem, Item: item}, nil
		},
		ToolAddToCart: func(ctx context.Context, userID string, args Args) (*ToolResult, error) {
			cart, err := svc.Carts.AddItem(ctx, userID, args.String("itemId"), args.Int("quantity"))
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultCart, Cart: cart}, nil
		},
		ToolRemoveFromCart: func(ctx context.Context, userID string, args Args) (*ToolResult, error) {
			cart, err := svc.Carts.RemoveItem(ctx, userID, args.String("itemId"))
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultCart, Cart: cart}, nil
		},
		ToolUpdateCartQuantity: func(ctx context.Context, userID string, args Args) (*ToolResult, error) {
			cart, err := svc.Carts.UpdateQuantity(ctx, userID, args.String("itemId"), args.Int("quantity"))
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultCart, Cart: cart}, nil
		},
		ToolViewCart: func(ctx context.Context, userID string, _ Args) (*ToolResult, error) {
			cart, err := svc.Carts.View(ctx, userID)
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultCart, Cart: cart}, nil
		},
		ToolCheckout: func(ctx context.Context, userID string, args Args) (*ToolResult, error) {
			pr, err := svc.Purchasing.Checkout(ctx, commerce.CheckoutInput{
				UserID:          userID,
				ShippingAddress: args.String("shippingAddress"),
				PaymentMethod:   args.String("paymentMethod"),
			})
			if err != nil {
				return nil, err
			}
			return &ToolResult{Type: ResultPurchaseRequest, PurchaseRequest: pr}, nil
		},
	}

	out := make(map[string]*Tool, len(runs))
	for name, run := range runs {
		out[name] = &Tool{name: name, userID: userID, run: run}
	}
	return out
}
