package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/store"
)

// Metadata types that are not tool results.
const (
	MetadataClarification = "clarification"
	MetadataChat          = "chat"
	MetadataError         = "error"
)

// Reply is the agent's answer for one turn.
type Reply struct {
	Text     string
	Metadata any
}

// MetadataJSON encodes the metadata for storage, or "" when there is none.
func (r Reply) MetadataJSON() string {
	if r.Metadata == nil {
		return ""
	}
	data, err := json.Marshal(r.Metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// Synthesize turns a successful tool result into a reply.
func Synthesize(result *ToolResult) Reply {
	var sb strings.Builder
	switch result.Type {
	case ResultSearch:
		if len(result.Items) == 0 {
			fmt.Fprintf(&sb, "I couldn't find any items matching %q.", result.Query)
			break
		}
		if result.Semantic {
			fmt.Fprintf(&sb, "No exact matches for %q, but these look related:\n\n", result.Query)
		} else {
			fmt.Fprintf(&sb, "Found %d item(s) matching %q:\n\n", len(result.Items), result.Query)
		}
		for i, item := range result.Items {
			fmt.Fprintf(&sb, "%d. **%s** (%s) %s, ID `%s`\n", i+1, item.Name, item.Category, money(item.Price), item.ID)
		}
		sb.WriteString("\nSay \"add <item ID>\" to put one in your cart.")

	case ResultItem:
		writeItem(&sb, result.Item)

	case ResultRegisteredItem:
		fmt.Fprintf(&sb, "Registered **%s** in %s at %s. Its item ID is `%s`.",
			result.Item.Name, result.Item.Category, money(result.Item.Price), result.Item.ID)

	case ResultCart:
		writeCart(&sb, result.Cart)

	case ResultPurchaseRequest:
		pr := result.PurchaseRequest
		fmt.Fprintf(&sb, "Purchase request **%s** submitted with %d line(s), total %s. Your cart is now empty.",
			pr.RequestNumber, len(pr.Items), money(pr.TotalCost))
	}
	return Reply{Text: strings.TrimSpace(sb.String()), Metadata: result.View()}
}

func writeItem(sb *strings.Builder, item *store.Item) {
	fmt.Fprintf(sb, "**%s** (%s)\n\nPrice: %s\nID: `%s`", item.Name, item.Category, money(item.Price), item.ID)
	if item.Description != "" {
		fmt.Fprintf(sb, "\n\n%s", item.Description)
	}
	if item.Status != store.ItemActive {
		fmt.Fprintf(sb, "\n\nThis item is currently not available for purchase.")
	}
}

func writeCart(sb *strings.Builder, cart *store.Cart) {
	if len(cart.Items) == 0 {
		sb.WriteString("Your cart is empty.")
		return
	}
	sb.WriteString("Your cart:\n\n")
	for _, line := range cart.Items {
		fmt.Fprintf(sb, "- **%s** x%d at %s = %s\n", line.Name, line.Quantity, money(line.UnitPrice), money(line.Subtotal))
	}
	fmt.Fprintf(sb, "\nTotal: %s for %d unit(s).", money(cart.TotalCost()), cart.TotalQuantity())
}

// ConfirmCheckout asks the user to confirm converting cart into a purchase
// request. The pending details travel in the metadata so a follow-up "yes"
// can complete them.
func ConfirmCheckout(cart *store.Cart, pending CheckoutIntent) Reply {
	if len(cart.Items) == 0 {
		return Reply{
			Text:     "Your cart is empty, so there is nothing to check out yet.",
			Metadata: map[string]any{"type": ResultCart, "cart": NewCartView(cart)},
		}
	}
	var sb strings.Builder
	writeCart(&sb, cart)
	if pending.ShippingAddress != "" {
		fmt.Fprintf(&sb, "\nShipping to: %s", pending.ShippingAddress)
	}
	if pending.PaymentMethod != "" {
		fmt.Fprintf(&sb, "\nPayment: %s", pending.PaymentMethod)
	}
	sb.WriteString("\n\nReply \"confirm\" to place this order.")
	return Reply{
		Text: sb.String(),
		Metadata: map[string]any{
			"type":            ResultCheckoutConfirmation,
			"cart":            NewCartView(cart),
			"shippingAddress": pending.ShippingAddress,
			"paymentMethod":   pending.PaymentMethod,
		},
	}
}

// SynthesizeError explains a failed tool call by error class without
// exposing internal details.
func SynthesizeError(tool string, err error) Reply {
	appErr, ok := apperr.As(err)
	if !ok {
		return Reply{
			Text:     fmt.Sprintf("Something went wrong while running %s. Please try again in a moment.", strings.ReplaceAll(tool, "_", " ")),
			Metadata: map[string]any{"type": MetadataError, "error": apperr.KindInternal},
		}
	}

	metadata := map[string]any{"type": MetadataError, "error": appErr.Kind}
	var text string
	switch appErr.Kind {
	case apperr.KindValidation:
		text = fmt.Sprintf("I couldn't do that because the request was invalid: %s.", appErr.Error())
	case apperr.KindNotFound:
		text = fmt.Sprintf("I couldn't find that: %s.", appErr.Error())
	case apperr.KindDuplicate:
		var sb strings.Builder
		sb.WriteString("A similar item is already in the catalog:\n\n")
		for _, c := range appErr.Candidates {
			fmt.Fprintf(&sb, "- **%s** (%s), ID `%s`\n", c.Name, c.Category, c.ID)
		}
		sb.WriteString("\nRepeat the request with \"confirm\" to register it anyway.")
		text = sb.String()
		metadata["candidates"] = appErr.Candidates
	case apperr.KindCartLimit, apperr.KindEmptyCart, apperr.KindConflict:
		text = upperFirst(appErr.Error()) + "."
	default:
		text = fmt.Sprintf("Something went wrong while running %s. Please try again in a moment.", strings.ReplaceAll(tool, "_", " "))
		metadata["error"] = apperr.KindInternal
	}
	return Reply{Text: text, Metadata: metadata}
}

// Clarify asks a follow-up question.
func Clarify(question string) Reply {
	return Reply{Text: question, Metadata: map[string]any{"type": MetadataClarification}}
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
