package agent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	itemIDPattern = regexp.MustCompile(`\b[0-9a-fA-F]{24}\b`)

	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:quantity|qty)\s*[:=]?\s*(-?\d+)`),
		regexp.MustCompile(`(?i)(?:^|\s)(-?\d+)\s*(?:x|×)(?:\s|$)`),
		regexp.MustCompile(`(?i)(?:^|\s)(?:x|×)\s*(-?\d+)\b`),
		regexp.MustCompile(`(?i)\b(?:add|to)\s+(-?\d+)\b`),
	}

	maxPricePattern = regexp.MustCompile(`(?i)\b(?:under|below|less than|cheaper than|max(?:imum)?(?: price)?|up to|at most)\s*:?\s*\$?\s*(\d+(?:\.\d+)?)`)
	minPricePattern = regexp.MustCompile(`(?i)\b(?:over|above|more than|min(?:imum)?(?: price)?|at least)\s*:?\s*\$?\s*(\d+(?:\.\d+)?)`)

	shippingPattern = regexp.MustCompile(`(?i)\b(?:ship(?:ping address)?\s*(?::|to)|shipping\s*:|deliver to)\s*([^;\n]+?)\s*(?:[;\n]|,?\s+(?:and\s+)?pay(?:ment)?\b|$)`)
	paymentPattern  = regexp.MustCompile(`(?i)\b(?:pay(?:ment)?(?: method)?\s*(?::|with|by|using))\s*([^,;\n]+)`)

	fieldPattern = regexp.MustCompile(`(?i)\b(name|category|price|description)\s*[:=]\s*("[^"]*"|[^,;\n]+)`)
)

var (
	checkoutPhrases = []string{"checkout", "check out", "place order", "place my order", "place the order", "submit order", "submit my order", "complete my order", "complete the order"}
	negations       = []string{"no", "not", "cancel", "don't", "dont", "stop", "wait"}
	confirmWords    = []string{"confirm", "confirmed", "yes", "yep", "go ahead", "proceed", "do it", "place it"}
	registerPhrases = []string{"register item", "register an item", "register a new item", "register new item", "new catalog item", "create item", "create an item", "add new item", "add a new item"}
	viewCartPhrases = []string{"view cart", "view my cart", "show cart", "show my cart", "my cart", "what's in my cart", "whats in my cart", "cart contents", "see cart", "see my cart"}
	removeWords     = []string{"remove", "delete", "take out", "drop"}
	updateWords     = []string{"update", "change", "set", "modify"}
	detailsPhrases  = []string{"details", "detail", "tell me about", "show item", "info", "information", "describe"}
	searchPhrases   = []string{"search", "find", "look for", "looking for", "show me", "do you have", "browse", "any "}

	searchFiller = wordPatterns(
		"search for", "search", "find me", "find", "look for", "looking for", "show me", "do you have",
		"browse", "i need", "i want", "please", "can you", "could you", "some", "any",
	)
)

func wordPatterns(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

// Route resolves message to an intent using ordered keyword heuristics.
// pending is the checkout the previous agent turn asked the user to confirm,
// or nil.
func Route(message string, pending *CheckoutIntent) Intent {
	text := strings.ToLower(strings.TrimSpace(message))
	id := itemIDPattern.FindString(message)
	if id != "" {
		id = strings.ToLower(id)
	}

	if pending != nil && isConfirmation(text) && !containsWord(text, negations) {
		confirmed := *pending
		confirmed.Confirmed = true
		if v := capture(shippingPattern, message); v != "" {
			confirmed.ShippingAddress = v
		}
		if v := capture(paymentPattern, message); v != "" {
			confirmed.PaymentMethod = v
		}
		return confirmed
	}

	switch {
	case containsAny(text, checkoutPhrases):
		return CheckoutIntent{
			Confirmed:       containsWord(text, confirmWords) && !containsWord(text, negations),
			ShippingAddress: capture(shippingPattern, message),
			PaymentMethod:   capture(paymentPattern, message),
		}

	case containsAny(text, registerPhrases):
		return routeRegister(message)

	case containsWord(text, removeWords):
		if id == "" {
			return ClarifyIntent{Question: "Which item should I remove from your cart? Please give me its 24-character item ID."}
		}
		return RemoveFromCartIntent{ItemID: id}

	case containsWord(text, updateWords) && (strings.Contains(text, "quantity") || strings.Contains(text, "qty") || strings.Contains(text, "cart")):
		qty, ok := extractQuantity(message)
		if id == "" || !ok {
			return ClarifyIntent{Question: "Which item and what quantity? For example: \"update <item ID> quantity: 3\"."}
		}
		return UpdateQuantityIntent{ItemID: id, Quantity: qty}

	case containsWord(text, []string{"add"}):
		if id == "" {
			return ClarifyIntent{Question: "Which item would you like to add? Please give me its 24-character item ID, or search the catalog first."}
		}
		qty, ok := extractQuantity(message)
		if !ok {
			qty = 1
		}
		return AddToCartIntent{ItemID: id, Quantity: qty}

	case containsAny(text, viewCartPhrases) || text == "cart":
		return ViewCartIntent{}

	case id != "" && containsAny(text, detailsPhrases):
		return ItemDetailsIntent{ItemID: id}

	case containsAny(text, searchPhrases):
		query := residualQuery(text)
		if query == "" {
			return ClarifyIntent{Question: "What would you like me to search the catalog for?"}
		}
		return SearchIntent{
			Query:    query,
			MinPrice: capturePrice(minPricePattern, text),
			MaxPrice: capturePrice(maxPricePattern, text),
		}
	}

	if id != "" {
		return ItemDetailsIntent{ItemID: id}
	}
	return ChatIntent{}
}

func routeRegister(message string) Intent {
	fields := map[string]string{}
	for _, m := range fieldPattern.FindAllStringSubmatch(message, -1) {
		fields[strings.ToLower(m[1])] = strings.Trim(strings.TrimSpace(m[2]), `"`)
	}
	price, priceErr := strconv.ParseFloat(strings.TrimPrefix(fields["price"], "$"), 64)
	if fields["name"] == "" || fields["category"] == "" || fields["price"] == "" || priceErr != nil {
		return ClarifyIntent{Question: "To register an item I need its name, category and price, for example: \"register item name: Desk lamp, category: Furniture, price: 35\"."}
	}
	lower := strings.ToLower(message)
	return RegisterItemIntent{
		Name:             fields["name"],
		Category:         fields["category"],
		Description:      fields["description"],
		Price:            price,
		ConfirmDuplicate: strings.Contains(lower, "confirm") || strings.Contains(lower, "anyway"),
	}
}

// extractQuantity finds an explicit quantity. Values that do not fit an int
// are reported as out of range for the validator to reject.
func extractQuantity(message string) (int, bool) {
	masked := itemIDPattern.ReplaceAllString(message, " ")
	for _, re := range quantityPatterns {
		m := re.FindStringSubmatch(masked)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return math.MaxInt32, true
		}
		return n, true
	}
	return 0, false
}

func residualQuery(text string) string {
	text = maxPricePattern.ReplaceAllString(text, " ")
	text = minPricePattern.ReplaceAllString(text, " ")
	for _, filler := range searchFiller {
		text = filler.ReplaceAllString(text, " ")
	}
	text = strings.Trim(strings.Join(strings.Fields(text), " "), " ?.!,")
	return text
}

func capture(re *regexp.Regexp, message string) string {
	m := re.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func capturePrice(re *regexp.Regexp, text string) *float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// containsWord matches whole words or phrases only.
func containsWord(text string, words []string) bool {
	padded := " " + strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,!?;:\"()", r) {
			return ' '
		}
		return r
	}, text) + " "
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

func isConfirmation(text string) bool {
	return containsWord(text, confirmWords) || containsAny(text, checkoutPhrases)
}
