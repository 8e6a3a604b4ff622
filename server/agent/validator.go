package agent

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/procura/procura/internal/apperr"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInteger
	kindNumber
	kindBool
)

type field struct {
	name     string
	kind     fieldKind
	required bool
	// string length bounds, in characters
	minLen, maxLen int
	// numeric bounds, inclusive
	min, max *float64
}

type schema struct {
	description string
	fields      []field
	cross       func(args Args) error
}

func bound(v float64) *float64 { return &v }

// schemas holds one independent argument schema per tool.
var schemas = map[string]schema{
	ToolSearchCatalog: {
		description: "Search the product catalog by keyword. Optional minPrice/maxPrice bound the unit price.",
		fields: []field{
			{name: "query", kind: kindString, required: true, minLen: 1, maxLen: 500},
			{name: "minPrice", kind: kindNumber, min: bound(0)},
			{name: "maxPrice", kind: kindNumber, min: bound(0)},
			{name: "limit", kind: kindInteger, min: bound(1), max: bound(100)},
		},
		cross: func(args Args) error {
			minPrice, maxPrice := args.Float("minPrice"), args.Float("maxPrice")
			if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
				return apperr.FieldValidation("minPrice", "must not exceed maxPrice")
			}
			return nil
		},
	},
	ToolGetItemDetails: {
		description: "Get the full details of one catalog item by its itemId.",
		fields: []field{
			{name: "itemId", kind: kindString, required: true, minLen: 1, maxLen: 100},
		},
	},
	ToolRegisterItem: {
		description: "Register a new catalog item. Similar existing items block creation unless confirmDuplicate is true.",
		fields: []field{
			{name: "name", kind: kindString, required: true, minLen: 1, maxLen: 200},
			{name: "category", kind: kindString, required: true, minLen: 1, maxLen: 100},
			{name: "description", kind: kindString, maxLen: 2000},
			{name: "price", kind: kindNumber, required: true, min: bound(0.01), max: bound(1_000_000)},
			{name: "confirmDuplicate", kind: kindBool},
		},
	},
	ToolAddToCart: {
		description: "Add a quantity of a catalog item to the user's cart.",
		fields: []field{
			{name: "itemId", kind: kindString, required: true, minLen: 1, maxLen: 100},
			{name: "quantity", kind: kindInteger, required: true, min: bound(1), max: bound(1000)},
		},
	},
	ToolRemoveFromCart: {
		description: "Remove an item from the user's cart.",
		fields: []field{
			{name: "itemId", kind: kindString, required: true, minLen: 1, maxLen: 100},
		},
	},
	ToolUpdateCartQuantity: {
		description: "Set the quantity of an item already in the cart. Quantity 0 removes it.",
		fields: []field{
			{name: "itemId", kind: kindString, required: true, minLen: 1, maxLen: 100},
			{name: "quantity", kind: kindInteger, required: true, min: bound(0), max: bound(1000)},
		},
	},
	ToolViewCart: {
		description: "Show the user's cart with line subtotals and the total.",
	},
	ToolCheckout: {
		description: "Convert the cart into a purchase request. Requires the user's explicit confirmation.",
		fields: []field{
			{name: "shippingAddress", kind: kindString, maxLen: 500},
			{name: "paymentMethod", kind: kindString, maxLen: 100},
		},
	},
}

// ToolNames returns the tool names in a stable order.
func ToolNames() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolDescription returns the human description of a tool.
func ToolDescription(tool string) string {
	return schemas[tool].description
}

// ToolSchema returns the JSON Schema of a tool's arguments.
func ToolSchema(tool string) map[string]any {
	s := schemas[tool]
	properties := map[string]any{}
	required := []string{}
	for _, f := range s.fields {
		prop := map[string]any{}
		switch f.kind {
		case kindString:
			prop["type"] = "string"
			if f.minLen > 0 {
				prop["minLength"] = f.minLen
			}
			if f.maxLen > 0 {
				prop["maxLength"] = f.maxLen
			}
		case kindInteger:
			prop["type"] = "integer"
		case kindNumber:
			prop["type"] = "number"
		case kindBool:
			prop["type"] = "boolean"
		}
		if f.min != nil {
			prop["minimum"] = *f.min
		}
		if f.max != nil {
			prop["maximum"] = *f.max
		}
		properties[f.name] = prop
		if f.required {
			required = append(required, f.name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Args are validated tool arguments. Integers are held as int and numbers as
// float64.
type Args map[string]any

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

func (a Args) Float(name string) *float64 {
	v, ok := a[name].(float64)
	if !ok {
		return nil
	}
	return &v
}

func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// Validate checks raw arguments against the tool's schema and returns them
// normalized. Strings are trimmed before length checks.
func Validate(tool string, raw map[string]any) (Args, error) {
	s, ok := schemas[tool]
	if !ok {
		return nil, apperr.Validation("unknown tool %q", tool)
	}
	known := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		known[f.name] = true
	}
	for name := range raw {
		if !known[name] {
			return nil, apperr.FieldValidation(name, "is not a recognized argument")
		}
	}

	args := Args{}
	for _, f := range s.fields {
		v, present := raw[f.name]
		if !present || v == nil {
			if f.required {
				return nil, apperr.FieldValidation(f.name, "is required")
			}
			continue
		}
		value, err := f.check(v)
		if err != nil {
			return nil, err
		}
		args[f.name] = value
	}
	if s.cross != nil {
		if err := s.cross(args); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (f field) check(v any) (any, error) {
	switch f.kind {
	case kindString:
		str, ok := v.(string)
		if !ok {
			return nil, apperr.FieldValidation(f.name, "must be a string")
		}
		str = strings.TrimSpace(str)
		if str == "" && f.required {
			return nil, apperr.FieldValidation(f.name, "is required")
		}
		n := utf8.RuneCountInString(str)
		if n < f.minLen || (f.maxLen > 0 && n > f.maxLen) {
			return nil, apperr.FieldValidation(f.name, "must be between %d and %d characters", f.minLen, f.maxLen)
		}
		return str, nil

	case kindInteger:
		num, ok := toFloat(v)
		if !ok || num != math.Trunc(num) {
			return nil, apperr.FieldValidation(f.name, "must be an integer")
		}
		if err := f.checkRange(num); err != nil {
			return nil, err
		}
		return int(num), nil

	case kindNumber:
		num, ok := toFloat(v)
		if !ok || math.IsNaN(num) || math.IsInf(num, 0) {
			return nil, apperr.FieldValidation(f.name, "must be a number")
		}
		if err := f.checkRange(num); err != nil {
			return nil, err
		}
		return num, nil

	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, apperr.FieldValidation(f.name, "must be a boolean")
		}
		return b, nil
	}
	return nil, apperr.FieldValidation(f.name, "has an unsupported type")
}

func (f field) checkRange(num float64) error {
	switch {
	case f.min != nil && f.max != nil && (num < *f.min || num > *f.max):
		return apperr.FieldValidation(f.name, "must be between %g and %g", *f.min, *f.max)
	case f.min != nil && num < *f.min:
		return apperr.FieldValidation(f.name, "must be at least %g", *f.min)
	case f.max != nil && num > *f.max:
		return apperr.FieldValidation(f.name, "must be at most %g", *f.max)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseArgs decodes a JSON argument object.
func ParseArgs(input string) (map[string]any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return map[string]any{}, nil
	}
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil, apperr.Validation("arguments must be a JSON object")
	}
	return raw, nil
}
