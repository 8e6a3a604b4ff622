package commerce

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/procura/procura/store"
)

// itemFilterExpr keeps an item when it satisfies every supplied bound.
const itemFilterExpr = `(!has_min || price >= min_price) &&
	(!has_max || price <= max_price) &&
	(want_category == "" || category == want_category)`

// itemFilter is a compiled CEL program over item attributes.
type itemFilter struct {
	program cel.Program
}

func newItemFilter() (*itemFilter, error) {
	env, err := cel.NewEnv(
		cel.Variable("price", cel.DoubleType),
		cel.Variable("category", cel.StringType),
		cel.Variable("has_min", cel.BoolType),
		cel.Variable("min_price", cel.DoubleType),
		cel.Variable("has_max", cel.BoolType),
		cel.Variable("max_price", cel.DoubleType),
		cel.Variable("want_category", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filter env")
	}
	ast, iss := env.Compile(itemFilterExpr)
	if iss.Err() != nil {
		return nil, errors.Wrap(iss.Err(), "failed to compile item filter")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build item filter program")
	}
	return &itemFilter{program: program}, nil
}

// Match reports whether item passes the price and category bounds of q.
func (f *itemFilter) Match(item *store.Item, q *SearchQuery) (bool, error) {
	vars := map[string]any{
		"price":         item.Price,
		"category":      fold(item.Category),
		"has_min":       q.MinPrice != nil,
		"min_price":     0.0,
		"has_max":       q.MaxPrice != nil,
		"max_price":     0.0,
		"want_category": fold(q.Category),
	}
	if q.MinPrice != nil {
		vars["min_price"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		vars["max_price"] = *q.MaxPrice
	}
	out, _, err := f.program.Eval(vars)
	if err != nil {
		return false, errors.Wrap(err, "failed to evaluate item filter")
	}
	matched, ok := out.Value().(bool)
	return ok && matched, nil
}
