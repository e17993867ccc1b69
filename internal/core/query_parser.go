package core

import (
	"fmt"
	"math"

	"github.com/alecthomas/participle/v2"
)

/*
Queries select documents by the entities found in them:

Query       := Expr
Expr        := OrExpr ( "OR" OrExpr )*
OrExpr      := Condition ( "AND" Condition )*
Condition   := "NOT"? ( Filter | "(" Expr ")" )
Filter      := Label Op Value
Label       := "COUNT" "(" <identifier> ")" | "COUNT" <identifier> | <identifier>
Op          := "CONTAINS" | "<" | ">" | "="
Value       := <string> | <int>

e.g. NAME = "arddh" AND NOT COUNT(NAME) > 2
*/

var queryParser = participle.MustBuild[QueryExpr](
	participle.Unquote("String"),
	participle.Union[Value](StringValue{}, IntValue{}),
)

func ParseQuery(query string) (Filter, error) {
	q, err := queryParser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("error parsing query '%s': %w", query, err)
	}

	filter, err := q.Expr.ToFilter()
	if err != nil {
		return nil, fmt.Errorf("error converting query '%s' to filter: %w", query, err)
	}

	return filter, nil
}

// ParseQueries parses a set of named queries, failing on the first bad one.
func ParseQueries(queries map[string]string) (map[string]Filter, error) {
	filters := make(map[string]Filter, len(queries))
	for name, query := range queries {
		filter, err := ParseQuery(query)
		if err != nil {
			return nil, fmt.Errorf("query '%s': %w", name, err)
		}
		filters[name] = filter
	}
	return filters, nil
}

type QueryExpr struct {
	Expr *Expr `@@`
}

type Expr struct {
	Ors []*OrExpr `@@ ( "OR" @@ )*`
}

func (e *Expr) ToFilter() (Filter, error) {
	if len(e.Ors) == 0 {
		return nil, fmt.Errorf("empty OR expression")
	}

	filters := make([]Filter, 0, len(e.Ors))
	for _, or := range e.Ors {
		f, err := or.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	if len(filters) == 1 {
		return filters[0], nil
	}
	return &OrFilter{filters: filters}, nil
}

type OrExpr struct {
	Ands []*Condition `@@ ( "AND" @@ )*`
}

func (o *OrExpr) ToFilter() (Filter, error) {
	if len(o.Ands) == 0 {
		return nil, fmt.Errorf("empty AND expression")
	}

	filters := make([]Filter, 0, len(o.Ands))
	for _, cond := range o.Ands {
		f, err := cond.ToFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	if len(filters) == 1 {
		return filters[0], nil
	}
	return &AndFilter{filters: filters}, nil
}

type Condition struct {
	Not     bool        `@"NOT"?`
	Filter  *FilterExpr `( @@`
	SubExpr *Expr       `| "(" @@ ")" )`
}

func (c *Condition) ToFilter() (Filter, error) {
	var (
		filter Filter
		err    error
	)
	switch {
	case c.Filter != nil:
		filter, err = c.Filter.ToFilter()
	case c.SubExpr != nil:
		filter, err = c.SubExpr.ToFilter()
	default:
		return nil, fmt.Errorf("empty condition")
	}
	if err != nil {
		return nil, err
	}

	if c.Not {
		return &NotFilter{filter: filter}, nil
	}
	return filter, nil
}

type FilterExpr struct {
	Label Label  `@@`
	Op    string `@("CONTAINS" | "<" | ">" | "=")`
	Value Value  `@@`
}

func (f *FilterExpr) ToFilter() (Filter, error) {
	if f.Label.Count {
		i, ok := f.Value.(IntValue)
		if !ok {
			return nil, fmt.Errorf("COUNT expr requires an int value to compare to")
		}

		switch f.Op {
		case "<":
			return &CountFilter{label: f.Label.Name, min: -1, max: i.Value}, nil
		case ">":
			return &CountFilter{label: f.Label.Name, min: i.Value, max: math.MaxInt}, nil
		case "=":
			return &CountFilter{label: f.Label.Name, min: i.Value - 1, max: i.Value + 1}, nil
		default:
			return nil, fmt.Errorf("invalid operator %s used with COUNT", f.Op)
		}
	}

	s, ok := f.Value.(StringValue)
	if !ok {
		return nil, fmt.Errorf("if not using COUNT operator then the value to compare to must be a string")
	}

	switch f.Op {
	case "CONTAINS":
		return &SubstringFilter{label: f.Label.Name, substr: s.Value}, nil
	case "<":
		return &StringLtFilter{label: f.Label.Name, value: s.Value}, nil
	case ">":
		return &StringGtFilter{label: f.Label.Name, value: s.Value}, nil
	case "=":
		return &StringEqFilter{label: f.Label.Name, value: s.Value}, nil
	default:
		return nil, fmt.Errorf("invalid operator %s used with string value", f.Op)
	}
}

type Label struct {
	Count bool   `( @"COUNT"`
	Name  string `  ( "(" @Ident ")" | @Ident ) | @Ident )`
}

type Value interface{ value() }

type StringValue struct {
	Value string `@String`
}

func (s StringValue) value() {}

type IntValue struct {
	Value int `@Int`
}

func (i IntValue) value() {}
