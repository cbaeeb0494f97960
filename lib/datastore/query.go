// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastore

import (
	"fmt"
	"strings"
)

// Op is a condition operator.
type Op string

const (
	OpEq      Op = "eq"
	OpNeq     Op = "neq"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIn      Op = "in"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
)

// Condition restricts a query to rows whose Column satisfies Op. Value
// is the comparand for the binary operators; Values is the set for
// OpIn. Comparisons on text columns are lexicographic, which is
// chronological for timestamps.
type Condition struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

// Eq matches rows where column equals value.
func Eq(column string, value any) Condition { return Condition{Column: column, Op: OpEq, Value: value} }

// Neq matches rows where column differs from value. NULL never matches.
func Neq(column string, value any) Condition {
	return Condition{Column: column, Op: OpNeq, Value: value}
}

func Gt(column string, value any) Condition  { return Condition{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value any) Condition { return Condition{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value any) Condition  { return Condition{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value any) Condition { return Condition{Column: column, Op: OpLte, Value: value} }

// In matches rows where column equals any of values. An empty set
// matches nothing.
func In[T any](column string, values ...T) Condition {
	set := make([]any, len(values))
	for i, value := range values {
		set[i] = value
	}
	return Condition{Column: column, Op: OpIn, Values: set}
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Condition { return Condition{Column: column, Op: OpIsNull} }

// NotNull matches rows where column is not NULL.
func NotNull(column string) Condition { return Condition{Column: column, Op: OpNotNull} }

func (c Condition) String() string {
	switch c.Op {
	case OpIsNull, OpNotNull:
		return fmt.Sprintf("%s %s", c.Column, c.Op)
	case OpIn:
		return fmt.Sprintf("%s in %v", c.Column, c.Values)
	}
	return fmt.Sprintf("%s %s %v", c.Column, c.Op, c.Value)
}

// Order sorts by Column, descending when Desc is set.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Query selects rows from Table. All Where conditions must hold. Rows
// that tie on every OrderBy column come back in insertion order
// (reversed when the last OrderBy is descending). Limit <= 0 means
// no limit.
type Query struct {
	Table   string
	Where   []Condition
	OrderBy []Order
	Limit   int
}

// From starts a query on table.
func From(table string) Query { return Query{Table: table} }

// Filter returns a copy of q with conditions appended.
func (q Query) Filter(conditions ...Condition) Query {
	q.Where = append(append([]Condition(nil), q.Where...), conditions...)
	return q
}

// Sort returns a copy of q with orders appended.
func (q Query) Sort(orders ...Order) Query {
	q.OrderBy = append(append([]Order(nil), q.OrderBy...), orders...)
	return q
}

// compiledQuery is a WHERE clause with its arguments.
type compiledQuery struct {
	clauses []string
	args    []any
}

func (q *compiledQuery) add(clause string, args ...any) {
	q.clauses = append(q.clauses, clause)
	q.args = append(q.args, args...)
}

func (q *compiledQuery) where() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

var comparisons = map[Op]string{
	OpEq:  "=",
	OpNeq: "<>",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// compileConditions validates conditions against the table and appends
// them as SQL.
func (t *table) compileConditions(compiled *compiledQuery, conditions []Condition) error {
	for _, condition := range conditions {
		c, ok := t.column(condition.Column)
		if !ok {
			return newError(CodeInvalid, t.name, "unknown column %q in condition", condition.Column)
		}
		switch condition.Op {
		case OpIsNull:
			compiled.add(c.name + " IS NULL")
		case OpNotNull:
			compiled.add(c.name + " IS NOT NULL")
		case OpIn:
			if len(condition.Values) == 0 {
				compiled.add("0")
				continue
			}
			placeholders := make([]string, len(condition.Values))
			args := make([]any, len(condition.Values))
			for i, value := range condition.Values {
				coerced, err := c.coerceComparand(t.name, value)
				if err != nil {
					return err
				}
				placeholders[i] = "?"
				args[i] = coerced
			}
			compiled.add(fmt.Sprintf("%s IN (%s)", c.name, strings.Join(placeholders, ", ")), args...)
		default:
			operator, ok := comparisons[condition.Op]
			if !ok {
				return newError(CodeInvalid, t.name, "unknown operator %q", condition.Op)
			}
			coerced, err := c.coerceComparand(t.name, condition.Value)
			if err != nil {
				return err
			}
			if coerced == nil {
				return newError(CodeInvalid, t.name, "%s: use IsNull or NotNull to compare with null", condition)
			}
			compiled.add(fmt.Sprintf("%s %s ?", c.name, operator), coerced)
		}
	}
	return nil
}

// coerceComparand is coerce for condition values, which bind as SQL
// arguments. Unlike stored values, an empty string stays a string so
// that Eq("team_id", "") matches nothing rather than everything null.
func (c column) coerceComparand(tableName string, value any) (any, error) {
	if text, ok := value.(string); ok && text == "" && c.kind == kindNullText {
		return "", nil
	}
	coerced, err := c.coerce(tableName, value)
	if err != nil {
		return nil, err
	}
	return bindValue(coerced), nil
}

func (t *table) compileOrder(orders []Order) (string, error) {
	if len(orders) == 0 {
		return " ORDER BY rowid", nil
	}
	terms := make([]string, 0, len(orders)+1)
	for _, order := range orders {
		if _, ok := t.column(order.Column); !ok {
			return "", newError(CodeInvalid, t.name, "unknown column %q in order", order.Column)
		}
		term := order.Column
		if order.Desc {
			term += " DESC"
		}
		terms = append(terms, term)
	}
	tiebreak := "rowid"
	if orders[len(orders)-1].Desc {
		tiebreak += " DESC"
	}
	terms = append(terms, tiebreak)
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

// matches evaluates condition against a stored row in Go, with the
// same semantics as the compiled SQL. The feed uses it for
// subscription filters.
func (t *table) matches(condition Condition, candidate row) (bool, error) {
	c, ok := t.column(condition.Column)
	if !ok {
		return false, newError(CodeInvalid, t.name, "unknown column %q in condition", condition.Column)
	}
	actual := candidate[c.name]
	switch condition.Op {
	case OpIsNull:
		return actual == nil, nil
	case OpNotNull:
		return actual != nil, nil
	case OpIn:
		for _, value := range condition.Values {
			expected, err := c.coerceComparand(t.name, value)
			if err != nil {
				return false, err
			}
			if compareValues(bindValue(actual), expected) == 0 && actual != nil {
				return true, nil
			}
		}
		return false, nil
	}
	expected, err := c.coerceComparand(t.name, condition.Value)
	if err != nil {
		return false, err
	}
	if actual == nil || expected == nil {
		return false, nil
	}
	order := compareValues(bindValue(actual), expected)
	switch condition.Op {
	case OpEq:
		return order == 0, nil
	case OpNeq:
		return order != 0, nil
	case OpGt:
		return order > 0, nil
	case OpGte:
		return order >= 0, nil
	case OpLt:
		return order < 0, nil
	case OpLte:
		return order <= 0, nil
	}
	return false, newError(CodeInvalid, t.name, "unknown operator %q", condition.Op)
}

// compareValues orders two bound values of the same column. Text
// compares bytewise like SQLite's BINARY collation; booleans bind as
// integers.
func compareValues(a, b any) int {
	switch left := a.(type) {
	case string:
		right, _ := b.(string)
		return strings.Compare(left, right)
	case int:
		right, _ := b.(int)
		return left - right
	}
	return 0
}
