// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"fmt"
	"strconv"
	"strings"
)

// CompOp is a comparison operator.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

// String returns the operator symbol.
func (op CompOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpGreaterEqual:
		return ">="
	case OpLessEqual:
		return "<="
	case OpContains:
		return "~"
	default:
		return fmt.Sprintf("unknown(%d)", int(op))
	}
}

// operators in matching order: two-character symbols before their prefixes.
var operators = []CompOp{
	OpGreaterEqual,
	OpLessEqual,
	OpNotEqual,
	OpEqual,
	OpGreater,
	OpLess,
	OpContains,
}

// LogicOp combines two expressions.
type LogicOp int

const (
	LogicAND LogicOp = iota
	LogicOR
)

// String returns the string representation of a LogicOp.
func (op LogicOp) String() string {
	switch op {
	case LogicAND:
		return "AND"
	case LogicOR:
		return "OR"
	default:
		return fmt.Sprintf("unknown(%d)", int(op))
	}
}

// Expression is a single comparison. An expression without a column
// matches rows where any column contains the value.
type Expression struct {
	Column string
	Op     CompOp
	Value  string

	index int
}

// String returns the expression in query syntax.
func (e Expression) String() string {
	if e.Column == "" {
		return strconv.Quote(e.Value)
	}
	return fmt.Sprintf("%s %s %s", e.Column, e.Op, strconv.Quote(e.Value))
}

// Query is a list of expressions joined by logic operators and evaluated
// left to right without precedence.
type Query struct {
	Expressions []Expression
	LogicOps    []LogicOp
}

// String returns the query in query syntax.
func (q *Query) String() string {
	if q == nil || len(q.Expressions) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(q.Expressions[0].String())
	for i, op := range q.LogicOps {
		fmt.Fprintf(&sb, " %s %s", op, q.Expressions[i+1])
	}
	return sb.String()
}

// Parse parses a filter expression such as `amount > 10 AND name ~ "ann"`
// against the given column names. Column names match case-insensitively
// and are stored in their schema spelling.
// An empty expression returns a nil Query, which matches every row.
func Parse(expr string, columns []string) (*Query, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[strings.ToLower(name)] = i
	}

	q := &Query{}
	for _, part := range splitByLogicOps(expr) {
		if part.isOperator {
			if part.text == "AND" {
				q.LogicOps = append(q.LogicOps, LogicAND)
			} else {
				q.LogicOps = append(q.LogicOps, LogicOR)
			}
			continue
		}

		e, err := parseExpression(part.text, columns, index)
		if err != nil {
			return nil, err
		}
		q.Expressions = append(q.Expressions, e)
	}

	if len(q.Expressions) == 0 || len(q.LogicOps) != len(q.Expressions)-1 {
		return nil, fmt.Errorf("%w: mismatched expressions and operators in %q", ErrInvalidQuery, expr)
	}
	return q, nil
}

type queryPart struct {
	text       string
	isOperator bool
}

// splitByLogicOps splits on standalone AND/OR words, keeping the operators.
// Operators directly next to each other are kept so Parse can reject them.
func splitByLogicOps(query string) []queryPart {
	var (
		parts   []queryPart
		current strings.Builder
	)

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			parts = append(parts, queryPart{text: text})
		}
		current.Reset()
	}

	for i := 0; i < len(query); {
		if word, ok := logicWordAt(query, i); ok {
			flush()
			parts = append(parts, queryPart{text: word, isOperator: true})
			i += len(word)
			continue
		}
		current.WriteByte(query[i])
		i++
	}
	flush()

	return parts
}

// logicWordAt reports whether an AND or OR word starts at i.
func logicWordAt(query string, i int) (string, bool) {
	if i > 0 && !isWhitespace(query[i-1]) {
		return "", false
	}
	for _, word := range []string{"AND", "OR"} {
		end := i + len(word)
		if end > len(query) || !strings.EqualFold(query[i:end], word) {
			continue
		}
		if end == len(query) || isWhitespace(query[end]) {
			return word, true
		}
	}
	return "", false
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseExpression parses `column op value`. Text without an operator is a
// search across all columns.
func parseExpression(text string, columns []string, index map[string]int) (Expression, error) {
	for _, op := range operators {
		at := strings.Index(text, op.String())
		if at <= 0 {
			continue
		}

		column := strings.TrimSpace(text[:at])
		value := strings.Trim(strings.TrimSpace(text[at+len(op.String()):]), `"'`)

		i, ok := index[strings.ToLower(column)]
		if !ok {
			return Expression{}, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
		}
		return Expression{Column: columns[i], Op: op, Value: value, index: i}, nil
	}

	return Expression{Op: OpContains, Value: strings.Trim(text, `"'`), index: -1}, nil
}

// Match evaluates the query against one row of formatted values.
func (q *Query) Match(row []string) bool {
	if q == nil || len(q.Expressions) == 0 {
		return true
	}

	result := q.Expressions[0].match(row)
	for i, op := range q.LogicOps {
		next := q.Expressions[i+1].match(row)
		switch op {
		case LogicAND:
			result = result && next
		case LogicOR:
			result = result || next
		}
	}
	return result
}

func (e Expression) match(row []string) bool {
	if e.index < 0 {
		term := strings.ToLower(e.Value)
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell), term) {
				return true
			}
		}
		return false
	}
	if e.index >= len(row) {
		return false
	}

	cell := row[e.index]
	switch e.Op {
	case OpContains:
		return strings.Contains(strings.ToLower(cell), strings.ToLower(e.Value))
	default:
		return compare(cell, e.Value, e.Op)
	}
}

// compare compares numerically when both sides are numbers and
// case-insensitively as text otherwise.
func compare(cell, value string, op CompOp) bool {
	var cmp int

	a, errA := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(strings.ToLower(cell), strings.ToLower(value))
	}

	switch op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpGreater:
		return cmp > 0
	case OpLess:
		return cmp < 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLessEqual:
		return cmp <= 0
	}
	return false
}
