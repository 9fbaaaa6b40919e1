package postgres

import (
	"fmt"
	"strings"
)

// selectBuilder accumulates WHERE clauses with positional arguments.
type selectBuilder struct {
	base    string
	where   []string
	args    []any
	orderBy string
	limit   int
	offset  int
}

func newSelect(base string) *selectBuilder {
	return &selectBuilder{base: base}
}

// whereArg appends a clause; each "?" in clause is replaced by the next $n.
func (b *selectBuilder) whereArg(clause string, args ...any) *selectBuilder {
	for _, a := range args {
		b.args = append(b.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.where = append(b.where, clause)
	return b
}

func (b *selectBuilder) order(by string) *selectBuilder {
	b.orderBy = by
	return b
}

func (b *selectBuilder) page(limit, offset int) *selectBuilder {
	b.limit, b.offset = limit, offset
	return b
}

func (b *selectBuilder) build() (string, []any) {
	var sb strings.Builder
	sb.WriteString(b.base)
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	args := b.args
	if b.limit > 0 {
		args = append(args, b.limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if b.offset > 0 {
		args = append(args, b.offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}
