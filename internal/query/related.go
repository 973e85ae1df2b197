package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/schema"
)

// RelatedResult is the outcome of a nested relationship listing.
type RelatedResult struct {
	Rows       []map[string]interface{}
	TotalCount int
}

// pivotJoin is one resolved hop of a relationship chain.
type pivotJoin struct {
	table      string
	foreignKey string
	relatedKey string
}

// ListRelated lists the rows of relatedDoc's table reachable from the parent
// row with the given id, using the join strategy the base document declares
// for relationName:
//
//   - no matching relationship: direct foreign key on the related table;
//   - many_to_many: a single join through the pivot table;
//   - many_to_many with via: the pivot chain of the named intermediate
//     relationship is joined in front, with DISTINCT to drop rows reachable
//     through more than one intermediate.
func (b *Builder) ListRelated(
	ctx context.Context,
	relatedDoc *schema.Schema,
	parentID interface{},
	relationName string,
	req ListRequest,
) (*RelatedResult, error) {
	detail := b.doc.GetDetail(relationName)
	if detail == nil {
		return nil, fmt.Errorf("%w: %s has no detail entry for %s", ErrUnknownRelation, b.doc.Model, relationName)
	}

	rel := b.doc.GetRelationship(relationName)
	if rel == nil || rel.Type == schema.RelationOneToMany {
		return b.listDirect(ctx, relatedDoc, detail, rel, parentID, req)
	}
	return b.listThroughPivots(ctx, relatedDoc, rel, parentID, req)
}

// listDirect lists related rows through a foreign key column on the related
// table itself.
func (b *Builder) listDirect(
	ctx context.Context,
	relatedDoc *schema.Schema,
	detail *schema.DetailConfig,
	rel *schema.Relationship,
	parentID interface{},
	req ListRequest,
) (*RelatedResult, error) {
	fk := detail.ForeignKey
	if rel != nil && rel.ForeignKey != "" {
		fk = rel.ForeignKey
	}
	if fk == "" {
		return nil, fmt.Errorf("%w: relation %s on %s has no foreign key", ErrRelationshipMisconfigured, detail.Model, b.doc.Model)
	}

	related := NewBuilder(relatedDoc, b.db, b.log)
	conds := related.baseConditions()
	conds = append(conds, &Condition{Column: fk, Operator: OpEqual, Value: parentID})
	conds = append(conds, related.filterConditions(req.Filters)...)
	searchGroup := related.searchGroup(req.Search)

	total, err := related.count(ctx, conds, searchGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to count related rows: %w", err)
	}

	sqlStr, args, err := related.buildSelect(conds, searchGroup, related.orderBy(req.Sort), req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute related listing: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		TransformRecord(relatedDoc, record)
	}

	return &RelatedResult{Rows: records, TotalCount: total}, nil
}

// resolveChain walks the via references of a relationship into an ordered
// join chain, outermost pivot (the one filtered on the parent id) first.
// Every hop must be a fully-keyed many_to_many; anything else is a
// configuration error, reported before SQL is built.
func (b *Builder) resolveChain(rel *schema.Relationship) ([]pivotJoin, error) {
	var chain []pivotJoin
	seen := make(map[string]bool)

	for current := rel; current != nil; {
		if seen[current.Name] {
			return nil, fmt.Errorf("%w: via cycle at %s on %s", ErrRelationshipMisconfigured, current.Name, b.doc.Model)
		}
		seen[current.Name] = true

		if current.Type != schema.RelationManyToMany {
			return nil, fmt.Errorf("%w: %s on %s is not many_to_many", ErrRelationshipMisconfigured, current.Name, b.doc.Model)
		}
		if current.PivotTable == "" || current.ForeignKey == "" || current.RelatedKey == "" {
			return nil, fmt.Errorf("%w: %s on %s is missing pivotTable, foreignKey, or relatedKey",
				ErrRelationshipMisconfigured, current.Name, b.doc.Model)
		}

		chain = append([]pivotJoin{{
			table:      current.PivotTable,
			foreignKey: current.ForeignKey,
			relatedKey: current.RelatedKey,
		}}, chain...)

		if current.Via == "" {
			break
		}
		next := b.doc.GetRelationship(current.Via)
		if next == nil {
			return nil, fmt.Errorf("%w: via references unknown relationship %s on %s",
				ErrRelationshipMisconfigured, current.Via, b.doc.Model)
		}
		current = next
	}

	return chain, nil
}

// listThroughPivots lists related rows through one or more pivot tables.
func (b *Builder) listThroughPivots(
	ctx context.Context,
	relatedDoc *schema.Schema,
	rel *schema.Relationship,
	parentID interface{},
	req ListRequest,
) (*RelatedResult, error) {
	chain, err := b.resolveChain(rel)
	if err != nil {
		return nil, err
	}

	related := NewBuilder(relatedDoc, b.db, b.log)
	relatedTable := pq.QuoteIdentifier(relatedDoc.Table)
	relatedPK := pq.QuoteIdentifier(relatedDoc.PrimaryKey)

	// The chain is ordered outermost first; the last pivot joins the related
	// table, each earlier pivot joins the one after it on the intermediate
	// key, and the first pivot carries the parent-id predicate.
	var joins []string
	last := chain[len(chain)-1]
	joins = append(joins, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
		pq.QuoteIdentifier(last.table),
		relatedTable, relatedPK,
		pq.QuoteIdentifier(last.table), pq.QuoteIdentifier(last.relatedKey)))

	for i := len(chain) - 2; i >= 0; i-- {
		inner := chain[i+1]
		outer := chain[i]
		joins = append(joins, fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
			pq.QuoteIdentifier(outer.table),
			pq.QuoteIdentifier(inner.table), pq.QuoteIdentifier(inner.foreignKey),
			pq.QuoteIdentifier(outer.table), pq.QuoteIdentifier(outer.relatedKey)))
	}

	// More than one pivot can reach the same related row; DISTINCT keeps the
	// result set free of duplicates.
	distinct := ""
	if len(chain) > 1 {
		distinct = "DISTINCT "
	}

	conds := []*Condition{{
		Table:    chain[0].table,
		Column:   chain[0].foreignKey,
		Operator: OpEqual,
		Value:    parentID,
	}}
	if col, ok := relatedDoc.DeletedAtColumn(); ok {
		conds = append(conds, &Condition{Table: relatedDoc.Table, Column: col, Operator: OpIsNull})
	}
	for _, cond := range related.filterConditions(req.Filters) {
		cond.Table = relatedDoc.Table
		conds = append(conds, cond)
	}
	searchGroup := related.searchGroup(req.Search)
	for _, cond := range searchGroup {
		cond.Table = relatedDoc.Table
	}

	counter := 1
	args := make([]interface{}, 0)
	where, err := whereClause(conds, searchGroup, &counter, &args)
	if err != nil {
		return nil, err
	}

	from := fmt.Sprintf("FROM %s %s", relatedTable, strings.Join(joins, " "))

	countSQL := fmt.Sprintf("SELECT COUNT(%s%s.%s) %s%s", distinct, relatedTable, relatedPK, from, where)
	var total int
	if err := b.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count related rows: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s%s.* %s%s", distinct, relatedTable, from, where)

	orderBy := related.orderBy(req.Sort)
	if len(orderBy) > 0 {
		qualified := make([]string, len(orderBy))
		for i, clause := range orderBy {
			qualified[i] = relatedTable + "." + clause
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(qualified, ", "))
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	fmt.Fprintf(&sb, " LIMIT $%d", counter)
	args = append(args, perPage)
	counter++
	fmt.Fprintf(&sb, " OFFSET $%d", counter)
	args = append(args, (page-1)*perPage)

	b.log.Debug("related listing query",
		zap.String("model", b.doc.Model),
		zap.String("relation", rel.Name),
		zap.String("sql", sb.String()))

	rows, err := b.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute related listing: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		TransformRecord(relatedDoc, record)
	}

	return &RelatedResult{Rows: records, TotalCount: total}, nil
}
