package planner

import (
	"strings"

	"dataapi/internal/dberror"
	"dataapi/internal/querymodel"
)

// resolveOrderBy maps the orderBy argument onto backing columns. Any
// ordered or paginated query gets the remaining primary key columns
// appended ascending, so the sort is a total order and, for paginated
// queries, a keyset cursor identifies a unique row. Group-by queries may
// only order by grouped fields and never get the primary key remainder.
func (q *ReadQueryStructure) resolveOrderBy(arg interface{}) error {
	entries, err := orderByEntries(arg)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		backing, err := q.BackingColumn(entry.field)
		if err != nil {
			if q.GroupBy != nil {
				return dberror.NewBadRequestf("cannot order by %s, only grouped fields may be ordered", entry.field)
			}
			return err
		}
		if q.GroupBy != nil {
			if _, grouped := q.GroupBy.Fields[backing]; !grouped {
				return dberror.NewBadRequestf("cannot order by %s, only grouped fields may be ordered", entry.field)
			}
		}
		if _, dup := seen[backing]; dup {
			continue
		}
		seen[backing] = struct{}{}
		col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, backing, q.SourceAlias)
		q.OrderBy = append(q.OrderBy, querymodel.NewOrderByColumn(col, entry.direction))
	}

	if q.GroupBy == nil && (len(q.OrderBy) > 0 || q.Pagination.IsPaginated) {
		for _, pkCol := range q.sourceDef.PrimaryKey() {
			if _, present := seen[pkCol]; present {
				continue
			}
			col := querymodel.NewAliasedColumn(q.Object.SchemaName, q.Object.Name, pkCol, q.SourceAlias)
			q.OrderBy = append(q.OrderBy, querymodel.NewOrderByColumn(col, querymodel.Ascending))
		}
	}
	return nil
}

type orderByEntry struct {
	field     string
	direction querymodel.OrderDirection
}

// orderByEntries accepts the list-of-single-key-objects shape,
// e.g. [{title: ASC}, {id: DESC}], preserving declaration order.
func orderByEntries(arg interface{}) ([]orderByEntry, error) {
	if arg == nil {
		return nil, nil
	}
	list, ok := arg.([]interface{})
	if !ok {
		if single, isMap := arg.(map[string]interface{}); isMap {
			list = []interface{}{single}
		} else {
			return nil, dberror.NewBadRequest("orderBy must be a list of input objects")
		}
	}
	var entries []orderByEntry
	for _, raw := range list {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return nil, dberror.NewBadRequest("orderBy entries must be input objects")
		}
		for _, field := range sortedKeys(obj) {
			dir, err := parseDirection(obj[field])
			if err != nil {
				return nil, err
			}
			entries = append(entries, orderByEntry{field: field, direction: dir})
		}
	}
	return entries, nil
}

func parseDirection(value interface{}) (querymodel.OrderDirection, error) {
	s, ok := value.(string)
	if !ok {
		return querymodel.Ascending, dberror.NewBadRequest("orderBy direction must be ASC or DESC")
	}
	switch strings.ToUpper(s) {
	case "ASC":
		return querymodel.Ascending, nil
	case "DESC":
		return querymodel.Descending, nil
	default:
		return querymodel.Ascending, dberror.NewBadRequestf("orderBy direction must be ASC or DESC, got %s", s)
	}
}

// OrderByKey is the stable identifier of this query's ordering, stored in
// continuation tokens so a cursor minted under one ordering is rejected
// under another.
func (q *ReadQueryStructure) OrderByKey() string {
	parts := make([]string, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		name := ob.ColumnName
		if exposed, ok := q.Provider.ExposedName(q.EntityName, ob.ColumnName); ok {
			name = exposed
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "_")
}

// OrderByDirections returns the directions of the current ordering as
// strings, in order.
func (q *ReadQueryStructure) OrderByDirections() []string {
	dirs := make([]string, 0, len(q.OrderBy))
	for _, ob := range q.OrderBy {
		dirs = append(dirs, string(ob.Direction))
	}
	return dirs
}
