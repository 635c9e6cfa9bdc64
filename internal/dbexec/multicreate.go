package dbexec

import (
	"context"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"dataapi/internal/dberror"
	"dataapi/internal/metadata"
	"dataapi/internal/planner"
	"dataapi/internal/policy"
)

// MultiCreateOptions configures execution of a nested create structure.
type MultiCreateOptions struct {
	Provider        metadata.Provider
	Resolver        policy.Resolver
	Translator      policy.ClauseTranslator
	DevelopmentMode bool
}

// InsertedRow reports one row created while executing a nested create.
type InsertedRow struct {
	Entity string
	// Keys holds the row's primary key values by backing column name.
	Keys map[string]interface{}
}

// ExecuteMultipleCreate inserts every node of a nested create structure in
// dependency order, feeding generated keys from referenced rows into the
// rows that reference them, then fills any required linking-table rows.
// The caller is expected to run this inside a transaction-scoped executor
// so a failing node does not leave partial writes behind.
func ExecuteMultipleCreate(ctx context.Context, exec QueryExecutor, mc *planner.MultipleCreateStructure, opts MultiCreateOptions) ([]InsertedRow, error) {
	order, err := mc.InsertOrder()
	if err != nil {
		return nil, err
	}

	results := make([]InsertedRow, 0, len(order))
	for _, idx := range order {
		node := mc.Nodes[idx]

		input, err := mc.ResolvedInput(idx)
		if err != nil {
			return nil, err
		}

		insert, err := planner.NewInsertQuery(planner.MutationOptions{
			Provider:        opts.Provider,
			Resolver:        opts.Resolver,
			Translator:      opts.Translator,
			Entity:          node.Entity,
			Input:           input,
			Counter:         planner.NewCounter(),
			Parameters:      map[string]planner.Parameter{},
			DevelopmentMode: opts.DevelopmentMode,
		})
		if err != nil {
			return nil, err
		}

		result, err := RunExec(ctx, exec, insert)
		if err != nil {
			return nil, errors.Wrapf(err, "inserting %s", node.Entity)
		}

		keys, err := generatedKeys(opts.Provider, node.Entity, input, result.LastInsertId)
		if err != nil {
			return nil, err
		}
		mc.SetGeneratedKeys(idx, keys)
		results = append(results, InsertedRow{Entity: node.Entity, Keys: keys})
	}

	// Linking rows go last; both endpoints exist by now.
	for idx, node := range mc.Nodes {
		if !node.IsLinkingTableInsertionRequired {
			continue
		}
		for _, child := range node.LinkingChildren {
			object, params, err := mc.LinkingParameterSet(idx, child)
			if err != nil {
				return nil, err
			}
			if err := insertLinkingRow(ctx, exec, object, params); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// generatedKeys assembles a node's primary key values by backing column
// name. Auto generated keys come from the driver's last insert id; the
// rest must have been present in the insert input.
func generatedKeys(provider metadata.Provider, entity string, input map[string]interface{}, lastID func() (int64, error)) (map[string]interface{}, error) {
	def, ok := provider.SourceDefinition(entity)
	if !ok {
		return nil, dberror.NewUnexpectedError("no source definition for entity " + entity)
	}

	keys := make(map[string]interface{})
	for _, backing := range def.PrimaryKey() {
		col, _ := def.Column(backing)
		if col != nil && col.IsAutoGenerated {
			id, err := lastID()
			if err != nil {
				return nil, errors.Wrapf(err, "reading generated key for %s", entity)
			}
			keys[backing] = id
			continue
		}
		exposed, ok := provider.ExposedName(entity, backing)
		if !ok {
			exposed = backing
		}
		value, present := input[exposed]
		if !present {
			return nil, dberror.NewUnexpectedError("inserted row for " + entity + " has no value for key column " + backing)
		}
		keys[backing] = value
	}
	return keys, nil
}

func insertLinkingRow(ctx context.Context, exec QueryExecutor, object metadata.DatabaseObject, params map[string]interface{}) error {
	columns := make([]string, 0, len(params))
	for name := range params {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	values := make([]interface{}, 0, len(columns))
	quoted := make([]string, 0, len(columns))
	for _, name := range columns {
		values = append(values, params[name])
		quoted = append(quoted, "`"+name+"`")
	}

	query, args, err := sq.Insert(object.FullName()).
		Columns(quoted...).
		Values(values...).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building linking insert")
	}

	_, err = exec.ExecContext(ctx, query, args...)
	return errors.Wrapf(err, "inserting linking row into %s", object.FullName())
}
