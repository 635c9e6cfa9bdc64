package main

import (
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/jinzhu/inflection"

	"dataapi/internal/config"
	"dataapi/internal/dberror"
	"dataapi/internal/dbexec"
	"dataapi/internal/gqlrequest"
	"dataapi/internal/metadata"
	"dataapi/internal/planner"
)

type rootKind int

const (
	kindList rootKind = iota
	kindByKey
	kindCreate
	kindUpdate
	kindDelete
	kindExecute
)

// rootField maps one exposed root field to the entity and build path it
// resolves through.
type rootField struct {
	Entity   string
	TypeName string
	Kind     rootKind
}

// plannedStatement is one root field resolved to something runnable:
// either a single statement or a nested create structure.
type plannedStatement struct {
	Field     string
	Entity    string
	Kind      rootKind
	Statement dbexec.Statement
	Multi     *planner.MultipleCreateStructure
}

// dispatcher routes root fields of a parsed operation into query
// structures.
type dispatcher struct {
	provider *metadata.InMemoryProvider
	runtime  config.RuntimeConfig
	fields   map[string]rootField
}

func newDispatcher(provider *metadata.InMemoryProvider, entities []metadata.EntityConfig, runtime config.RuntimeConfig) *dispatcher {
	d := &dispatcher{
		provider: provider,
		runtime:  runtime,
		fields:   make(map[string]rootField),
	}

	for _, entity := range entities {
		typeName := entity.GraphQLType
		if typeName == "" {
			typeName = entity.Name
		}

		if entity.Procedure {
			d.fields["execute"+typeName] = rootField{Entity: entity.Name, TypeName: typeName, Kind: kindExecute}
			continue
		}

		singular := lowerFirst(typeName)
		d.fields[singular] = rootField{Entity: entity.Name, TypeName: typeName, Kind: kindByKey}
		d.fields[inflection.Plural(singular)] = rootField{Entity: entity.Name, TypeName: typeName + "Connection", Kind: kindList}
		d.fields["create"+typeName] = rootField{Entity: entity.Name, TypeName: typeName, Kind: kindCreate}
		d.fields["update"+typeName] = rootField{Entity: entity.Name, TypeName: typeName, Kind: kindUpdate}
		d.fields["delete"+typeName] = rootField{Entity: entity.Name, TypeName: typeName, Kind: kindDelete}
	}

	return d
}

// PlanOperation resolves every root field of the operation. All structures
// of one request share a counter and parameter table so their parameter
// names never collide.
func (d *dispatcher) PlanOperation(op *gqlrequest.Operation) ([]plannedStatement, error) {
	counter := planner.NewCounter()
	parameters := map[string]planner.Parameter{}

	var plans []plannedStatement
	for _, field := range op.RootFields() {
		name := field.Name.Value
		if strings.HasPrefix(name, "__") {
			continue
		}

		root, ok := d.fields[name]
		if !ok {
			return nil, dberror.NewBadRequestf("unknown root field %q", name)
		}
		if mutates(root.Kind) != (op.Type() == "mutation") {
			return nil, dberror.NewBadRequestf("field %q is not valid in a %s operation", name, op.Type())
		}

		planned, err := d.planField(op, field, root, counter, parameters)
		if err != nil {
			return nil, err
		}
		plans = append(plans, planned)
	}

	if len(plans) == 0 {
		return nil, dberror.NewBadRequest("operation selects no resolvable fields")
	}
	return plans, nil
}

func (d *dispatcher) planField(op *gqlrequest.Operation, field *ast.Field, root rootField, counter *planner.Counter, parameters map[string]planner.Parameter) (plannedStatement, error) {
	planned := plannedStatement{Field: field.Name.Value, Entity: root.Entity, Kind: root.Kind}
	args := planner.ArgumentsToMap(field.Arguments, op.Variables)

	readOpts := planner.ReadOptions{
		Provider:        d.provider,
		Counter:         counter,
		Parameters:      parameters,
		DefaultPageSize: d.runtime.DefaultPageSize,
		MaxPageSize:     d.runtime.MaxPageSize,
		DevelopmentMode: d.runtime.DevelopmentMode,
	}
	mutationOpts := planner.MutationOptions{
		Provider:        d.provider,
		Entity:          root.Entity,
		Counter:         counter,
		Parameters:      parameters,
		DevelopmentMode: d.runtime.DevelopmentMode,
	}

	switch root.Kind {
	case kindList:
		q, err := planner.NewReadQuery(planner.GraphQLInput{
			Field:     field,
			TypeName:  root.TypeName,
			IsList:    true,
			Args:      args,
			Fragments: op.Fragments,
			Variables: op.Variables,
		}, readOpts)
		if err != nil {
			return planned, err
		}
		planned.Statement = q

	case kindByKey:
		q, err := planner.NewReadQuery(planner.GraphQLInput{
			Field:     field,
			TypeName:  root.TypeName,
			Args:      keyArgsAsFilter(args),
			Fragments: op.Fragments,
			Variables: op.Variables,
		}, readOpts)
		if err != nil {
			return planned, err
		}
		planned.Statement = q

	case kindCreate:
		item, ok := args["item"].(map[string]interface{})
		if !ok {
			return planned, dberror.NewBadRequest("create mutations require an item argument")
		}
		if hasNestedInput(item) {
			mc, err := planner.BuildMultipleCreate(d.provider, root.Entity, item)
			if err != nil {
				return planned, err
			}
			planned.Multi = mc
			return planned, nil
		}
		mutationOpts.Input = item
		q, err := planner.NewInsertQuery(mutationOpts)
		if err != nil {
			return planned, err
		}
		planned.Statement = q

	case kindUpdate:
		item, _ := args["item"].(map[string]interface{})
		overwrite, _ := args["overwrite"].(bool)
		input := make(map[string]interface{}, len(args))
		for name, value := range args {
			if name == "item" || name == "overwrite" {
				continue
			}
			input[name] = value
		}
		mutationOpts.Input = input
		q, err := planner.NewUpdateQuery(planner.UpdateOptions{
			MutationOptions: mutationOpts,
			Item:            item,
			Overwrite:       overwrite,
		})
		if err != nil {
			return planned, err
		}
		planned.Statement = q

	case kindDelete:
		mutationOpts.Input = args
		q, err := planner.NewDeleteQuery(mutationOpts)
		if err != nil {
			return planned, err
		}
		planned.Statement = q

	case kindExecute:
		mutationOpts.Input = args
		q, err := planner.NewExecuteQuery(mutationOpts)
		if err != nil {
			return planned, err
		}
		planned.Statement = q
	}

	return planned, nil
}

// keyArgsAsFilter rewrites by-key arguments {id: 5} into the filter shape
// the read builder consumes: {filter: {id: {eq: 5}}}.
func keyArgsAsFilter(args map[string]interface{}) map[string]interface{} {
	if len(args) == 0 {
		return nil
	}
	filter := make(map[string]interface{}, len(args))
	for name, value := range args {
		filter[name] = map[string]interface{}{"eq": value}
	}
	return map[string]interface{}{"filter": filter}
}

// hasNestedInput reports whether a create item carries related objects and
// therefore needs the multi-row create path.
func hasNestedInput(item map[string]interface{}) bool {
	for _, value := range item {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			return true
		}
	}
	return false
}

func mutates(kind rootKind) bool {
	switch kind {
	case kindCreate, kindUpdate, kindDelete, kindExecute:
		return true
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
