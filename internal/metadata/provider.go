package metadata

import (
	"strings"

	"github.com/jinzhu/inflection"

	"dataapi/internal/sqltype"
)

// RelationshipConfig declares one relationship in entity configuration.
type RelationshipConfig struct {
	Field             string   `mapstructure:"field"`
	TargetEntity      string   `mapstructure:"target"`
	Cardinality       string   `mapstructure:"cardinality"`
	SourceColumns     []string `mapstructure:"source_columns"`
	TargetColumns     []string `mapstructure:"target_columns"`
	LinkingObject     string   `mapstructure:"linking_object"`
	LinkingSourceCols []string `mapstructure:"linking_source_columns"`
	LinkingTargetCols []string `mapstructure:"linking_target_columns"`
}

// EntityConfig declares one exposed entity and its backing object.
type EntityConfig struct {
	Name          string               `mapstructure:"name"`
	GraphQLType   string               `mapstructure:"graphql_type"`
	Schema        string               `mapstructure:"schema"`
	Object        string               `mapstructure:"object"`
	Columns       []ColumnDefinition   `mapstructure:"columns"`
	Mappings      map[string]string    `mapstructure:"mappings"` // exposed -> backing
	Relationships []RelationshipConfig `mapstructure:"relationships"`
	Procedure     bool                 `mapstructure:"procedure"`
	Parameters    []ProcedureParameter `mapstructure:"parameters"`
}

// InMemoryProvider serves entity metadata from configuration. All maps are
// built up front; lookups are read-only and safe for concurrent use.
type InMemoryProvider struct {
	sources       map[string]*SourceDefinition
	procedures    map[string]*StoredProcedureDefinition
	objects       map[string]DatabaseObject
	exposedToBack map[string]map[string]string
	backToExposed map[string]map[string]string
	relationships map[string]map[string]*Relationship
	typeToEntity  map[string]string
}

// NewInMemoryProvider builds a provider from entity configuration.
func NewInMemoryProvider(entities []EntityConfig) *InMemoryProvider {
	p := &InMemoryProvider{
		sources:       make(map[string]*SourceDefinition),
		procedures:    make(map[string]*StoredProcedureDefinition),
		objects:       make(map[string]DatabaseObject),
		exposedToBack: make(map[string]map[string]string),
		backToExposed: make(map[string]map[string]string),
		relationships: make(map[string]map[string]*Relationship),
		typeToEntity:  make(map[string]string),
	}

	for _, entity := range entities {
		object := DatabaseObject{SchemaName: entity.Schema, Name: entity.Object}
		if object.Name == "" {
			object.Name = defaultObjectName(entity.Name)
		}
		p.objects[entity.Name] = object

		typeName := entity.GraphQLType
		if typeName == "" {
			typeName = entity.Name
		}
		p.typeToEntity[typeName] = entity.Name

		if entity.Procedure {
			params := make([]ProcedureParameter, len(entity.Parameters))
			copy(params, entity.Parameters)
			for i := range params {
				if params[i].DataType != "" {
					params[i].Kind = sqltype.MapColumnType(params[i].DataType)
				}
			}
			p.procedures[entity.Name] = &StoredProcedureDefinition{Object: object, Parameters: params}
		}

		p.sources[entity.Name] = NewSourceDefinition(object, entity.Columns)

		exposed := make(map[string]string, len(entity.Columns))
		backing := make(map[string]string, len(entity.Columns))
		for _, col := range entity.Columns {
			exposed[col.Name] = col.Name
			backing[col.Name] = col.Name
		}
		for exposedName, backingName := range entity.Mappings {
			delete(exposed, backingName)
			exposed[exposedName] = backingName
			backing[backingName] = exposedName
		}
		p.exposedToBack[entity.Name] = exposed
		p.backToExposed[entity.Name] = backing
	}

	// Relationships resolve after all objects are registered so FK
	// definitions can reference target and linking objects.
	for _, entity := range entities {
		sourceObject := p.objects[entity.Name]
		rels := make(map[string]*Relationship, len(entity.Relationships))
		for _, rc := range entity.Relationships {
			rel := buildRelationship(p, entity.Name, sourceObject, rc)
			rels[rel.Field] = rel
		}
		p.relationships[entity.Name] = rels
	}

	return p
}

func buildRelationship(p *InMemoryProvider, sourceEntity string, sourceObject DatabaseObject, rc RelationshipConfig) *Relationship {
	targetObject := p.objects[rc.TargetEntity]
	cardinality := CardinalityMany
	if strings.EqualFold(rc.Cardinality, string(CardinalityOne)) {
		cardinality = CardinalityOne
	}

	field := rc.Field
	if field == "" {
		field = DefaultRelationshipField(rc.TargetEntity, cardinality)
	}

	rel := &Relationship{
		Field:        field,
		TargetEntity: rc.TargetEntity,
		Cardinality:  cardinality,
	}

	if rc.LinkingObject != "" {
		linking := DatabaseObject{SchemaName: sourceObject.SchemaName, Name: rc.LinkingObject}
		rel.LinkingObject = &linking
		rel.ForeignKeys = []ForeignKeyDefinition{
			{
				ReferencingObject:  linking,
				ReferencedObject:   sourceObject,
				ReferencingColumns: rc.LinkingSourceCols,
				ReferencedColumns:  rc.SourceColumns,
			},
			{
				ReferencingObject:  linking,
				ReferencedObject:   targetObject,
				ReferencingColumns: rc.LinkingTargetCols,
				ReferencedColumns:  rc.TargetColumns,
			},
		}
		return rel
	}

	if cardinality == CardinalityOne {
		// Source holds the FK: source references target.
		rel.ForeignKeys = []ForeignKeyDefinition{{
			ReferencingObject:  sourceObject,
			ReferencedObject:   targetObject,
			ReferencingColumns: rc.SourceColumns,
			ReferencedColumns:  rc.TargetColumns,
		}}
		return rel
	}

	// Target holds the FK: target references source.
	rel.ForeignKeys = []ForeignKeyDefinition{{
		ReferencingObject:  targetObject,
		ReferencedObject:   sourceObject,
		ReferencingColumns: rc.TargetColumns,
		ReferencedColumns:  rc.SourceColumns,
	}}
	return rel
}

// DefaultRelationshipField derives the exposed field name for a relationship
// when configuration does not name one: singularized, lower-camel target for
// to-one, pluralized for to-many.
func DefaultRelationshipField(targetEntity string, cardinality Cardinality) string {
	base := lowerFirst(targetEntity)
	if cardinality == CardinalityMany {
		return inflection.Plural(base)
	}
	return inflection.Singular(base)
}

func defaultObjectName(entity string) string {
	return inflection.Plural(strings.ToLower(entity))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (p *InMemoryProvider) SourceDefinition(entity string) (*SourceDefinition, bool) {
	def, ok := p.sources[entity]
	return def, ok
}

func (p *InMemoryProvider) StoredProcedureDefinition(entity string) (*StoredProcedureDefinition, bool) {
	def, ok := p.procedures[entity]
	return def, ok
}

func (p *InMemoryProvider) DatabaseObject(entity string) (DatabaseObject, bool) {
	object, ok := p.objects[entity]
	return object, ok
}

func (p *InMemoryProvider) BackingColumn(entity, exposed string) (string, bool) {
	backing, ok := p.exposedToBack[entity][exposed]
	return backing, ok
}

func (p *InMemoryProvider) ExposedName(entity, backing string) (string, bool) {
	exposed, ok := p.backToExposed[entity][backing]
	return exposed, ok
}

func (p *InMemoryProvider) Relationship(entity, field string) (*Relationship, bool) {
	rel, ok := p.relationships[entity][field]
	return rel, ok
}

func (p *InMemoryProvider) ForeignKeys(source, target string) []ForeignKeyDefinition {
	if fks := p.foreignKeysFrom(source, target); len(fks) > 0 {
		return fks
	}
	return p.foreignKeysFrom(target, source)
}

func (p *InMemoryProvider) foreignKeysFrom(source, target string) []ForeignKeyDefinition {
	var out []ForeignKeyDefinition
	for _, rel := range p.relationships[source] {
		if rel.TargetEntity == target {
			out = append(out, rel.ForeignKeys...)
		}
	}
	return out
}

func (p *InMemoryProvider) LinkingObject(source, target string) (DatabaseObject, bool) {
	for _, rel := range p.relationships[source] {
		if rel.TargetEntity == target && rel.LinkingObject != nil {
			return *rel.LinkingObject, true
		}
	}
	for _, rel := range p.relationships[target] {
		if rel.TargetEntity == source && rel.LinkingObject != nil {
			return *rel.LinkingObject, true
		}
	}
	return DatabaseObject{}, false
}

func (p *InMemoryProvider) EntityForGraphQLType(typeName string) (string, bool) {
	entity, ok := p.typeToEntity[typeName]
	return entity, ok
}
