// Package metadata defines the schema-lookup contract the query builders
// consume: entity source definitions, column definitions, foreign keys, and
// relationship maps. The live-database introspection that populates these
// structures lives outside this module; tests and the CLI use the in-memory
// provider built from entity configuration.
package metadata

import (
	"dataapi/internal/sqltype"
	"dataapi/internal/sqlutil"
)

// DatabaseObject identifies a schema-qualified table, view, or procedure.
type DatabaseObject struct {
	SchemaName string
	Name       string
}

// FullName renders the quoted, schema-qualified object name.
func (o DatabaseObject) FullName() string {
	return sqlutil.QualifiedObject(o.SchemaName, o.Name)
}

// Equal is structural equality over schema and name.
func (o DatabaseObject) Equal(other DatabaseObject) bool {
	return o.SchemaName == other.SchemaName && o.Name == other.Name
}

// ColumnDefinition describes one backing column of a source.
type ColumnDefinition struct {
	Name            string       `mapstructure:"name"`
	DataType        string       `mapstructure:"type"`
	IsNullable      bool         `mapstructure:"nullable"`
	IsPrimaryKey    bool         `mapstructure:"primary_key"`
	IsAutoGenerated bool         `mapstructure:"auto_generated"`
	IsReadOnly      bool         `mapstructure:"read_only"`
	HasDefault      bool         `mapstructure:"has_default"`
	DefaultValue    interface{}  `mapstructure:"default"`
	Kind            sqltype.Kind `mapstructure:"-"`
}

// SourceDefinition describes a table or view backing an entity.
type SourceDefinition struct {
	Object  DatabaseObject
	Columns []ColumnDefinition

	columnIndex map[string]int
}

// NewSourceDefinition indexes the column list for name lookups.
func NewSourceDefinition(object DatabaseObject, columns []ColumnDefinition) *SourceDefinition {
	def := &SourceDefinition{
		Object:      object,
		Columns:     columns,
		columnIndex: make(map[string]int, len(columns)),
	}
	for i := range def.Columns {
		if def.Columns[i].Kind == sqltype.KindString && def.Columns[i].DataType != "" {
			def.Columns[i].Kind = sqltype.MapColumnType(def.Columns[i].DataType)
		}
		def.columnIndex[def.Columns[i].Name] = i
	}
	return def
}

// Column returns the definition of a backing column by name.
func (d *SourceDefinition) Column(name string) (*ColumnDefinition, bool) {
	idx, ok := d.columnIndex[name]
	if !ok {
		return nil, false
	}
	return &d.Columns[idx], true
}

// PrimaryKey returns the backing names of the primary-key columns in
// declaration order.
func (d *SourceDefinition) PrimaryKey() []string {
	var pk []string
	for _, col := range d.Columns {
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}
	}
	return pk
}

// ForeignKeyDefinition describes one candidate foreign key between two
// database objects. Referencing and referenced column lists are positional:
// ReferencingColumns[i] pairs with ReferencedColumns[i].
type ForeignKeyDefinition struct {
	ReferencingObject  DatabaseObject
	ReferencedObject   DatabaseObject
	ReferencingColumns []string
	ReferencedColumns  []string
}

// HasCompleteColumnInfo guards against partially inferred FK metadata:
// several candidate definitions may exist per relationship and only those
// with both column lists populated are usable.
func (fk ForeignKeyDefinition) HasCompleteColumnInfo() bool {
	return len(fk.ReferencingColumns) > 0 &&
		len(fk.ReferencingColumns) == len(fk.ReferencedColumns)
}

// Cardinality is the multiplicity of a relationship's target side.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Relationship describes one exposed relationship field on an entity.
type Relationship struct {
	Field         string
	TargetEntity  string
	Cardinality   Cardinality
	ForeignKeys   []ForeignKeyDefinition
	LinkingObject *DatabaseObject
}

// IsManyToMany reports whether the relationship routes through a linking
// (associative) table.
func (r Relationship) IsManyToMany() bool { return r.LinkingObject != nil }

// ProcedureParameter describes one declared stored-procedure parameter with
// its optional config-declared default.
type ProcedureParameter struct {
	Name             string       `mapstructure:"name"`
	DataType         string       `mapstructure:"type"`
	HasConfigDefault bool         `mapstructure:"has_default"`
	ConfigDefault    interface{}  `mapstructure:"default"`
	Kind             sqltype.Kind `mapstructure:"-"`
}

// StoredProcedureDefinition describes a procedure backing an execute entity.
type StoredProcedureDefinition struct {
	Object     DatabaseObject
	Parameters []ProcedureParameter
}

// Provider is the read-only schema lookup service the query builders
// consume. Implementations must be safe for concurrent reads.
type Provider interface {
	// SourceDefinition returns the table/view definition backing an entity.
	SourceDefinition(entity string) (*SourceDefinition, bool)
	// StoredProcedureDefinition returns the procedure definition backing an
	// execute entity.
	StoredProcedureDefinition(entity string) (*StoredProcedureDefinition, bool)
	// DatabaseObject returns the schema-qualified object for an entity.
	DatabaseObject(entity string) (DatabaseObject, bool)
	// BackingColumn maps an exposed field name to its backing column.
	BackingColumn(entity, exposed string) (string, bool)
	// ExposedName maps a backing column to its exposed field name.
	ExposedName(entity, backing string) (string, bool)
	// Relationship resolves an exposed relationship field on an entity.
	Relationship(entity, field string) (*Relationship, bool)
	// ForeignKeys returns candidate FK definitions between two entities,
	// searching source→target relationships first, then target→source.
	ForeignKeys(source, target string) []ForeignKeyDefinition
	// LinkingObject returns the associative table connecting two entities,
	// when their relationship is many-to-many.
	LinkingObject(source, target string) (DatabaseObject, bool)
	// EntityForGraphQLType resolves a GraphQL type name to its entity,
	// honoring explicit model-name overrides.
	EntityForGraphQLType(typeName string) (string, bool)
}
