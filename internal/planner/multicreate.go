package planner

import (
	"fmt"

	"dataapi/internal/dberror"
	"dataapi/internal/metadata"
)

// CreateNode is one entity instance of a nested create request. Nodes live
// in the MultipleCreateStructure arena and reference each other by index:
// ReferencedNodes must be inserted before this node (this node's row holds
// their keys), ReferencingNodes after it (their rows hold this node's
// keys).
type CreateNode struct {
	Entity      string
	ParentIndex int

	// Input holds the node's own scalar fields, keyed by exposed name.
	// Foreign key columns filled from dependency rows are merged in by
	// ResolvedInput once those rows exist.
	Input map[string]interface{}

	ReferencedNodes  []int
	ReferencingNodes []int

	// IsLinkingTableInsertionRequired marks the source node of a
	// many-to-many edge: after both endpoint rows exist a linking-table
	// row must be inserted per child in LinkingChildren, carrying the
	// attribute values captured in LinkingInput.
	IsLinkingTableInsertionRequired bool
	LinkingChildren                 []int
	LinkingObjects                  map[int]metadata.DatabaseObject
	LinkingInput                    map[int]map[string]interface{}

	// GeneratedKeys is filled after the node's row is inserted.
	GeneratedKeys map[string]interface{}

	relationship *metadata.Relationship
}

// MultipleCreateStructure is the order-of-insertion DAG for one nested
// create. Build it, iterate InsertOrder, and for each node construct an
// insert structure from ResolvedInput, then record the inserted row with
// SetGeneratedKeys before moving on.
type MultipleCreateStructure struct {
	Nodes []CreateNode
	Root  int

	provider metadata.Provider
}

// BuildMultipleCreate decomposes a nested create payload into the node
// arena. Relationship fields in the payload become child nodes; the edge
// direction follows who holds the foreign key.
func BuildMultipleCreate(provider metadata.Provider, entity string, input map[string]interface{}) (*MultipleCreateStructure, error) {
	m := &MultipleCreateStructure{provider: provider}
	root, err := m.addNode(entity, -1, nil, input)
	if err != nil {
		return nil, err
	}
	m.Root = root
	return m, nil
}

func (m *MultipleCreateStructure) addNode(entity string, parent int, rel *metadata.Relationship, input map[string]interface{}) (int, error) {
	def, ok := m.provider.SourceDefinition(entity)
	if !ok {
		return 0, dberror.NewBadRequestf("entity %s is not defined", entity)
	}

	idx := len(m.Nodes)
	m.Nodes = append(m.Nodes, CreateNode{
		Entity:       entity,
		ParentIndex:  parent,
		Input:        make(map[string]interface{}),
		relationship: rel,
	})

	type pendingChild struct {
		rel   *metadata.Relationship
		input map[string]interface{}
	}
	var children []pendingChild

	for _, field := range sortedKeys(input) {
		value := input[field]
		if childRel, isRel := m.provider.Relationship(entity, field); isRel {
			switch nested := value.(type) {
			case map[string]interface{}:
				children = append(children, pendingChild{rel: childRel, input: nested})
			case []interface{}:
				for _, item := range nested {
					itemMap, ok := item.(map[string]interface{})
					if !ok {
						return 0, dberror.NewBadRequestf("nested create for relationship %s of entity %s must hold input objects", field, entity)
					}
					children = append(children, pendingChild{rel: childRel, input: itemMap})
				}
			default:
				return 0, dberror.NewBadRequestf("nested create for relationship %s of entity %s must hold input objects", field, entity)
			}
			continue
		}
		backing, ok := m.provider.BackingColumn(entity, field)
		if !ok {
			return 0, dberror.NewBadRequestf("invalid field %s for entity %s", field, entity)
		}
		if _, ok := def.Column(backing); !ok {
			return 0, dberror.NewBadRequestf("invalid field %s for entity %s", field, entity)
		}
		m.Nodes[idx].Input[field] = value
	}

	for _, child := range children {
		if err := m.addChild(idx, child.rel, child.input); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

// addChild creates the child node and wires the ordering edge. A child the
// parent references is inserted first; a child referencing the parent is
// inserted after; a many-to-many child is independent of the parent but
// both precede the linking-table row.
func (m *MultipleCreateStructure) addChild(parent int, rel *metadata.Relationship, input map[string]interface{}) error {
	parentEntity := m.Nodes[parent].Entity

	if rel.IsManyToMany() {
		own, linking := m.splitLinkingInput(rel.TargetEntity, input)
		childIdx, err := m.addNode(rel.TargetEntity, parent, rel, own)
		if err != nil {
			return err
		}
		node := &m.Nodes[parent]
		node.IsLinkingTableInsertionRequired = true
		node.LinkingChildren = append(node.LinkingChildren, childIdx)
		if node.LinkingObjects == nil {
			node.LinkingObjects = make(map[int]metadata.DatabaseObject)
			node.LinkingInput = make(map[int]map[string]interface{})
		}
		node.LinkingObjects[childIdx] = *rel.LinkingObject
		node.LinkingInput[childIdx] = linking
		// The linking row needs both keys, so the child still precedes
		// the linking insert; relative to the parent it goes after.
		node.ReferencingNodes = append(node.ReferencingNodes, childIdx)
		return nil
	}

	childIdx, err := m.addNode(rel.TargetEntity, parent, rel, input)
	if err != nil {
		return err
	}
	node := &m.Nodes[parent]
	switch rel.Cardinality {
	case metadata.CardinalityOne:
		// Parent row carries the foreign key, child must exist first.
		node.ReferencedNodes = append(node.ReferencedNodes, childIdx)
	case metadata.CardinalityMany:
		// Child rows carry the foreign key, parent must exist first.
		node.ReferencingNodes = append(node.ReferencingNodes, childIdx)
	default:
		return dberror.NewUnexpectedError(fmt.Sprintf("relationship %s of entity %s has no cardinality", rel.Field, parentEntity))
	}
	return nil
}

// splitLinkingInput separates a many-to-many child payload into the
// child's own fields and extra values destined for the linking table.
func (m *MultipleCreateStructure) splitLinkingInput(childEntity string, input map[string]interface{}) (own, linking map[string]interface{}) {
	own = make(map[string]interface{})
	linking = make(map[string]interface{})
	for field, value := range input {
		if _, isRel := m.provider.Relationship(childEntity, field); isRel {
			own[field] = value
			continue
		}
		if _, isColumn := m.provider.BackingColumn(childEntity, field); isColumn {
			own[field] = value
			continue
		}
		linking[field] = value
	}
	return own, linking
}

// InsertOrder returns node indexes in a valid insertion order via Kahn's
// algorithm. A cyclic payload cannot be ordered and is rejected.
func (m *MultipleCreateStructure) InsertOrder() ([]int, error) {
	n := len(m.Nodes)
	indegree := make([]int, n)
	successors := make([][]int, n)
	addEdge := func(before, after int) {
		successors[before] = append(successors[before], after)
		indegree[after]++
	}
	for i := range m.Nodes {
		for _, dep := range m.Nodes[i].ReferencedNodes {
			addEdge(dep, i)
		}
		for _, dep := range m.Nodes[i].ReferencingNodes {
			addEdge(i, dep)
		}
	}

	var queue []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)
		for _, succ := range successors[next] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if len(order) != n {
		return nil, dberror.NewBadRequest("nested create payload contains a cyclic dependency")
	}
	return order, nil
}

// SetGeneratedKeys records the inserted row of a node, keyed by backing
// column names, making its keys available to dependent nodes.
func (m *MultipleCreateStructure) SetGeneratedKeys(idx int, keys map[string]interface{}) {
	m.Nodes[idx].GeneratedKeys = keys
}

// ResolvedInput merges each dependency's generated keys into the node's
// own fields according to the foreign key that connects them. It fails if
// a dependency has not been inserted yet, so callers must follow
// InsertOrder.
func (m *MultipleCreateStructure) ResolvedInput(idx int) (map[string]interface{}, error) {
	node := &m.Nodes[idx]
	resolved := make(map[string]interface{}, len(node.Input))
	for field, value := range node.Input {
		resolved[field] = value
	}

	// A node this one references: copy its referenced columns into this
	// node's referencing columns.
	for _, dep := range node.ReferencedNodes {
		if err := m.copyKeys(resolved, node.Entity, idx, dep); err != nil {
			return nil, err
		}
	}
	// A node referencing its parent: copy the parent's keys in when the
	// parent row exists.
	if node.ParentIndex >= 0 && node.relationship != nil && !node.relationship.IsManyToMany() &&
		node.relationship.Cardinality == metadata.CardinalityMany {
		if err := m.copyKeys(resolved, node.Entity, idx, node.ParentIndex); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// copyKeys copies the foreign key values from an inserted dependency row
// into the referencing node's payload.
func (m *MultipleCreateStructure) copyKeys(into map[string]interface{}, entity string, idx, dep int) error {
	depNode := &m.Nodes[dep]
	if depNode.GeneratedKeys == nil {
		return dberror.NewUnexpectedError(fmt.Sprintf("node %s depends on %s which has not been inserted", entity, depNode.Entity))
	}
	referencingObject, ok := m.provider.DatabaseObject(entity)
	if !ok {
		return dberror.NewBadRequestf("entity %s is not defined", entity)
	}
	for _, fk := range m.provider.ForeignKeys(entity, depNode.Entity) {
		if !fk.HasCompleteColumnInfo() || !fk.ReferencingObject.Equal(referencingObject) {
			continue
		}
		for i, referencing := range fk.ReferencingColumns {
			value, present := depNode.GeneratedKeys[fk.ReferencedColumns[i]]
			if !present {
				return dberror.NewUnexpectedError(fmt.Sprintf("inserted row for %s is missing column %s", depNode.Entity, fk.ReferencedColumns[i]))
			}
			exposed := referencing
			if name, ok := m.provider.ExposedName(entity, referencing); ok {
				exposed = name
			}
			into[exposed] = value
		}
		return nil
	}
	return dberror.NewUnexpectedError(fmt.Sprintf("no usable foreign key between %s and %s", entity, depNode.Entity))
}

// LinkingParameterSet assembles the linking-table row for one many-to-many
// edge: the parent's and child's key columns mapped through the linking
// object's foreign keys, plus any attribute values captured from the
// payload. Both endpoint rows must already be inserted.
func (m *MultipleCreateStructure) LinkingParameterSet(parent, child int) (metadata.DatabaseObject, map[string]interface{}, error) {
	parentNode := &m.Nodes[parent]
	childNode := &m.Nodes[child]
	linkingObject, ok := parentNode.LinkingObjects[child]
	if !ok {
		return metadata.DatabaseObject{}, nil, dberror.NewUnexpectedError(fmt.Sprintf("no linking table between nodes %d and %d", parent, child))
	}
	if parentNode.GeneratedKeys == nil || childNode.GeneratedKeys == nil {
		return metadata.DatabaseObject{}, nil, dberror.NewUnexpectedError("linking row requires both endpoint rows to be inserted")
	}

	row := make(map[string]interface{})
	for field, value := range parentNode.LinkingInput[child] {
		row[field] = value
	}
	for _, fk := range m.provider.ForeignKeys(parentNode.Entity, childNode.Entity) {
		if !fk.HasCompleteColumnInfo() || !fk.ReferencingObject.Equal(linkingObject) {
			continue
		}
		var keys map[string]interface{}
		switch {
		case m.objectOf(parentNode.Entity).Equal(fk.ReferencedObject):
			keys = parentNode.GeneratedKeys
		case m.objectOf(childNode.Entity).Equal(fk.ReferencedObject):
			keys = childNode.GeneratedKeys
		default:
			continue
		}
		for i, linkingColumn := range fk.ReferencingColumns {
			value, present := keys[fk.ReferencedColumns[i]]
			if !present {
				return metadata.DatabaseObject{}, nil, dberror.NewUnexpectedError(fmt.Sprintf("inserted row is missing column %s needed by linking table %s", fk.ReferencedColumns[i], linkingObject.FullName()))
			}
			row[linkingColumn] = value
		}
	}
	return linkingObject, row, nil
}

func (m *MultipleCreateStructure) objectOf(entity string) metadata.DatabaseObject {
	obj, _ := m.provider.DatabaseObject(entity)
	return obj
}
