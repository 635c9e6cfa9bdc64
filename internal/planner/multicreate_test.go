package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMultipleCreate_ScalarOnlyIsSingleNode(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title":        "dune",
		"publisher_id": int64(3),
	})
	require.NoError(t, err)

	require.Len(t, m.Nodes, 1)
	assert.Equal(t, 0, m.Root)
	assert.Equal(t, -1, m.Nodes[0].ParentIndex)

	order, err := m.InsertOrder()
	require.NoError(t, err)
	assert.Equal(t, []int{0}, order)
}

func TestBuildMultipleCreate_ReferencedChildInsertsFirst(t *testing.T) {
	// Book holds the foreign key to Publisher, so the publisher row must
	// exist before the book row.
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title": "dune",
		"publisher": map[string]interface{}{
			"name": "chilton",
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Nodes, 2)

	book := m.Nodes[0]
	assert.Equal(t, "Book", book.Entity)
	assert.Equal(t, []int{1}, book.ReferencedNodes)
	assert.Empty(t, book.ReferencingNodes)

	order, err := m.InsertOrder()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, order)
}

func TestBuildMultipleCreate_ReferencingChildrenInsertAfter(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Publisher", map[string]interface{}{
		"name": "chilton",
		"books": []interface{}{
			map[string]interface{}{"title": "dune"},
			map[string]interface{}{"title": "dune messiah"},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Nodes, 3)

	publisher := m.Nodes[0]
	assert.Equal(t, []int{1, 2}, publisher.ReferencingNodes)

	order, err := m.InsertOrder()
	require.NoError(t, err)
	assert.Equal(t, 0, order[0])
}

func TestResolvedInput_CopiesGeneratedKeysAcrossForeignKey(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Publisher", map[string]interface{}{
		"name":  "chilton",
		"books": []interface{}{map[string]interface{}{"title": "dune"}},
	})
	require.NoError(t, err)

	// The book cannot resolve before the publisher row exists.
	_, err = m.ResolvedInput(1)
	require.Error(t, err)

	m.SetGeneratedKeys(0, map[string]interface{}{"id": int32(11)})
	resolved, err := m.ResolvedInput(1)
	require.NoError(t, err)
	assert.Equal(t, "dune", resolved["title"])
	assert.Equal(t, int32(11), resolved["publisher_id"])
}

func TestResolvedInput_ParentReceivesReferencedChildKeys(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title":     "dune",
		"publisher": map[string]interface{}{"name": "chilton"},
	})
	require.NoError(t, err)

	m.SetGeneratedKeys(1, map[string]interface{}{"id": int32(4)})
	resolved, err := m.ResolvedInput(0)
	require.NoError(t, err)
	assert.Equal(t, int32(4), resolved["publisher_id"])
}

func TestBuildMultipleCreate_ManyToManyFlagsLinkingInsertion(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title": "dune",
		"authors": []interface{}{
			map[string]interface{}{"id": int64(2), "name": "herbert", "royalty": int64(15)},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Nodes, 2)

	book := m.Nodes[0]
	assert.True(t, book.IsLinkingTableInsertionRequired)
	assert.Equal(t, []int{1}, book.LinkingChildren)
	assert.Equal(t, "book_author", book.LinkingObjects[1].Name)

	// Fields that belong to neither endpoint land in the linking row.
	assert.Equal(t, map[string]interface{}{"royalty": int64(15)}, book.LinkingInput[1])
	author := m.Nodes[1]
	assert.NotContains(t, author.Input, "royalty")
	assert.Equal(t, "herbert", author.Input["name"])
}

func TestLinkingParameterSet_CombinesBothKeysAndAttributes(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title": "dune",
		"authors": []interface{}{
			map[string]interface{}{"id": int64(2), "name": "herbert", "royalty": int64(15)},
		},
	})
	require.NoError(t, err)

	_, _, err = m.LinkingParameterSet(0, 1)
	require.Error(t, err)

	m.SetGeneratedKeys(0, map[string]interface{}{"id": int32(9)})
	m.SetGeneratedKeys(1, map[string]interface{}{"id": int32(2)})

	object, row, err := m.LinkingParameterSet(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "book_author", object.Name)
	assert.Equal(t, int32(9), row["book_id"])
	assert.Equal(t, int32(2), row["author_id"])
	assert.Equal(t, int64(15), row["royalty"])
}

func TestBuildMultipleCreate_DeepNesting(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Publisher", map[string]interface{}{
		"name": "chilton",
		"books": []interface{}{
			map[string]interface{}{
				"title": "dune",
				"authors": []interface{}{
					map[string]interface{}{"id": int64(2), "name": "herbert"},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, m.Nodes, 3)

	order, err := m.InsertOrder()
	require.NoError(t, err)
	require.Len(t, order, 3)
	// Publisher before book, book before its many-to-many companion's
	// linking row; the author itself only needs to precede the linking row.
	assert.Less(t, indexOf(order, 0), indexOf(order, 1))
}

func TestBuildMultipleCreate_UnknownNestedFieldRejected(t *testing.T) {
	_, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title":  "dune",
		"editor": map[string]interface{}{"name": "x"},
	})
	require.Error(t, err)
}

func TestInsertOrder_CycleRejected(t *testing.T) {
	m, err := BuildMultipleCreate(testProvider(), "Book", map[string]interface{}{
		"title":     "dune",
		"publisher": map[string]interface{}{"name": "chilton"},
	})
	require.NoError(t, err)

	// Force a contradictory ordering between the two nodes.
	m.Nodes[0].ReferencingNodes = append(m.Nodes[0].ReferencingNodes, 1)

	_, err = m.InsertOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func indexOf(order []int, node int) int {
	for i, n := range order {
		if n == node {
			return i
		}
	}
	return -1
}
