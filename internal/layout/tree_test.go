package layout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/forms/internal/models"
)

type memSource struct {
	elements []*models.LayoutElementModel
	fields   []*models.FieldModel
	err      error
}

func (s *memSource) RootElements(_ context.Context, formID string) ([]*models.LayoutElementModel, error) {
	return s.elementsWhere(func(e *models.LayoutElementModel) bool {
		return e.FormID == formID && e.ParentID == nil && e.ParentFieldID == nil
	})
}

func (s *memSource) RootFields(_ context.Context, formID string) ([]*models.FieldModel, error) {
	return s.fieldsWhere(func(f *models.FieldModel) bool {
		return f.FormID == formID && f.LayoutElementID == nil && f.ParentFieldID == nil
	})
}

func (s *memSource) ChildElements(_ context.Context, parentID string) ([]*models.LayoutElementModel, error) {
	return s.elementsWhere(func(e *models.LayoutElementModel) bool {
		return e.ParentID != nil && *e.ParentID == parentID
	})
}

func (s *memSource) ChildFields(_ context.Context, elementID string) ([]*models.FieldModel, error) {
	return s.fieldsWhere(func(f *models.FieldModel) bool {
		return f.LayoutElementID != nil && *f.LayoutElementID == elementID
	})
}

func (s *memSource) RepeaterElements(_ context.Context, fieldID string) ([]*models.LayoutElementModel, error) {
	return s.elementsWhere(func(e *models.LayoutElementModel) bool {
		return e.ParentFieldID != nil && *e.ParentFieldID == fieldID
	})
}

func (s *memSource) RepeaterFields(_ context.Context, fieldID string) ([]*models.FieldModel, error) {
	return s.fieldsWhere(func(f *models.FieldModel) bool {
		return f.ParentFieldID != nil && *f.ParentFieldID == fieldID
	})
}

func (s *memSource) elementsWhere(keep func(*models.LayoutElementModel) bool) ([]*models.LayoutElementModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.LayoutElementModel
	for _, e := range s.elements {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memSource) fieldsWhere(keep func(*models.FieldModel) bool) ([]*models.FieldModel, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.FieldModel
	for _, f := range s.fields {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out, nil
}

func ptr(s string) *string { return &s }

func element(id, typ string, parent *string, order int) *models.LayoutElementModel {
	e := &models.LayoutElementModel{FormID: "7", ParentID: parent, ElementType: typ, Order: order}
	e.ID = id
	return e
}

func field(id, typ string, parent *string, order int) *models.FieldModel {
	f := &models.FieldModel{FormID: "7", LayoutElementID: parent, FieldType: typ, Order: order}
	f.ID = id
	return f
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if f := n.Field(); f != nil {
			out = append(out, f.ID)
			continue
		}
		out = append(out, n.Element().ID)
	}
	return out
}

func TestBuildForestOrdersElementsAndFields(t *testing.T) {
	src := &memSource{
		elements: []*models.LayoutElementModel{
			element("P", "container", nil, 0),
			element("E2", "row", ptr("P"), 2),
			element("E1", "row", ptr("P"), 1),
		},
		fields: []*models.FieldModel{
			field("F1", "text", ptr("P"), 1),
		},
	}

	nodes, err := NewBuilder(src).BuildForest(context.Background(), ElementParent("P"))
	require.NoError(t, err)
	assert.Equal(t, []string{"F1", "E1", "E2"}, ids(nodes))
	assert.Equal(t, NodeField, nodes[0].Type)
	assert.Empty(t, nodes[0].Children)
	assert.Equal(t, "row", nodes[1].ElementType)
}

func TestBuildFormTreeRecurses(t *testing.T) {
	src := &memSource{
		elements: []*models.LayoutElementModel{
			element("T", "tabs", nil, 1),
			element("TA", "tab", ptr("T"), 0),
			element("TB", "tab", ptr("T"), 1),
		},
		fields: []*models.FieldModel{
			field("NAME", "text", nil, 0),
			field("EMAIL", "email", ptr("TB"), 0),
			field("AGE", "number", ptr("TA"), 0),
		},
	}

	forest, err := NewBuilder(src).BuildFormTree(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, []string{"NAME", "T"}, ids(forest))
	assert.Equal(t, []string{"TA", "TB"}, ids(forest[1].Children))
	assert.Equal(t, []string{"AGE"}, ids(forest[1].Children[0].Children))

	var names []string
	for _, f := range Fields(forest) {
		names = append(names, f.ID)
	}
	assert.Equal(t, []string{"NAME", "AGE", "EMAIL"}, names)
}

func TestRepeaterUsesParentFieldID(t *testing.T) {
	rep := field("R", FieldTypeRepeater, nil, 0)
	inner := element("ROW", "row", nil, 0)
	inner.ParentFieldID = ptr("R")
	direct := field("QTY", "number", nil, 1)
	direct.ParentFieldID = ptr("R")
	src := &memSource{
		elements: []*models.LayoutElementModel{inner, element("COL", "column", ptr("ROW"), 0)},
		fields:   []*models.FieldModel{rep, direct, field("SKU", "text", ptr("COL"), 0)},
	}

	n, err := NewBuilder(src).BuildRepeater(context.Background(), rep)
	require.NoError(t, err)
	assert.Equal(t, NodeField, n.Type)
	assert.Equal(t, []string{"ROW", "QTY"}, ids(n.Children))
	assert.Equal(t, []string{"SKU"}, ids(n.Children[0].Children[0].Children))

	forest, err := NewBuilder(src).BuildFormTree(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"R"}, ids(forest))
	assert.Empty(t, forest[0].Children)

	forest, err = NewBuilder(src, WithRepeaterChildren()).BuildFormTree(context.Background(), "7")
	require.NoError(t, err)
	assert.Len(t, forest[0].Children, 2)
}

func TestCyclicParentsStopAtMaxDepth(t *testing.T) {
	a := element("A", "container", ptr("B"), 0)
	b := element("B", "container", ptr("A"), 0)
	src := &memSource{elements: []*models.LayoutElementModel{a, b}}

	_, err := NewBuilder(src).BuildNode(context.Background(), a)
	assert.True(t, errors.Is(err, ErrTreeTooDeep))
}

func TestSourceErrorsPropagate(t *testing.T) {
	src := &memSource{err: errors.New("db down")}
	_, err := NewBuilder(src).BuildFormTree(context.Background(), "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestNodeJSONShape(t *testing.T) {
	n := &Node{Type: NodeElement, ElementType: "row", Data: map[string]string{"id": "E"}, Children: []*Node{}}
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"element","elementType":"row","data":{"id":"E"},"children":[]}`, string(b))

	b, err = json.Marshal(fieldNode(field("F", "text", nil, 0)))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	_, hasElementType := decoded["elementType"]
	assert.False(t, hasElementType)
	assert.Equal(t, "field", decoded["type"])
}

func TestDecodeForestRestoresModels(t *testing.T) {
	src := &memSource{
		elements: []*models.LayoutElementModel{element("E1", "row", nil, 0)},
		fields:   []*models.FieldModel{field("F1", "text", ptr("E1"), 0)},
	}
	tree, err := NewBuilder(src).BuildFormTree(context.Background(), "7")
	require.NoError(t, err)

	b, err := json.Marshal(tree)
	require.NoError(t, err)
	decoded, err := DecodeForest(b)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.NotNil(t, decoded[0].Element())
	assert.Equal(t, "E1", decoded[0].Element().ID)
	require.Len(t, decoded[0].Children, 1)
	assert.Equal(t, "F1", decoded[0].Children[0].Field().ID)
	assert.Equal(t, []string{"F1"}, ids(decoded[0].Children))

	_, err = DecodeForest([]byte(`[{"type":"widget","data":{}}]`))
	assert.Error(t, err)
}

func TestGroupTableSections(t *testing.T) {
	src := &memSource{
		elements: []*models.LayoutElementModel{
			element("TBL", models.ElementTable, nil, 0),
			element("H", models.ElementTableHeader, ptr("TBL"), 0),
			element("HR", models.ElementTableRow, ptr("H"), 0),
			element("HC", models.ElementTableCell, ptr("HR"), 0),
			element("B", models.ElementTableBody, ptr("TBL"), 1),
			element("BR1", models.ElementTableRow, ptr("B"), 0),
			element("BC1", models.ElementTableCell, ptr("BR1"), 0),
			element("BC2", models.ElementTableCell, ptr("BR1"), 1),
			element("LOOSE", models.ElementTableRow, ptr("TBL"), 2),
		},
	}
	forest, err := NewBuilder(src).BuildFormTree(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, forest, 1)

	tl, ok := GroupTableSections(forest[0])
	require.True(t, ok)
	require.Len(t, tl.Header, 1)
	assert.Equal(t, []string{"HC"}, ids(tl.Header[0].Cells))
	require.Len(t, tl.Body, 2)
	assert.Equal(t, []string{"BC1", "BC2"}, ids(tl.Body[0].Cells))
	assert.Equal(t, "LOOSE", tl.Body[1].Row.Element().ID)
	assert.Empty(t, tl.Footer)
	assert.Empty(t, tl.Stray)

	_, ok = GroupTableSections(&Node{Type: NodeElement, ElementType: "row"})
	assert.False(t, ok)

	assert.Equal(t, map[string]TableGrid{
		"TBL": {
			Header: [][]string{{"HC"}},
			Body:   [][]string{{"BC1", "BC2"}, {}},
			Footer: [][]string{},
		},
	}, Tables(forest))
}
