// Package layout assembles the ordered tree of layout elements and fields that
// the builder, the public renderer and exports walk.
package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mx-space/forms/internal/models"
)

// MaxDepth bounds recursion so a cyclic parent chain in stored data cannot
// recurse forever.
const MaxDepth = 64

var ErrTreeTooDeep = errors.New("layout tree exceeds maximum depth")

// FieldTypeRepeater marks fields that own a nested layout of their own.
const FieldTypeRepeater = "repeater"

type NodeType string

const (
	NodeField   NodeType = "field"
	NodeElement NodeType = "element"
)

// Node is the interchange shape {type, elementType?, data, children}.
type Node struct {
	Type        NodeType    `json:"type"`
	ElementType string      `json:"elementType,omitempty"`
	Data        interface{} `json:"data"`
	Children    []*Node     `json:"children"`
}

// Field returns the field behind a field node.
func (n *Node) Field() *models.FieldModel {
	f, _ := n.Data.(*models.FieldModel)
	return f
}

// Element returns the layout element behind an element node.
func (n *Node) Element() *models.LayoutElementModel {
	e, _ := n.Data.(*models.LayoutElementModel)
	return e
}

// UnmarshalJSON restores the typed model behind Data, so stored snapshots
// decode back into walkable trees.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type        NodeType        `json:"type"`
		ElementType string          `json:"elementType"`
		Data        json.RawMessage `json:"data"`
		Children    []*Node         `json:"children"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	n.Type, n.ElementType, n.Children = raw.Type, raw.ElementType, raw.Children
	if n.Children == nil {
		n.Children = []*Node{}
	}
	switch raw.Type {
	case NodeField:
		f := &models.FieldModel{}
		if err := json.Unmarshal(raw.Data, f); err != nil {
			return fmt.Errorf("field node: %w", err)
		}
		n.Data = f
	case NodeElement:
		e := &models.LayoutElementModel{}
		if err := json.Unmarshal(raw.Data, e); err != nil {
			return fmt.Errorf("element node: %w", err)
		}
		n.Data = e
	default:
		return fmt.Errorf("unknown node type %q", raw.Type)
	}
	return nil
}

// DecodeForest parses a forest encoded with encoding/json.
func DecodeForest(data []byte) ([]*Node, error) {
	var out []*Node
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChildSource loads the direct children of each parent kind. Implementations
// return rows in a stable query order.
type ChildSource interface {
	RootElements(ctx context.Context, formID string) ([]*models.LayoutElementModel, error)
	RootFields(ctx context.Context, formID string) ([]*models.FieldModel, error)
	ChildElements(ctx context.Context, parentID string) ([]*models.LayoutElementModel, error)
	ChildFields(ctx context.Context, elementID string) ([]*models.FieldModel, error)
	RepeaterElements(ctx context.Context, fieldID string) ([]*models.LayoutElementModel, error)
	RepeaterFields(ctx context.Context, fieldID string) ([]*models.FieldModel, error)
}

type ParentKind int

const (
	ParentForm ParentKind = iota
	ParentElement
	ParentRepeater
)

// Parent identifies whose children to load. Repeater fields join their
// children on parent_field_id instead of parent_id.
type Parent struct {
	Kind ParentKind
	ID   string
}

func FormRoot(formID string) Parent        { return Parent{Kind: ParentForm, ID: formID} }
func ElementParent(elementID string) Parent { return Parent{Kind: ParentElement, ID: elementID} }
func RepeaterParent(fieldID string) Parent  { return Parent{Kind: ParentRepeater, ID: fieldID} }

type Builder struct {
	src             ChildSource
	expandRepeaters bool
}

type Option func(*Builder)

// WithRepeaterChildren makes repeater field nodes carry their nested layout
// instead of being leaves.
func WithRepeaterChildren() Option {
	return func(b *Builder) { b.expandRepeaters = true }
}

func NewBuilder(src ChildSource, opts ...Option) *Builder {
	b := &Builder{src: src}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildFormTree returns the top-level forest of a form.
func (b *Builder) BuildFormTree(ctx context.Context, formID string) ([]*Node, error) {
	return b.BuildForest(ctx, FormRoot(formID))
}

// BuildForest returns the children of parent sorted by order. On equal order
// fields come before elements, each in query order.
func (b *Builder) BuildForest(ctx context.Context, parent Parent) ([]*Node, error) {
	return b.forest(ctx, parent, 0)
}

// BuildNode returns an element node with its descendants.
func (b *Builder) BuildNode(ctx context.Context, el *models.LayoutElementModel) (*Node, error) {
	return b.elementNode(ctx, el, 0)
}

// BuildRepeater returns a repeater field node whose children come from the
// parent_field_id join.
func (b *Builder) BuildRepeater(ctx context.Context, field *models.FieldModel) (*Node, error) {
	return b.repeaterNode(ctx, field, 0)
}

type child struct {
	order int
	el    *models.LayoutElementModel
	field *models.FieldModel
}

func (b *Builder) forest(ctx context.Context, parent Parent, depth int) ([]*Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w (%d)", ErrTreeTooDeep, MaxDepth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elements, fields, err := b.load(ctx, parent)
	if err != nil {
		return nil, err
	}

	children := make([]child, 0, len(elements)+len(fields))
	for _, f := range fields {
		children = append(children, child{order: f.Order, field: f})
	}
	for _, el := range elements {
		children = append(children, child{order: el.Order, el: el})
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].order < children[j].order
	})

	nodes := make([]*Node, 0, len(children))
	for _, c := range children {
		var (
			n   *Node
			err error
		)
		switch {
		case c.el != nil:
			n, err = b.elementNode(ctx, c.el, depth+1)
		case b.expandRepeaters && c.field.FieldType == FieldTypeRepeater:
			n, err = b.repeaterNode(ctx, c.field, depth+1)
		default:
			n = fieldNode(c.field)
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (b *Builder) load(ctx context.Context, parent Parent) ([]*models.LayoutElementModel, []*models.FieldModel, error) {
	var (
		elements []*models.LayoutElementModel
		fields   []*models.FieldModel
		err      error
	)
	switch parent.Kind {
	case ParentForm:
		if elements, err = b.src.RootElements(ctx, parent.ID); err == nil {
			fields, err = b.src.RootFields(ctx, parent.ID)
		}
	case ParentElement:
		if elements, err = b.src.ChildElements(ctx, parent.ID); err == nil {
			fields, err = b.src.ChildFields(ctx, parent.ID)
		}
	case ParentRepeater:
		if elements, err = b.src.RepeaterElements(ctx, parent.ID); err == nil {
			fields, err = b.src.RepeaterFields(ctx, parent.ID)
		}
	default:
		return nil, nil, fmt.Errorf("unknown parent kind %d", parent.Kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load children of %s: %w", parent.ID, err)
	}
	return elements, fields, nil
}

func (b *Builder) elementNode(ctx context.Context, el *models.LayoutElementModel, depth int) (*Node, error) {
	children, err := b.forest(ctx, ElementParent(el.ID), depth)
	if err != nil {
		return nil, err
	}
	return &Node{Type: NodeElement, ElementType: el.ElementType, Data: el, Children: children}, nil
}

func (b *Builder) repeaterNode(ctx context.Context, field *models.FieldModel, depth int) (*Node, error) {
	children, err := b.forest(ctx, RepeaterParent(field.ID), depth)
	if err != nil {
		return nil, err
	}
	n := fieldNode(field)
	n.Children = children
	return n, nil
}

func fieldNode(f *models.FieldModel) *Node {
	return &Node{Type: NodeField, Data: f, Children: []*Node{}}
}

// Walk visits nodes depth first. Returning false from fn skips the node's
// children.
func Walk(nodes []*Node, fn func(n *Node, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range nodes {
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// Fields lists every field in the tree in display order.
func Fields(nodes []*Node) []*models.FieldModel {
	var out []*models.FieldModel
	Walk(nodes, func(n *Node, _ int) bool {
		if f := n.Field(); f != nil {
			out = append(out, f)
		}
		return true
	})
	return out
}
