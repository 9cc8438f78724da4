package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
	"github.com/mx-space/forms/internal/store"
)

var ErrInvalidParent = errors.New("invalid parent")

// Repository is the persistence the builder needs.
type Repository interface {
	property.Store
	layout.ChildSource
	FormExists(ctx context.Context, id string) (bool, error)
	FindField(ctx context.Context, id string) (*models.FieldModel, error)
	FindElement(ctx context.Context, id string) (*models.LayoutElementModel, error)
	NextOrder(ctx context.Context, formID string, elementParent, fieldParent *string) (int, error)
	CreateField(ctx context.Context, f *models.FieldModel) error
	CreateElement(ctx context.Context, e *models.LayoutElementModel) error
	DeleteNodes(ctx context.Context, fieldIDs, elementIDs []string) error
	Reorder(ctx context.Context, formID string, updates []store.OrderUpdate) error
}

type Service struct {
	repo      Repository
	registry  *schema.Registry
	committer *property.Committer
	projector property.Projector
	tree      *layout.Builder
	logger    *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("BuilderService")
		}
	}
}

func NewService(repo Repository, registry *schema.Registry, opts ...Option) *Service {
	s := &Service{repo: repo, registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.committer = property.NewCommitter(repo, property.WithLogger(s.logger))
	s.tree = layout.NewBuilder(repo, layout.WithRepeaterChildren())
	return s
}

// Tree returns the editor tree of a form, repeaters expanded.
func (s *Service) Tree(ctx context.Context, formID string) ([]*layout.Node, error) {
	return s.tree.BuildFormTree(ctx, formID)
}

// Schema returns the ConfigSchema of a type.
func (s *Service) Schema(kind schema.Kind, typeName string) (*schema.ConfigSchema, error) {
	return s.registry.ConfigSchema(kind, typeName)
}

func (s *Service) Types(kind schema.Kind) []string {
	return s.registry.Types(kind)
}

func (s *Service) requireForm(ctx context.Context, formID string) error {
	ok, err := s.repo.FormExists(ctx, formID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("form %s: %w", formID, property.ErrNotFound)
	}
	return nil
}

// CreateField appends a field after its last sibling. Schema defaults are not
// written; they apply on first projection.
func (s *Service) CreateField(ctx context.Context, formID string, dto *CreateFieldDTO) (*models.FieldModel, error) {
	if err := s.requireForm(ctx, formID); err != nil {
		return nil, err
	}
	if !s.registry.Has(schema.KindField, dto.FieldType) {
		return nil, fmt.Errorf("%w: field %q", schema.ErrUnknownType, dto.FieldType)
	}
	elementParent, fieldParent := blankToNil(dto.LayoutElementID), blankToNil(dto.ParentFieldID)
	if err := s.checkParents(ctx, formID, elementParent, fieldParent); err != nil {
		return nil, err
	}
	order, err := s.repo.NextOrder(ctx, formID, elementParent, fieldParent)
	if err != nil {
		return nil, err
	}

	f := &models.FieldModel{
		FormID:          formID,
		LayoutElementID: elementParent,
		ParentFieldID:   fieldParent,
		FieldType:       dto.FieldType,
		Label:           strings.TrimSpace(dto.Label),
		Name:            strings.TrimSpace(dto.Name),
		Order:           order,
		Options:         map[string]interface{}{},
	}
	if err := s.repo.CreateField(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Debug("field created", zap.String("id", f.ID), zap.String("type", f.FieldType))
	return f, nil
}

func (s *Service) CreateElement(ctx context.Context, formID string, dto *CreateElementDTO) (*models.LayoutElementModel, error) {
	if err := s.requireForm(ctx, formID); err != nil {
		return nil, err
	}
	if !s.registry.Has(schema.KindElement, dto.ElementType) {
		return nil, fmt.Errorf("%w: element %q", schema.ErrUnknownType, dto.ElementType)
	}
	elementParent, fieldParent := blankToNil(dto.ParentID), blankToNil(dto.ParentFieldID)
	if err := s.checkParents(ctx, formID, elementParent, fieldParent); err != nil {
		return nil, err
	}
	order, err := s.repo.NextOrder(ctx, formID, elementParent, fieldParent)
	if err != nil {
		return nil, err
	}

	e := &models.LayoutElementModel{
		FormID:        formID,
		ParentID:      elementParent,
		ParentFieldID: fieldParent,
		ElementType:   dto.ElementType,
		Order:         order,
		Settings:      map[string]interface{}{},
	}
	if err := s.repo.CreateElement(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Debug("element created", zap.String("id", e.ID), zap.String("type", e.ElementType))
	return e, nil
}

// checkParents allows at most one parent, which must belong to the same form.
// A field parent must be a repeater.
func (s *Service) checkParents(ctx context.Context, formID string, elementParent, fieldParent *string) error {
	if elementParent != nil && fieldParent != nil {
		return fmt.Errorf("%w: set either a layout element or a repeater parent", ErrInvalidParent)
	}
	if elementParent != nil {
		el, err := s.repo.FindElement(ctx, *elementParent)
		if err != nil {
			if errors.Is(err, property.ErrNotFound) {
				return fmt.Errorf("%w: element %s does not exist", ErrInvalidParent, *elementParent)
			}
			return err
		}
		if el.FormID != formID {
			return fmt.Errorf("%w: element %s belongs to another form", ErrInvalidParent, el.ID)
		}
	}
	if fieldParent != nil {
		f, err := s.repo.FindField(ctx, *fieldParent)
		if err != nil {
			if errors.Is(err, property.ErrNotFound) {
				return fmt.Errorf("%w: field %s does not exist", ErrInvalidParent, *fieldParent)
			}
			return err
		}
		if f.FormID != formID {
			return fmt.Errorf("%w: field %s belongs to another form", ErrInvalidParent, f.ID)
		}
		if f.FieldType != layout.FieldTypeRepeater {
			return fmt.Errorf("%w: field %s is not a repeater", ErrInvalidParent, f.ID)
		}
	}
	return nil
}

func (s *Service) FieldProperties(ctx context.Context, id string) (*PropertiesResponse, error) {
	f, err := s.repo.FindField(ctx, id)
	if err != nil {
		return nil, err
	}
	e := property.NewFieldEntity(f)
	res, err := s.project(e)
	if err != nil {
		return nil, err
	}
	res.Extras = property.LoadFieldExtras(e, property.FullShape)
	return res, nil
}

func (s *Service) ElementProperties(ctx context.Context, id string) (*PropertiesResponse, error) {
	el, err := s.repo.FindElement(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.project(property.NewElementEntity(el))
}

func (s *Service) project(e property.Entity) (*PropertiesResponse, error) {
	cs, err := s.registry.ConfigSchema(e.Kind(), e.TypeName())
	if err != nil {
		return nil, err
	}
	ws, err := s.projector.Project(e, cs)
	if err != nil {
		return nil, err
	}
	return &PropertiesResponse{Schema: cs, Properties: ws}, nil
}

// SaveFieldProperties commits an edited working set and returns the refreshed
// tree of the owning form.
func (s *Service) SaveFieldProperties(ctx context.Context, id string, dto *SavePropertiesDTO) ([]*layout.Node, error) {
	f, err := s.repo.FindField(ctx, id)
	if err != nil {
		return nil, err
	}
	var opts []property.CommitOption
	if extras := untouchedRulesDropped(dto.Extras, f.ValidationRules); len(extras) > 0 {
		opts = append(opts, property.WithFieldExtras(extras, property.ShapeOf(extras)))
	}
	if err := s.commit(ctx, property.NewFieldEntity(f), dto.Properties, opts...); err != nil {
		return nil, err
	}
	return s.tree.BuildFormTree(ctx, f.FormID)
}

// untouchedRulesDropped removes validation_options when the editor sent back
// the map it was given, so the lossy rule codec never rewrites stored rules.
func untouchedRulesDropped(extras map[string]interface{}, rules []string) map[string]interface{} {
	opts, ok := extras[property.ExtraValidationOptions].(map[string]interface{})
	if !ok || !property.SameRules(opts, rules) {
		return extras
	}
	out := make(map[string]interface{}, len(extras))
	for k, v := range extras {
		if k != property.ExtraValidationOptions {
			out[k] = v
		}
	}
	return out
}

func (s *Service) SaveElementProperties(ctx context.Context, id string, dto *SavePropertiesDTO) ([]*layout.Node, error) {
	el, err := s.repo.FindElement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, property.NewElementEntity(el), dto.Properties); err != nil {
		return nil, err
	}
	return s.tree.BuildFormTree(ctx, el.FormID)
}

func (s *Service) commit(ctx context.Context, e property.Entity, ws property.WorkingSet, opts ...property.CommitOption) error {
	cs, err := s.registry.ConfigSchema(e.Kind(), e.TypeName())
	if err != nil {
		return err
	}
	return s.committer.Commit(ctx, e, cs, ws, opts...)
}

// Reorder moves siblings and returns the refreshed tree.
func (s *Service) Reorder(ctx context.Context, formID string, items []store.OrderUpdate) ([]*layout.Node, error) {
	if err := s.requireForm(ctx, formID); err != nil {
		return nil, err
	}
	if err := s.repo.Reorder(ctx, formID, items); err != nil {
		return nil, err
	}
	return s.tree.BuildFormTree(ctx, formID)
}

// DeleteField removes a field and, for repeaters, everything nested in it.
func (s *Service) DeleteField(ctx context.Context, id string) error {
	f, err := s.repo.FindField(ctx, id)
	if err != nil {
		return err
	}
	node, err := s.tree.BuildRepeater(ctx, f)
	if err != nil {
		return err
	}
	return s.deleteSubtree(ctx, node)
}

// DeleteElement removes an element and all of its descendants.
func (s *Service) DeleteElement(ctx context.Context, id string) error {
	el, err := s.repo.FindElement(ctx, id)
	if err != nil {
		return err
	}
	node, err := s.tree.BuildNode(ctx, el)
	if err != nil {
		return err
	}
	return s.deleteSubtree(ctx, node)
}

func (s *Service) deleteSubtree(ctx context.Context, root *layout.Node) error {
	var fieldIDs, elementIDs []string
	layout.Walk([]*layout.Node{root}, func(n *layout.Node, _ int) bool {
		if f := n.Field(); f != nil {
			fieldIDs = append(fieldIDs, f.ID)
		} else if e := n.Element(); e != nil {
			elementIDs = append(elementIDs, e.ID)
		}
		return true
	})
	if err := s.repo.DeleteNodes(ctx, fieldIDs, elementIDs); err != nil {
		return err
	}
	s.logger.Debug("subtree deleted", zap.Int("fields", len(fieldIDs)), zap.Int("elements", len(elementIDs)))
	return nil
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
