package property

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/pkg/nestedpath"
	"github.com/mx-space/forms/internal/schema"
)

// Store is the persistence the committer needs.
type Store interface {
	Save(ctx context.Context, e Entity) error
	SiblingSlugExists(ctx context.Context, kind schema.Kind, formID, slug, excludeID string) (bool, error)
}

// Committer writes edited working sets back onto entities and persists them.
type Committer struct {
	store  Store
	logger *zap.Logger
}

type Option func(*Committer)

func WithLogger(l *zap.Logger) Option {
	return func(c *Committer) {
		if l != nil {
			c.logger = l.Named("PropertyCommitter")
		}
	}
}

func NewCommitter(store Store, opts ...Option) *Committer {
	c := &Committer{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type commitConfig struct {
	extras map[string]interface{}
	shape  StateShape
}

type CommitOption func(*commitConfig)

// WithFieldExtras saves is_required, the validation option map and
// conditional logic from state after the schema loop. Ignored for elements.
func WithFieldExtras(state map[string]interface{}, shape StateShape) CommitOption {
	return func(c *commitConfig) {
		c.extras = state
		c.shape = shape
	}
}

type columnUpdate struct {
	key   string
	value interface{}
}

type pending struct {
	columns []columnUpdate
	patch   map[string]interface{}
	rules   []string
	logic   map[string]interface{}
}

// Commit routes each writable property of ws to its storage target, checks
// the element_id slug against both sibling kinds and saves e.
//
// A slug conflict or an unknown column leaves e untouched. A store failure
// leaves the attempted edits on e and returns a *PersistenceError.
func (c *Committer) Commit(ctx context.Context, e Entity, s *schema.ConfigSchema, ws WorkingSet, opts ...CommitOption) error {
	if err := checkSchema(e, s); err != nil {
		return err
	}
	var cfg commitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p := collect(e.Kind(), s, ws)

	for _, u := range p.columns {
		if _, ok := e.Column(u.key); !ok {
			return fmt.Errorf("%w: %s has no column %q", ErrUnknownColumn, e.Kind(), u.key)
		}
	}
	if err := c.checkSlug(ctx, e, p.columns); err != nil {
		return err
	}

	for _, u := range p.columns {
		if err := e.SetColumn(u.key, u.value); err != nil {
			return err
		}
	}
	if len(p.patch) > 0 {
		e.SetBlob(nestedpath.Merge(cloneBlob(e.Blob()), p.patch))
	}
	if len(p.rules) > 0 {
		e.SetValidationRules(p.rules)
	}
	if len(p.logic) > 0 {
		e.SetConditionalLogic(p.logic)
	}
	if err := applyFieldExtras(e, cfg.extras, cfg.shape); err != nil {
		return err
	}

	if err := c.store.Save(ctx, e); err != nil {
		c.logger.Warn("save failed",
			zap.String("kind", string(e.Kind())),
			zap.String("id", e.EntityID()),
			zap.Error(err))
		return &PersistenceError{Op: "save " + string(e.Kind()), Err: err}
	}
	return nil
}

func collect(kind schema.Kind, s *schema.ConfigSchema, ws WorkingSet) pending {
	p := pending{patch: map[string]interface{}{}}
	for _, b := range bindings(kind, s) {
		if b.Desc.DisplayOnly() {
			continue
		}
		v, ok := nestedpath.Lookup(ws, b.KeyPath)
		if !ok {
			v = b.Desc.Default
		}
		v = nestedpath.CloneValue(v)

		switch b.Target.Kind {
		case schema.TargetColumn:
			if b.Desc.Key == SlugColumn {
				v = strings.TrimSpace(toString(v))
			}
			p.columns = append(p.columns, columnUpdate{key: b.Desc.Key, value: v})
		case schema.TargetNested:
			nestedpath.Set(p.patch, b.Target.Path, v)
		case schema.TargetValidationRules:
			p.rules = toRuleList(v)
		case schema.TargetConditionalLogic:
			p.logic, _ = nestedpath.AsMap(v)
		default:
			p.patch[b.Desc.Key] = v
		}
	}
	return p
}

func (c *Committer) checkSlug(ctx context.Context, e Entity, columns []columnUpdate) error {
	var slug string
	for _, u := range columns {
		if u.key == SlugColumn {
			slug, _ = u.value.(string)
		}
	}
	if slug == "" {
		return nil
	}
	for _, kind := range []schema.Kind{schema.KindField, schema.KindElement} {
		exists, err := c.store.SiblingSlugExists(ctx, kind, e.FormID(), slug, e.EntityID())
		if err != nil {
			return &PersistenceError{Op: "check element_id", Err: err}
		}
		if exists {
			c.logger.Debug("element_id conflict",
				zap.String("form_id", e.FormID()),
				zap.String("slug", slug),
				zap.String("sibling", string(kind)))
			return &SlugConflictError{Kind: kind, Slug: slug}
		}
	}
	return nil
}
