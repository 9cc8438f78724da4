package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/pkg/pagination"
	"github.com/mx-space/forms/internal/pkg/response"
	"github.com/mx-space/forms/internal/pkg/signedurl"
	"github.com/mx-space/forms/internal/pkg/validate"
)

var (
	ErrNotFound        = errors.New("form not found")
	ErrVersionNotFound = errors.New("form version not found")
	ErrInvalidSettings = errors.New("invalid settings")
)

// EventPublished is dispatched to webhooks after a publish.
const EventPublished = "form.published"

// TreeBuilder assembles a form's layout tree.
type TreeBuilder interface {
	BuildFormTree(ctx context.Context, formID string) ([]*layout.Node, error)
}

// Dispatcher delivers form events to webhooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, formID, event string, data interface{})
}

type Service struct {
	db        *gorm.DB
	tree      TreeBuilder
	signer    *signedurl.Signer
	hooks     Dispatcher
	publicURL string
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("FormService")
		}
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.hooks = d }
}

// WithPublicURL sets the origin public links are built on.
func WithPublicURL(u string) Option {
	return func(s *Service) { s.publicURL = strings.TrimRight(u, "/") }
}

func NewService(db *gorm.DB, tree TreeBuilder, signer *signedurl.Signer, opts ...Option) *Service {
	s := &Service{db: db, tree: tree, signer: signer, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, q pagination.Query) ([]models.FormModel, response.Pagination, error) {
	var items []models.FormModel
	tx := s.db.WithContext(ctx).Model(&models.FormModel{}).Order("created_at DESC")
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.FormModel, error) {
	var f models.FormModel
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (s *Service) Create(ctx context.Context, dto *CreateFormDTO) (*models.FormModel, error) {
	if err := validateSettings(dto.Settings); err != nil {
		return nil, err
	}
	f := models.FormModel{
		Title:       strings.TrimSpace(dto.Title),
		Description: dto.Description,
		Settings:    dto.Settings,
		IsActive:    true,
	}
	if f.Settings == nil {
		f.Settings = map[string]interface{}{}
	}
	if dto.IsActive != nil {
		f.IsActive = *dto.IsActive
	}
	return &f, s.db.WithContext(ctx).Create(&f).Error
}

func (s *Service) Update(ctx context.Context, id string, dto *UpdateFormDTO) (*models.FormModel, error) {
	f, err := s.GetByID(ctx, id)
	if err != nil || f == nil {
		return f, err
	}
	if dto.Settings != nil {
		if err := validateSettings(dto.Settings); err != nil {
			return nil, err
		}
		f.Settings = dto.Settings
	}
	if dto.Title != nil {
		f.Title = strings.TrimSpace(*dto.Title)
	}
	if dto.Description != nil {
		f.Description = *dto.Description
	}
	if dto.IsActive != nil {
		f.IsActive = *dto.IsActive
	}
	if err := s.db.WithContext(ctx).Save(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the form with its layout, versions, submissions and hooks.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hookIDs := tx.Model(&models.WebhookModel{}).Select("id").Where("form_id = ?", id)
		if err := tx.Where("hook_id IN (?)", hookIDs).Delete(&models.WebhookEventModel{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{
			&models.WebhookModel{},
			&models.SubmissionModel{},
			&models.FormVersionModel{},
			&models.FieldModel{},
			&models.LayoutElementModel{},
		} {
			if err := tx.Where("form_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.FormModel{}, "id = ?", id).Error
	})
}

// Tree returns the live layout tree of a form.
func (s *Service) Tree(ctx context.Context, id string) ([]*layout.Node, error) {
	f, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return s.tree.BuildFormTree(ctx, id)
}

// Publish snapshots the current tree as the next version and returns a
// signed public link to it.
func (s *Service) Publish(ctx context.Context, id string, dto *PublishDTO) (*PublishResult, error) {
	f, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	tree, err := s.tree.BuildFormTree(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	snapshot, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	now := s.now()
	version := f.Version + 1
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v := models.FormVersionModel{FormID: id, Version: version, Title: f.Title, Snapshot: snapshot}
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return tx.Model(&models.FormModel{}).Where("id = ?", id).
			Updates(map[string]interface{}{"version": version, "published_at": now}).Error
	})
	if err != nil {
		return nil, err
	}

	var ttl time.Duration
	if dto != nil && dto.ExpiresInHours > 0 {
		ttl = time.Duration(dto.ExpiresInHours) * time.Hour
	}
	token, err := s.signer.SignForm(id, version, ttl)
	if err != nil {
		return nil, err
	}
	res := &PublishResult{Version: version, Token: token, URL: s.publicURL + "/f/" + token, PublishedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		res.ExpiresAt = &exp
	}

	s.logger.Info("form published", zap.String("form_id", id), zap.Int("version", version))
	if s.hooks != nil {
		go s.hooks.Dispatch(context.WithoutCancel(ctx), id, EventPublished, map[string]interface{}{
			"version": version,
			"url":     res.URL,
		})
	}
	return res, nil
}

// Versions lists the published snapshots of a form, newest first.
func (s *Service) Versions(ctx context.Context, id string) ([]models.FormVersionModel, error) {
	var items []models.FormVersionModel
	err := s.db.WithContext(ctx).
		Select("id", "form_id", "version", "title", "created_at", "updated_at").
		Where("form_id = ?", id).Order("version DESC").Find(&items).Error
	return items, err
}

// Version loads one published snapshot.
func (s *Service) Version(ctx context.Context, formID string, version int) (*models.FormVersionModel, error) {
	var v models.FormVersionModel
	err := s.db.WithContext(ctx).Where("form_id = ? AND version = ?", formID, version).First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &v, nil
}

func validateSettings(settings map[string]interface{}) error {
	raw, ok := settings["notify_emails"]
	if !ok {
		return nil
	}
	f := models.FormModel{Settings: map[string]interface{}{"notify_emails": raw}}
	for _, addr := range f.NotifyEmails() {
		if !validate.Email(addr) {
			return fmt.Errorf("%w: notify_emails: %q is not an email address", ErrInvalidSettings, addr)
		}
	}
	return nil
}
