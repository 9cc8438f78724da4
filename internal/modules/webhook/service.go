package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/pkg/pagination"
	"github.com/mx-space/forms/internal/pkg/response"
)

var (
	ErrNoEvents      = errors.New("events is empty")
	ErrEventNotFound = errors.New("event not found")
	ErrHookNotFound  = errors.New("hook not found")
	ErrHookDisabled  = errors.New("hook is disabled")
)

const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderHookID    = "X-Webhook-Id"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature256"

	maxResponseBody = 64 << 10
)

type Service struct {
	db     *gorm.DB
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("WebhookService")
		}
	}
}

// WithHTTPClient replaces the delivery client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, formID string) ([]models.WebhookModel, error) {
	var items []models.WebhookModel
	err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("created_at DESC").Find(&items).Error
	return items, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.WebhookModel, error) {
	var w models.WebhookModel
	if err := s.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (s *Service) Create(ctx context.Context, formID string, dto *CreateWebhookDTO) (*models.WebhookModel, error) {
	events := normalizeEvents(dto.Events)
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	secret := strings.TrimSpace(dto.Secret)
	if secret == "" {
		buf := make([]byte, 20)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(buf)
	}

	w := models.WebhookModel{
		FormID:     formID,
		PayloadURL: dto.PayloadURL,
		Events:     events,
		Secret:     secret,
		Enabled:    true,
	}
	if dto.Enabled != nil {
		w.Enabled = *dto.Enabled
	}
	return &w, s.db.WithContext(ctx).Create(&w).Error
}

func (s *Service) Update(ctx context.Context, id string, dto *UpdateWebhookDTO) (*models.WebhookModel, error) {
	w, err := s.GetByID(ctx, id)
	if err != nil || w == nil {
		return w, err
	}
	updates := map[string]interface{}{}
	if dto.PayloadURL != nil {
		updates["payload_url"] = *dto.PayloadURL
	}
	if dto.Events != nil {
		events := normalizeEvents(dto.Events)
		if len(events) == 0 {
			return nil, ErrNoEvents
		}
		updates["events"] = models.StringArray(events)
	}
	if dto.Enabled != nil {
		updates["enabled"] = *dto.Enabled
	}
	if dto.Secret != nil {
		updates["secret"] = strings.TrimSpace(*dto.Secret)
	}
	if len(updates) == 0 {
		return w, nil
	}
	if err := s.db.WithContext(ctx).Model(w).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes a hook together with its delivery log.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("hook_id = ?", id).Delete(&models.WebhookEventModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.WebhookModel{}, "id = ?", id).Error
	})
}

// Dispatch posts the event to every enabled hook of the form subscribed to it
// and returns once all deliveries are logged.
func (s *Service) Dispatch(ctx context.Context, formID, event string, data interface{}) {
	var hooks []models.WebhookModel
	if err := s.db.WithContext(ctx).Where("form_id = ? AND enabled = ?", formID, true).Find(&hooks).Error; err != nil {
		s.logger.Error("load hooks failed", zap.String("form_id", formID), zap.Error(err))
		return
	}

	envelope := Envelope{Event: event, FormID: formID, Timestamp: s.now().UnixMilli(), Data: data}
	var wg sync.WaitGroup
	for i := range hooks {
		hook := hooks[i]
		if !hook.Subscribed(event) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, hook, event, envelope)
		}()
	}
	wg.Wait()
}

func (s *Service) deliver(ctx context.Context, hook models.WebhookModel, event string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode payload failed", zap.String("hook_id", hook.ID), zap.Error(err))
		return
	}
	headers := map[string]string{
		HeaderEvent:     event,
		HeaderHookID:    hook.ID,
		HeaderTimestamp: strconv.FormatInt(s.now().UnixMilli(), 10),
		HeaderSignature: Sign(hook.Secret, body),
	}

	record := models.WebhookEventModel{
		HookID:    hook.ID,
		Event:     event,
		Headers:   toMap(headers),
		Payload:   decodeMap(body),
		Timestamp: s.now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.PayloadURL, bytes.NewReader(body))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		var resp *http.Response
		resp, err = s.client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			record.Status = resp.StatusCode
			record.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
			record.Response = map[string]interface{}{
				"headers": resp.Header,
				"data":    parseJSONOrString(raw),
				"status":  resp.Status,
			}
		}
	}
	if err != nil {
		record.Response = map[string]interface{}{"error": err.Error()}
		s.logger.Warn("webhook delivery failed", zap.String("hook_id", hook.ID), zap.String("event", event), zap.Error(err))
	}

	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(&record).Error; err != nil {
		s.logger.Error("log webhook event failed", zap.String("hook_id", hook.ID), zap.Error(err))
	}
}

func (s *Service) ListEvents(ctx context.Context, hookID string, q pagination.Query) ([]models.WebhookEventModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.WebhookEventModel{}).Where("hook_id = ?", hookID).Order("timestamp DESC")
	var items []models.WebhookEventModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Redispatch replays a logged delivery against its hook.
func (s *Service) Redispatch(ctx context.Context, eventID string) error {
	var event models.WebhookEventModel
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	hook, err := s.GetByID(ctx, event.HookID)
	if err != nil {
		return err
	}
	if hook == nil {
		return ErrHookNotFound
	}
	if !hook.Enabled {
		return ErrHookDisabled
	}
	s.deliver(ctx, *hook, event.Event, event.Payload)
	return nil
}

// PruneEvents deletes delivery logs older than before.
func (s *Service) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Unscoped().Where("timestamp < ?", before).Delete(&models.WebhookEventModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune webhook events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseJSONOrString(data []byte) interface{} {
	if len(data) == 0 {
		return ""
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err == nil {
		return out
	}
	return string(data)
}

func decodeMap(data []byte) map[string]interface{} {
	out := map[string]interface{}{}
	_ = json.Unmarshal(data, &out)
	return out
}

func toMap(headers map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}
