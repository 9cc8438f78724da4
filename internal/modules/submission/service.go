package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/modules/analytics"
	"github.com/mx-space/forms/internal/pkg/mail"
	"github.com/mx-space/forms/internal/pkg/markdown"
	"github.com/mx-space/forms/internal/pkg/pagination"
	"github.com/mx-space/forms/internal/pkg/response"
	"github.com/mx-space/forms/internal/pkg/signedurl"
)

var (
	ErrFormNotFound = errors.New("form not found")
	ErrFormClosed   = errors.New("form is not accepting submissions")
	ErrSpam         = errors.New("submission rejected")
	ErrBadTicket    = errors.New("form session is missing or expired, reload the page")
)

// Events dispatched to webhooks.
const (
	EventCreated = "submission.created"
	EventDeleted = "submission.deleted"
)

// Dispatcher delivers submission events to webhooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, formID, event string, data interface{})
}

// Tracker counts views and submissions.
type Tracker interface {
	Track(ctx context.Context, formID string, metric analytics.Metric)
}

// Notifier mails new submissions to the form owners.
type Notifier interface {
	Enabled() bool
	SendSubmissionNotify(ctx context.Context, to []string, data mail.SubmissionNotifyData) error
}

// Spam configures the checks run before a submission is validated.
type Spam struct {
	HoneypotField string
	MinFillTime   time.Duration
}

type Service struct {
	db       *gorm.DB
	signer   *signedurl.Signer
	hooks    Dispatcher
	tracker  Tracker
	notifier Notifier
	uploader Uploader
	spam     Spam
	adminURL string
	logger   *zap.Logger
	now      func() time.Time
	async    func(func())
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("SubmissionService")
		}
	}
}

func WithDispatcher(d Dispatcher) Option { return func(s *Service) { s.hooks = d } }

func WithTracker(t Tracker) Option { return func(s *Service) { s.tracker = t } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithUploader sets where archived exports go. A nil uploader leaves
// archiving disabled.
func WithUploader(u Uploader) Option {
	return func(s *Service) {
		if u != nil {
			s.uploader = u
		}
	}
}

func WithSpam(cfg Spam) Option { return func(s *Service) { s.spam = cfg } }

// WithAdminURL sets the origin linked from notification emails.
func WithAdminURL(u string) Option {
	return func(s *Service) { s.adminURL = strings.TrimRight(u, "/") }
}

func NewService(db *gorm.DB, signer *signedurl.Signer, opts ...Option) *Service {
	s := &Service{
		db:     db,
		signer: signer,
		logger: zap.NewNop(),
		now:    time.Now,
		async:  func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open resolves a public link to the published layout and stamps a ticket
// for the minimum fill time check.
func (s *Service) Open(ctx context.Context, token string) (*PublicForm, error) {
	f, v, tree, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	renderBlocks(tree)
	ticket, err := s.signer.IssueTicket(f.ID)
	if err != nil {
		return nil, err
	}
	if s.tracker != nil {
		s.tracker.Track(ctx, f.ID, analytics.MetricViews)
	}
	return &PublicForm{
		FormID:      f.ID,
		Version:     v.Version,
		Title:       v.Title,
		Description: f.Description,
		Tree:        tree,
		Tables:      layout.Tables(tree),
		Ticket:      ticket,
		Honeypot:    s.spam.HoneypotField,
	}, nil
}

// Submit checks, validates and stores a submission, then runs its side
// effects.
func (s *Service) Submit(ctx context.Context, token string, dto *SubmitDTO, ip, userAgent string) (*models.SubmissionModel, error) {
	f, v, tree, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if hp := s.spam.HoneypotField; hp != "" && !isEmpty(dto.Values[hp]) {
		s.logger.Info("honeypot tripped", zap.String("form_id", f.ID), zap.String("ip", ip))
		return nil, ErrSpam
	}
	if s.spam.MinFillTime > 0 {
		err := s.signer.CheckTicket(dto.Ticket, f.ID, s.spam.MinFillTime)
		if errors.Is(err, signedurl.ErrInvalidToken) {
			return nil, ErrBadTicket
		}
		if err != nil {
			return nil, err
		}
	}

	values, errs := Checked(tree, dto.Values)
	if len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	sub := models.SubmissionModel{
		FormID:      f.ID,
		FormVersion: v.Version,
		Values:      values,
		IP:          ip,
		UserAgent:   userAgent,
	}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, err
	}
	s.logger.Info("submission stored", zap.String("form_id", f.ID), zap.String("id", sub.ID))

	bg := context.WithoutCancel(ctx)
	s.async(func() { s.afterSubmit(bg, f, tree, &sub) })
	return &sub, nil
}

func (s *Service) afterSubmit(ctx context.Context, f *models.FormModel, tree []*layout.Node, sub *models.SubmissionModel) {
	if s.tracker != nil {
		s.tracker.Track(ctx, f.ID, analytics.MetricSubmissions)
	}
	if s.hooks != nil {
		s.hooks.Dispatch(ctx, f.ID, EventCreated, toResponse(sub))
	}
	to := f.NotifyEmails()
	if s.notifier == nil || !s.notifier.Enabled() || len(to) == 0 {
		return
	}
	data := mail.SubmissionNotifyData{
		FormTitle:   f.Title,
		SubmittedAt: sub.CreatedAt,
		Rows:        notifyRows(tree, sub.Values),
	}
	if s.adminURL != "" {
		data.AdminURL = s.adminURL + "/forms/" + f.ID + "/submissions"
	}
	if err := s.notifier.SendSubmissionNotify(ctx, to, data); err != nil {
		s.logger.Warn("submission notify failed", zap.String("form_id", f.ID), zap.Error(err))
	}
}

func (s *Service) resolve(ctx context.Context, token string) (*models.FormModel, *models.FormVersionModel, []*layout.Node, error) {
	claims, err := s.signer.ParseForm(token)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := s.form(ctx, claims.FormID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !f.IsActive {
		return nil, nil, nil, ErrFormClosed
	}
	var v models.FormVersionModel
	err = s.db.WithContext(ctx).Where("form_id = ? AND version = ?", f.ID, claims.Version).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil, ErrFormNotFound
	}
	if err != nil {
		return nil, nil, nil, err
	}
	tree, err := layout.DecodeForest(v.Snapshot)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decode snapshot of %s v%d: %w", f.ID, v.Version, err)
	}
	return f, &v, tree, nil
}

func (s *Service) form(ctx context.Context, id string) (*models.FormModel, error) {
	var f models.FormModel
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Service) List(ctx context.Context, formID string, q pagination.Query) ([]models.SubmissionModel, response.Pagination, error) {
	var items []models.SubmissionModel
	tx := s.db.WithContext(ctx).Model(&models.SubmissionModel{}).Where("form_id = ?", formID).Order("created_at DESC")
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.SubmissionModel, error) {
	var sub models.SubmissionModel
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Delete removes a submission. It reports false when there was none.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	sub, err := s.GetByID(ctx, id)
	if err != nil || sub == nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.SubmissionModel{}, "id = ?", id).Error; err != nil {
		return false, err
	}
	if s.hooks != nil {
		bg := context.WithoutCancel(ctx)
		s.async(func() { s.hooks.Dispatch(bg, sub.FormID, EventDeleted, map[string]interface{}{"id": id}) })
	}
	return true, nil
}

// ExportCSV renders every submission of a form, oldest first. Columns follow
// the latest published layout.
func (s *Service) ExportCSV(ctx context.Context, formID string) ([]byte, string, error) {
	body, name, _, err := s.exportCSV(ctx, formID)
	return body, name, err
}

func (s *Service) exportCSV(ctx context.Context, formID string) ([]byte, string, int, error) {
	f, err := s.form(ctx, formID)
	if err != nil {
		return nil, "", 0, err
	}
	columns, err := s.latestColumns(ctx, formID)
	if err != nil {
		return nil, "", 0, err
	}
	var items []models.SubmissionModel
	if err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, "", 0, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, columns, items); err != nil {
		return nil, "", 0, err
	}
	name := fmt.Sprintf("%s-submissions-%s.csv", slugify(f.Title, f.ID), s.now().UTC().Format("20060102-150405"))
	return buf.Bytes(), name, len(items), nil
}

// Archive stores the CSV export through the configured uploader.
func (s *Service) Archive(ctx context.Context, formID string) (*ExportResult, error) {
	if s.uploader == nil {
		return nil, ErrExportDisabled
	}
	body, name, rows, err := s.exportCSV(ctx, formID)
	if err != nil {
		return nil, err
	}
	key := "forms/" + formID + "/" + name
	url, err := s.uploader.Upload(ctx, key, body, "text/csv; charset=utf-8")
	if err != nil {
		return nil, err
	}
	s.logger.Info("export uploaded", zap.String("form_id", formID), zap.String("key", key), zap.Int("rows", rows))
	return &ExportResult{Key: key, URL: url, Rows: rows, Exported: s.now()}, nil
}

func (s *Service) latestColumns(ctx context.Context, formID string) ([]string, error) {
	var v models.FormVersionModel
	err := s.db.WithContext(ctx).Where("form_id = ?", formID).Order("version DESC").First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tree, err := layout.DecodeForest(v.Snapshot)
	if err != nil {
		return nil, err
	}
	return Columns(tree), nil
}

// renderBlocks fills the preview of Markdown content blocks.
func renderBlocks(tree []*layout.Node) {
	layout.Walk(tree, func(n *layout.Node, _ int) bool {
		f := n.Field()
		if f == nil || !displayOnlyFields[f.FieldType] {
			return true
		}
		if f.Options == nil {
			f.Options = map[string]interface{}{}
		}
		f.Options["rendered"] = markdown.Render(stringOf(f.Options["body"]))
		return true
	})
}

func notifyRows(tree []*layout.Node, values map[string]interface{}) []mail.SubmissionRow {
	var rows []mail.SubmissionRow
	seen := map[string]bool{}
	for _, f := range layout.Fields(tree) {
		name := f.InputName()
		v, ok := values[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		rows = append(rows, mail.SubmissionRow{Label: labelOf(f), Value: cell(v)})
	}
	return rows
}

func slugify(title, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}
