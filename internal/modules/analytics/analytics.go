// Package analytics keeps per-form daily view and submission counters in redis.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/forms/internal/pkg/response"
)

type Metric string

const (
	MetricViews       Metric = "views"
	MetricSubmissions Metric = "submissions"

	counterTTL  = 400 * 24 * time.Hour
	defaultDays = 30
	maxDays     = 365
)

// Counters is the redis surface the service needs.
type Counters interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetInts(ctx context.Context, keys ...string) ([]int64, error)
}

// DayStat is one day of counters.
type DayStat struct {
	Date        string `json:"date"`
	Views       int64  `json:"views"`
	Submissions int64  `json:"submissions"`
}

// Report is the analytics payload for one form.
type Report struct {
	FormID         string    `json:"form_id"`
	Days           []DayStat `json:"days"`
	Views          int64     `json:"views"`
	Submissions    int64     `json:"submissions"`
	ConversionRate float64   `json:"conversion_rate"`
}

type Service struct {
	counters Counters
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("AnalyticsService")
		}
	}
}

func NewService(counters Counters, opts ...Option) *Service {
	s := &Service{counters: counters, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(formID string, metric Metric, day time.Time) string {
	return fmt.Sprintf("forms:analytics:%s:%s:%s", formID, metric, day.UTC().Format("2006-01-02"))
}

// Track bumps today's counter. Failures are logged, never returned.
func (s *Service) Track(ctx context.Context, formID string, metric Metric) {
	if s == nil || s.counters == nil {
		return
	}
	if _, err := s.counters.IncrWithTTL(ctx, key(formID, metric, s.now()), counterTTL); err != nil {
		s.logger.Warn("track failed", zap.String("form_id", formID), zap.String("metric", string(metric)), zap.Error(err))
	}
}

// Report returns the last days of counters, oldest first.
func (s *Service) Report(ctx context.Context, formID string, days int) (*Report, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}
	today := s.now().UTC()
	keys := make([]string, 0, days*2)
	dates := make([]time.Time, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i-days+1)
		dates[i] = d
		keys = append(keys, key(formID, MetricViews, d), key(formID, MetricSubmissions, d))
	}
	vals, err := s.counters.GetInts(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("read analytics: %w", err)
	}

	r := &Report{FormID: formID, Days: make([]DayStat, days)}
	for i, d := range dates {
		st := DayStat{Date: d.Format("2006-01-02"), Views: vals[i*2], Submissions: vals[i*2+1]}
		r.Days[i] = st
		r.Views += st.Views
		r.Submissions += st.Submissions
	}
	if r.Views > 0 {
		r.ConversionRate = math.Round(float64(r.Submissions)/float64(r.Views)*10000) / 10000
	}
	return r, nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/forms/:id/analytics", authMW, h.report)
}

func (h *Handler) report(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	r, err := h.svc.Report(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, r)
}
