package form

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/pkg/signedurl"
	"github.com/mx-space/forms/internal/testutil"
)

type staticTree []*layout.Node

func (t staticTree) BuildFormTree(context.Context, string) ([]*layout.Node, error) { return t, nil }

type event struct {
	formID, name string
	data         interface{}
}

type chanDispatcher chan event

func (d chanDispatcher) Dispatch(_ context.Context, formID, name string, data interface{}) {
	d <- event{formID, name, data}
}

func sampleTree() staticTree {
	f := &models.FieldModel{FormID: "form-1", FieldType: "text", Name: "email"}
	f.ID = "f1"
	return staticTree{{Type: layout.NodeField, Data: f, Children: []*layout.Node{}}}
}

func newTestService(t *testing.T, opts ...Option) (*Service, sqlmock.Sqlmock, *signedurl.Signer) {
	t.Helper()
	db, mock := testutil.MockDB(t)
	signer, err := signedurl.New("test-secret")
	require.NoError(t, err)
	svc := NewService(db, sampleTree(), signer, append([]Option{WithPublicURL("https://forms.example.com/")}, opts...)...)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) }
	return svc, mock, signer
}

func expectForm(mock sqlmock.Sqlmock, id string, version int) {
	mock.ExpectQuery("SELECT \\* FROM `forms` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "settings", "is_active", "version"}).
			AddRow(id, "Contact", `{}`, true, version))
}

func TestPublishSnapshotsTreeAndSignsLink(t *testing.T) {
	hooks := make(chanDispatcher, 1)
	svc, mock, signer := newTestService(t, WithDispatcher(hooks))

	expectForm(mock, "form-1", 2)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `form_versions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `forms` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Publish(context.Background(), "form-1", &PublishDTO{ExpiresInHours: 48})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Version)
	assert.True(t, strings.HasPrefix(res.URL, "https://forms.example.com/f/"))
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, time.Date(2024, 2, 3, 9, 0, 0, 0, time.UTC), *res.ExpiresAt)

	claims, err := signer.ParseForm(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "form-1", claims.FormID)
	assert.Equal(t, 3, claims.Version)

	select {
	case ev := <-hooks:
		assert.Equal(t, EventPublished, ev.name)
		assert.Equal(t, "form-1", ev.formID)
	case <-time.After(time.Second):
		t.Fatal("publish event not dispatched")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishUnknownFormReturns404(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT \\* FROM `forms`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r := testutil.Router()
	NewHandler(svc).RegisterRoutes(r.Group(""), func(c *gin.Context) { c.Next() })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forms/missing/publish", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateRejectsInvalidNotifyEmails(t *testing.T) {
	svc, mock, _ := newTestService(t)
	r := testutil.Router()
	NewHandler(svc).RegisterRoutes(r.Group(""), func(c *gin.Context) { c.Next() })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/forms",
		strings.NewReader(`{"title":"Contact","settings":{"notify_emails":["ops@example.com","nope"]}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "notify_emails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForm(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `forms`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	f, err := svc.Create(context.Background(), &CreateFormDTO{Title: "  Contact  "})
	require.NoError(t, err)
	assert.Equal(t, "Contact", f.Title)
	assert.True(t, f.IsActive)
	assert.NotEmpty(t, f.ID)
	assert.NotNil(t, f.Settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeHandler(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectForm(mock, "form-1", 0)

	r := testutil.Router()
	NewHandler(svc).RegisterRoutes(r.Group(""), func(c *gin.Context) { c.Next() })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms/form-1/tree", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "field", body.Data[0]["type"])
}

func TestVersionNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT \\* FROM `form_versions` WHERE \\(form_id = \\? AND version = \\?\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Version(context.Background(), "form-1", 4)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestValidateSettingsNotifyEmails(t *testing.T) {
	assert.NoError(t, validateSettings(map[string]interface{}{"notify_emails": []interface{}{"ops@example.com"}}))
	err := validateSettings(map[string]interface{}{"notify_emails": []interface{}{"Ops <ops@example.com>"}})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}
