package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/property"
	"github.com/mx-space/forms/internal/schema"
)

func newMock(t *testing.T) (*Gorm, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGorm(gdb), mock
}

func TestSiblingSlugExists(t *testing.T) {
	g, mock := newMock(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `form_fields`").
		WithArgs("7", "email", "B").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `form_layout_elements`").
		WithArgs("7", "email", "B").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := g.SiblingSlugExists(context.Background(), schema.KindField, "7", "email", "B")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = g.SiblingSlugExists(context.Background(), schema.KindElement, "7", "email", "B")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = g.SiblingSlugExists(context.Background(), schema.Kind("form"), "7", "email", "B")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveField(t *testing.T) {
	g, mock := newMock(t)
	m := &models.FieldModel{FormID: "7", FieldType: "text", Label: "Email", Options: map[string]interface{}{"color": "red"}}
	m.ID = "f1"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `form_fields` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, g.Save(context.Background(), property.NewFieldEntity(m)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveElementFailure(t *testing.T) {
	g, mock := newMock(t)
	m := &models.LayoutElementModel{FormID: "7", ElementType: "row"}
	m.ID = "e1"

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `form_layout_elements` SET").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := g.Save(context.Background(), property.NewElementEntity(m))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFieldNotFound(t *testing.T) {
	g, mock := newMock(t)
	mock.ExpectQuery("SELECT \\* FROM `form_fields` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := g.FindField(context.Background(), "missing")
	assert.True(t, errors.Is(err, property.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRootFieldsScansRows(t *testing.T) {
	g, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"id", "form_id", "field_type", "order", "options", "validation_rules"}).
		AddRow("f1", "7", "text", 0, `{"mask":{"enabled":true}}`, `["required","max:255"]`).
		AddRow("f2", "7", "email", 1, nil, nil)
	mock.ExpectQuery("SELECT \\* FROM `form_fields` WHERE \\(form_id = \\? AND layout_element_id IS NULL AND parent_field_id IS NULL\\)").
		WithArgs("7").
		WillReturnRows(rows)

	fields, err := g.RootFields(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, map[string]interface{}{"enabled": true}, fields[0].Options["mask"])
	assert.Equal(t, models.StringArray{"required", "max:255"}, fields[0].ValidationRules)
	assert.Equal(t, 1, fields[1].Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextOrder(t *testing.T) {
	g, mock := newMock(t)
	parent := "P"
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(`order`\\), -1\\) FROM `form_fields`").
		WithArgs("7", "P").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(`order`\\), -1\\) FROM `form_layout_elements`").
		WithArgs("7", "P").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(5))

	next, err := g.NextOrder(context.Background(), "7", &parent, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReorderRollsBackOnMissingRow(t *testing.T) {
	g, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `form_fields` SET `order`=\\?").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `form_layout_elements` SET `order`=\\?").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := g.Reorder(context.Background(), "7", []OrderUpdate{
		{ID: "f1", Kind: schema.KindField, Order: 1},
		{ID: "e9", Kind: schema.KindElement, Order: 0},
	})
	assert.True(t, errors.Is(err, property.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNodesSoftDeletesBothKinds(t *testing.T) {
	g, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `form_fields` SET `deleted_at`=\\?").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE `form_layout_elements` SET `deleted_at`=\\?").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, g.DeleteNodes(context.Background(), []string{"f1", "f2"}, []string{"e1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
