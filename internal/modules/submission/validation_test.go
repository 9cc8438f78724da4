package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
)

func fieldNode(name, typ string, rules ...string) *layout.Node {
	f := &models.FieldModel{FieldType: typ, Name: name, Label: name, ValidationRules: rules}
	f.ID = "id-" + name
	return &layout.Node{Type: layout.NodeField, Data: f, Children: []*layout.Node{}}
}

func elementNode(children ...*layout.Node) *layout.Node {
	e := &models.LayoutElementModel{ElementType: "row"}
	return &layout.Node{Type: layout.NodeElement, ElementType: "row", Data: e, Children: children}
}

func withLogic(n *layout.Node, logic map[string]interface{}) *layout.Node {
	n.Field().ConditionalLogic = logic
	return n
}

func TestCheckedAppliesRules(t *testing.T) {
	tree := []*layout.Node{
		elementNode(
			fieldNode("name", "text", "required", "max:5"),
			fieldNode("email", "email", "required", "email"),
		),
		fieldNode("age", "number", "numeric", "min:18"),
		fieldNode("site", "text", "url"),
		fieldNode("plan", "select", "in:free,pro"),
		fieldNode("intro", "content"),
	}

	values, errs := Checked(tree, map[string]interface{}{
		"name":  "Alexander",
		"email": "not-an-email",
		"age":   "12",
		"site":  "ftp://example.com",
		"plan":  "enterprise",
		"intro": "ignored",
		"other": "dropped",
	})

	assert.Equal(t, []string{"name may not be greater than 5"}, errs["name"])
	assert.Equal(t, []string{"email must be a valid email address"}, errs["email"])
	assert.Equal(t, []string{"age must be at least 18"}, errs["age"])
	assert.Equal(t, []string{"site must be a valid URL"}, errs["site"])
	assert.Equal(t, []string{"plan has an invalid choice"}, errs["plan"])
	assert.NotContains(t, values, "intro")
	assert.NotContains(t, values, "other")
	assert.Equal(t, "Alexander", values["name"])
}

func TestCheckedRequiredAndOptional(t *testing.T) {
	req := fieldNode("phone", "text")
	req.Field().IsRequired = true
	tree := []*layout.Node{req, fieldNode("note", "text", "min:3")}

	_, errs := Checked(tree, map[string]interface{}{"phone": "  "})
	assert.Equal(t, []string{"phone is required"}, errs["phone"])
	assert.NotContains(t, errs, "note")

	values, errs := Checked(tree, map[string]interface{}{"phone": "555"})
	assert.Empty(t, errs)
	assert.Equal(t, map[string]interface{}{"phone": "555"}, values)
}

func TestCheckedSkipsHiddenFields(t *testing.T) {
	company := withLogic(fieldNode("company", "text", "required"), map[string]interface{}{
		"action": "show",
		"match":  "all",
		"rules": []interface{}{
			map[string]interface{}{"field": "kind", "operator": "equals", "value": "business"},
		},
	})
	tree := []*layout.Node{fieldNode("kind", "radio"), company}

	values, errs := Checked(tree, map[string]interface{}{"kind": "personal", "company": "ACME"})
	assert.Empty(t, errs)
	assert.NotContains(t, values, "company")

	_, errs = Checked(tree, map[string]interface{}{"kind": "business"})
	assert.Equal(t, []string{"company is required"}, errs["company"])
}

func TestConditionMatchAnyAndHide(t *testing.T) {
	c := ParseCondition(map[string]interface{}{
		"action": "hide",
		"match":  "any",
		"rules": []interface{}{
			map[string]interface{}{"field": "age", "operator": "less_than", "value": 18},
			map[string]interface{}{"field": "tags", "operator": "contains", "value": "vip"},
		},
	})
	assert.False(t, c.Visible(map[string]interface{}{"age": "16"}))
	assert.False(t, c.Visible(map[string]interface{}{"age": 30.0, "tags": []interface{}{"vip"}}))
	assert.True(t, c.Visible(map[string]interface{}{"age": 30.0}))

	assert.Nil(t, ParseCondition(map[string]interface{}{"rules": []interface{}{}}))
	assert.True(t, ParseCondition(nil).Visible(nil))
}

func TestCheckedRepeaterRows(t *testing.T) {
	rep := fieldNode("guests", "repeater")
	rep.Field().Options = map[string]interface{}{"max_rows": 2.0}
	rep.Children = []*layout.Node{fieldNode("guest_email", "email", "required", "email")}

	values, errs := Checked([]*layout.Node{rep}, map[string]interface{}{
		"guests": []interface{}{
			map[string]interface{}{"guest_email": "a@example.com", "junk": 1},
			map[string]interface{}{"guest_email": ""},
			map[string]interface{}{"guest_email": "c@example.com"},
		},
	})
	assert.Equal(t, []string{"guests allows at most 2 rows"}, errs["guests"])
	assert.Equal(t, []string{"guest_email is required"}, errs["guests.1.guest_email"])
	rows := values["guests"].([]interface{})
	assert.Len(t, rows, 3)
	assert.Equal(t, map[string]interface{}{"guest_email": "a@example.com"}, rows[0])
}

func TestMinMaxCountsCheckedChoices(t *testing.T) {
	tree := []*layout.Node{fieldNode("toppings", "checkbox", "min:2")}
	_, errs := Checked(tree, map[string]interface{}{"toppings": []interface{}{"cheese"}})
	assert.Equal(t, []string{"toppings must be at least 2"}, errs["toppings"])
}

func TestConditionResolvesFieldBySlug(t *testing.T) {
	kind := fieldNode("kind", "radio")
	kind.Field().ElementID = "customer-kind"
	vat := withLogic(fieldNode("vat", "text", "required"), map[string]interface{}{
		"rules": []interface{}{
			map[string]interface{}{"field": "customer-kind", "operator": "equals", "value": "business"},
		},
	})
	tree := []*layout.Node{kind, vat}

	_, errs := Checked(tree, map[string]interface{}{"kind": "business"})
	assert.Equal(t, []string{"vat is required"}, errs["vat"])

	_, errs = Checked(tree, map[string]interface{}{"kind": "personal"})
	assert.Empty(t, errs)
}

func TestRepeaterRowConditionSeesTopLevelValues(t *testing.T) {
	rep := fieldNode("guests", "repeater")
	diet := withLogic(fieldNode("diet", "text", "required"), map[string]interface{}{
		"rules": []interface{}{
			map[string]interface{}{"field": "catering", "operator": "equals", "value": "yes"},
		},
	})
	rep.Children = []*layout.Node{diet}
	tree := []*layout.Node{fieldNode("catering", "radio"), rep}

	_, errs := Checked(tree, map[string]interface{}{
		"catering": "yes",
		"guests":   []interface{}{map[string]interface{}{}},
	})
	assert.Equal(t, []string{"diet is required"}, errs["guests.0.diet"])
}

func TestEmailRuleRejectsDisplayNames(t *testing.T) {
	tree := []*layout.Node{fieldNode("email", "email", "email")}
	for _, bad := range []string{"Bob <bob@example.com>", "bob@localhost"} {
		_, errs := Checked(tree, map[string]interface{}{"email": bad})
		assert.Equal(t, []string{"email must be a valid email address"}, errs["email"], bad)
	}
	_, errs := Checked(tree, map[string]interface{}{"email": "bob@example.com"})
	assert.Empty(t, errs)
}

func TestInRuleAcceptsChoicesWithSpaces(t *testing.T) {
	tree := []*layout.Node{fieldNode("size", "select", "in:extra large,small")}
	_, errs := Checked(tree, map[string]interface{}{"size": "extra large"})
	assert.Empty(t, errs)
	_, errs = Checked(tree, map[string]interface{}{"size": "large"})
	assert.Equal(t, []string{"size has an invalid choice"}, errs["size"])
}
