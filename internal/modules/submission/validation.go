package submission

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mx-space/forms/internal/layout"
	"github.com/mx-space/forms/internal/models"
	"github.com/mx-space/forms/internal/pkg/validate"
	"github.com/mx-space/forms/internal/property"
)

// Field types that carry no submitted value.
var displayOnlyFields = map[string]bool{
	"content": true,
}

// Condition is the visibility rule stored in a field's conditional logic.
type Condition struct {
	Action string          `json:"action"`
	Match  string          `json:"match"`
	Rules  []ConditionRule `json:"rules"`
}

type ConditionRule struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ParseCondition reads a conditional-logic blob. It returns nil when the blob
// holds no usable rule.
func ParseCondition(raw map[string]interface{}) *Condition {
	if len(raw) == 0 {
		return nil
	}
	c := &Condition{
		Action: strings.ToLower(stringOf(raw["action"])),
		Match:  strings.ToLower(stringOf(raw["match"])),
	}
	if c.Action != "hide" {
		c.Action = "show"
	}
	if c.Match != "any" {
		c.Match = "all"
	}
	list, _ := raw["rules"].([]interface{})
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		r := ConditionRule{
			Field:    stringOf(m["field"]),
			Operator: strings.ToLower(stringOf(m["operator"])),
			Value:    m["value"],
		}
		if r.Field == "" {
			continue
		}
		if r.Operator == "" {
			r.Operator = "equals"
		}
		c.Rules = append(c.Rules, r)
	}
	if len(c.Rules) == 0 {
		return nil
	}
	return c
}

// Visible evaluates the condition against submitted values keyed by input
// name.
func (c *Condition) Visible(values map[string]interface{}) bool {
	return c.visibleWith(func(field string) interface{} { return values[field] })
}

func (c *Condition) visibleWith(lookup func(field string) interface{}) bool {
	if c == nil {
		return true
	}
	matched := c.Match == "all"
	for _, r := range c.Rules {
		ok := r.matches(lookup(r.Field))
		if c.Match == "any" && ok {
			matched = true
			break
		}
		if c.Match == "all" && !ok {
			matched = false
			break
		}
	}
	if c.Action == "hide" {
		return !matched
	}
	return matched
}

func (r ConditionRule) matches(got interface{}) bool {
	switch r.Operator {
	case "equals", "eq", "=":
		return looseEqual(got, r.Value)
	case "not_equals", "neq", "!=":
		return !looseEqual(got, r.Value)
	case "contains":
		return contains(got, r.Value)
	case "not_contains":
		return !contains(got, r.Value)
	case "greater_than", "gt", ">":
		a, okA := numberOf(got)
		b, okB := numberOf(r.Value)
		return okA && okB && a > b
	case "less_than", "lt", "<":
		a, okA := numberOf(got)
		b, okB := numberOf(r.Value)
		return okA && okB && a < b
	case "is_empty", "empty":
		return isEmpty(got)
	case "is_not_empty", "not_empty":
		return !isEmpty(got)
	}
	return false
}

// Checked collects the values of visible input fields and the messages of
// every failed rule, keyed by input name. Repeater rows are checked per row
// under "<name>.<index>.<child>".
func Checked(tree []*layout.Node, values map[string]interface{}) (map[string]interface{}, map[string][]string) {
	c := &checker{
		clean: map[string]interface{}{},
		errs:  map[string][]string{},
		root:  values,
		slugs: slugIndex(tree),
	}
	c.walk(tree, values, c.clean, "")
	return c.clean, c.errs
}

type checker struct {
	clean map[string]interface{}
	errs  map[string][]string
	root  map[string]interface{}
	slugs map[string]string
}

// slugIndex maps each field's element_id to its input name.
func slugIndex(tree []*layout.Node) map[string]string {
	out := map[string]string{}
	layout.Walk(tree, func(n *layout.Node, _ int) bool {
		if f := n.Field(); f != nil && f.ElementID != "" {
			out[f.ElementID] = f.InputName()
		}
		return true
	})
	return out
}

// lookup resolves a condition reference by slug first, then by input name.
// Inside a repeater row the row is searched before the top-level values.
func (c *checker) lookup(scope map[string]interface{}) func(string) interface{} {
	return func(ref string) interface{} {
		name := ref
		if n, ok := c.slugs[ref]; ok {
			name = n
		}
		if v, ok := scope[name]; ok {
			return v
		}
		return c.root[name]
	}
}

func (c *checker) walk(nodes []*layout.Node, scope, out map[string]interface{}, prefix string) {
	for _, n := range nodes {
		if n.Type == layout.NodeElement {
			c.walk(n.Children, scope, out, prefix)
			continue
		}
		f := n.Field()
		if f == nil || displayOnlyFields[f.FieldType] {
			continue
		}
		if !ParseCondition(f.ConditionalLogic).visibleWith(c.lookup(scope)) {
			continue
		}
		name := f.InputName()
		value, present := scope[name]
		if f.FieldType == layout.FieldTypeRepeater {
			c.repeater(n, f, value, out, prefix+name)
			continue
		}
		for _, msg := range checkValue(f, value) {
			c.errs[prefix+name] = append(c.errs[prefix+name], msg)
		}
		if present {
			out[name] = value
		}
	}
}

func (c *checker) repeater(n *layout.Node, f *models.FieldModel, value interface{}, out map[string]interface{}, key string) {
	rows, _ := value.([]interface{})
	rules := property.DecodeRules(f.ValidationRules)
	if isRequired(f, rules) && len(rows) == 0 {
		c.errs[key] = append(c.errs[key], fmt.Sprintf("%s is required", labelOf(f)))
	}
	if min, ok := numberOf(f.Options["min_rows"]); ok && min > 0 && float64(len(rows)) < min {
		c.errs[key] = append(c.errs[key], fmt.Sprintf("%s needs at least %v rows", labelOf(f), min))
	}
	if max, ok := numberOf(f.Options["max_rows"]); ok && max > 0 && float64(len(rows)) > max {
		c.errs[key] = append(c.errs[key], fmt.Sprintf("%s allows at most %v rows", labelOf(f), max))
	}
	cleanRows := make([]interface{}, 0, len(rows))
	for i, raw := range rows {
		row, _ := raw.(map[string]interface{})
		if row == nil {
			row = map[string]interface{}{}
		}
		cleanRow := map[string]interface{}{}
		c.walk(n.Children, row, cleanRow, fmt.Sprintf("%s.%d.", key, i))
		cleanRows = append(cleanRows, cleanRow)
	}
	if value != nil {
		out[f.InputName()] = cleanRows
	}
}

// checkValue applies a field's rule list to one submitted value.
func checkValue(f *models.FieldModel, value interface{}) []string {
	rules := property.DecodeRules(f.ValidationRules)
	label := labelOf(f)
	if isEmpty(value) {
		if isRequired(f, rules) {
			return []string{fmt.Sprintf("%s is required", label)}
		}
		return nil
	}

	_, numeric := rules["numeric"]
	numeric = numeric || f.FieldType == "number"

	var msgs []string
	for _, key := range sortedKeys(rules) {
		arg := stringOf(rules[key])
		switch key {
		case "email":
			for _, v := range stringsOf(value) {
				if !validate.Email(v) {
					msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", label))
					break
				}
			}
		case "numeric":
			if !passes(value, "numeric") {
				msgs = append(msgs, fmt.Sprintf("%s must be a number", label))
			}
		case "url":
			if !passes(stringOf(value), "http_url") {
				msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", label))
			}
		case "min", "max":
			subject, tag, ok := sizeRule(key, arg, value, numeric)
			if !ok || passes(subject, tag) {
				continue
			}
			if key == "min" {
				msgs = append(msgs, fmt.Sprintf("%s must be at least %s", label, arg))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s may not be greater than %s", label, arg))
			}
		case "in":
			tag, ok := validate.OneOf(strings.Split(arg, ","))
			if !ok {
				continue
			}
			for _, v := range stringsOf(value) {
				if !passes(v, tag) {
					msgs = append(msgs, fmt.Sprintf("%s has an invalid choice", label))
					break
				}
			}
		}
	}
	return msgs
}

func passes(value interface{}, tag string) bool {
	return validate.Var(value, tag) == nil
}

// sizeRule pairs a min/max rule with the value it measures: the number itself
// when numeric, otherwise the string or list, whose length the validator
// counts. Length limits must be whole numbers.
func sizeRule(key, arg string, value interface{}, numeric bool) (interface{}, string, bool) {
	limit, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil {
		return nil, "", false
	}
	tag := key + "=" + strconv.FormatFloat(limit, 'f', -1, 64)
	if numeric {
		n, ok := numberOf(value)
		return n, tag, ok
	}
	switch t := value.(type) {
	case float64:
		return t, tag, true
	case string, []interface{}:
		if limit != float64(int64(limit)) {
			return nil, "", false
		}
		return t, tag, true
	}
	return nil, "", false
}

func labelOf(f *models.FieldModel) string {
	if f.Label != "" {
		return f.Label
	}
	return f.InputName()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

// isRequired honors both the column flag and a bare "required" rule.
func isRequired(f *models.FieldModel, rules map[string]interface{}) bool {
	_, ok := rules["required"]
	return f.IsRequired || ok
}

func numberOf(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func stringOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func stringsOf(v interface{}) []string {
	if list, ok := v.([]interface{}); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, stringOf(item))
		}
		return out
	}
	return []string{stringOf(v)}
}

func looseEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if list, ok := a.([]interface{}); ok {
		return contains(list, b)
	}
	return stringOf(a) == stringOf(b)
}

func contains(haystack, needle interface{}) bool {
	if list, ok := haystack.([]interface{}); ok {
		for _, item := range list {
			if stringOf(item) == stringOf(needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(stringOf(haystack), stringOf(needle))
}
