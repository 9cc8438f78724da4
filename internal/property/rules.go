package property

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EncodeRules turns the editor's option map into the stored rule list.
// true becomes a bare key, false and empty values are dropped and anything
// else becomes "key:value". Keys listed in order come first, the rest follow
// sorted.
func EncodeRules(opts map[string]interface{}, order ...string) []string {
	keys := make([]string, 0, len(opts))
	seen := make(map[string]bool, len(opts))
	for _, k := range order {
		if _, ok := opts[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(opts))
	for k := range opts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		switch v := opts[k].(type) {
		case nil:
		case bool:
			if v {
				out = append(out, k)
			}
		default:
			s := ruleValue(v)
			if s != "" {
				out = append(out, k+":"+s)
			}
		}
	}
	return out
}

// DecodeRules splits each rule on its first colon. A bare key decodes to the
// empty string, so a rule encoded from true does not come back as true.
func DecodeRules(rules []string) map[string]interface{} {
	out := make(map[string]interface{}, len(rules))
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key, value, _ := strings.Cut(r, ":")
		out[key] = value
	}
	return out
}

func ruleValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case []string:
		return strings.Join(t, ",")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := ruleValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

// toRuleList accepts the shapes a working set may carry for validation rules:
// a list (strings or JSON-decoded values) or the decoded option map.
func toRuleList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case map[string]interface{}:
		return EncodeRules(t)
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}
