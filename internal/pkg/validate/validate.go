// Package validate exposes gin's validator engine for values that do not
// arrive through a bound struct.
package validate

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var engine = func() *validator.Validate {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v
	}
	return validator.New()
}()

// Var checks one value against a validator tag such as "email" or "max=20".
func Var(value interface{}, tag string) error {
	return engine.Var(value, tag)
}

// Email reports whether s is a bare address. Display names are rejected.
func Email(s string) bool {
	return engine.Var(s, "email") == nil
}

// OneOf builds a oneof tag for choices that may contain spaces or pipes. It
// reports false when a choice cannot be written as a tag parameter.
func OneOf(choices []string) (string, bool) {
	quoted := make([]string, 0, len(choices))
	for _, c := range choices {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.Contains(c, "'") {
			return "", false
		}
		quoted = append(quoted, "'"+strings.ReplaceAll(c, "|", "0x7C")+"'")
	}
	if len(quoted) == 0 {
		return "", false
	}
	return "oneof=" + strings.Join(quoted, " "), true
}
