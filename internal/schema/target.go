package schema

import (
	"strings"

	"github.com/mx-space/forms/internal/pkg/nestedpath"
)

// TargetKind discriminates where a property value is stored.
type TargetKind int

const (
	// TargetUnknown is an unrecognised target; it reads and writes like TargetFlat.
	TargetUnknown TargetKind = iota
	TargetColumn
	TargetFlat
	TargetNested
	TargetValidationRules
	TargetConditionalLogic
)

func (k TargetKind) String() string {
	switch k {
	case TargetColumn:
		return "column"
	case TargetFlat:
		return "flat"
	case TargetNested:
		return "nested"
	case TargetValidationRules:
		return "validation_rules"
	case TargetConditionalLogic:
		return "conditional_logic"
	default:
		return "unknown"
	}
}

// Extension blob namespaces. Fields keep theirs in "options", layout elements
// in "settings"; both address the entity's single JSON blob.
const (
	NamespaceOptions  = "options"
	NamespaceSettings = "settings"
)

// Target is a storage location resolved once from the raw catalog string.
type Target struct {
	Kind      TargetKind
	Namespace string
	Path      []string
	Raw       string
}

// ParseTarget resolves a raw target such as "column", "options",
// "settings.width.xs" or "validation_rules".
func ParseTarget(raw string) Target {
	trimmed := strings.TrimSpace(raw)
	t := Target{Raw: trimmed}
	switch trimmed {
	case "column":
		t.Kind = TargetColumn
		return t
	case "validation_rules":
		t.Kind = TargetValidationRules
		return t
	case "conditional_logic":
		t.Kind = TargetConditionalLogic
		return t
	case NamespaceOptions, NamespaceSettings:
		t.Kind = TargetFlat
		t.Namespace = trimmed
		return t
	}
	for _, ns := range []string{NamespaceOptions, NamespaceSettings} {
		prefix := ns + "."
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		path := nestedpath.Split(strings.TrimPrefix(trimmed, prefix))
		if len(path) == 0 {
			t.Kind = TargetFlat
			t.Namespace = ns
			return t
		}
		t.Kind = TargetNested
		t.Namespace = ns
		t.Path = path
		return t
	}
	t.Kind = TargetUnknown
	return t
}

// BlobPath returns the segments addressed inside the extension blob for key.
// Flat and unknown targets use the key itself as a single segment.
func (t Target) BlobPath(key string) []string {
	if t.Kind == TargetNested {
		return t.Path
	}
	return []string{key}
}

// InBlob reports whether values for this target live in the extension blob.
func (t Target) InBlob() bool {
	switch t.Kind {
	case TargetFlat, TargetNested, TargetUnknown:
		return true
	}
	return false
}
