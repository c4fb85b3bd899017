package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

var requiredPropertyPattern = regexp.MustCompile(`^(?:must have )?required property '([^']+)'$`)

// Humanize rewrites generic validator output into text fit for an operator.
// "required property 'X'" becomes "Please enter a value for <label>", where
// label is the field title when known and the humanised key otherwise. Other
// messages are trimmed and passed through.
func Humanize(label, message string) string {
	trimmed := strings.TrimSpace(message)
	match := requiredPropertyPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return trimmed
	}
	name := strings.TrimSpace(label)
	if name == "" {
		name = schema.Humanize(match[1])
	}
	return "Please enter a value for " + name
}

// Live merges Validate and Check into the dotted path -> messages map the form
// renderer shows inline. Required problems reported by both passes collapse
// into the Validate message; every message goes through Humanize.
func Live(data map[string]any, s *schema.Schema) map[string][]string {
	out := make(map[string][]string)
	for path, message := range Validate(data, s).Flatten() {
		out[path] = append(out[path], message)
	}
	for _, issue := range Check(data, s) {
		if issue.Rule == RuleRequired && len(out[issue.Path]) > 0 {
			continue
		}
		out[issue.Path] = appendUnique(out[issue.Path], Humanize(LabelAt(s, issue.Path), issue.Message))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Summary renders Live errors as a flat list ("Host: Host is required"),
// sorted by path. Pages use it for transient notifications.
func Summary(errs map[string][]string) []string {
	paths := make([]string, 0, len(errs))
	for path := range errs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var out []string
	for _, path := range paths {
		out = append(out, errs[path]...)
	}
	return out
}

// LabelAt resolves the display label of a dotted path inside s.
func LabelAt(s *schema.Schema, path string) string {
	segments := strings.Split(path, ".")
	node := s
	for idx, segment := range segments {
		if node == nil {
			return ""
		}
		if node.Type == schema.TypeArray {
			node = node.Items
			continue
		}
		if idx == len(segments)-1 {
			return node.Label(segment)
		}
		node = node.Property(segment)
	}
	if node != nil {
		return strings.TrimSpace(node.Title)
	}
	return ""
}

// FieldPath converts a JSON pointer such as "#/properties/tunnel/properties/host"
// or "/tunnel/host" into the dotted path used by form errors.
func FieldPath(pointer string) string {
	trimmed := strings.TrimSpace(pointer)
	trimmed = strings.TrimPrefix(trimmed, "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "/") {
		return trimmed
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := unescapePointer(parts[idx])
		switch segment {
		case "properties":
			if idx+1 < len(parts) {
				out = append(out, unescapePointer(parts[idx+1]))
				idx++
			}
		case "items", "":
		default:
			out = append(out, segment)
		}
	}
	return strings.Join(out, ".")
}

func unescapePointer(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func appendUnique(messages []string, message string) []string {
	for _, existing := range messages {
		if existing == message {
			return messages
		}
	}
	return append(messages, message)
}
