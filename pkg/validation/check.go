package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-syncconsole/pkg/schema"
)

// Rule identifiers reported by Check.
const (
	RuleRequired  = "required"
	RuleType      = "type"
	RuleEnum      = "enum"
	RuleFormat    = "format"
	RuleMinimum   = "minimum"
	RuleMaximum   = "maximum"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
)

// Issue is a single structural problem found by Check. Path uses dotted
// notation with numeric segments for array elements ("streams.0.name").
type Issue struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Check runs the structural checks a JSON Schema validator performs on every
// keystroke: required keys (after defaults are applied), JSON types, enum
// membership, formats, numeric ranges, string lengths and patterns. Empty
// strings are skipped; Validate owns the "missing value" policy for them.
func Check(data map[string]any, s *schema.Schema) []Issue {
	var issues []Issue
	checkObject("", data, s, &issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})
	return issues
}

func checkObject(prefix string, data map[string]any, s *schema.Schema, issues *[]Issue) {
	if s == nil {
		return
	}
	for _, key := range s.OrderedKeys() {
		prop := s.Properties[key]
		path := joinPath(prefix, key)
		value, present := data[key]
		if !present && prop.HasDefault() {
			value, present = prop.Default, true
		}
		if !present || value == nil {
			if s.IsRequired(key) {
				*issues = append(*issues, Issue{
					Path:    path,
					Rule:    RuleRequired,
					Message: fmt.Sprintf("required property '%s'", key),
				})
			}
			continue
		}
		checkValue(path, value, prop, issues)
	}
}

func checkValue(path string, value any, s *schema.Schema, issues *[]Issue) {
	if s == nil || value == nil {
		return
	}
	if str, ok := value.(string); ok && str == "" {
		return
	}
	add := func(rule, message string) {
		*issues = append(*issues, Issue{Path: path, Rule: rule, Message: message})
	}

	switch s.Type {
	case schema.TypeString:
		str, ok := value.(string)
		if !ok {
			add(RuleType, "must be string")
			return
		}
		length := len([]rune(str))
		if s.MinLength != nil && length < *s.MinLength {
			add(RuleMinLength, fmt.Sprintf("must NOT have fewer than %d characters", *s.MinLength))
		}
		if s.MaxLength != nil && length > *s.MaxLength {
			add(RuleMaxLength, fmt.Sprintf("must NOT have more than %d characters", *s.MaxLength))
		}
		if s.Pattern != "" {
			if re, err := compilePattern(s.Pattern); err == nil && !re.MatchString(str) {
				add(RulePattern, fmt.Sprintf("must match pattern \"%s\"", s.Pattern))
			}
		}
		if format := strings.ToLower(strings.TrimSpace(s.Format)); format != "" && !checkFormat(format, str) {
			add(RuleFormat, fmt.Sprintf("must be a valid %s", format))
		}
	case schema.TypeNumber, schema.TypeInteger:
		number, ok := toFloat(value)
		if !ok {
			add(RuleType, "must be "+string(s.Type))
			return
		}
		if s.Type == schema.TypeInteger && number != math.Trunc(number) {
			add(RuleType, "must be integer")
			return
		}
		if s.Minimum != nil && number < *s.Minimum {
			add(RuleMinimum, "must be >= "+formatNumber(*s.Minimum))
		}
		if s.Maximum != nil && number > *s.Maximum {
			add(RuleMaximum, "must be <= "+formatNumber(*s.Maximum))
		}
	case schema.TypeBoolean:
		if _, ok := value.(bool); !ok {
			add(RuleType, "must be boolean")
			return
		}
	case schema.TypeObject:
		nested, ok := value.(map[string]any)
		if !ok {
			add(RuleType, "must be object")
			return
		}
		checkObject(path, nested, s, issues)
		return
	case schema.TypeArray:
		items, ok := value.([]any)
		if !ok {
			add(RuleType, "must be array")
			return
		}
		for idx, item := range items {
			checkValue(joinPath(path, strconv.Itoa(idx)), item, s.Items, issues)
		}
		return
	}

	if len(s.Enum) > 0 && !inEnum(value, s.Enum) {
		allowed := make([]string, 0, len(s.Enum))
		for _, candidate := range s.Enum {
			allowed = append(allowed, fmt.Sprint(candidate))
		}
		add(RuleEnum, "must be one of: "+strings.Join(allowed, ", "))
	}
}

var patternCache sync.Map

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

var hostnamePattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

func checkFormat(format, value string) bool {
	switch format {
	case "email":
		addr, err := mail.ParseAddress(value)
		return err == nil && addr.Address == value
	case "uri", "url":
		parsed, err := url.Parse(value)
		return err == nil && parsed.Scheme != "" && (parsed.Host != "" || parsed.Opaque != "")
	case "hostname":
		return len(value) <= 253 && hostnamePattern.MatchString(value)
	case "ipv4":
		ip := net.ParseIP(value)
		return ip != nil && ip.To4() != nil && strings.Count(value, ".") == 3
	case "ipv6":
		ip := net.ParseIP(value)
		return ip != nil && strings.Contains(value, ":")
	case "port":
		port, err := strconv.Atoi(value)
		return err == nil && port > 0 && port <= 65535
	default:
		return true
	}
}

func inEnum(value any, enum []any) bool {
	for _, candidate := range enum {
		if sameValue(value, candidate) {
			return true
		}
	}
	return false
}

func sameValue(a, b any) bool {
	fa, aNumeric := toFloat(a)
	fb, bNumeric := toFloat(b)
	if aNumeric && bNumeric {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, !math.IsNaN(typed) && !math.IsInf(typed, 0)
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
