package schema

import "strings"

// Kind is the closed set of field renderings the form engine knows about.
// Every widget lookup goes through (*Schema).Kind so the dispatch rules live in
// one place.
type Kind string

const (
	KindText     Kind = "text"
	KindPassword Kind = "password"
	KindNumber   Kind = "number"
	KindSelect   Kind = "select"
	KindRadio    Kind = "radio"
	KindCheckbox Kind = "checkbox"
	KindArray    Kind = "array"
	KindObject   Kind = "object"
)

var kinds = map[string]Kind{
	string(KindText):     KindText,
	string(KindPassword): KindPassword,
	string(KindNumber):   KindNumber,
	string(KindSelect):   KindSelect,
	string(KindRadio):    KindRadio,
	string(KindCheckbox): KindCheckbox,
	string(KindArray):    KindArray,
	string(KindObject):   KindObject,
	"updown":             KindNumber,
	"textinput":          KindText,
}

// ParseKind maps a widget name (as used in ui:widget) to a Kind.
func ParseKind(name string) (Kind, bool) {
	kind, ok := kinds[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// Kind resolves how the node should be rendered. An explicit ui:widget wins for
// scalar nodes; otherwise the JSON type, enum and format decide.
func (s *Schema) Kind(ui UISchema) Kind {
	if s == nil {
		return KindText
	}
	switch s.Type {
	case TypeObject:
		return KindObject
	case TypeArray:
		return KindArray
	}
	if kind, ok := ParseKind(ui.Widget()); ok && kind != KindObject && kind != KindArray {
		return kind
	}
	switch s.Type {
	case TypeBoolean:
		return KindCheckbox
	case TypeNumber, TypeInteger:
		if len(s.Enum) > 0 {
			return KindSelect
		}
		return KindNumber
	}
	if len(s.Enum) > 0 {
		return KindSelect
	}
	if strings.EqualFold(s.Format, "password") {
		return KindPassword
	}
	return KindText
}
