package stage

import (
	"strings"

	"github.com/qwtool/qw/internal/errors"
)

// Category tags the kind of compliance artifact a record represents.
type Category string

const (
	Requirement        Category = "requirement"
	DesignOutput       Category = "design-output"
	DesignVerification Category = "design-verification"
	DesignValidation   Category = "design-validation"
)

// Kind is the value type a field holds.
type Kind int

const (
	KindString Kind = iota // single line
	KindText               // multi-line, newlines significant
	KindInt
)

// Common field names.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldInternalID   = "internal_id"
	FieldRemoteID     = "remote_id"
	FieldRequirement  = "requirement"
	FieldDesignOutput = "design_output"
	FieldResult       = "result"

	// stageKey is the discriminator key in the serialized form.
	stageKey = "stage"
)

// Field describes one declared field of a category.
type Field struct {
	Name     string
	Label    string // human-facing name, used for issue forms
	Kind     Kind
	Required bool
	// Local fields are assigned by the store and never harvested from an issue.
	Local bool
}

// Schema is the ordered field list of a category.
type Schema struct {
	Category Category
	Title    string // human-facing name of the category
	Fields   []Field
}

// Field returns the descriptor for name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Required returns the required field names in declaration order.
func (s *Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Local returns the names of fields assigned by the store.
func (s *Schema) Local() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Local {
			names = append(names, f.Name)
		}
	}
	return names
}

// commonHead is shared by every category and always comes first.
var commonHead = []Field{
	{Name: FieldTitle, Label: "Title", Kind: KindString, Required: true},
	{Name: FieldDescription, Label: "Description", Kind: KindText, Required: true},
	{Name: FieldInternalID, Label: "Internal ID", Kind: KindInt, Required: true, Local: true},
}

var remoteID = Field{Name: FieldRemoteID, Label: "Remote ID", Kind: KindInt, Local: true}

func fields(extra ...Field) []Field {
	out := make([]Field, 0, len(commonHead)+len(extra)+1)
	out = append(out, commonHead...)
	out = append(out, extra...)
	return append(out, remoteID)
}

// categoryOrder lists categories in traceability order.
var categoryOrder = []Category{Requirement, DesignOutput, DesignVerification, DesignValidation}

// schemas maps each category to its declared fields.
// Adding a category means adding an entry here.
var schemas = map[Category]*Schema{
	Requirement: {
		Category: Requirement,
		Title:    "Requirement",
		Fields:   fields(),
	},
	DesignOutput: {
		Category: DesignOutput,
		Title:    "Design Output",
		Fields: fields(
			Field{Name: FieldRequirement, Label: "Requirement", Kind: KindInt, Required: true},
		),
	},
	DesignVerification: {
		Category: DesignVerification,
		Title:    "Design Verification",
		Fields: fields(
			Field{Name: FieldDesignOutput, Label: "Design Output", Kind: KindInt, Required: true},
			Field{Name: FieldResult, Label: "Result", Kind: KindText},
		),
	},
	DesignValidation: {
		Category: DesignValidation,
		Title:    "Design Validation",
		Fields: fields(
			Field{Name: FieldRequirement, Label: "Requirement", Kind: KindInt, Required: true},
			Field{Name: FieldResult, Label: "Result", Kind: KindText},
		),
	},
}

// Categories returns all known categories in traceability order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// SchemaFor returns the schema of c, or nil if c is unknown.
func SchemaFor(c Category) *Schema {
	return schemas[c]
}

// ParseCategory maps a user- or wire-supplied name to a Category.
// Matching is case-insensitive and accepts underscores for dashes.
func ParseCategory(s string) (Category, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	c := Category(norm)
	if _, ok := schemas[c]; !ok {
		return "", errors.NewInvalidRequest("unknown stage: " + s)
	}
	return c, nil
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}
