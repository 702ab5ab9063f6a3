package stage

import (
	"fmt"
	"maps"
	"unicode/utf8"

	"github.com/qwtool/qw/internal/errors"
)

// Record is one compliance artifact: a category plus values for its declared fields.
// A field is either unset or holds a string (KindString, KindText) or an int (KindInt).
// The category is fixed at construction.
type Record struct {
	stage  Category
	values map[string]any
}

// New creates an empty record of category c.
func New(c Category) (*Record, error) {
	if _, ok := schemas[c]; !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown stage: %q", string(c)))
	}
	return &Record{stage: c, values: make(map[string]any)}, nil
}

// NewRequirement creates an empty requirement.
func NewRequirement() *Record {
	return &Record{stage: Requirement, values: make(map[string]any)}
}

// Stage returns the record's category.
func (r *Record) Stage() Category {
	return r.stage
}

// Schema returns the schema of the record's category. It is nil for a zero
// Record; records must be created with New or NewRequirement.
func (r *Record) Schema() *Schema {
	return schemas[r.stage]
}

// schema is Schema for operations that cannot run without one.
func (r *Record) schema() (*Schema, error) {
	s := r.Schema()
	if s == nil {
		return nil, errors.NewInvalidRequest("record has no stage; create it with stage.New")
	}
	return s, nil
}

// Set assigns a field. A nil value unsets it.
// Unknown fields, values of the wrong kind and strings that are not valid
// UTF-8 are rejected.
func (r *Record) Set(name string, v any) error {
	schema, err := r.schema()
	if err != nil {
		return err
	}
	f, ok := schema.Field(name)
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("%s has no field %q", r.stage, name))
	}
	if v == nil {
		r.Unset(name)
		return nil
	}
	switch f.Kind {
	case KindString, KindText:
		s, ok := v.(string)
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("field %q must be a string, got %T", name, v))
		}
		if !utf8.ValidString(s) {
			return errors.NewInvalidRequest(fmt.Sprintf("field %q is not valid UTF-8", name))
		}
		r.values[name] = s
	case KindInt:
		switch n := v.(type) {
		case int:
			r.values[name] = n
		case int64:
			r.values[name] = int(n)
		default:
			return errors.NewInvalidRequest(fmt.Sprintf("field %q must be an integer, got %T", name, v))
		}
	}
	return nil
}

// SetString assigns a string or text field.
func (r *Record) SetString(name, v string) error {
	return r.Set(name, v)
}

// SetInt assigns an int field.
func (r *Record) SetInt(name string, v int) error {
	return r.Set(name, v)
}

// Unset clears a field.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Get returns the raw value of a field and whether it is set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// String returns a string field, or "" when unset.
func (r *Record) String(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Int returns an int field and whether it is set.
func (r *Record) Int(name string) (int, bool) {
	n, ok := r.values[name].(int)
	return n, ok
}

func (r *Record) Title() string       { return r.String(FieldTitle) }
func (r *Record) Description() string { return r.String(FieldDescription) }

// InternalID returns the local identifier and whether it has been assigned.
func (r *Record) InternalID() (int, bool) { return r.Int(FieldInternalID) }

// RemoteID returns the linked issue number and whether the record is linked.
func (r *Record) RemoteID() (int, bool) { return r.Int(FieldRemoteID) }

// Validate checks required fields in declaration order and reports the first
// one that is unset or empty.
func (r *Record) Validate() error {
	return r.validate(true)
}

// ValidateContent is Validate restricted to the fields a user supplies.
// Local fields such as internal_id are skipped, so a record can be checked
// before the store assigns them.
func (r *Record) ValidateContent() error {
	return r.validate(false)
}

func (r *Record) validate(local bool) error {
	schema, err := r.schema()
	if err != nil {
		return err
	}
	for _, f := range schema.Fields {
		if !f.Required || (f.Local && !local) {
			continue
		}
		v, ok := r.values[f.Name]
		if !ok {
			return errors.NewValidationFailed(string(r.stage), f.Name)
		}
		if s, isString := v.(string); isString && s == "" {
			return errors.NewValidationFailed(string(r.stage), f.Name)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	return &Record{stage: r.stage, values: maps.Clone(r.values)}
}

// Equal reports whether both records have the same category and field values.
func (r *Record) Equal(other *Record) bool {
	if other == nil {
		return false
	}
	return r.stage == other.stage && maps.Equal(r.values, other.values)
}

// Label returns a short identifier such as "requirement/3" for messages.
func (r *Record) Label() string {
	if id, ok := r.InternalID(); ok {
		return fmt.Sprintf("%s/%d", r.stage, id)
	}
	return string(r.stage) + "/new"
}
