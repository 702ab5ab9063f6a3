package stage

import (
	"github.com/qwtool/qw/internal/errors"
)

// Change holds the two sides of a differing field. Unset sides are nil.
type Change struct {
	Self  any `json:"self"`
	Other any `json:"other"`
}

// Diff maps field names to their differing values.
type Diff map[string]Change

// Diff compares r (labelled "self") against other (labelled "other") field by
// field using exact equality. Only differing fields are reported. Records of
// different categories cannot be compared.
func (r *Record) Diff(other *Record) (Diff, error) {
	if other == nil {
		return nil, errors.NewInvalidRequest("cannot diff against a nil record")
	}
	if r.stage != other.stage {
		return nil, errors.NewCategoryMismatch(string(r.stage), string(other.stage))
	}
	schema, err := r.schema()
	if err != nil {
		return nil, err
	}
	d := Diff{}
	for _, f := range schema.Fields {
		a, aok := r.values[f.Name]
		b, bok := other.values[f.Name]
		if aok == bok && a == b {
			continue
		}
		d[f.Name] = Change{Self: a, Other: b}
	}
	return d, nil
}

// Fields returns the differing field names in the declaration order of c.
func (d Diff) Fields(c Category) []string {
	schema := schemas[c]
	if schema == nil {
		return nil
	}
	var names []string
	for _, f := range schema.Fields {
		if _, ok := d[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}

// Without returns a copy of d minus the named fields.
func (d Diff) Without(names ...string) Diff {
	out := make(Diff, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}
