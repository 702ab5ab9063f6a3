package stage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/qwtool/qw/internal/errors"
)

// ToJSON renders the record as a flat JSON object: set fields in declaration
// order, then the "stage" discriminator. Unset fields are omitted.
func (r *Record) ToJSON() ([]byte, error) {
	schema, err := r.schema()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := writeJSON(&buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		return writeJSON(&buf, v)
	}
	for _, f := range schema.Fields {
		v, ok := r.values[f.Name]
		if !ok {
			continue
		}
		if err := write(f.Name, v); err != nil {
			return nil, err
		}
	}
	if err := write(stageKey, string(r.stage)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSON encodes v without HTML escaping so stored text stays readable.
func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return errors.NewInternal(err)
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.ToJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	decoded, err := FromJSON(data)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// FromJSON reconstructs a record from its serialized form. The category comes
// from the "stage" key. Absent and null fields stay unset. The result is not
// validated.
func FromJSON(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.NewDecodeFailed(fmt.Sprintf("invalid json: %v", err))
	}
	if payload == nil {
		return nil, errors.NewDecodeFailed("expected a json object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewDecodeFailed("unexpected data after record")
	}

	raw, ok := payload[stageKey]
	if !ok {
		return nil, errors.NewDecodeFailed(`missing "stage"`)
	}
	name, ok := raw.(string)
	if !ok {
		return nil, errors.NewDecodeFailed(fmt.Sprintf(`"stage" must be a string, got %v`, raw))
	}
	c, err := ParseCategory(name)
	if err != nil {
		return nil, errors.NewDecodeFailed(fmt.Sprintf("unknown stage %q", name))
	}

	r := &Record{stage: c, values: make(map[string]any, len(payload))}
	schema := r.Schema()
	for _, key := range slices.Sorted(maps.Keys(payload)) {
		if key == stageKey {
			continue
		}
		f, ok := schema.Field(key)
		if !ok {
			return nil, errors.NewDecodeFailed(fmt.Sprintf("%s has no field %q", c, key))
		}
		v, err := decodeValue(f, payload[key])
		if err != nil {
			return nil, err
		}
		if v != nil {
			r.values[key] = v
		}
	}
	return r, nil
}

func decodeValue(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindString, KindText:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.NewDecodeFailed(fmt.Sprintf("field %q must be a string", f.Name))
		}
		return s, nil
	case KindInt:
		var text string
		switch v := raw.(type) {
		case json.Number:
			text = v.String()
		case string:
			text = strings.TrimSpace(v)
		default:
			return nil, errors.NewDecodeFailed(fmt.Sprintf("field %q must be an integer", f.Name))
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, errors.NewDecodeFailed(fmt.Sprintf("field %q: %q is not an integer", f.Name, text))
		}
		return n, nil
	}
	return nil, errors.NewDecodeFailed(fmt.Sprintf("field %q has unsupported kind", f.Name))
}
