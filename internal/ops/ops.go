package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/stage"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Address identifies a stored record.
type Address struct {
	Stage      stage.Category
	InternalID int
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.Stage, a.InternalID)
}

// ValidateAddress validates addressing parameters and returns an Address.
func ValidateAddress(stageName string, internalID int) (Address, error) {
	if strings.TrimSpace(stageName) == "" {
		return Address{}, errors.NewInvalidRequest("stage is required")
	}
	c, err := stage.ParseCategory(stageName)
	if err != nil {
		return Address{}, err
	}
	if internalID <= 0 {
		return Address{}, errors.NewInvalidRequest("id must be a positive integer")
	}
	return Address{Stage: c, InternalID: internalID}, nil
}

// ParseAddress parses the "<stage>/<id>" form used on the command line.
func ParseAddress(s string) (Address, error) {
	name, id, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Address{}, errors.NewInvalidRequest(fmt.Sprintf("address %q must look like <stage>/<id>", s))
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return Address{}, errors.NewInvalidRequest(fmt.Sprintf("address %q: id is not a number", s))
	}
	return ValidateAddress(name, n)
}

// RecordView is the rendered form of a stored record.
type RecordView struct {
	UID        string         `json:"uid"`
	Stage      stage.Category `json:"stage"`
	InternalID int            `json:"internal_id"`
	Record     *stage.Record  `json:"record"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

func viewOf(row *db.Row) RecordView {
	id, _ := row.Record.InternalID()
	return RecordView{
		UID:        row.UID,
		Stage:      row.Record.Stage(),
		InternalID: id,
		Record:     row.Record,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func getRow(ctx context.Context, database *sql.DB, addr Address) (*db.Row, error) {
	return db.GetByInternalID(ctx, database, addr.Stage, addr.InternalID)
}

// applyFields sets every entry of fields on r. Local fields the store
// assigns are rejected.
func applyFields(r *stage.Record, fields map[string]any) error {
	for _, name := range sortedKeys(fields) {
		if name == stage.FieldInternalID {
			return errors.NewInvalidRequest("internal_id is assigned by qw and cannot be set")
		}
		v, err := coerce(r, name, fields[name])
		if err != nil {
			return err
		}
		if err := r.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// coerce converts loosely typed input (command-line strings, JSON numbers)
// to the kind the field declares. Anything it does not recognise is passed
// through for Set to reject.
func coerce(r *stage.Record, name string, v any) (any, error) {
	f, ok := r.Schema().Field(name)
	if !ok || f.Kind != stage.KindInt {
		return v, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("field %q must be an integer, got %v", name, n))
		}
		return int(n), nil
	case json.Number:
		i, err := strconv.Atoi(n.String())
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("field %q must be an integer, got %s", name, n))
		}
		return i, nil
	case string:
		i, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(n), "#"))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("field %q must be an integer, got %q", name, n))
		}
		return i, nil
	}
	return v, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
