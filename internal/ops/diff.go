package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/remote"
	"github.com/qwtool/qw/internal/stage"
)

// DiffInput contains parameters for the Diff operation. The stored record
// addressed by Stage and ID is compared against exactly one other side:
// another stored record, a serialized record, or its linked issue.
type DiffInput struct {
	Stage string
	ID    int

	OtherStage string
	OtherID    int
	OtherJSON  string
	Remote     bool
}

// DiffOutput contains the result of the Diff operation.
type DiffOutput struct {
	Self  string `json:"self"`
	Other string `json:"other"`
	// Fields lists the differing fields in declaration order.
	Fields  []string   `json:"fields"`
	Changes stage.Diff `json:"changes"`
}

// Diff compares a stored record with another record of the same stage.
// svc is only needed when comparing against the linked issue.
func Diff(ctx context.Context, database *sql.DB, svc remote.GitService, input DiffInput) (*DiffOutput, error) {
	addr, err := ValidateAddress(input.Stage, input.ID)
	if err != nil {
		return nil, err
	}

	sources := 0
	for _, set := range []bool{input.OtherStage != "" || input.OtherID != 0, input.OtherJSON != "", input.Remote} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.NewInvalidRequest("specify exactly one of: other record, other JSON, remote")
	}

	row, err := getRow(ctx, database, addr)
	if err != nil {
		return nil, err
	}
	self := row.Record

	var (
		other      *stage.Record
		otherLabel string
		ignore     []string
	)
	switch {
	case input.OtherJSON != "":
		other, err = stage.FromJSON([]byte(input.OtherJSON))
		if err != nil {
			return nil, err
		}
		otherLabel = "json"
	case input.Remote:
		other, err = fetchRemote(ctx, svc, self)
		if err != nil {
			return nil, err
		}
		num, _ := self.RemoteID()
		otherLabel = fmt.Sprintf("issue #%d", num)
		// Local fields never come from an issue.
		ignore = self.Schema().Local()
	default:
		otherAddr, err := ValidateAddress(input.OtherStage, input.OtherID)
		if err != nil {
			return nil, err
		}
		otherRow, err := getRow(ctx, database, otherAddr)
		if err != nil {
			return nil, err
		}
		other = otherRow.Record
		otherLabel = otherAddr.String()
	}

	changes, err := self.Diff(other)
	if err != nil {
		return nil, err
	}
	changes = changes.Without(ignore...)

	fields := changes.Fields(self.Stage())
	if fields == nil {
		fields = []string{}
	}
	return &DiffOutput{
		Self:    addr.String(),
		Other:   otherLabel,
		Fields:  fields,
		Changes: changes,
	}, nil
}

// fetchRemote harvests the issue linked to r.
func fetchRemote(ctx context.Context, svc remote.GitService, r *stage.Record) (*stage.Record, error) {
	if svc == nil {
		return nil, errors.NewNotInitialized("no issue service configured. Please run `qw init`")
	}
	num, ok := r.RemoteID()
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s is not linked to an issue", r.Label()))
	}
	is, err := svc.GetIssue(ctx, num)
	if err != nil {
		return nil, err
	}
	return remote.Harvest(is)
}
