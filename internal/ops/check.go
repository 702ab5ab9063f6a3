package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/qwtool/qw/internal/db"
	"github.com/qwtool/qw/internal/errors"
	"github.com/qwtool/qw/internal/logging"
	"github.com/qwtool/qw/internal/remote"
	"github.com/qwtool/qw/internal/stage"
)

// maxRemoteFetches bounds concurrent issue requests during a check.
const maxRemoteFetches = 4

// Problem codes reported by Check besides the error codes.
const (
	ProblemOutOfSync = "OUT_OF_SYNC"
)

// CheckInput contains parameters for the Check operation.
type CheckInput struct {
	Stage string // optional filter
	// Remote compares linked records with their issues.
	Remote bool
}

// CheckProblem describes one record that failed a check.
type CheckProblem struct {
	Record  string     `json:"record"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Changes stage.Diff `json:"changes,omitempty"`
}

// CheckOutput contains the result of the Check operation.
type CheckOutput struct {
	Checked  int            `json:"checked"`
	OK       bool           `json:"ok"`
	Problems []CheckProblem `json:"problems"`
}

// Check validates every stored record and, when asked, compares linked
// records with the issues they were harvested from. Problems are reported,
// not returned as errors; only failures to run the check are errors.
func Check(ctx context.Context, database *sql.DB, svc remote.GitService, input CheckInput) (*CheckOutput, error) {
	var filter db.ListFilter
	if strings.TrimSpace(input.Stage) != "" {
		c, err := stage.ParseCategory(input.Stage)
		if err != nil {
			return nil, err
		}
		filter.Stage = &c
	}
	if input.Remote && svc == nil {
		return nil, errors.NewNotInitialized("no issue service configured. Please run `qw init`")
	}

	rows, err := db.List(ctx, database, filter)
	if err != nil {
		return nil, err
	}

	// One slot per row keeps the report in storage order.
	found := make([][]CheckProblem, len(rows))
	for i, row := range rows {
		if err := row.Record.Validate(); err != nil {
			found[i] = append(found[i], problemFrom(row.Record, err))
		}
	}

	if input.Remote {
		logger := logging.FromContext(ctx)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxRemoteFetches)
		for i, row := range rows {
			if _, linked := row.Record.RemoteID(); !linked {
				continue
			}
			g.Go(func() error {
				p, err := checkRemote(gctx, svc, row.Record)
				if err != nil {
					return err
				}
				if p != nil {
					logger.Debug("record out of sync", slog.String("record", p.Record), slog.String("code", p.Code))
					found[i] = append(found[i], *p)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	problems := []CheckProblem{}
	for _, ps := range found {
		problems = append(problems, ps...)
	}
	return &CheckOutput{
		Checked:  len(rows),
		OK:       len(problems) == 0,
		Problems: problems,
	}, nil
}

// checkRemote compares r with its issue. A missing or unreadable issue is a
// problem with the record; a failing service aborts the check.
func checkRemote(ctx context.Context, svc remote.GitService, r *stage.Record) (*CheckProblem, error) {
	theirs, err := fetchRemote(ctx, svc, r)
	switch {
	case errors.Is(err, errors.ErrRemoteFailed), errors.Is(err, errors.ErrInternal):
		return nil, err
	case err != nil:
		p := problemFrom(r, err)
		return &p, nil
	}

	changes, err := r.Diff(theirs)
	if err != nil {
		p := problemFrom(r, err)
		return &p, nil
	}
	changes = changes.Without(r.Schema().Local()...)
	if len(changes) == 0 {
		return nil, nil
	}
	num, _ := r.RemoteID()
	return &CheckProblem{
		Record:  r.Label(),
		Code:    ProblemOutOfSync,
		Message: fmt.Sprintf("differs from issue #%d in %s", num, strings.Join(changes.Fields(r.Stage()), ", ")),
		Changes: changes,
	}, nil
}

func problemFrom(r *stage.Record, err error) CheckProblem {
	code, msg := describe(err)
	return CheckProblem{Record: r.Label(), Code: code, Message: msg}
}

// describe splits err into a code and message for reports.
func describe(err error) (code, msg string) {
	if qe, ok := errors.As(err); ok {
		return string(qe.Code), qe.Message
	}
	return string(errors.ErrInternal), err.Error()
}
