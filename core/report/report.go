// Package report renders tracking exports and hands them over through the blob store.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/blob"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

const (
	KindProgress    = "progress"
	KindAttendance  = "attendance"
	KindEvaluations = "evaluations"

	timeLayout = time.RFC3339
)

var (
	ErrInvalidKind = errors.New("invalid report kind")
	ErrNotFound    = errors.New("report not found or already downloaded")

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	// Users finds the users named in exports.
	Users interface {
		Query(filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Export struct {
		ID       string `json:"id"`
		FileName string `json:"file_name"`
	}

	Service struct {
		tracking tracking.Service
		users    Users
		blobs    *blob.Store
	}
)

func NewService(trackSvc tracking.Service, users Users, blobs *blob.Store) *Service {
	return &Service{tracking: trackSvc, users: users, blobs: blobs}
}

// Export renders the `kind` records visible to `ident` as CSV and stores the file for a single download.
func (svc *Service) Export(ctx context.Context, ident identity.EffectiveIdentity, kind string, filter *tracking.QueryFilter) (Export, error) {
	var (
		rows    [][]string
		userIDs []string
		err     error
	)

	switch core.CleanString(kind, true /* lower */) {
	case KindProgress:
		var recs []tracking.Progress
		if recs, err = svc.tracking.QueryProgress(ctx, ident, filter); err != nil {
			return Export{}, errors.Wrap(err, "querying progress")
		}
		rows = append(rows, []string{"user_id", "name", "subject", "portion", "status", "note", "recorded_by", "recorded_at"})
		for _, r := range recs {
			rows = append(rows, []string{r.UserID, "", r.Subject, r.Portion, r.Status, r.Note, r.RecordedBy, r.RecordedAt.Format(timeLayout)})
			userIDs = append(userIDs, r.UserID)
		}
		kind = KindProgress

	case KindAttendance:
		var recs []tracking.Attendance
		if recs, err = svc.tracking.QueryAttendance(ctx, ident, filter); err != nil {
			return Export{}, errors.Wrap(err, "querying attendance")
		}
		rows = append(rows, []string{"user_id", "name", "group_id", "session_id", "status", "note", "held_at"})
		for _, r := range recs {
			rows = append(rows, []string{r.UserID, "", r.GroupID, r.SessionID, r.Status, r.Note, r.HeldAt.Format(timeLayout)})
			userIDs = append(userIDs, r.UserID)
		}
		kind = KindAttendance

	case KindEvaluations:
		var recs []tracking.Evaluation
		if recs, err = svc.tracking.QueryEvaluations(ctx, ident, filter); err != nil {
			return Export{}, errors.Wrap(err, "querying evaluations")
		}
		rows = append(rows, []string{"user_id", "name", "subject", "score", "comment", "evaluator_id", "evaluated_at"})
		for _, r := range recs {
			rows = append(rows, []string{r.UserID, "", r.Subject, strconv.Itoa(r.Score), r.Comment, r.EvaluatorID, r.EvaluatedAt.Format(timeLayout)})
			userIDs = append(userIDs, r.UserID)
		}
		kind = KindEvaluations

	default:
		return Export{}, ErrInvalidKind
	}

	if err = svc.fillNames(rows, userIDs); err != nil {
		return Export{}, err
	}
	data, err := render(rows)
	if err != nil {
		return Export{}, err
	}

	fileName := kind + "-" + NowFunc().UTC().Format("20060102-150405") + ".csv"
	return Export{ID: svc.blobs.Put(data, fileName), FileName: fileName}, nil
}

// Download consumes a stored export.
func (svc *Service) Download(id string) (blob.Entry, error) {
	entry, ok := svc.blobs.Get(core.CleanString(id))
	if !ok {
		return blob.Entry{}, ErrNotFound
	}
	return entry, nil
}

// fillNames sets the second column of every data row to the user's display name.
func (svc *Service) fillNames(rows [][]string, userIDs []string) error {
	userIDs = core.UniqueStrings(userIDs)
	if len(userIDs) == 0 {
		return nil
	}
	users, err := svc.users.Query(&user.QueryFilter{IDs: userIDs}, nil)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	for _, row := range rows[1:] {
		row[1] = names[row[0]]
	}
	return nil
}

func render(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, errors.Wrap(err, "writing csv")
	}
	return buf.Bytes(), nil
}
