package tracking

import (
	"context"
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
)

var (
	attendanceStatusTag  = "attendancestatus"
	attendanceStatusText = "status must be one of: present, absent, excused"

	progressStatusTag  = "progressstatus"
	progressStatusText = "status must be one of: memorized, revising, in_progress"

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		// CreateSession saves the session and its attendance atomically.
		CreateSession(ctx context.Context, sess Session, att []Attendance, exec ...core.DBExecutor) (Session, []Attendance, error)
		QueryAttendance(ctx context.Context, userIDs []string, filter *QueryFilter, exec ...core.DBExecutor) ([]Attendance, error)
		CreateProgress(ctx context.Context, prog Progress, exec ...core.DBExecutor) (Progress, error)
		QueryProgress(ctx context.Context, userIDs []string, filter *QueryFilter, exec ...core.DBExecutor) ([]Progress, error)
		CreateEvaluation(ctx context.Context, eval Evaluation, exec ...core.DBExecutor) (Evaluation, error)
		QueryEvaluations(ctx context.Context, userIDs []string, filter *QueryFilter, exec ...core.DBExecutor) ([]Evaluation, error)
		// QueryStats returns the stats of the users with at least one record.
		QueryStats(ctx context.Context, userIDs []string, filter *QueryFilter, exec ...core.DBExecutor) ([]Stats, error)
	}

	// Visibility scopes listings to the users the acting user may see.
	Visibility interface {
		VisibleUsers(ctx context.Context, requesterID string, cat visibility.Category) (visibility.UserSet, error)
	}

	// Groups reads the groups sessions are recorded for.
	Groups interface {
		Get(ctx context.Context, id string) (group.Group, error)
		Members(ctx context.Context, groupID string) ([]group.Member, error)
	}

	// Service records and lists tracking data on behalf of an identity.
	// Listings are restricted to the identity's visible users; writes record the principal as author.
	Service interface {
		RecordSession(ctx context.Context, ident identity.EffectiveIdentity, ns NewSession) (Session, []Attendance, error)
		QueryAttendance(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Attendance, error)
		RecordProgress(ctx context.Context, ident identity.EffectiveIdentity, np NewProgress) (Progress, error)
		QueryProgress(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Progress, error)
		RecordEvaluation(ctx context.Context, ident identity.EffectiveIdentity, ne NewEvaluation) (Evaluation, error)
		QueryEvaluations(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Evaluation, error)
		QueryStats(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Stats, error)
	}

	service struct {
		repo   Repository
		vis    Visibility
		groups Groups
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, vis Visibility, groups Groups) Service {
	return &service{repo: repo, vis: vis, groups: groups}
}

// InitValidators registers the tracking validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(attendanceStatusTag, core.OneOfValidation(AttendanceStatuses...))
	core.RegisterCustomTranslation(validate, translator, attendanceStatusTag, attendanceStatusText)

	_ = validate.RegisterValidation(progressStatusTag, core.OneOfValidation(ProgressStatuses...))
	core.RegisterCustomTranslation(validate, translator, progressStatusTag, progressStatusText)
}

// scope returns the visible users of `ident` for `cat`, restricted to the filter's users.
func (svc *service) scope(ctx context.Context, ident identity.EffectiveIdentity, cat visibility.Category, filter *QueryFilter) ([]string, error) {
	visible, err := svc.vis.VisibleUsers(ctx, ident.UserID, cat)
	if err != nil {
		return nil, errors.Wrap(err, "computing visible users")
	}
	if filter == nil {
		return visible.Slice(), nil
	}
	visible = visible.Restrict(filter.UserIDs...)
	if filter.GroupID == "" {
		return visible.Slice(), nil
	}

	// unknown groups yield nothing, whatever the category
	members, err := svc.groups.Members(ctx, filter.GroupID)
	if err != nil {
		if errors.Cause(err) == group.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "listing members")
	}
	// attendance rows carry their group; other records are narrowed to the group's current members
	if cat != visibility.CategoryAttendance {
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		visible = visible.Restrict(ids...)
	}
	return visible.Slice(), nil
}

// target returns the user a write is about, checking that the acting user can see them.
func (svc *service) target(ctx context.Context, ident identity.EffectiveIdentity, cat visibility.Category, userID string) (string, error) {
	if userID == "" {
		userID = ident.UserID
	}
	visible, err := svc.vis.VisibleUsers(ctx, ident.UserID, cat)
	if err != nil {
		return "", errors.Wrap(err, "computing visible users")
	}
	if !visible.Contains(userID) {
		return "", identity.ErrForbidden
	}
	return userID, nil
}

func (svc *service) RecordSession(ctx context.Context, ident identity.EffectiveIdentity, ns NewSession) (Session, []Attendance, error) {
	grp, err := svc.groups.Get(ctx, ns.GroupID)
	if err != nil {
		if errors.Cause(err) == group.ErrNotFound {
			return Session{}, nil, core.NewValidationError(err, core.FieldError{Field: "group_id", Error: err.Error()})
		}
		return Session{}, nil, errors.Wrap(err, "finding group")
	}

	members, err := svc.groups.Members(ctx, grp.ID)
	if err != nil {
		return Session{}, nil, errors.Wrap(err, "listing members")
	}
	roles := make(map[string]string, len(members))
	for _, m := range members {
		roles[m.UserID] = m.Role
	}

	// only admins & the group's leaders record its sessions
	if !ident.IsAdmin() && roles[ident.PrincipalID] != group.RoleLeader {
		return Session{}, nil, identity.ErrForbidden
	}

	seen := make(map[string]struct{}, len(ns.Attendance))
	for _, a := range ns.Attendance {
		if _, ok := roles[a.UserID]; !ok {
			return Session{}, nil, core.NewValidationError(nil, core.FieldError{
				Field: "attendance", Error: fmt.Sprintf("user %s is not a member of this group", a.UserID),
			})
		}
		if _, ok := seen[a.UserID]; ok {
			return Session{}, nil, core.NewValidationError(nil, core.FieldError{
				Field: "attendance", Error: fmt.Sprintf("user %s is listed more than once", a.UserID),
			})
		}
		seen[a.UserID] = struct{}{}
	}

	heldAt := ns.HeldAt.UTC()
	sess := Session{
		GroupID:   grp.ID,
		Title:     ns.Title,
		HeldAt:    heldAt,
		CreatedBy: ident.PrincipalID,
		CreatedAt: NowFunc().UTC(),
	}
	att := make([]Attendance, 0, len(ns.Attendance))
	for _, a := range ns.Attendance {
		att = append(att, Attendance{
			GroupID: grp.ID,
			UserID:  a.UserID,
			Status:  a.Status,
			Note:    a.Note,
			HeldAt:  heldAt,
		})
	}
	return svc.repo.CreateSession(ctx, sess, att)
}

func (svc *service) QueryAttendance(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Attendance, error) {
	ids, err := svc.scope(ctx, ident, visibility.CategoryAttendance, filter)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, ids, filter)
}

func (svc *service) RecordProgress(ctx context.Context, ident identity.EffectiveIdentity, np NewProgress) (Progress, error) {
	userID, err := svc.target(ctx, ident, visibility.CategoryProgress, np.UserID)
	if err != nil {
		return Progress{}, err
	}
	now := NowFunc().UTC()
	recordedAt := np.RecordedAt.UTC()
	if np.RecordedAt.IsZero() {
		recordedAt = now
	}
	return svc.repo.CreateProgress(ctx, Progress{
		UserID:     userID,
		Subject:    np.Subject,
		Portion:    np.Portion,
		Status:     np.Status,
		Note:       np.Note,
		RecordedBy: ident.PrincipalID,
		RecordedAt: recordedAt,
	})
}

func (svc *service) QueryProgress(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Progress, error) {
	ids, err := svc.scope(ctx, ident, visibility.CategoryProgress, filter)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return svc.repo.QueryProgress(ctx, ids, filter)
}

func (svc *service) RecordEvaluation(ctx context.Context, ident identity.EffectiveIdentity, ne NewEvaluation) (Evaluation, error) {
	userID, err := svc.target(ctx, ident, visibility.CategoryEvaluations, ne.UserID)
	if err != nil {
		return Evaluation{}, err
	}
	// nobody evaluates themselves
	if userID == ident.PrincipalID {
		return Evaluation{}, identity.ErrForbidden
	}
	evaluatedAt := ne.EvaluatedAt.UTC()
	if ne.EvaluatedAt.IsZero() {
		evaluatedAt = NowFunc().UTC()
	}
	return svc.repo.CreateEvaluation(ctx, Evaluation{
		UserID:      userID,
		EvaluatorID: ident.PrincipalID,
		Subject:     ne.Subject,
		Score:       ne.Score,
		Comment:     ne.Comment,
		EvaluatedAt: evaluatedAt,
	})
}

func (svc *service) QueryEvaluations(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Evaluation, error) {
	ids, err := svc.scope(ctx, ident, visibility.CategoryEvaluations, filter)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return svc.repo.QueryEvaluations(ctx, ids, filter)
}

// QueryStats returns one Stats per visible user, sorted by user id. Users without records get zero stats.
func (svc *service) QueryStats(ctx context.Context, ident identity.EffectiveIdentity, filter *QueryFilter) ([]Stats, error) {
	ids, err := svc.scope(ctx, ident, visibility.CategoryStats, filter)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	found, err := svc.repo.QueryStats(ctx, ids, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying stats")
	}
	byUser := make(map[string]Stats, len(found))
	for _, s := range found {
		byUser[s.UserID] = s
	}

	stats := make([]Stats, 0, len(ids))
	for _, id := range ids {
		s, ok := byUser[id]
		if !ok {
			s = Stats{UserID: id}
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].UserID < stats[j].UserID })
	return stats, nil
}
