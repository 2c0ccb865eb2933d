// Package visibility computes which users' records a requester may read.
package visibility

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

type Category string

const (
	CategoryAttendance  Category = "attendance"
	CategoryProgress    Category = "progress"
	CategoryStats       Category = "stats"
	CategoryEvaluations Category = "evaluations"
)

var (
	ErrInvalidCategory = errors.New("invalid data category")
	ErrUnknownUser     = errors.New("unknown user")

	Categories = []Category{CategoryAttendance, CategoryProgress, CategoryStats, CategoryEvaluations}
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAttendance, CategoryProgress, CategoryStats, CategoryEvaluations:
		return true
	}
	return false
}

// ParseCategory returns the Category named `s` (case-insensitive).
func ParseCategory(s string) (Category, error) {
	c := Category(core.CleanString(s, true /* lower */))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// UserSet is an unordered set of user ids.
type UserSet map[string]struct{}

func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s UserSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s UserSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the ids sorted, for stable output.
func (s UserSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restrict returns the ids of `s` that are also in `ids`. An empty `ids` keeps all of `s`.
func (s UserSet) Restrict(ids ...string) UserSet {
	ids = core.UniqueStrings(ids)
	if len(ids) == 0 {
		return s
	}
	out := make(UserSet, len(ids))
	for _, id := range ids {
		if s.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

type (
	// UserSource reads users.
	UserSource interface {
		GetUser(ctx context.Context, id string) (user.User, error)
		ListUserIDs(ctx context.Context) ([]string, error)
	}

	// MembershipSource reads group memberships.
	MembershipSource interface {
		// LedMemberIDs returns the ids of all members of the groups led by leaderID.
		LedMemberIDs(ctx context.Context, leaderID string) ([]string, error)
	}
)

// Engine answers which user ids a requester may see data for.
//
// Admins see every user. Everyone else sees themselves plus the members of every group they lead;
// a plain member leads no group and thus only sees themselves. The category does not change
// the outcome yet, it is only validated.
type Engine struct {
	users  UserSource
	groups MembershipSource
}

func NewEngine(users UserSource, groups MembershipSource) *Engine {
	return &Engine{users: users, groups: groups}
}

func (eng *Engine) VisibleUsers(ctx context.Context, requesterID string, cat Category) (UserSet, error) {
	if !cat.Valid() {
		return nil, ErrInvalidCategory
	}
	if requesterID == "" {
		return nil, ErrUnknownUser
	}

	requester, err := eng.users.GetUser(ctx, requesterID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, ErrUnknownUser
		}
		return nil, errors.Wrap(err, "finding requester")
	}

	if requester.IsAdmin() {
		ids, err := eng.users.ListUserIDs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing users")
		}
		return NewUserSet(ids...), nil
	}

	ids, err := eng.groups.LedMemberIDs(ctx, requester.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing led members")
	}
	set := NewUserSet(ids...)
	set.Add(requester.ID)
	return set, nil
}
