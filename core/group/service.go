package group

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

var (
	ErrNotFound = errors.New("group not found")

	memberRoleTag  = "memberrole"
	memberRoleText = "role must be one of: leader, member"

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		QueryGroups(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		// UpsertMember adds the member to its group, or updates its role when already a member.
		UpsertMember(ctx context.Context, mbr Member, exec ...core.DBExecutor) (Member, error)
		ListMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]Member, error)
		// LedMemberIDs returns the ids of all members of the groups led by leaderID, leaderID included.
		LedMemberIDs(ctx context.Context, leaderID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service interface {
		Create(ctx context.Context, ng NewGroup) (Group, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Group, error)
		Get(ctx context.Context, id string) (Group, error)
		AddMember(ctx context.Context, groupID string, nm NewMember) (Member, error)
		Members(ctx context.Context, groupID string) ([]Member, error)
		LedMemberIDs(ctx context.Context, leaderID string) ([]string, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc}
}

// InitValidators registers the group validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(memberRoleTag, core.OneOfValidation(MemberRoles...))
	core.RegisterCustomTranslation(validate, translator, memberRoleTag, memberRoleText)
}

func (svc *service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	grp := Group{
		Name:        ng.Name,
		Description: ng.Description,
		CreatedAt:   NowFunc().UTC(),
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (Group, error) {
	if id == "" {
		return Group{}, ErrNotFound
	}
	return svc.repo.GetGroup(ctx, id)
}

func (svc *service) AddMember(ctx context.Context, groupID string, nm NewMember) (Member, error) {
	if _, err := svc.Get(ctx, groupID); err != nil {
		return Member{}, err
	}
	if _, err := svc.usrSvc.GetUser(ctx, nm.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Member{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Member{}, errors.Wrap(err, "finding user by ID")
	}
	role := nm.Role
	if role == "" {
		role = RoleMember
	}
	return svc.repo.UpsertMember(ctx, Member{
		GroupID:  groupID,
		UserID:   nm.UserID,
		Role:     role,
		JoinedAt: NowFunc().UTC(),
	})
}

func (svc *service) Members(ctx context.Context, groupID string) ([]Member, error) {
	if _, err := svc.Get(ctx, groupID); err != nil {
		return nil, err
	}
	return svc.repo.ListMembers(ctx, groupID)
}

func (svc *service) LedMemberIDs(ctx context.Context, leaderID string) ([]string, error) {
	return svc.repo.LedMemberIDs(ctx, leaderID)
}
