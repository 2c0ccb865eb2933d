package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/qantedservices-cmd/amilou-sub002/core"
)

// Member roles within a group.
const (
	RoleLeader = "leader"
	RoleMember = "member"
)

var MemberRoles = []string{RoleLeader, RoleMember}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type Member struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"` // UTC
}

func (m Member) IsLeader() bool {
	return m.Role == RoleLeader
}

type NewGroup struct {
	Name        string `json:"name" validate:"required,notblank,max=120"`
	Description string `json:"description" validate:"max=500"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

type NewMember struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Role   string `json:"role" validate:"omitempty,memberrole"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID, true /* lower */)
	nm.Role = core.CleanString(nm.Role, true /* lower */)
	if nm.Role == "" {
		nm.Role = RoleMember
	}
	return validate.Struct(nm)
}

type QueryFilter struct {
	Search string `query:"search"`
	// UserID keeps the groups this user belongs to.
	UserID string `query:"user_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.UserID = core.CleanString(qf.UserID, true /* lower */)
}
