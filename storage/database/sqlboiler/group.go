package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
)

type groupRow struct {
	ID          string    `boil:"id"`
	Name        string    `boil:"name"`
	Description string    `boil:"description"`
	CreatedAt   time.Time `boil:"created_at"`
}

type memberRow struct {
	GroupID  string    `boil:"group_id"`
	UserID   string    `boil:"user_id"`
	Role     string    `boil:"role"`
	JoinedAt time.Time `boil:"joined_at"`
}

func (row groupRow) unboil() group.Group {
	return group.Group{ID: row.ID, Name: row.Name, Description: row.Description, CreatedAt: row.CreatedAt.UTC()}
}

func (row memberRow) unboil() group.Member {
	return group.Member{GroupID: row.GroupID, UserID: row.UserID, Role: row.Role, JoinedAt: row.JoinedAt.UTC()}
}

type groupRepository struct {
	exec core.DBExecutor
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(exec core.DBExecutor) *groupRepository {
	return &groupRepository{exec: exec}
}

func (repo groupRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return getExec(repo.exec, svcExec)
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	grp.ID = uuid.New().String()
	grp.CreatedAt = grp.CreatedAt.UTC()
	_, err := queries.Raw(
		`INSERT INTO "group" (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		grp.ID, grp.Name, grp.Description, grp.CreatedAt,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo groupRepository) QueryGroups(ctx context.Context, filter *group.QueryFilter, exec ...core.DBExecutor) ([]group.Group, error) {
	var c clauses
	if filter != nil {
		if filter.Search != "" {
			c.add("g.name ILIKE " + c.arg("%"+filter.Search+"%"))
		}
		if filter.UserID != "" {
			if _, err := uuid.Parse(filter.UserID); err != nil {
				return []group.Group{}, nil
			}
			c.add("EXISTS (SELECT 1 FROM group_member m WHERE m.group_id = g.id AND m.user_id = " + c.arg(filter.UserID) + ")")
		}
	}

	var rows []groupRow
	q := `SELECT g.id, g.name, g.description, g.created_at FROM "group" g` + c.where() + ` ORDER BY g.name, g.id`
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.unboil())
	}
	return groups, nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return group.Group{}, group.ErrNotFound
	}
	var row groupRow
	err := queries.Raw(`SELECT id, name, description, created_at FROM "group" WHERE id = $1`, id).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return row.unboil(), nil
}

func (repo groupRepository) UpsertMember(ctx context.Context, mbr group.Member, exec ...core.DBExecutor) (group.Member, error) {
	if _, err := repo.GetGroup(ctx, mbr.GroupID, exec...); err != nil {
		return group.Member{}, err
	}

	var row memberRow
	q := `INSERT INTO group_member (group_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING group_id, user_id, role, joined_at`
	err := queries.Raw(q, mbr.GroupID, mbr.UserID, mbr.Role, mbr.JoinedAt.UTC()).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return group.Member{}, errors.Wrap(err, "upserting member")
	}
	return row.unboil(), nil
}

func (repo groupRepository) ListMembers(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]group.Member, error) {
	if _, err := repo.GetGroup(ctx, groupID, exec...); err != nil {
		return nil, err
	}

	var rows []memberRow
	q := `SELECT group_id, user_id, role, joined_at FROM group_member WHERE group_id = $1 ORDER BY user_id`
	if err := queries.Raw(q, groupID).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing members")
	}
	mbrs := make([]group.Member, 0, len(rows))
	for _, row := range rows {
		mbrs = append(mbrs, row.unboil())
	}
	return mbrs, nil
}

func (repo groupRepository) LedMemberIDs(ctx context.Context, leaderID string, exec ...core.DBExecutor) ([]string, error) {
	if _, err := uuid.Parse(leaderID); err != nil {
		return []string{}, nil
	}

	var rows []struct {
		UserID string `boil:"user_id"`
	}
	q := `SELECT DISTINCT m.user_id FROM group_member m
		JOIN group_member l ON l.group_id = m.group_id AND l.user_id = $1 AND l.role = $2
		ORDER BY m.user_id`
	if err := queries.Raw(q, leaderID, group.RoleLeader).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing led members")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}
