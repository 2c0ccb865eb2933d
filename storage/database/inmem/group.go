package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ID = uuid.New().String()
	repo.db.groups[grp.ID] = &grp
	repo.db.members[grp.ID] = make(map[string]group.Member)
	return grp, nil
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter *group.QueryFilter, _ ...core.DBExecutor) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		if filter != nil {
			if filter.Search != "" && !strings.Contains(strings.ToLower(grp.Name), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.UserID != "" {
				if _, ok := repo.db.members[grp.ID][filter.UserID]; !ok {
					continue
				}
			}
		}
		groups = append(groups, *grp)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name == groups[j].Name {
			return groups[i].ID < groups[j].ID
		}
		return groups[i].Name < groups[j].Name
	})
	return groups, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpsertMember(_ context.Context, mbr group.Member, _ ...core.DBExecutor) (group.Member, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mbrs, ok := repo.db.members[mbr.GroupID]
	if !ok {
		return group.Member{}, group.ErrNotFound
	}
	if existing, ok := mbrs[mbr.UserID]; ok {
		mbr.JoinedAt = existing.JoinedAt
	}
	mbrs[mbr.UserID] = mbr
	return mbr, nil
}

func (repo *groupRepository) ListMembers(_ context.Context, groupID string, _ ...core.DBExecutor) ([]group.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	mbrs, ok := repo.db.members[groupID]
	if !ok {
		return nil, group.ErrNotFound
	}
	list := make([]group.Member, 0, len(mbrs))
	for _, m := range mbrs {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}

func (repo *groupRepository) LedMemberIDs(_ context.Context, leaderID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := make(map[string]struct{})
	for _, mbrs := range repo.db.members {
		if m, ok := mbrs[leaderID]; !ok || !m.IsLeader() {
			continue
		}
		for id := range mbrs {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
