package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
)

type trackingRepository struct {
	db *DB
}

var _ tracking.Repository = (*trackingRepository)(nil) // interface compliance check

func NewTrackingRepository(db *DB) *trackingRepository {
	return &trackingRepository{db: db}
}

func (repo *trackingRepository) CreateSession(
	_ context.Context,
	sess tracking.Session,
	att []tracking.Attendance,
	_ ...core.DBExecutor,
) (tracking.Session, []tracking.Attendance, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess.ID = uuid.New().String()
	repo.db.sessions[sess.ID] = &sess

	saved := make([]tracking.Attendance, 0, len(att))
	for _, a := range att {
		a.ID = uuid.New().String()
		a.SessionID = sess.ID
		a.GroupID = sess.GroupID
		a.HeldAt = sess.HeldAt
		repo.db.attendance = append(repo.db.attendance, a)
		saved = append(saved, a)
	}
	return sess, saved, nil
}

func (repo *trackingRepository) QueryAttendance(_ context.Context, userIDs []string, filter *tracking.QueryFilter, _ ...core.DBExecutor) ([]tracking.Attendance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := stringSet(userIDs)
	var list []tracking.Attendance
	for _, a := range repo.db.attendance {
		if _, ok := users[a.UserID]; !ok || !filter.InRange(a.HeldAt) {
			continue
		}
		if filter != nil && filter.GroupID != "" && a.GroupID != filter.GroupID {
			continue
		}
		list = append(list, a)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].HeldAt.Equal(list[j].HeldAt) {
			return list[i].UserID < list[j].UserID
		}
		return list[i].HeldAt.After(list[j].HeldAt)
	})
	return list, nil
}

func (repo *trackingRepository) CreateProgress(_ context.Context, prog tracking.Progress, _ ...core.DBExecutor) (tracking.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	prog.ID = uuid.New().String()
	repo.db.progress = append(repo.db.progress, prog)
	return prog, nil
}

func (repo *trackingRepository) QueryProgress(_ context.Context, userIDs []string, filter *tracking.QueryFilter, _ ...core.DBExecutor) ([]tracking.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := stringSet(userIDs)
	var list []tracking.Progress
	for _, p := range repo.db.progress {
		if _, ok := users[p.UserID]; ok && filter.InRange(p.RecordedAt) {
			list = append(list, p)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].RecordedAt.After(list[j].RecordedAt) })
	return list, nil
}

func (repo *trackingRepository) CreateEvaluation(_ context.Context, eval tracking.Evaluation, _ ...core.DBExecutor) (tracking.Evaluation, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	eval.ID = uuid.New().String()
	repo.db.evaluations = append(repo.db.evaluations, eval)
	return eval, nil
}

func (repo *trackingRepository) QueryEvaluations(_ context.Context, userIDs []string, filter *tracking.QueryFilter, _ ...core.DBExecutor) ([]tracking.Evaluation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := stringSet(userIDs)
	var list []tracking.Evaluation
	for _, e := range repo.db.evaluations {
		if _, ok := users[e.UserID]; ok && filter.InRange(e.EvaluatedAt) {
			list = append(list, e)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].EvaluatedAt.After(list[j].EvaluatedAt) })
	return list, nil
}

func (repo *trackingRepository) QueryStats(_ context.Context, userIDs []string, filter *tracking.QueryFilter, _ ...core.DBExecutor) ([]tracking.Stats, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := stringSet(userIDs)
	stats := make(map[string]*tracking.Stats)
	get := func(id string) *tracking.Stats {
		s, ok := stats[id]
		if !ok {
			s = &tracking.Stats{UserID: id}
			stats[id] = s
		}
		return s
	}

	for _, a := range repo.db.attendance {
		if _, ok := users[a.UserID]; !ok || !filter.InRange(a.HeldAt) {
			continue
		}
		if filter != nil && filter.GroupID != "" && a.GroupID != filter.GroupID {
			continue
		}
		switch a.Status {
		case tracking.StatusPresent:
			get(a.UserID).SessionsAttended++
		case tracking.StatusAbsent:
			get(a.UserID).SessionsMissed++
		default:
			get(a.UserID) // excused
		}
	}
	for _, p := range repo.db.progress {
		if _, ok := users[p.UserID]; !ok || !filter.InRange(p.RecordedAt) {
			continue
		}
		s := get(p.UserID)
		s.ProgressEntries++
		if p.Status == tracking.ProgressMemorized {
			s.MemorizedEntries++
		}
	}
	scores := make(map[string]int)
	for _, e := range repo.db.evaluations {
		if _, ok := users[e.UserID]; !ok || !filter.InRange(e.EvaluatedAt) {
			continue
		}
		get(e.UserID).Evaluations++
		scores[e.UserID] += e.Score
	}

	list := make([]tracking.Stats, 0, len(stats))
	for id, s := range stats {
		if s.Evaluations > 0 {
			s.AverageScore = float64(scores[id]) / float64(s.Evaluations)
		}
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}
