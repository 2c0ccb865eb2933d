package sqlxrepos

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
)

type trackingRepository struct {
	db *sqlx.DB
}

var _ tracking.Repository = (*trackingRepository)(nil) // interface compliance check

func NewTrackingRepository(db *sqlx.DB) *trackingRepository {
	return &trackingRepository{db: db}
}

// where builds the "user in ids & in range" conditions on `timeCol`, bound with `?` placeholders.
func where(userIDs []string, filter *tracking.QueryFilter, timeCol string) (string, []interface{}) {
	conds := []string{"user_id IN (?)"}
	args := []interface{}{userIDs}
	if filter != nil {
		if !filter.From.IsZero() {
			conds = append(conds, timeCol+" >= ?")
			args = append(args, filter.From.UTC())
		}
		if !filter.To.IsZero() {
			conds = append(conds, timeCol+" <= ?")
			args = append(args, filter.To.UTC())
		}
	}
	return strings.Join(conds, " AND "), args
}

// attendanceWhere is `where` on held_at, narrowed to the filter's group.
// ok is false when the group id is not a uuid and so matches no row.
func attendanceWhere(userIDs []string, filter *tracking.QueryFilter) (conds string, args []interface{}, ok bool) {
	conds, args = where(userIDs, filter, "held_at")
	if filter == nil || filter.GroupID == "" {
		return conds, args, true
	}
	if _, err := uuid.Parse(filter.GroupID); err != nil {
		return "", nil, false
	}
	return conds + " AND group_id = ?", append(args, filter.GroupID), true
}

func (repo *trackingRepository) selectIn(ctx context.Context, ext sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "expanding query args")
	}
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(q), args...)
}

func (repo *trackingRepository) CreateSession(
	ctx context.Context,
	sess tracking.Session,
	att []tracking.Attendance,
	exec ...core.DBExecutor,
) (tracking.Session, []tracking.Attendance, error) {
	var (
		ext = getExec(repo.db, exec)
		tx  *sqlx.Tx
		err error
	)
	if len(exec) == 0 {
		if tx, err = repo.db.BeginTxx(ctx, nil); err != nil {
			return tracking.Session{}, nil, errors.Wrap(err, "starting transaction")
		}
		defer func() { _ = tx.Rollback() }()
		ext = tx
	}

	sess.ID = uuid.New().String()
	sess.HeldAt = sess.HeldAt.UTC()
	sess.CreatedAt = sess.CreatedAt.UTC()
	_, err = sqlx.NamedExecContext(ctx, ext,
		`INSERT INTO session (id, group_id, title, held_at, created_by, created_at)
		VALUES (:id, :group_id, :title, :held_at, :created_by, :created_at)`, sess)
	if err != nil {
		return tracking.Session{}, nil, errors.Wrap(err, "inserting session")
	}

	saved := make([]tracking.Attendance, 0, len(att))
	for _, a := range att {
		a.ID = uuid.New().String()
		a.SessionID = sess.ID
		a.GroupID = sess.GroupID
		a.HeldAt = sess.HeldAt
		_, err = sqlx.NamedExecContext(ctx, ext,
			`INSERT INTO attendance (id, session_id, group_id, user_id, status, note, held_at)
			VALUES (:id, :session_id, :group_id, :user_id, :status, :note, :held_at)`, a)
		if err != nil {
			return tracking.Session{}, nil, errors.Wrap(err, "inserting attendance")
		}
		saved = append(saved, a)
	}

	if tx != nil {
		if err = tx.Commit(); err != nil {
			return tracking.Session{}, nil, errors.Wrap(err, "committing session")
		}
	}
	return sess, saved, nil
}

func (repo *trackingRepository) QueryAttendance(ctx context.Context, userIDs []string, filter *tracking.QueryFilter, exec ...core.DBExecutor) ([]tracking.Attendance, error) {
	list := make([]tracking.Attendance, 0)
	if len(userIDs) == 0 {
		return list, nil
	}
	conds, args, ok := attendanceWhere(userIDs, filter)
	if !ok {
		return list, nil
	}
	q := `SELECT id, session_id, group_id, user_id, status, note, held_at FROM attendance
		WHERE ` + conds + ` ORDER BY held_at DESC, user_id`
	if err := repo.selectIn(ctx, getExec(repo.db, exec), &list, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	return list, nil
}

func (repo *trackingRepository) CreateProgress(ctx context.Context, prog tracking.Progress, exec ...core.DBExecutor) (tracking.Progress, error) {
	prog.ID = uuid.New().String()
	prog.RecordedAt = prog.RecordedAt.UTC()
	_, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec),
		`INSERT INTO progress (id, user_id, subject, portion, status, note, recorded_by, recorded_at)
		VALUES (:id, :user_id, :subject, :portion, :status, :note, :recorded_by, :recorded_at)`, prog)
	if err != nil {
		return tracking.Progress{}, errors.Wrap(err, "inserting progress")
	}
	return prog, nil
}

func (repo *trackingRepository) QueryProgress(ctx context.Context, userIDs []string, filter *tracking.QueryFilter, exec ...core.DBExecutor) ([]tracking.Progress, error) {
	list := make([]tracking.Progress, 0)
	if len(userIDs) == 0 {
		return list, nil
	}
	conds, args := where(userIDs, filter, "recorded_at")
	q := `SELECT id, user_id, subject, portion, status, note, recorded_by, recorded_at FROM progress
		WHERE ` + conds + ` ORDER BY recorded_at DESC`
	if err := repo.selectIn(ctx, getExec(repo.db, exec), &list, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	return list, nil
}

func (repo *trackingRepository) CreateEvaluation(ctx context.Context, eval tracking.Evaluation, exec ...core.DBExecutor) (tracking.Evaluation, error) {
	eval.ID = uuid.New().String()
	eval.EvaluatedAt = eval.EvaluatedAt.UTC()
	_, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec),
		`INSERT INTO evaluation (id, user_id, evaluator_id, subject, score, comment, evaluated_at)
		VALUES (:id, :user_id, :evaluator_id, :subject, :score, :comment, :evaluated_at)`, eval)
	if err != nil {
		return tracking.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	return eval, nil
}

func (repo *trackingRepository) QueryEvaluations(ctx context.Context, userIDs []string, filter *tracking.QueryFilter, exec ...core.DBExecutor) ([]tracking.Evaluation, error) {
	list := make([]tracking.Evaluation, 0)
	if len(userIDs) == 0 {
		return list, nil
	}
	conds, args := where(userIDs, filter, "evaluated_at")
	q := `SELECT id, user_id, evaluator_id, subject, score, comment, evaluated_at FROM evaluation
		WHERE ` + conds + ` ORDER BY evaluated_at DESC`
	if err := repo.selectIn(ctx, getExec(repo.db, exec), &list, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	return list, nil
}

func (repo *trackingRepository) QueryStats(ctx context.Context, userIDs []string, filter *tracking.QueryFilter, exec ...core.DBExecutor) ([]tracking.Stats, error) {
	list := make([]tracking.Stats, 0)
	if len(userIDs) == 0 {
		return list, nil
	}

	attConds, attArgs, ok := attendanceWhere(userIDs, filter)
	if !ok {
		return list, nil
	}
	progConds, progArgs := where(userIDs, filter, "recorded_at")
	evalConds, evalArgs := where(userIDs, filter, "evaluated_at")

	// excused attendance counts as neither attended nor missed
	q := `
		WITH att AS (
			SELECT user_id,
				COUNT(*) FILTER (WHERE status = 'present') AS attended,
				COUNT(*) FILTER (WHERE status = 'absent') AS missed
			FROM attendance WHERE ` + attConds + ` GROUP BY user_id
		), prog AS (
			SELECT user_id, COUNT(*) AS entries, COUNT(*) FILTER (WHERE status = 'memorized') AS memorized
			FROM progress WHERE ` + progConds + ` GROUP BY user_id
		), ev AS (
			SELECT user_id, COUNT(*) AS evals, AVG(score)::float8 AS average
			FROM evaluation WHERE ` + evalConds + ` GROUP BY user_id
		)
		SELECT COALESCE(att.user_id, prog.user_id, ev.user_id) AS user_id,
			COALESCE(att.attended, 0) AS sessions_attended,
			COALESCE(att.missed, 0) AS sessions_missed,
			COALESCE(prog.entries, 0) AS progress_entries,
			COALESCE(prog.memorized, 0) AS memorized_entries,
			COALESCE(ev.evals, 0) AS evaluations,
			COALESCE(ev.average, 0) AS average_score
		FROM att
		FULL JOIN prog ON prog.user_id = att.user_id
		FULL JOIN ev ON ev.user_id = COALESCE(att.user_id, prog.user_id)`

	args := append(append(attArgs, progArgs...), evalArgs...)
	if err := repo.selectIn(ctx, getExec(repo.db, exec), &list, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying stats")
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list, nil
}
