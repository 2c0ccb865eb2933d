package tracking

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/qantedservices-cmd/amilou-sub002/core"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusExcused = "excused"
)

// Progress statuses
const (
	ProgressMemorized  = "memorized"
	ProgressRevising   = "revising"
	ProgressInProgress = "in_progress"
)

var (
	AttendanceStatuses = []string{StatusPresent, StatusAbsent, StatusExcused}
	ProgressStatuses   = []string{ProgressMemorized, ProgressRevising, ProgressInProgress}
)

// Session is a group meeting.
type Session struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Title     string    `json:"title"`
	HeldAt    time.Time `json:"held_at"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Attendance struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	HeldAt    time.Time `json:"held_at"`
}

// Progress is a memorization step of a user.
type Progress struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Subject    string    `json:"subject"`
	Portion    string    `json:"portion"`
	Status     string    `json:"status"`
	Note       string    `json:"note"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Evaluation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	EvaluatorID string    `json:"evaluator_id"`
	Subject     string    `json:"subject"`
	Score       int       `json:"score"`
	Comment     string    `json:"comment"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Stats aggregates the records of a user.
type Stats struct {
	UserID           string  `json:"user_id"`
	SessionsAttended int     `json:"sessions_attended"`
	SessionsMissed   int     `json:"sessions_missed"`
	ProgressEntries  int     `json:"progress_entries"`
	MemorizedEntries int     `json:"memorized_entries"`
	Evaluations      int     `json:"evaluations"`
	AverageScore     float64 `json:"average_score"`
}

type NewSession struct {
	GroupID    string          `json:"group_id" validate:"required"`
	Title      string          `json:"title" validate:"required,notblank,max=200"`
	HeldAt     time.Time       `json:"held_at" validate:"required"`
	Attendance []NewAttendance `json:"attendance" validate:"dive"`
}

type NewAttendance struct {
	UserID string `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"required,attendancestatus"`
	Note   string `json:"note" validate:"max=500"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.GroupID = core.CleanString(ns.GroupID, true /* lower */)
	ns.Title = core.CleanString(ns.Title)
	for i := range ns.Attendance {
		ns.Attendance[i].UserID = core.CleanString(ns.Attendance[i].UserID, true /* lower */)
		ns.Attendance[i].Status = core.CleanString(ns.Attendance[i].Status, true /* lower */)
		ns.Attendance[i].Note = core.CleanString(ns.Attendance[i].Note)
	}
	return validate.Struct(ns)
}

type NewProgress struct {
	// UserID defaults to the acting user.
	UserID     string    `json:"user_id"`
	Subject    string    `json:"subject" validate:"required,notblank,max=200"`
	Portion    string    `json:"portion" validate:"max=200"`
	Status     string    `json:"status" validate:"required,progressstatus"`
	Note       string    `json:"note" validate:"max=500"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (np *NewProgress) Validate(validate *validator.Validate) error {
	np.UserID = core.CleanString(np.UserID, true /* lower */)
	np.Subject = core.CleanString(np.Subject)
	np.Portion = core.CleanString(np.Portion)
	np.Status = core.CleanString(np.Status, true /* lower */)
	np.Note = core.CleanString(np.Note)
	return validate.Struct(np)
}

type NewEvaluation struct {
	// UserID defaults to the acting user.
	UserID      string    `json:"user_id"`
	Subject     string    `json:"subject" validate:"required,notblank,max=200"`
	Score       int       `json:"score" validate:"min=0,max=100"`
	Comment     string    `json:"comment" validate:"max=1000"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.UserID = core.CleanString(ne.UserID, true /* lower */)
	ne.Subject = core.CleanString(ne.Subject)
	ne.Comment = core.CleanString(ne.Comment)
	return validate.Struct(ne)
}

// QueryFilter narrows listings. UserIDs are intersected with the visible users.
type QueryFilter struct {
	UserIDs []string  `query:"user_id"`
	GroupID string    `query:"group_id"`
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
}

func (qf *QueryFilter) Clean() {
	for i, id := range qf.UserIDs {
		qf.UserIDs[i] = core.CleanString(id, true /* lower */)
	}
	qf.UserIDs = core.UniqueStrings(qf.UserIDs)
	qf.GroupID = core.CleanString(qf.GroupID, true /* lower */)
}

// InRange reports whether `t` is within [From, To]; zero bounds are open.
func (qf *QueryFilter) InRange(t time.Time) bool {
	if qf == nil {
		return true
	}
	if !qf.From.IsZero() && t.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && t.After(qf.To) {
		return false
	}
	return true
}
