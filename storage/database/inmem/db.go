package inmemdb

import (
	"sync"

	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

// DB is an in-memory database. Every repository built on the same DB shares its tables.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	groups      map[string]*group.Group
	members     map[string]map[string]group.Member // groupID -> userID -> member
	sessions    map[string]*tracking.Session
	attendance  []tracking.Attendance
	progress    []tracking.Progress
	evaluations []tracking.Evaluation
}

func NewDB() *DB {
	return &DB{
		users:    make(map[string]*user.User),
		groups:   make(map[string]*group.Group),
		members:  make(map[string]map[string]group.Member),
		sessions: make(map[string]*tracking.Session),
	}
}

// Reset drops all data.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.groups = make(map[string]*group.Group)
	db.members = make(map[string]map[string]group.Member)
	db.sessions = make(map[string]*tracking.Session)
	db.attendance = nil
	db.progress = nil
	db.evaluations = nil
}

func stringSet(ss []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}
