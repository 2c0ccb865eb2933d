package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/testutil"
)

func startImpersonation(t *testing.T, app testApp, token, userID string) ImpersonationStatus {
	rec := app.do(http.MethodPost, "/v1/impersonation", token, marchallObj(t, StartImpersonationRequest{UserID: userID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status ImpersonationStatus
	unmarshal(t, rec, &status)
	return status
}

func Test_impersonationApi_start(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	leader := testutil.CreateUser(t, app.usrRepo, "Lea", "lea", "", "", user.RoleLeader, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "U1", "u1", "", "", "", true)
	adminToken := getToken(t, app, admin)
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	unknownID := "0c9b3f2e-5b7a-4a53-8b0e-9d1f3e5c7a21"

	tests := []httpTest{
		{
			name: "Auth required", body: marchallObj(t, StartImpersonationRequest{UserID: u1.ID}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "member (existing target)", token: getToken(t, app, u1), body: marchallObj(t, StartImpersonationRequest{UserID: leader.ID}),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "leader (unknown target)", token: getToken(t, app, leader), body: marchallObj(t, StartImpersonationRequest{UserID: unknownID}),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "leader (no target)", token: getToken(t, app, leader), body: []byte(`{}`),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "admin (unknown target)", token: adminToken, body: marchallObj(t, StartImpersonationRequest{UserID: unknownID}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		},
		{
			name: "admin (self)", token: adminToken, body: marchallObj(t, StartImpersonationRequest{UserID: admin.ID}),
			wantCode: http.StatusBadRequest,
		},
		{name: "admin (no target)", token: adminToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/v1/impersonation"
	}
	runHTTPTests(t, app, tests)
	assert.Equal(t, 0, app.impersonations.Len())

	status := startImpersonation(t, app, adminToken, u1.ID)
	assert.True(t, status.Active)
	assert.Equal(t, u1.ID, status.TargetUserID)
	assert.Equal(t, "U1", status.TargetDisplayName)
	assert.NotNil(t, status.StartedAt)
}

func Test_impersonationApi_lifecycle(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "U1", "u1", "", "", "", true)
	u2 := testutil.CreateUser(t, app.usrRepo, "U2", "u2", "", "", "", true)
	token := getToken(t, app, admin)

	current := func() ImpersonationStatus {
		rec := app.do(http.MethodGet, "/v1/impersonation", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var status ImpersonationStatus
		unmarshal(t, rec, &status)
		return status
	}
	me := func() MeResponse {
		rec := app.do(http.MethodGet, "/v1/users/me", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MeResponse
		unmarshal(t, rec, &resp)
		return resp
	}

	assert.False(t, current().Active)
	assert.Equal(t, admin.ID, me().User.ID)

	startImpersonation(t, app, token, u1.ID)
	assert.Equal(t, u1.ID, current().TargetUserID)
	resp := me()
	assert.Equal(t, u1.ID, resp.User.ID)
	assert.Equal(t, admin.ID, resp.Principal.ID)
	assert.True(t, resp.Identity.IsImpersonating)
	assert.Equal(t, user.RoleAdmin, resp.Identity.AuthorizationRole)

	// last write wins
	startImpersonation(t, app, token, u2.ID)
	assert.Equal(t, u2.ID, current().TargetUserID)
	assert.Equal(t, u2.ID, me().User.ID)
	assert.Equal(t, 1, app.impersonations.Len())

	// admin-only endpoints keep checking the admin's own role
	rec := app.do(http.MethodGet, "/v1/users", token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodDelete, "/v1/impersonation", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, current().Active)
	assert.Equal(t, admin.ID, me().User.ID)

	// stopping twice is fine
	rec = app.do(http.MethodDelete, "/v1/impersonation", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func Test_impersonationApi_sessionIsolation(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	admin2 := testutil.CreateUser(t, app.usrRepo, "Admin 2", "admin2", "", "", user.RoleAdmin, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "U1", "u1", "", "", "", true)
	u2 := testutil.CreateUser(t, app.usrRepo, "U2", "u2", "", "", "", true)

	tabA := getToken(t, app, admin)
	tabB := getToken(t, app, admin) // same admin, another login
	other := getToken(t, app, admin2)

	startImpersonation(t, app, tabA, u1.ID)
	startImpersonation(t, app, other, u2.ID)

	whoami := func(token string) string {
		rec := app.do(http.MethodGet, "/v1/users/me", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MeResponse
		unmarshal(t, rec, &resp)
		return resp.User.ID
	}
	assert.Equal(t, u1.ID, whoami(tabA))
	assert.Equal(t, admin.ID, whoami(tabB))
	assert.Equal(t, u2.ID, whoami(other))

	// stopping in one session leaves the others alone
	app.do(http.MethodDelete, "/v1/impersonation", tabB)
	assert.Equal(t, u1.ID, whoami(tabA))
	app.do(http.MethodDelete, "/v1/impersonation", tabA)
	assert.Equal(t, admin.ID, whoami(tabA))
	assert.Equal(t, u2.ID, whoami(other))

	// a refreshed token keeps its session's impersonation
	rec := app.do(http.MethodPost, "/v1/users/token-refresh", other)
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed LoginResponse
	unmarshal(t, rec, &refreshed)
	assert.Equal(t, u2.ID, whoami(refreshed.Token))
}

// admin A impersonates member U1: listings return U1's records until A stops.
func Test_impersonation_listingScenario(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "U1", "u1", "", "", "", true)
	token := getToken(t, app, admin)

	record := func(tok, subject string) tracking.Progress {
		np := tracking.NewProgress{Subject: subject, Status: tracking.ProgressMemorized}
		rec := app.do(http.MethodPost, "/v1/progress", tok, marchallObj(t, np))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var prog tracking.Progress
		unmarshal(t, rec, &prog)
		return prog
	}
	list := func(path string) []tracking.Progress {
		rec := app.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var progs []tracking.Progress
		unmarshal(t, rec, &progs)
		return progs
	}
	subjects := func(progs []tracking.Progress) []string {
		ss := make([]string, 0, len(progs))
		for _, p := range progs {
			ss = append(ss, p.Subject)
		}
		return ss
	}

	mine := record(token, "admin subject")
	assert.Equal(t, admin.ID, mine.UserID)
	record(getToken(t, app, u1), "u1 subject")

	startImpersonation(t, app, token, u1.ID)
	assert.Equal(t, []string{"u1 subject"}, subjects(list("/v1/progress")))
	assert.Empty(t, list("/v1/progress?user_id="+admin.ID), "the admin's records are out of U1's scope")

	// writes while impersonating are about U1 but authored by the admin
	prog := record(token, "recorded as u1")
	assert.Equal(t, u1.ID, prog.UserID)
	assert.Equal(t, admin.ID, prog.RecordedBy)

	app.do(http.MethodDelete, "/v1/impersonation", token)
	assert.Equal(t, []string{"admin subject"}, subjects(list("/v1/progress?user_id="+admin.ID)))
	assert.Len(t, list("/v1/progress"), 3)
}
