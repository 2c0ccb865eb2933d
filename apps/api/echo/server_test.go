package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/testutil"
)

func TestServer_home(t *testing.T) {
	app := setup(t)
	rec := app.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Amilou API!", rec.Body.String())
}

func TestServer_metrics(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "U1", "u1", "", "", "", true)
	token := getToken(t, app, admin)

	app.do(http.MethodGet, "/v1/users", token)
	app.do(http.MethodGet, "/v1/users", "")
	startImpersonation(t, app, token, u1.ID)

	rec := app.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `amilou_http_requests_total{method="GET",path="/v1/users",status="200"} 1`)
	assert.Contains(t, body, `amilou_http_requests_total{method="GET",path="/v1/users",status="401"} 1`)
	assert.Contains(t, body, "amilou_impersonations_started_total 1")
	assert.Contains(t, body, "amilou_impersonations_active 1")
	assert.Contains(t, body, "amilou_blob_entries 0")
}
