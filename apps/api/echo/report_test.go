package echoapi

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core/report"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/testutil"
)

func Test_reportApi(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	u1 := testutil.CreateUser(t, app.usrRepo, "Umar", "umar", "", "", "", true)
	u1Token := getToken(t, app, u1)

	np := tracking.NewProgress{Subject: "Al-Kahf", Portion: "1-10", Status: tracking.ProgressRevising}
	rec := app.do(http.MethodPost, "/v1/progress", u1Token, marchallObj(t, np))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/reports/progress",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "invalid kind", method: http.MethodPost, path: "/v1/reports/grades", token: u1Token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: report.ErrInvalidKind.Error()}),
		},
		{
			name: "unknown download", path: "/v1/reports/download/nope", token: u1Token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: report.ErrNotFound.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	export := func(token string) report.Export {
		rec := app.do(http.MethodPost, "/v1/reports/progress", token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var exp report.Export
		unmarshal(t, rec, &exp)
		return exp
	}

	t.Run("single download", func(t *testing.T) {
		exp := export(u1Token)
		assert.Regexp(t, `^progress-\d{8}-\d{6}\.csv$`, exp.FileName)

		rec := app.do(http.MethodGet, "/v1/reports/download/"+exp.ID, u1Token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename=`+exp.FileName, rec.Header().Get("Content-Disposition"))
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

		rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{u1.ID, "Umar", "Al-Kahf", "1-10", tracking.ProgressRevising, "", u1.ID}, rows[1][:7])

		rec = app.do(http.MethodGet, "/v1/reports/download/"+exp.ID, u1Token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("impersonated export", func(t *testing.T) {
		adminToken := getToken(t, app, admin)
		startImpersonation(t, app, adminToken, u1.ID)
		defer app.do(http.MethodDelete, "/v1/impersonation", adminToken)

		exp := export(adminToken)
		rec := app.do(http.MethodGet, "/v1/reports/download/"+exp.ID, adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 2, "only U1's records")
	})
}
