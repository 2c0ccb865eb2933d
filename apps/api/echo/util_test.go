package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qantedservices-cmd/amilou-sub002/core/blob"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/report"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
	inmemdb "github.com/qantedservices-cmd/amilou-sub002/storage/database/inmem"
	"github.com/qantedservices-cmd/amilou-sub002/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	srv            *Server
	usrRepo        user.Repository
	grpRepo        group.Repository
	impersonations *identity.Store
	blobs          *blob.Store
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.NewDB()
	app := testApp{
		usrRepo:        inmemdb.NewUserRepository(db),
		grpRepo:        inmemdb.NewGroupRepository(db),
		impersonations: identity.NewStore(conf.Impersonation.MaxSessions, conf.Server.JWTRefreshExpirationDelta),
		blobs:          blob.NewStore(conf.Blob.TTL),
	}

	// set up services
	usrSvc := user.NewService(app.usrRepo)
	grpSvc := group.NewService(app.grpRepo, usrSvc)
	vis := visibility.NewEngine(usrSvc, grpSvc)
	trkSvc := tracking.NewService(inmemdb.NewTrackingRepository(db), vis, grpSvc)

	// set up server
	app.srv = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		GroupSvc:       grpSvc,
		TrackingSvc:    trkSvc,
		ReportSvc:      report.NewService(trkSvc, usrSvc, app.blobs),
		IdentitySvc:    identity.NewService(app.impersonations, usrSvc, logger),
		Impersonations: app.impersonations,
		Visibility:     vis,
		Blobs:          app.blobs,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return app
}

// do sends the request to the app server.
func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// getToken logs `usr` in; every call starts a new session.
func getToken(t *testing.T, app testApp, usr user.User) string {
	token, err := app.srv.tokens.generate(app.srv.tokens.userClaims(usr, ""))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
