package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/auth"
	"github.com/Evian1k/school12k/core/identity"
	emailsvc "github.com/Evian1k/school12k/services/email"
	"github.com/Evian1k/school12k/storage/clientstore"
	"github.com/Evian1k/school12k/storage/database/dummydb"
)

type testApp struct {
	conf     *core.Config
	app      Server
	idSvc    identity.Service
	issuer   *auth.Issuer
	sessions *auth.Manager
	requests auth.RequestStore
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		TestMode:  true,
		AppName:   "EduManage",
		SecretKey: "secret",
		Session: core.SessionConfig{
			ExpirationDelta: 24 * time.Hour,
			MonitorInterval: time.Minute,
		},
		Verification: core.VerificationConfig{
			CodeTimeout: 15 * time.Minute,
		},
	}

	validate := validator.New()
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator(enLocale.Locale())
	core.InitValidators(validate, translator)
	identity.RegisterValidators(validate, translator)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	idSvc := identity.NewService(dummydb.NewIdentityDirectory(db))

	store, err := clientstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("clientstore.Open() failed, %v", err)
	}
	requests := clientstore.NewRequestStore(store)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	issuer := auth.NewIssuer(conf, idSvc, auth.NewEmailNotifier(conf, mailSvc), requests)
	sessions := auth.NewManager(conf, clientstore.NewSessionStore(store), nil)

	app := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		IdentitySvc:    idSvc,
		Issuer:         issuer,
		Sessions:       sessions,
		Validate:       validate,
		Translator:     translator,
	})
	return &testApp{
		conf:     conf,
		app:      app,
		idSvc:    idSvc,
		issuer:   issuer,
		sessions: sessions,
		requests: requests,
	}
}

func (ta *testApp) createIdentity(t *testing.T, email, name string, role identity.Role) identity.Identity {
	t.Helper()
	idn, err := ta.idSvc.CreateVerified(identity.NewIdentity{Email: email, Name: name, Role: role})
	if err != nil {
		t.Fatalf("CreateVerified(%s) failed, %v", email, err)
	}
	return idn
}

func (ta *testApp) getToken(t *testing.T, idn identity.Identity) string {
	t.Helper()
	token, err := auth.GenerateToken(ta.conf, auth.GetIdentityClaims(ta.conf, idn))
	if err != nil {
		t.Fatalf("GenerateToken() failed, %v", err)
	}
	return token
}

// pendingCode reads the outstanding verification code.
func (ta *testApp) pendingCode(t *testing.T) string {
	t.Helper()
	vr, err := ta.requests.GetRequest()
	if err != nil {
		t.Fatalf("GetRequest() failed, %v", err)
	}
	return vr.Code
}

func (ta *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func Test_authApi_requestLoginCode(t *testing.T) {
	ta := setupApp(t)
	ta.createIdentity(t, "mike@test.cd", "Mike", identity.RoleStudent)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{name: "missing email", body: CodeRequest{}, wantCode: http.StatusBadRequest},
		{name: "malformed email", body: CodeRequest{Email: "lol"}, wantCode: http.StatusBadRequest},
		{name: "unknown email", body: CodeRequest{Email: "nobody@test.cd"}, wantCode: http.StatusBadRequest, wantErr: auth.ErrUnknownAccount.Error()},
		{name: "known email", body: CodeRequest{Email: "mike@test.cd"}, wantCode: http.StatusOK},
		{name: "case-insensitive email", body: CodeRequest{Email: "MIKE@Test.CD"}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(t, http.MethodPost, "/v1/auth/login-code", "", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				var httpErr struct {
					Error string `json:"error"`
				}
				decodeBody(t, rec, &httpErr)
				if httpErr.Error != tt.wantErr {
					t.Errorf("error = %q, want %q", httpErr.Error, tt.wantErr)
				}
			}
			if tt.wantCode == http.StatusOK {
				var resp CodeResponse
				decodeBody(t, rec, &resp)
				if resp.Email != "mike@test.cd" || resp.Purpose != string(auth.PurposeLogin) {
					t.Errorf("response = %+v", resp)
				}
				if !resp.Delivered {
					t.Error("code not delivered")
				}
			}
		})
	}
}

func Test_authApi_requestRegistrationCode(t *testing.T) {
	ta := setupApp(t)
	ta.createIdentity(t, "taken@test.cd", "Taken", identity.RoleAdmin)

	newIdentity := func(email string) identity.NewIdentity {
		return identity.NewIdentity{
			Email:           email,
			Name:            "New Teacher",
			Role:            identity.RoleTeacher,
			Password:        "Tr0ub4dor&3",
			PasswordConfirm: "Tr0ub4dor&3",
		}
	}

	t.Run("taken email", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/register-code", "", newIdentity("taken@test.cd"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
		var fldErrs map[string]string
		decodeBody(t, rec, &fldErrs)
		if _, ok := fldErrs["email"]; !ok {
			t.Errorf("field errors = %v, want email", fldErrs)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		ni := newIdentity("new@test.cd")
		ni.Password, ni.PasswordConfirm = "12345678", "12345678"
		rec := ta.do(t, http.MethodPost, "/v1/auth/register-code", "", ni)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("valid registration", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/register-code", "", newIdentity("new@test.cd"))
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp CodeResponse
		decodeBody(t, rec, &resp)
		if resp.Purpose != string(auth.PurposeRegistration) {
			t.Errorf("purpose = %q, want %s", resp.Purpose, auth.PurposeRegistration)
		}
		// not durable until the code is verified
		if _, err := ta.idSvc.FindByEmail("new@test.cd"); err != identity.ErrNotFound {
			t.Errorf("FindByEmail() error = %v, want %v", err, identity.ErrNotFound)
		}
	})
}

func Test_authApi_verifyCode(t *testing.T) {
	ta := setupApp(t)
	idn := ta.createIdentity(t, "mike@test.cd", "Mike", identity.RoleStudent)

	t.Run("no active request", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/verify", "", VerifyRequest{Code: "123456"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	if rec := ta.do(t, http.MethodPost, "/v1/auth/login-code", "", CodeRequest{Email: "mike@test.cd"}); rec.Code != http.StatusOK {
		t.Fatalf("login-code failed, %s", rec.Body.String())
	}
	code := ta.pendingCode(t)

	t.Run("malformed code", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/verify", "", VerifyRequest{Code: "12ab"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("wrong code keeps the request alive", func(t *testing.T) {
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		rec := ta.do(t, http.MethodPost, "/v1/auth/verify", "", VerifyRequest{Code: wrong})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		if got := ta.pendingCode(t); got != code {
			t.Error("outstanding request was dropped on mismatch")
		}
	})

	var token string
	t.Run("right code signs in", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/verify", "", VerifyRequest{Code: code})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp VerifyResponse
		decodeBody(t, rec, &resp)
		if resp.Token == "" {
			t.Fatal("no token issued")
		}
		if resp.Identity.ID != idn.ID || !resp.Identity.Verified {
			t.Errorf("identity = %+v, want %s verified", resp.Identity, idn.ID)
		}
		token = resp.Token
	})

	t.Run("code is single use", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/verify", "", VerifyRequest{Code: code})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("me", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/auth/me", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got identity.Identity
		decodeBody(t, rec, &got)
		if got.ID != idn.ID {
			t.Errorf("identity = %+v, want %s", got, idn.ID)
		}
	})

	t.Run("logout", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if _, err := ta.sessions.Current(); err != auth.ErrNoSession {
			t.Errorf("Current() error = %v, want %v", err, auth.ErrNoSession)
		}
	})
}

func Test_authApi_resendCode(t *testing.T) {
	ta := setupApp(t)
	ta.createIdentity(t, "mike@test.cd", "Mike", identity.RoleStudent)

	t.Run("no active request", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/auth/resend", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	if rec := ta.do(t, http.MethodPost, "/v1/auth/login-code", "", CodeRequest{Email: "mike@test.cd"}); rec.Code != http.StatusOK {
		t.Fatalf("login-code failed, %s", rec.Body.String())
	}

	rec := ta.do(t, http.MethodPost, "/v1/auth/resend", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp CodeResponse
	decodeBody(t, rec, &resp)
	if resp.Email != "mike@test.cd" || resp.Purpose != string(auth.PurposeLogin) {
		t.Errorf("response = %+v", resp)
	}
	if code := ta.pendingCode(t); code == "" {
		t.Error("no outstanding code after resend")
	}
}

func Test_portal_roleGating(t *testing.T) {
	ta := setupApp(t)
	student := ta.createIdentity(t, "mike@test.cd", "Mike", identity.RoleStudent)
	admin := ta.createIdentity(t, "admin@test.cd", "John", identity.RoleAdmin)

	studentToken := ta.getToken(t, student)
	adminToken := ta.getToken(t, admin)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
	}{
		{name: "auth required", path: "/v1/portal/student", wantCode: http.StatusUnauthorized},
		{name: "garbage token", path: "/v1/portal/student", token: "lmaooolol", wantCode: http.StatusUnauthorized},
		{name: "student portal: student", path: "/v1/portal/student", token: studentToken, wantCode: http.StatusOK},
		{name: "student portal: admin", path: "/v1/portal/student", token: adminToken, wantCode: http.StatusForbidden},
		{name: "admin portal: admin", path: "/v1/portal/admin", token: adminToken, wantCode: http.StatusOK},
		{name: "admin portal: student", path: "/v1/portal/admin", token: studentToken, wantCode: http.StatusForbidden},
		{name: "teacher portal: student", path: "/v1/portal/teacher", token: studentToken, wantCode: http.StatusForbidden},
		{name: "guardian portal: student", path: "/v1/portal/guardian", token: studentToken, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ta.do(t, http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	t.Run("portal payload", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/portal/student", studentToken, nil)
		var payload struct {
			Portal string        `json:"portal"`
			Name   string        `json:"name"`
			Role   identity.Role `json:"role"`
		}
		decodeBody(t, rec, &payload)
		if payload.Portal != "student" || payload.Name != "Mike" || payload.Role != identity.RoleStudent {
			t.Errorf("payload = %+v", payload)
		}
	})
}
