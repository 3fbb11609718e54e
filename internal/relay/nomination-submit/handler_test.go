package nominationsubmit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nomination-relay/internal/common/config"
	"nomination-relay/internal/common/logger"
	"nomination-relay/internal/common/middleware"
)

// fakeUpstream records every call it receives and answers from routes.
type fakeUpstream struct {
	mu     sync.Mutex
	calls  map[string]int
	bodies map[string][]map[string]interface{}
	routes map[string]func() (int, string)
	server *httptest.Server
}

func newFakeUpstream(t *testing.T, routes map[string]func() (int, string)) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		calls:  map[string]int{},
		bodies: map[string][]map[string]interface{}{},
		routes: routes,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.calls[key]++
		f.bodies[key] = append(f.bodies[key], body)
		reply, ok := f.routes[key]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		status, respBody := reply()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeUpstream) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeUpstream) lastBody(t *testing.T, key string) map[string]interface{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.bodies[key], "no request for %s", key)
	return f.bodies[key][len(f.bodies[key])-1]
}

func reply(status int, body string) func() (int, string) {
	return func() (int, string) { return status, body }
}

const (
	createProfileKey = "POST /api/profiles/"
	subscribeKey     = "POST /api/profile-subscription-bulk-create-jobs/"
	listsKey         = "GET /api/lists/"
	quoMessagesKey   = "POST /v1/messages"
)

func klaviyoRoutes() map[string]func() (int, string) {
	return map[string]func() (int, string){
		createProfileKey: reply(http.StatusCreated, `{"data":{"type":"profile","id":"01NEW"}}`),
		subscribeKey:     reply(http.StatusAccepted, ``),
		listsKey:         reply(http.StatusOK, `{"data":[]}`),
	}
}

func quoRoutes() map[string]func() (int, string) {
	return map[string]func() (int, string){
		quoMessagesKey: reply(http.StatusAccepted, `{"data":{"id":"AC1"}}`),
	}
}

func testAppConfig(klaviyoURL, quoURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Server.SubscribePath = "/api/subscribe"
	cfg.Integrations.Klaviyo = config.KlaviyoConfig{
		PrivateKey: "pk_test",
		ListID:     "LIST1",
		Revision:   "2025-04-15",
		BaseURL:    klaviyoURL,
		Timeout:    5000,
	}
	cfg.Integrations.Quo = config.QuoConfig{
		APIKey:  "quo_test",
		BaseURL: quoURL,
		Timeout: 5000,
	}
	cfg.Relay = config.RelayConfig{
		Source:           "Cause Nomination Form",
		DefaultCauseName: "Choose for me",
		ConflictRefresh:  config.ConflictRefreshFull,
		SuccessMessage:   "Thank you for your nomination!",
		Phone:            config.PhoneConfig{CountryCode: "1", TrunkPrefix: "1"},
		SMS: config.SMSConfig{
			Provider:          config.SMSProviderQuo,
			OrgName:           "Good Laundry",
			Template:          config.DefaultSMSTemplate,
			FallbackCauseName: "your suggestion",
		},
	}
	return cfg
}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	klaviyo *fakeUpstream
	quo     *fakeUpstream
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config), klaviyoOverrides map[string]func() (int, string), quoOverrides map[string]func() (int, string)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kRoutes := klaviyoRoutes()
	for k, v := range klaviyoOverrides {
		kRoutes[k] = v
	}
	qRoutes := quoRoutes()
	for k, v := range quoOverrides {
		qRoutes[k] = v
	}
	fakeKlaviyo := newFakeUpstream(t, kRoutes)
	fakeQuo := newFakeUpstream(t, qRoutes)

	appCfg := testAppConfig(fakeKlaviyo.server.URL, fakeQuo.server.URL)
	if mutate != nil {
		mutate(appCfg)
	}

	log := logger.NewTestLogger(t)
	notifier, err := NewNotifier(context.Background(), appCfg)
	require.NoError(t, err)

	handler, err := NewHandler(HandlerOptions{
		AppConfig: appCfg,
		Logger:    log,
		Notifier:  notifier,
	})
	require.NoError(t, err)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(middleware.MethodNotAllowed())
	router.Use(middleware.RequestID(), middleware.Recovery(log), middleware.CORS())
	handler.Register(router)

	return &testEnv{router: router, handler: handler, klaviyo: fakeKlaviyo, quo: fakeQuo}
}

func (e *testEnv) post(t *testing.T, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func attributesOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	attrs, ok := data["attributes"].(map[string]interface{})
	require.True(t, ok)
	return attrs
}

func subscribedProfile(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	profiles := attributesOf(t, body)["profiles"].(map[string]interface{})["data"].([]interface{})
	require.Len(t, profiles, 1)
	return profiles[0].(map[string]interface{})["attributes"].(map[string]interface{})
}

func TestHandle_CreatedWithoutPhone(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	w, resp := env.post(t, `{"email":" A@B.com ","firstName":"Jo","lastName":"Doe"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "01NEW", resp["profile_id"])
	assert.Equal(t, "created", resp["profile_outcome"])
	assert.Equal(t, false, resp["profile_updated"])
	assert.Equal(t, true, resp["klaviyo_subscribed"])
	assert.Equal(t, false, resp["phone_included"])
	assert.Equal(t, "skipped_no_phone", resp["sms_status"])
	assert.Equal(t, false, resp["quo_sms_sent"])
	assert.Equal(t, "Thank you for your nomination!", resp["message"])
	assert.NotEmpty(t, resp["request_id"])
	debug := resp["debug"].(map[string]interface{})
	assert.Contains(t, debug, "klaviyo_error")
	assert.Nil(t, debug["klaviyo_error"])
	assert.Nil(t, debug["quo_error"])

	profileAttrs := attributesOf(t, env.klaviyo.lastBody(t, createProfileKey))
	assert.Equal(t, "a@b.com", profileAttrs["email"])
	assert.NotContains(t, profileAttrs, "phone_number")
	props := profileAttrs["properties"].(map[string]interface{})
	assert.Equal(t, "Choose for me", props["Cause Name"])
	assert.Equal(t, "Cause Nomination Form", props["Source"])
	assert.NotEmpty(t, props["signup_date"])

	sub := subscribedProfile(t, env.klaviyo.lastBody(t, subscribeKey))
	assert.Equal(t, "a@b.com", sub["email"])
	assert.NotContains(t, sub, "phone_number")
	assert.NotContains(t, sub["subscriptions"], "sms")

	assert.Equal(t, 0, env.quo.total())
	assert.Equal(t, 0, env.klaviyo.count("PATCH /api/profiles/01NEW/"))
}

func TestHandle_ConflictPatchesExistingProfile(t *testing.T) {
	env := newTestEnv(t, nil, map[string]func() (int, string){
		createProfileKey: reply(http.StatusConflict, `{"errors":[{"code":"duplicate_profile","meta":{"duplicate_profile_id":"01DUP"}}]}`),
		"PATCH /api/profiles/01DUP/": reply(http.StatusOK, `{"data":{"id":"01DUP"}}`),
	}, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","causeName":"River Cleanup"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "01DUP", resp["profile_id"])
	assert.Equal(t, "already_exists", resp["profile_outcome"])
	assert.Equal(t, true, resp["profile_updated"])
	assert.Equal(t, 1, env.klaviyo.count("PATCH /api/profiles/01DUP/"))

	patch := env.klaviyo.lastBody(t, "PATCH /api/profiles/01DUP/")
	assert.Equal(t, "01DUP", patch["data"].(map[string]interface{})["id"])
	props := attributesOf(t, patch)["properties"].(map[string]interface{})
	assert.Equal(t, "River Cleanup", props["Cause Name"])
	assert.NotEmpty(t, props["last_nomination_date"])
}

func TestHandle_ConflictUpdateFailureIsReported(t *testing.T) {
	env := newTestEnv(t, nil, map[string]func() (int, string){
		createProfileKey: reply(http.StatusConflict, `{"errors":[{"meta":{"duplicate_profile_id":"01DUP"}}]}`),
		"PATCH /api/profiles/01DUP/": reply(http.StatusBadRequest, `{"errors":[{"detail":"bad phone"}]}`),
	}, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["profile_updated"])
	assert.Equal(t, true, resp["klaviyo_subscribed"])
	assert.Contains(t, resp["debug"].(map[string]interface{})["klaviyo_error"], "profile update")
}

func TestHandle_SubscriptionFailureStill200(t *testing.T) {
	env := newTestEnv(t, nil, map[string]func() (int, string){
		subscribeKey: reply(http.StatusBadRequest, `{"errors":[{"detail":"list not found"}]}`),
	}, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["klaviyo_subscribed"])
	assert.Contains(t, resp["debug"].(map[string]interface{})["klaviyo_error"], "list not found")
}

func TestHandle_PhoneWithSMS(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"(555) 123-4567","causeName":"River Cleanup"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["phone_included"])
	assert.Equal(t, "sent", resp["sms_status"])
	assert.Equal(t, true, resp["quo_sms_sent"])

	assert.Equal(t, "+15551234567", attributesOf(t, env.klaviyo.lastBody(t, createProfileKey))["phone_number"])

	sub := subscribedProfile(t, env.klaviyo.lastBody(t, subscribeKey))
	assert.Equal(t, "+15551234567", sub["phone_number"])
	assert.Contains(t, sub["subscriptions"], "sms")

	require.Equal(t, 1, env.quo.count(quoMessagesKey))
	msg := env.quo.lastBody(t, quoMessagesKey)
	assert.Equal(t, []interface{}{"+15551234567"}, msg["to"])
	assert.Contains(t, msg["content"], `Hi Jo!`)
	assert.Contains(t, msg["content"], `"River Cleanup"`)
	assert.Equal(t, "done", msg["setInboxStatus"])
}

func TestHandle_InvalidPhoneIsDropped(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"12345"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["phone_included"])
	assert.Equal(t, "skipped_no_phone", resp["sms_status"])
	assert.NotContains(t, attributesOf(t, env.klaviyo.lastBody(t, createProfileKey)), "phone_number")
	assert.Equal(t, 0, env.quo.total())
}

func TestHandle_OptionalFieldsNeverReject(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	longWhy := strings.Repeat("w", 5001)
	body, err := json.Marshal(map[string]string{
		"email":     "a@b.com",
		"firstName": "Jo",
		"lastName":  "Doe",
		"phone":     "555-123-4567 (please call after 6pm, mobile, thanks!!)",
		"causeName": strings.Repeat("n", 300),
		"causeWhy":  longWhy,
	})
	require.NoError(t, err)

	w, resp := env.post(t, string(body))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["phone_included"])
	assert.Equal(t, "skipped_no_phone", resp["sms_status"])

	props := attributesOf(t, env.klaviyo.lastBody(t, createProfileKey))["properties"].(map[string]interface{})
	assert.Equal(t, longWhy, props["Cause Why"])
	assert.Equal(t, 0, env.quo.total())
}

func TestHandle_LongFormattedPhoneIsNormalized(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"mobile: +1 (555) 123-4567, best reached in the evening"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, resp["phone_included"])
	assert.Equal(t, "+15551234567", attributesOf(t, env.klaviyo.lastBody(t, createProfileKey))["phone_number"])
}

func TestHandle_NoSMSCredentials(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Integrations.Quo.APIKey = ""
	}, nil, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"5551234567"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "skipped_not_configured", resp["sms_status"])
	assert.Equal(t, false, resp["quo_sms_sent"])
	assert.Nil(t, resp["debug"].(map[string]interface{})["quo_error"])
	assert.Equal(t, 0, env.quo.total())
}

func TestHandle_SMSFailureStill200(t *testing.T) {
	env := newTestEnv(t, nil, nil, map[string]func() (int, string){
		quoMessagesKey: reply(http.StatusBadRequest, `{"message":"invalid recipient"}`),
	})

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"5551234567"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", resp["sms_status"])
	assert.Equal(t, false, resp["quo_sms_sent"])
	assert.Contains(t, resp["debug"].(map[string]interface{})["quo_error"], "invalid recipient")
}

func TestHandle_RejectedBeforeAnyOutboundCall(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing firstName", `{"email":"a@b.com","lastName":"Doe"}`, "VALIDATION_FAILED"},
		{"blank lastName", `{"email":"a@b.com","firstName":"Jo","lastName":"   "}`, "VALIDATION_FAILED"},
		{"numeric firstName", `{"email":"a@b.com","firstName":42,"lastName":"Doe"}`, "VALIDATION_FAILED"},
		{"invalid email", `{"email":"not-an-email","firstName":"Jo","lastName":"Doe"}`, "INVALID_EMAIL"},
		{"malformed json", `{"email":`, "INVALID_BODY"},
		{"empty body", ``, "INVALID_BODY"},
		{"array body", `[{"email":"a@b.com"}]`, "INVALID_BODY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, nil, nil)

			w, resp := env.post(t, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, resp["code"])
			assert.NotEmpty(t, resp["error"])
			assert.NotEmpty(t, resp["request_id"])
			assert.Equal(t, 0, env.klaviyo.total())
			assert.Equal(t, 0, env.quo.total())
		})
	}
}

func TestHandle_MissingFieldsMessage(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	_, resp := env.post(t, `{"email":"a@b.com"}`)

	assert.Equal(t, "Missing required fields (email, firstName, lastName)", resp["error"])
}

func TestHandle_ConfigurationMissing(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Integrations.Klaviyo.PrivateKey = ""
	}, nil, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"5551234567"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "CONFIGURATION_MISSING", resp["code"])
	assert.Equal(t, "Server configuration error", resp["error"])
	assert.Contains(t, resp["details"], "KLAVIYO_PRIVATE_KEY")
	assert.NotContains(t, w.Body.String(), "quo_test")
	assert.Equal(t, 0, env.klaviyo.total())
	assert.Equal(t, 0, env.quo.total())
}

func TestHandle_ProfileCreateFailure(t *testing.T) {
	env := newTestEnv(t, nil, map[string]func() (int, string){
		createProfileKey: reply(http.StatusInternalServerError, `upstream down`),
	}, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe","phone":"5551234567"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PROFILE_UPSERT_FAILED", resp["code"])
	assert.Equal(t, 1, env.klaviyo.count(createProfileKey))
	assert.Equal(t, 0, env.klaviyo.count(subscribeKey))
	assert.Equal(t, 0, env.quo.total())
}

func TestHandle_ConflictWithoutIDIsFatal(t *testing.T) {
	env := newTestEnv(t, nil, map[string]func() (int, string){
		createProfileKey: reply(http.StatusConflict, `{"errors":[{"code":"duplicate_profile"}]}`),
	}, nil)

	w, resp := env.post(t, `{"email":"a@b.com","firstName":"Jo","lastName":"Doe"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "PROFILE_UPSERT_FAILED", resp["code"])
	assert.Equal(t, 0, env.klaviyo.count(subscribeKey))
}

func TestRoutes_PreflightAndMethods(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/subscribe", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(method, "/api/subscribe", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Method not allowed", resp["error"])
	}

	assert.Equal(t, 0, env.klaviyo.total())
}

func TestHandler_HealthCheck(t *testing.T) {
	env := newTestEnv(t, nil, nil, nil)

	require.NoError(t, env.handler.HealthCheck(context.Background()))
	assert.Equal(t, 1, env.klaviyo.count(listsKey))

	failing := newTestEnv(t, nil, map[string]func() (int, string){
		listsKey: reply(http.StatusUnauthorized, `{"errors":[]}`),
	}, nil)
	err := failing.handler.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConflictRefresh = "partial"

	_, err := NewHandler(HandlerOptions{CustomConfig: cfg, Logger: logger.NewNoOpLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict_refresh")
}

func TestNewNotifier(t *testing.T) {
	cfg := testAppConfig("http://klaviyo.invalid", "http://quo.invalid")

	n, err := NewNotifier(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "quo", n.Name())
	assert.True(t, n.Configured())

	cfg.Relay.SMS.Provider = config.SMSProviderNone
	n, err = NewNotifier(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, n.Configured())

	cfg.Relay.SMS.Provider = config.SMSProviderSNS
	n, err = NewNotifier(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sns", n.Name())
	assert.False(t, n.Configured())

	cfg.Relay.SMS.Provider = "pigeon"
	_, err = NewNotifier(context.Background(), cfg)
	require.Error(t, err)
}
