package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/repository/postgres"
	"github.com/stampworks/sigforge/internal/service/deployment"
	"github.com/stampworks/sigforge/internal/service/resolution"
	"github.com/stampworks/sigforge/internal/status"
)

type fakeDeployments struct {
	lastOrgID string
	lastReq   deployment.Request
	summary   *deployment.Summary
	startErr  error
	dep       *domain.Deployment
	history   []domain.UserDeploymentHistory
}

func (f *fakeDeployments) StartDeployment(_ context.Context, orgID string, req deployment.Request) (*deployment.Summary, error) {
	f.lastOrgID = orgID
	f.lastReq = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.summary, nil
}

func (f *fakeDeployments) GetDeployment(_ context.Context, orgID, id string) (*domain.Deployment, error) {
	if f.dep == nil || f.dep.ID != id || f.dep.OrganizationID != orgID {
		return nil, deployment.ErrDeploymentNotFound
	}
	return f.dep, nil
}

func (f *fakeDeployments) GetHistory(_ context.Context, _, _ string) ([]domain.UserDeploymentHistory, error) {
	return f.history, nil
}

type fakeResolution struct {
	matched  string
	fallback string
	err      error
}

func (f *fakeResolution) ResolveTemplateForUser(_ context.Context, _, _ string, _ resolution.ContextOverrides) (string, error) {
	return f.matched, f.err
}

func (f *fakeResolution) ResolveWithFallback(_ context.Context, _, _ string, _ resolution.ContextOverrides) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.matched != "" {
		return f.matched, nil
	}
	if f.fallback == "" {
		return "", resolution.ErrNoTemplate
	}
	return f.fallback, nil
}

type fakeRules struct {
	rules map[string]*domain.SignatureRule
}

func newFakeRules() *fakeRules {
	return &fakeRules{rules: make(map[string]*domain.SignatureRule)}
}

func (f *fakeRules) List(_ context.Context, orgID string) ([]domain.SignatureRule, error) {
	var out []domain.SignatureRule
	for _, r := range f.rules {
		if r.OrganizationID == orgID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRules) Get(_ context.Context, orgID, id string) (*domain.SignatureRule, error) {
	r, ok := f.rules[id]
	if !ok || r.OrganizationID != orgID {
		return nil, postgres.ErrRuleNotFound
	}
	return r, nil
}

func (f *fakeRules) Create(_ context.Context, r *domain.SignatureRule) (string, error) {
	id := "rule-new"
	cp := *r
	cp.ID = id
	f.rules[id] = &cp
	return id, nil
}

func (f *fakeRules) Update(_ context.Context, orgID string, r *domain.SignatureRule) error {
	if _, ok := f.rules[r.ID]; !ok {
		return postgres.ErrRuleNotFound
	}
	cp := *r
	cp.OrganizationID = orgID
	f.rules[r.ID] = &cp
	return nil
}

func (f *fakeRules) Delete(_ context.Context, orgID, id string) error {
	r, ok := f.rules[id]
	if !ok || r.OrganizationID != orgID {
		return postgres.ErrRuleNotFound
	}
	delete(f.rules, id)
	return nil
}

type fakeProgress struct {
	p  status.Progress
	ok bool
}

func (f *fakeProgress) Get(_ context.Context, _ string) (status.Progress, bool, error) {
	return f.p, f.ok, nil
}

func newTestServer(d *fakeDeployments, res *fakeResolution, rules *fakeRules, p ProgressReader) http.Handler {
	if d == nil {
		d = &fakeDeployments{}
	}
	if res == nil {
		res = &fakeResolution{}
	}
	if rules == nil {
		rules = newFakeRules()
	}
	return NewServer(d, res, rules, p).Routes(nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func orgHeaders() map[string]string {
	return map[string]string{
		"X-Organization-ID": "org-1",
		"X-User-ID":         "auth-1",
		"X-User-Email":      "caller@acme.com",
		"X-User-Name":       "Casey Caller",
	}
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestServer(nil, nil, nil, nil), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingOrgHeaderRejected(t *testing.T) {
	rec := doJSON(t, newTestServer(nil, nil, nil, nil), http.MethodGet, "/api/rules/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartDeployment(t *testing.T) {
	d := &fakeDeployments{summary: &deployment.Summary{
		DeploymentID: "dep-1",
		Status:       domain.DeploymentCompleted,
		Total:        3,
		Successful:   3,
	}}
	h := newTestServer(d, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/deployments/", `{
		"template_id": "tpl-1",
		"target_mode": "selected",
		"selected_ids": ["u1", "u2", "u3"],
		"use_rules": true,
		"email": {"email_type": "new", "recipients": ["x@other.com"], "subject": "Q3 report"}
	}`, orgHeaders())

	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "org-1", d.lastOrgID)
	assert.Equal(t, "tpl-1", d.lastReq.TemplateID)
	assert.Equal(t, domain.TargetSelected, d.lastReq.TargetMode)
	assert.Equal(t, "auth-1", d.lastReq.CallerAuthID)
	assert.Equal(t, "caller@acme.com", d.lastReq.CallerEmail)
	assert.True(t, d.lastReq.Email.HasSubject)
	assert.Equal(t, "Q3 report", d.lastReq.Email.Subject)

	var got deployment.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "dep-1", got.DeploymentID)
	assert.Equal(t, 3, got.Successful)
}

func TestStartDeploymentNoSubjectStaysUnset(t *testing.T) {
	d := &fakeDeployments{summary: &deployment.Summary{DeploymentID: "dep-1"}}
	h := newTestServer(d, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/deployments/", `{
		"template_id": "tpl-1",
		"target_mode": "me",
		"email": {"email_type": "new"}
	}`, orgHeaders())

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, d.lastReq.Email.HasSubject)
}

func TestStartDeploymentErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing template", deployment.ErrMissingTemplateID, http.StatusBadRequest},
		{"bad mode", deployment.ErrInvalidTargetMode, http.StatusBadRequest},
		{"no targets", deployment.ErrNoTargets, http.StatusBadRequest},
		{"foreign template", deployment.ErrTemplateNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestServer(&fakeDeployments{startErr: tc.err}, nil, nil, nil)
			rec := doJSON(t, h, http.MethodPost, "/api/deployments/",
				`{"template_id":"tpl-1","target_mode":"all"}`, orgHeaders())
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetDeploymentMergesLiveProgress(t *testing.T) {
	d := &fakeDeployments{dep: &domain.Deployment{
		ID:             "dep-1",
		OrganizationID: "org-1",
		Status:         domain.DeploymentRunning,
		TotalUsers:     10,
		StartedAt:      time.Now(),
	}}
	p := &fakeProgress{p: status.Progress{Total: 10, Successful: 4, Failed: 1}, ok: true}
	h := newTestServer(d, nil, nil, p)

	rec := doJSON(t, h, http.MethodGet, "/api/deployments/dep-1", "", orgHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		ID   string `json:"id"`
		Live *struct {
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
			Pending    int `json:"pending"`
		} `json:"live"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "dep-1", got.ID)
	require.NotNil(t, got.Live)
	assert.Equal(t, 4, got.Live.Successful)
	assert.Equal(t, 5, got.Live.Pending)
}

func TestGetDeploymentFinishedSkipsLive(t *testing.T) {
	d := &fakeDeployments{dep: &domain.Deployment{
		ID:             "dep-1",
		OrganizationID: "org-1",
		Status:         domain.DeploymentCompleted,
	}}
	p := &fakeProgress{p: status.Progress{Total: 10}, ok: true}
	h := newTestServer(d, nil, nil, p)

	rec := doJSON(t, h, http.MethodGet, "/api/deployments/dep-1", "", orgHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"live"`)
}

func TestGetDeploymentOtherOrg(t *testing.T) {
	d := &fakeDeployments{dep: &domain.Deployment{ID: "dep-1", OrganizationID: "org-2"}}
	h := newTestServer(d, nil, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/deployments/dep-1", "", orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveRuleMatch(t *testing.T) {
	h := newTestServer(nil, &fakeResolution{matched: "tpl-sales"}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/resolve",
		`{"user_id":"u1","email":{"email_type":"new","recipients":["x@other.com"]}}`, orgHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var got resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "tpl-sales", got.TemplateID)
	assert.True(t, got.RuleMatched)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	h := newTestServer(nil, &fakeResolution{fallback: "tpl-default"}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/resolve", `{"user_id":"u1"}`, orgHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var got resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "tpl-default", got.TemplateID)
	assert.False(t, got.RuleMatched)
}

func TestResolveNoTemplateAnywhere(t *testing.T) {
	h := newTestServer(nil, &fakeResolution{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/resolve", `{"user_id":"u1"}`, orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveUnknownUser(t *testing.T) {
	h := newTestServer(nil, &fakeResolution{err: resolution.ErrUserNotFound}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/resolve", `{"user_id":"ghost"}`, orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveMissingUserID(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/resolve", `{}`, orgHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleCRUD(t *testing.T) {
	rules := newFakeRules()
	h := newTestServer(nil, nil, rules, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/rules/", `{
		"name": "sales outbound",
		"template_id": "tpl-sales",
		"priority": 10,
		"is_active": true,
		"sender_condition": "specific_departments",
		"sender_departments": ["Sales"],
		"email_type": "new",
		"recipient_condition": "at_least_one_external"
	}`, orgHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.SignatureRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "rule-new", created.ID)
	assert.Equal(t, "org-1", created.OrganizationID)

	rec = doJSON(t, h, http.MethodGet, "/api/rules/rule-new", "", orgHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/rules/rule-new", `{
		"name": "sales outbound v2",
		"template_id": "tpl-sales",
		"priority": 20,
		"is_active": true,
		"sender_condition": "all",
		"email_type": "all",
		"recipient_condition": "all"
	}`, orgHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, rules.rules["rule-new"].Priority)

	rec = doJSON(t, h, http.MethodDelete, "/api/rules/rule-new", "", orgHeaders())
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/rules/rule-new", "", orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleRejectsBadEnum(t *testing.T) {
	h := newTestServer(nil, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/rules/", `{
		"template_id": "tpl-1",
		"sender_condition": "everyone",
		"email_type": "all",
		"recipient_condition": "all"
	}`, orgHeaders())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleOrgIsolation(t *testing.T) {
	rules := newFakeRules()
	rules.rules["rule-x"] = &domain.SignatureRule{ID: "rule-x", OrganizationID: "org-2"}
	h := newTestServer(nil, nil, rules, nil)

	rec := doJSON(t, h, http.MethodGet, "/api/rules/rule-x", "", orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/rules/rule-x", "", orgHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
