package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"coopline/internal/config"
	"coopline/internal/db"
	"coopline/internal/engine"
	"coopline/internal/migrate"
)

const testJWTSecret = "test-secret"

func newTestServer(t *testing.T) (string, engine.Engine) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("default")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) }

	handler, err := New(Config{
		Engine:   eng,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return "http://" + ln.Addr().String(), eng
}

type errEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func asActor(actor string) map[string]string {
	return map[string]string{"X-Actor-Id": actor}
}

func decodeErr(t *testing.T, data []byte) errEnvelope {
	t.Helper()
	var env errEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode error envelope from %s: %v", data, err)
	}
	return env
}

func TestHealthIsPublic(t *testing.T) {
	base, _ := newTestServer(t)
	status, _ := doJSON(t, http.MethodGet, base+"/v0/health", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("health status %d", status)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	base, _ := newTestServer(t)
	status, data := doJSON(t, http.MethodGet, base+"/v0/positions", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", status, data)
	}
	env := decodeErr(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	base, _ := newTestServer(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "jwt-actor"})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	status, data := doJSON(t, http.MethodGet, base+"/v0/positions", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", status, data)
	}
	status, _ = doJSON(t, http.MethodGet, base+"/v0/positions", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	base, _ := newTestServer(t)
	status, data := doJSON(t, http.MethodPost, base+"/v0/api-keys", map[string]any{
		"actor_id": "svc-registrar",
		"name":     "registrar",
		"key":      "sk-test-123",
	}, asActor("admin"))
	if status != http.StatusCreated {
		t.Fatalf("create api key: %d %s", status, data)
	}
	status, data = doJSON(t, http.MethodGet, base+"/v0/positions", nil, map[string]string{
		"X-Api-Key": "sk-test-123",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d: %s", status, data)
	}
	status, _ = doJSON(t, http.MethodGet, base+"/v0/positions", nil, map[string]string{
		"X-Api-Key": "sk-wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with unknown api key, got %d", status)
	}
}

func TestPositionValidationEnvelope(t *testing.T) {
	base, _ := newTestServer(t)
	status, data := doJSON(t, http.MethodPost, base+"/v0/positions", map[string]any{
		"employer_id":    "acme",
		"title":          "",
		"description":    "",
		"weeks":          -1,
		"hours_per_week": 0,
	}, asActor("employer"))
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, data)
	}
	env := decodeErr(t, data)
	if env.Error.Code != "validation_error" {
		t.Fatalf("unexpected code %q: %s", env.Error.Code, data)
	}
	for _, field := range []string{"title", "description", "weeks", "hours_per_week"} {
		if _, ok := env.Error.Details[field]; !ok {
			t.Fatalf("expected %s in details: %s", field, data)
		}
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	base, _ := newTestServer(t)

	status, data := doJSON(t, http.MethodPost, base+"/v0/students", map[string]any{
		"id":                  "s1",
		"full_name":           "Ada Park",
		"email":               "ada@campus.test",
		"department":          "CS",
		"gpa":                 3.4,
		"completed_semesters": 3,
	}, asActor("registrar"))
	if status != http.StatusCreated {
		t.Fatalf("register student: %d %s", status, data)
	}
	status, data = doJSON(t, http.MethodPost, base+"/v0/students", map[string]any{
		"id":                  "s2",
		"full_name":           "Ben Ito",
		"email":               "ben@campus.test",
		"department":          "CS",
		"gpa":                 3.1,
		"completed_semesters": 2,
	}, asActor("registrar"))
	if status != http.StatusCreated {
		t.Fatalf("register student: %d %s", status, data)
	}
	status, data = doJSON(t, http.MethodPost, base+"/v0/faculty", map[string]any{
		"id":         "f-cs",
		"full_name":  "Dr. Cho",
		"email":      "cho@campus.test",
		"department": "CS",
	}, asActor("registrar"))
	if status != http.StatusCreated {
		t.Fatalf("register faculty: %d %s", status, data)
	}
	status, data = doJSON(t, http.MethodPost, base+"/v0/faculty", map[string]any{
		"id":         "f-ee",
		"full_name":  "Dr. Patel",
		"email":      "patel@campus.test",
		"department": "EE",
	}, asActor("registrar"))
	if status != http.StatusCreated {
		t.Fatalf("register faculty: %d %s", status, data)
	}

	status, data = doJSON(t, http.MethodPost, base+"/v0/positions", map[string]any{
		"id":             "p1",
		"employer_id":    "acme",
		"title":          "Intern",
		"description":    "Summer internship",
		"weeks":          10,
		"hours_per_week": 20,
	}, asActor("employer"))
	if status != http.StatusCreated {
		t.Fatalf("open position: %d %s", status, data)
	}

	for _, student := range []string{"s1", "s2"} {
		status, data = doJSON(t, http.MethodPost, base+"/v0/positions/p1/applications", map[string]any{
			"student_id": student,
		}, asActor(student))
		if status != http.StatusCreated {
			t.Fatalf("apply %s: %d %s", student, status, data)
		}
	}

	// duplicate application conflicts with the one-per-position rule
	status, data = doJSON(t, http.MethodPost, base+"/v0/positions/p1/applications", map[string]any{
		"student_id": "s1",
	}, asActor("s1"))
	if status != http.StatusBadRequest {
		t.Fatalf("duplicate apply: %d %s", status, data)
	}

	status, data = doJSON(t, http.MethodPost, base+"/v0/positions/p1/select", map[string]any{
		"selected_student_id": "s1",
	}, asActor("employer"))
	if status != http.StatusOK {
		t.Fatalf("select: %d %s", status, data)
	}
	var app struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	if app.Status != "awaiting_student_decision" {
		t.Fatalf("expected awaiting_student_decision, got %s", app.Status)
	}

	// a second select loses to the first
	status, data = doJSON(t, http.MethodPost, base+"/v0/positions/p1/select", map[string]any{
		"selected_student_id": "s2",
	}, asActor("employer"))
	if status != http.StatusConflict {
		t.Fatalf("second select: %d %s", status, data)
	}
	env := decodeErr(t, data)
	if env.Error.Code != "invalid_transition" {
		t.Fatalf("unexpected code %q: %s", env.Error.Code, data)
	}

	acceptURL := fmt.Sprintf("%s/v0/applications/%s/accept", base, app.ID)
	status, data = doJSON(t, http.MethodPost, acceptURL, nil, asActor("s1"))
	if status != http.StatusOK {
		t.Fatalf("accept: %d %s", status, data)
	}

	// grading before the summary is on file conflicts
	gradeURL := fmt.Sprintf("%s/v0/applications/%s/grade", base, app.ID)
	status, data = doJSON(t, http.MethodPost, gradeURL, map[string]any{
		"grade":          "A",
		"coordinator_id": "f-cs",
	}, asActor("f-cs"))
	if status != http.StatusConflict {
		t.Fatalf("grade before summary: %d %s", status, data)
	}

	summaryURL := fmt.Sprintf("%s/v0/applications/%s/summary", base, app.ID)
	status, data = doJSON(t, http.MethodPost, summaryURL, map[string]any{
		"summary_text": "Built the reporting pipeline.",
	}, asActor("s1"))
	if status != http.StatusOK {
		t.Fatalf("summary: %d %s", status, data)
	}

	// a coordinator from another department is forbidden
	status, data = doJSON(t, http.MethodPost, gradeURL, map[string]any{
		"grade":          "A",
		"coordinator_id": "f-ee",
	}, asActor("f-ee"))
	if status != http.StatusForbidden {
		t.Fatalf("cross-department grade: %d %s", status, data)
	}

	status, data = doJSON(t, http.MethodPost, gradeURL, map[string]any{
		"grade":          "A",
		"coordinator_id": "f-cs",
	}, asActor("f-cs"))
	if status != http.StatusOK {
		t.Fatalf("grade: %d %s", status, data)
	}
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	if app.Status != "graded" {
		t.Fatalf("expected graded, got %s", app.Status)
	}

	status, data = doJSON(t, http.MethodGet, base+"/v0/coop/review?department=CS", nil, asActor("f-cs"))
	if status != http.StatusOK {
		t.Fatalf("review: %d %s", status, data)
	}
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode review: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one review item, got %d: %s", len(items), data)
	}

	status, data = doJSON(t, http.MethodGet, base+"/v0/events?entity_kind=application", nil, asActor("f-cs"))
	if status != http.StatusOK {
		t.Fatalf("events: %d %s", status, data)
	}
	var events []map[string]any
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("expected events, got none")
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	base, _ := newTestServer(t)
	status, data := doJSON(t, http.MethodGet, base+"/v0/positions/missing", nil, asActor("anyone"))
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", status, data)
	}
	env := decodeErr(t, data)
	if env.Error.Code != "not_found" {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
}
