package server

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sonaguard/sonaguard/classifier"
	"github.com/sonaguard/sonaguard/dataset"
)

const testAPIKey = "shared-test-service-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	samples, labels := dataset.Synthesize(dataset.SynthOptions{NumAI: 150, NumHuman: 150, Seed: 5})
	opts := classifier.DefaultTrainOptions()
	opts.Forest.NumTrees = 20

	model, _, err := classifier.Train(samples, labels, opts)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	if err := model.Save(modelPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Model.Path = modelPath
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Auth.JWTSecret = "test-secret-long-enough-for-hmac"
	cfg.Auth.APIKey = testAPIKey

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv
}

func sineWAVBase64(freq float64, durationSec float64) string {
	sampleRate := 16000
	n := int(durationSec * float64(sampleRate))
	dataSize := n * 2
	buf := make([]byte, 0, 44+dataSize)

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*2))...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(dataSize))...)

	for i := range n {
		v := int16(0.7 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		buf = append(buf, byte(v), byte(v>>8))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestDetectRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/detect",
		map[string]string{"audio_base64": sineWAVBase64(220, 1.0)}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDetectWithSharedKey(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/detect",
		map[string]string{"audio_base64": sineWAVBase64(220, 2.0)},
		map[string]string{"X-API-Key": testAPIKey})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RequestID  string  `json:"request_id"`
		Prediction string  `json:"prediction"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}

	if resp.RequestID == "" {
		t.Error("missing request_id")
	}
	if resp.Prediction != classifier.LabelAIGenerated && resp.Prediction != classifier.LabelHuman {
		t.Errorf("unexpected prediction %q", resp.Prediction)
	}
	if resp.Confidence < 0.5 || resp.Confidence > 1.0 {
		t.Errorf("confidence %f outside [0.5, 1.0]", resp.Confidence)
	}
}

func TestDetectClientErrors(t *testing.T) {
	srv := newTestServer(t)
	auth := map[string]string{"X-API-Key": testAPIKey}

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing audio field",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_AUDIO",
		},
		{
			name:       "invalid base64",
			body:       map[string]string{"audio_base64": "!!! not base64 !!!"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "garbage audio",
			body:       map[string]string{"audio_base64": base64.StdEncoding.EncodeToString([]byte("not audio"))},
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSUPPORTED_FORMAT",
		},
		{
			name:       "too short",
			body:       map[string]string{"audio_base64": sineWAVBase64(220, 0.1)},
			wantStatus: http.StatusBadRequest,
			wantCode:   "AUDIO_TOO_SHORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/api/v1/detect", tt.body, auth)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}

			var resp errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad error body: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	// Register
	w := doJSON(t, srv, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": "tester@example.com", "password": "password123"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var reg tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatalf("bad register body: %v", err)
	}
	if reg.AccessToken == "" || reg.APIKey == "" {
		t.Fatal("register response missing credentials")
	}

	// Duplicate registration is refused
	w = doJSON(t, srv, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": "tester@example.com", "password": "password123"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate register: expected 400, got %d", w.Code)
	}

	// Weak password is refused by validation
	w = doJSON(t, srv, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"email": "other@example.com", "password": "short"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("weak password: expected 400, got %d", w.Code)
	}

	// Login with wrong password
	w = doJSON(t, srv, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "tester@example.com", "password": "wrongpassword"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", w.Code)
	}

	// Login with correct password
	w = doJSON(t, srv, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "tester@example.com", "password": "password123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var login tokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("bad login body: %v", err)
	}

	// Authenticated profile lookup
	w = doJSON(t, srv, http.MethodGet, "/api/v1/auth/me", nil,
		map[string]string{"Authorization": "Bearer " + login.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Detect with the per-user API key, then check it shows up in history
	w = doJSON(t, srv, http.MethodPost, "/api/v1/detect",
		map[string]string{"audio_base64": sineWAVBase64(200, 1.5)},
		map[string]string{"X-API-Key": reg.APIKey})
	if w.Code != http.StatusOK {
		t.Fatalf("detect with user key: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/history", nil,
		map[string]string{"Authorization": "Bearer " + login.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var history struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("bad history body: %v", err)
	}
	if history.Total != 1 {
		t.Errorf("expected 1 history entry, got %d", history.Total)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/stats", nil,
		map[string]string{"Authorization": "Bearer " + login.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDashboardRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/stats", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/stats", nil,
		map[string]string{"Authorization": "Bearer invalid.token.here"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", w.Code)
	}
}

func TestNewFailsWithoutModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.json")

	if _, err := New(cfg); err == nil {
		t.Fatal("expected startup to fail without a model artifact")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Limits.MaxConcurrentExtractions < 1 {
		t.Error("default concurrency bound invalid")
	}

	t.Setenv("PORT", "9000")
	t.Setenv("SONAGUARD_JWT_SECRET", "another-secret-long-enough-here")

	loaded, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Server.Port != 9000 {
		t.Errorf("PORT override ignored, got %d", loaded.Server.Port)
	}
	if loaded.Auth.JWTSecret != "another-secret-long-enough-here" {
		t.Error("JWT secret override ignored")
	}
}
