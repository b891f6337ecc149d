package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/guest-quantum/guestctl/pkg/guestctl/auth"
	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
	"github.com/guest-quantum/guestctl/pkg/guestctl/config"
)

const (
	testRealm    = "guest"
	testClientID = "guest-cli"
	testUserCode = "ABCD-EFGH"
	realmPrefix  = "/auth/realms/" + testRealm + "/protocol/openid-connect"
)

func configPathForTest(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func tableRows(out string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		rows = append(rows, strings.Fields(line))
	}
	return rows
}

// keyringMock swaps the OS keychain for the in-memory provider.
func keyringMock(t *testing.T) {
	t.Helper()
	keyring.MockInit()
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// fakeBackend serves both the Keycloak realm and the GUEST API.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server
	token  string

	mu          sync.Mutex
	tasks       map[string]client.Task
	results     map[string]string
	requests    []string
	authHeaders []string
	uploads     map[string]string
	batchBody   string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:     t,
		token: signedToken(t, jwt.MapClaims{"sub": "user-1", "preferred_username": "ada"}),
		tasks: map[string]client.Task{
			"t1": {TaskID: "t1", TaskType: "run_two_qubit_circuit", Status: client.StatusSuccess, UserID: "user-1",
				SubmittedAt: "2026-02-11T14:05:09", Duration: client.Number{Value: 12.5, Valid: true}},
			"t2": {TaskID: "t2", TaskType: "run_calibration", Status: client.StatusFailure, UserID: "user-2",
				FailureType: "TIMEOUT"},
			"t3": {TaskID: "t3", TaskType: "simulate_qasm", Status: client.StatusPending, UserID: "user-1"},
		},
		results: map[string]string{"t1": `{"counts":{"00":512,"11":488}}`},
		uploads: map[string]string{},
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) URL() string {
	return b.server.URL
}

func (b *fakeBackend) recorded() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBackend) upload(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploads[name]
}

func (b *fakeBackend) submittedBatch() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batchBody
}

func (b *fakeBackend) lastAuthHeader() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.authHeaders) == 0 {
		return ""
	}
	return b.authHeaders[len(b.authHeaders)-1]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (b *fakeBackend) serveHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, r.Method+" "+r.URL.RequestURI())
	if strings.HasPrefix(r.URL.Path, "/api/") {
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
	}
	b.mu.Unlock()

	switch {
	case r.URL.Path == realmPrefix+"/auth/device":
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":               "dev-1",
			"user_code":                 testUserCode,
			"verification_uri":          b.server.URL + "/device",
			"verification_uri_complete": b.server.URL + "/device?user_code=" + testUserCode,
			"expires_in":                600,
			"interval":                  5,
		})
	case r.URL.Path == realmPrefix+"/token":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": b.token,
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	case r.URL.Path == realmPrefix+"/userinfo":
		writeJSON(w, http.StatusOK, map[string]any{"sub": "user-1", "preferred_username": "ada"})
	case r.URL.Path == "/api/tasks":
		b.mu.Lock()
		list := client.TaskList{}
		for _, id := range []string{"t1", "t2", "t3"} {
			list.Tasks = append(list.Tasks, b.tasks[id])
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, list)
	case strings.HasPrefix(r.URL.Path, "/api/tasks/") && strings.HasSuffix(r.URL.Path, "/download"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "/download")
		b.mu.Lock()
		result, ok := b.results[id]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Result not found"})
			return
		}
		_, _ = io.WriteString(w, result)
	case strings.HasPrefix(r.URL.Path, "/api/tasks/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
		b.mu.Lock()
		task, ok := b.tasks[id]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Task not found"})
			return
		}
		writeJSON(w, http.StatusOK, task)
	case strings.HasPrefix(r.URL.Path, "/api/resubmit_job/"):
		writeJSON(w, http.StatusOK, client.ResubmitResponse{TaskID: "t9", Status: client.StatusPending,
			ResubmittedFrom: strings.TrimPrefix(r.URL.Path, "/api/resubmit_job/")})
	case strings.HasPrefix(r.URL.Path, "/api/cancel_task/"):
		writeJSON(w, http.StatusOK, client.CancelResponse{TaskID: strings.TrimPrefix(r.URL.Path, "/api/cancel_task/"),
			Status: client.StatusRevoked, Message: "Task revoked"})
	case r.URL.Path == "/api/cancel_pending":
		writeJSON(w, http.StatusOK, map[string]any{
			"canceled": []string{"t3"},
			"skipped":  []map[string]string{{"task_id": "t4", "status": client.StatusStarted}},
		})
	case r.URL.Path == "/api/get_module_states":
		writeJSON(w, http.StatusOK, map[string]string{"pulsed_master": "idle", "laser": "locked"})
	case r.URL.Path == "/api/simulate_qasm":
		file, header, err := r.FormFile("qasm_file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		content, _ := io.ReadAll(file)
		b.mu.Lock()
		b.uploads[header.Filename] = string(content)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, client.SubmitResponse{TaskID: "q1", Status: client.StatusPending})
	case r.URL.Path == "/api/run_remote_rabi", r.URL.Path == "/api/run_calibration", r.URL.Path == "/api/run_two_qubit_circuit":
		writeJSON(w, http.StatusOK, client.SubmitResponse{TaskID: "r1", Status: client.StatusPending})
	case r.URL.Path == "/api/submit_two_qubit_batch":
		content, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.batchBody = string(content)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"message":    "Submitted 2 experiments",
			"task_infos": map[string]any{"t1": map[string]any{"name": "bell"}, "t3": map[string]any{"name": "ghz"}},
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": fmt.Sprintf("no route for %s", r.URL.Path)})
	}
}

// testEnv is a config file pointing at a fakeBackend, with every directory the CLI
// writes to placed under a temp dir.
type testEnv struct {
	t          *testing.T
	backend    *fakeBackend
	dir        string
	configPath string
	credPath   string
	clock      clockwork.Clock
	browsed    []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := newFakeBackend(t)
	dir := t.TempDir()
	env := &testEnv{
		t:          t,
		backend:    backend,
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		credPath:   filepath.Join(dir, "credentials", "guest.json"),
		clock:      clockwork.NewRealClock(),
	}
	cfg := config.DefaultConfig()
	cfg.CurrentContext = "guest"
	cfg.Contexts = []config.Context{{
		Name:           "guest",
		Server:         backend.URL(),
		CredentialPath: env.credPath,
		Keycloak:       config.Keycloak{Realm: testRealm, ClientID: testClientID, Scopes: []string{"openid"}},
	}}
	noRetry := 0
	cfg.Settings.RetryCount = &noRetry
	cfg.Settings.ResultsDir = filepath.Join(dir, "results")
	cfg.Settings.ExperimentInfosDir = filepath.Join(dir, "experiment_infos")
	cfg.Settings.BatchResultsDir = filepath.Join(dir, "batch_results")
	require.NoError(t, config.Save(env.configPath, &cfg))
	return env
}

// login stores a credential that stays valid for the given duration.
func (e *testEnv) login(validFor time.Duration) {
	e.t.Helper()
	store := auth.NewFileStore(e.credPath)
	require.NoError(e.t, store.Save(&auth.Credential{
		AccessToken: e.backend.token,
		ExpiresIn:   int64(validFor.Seconds()),
		ExpiresAt:   e.clock.Now().Add(validFor).Unix(),
		TokenType:   "Bearer",
	}))
}

func (e *testEnv) rootConfig(stdout, stderr io.Writer) Config {
	return Config{
		ConfigPath:   e.configPath,
		OutputWriter: stdout,
		ErrWriter:    stderr,
		Clock:        e.clock,
		OpenBrowser: func(url string) error {
			e.browsed = append(e.browsed, url)
			return nil
		},
	}
}

// run executes guestctl with args and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := NewRootCommand(e.rootConfig(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
