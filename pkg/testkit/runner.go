package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	pkghttp "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
)

// ─── Session ──────────────────────────────────────────────────────────────────

// Session runs scenarios against one handler and carries captured
// variables from one scenario to the next.
type Session struct {
	handler http.Handler

	mu   sync.Mutex
	vars map[string]string
}

func NewSession(handler http.Handler) *Session {
	return &Session{handler: handler, vars: map[string]string{}}
}

// Set stores a variable. Test adapters use it to hand values the API never
// returns, such as a mailed verification code, to later scenarios.
func (s *Session) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// Get returns a variable, or "" when unset.
func (s *Session) Get(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars[name]
}

// expand substitutes ${name} references and reports unknown names.
func (s *Session) expand(in string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	out := os.Expand(in, func(name string) string {
		v, ok := s.vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("undefined variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Run executes the scenario file at path as a subtest.
func (s *Session) Run(t *testing.T, path string) {
	t.Helper()

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", path, err)
	}
	t.Run(sc.Name, func(t *testing.T) {
		s.runScenario(t, sc)
	})
}

// RunDir runs every *.json file in dir in name order. Once a scenario
// fails the rest are skipped, since they usually depend on its captures.
func (s *Session) RunDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := scenarioFiles(dir)
	if err != nil {
		t.Fatal(err)
	}

	failed := ""
	for _, path := range entries {
		sc, err := LoadScenario(path)
		if err != nil {
			t.Errorf("testkit: load %q: %v", path, err)
			continue
		}
		t.Run(sc.Name, func(t *testing.T) {
			if failed != "" {
				t.Skipf("skipped after %q failed", failed)
			}
			s.runScenario(t, sc)
			if t.Failed() {
				failed = sc.Name
			}
		})
	}
}

// Run executes a single scenario file in a fresh session.
func Run(t *testing.T, handler http.Handler, scenarioPath string) {
	t.Helper()
	NewSession(handler).Run(t, scenarioPath)
}

// RunDir runs every scenario in dir in one fresh session.
func RunDir(t *testing.T, handler http.Handler, dir string) {
	t.Helper()
	NewSession(handler).RunDir(t, dir)
}

// ─── Internal execution ───────────────────────────────────────────────────────

// runScenario:
//  1. Expands the request against captured variables.
//  2. Installs the scenario's HTTP mocks on the shared pkg/http client.
//  3. Arms function mocks (sendmail, notification).
//  4. Fires the request and asserts status, envelope code and body.
//  5. Checks every active mock ran, then captures response values.
func (s *Session) runScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	url, err := s.expand(sc.RequestURL)
	if err != nil {
		t.Fatalf("[%s] requestUrl: %v", sc.Name, err)
	}

	var reqBody io.Reader
	raw, err := sc.requestBody()
	if err != nil {
		t.Fatalf("[%s] read request body: %v", sc.Name, err)
	}
	if len(raw) > 0 {
		body, err := s.expand(string(raw))
		if err != nil {
			t.Fatalf("[%s] request body: %v", sc.Name, err)
		}
		reqBody = strings.NewReader(body)
	}

	mt, err := NewScenarioTransport(sc)
	if err != nil {
		t.Fatalf("[%s] %v", sc.Name, err)
	}
	original := pkghttp.DefaultClient.Transport
	pkghttp.DefaultClient.Transport = mt
	defer func() { pkghttp.DefaultClient.Transport = original }()

	resetAllMockers()
	defer resetAllMockers()
	if err := ActivateFuncMocks(sc); err != nil {
		t.Fatalf("[%s] activate func mocks: %v", sc.Name, err)
	}

	req := httptest.NewRequest(strings.ToUpper(sc.RequestMethod), url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sc.BearerToken != "" {
		token, err := s.expand(sc.BearerToken)
		if err != nil {
			t.Fatalf("[%s] bearerToken: %v", sc.Name, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range sc.Headers {
		ev, err := s.expand(v)
		if err != nil {
			t.Fatalf("[%s] header %s: %v", sc.Name, k, err)
		}
		req.Header.Set(k, ev)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	got := rec.Body.Bytes()

	AssertStatusCode(t, sc, rec.Code, got)
	AssertErrorCode(t, sc, got)

	expected, err := sc.expectedBody()
	if err != nil {
		t.Errorf("[%s] read expected body: %v", sc.Name, err)
	} else if len(expected) > 0 {
		exp, err := s.expand(string(expected))
		if err != nil {
			t.Errorf("[%s] expected body: %v", sc.Name, err)
		} else {
			AssertJSONBody(t, sc, []byte(exp), got)
		}
	}

	AssertMocksAllCalled(t, sc, mt)

	if len(sc.Capture) > 0 {
		s.capture(t, sc, got)
	}
}

func (s *Session) capture(t *testing.T, sc *Scenario, body []byte) {
	t.Helper()
	var doc any
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		t.Errorf("[%s] capture: response is not JSON: %v", sc.Name, err)
		return
	}
	for name, path := range sc.Capture {
		v, ok := Lookup(doc, path)
		if !ok {
			t.Errorf("[%s] capture %s: no value at %q", sc.Name, name, path)
			continue
		}
		s.Set(name, v)
	}
}

// ─── Debug helpers ────────────────────────────────────────────────────────────

// DumpScenario prints a summary of the scenario to stdout.
func DumpScenario(s *Scenario) {
	fmt.Printf("Scenario: %s\n", s.Name)
	fmt.Printf("  %s %s → %d %s\n", s.RequestMethod, s.RequestURL, s.ExpectedCode, s.ExpectedErrorCode)
	fmt.Printf("  requestFile:  %s\n", s.RequestFileName)
	fmt.Printf("  responseFile: %s\n", s.ResponseFileName)
	fmt.Printf("  isMockRequired: %v\n", s.IsMockRequired)
	for i, step := range s.NetUtilMockStep {
		fmt.Printf("  mockStep[%d]: method=%s  isMock=%v  match=%s %q\n",
			i, step.Method, step.IsMock, step.MatchMethod, step.MatchURL)
	}
	for name, path := range s.Capture {
		fmt.Printf("  capture: %s <- %s\n", name, path)
	}
}
