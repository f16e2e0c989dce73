// Package testkit drives REST API tests from JSON scenario files and holds
// helpers for tests that make outgoing HTTP calls.
//
// Each scenario is a JSON file that describes:
//   - The request to fire (method, URL, bearer token, body)
//   - The expected status and envelope error code
//   - An optional expected body, matched as a subset of the response
//   - Mock steps for outgoing HTTP calls (Square) and side effects (mail)
//   - Values to capture from the response for later scenarios
//
// Scenario files live next to the *_test.go files and run in name order,
// so a flow can be split across numbered files:
//
//	testdata/checkout/
//	  01_request_code.json
//	  02_verify_email.json      captures data.token as ${token}
//	  03_create_order.json      captures data.id as ${orderId}
//	  04_pay.json
//
// Example _test.go:
//
//	func TestCheckoutScenarios(t *testing.T) {
//	    testkit.RunDir(t, app.Handler(), "testdata/checkout")
//	}
package testkit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ─── Schema ───────────────────────────────────────────────────────────────────

// Scenario describes a single REST API test case loaded from a JSON file.
//
// RequestURL, BearerToken, Headers, the request body and the expected body
// may reference captured values as ${name}.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Request
	RequestMethod   string            `json:"requestMethod"`
	RequestURL      string            `json:"requestUrl"`
	RequestFileName string            `json:"requestFileName"` // relative to the scenario file
	RequestBody     json.RawMessage   `json:"requestBody"`     // inline alternative to requestFileName
	BearerToken     string            `json:"bearerToken"`
	Headers         map[string]string `json:"headers"`

	// Response assertions
	ExpectedCode       int             `json:"expectedCode"`
	ExpectedStatusCode int             `json:"expectedStatusCode"` // alias for expectedCode
	ExpectedErrorCode  string          `json:"expectedErrorCode"`  // envelope "code"
	ResponseFileName   string          `json:"responseFileName"`
	ExpectedBody       json.RawMessage `json:"expectedBody"` // inline alternative to responseFileName

	// Capture maps a variable name to a dotted path in the response body,
	// e.g. {"token": "data.token"}.
	Capture map[string]string `json:"capture"`

	// IsMockRequired fails the scenario when a step names a mocker that
	// is not registered.
	IsMockRequired bool `json:"isMockRequired"`

	// Mock steps, matched in definition order.
	NetUtilMockStep []MockStep `json:"netUtilMockStep"`

	dir string
}

// MockStep describes one intercepted outgoing call.
//
// Built-in methods:
//
//	"httprequest"  answered by MockTransport on the shared pkg/http client
//	"sendmail"     verification and receipt mail
//	"notification" Slack and push notifications
//
// Any other string is dispatched to a registered FuncMocker.
type MockStep struct {
	Method string `json:"method"`

	// IsMock turns the step on. Steps with isMock=false only document a
	// dependency and are skipped.
	IsMock bool `json:"isMock"`

	// MatchMethod and MatchURL select outgoing HTTP requests. MatchURL is a
	// prefix; empty matches any URL.
	MatchMethod string `json:"matchMethod"`
	MatchURL    string `json:"matchUrl"`

	ReturnData MockReturnData `json:"returnData"`
}

// MockReturnData is the synthetic response for a mock step.
type MockReturnData struct {
	// StatusCode for "httprequest" mocks. Defaults to 200.
	StatusCode int `json:"statusCode"`

	// Body is base64-encoded. For "httprequest" it is the response body;
	// function mocks receive it decoded.
	Body string `json:"body"`

	// Error makes a function mock fail with this message.
	Error string `json:"error"`
}

// DecodedBody returns the base64-decoded Body, accepting padded or raw
// encodings.
func (d MockReturnData) DecodedBody() ([]byte, error) {
	if d.Body == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(d.Body)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(d.Body)
	}
	return raw, err
}

// ─── Loading ──────────────────────────────────────────────────────────────────

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}

	s.dir = filepath.Dir(abs)
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		s.ExpectedCode = s.ExpectedStatusCode
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	if s.RequestFileName != "" && len(s.RequestBody) > 0 {
		return fmt.Errorf("set requestFileName or requestBody, not both")
	}
	if s.ResponseFileName != "" && len(s.ExpectedBody) > 0 {
		return fmt.Errorf("set responseFileName or expectedBody, not both")
	}
	for i, step := range s.NetUtilMockStep {
		if step.Method == "" {
			return fmt.Errorf("netUtilMockStep[%d].method is required", i)
		}
		if _, err := step.ReturnData.DecodedBody(); err != nil {
			return fmt.Errorf("netUtilMockStep[%d].returnData.body: %w", i, err)
		}
	}
	return nil
}

// RequestBodyPath returns the absolute path of RequestFileName, or "".
func (s *Scenario) RequestBodyPath() string {
	return s.resolve(s.RequestFileName)
}

// ResponseBodyPath returns the absolute path of ResponseFileName, or "".
func (s *Scenario) ResponseBodyPath() string {
	return s.resolve(s.ResponseFileName)
}

func (s *Scenario) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// requestBody returns the raw body before variable expansion.
func (s *Scenario) requestBody() ([]byte, error) {
	if p := s.RequestBodyPath(); p != "" {
		return os.ReadFile(p)
	}
	return s.RequestBody, nil
}

// expectedBody returns the raw expected body before variable expansion.
func (s *Scenario) expectedBody() ([]byte, error) {
	if p := s.ResponseBodyPath(); p != "" {
		return os.ReadFile(p)
	}
	return s.ExpectedBody, nil
}

// LoadAllFromDir loads every *.json file directly in dir, sorted by file
// name. Files that fail to load are returned as errors.
func LoadAllFromDir(dir string) ([]*Scenario, []error) {
	entries, err := scenarioFiles(dir)
	if err != nil {
		return nil, []error{err}
	}

	var (
		scenarios []*Scenario
		errs      []error
	)
	for _, path := range entries {
		s, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}

func scenarioFiles(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(entries) == 0 {
		return nil, fmt.Errorf("testkit: no scenario files found in %q", dir)
	}
	sort.Strings(entries)
	return entries, nil
}

// LoadScenarioArray reads an array of scenarios from one file. The suite
// runner fills in requestUrl and requestMethod from its config entry, so
// only name and mock steps are checked here.
func LoadScenarioArray(path string) ([]*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve scenario array path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read scenario array %q: %w", abs, err)
	}

	var scenarios []*Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("testkit: parse scenario array %q: %w", abs, err)
	}

	dir := filepath.Dir(abs)
	for _, s := range scenarios {
		s.dir = dir
		if s.ExpectedCode == 0 {
			s.ExpectedCode = s.ExpectedStatusCode
		}
		if s.ExpectedCode == 0 {
			s.ExpectedCode = 200
		}
		if s.Name == "" {
			return nil, fmt.Errorf("testkit: invalid scenario array item: name is required")
		}
		for i, step := range s.NetUtilMockStep {
			if step.Method == "" {
				return nil, fmt.Errorf("testkit: invalid scenario array item %q: netUtilMockStep[%d].method is required", s.Name, i)
			}
		}
	}
	return scenarios, nil
}
