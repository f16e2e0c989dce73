package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ─── MockTransport ────────────────────────────────────────────────────────────

// MockTransport implements http.RoundTripper. It answers outgoing requests
// from a list of stubs instead of touching the network and records every
// request it sees.
//
// Install it on the shared HTTP client before the test:
//
//	mt := testkit.NewMockTransport()
//	mt.On(http.MethodPost, "https://connect.squareupsandbox.com/v2/payments").
//	    Reply(200, `{"payment":{"id":"p1","status":"COMPLETED"}}`)
//	pkghttp.DefaultClient.Transport = mt
//	defer pkghttp.ResetTransport()
//	...
//	assert.Empty(t, mt.Uncalled())
type MockTransport struct {
	mu       sync.Mutex
	stubs    []*Stub
	requests []Recorded
}

// Stub is one canned reply. Replies are consumed in order; the last one
// repeats once the list is exhausted.
type Stub struct {
	method  string
	prefix  string
	replies []reply
	calls   int
}

type reply struct {
	status int
	body   string
	err    error
}

// Recorded is a captured outgoing request with its body read out.
type Recorded struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// NewScenarioTransport builds a transport from the scenario's active
// "httprequest" steps. Steps sharing a method and URL prefix queue their
// replies in order, so a retried call can see a 503 followed by a 200.
func NewScenarioTransport(s *Scenario) (*MockTransport, error) {
	mt := NewMockTransport()
	byKey := map[string]*Stub{}
	for i, step := range s.NetUtilMockStep {
		if step.Method != "httprequest" || !step.IsMock {
			continue
		}
		body, err := step.ReturnData.DecodedBody()
		if err != nil {
			return nil, fmt.Errorf("testkit: step %d base64 decode: %w", i, err)
		}
		status := step.ReturnData.StatusCode
		if status == 0 {
			status = http.StatusOK
		}

		key := strings.ToUpper(step.MatchMethod) + " " + step.MatchURL
		stub, ok := byKey[key]
		if !ok {
			stub = mt.On(strings.ToUpper(step.MatchMethod), step.MatchURL)
			byKey[key] = stub
		}
		stub.Reply(status, string(body))
	}
	return mt, nil
}

// On adds a stub matching method (empty for any) and a URL prefix.
func (mt *MockTransport) On(method, urlPrefix string) *Stub {
	s := &Stub{method: method, prefix: urlPrefix}
	mt.mu.Lock()
	mt.stubs = append(mt.stubs, s)
	mt.mu.Unlock()
	return s
}

// Reply queues a response with status and a raw body.
func (s *Stub) Reply(status int, body string) *Stub {
	s.replies = append(s.replies, reply{status: status, body: body})
	return s
}

// Fail queues a transport error.
func (s *Stub) Fail(err error) *Stub {
	s.replies = append(s.replies, reply{err: err})
	return s
}

// RoundTrip records req and answers from the first matching stub.
func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.requests = append(mt.requests, Recorded{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	for _, s := range mt.stubs {
		if s.method != "" && s.method != req.Method {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), s.prefix) || len(s.replies) == 0 {
			continue
		}
		r := s.replies[min(s.calls, len(s.replies)-1)]
		s.calls++
		if r.err != nil {
			return nil, r.err
		}
		return buildResponse(req, r), nil
	}

	return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call %s %s", req.Method, req.URL)
}

// Requests returns every request seen so far.
func (mt *MockTransport) Requests() []Recorded {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]Recorded, len(mt.requests))
	copy(out, mt.requests)
	return out
}

// Uncalled lists stubs that never matched a request.
func (mt *MockTransport) Uncalled() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	var out []string
	for _, s := range mt.stubs {
		if s.calls == 0 {
			out = append(out, s.method+" "+s.prefix)
		}
	}
	return out
}

// AssertAllCalled returns one error per stub that never matched.
func (mt *MockTransport) AssertAllCalled() []error {
	var errs []error
	for _, key := range mt.Uncalled() {
		errs = append(errs, fmt.Errorf("http mock %q was never called", strings.TrimSpace(key)))
	}
	return errs
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func buildResponse(req *http.Request, r reply) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: r.status,
		Status:     fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(r.body))),
		Request:    req,
	}
}
