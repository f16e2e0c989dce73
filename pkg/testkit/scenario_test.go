package testkit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/testkit"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// sample is a tiny API that exercises every part of a scenario: mail side
// effects, bearer tokens, and an outgoing call on the shared client.
func sample() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email string `json:"email"`
		}
		json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck
		if _, err := testkit.GetMocker("sendmail").Intercept([]byte(in.Email)); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": 503, "code": "MAIL_DOWN"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": 200,
			"data":   map[string]any{"token": "tok-" + in.Email, "user": map[string]any{"id": 7}},
		})
	})
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-a@b.test" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"status": 401, "code": "UNAUTHENTICATED"})
			return
		}
		id := r.PathValue("id")
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "name": "thing " + id}})
	})
	mux.HandleFunc("POST /relay", func(w http.ResponseWriter, r *http.Request) {
		resp, err := pkghttp.Post("https://hooks.example.test/notify").
			WithContext(r.Context()).
			Body(map[string]string{"text": "hi"}).
			Retry(2, time.Millisecond).
			RetryOn(http.StatusServiceUnavailable).
			Send()
		if err != nil || !resp.OK() {
			writeJSON(w, http.StatusBadGateway, map[string]any{"code": "UPSTREAM"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp.Raw) //nolint:errcheck
	})
	return mux
}

func TestRunDirCarriesCaptures(t *testing.T) {
	sess := testkit.NewSession(sample())
	sess.RunDir(t, "testdata/flow")

	assert.Equal(t, "tok-a@b.test", sess.Get("token"))
	assert.Equal(t, "7", sess.Get("userId"))
}

func TestArmedMailErrorReachesHandler(t *testing.T) {
	testkit.Run(t, sample(), "testdata/mail_down.json")
}

func TestQueuedHTTPRepliesServeRetries(t *testing.T) {
	testkit.Run(t, sample(), "testdata/relay.json")

	_, stillMocked := pkghttp.DefaultClient.Transport.(*testkit.MockTransport)
	assert.False(t, stillMocked, "runner restores the shared transport")
}

func TestLoadScenario(t *testing.T) {
	s, err := testkit.LoadScenario("testdata/relay.json")
	require.NoError(t, err)

	assert.Equal(t, "relay retries a 503 upstream", s.Name)
	assert.Equal(t, "POST", s.RequestMethod)
	assert.Equal(t, 200, s.ExpectedCode)
	require.Len(t, s.NetUtilMockStep, 3)
	assert.Equal(t, "https://hooks.example.test/", s.NetUtilMockStep[0].MatchURL)

	body, err := s.NetUtilMockStep[1].ReturnData.DecodedBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	anon, err := testkit.LoadScenario("testdata/flow/03_anonymous.json")
	require.NoError(t, err)
	assert.Equal(t, 401, anon.ExpectedCode, "expectedStatusCode is an alias")
	assert.Equal(t, "GET", anon.RequestMethod)
}

func TestLoadAllFromDirIsOrdered(t *testing.T) {
	scenarios, errs := testkit.LoadAllFromDir("testdata/flow")
	require.Empty(t, errs)
	require.Len(t, scenarios, 3)
	assert.Equal(t, "login returns a token", scenarios[0].Name)
	assert.Equal(t, "anonymous request is refused", scenarios[2].Name)

	_, errs = testkit.LoadAllFromDir(t.TempDir())
	assert.Len(t, errs, 1)
}

func TestScenarioTransportQueuesReplies(t *testing.T) {
	s := &testkit.Scenario{
		Name: "square retry",
		NetUtilMockStep: []testkit.MockStep{
			{Method: "httprequest", IsMock: true, MatchURL: "https://connect.squareupsandbox.com/v2/payments",
				ReturnData: testkit.MockReturnData{StatusCode: 503}},
			{Method: "httprequest", IsMock: true, MatchURL: "https://connect.squareupsandbox.com/v2/payments",
				ReturnData: testkit.MockReturnData{Body: "eyJvayI6dHJ1ZX0="}},
		},
	}
	mt, err := testkit.NewScenarioTransport(s)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "https://connect.squareupsandbox.com/v2/payments", nil)
	resp, err := mt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = mt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, mt.AssertAllCalled())
}

func TestScenarioTransportUnmatchedCallFails(t *testing.T) {
	s := &testkit.Scenario{
		Name: "unmatched",
		NetUtilMockStep: []testkit.MockStep{
			{Method: "httprequest", IsMock: true, MatchMethod: "POST", MatchURL: "https://expected.test/"},
		},
	}
	mt, err := testkit.NewScenarioTransport(s)
	require.NoError(t, err)

	_, err = mt.RoundTrip(httptest.NewRequest(http.MethodPost, "https://unexpected.test/api", nil))
	assert.Error(t, err)
	_, err = mt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://expected.test/api", nil))
	assert.Error(t, err, "method must match too")
	assert.Len(t, mt.AssertAllCalled(), 1)
}

func TestDiffJSONIsASubsetMatch(t *testing.T) {
	var expected, actual any
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"total":"7.58","items":[{"id":1}]}}`), &expected))
	require.NoError(t, json.Unmarshal([]byte(`{"status":200,"data":{"id":9,"total":"7.58","items":[{"id":1,"qty":2}]}}`), &actual))
	assert.Empty(t, testkit.DiffJSON("", expected, actual))

	require.NoError(t, json.Unmarshal([]byte(`{"data":{"total":"8.00","items":[]}}`), &actual))
	diffs := testkit.DiffJSON("", expected, actual)
	require.Len(t, diffs, 2)
	assert.Contains(t, strings.Join(diffs, "\n"), "data.total")
}

func TestLookup(t *testing.T) {
	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"id":42,"token":"abc","ok":true,"items":[{"id":1234567}]}}`), &doc))

	for path, want := range map[string]string{
		"data.id":         "42",
		"data.token":      "abc",
		"data.ok":         "true",
		"data.items.0.id": "1234567",
	} {
		got, ok := testkit.Lookup(doc, path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := testkit.Lookup(doc, "data.items.3.id")
	assert.False(t, ok)
	_, ok = testkit.Lookup(doc, "data.missing")
	assert.False(t, ok)
}

func TestFuncMockerArmAndReset(t *testing.T) {
	m := testkit.NewFuncMocker("sms")
	require.NoError(t, m.Arm(testkit.MockStep{
		Method:     "sms",
		IsMock:     true,
		ReturnData: testkit.MockReturnData{Body: "eyJvayI6dHJ1ZX0=", Error: "carrier offline"},
	}))

	reply, err := m.Intercept([]byte("+15550100"))
	assert.EqualError(t, err, "carrier offline")
	assert.JSONEq(t, `{"ok":true}`, string(reply))
	assert.Equal(t, 1, m.WasCalled())
	assert.Equal(t, [][]byte{[]byte("+15550100")}, m.Payloads())
	m.Mock().AssertCalled(t, "Intercept", mock.Anything)

	m.Reset()
	assert.Zero(t, m.WasCalled())
	_, err = m.Intercept(nil)
	assert.NoError(t, err)
}

func TestActivateRequiresRegisteredMocker(t *testing.T) {
	s := &testkit.Scenario{
		Name:            "unknown side effect",
		IsMockRequired:  true,
		NetUtilMockStep: []testkit.MockStep{{Method: "fax", IsMock: true}},
	}
	assert.Error(t, testkit.ActivateFuncMocks(s))

	s.IsMockRequired = false
	assert.NoError(t, testkit.ActivateFuncMocks(s))

	custom := testkit.NewFuncMocker("fax")
	testkit.RegisterMocker("fax", custom)
	s.IsMockRequired = true
	require.NoError(t, testkit.ActivateFuncMocks(s))

	errs := testkit.AssertFuncMocksCalled(s)
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "fax"))

	_, err := testkit.GetMocker("fax").Intercept([]byte("page"))
	require.NoError(t, err)
	assert.Empty(t, testkit.AssertFuncMocksCalled(s))
}
