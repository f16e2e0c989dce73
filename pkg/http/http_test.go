package http_test

import (
	"context"
	"encoding/json"
	"errors"
	gohttp "net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/http"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/testkit"
)

func install(t *testing.T) *testkit.MockTransport {
	t.Helper()
	mt := testkit.NewMockTransport()
	http.DefaultClient.Transport = mt
	t.Cleanup(http.ResetTransport)
	return mt
}

func TestPostJSON(t *testing.T) {
	mt := install(t)
	mt.On(gohttp.MethodPost, "https://api.test/things").Reply(201, `{"id":"t1"}`)

	resp, err := http.Post("https://api.test/things").
		Bearer("secret").
		Header("Idempotency-Key", "k1").
		Body(map[string]any{"name": "taco"}).
		Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var out struct{ ID string }
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "t1", out.ID)

	reqs := mt.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer secret", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	var sent map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &sent))
	assert.Equal(t, "taco", sent["name"])
}

func TestRetryResendsSameBody(t *testing.T) {
	mt := install(t)
	mt.On("", "https://api.test/").Fail(errors.New("connection reset")).Reply(200, `{}`)

	resp, err := http.Post("https://api.test/pay").
		Body(map[string]string{"idempotency_key": "abc"}).
		Retry(3, time.Millisecond).
		Send()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	reqs := mt.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].Body, reqs[1].Body)
}

func TestNon2xxIsNotRetriedByDefault(t *testing.T) {
	mt := install(t)
	mt.On("", "https://api.test/").Reply(503, `{}`).Reply(200, `{}`)

	resp, err := http.Get("https://api.test/x").Retry(3, time.Millisecond).Send()
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
	assert.Error(t, resp.Throw())
	assert.Len(t, mt.Requests(), 1)
}

func TestRetryOnStatus(t *testing.T) {
	mt := install(t)
	mt.On("", "https://api.test/").Reply(503, `{}`).Reply(200, `{}`)

	resp, err := http.Get("https://api.test/x").Retry(3, time.Millisecond).RetryOn(503).Send()
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Len(t, mt.Requests(), 2)
}

func TestAllAttemptsFail(t *testing.T) {
	mt := install(t)
	mt.On("", "https://api.test/").Fail(errors.New("dial tcp: refused"))

	_, err := http.Get("https://api.test/x").Retry(2, time.Millisecond).Send()
	assert.Error(t, err)
	assert.Len(t, mt.Requests(), 2)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	mt := install(t)
	mt.On("", "https://api.test/").Fail(errors.New("timeout"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := http.Get("https://api.test/x").WithContext(ctx).Retry(5, time.Second).Send()
	assert.Error(t, err)
	assert.LessOrEqual(t, len(mt.Requests()), 1)
}
