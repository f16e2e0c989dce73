package reqid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/reqid"
)

func run(header string) (seen, echoed string) {
	h := reqid.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqid.FromCtx(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(reqid.Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(reqid.Header)
}

func TestMintsID(t *testing.T) {
	seen, echoed := run("")
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, echoed)
}

func TestReusesUpstreamID(t *testing.T) {
	seen, echoed := run("edge-7f3a.1")
	assert.Equal(t, "edge-7f3a.1", seen)
	assert.Equal(t, "edge-7f3a.1", echoed)
}

func TestReplacesHostileID(t *testing.T) {
	for _, bad := range []string{"a b", "x\ny", strings.Repeat("a", 65), `"><script>`} {
		seen, _ := run(bad)
		assert.NotEqual(t, bad, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, bad)
	}
}
