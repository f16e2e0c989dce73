package kernel_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/kernel"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/square"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/testkit"
)

// scenarioMailer reports each send to the "sendmail" mocker and hands the
// code to the running session as ${code}.
type scenarioMailer struct {
	sess *testkit.Session
}

func (m *scenarioMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	if _, err := testkit.GetMocker("sendmail").Intercept([]byte(to)); err != nil {
		return err
	}
	m.sess.Set("code", code)
	return nil
}

// TestCheckoutScenarios runs testdata/checkout against the real Square
// client. Outgoing charges are answered by the scenarios' httprequest steps.
func TestCheckoutScenarios(t *testing.T) {
	sq, err := square.New(square.Options{AccessToken: "sq-test", LocationID: "LOC1", RetryWait: time.Millisecond})
	require.NoError(t, err)

	mailer := &scenarioMailer{}
	h := newHarness(t, func(d *kernel.Deps) {
		d.Processor = sq
		d.Mailer = mailer
	})
	sess := testkit.NewSession(h.app.Handler())
	mailer.sess = sess
	sess.Set("adminToken", h.admin())

	sess.RunDir(t, "testdata/checkout")
	if t.Failed() {
		return
	}

	id, err := strconv.ParseUint(sess.Get("tacoId"), 10, 64)
	require.NoError(t, err)
	item, err := h.store.FindMenuItem(context.Background(), uint(id))
	require.NoError(t, err)
	assert.Equal(t, 8, item.Stock)
}
