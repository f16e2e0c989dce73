package testkit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"
)

// ─── FuncMocker interface ─────────────────────────────────────────────────────

// FuncMocker stands in for a non-HTTP side effect (mail, Slack, push) so a
// scenario can script and verify it. The test wires a small adapter that
// calls Intercept wherever the real dependency would have run:
//
//	type scenarioMailer struct{}
//
//	func (scenarioMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
//	    _, err := testkit.GetMocker("sendmail").Intercept([]byte(to + " " + code))
//	    return err
//	}
type FuncMocker interface {
	// Arm configures the reply for the scenario's step.
	Arm(step MockStep) error

	// Intercept records payload and returns the armed reply.
	Intercept(payload []byte) ([]byte, error)

	// Reset clears call history and the armed reply.
	Reset()

	// WasCalled returns how many times Intercept ran since the last Reset.
	WasCalled() int

	// Payloads returns what Intercept received since the last Reset.
	Payloads() [][]byte

	// Mock exposes the embedded testify mock for custom expectations.
	Mock() *mock.Mock
}

// ─── GenericFuncMocker ────────────────────────────────────────────────────────

// GenericFuncMocker is a testify/mock-backed FuncMocker.
type GenericFuncMocker struct {
	m        mock.Mock
	method   string
	mu       sync.Mutex
	payloads [][]byte
}

// NewFuncMocker creates a mocker that accepts any call and returns nil.
func NewFuncMocker(method string) *GenericFuncMocker {
	gm := &GenericFuncMocker{method: method}
	gm.expect(nil, nil)
	return gm
}

func (gm *GenericFuncMocker) expect(reply []byte, err error) {
	gm.m.ExpectedCalls = nil
	gm.m.On("Intercept", mock.Anything).Return(reply, err)
}

// Arm replaces the default expectation with the step's reply.
func (gm *GenericFuncMocker) Arm(step MockStep) error {
	raw, err := step.ReturnData.DecodedBody()
	if err != nil {
		return fmt.Errorf("testkit: %s: base64 decode: %w", gm.method, err)
	}
	var fail error
	if step.ReturnData.Error != "" {
		fail = errors.New(step.ReturnData.Error)
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.expect(raw, fail)
	return nil
}

// Intercept records payload through testify and returns the armed reply.
func (gm *GenericFuncMocker) Intercept(payload []byte) ([]byte, error) {
	gm.mu.Lock()
	gm.payloads = append(gm.payloads, append([]byte(nil), payload...))
	gm.mu.Unlock()

	args := gm.m.Called(payload)
	var reply []byte
	if v := args.Get(0); v != nil {
		reply = v.([]byte)
	}
	return reply, args.Error(1)
}

func (gm *GenericFuncMocker) Reset() {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	gm.payloads = nil
	gm.m.Calls = nil
	gm.expect(nil, nil)
}

func (gm *GenericFuncMocker) WasCalled() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	return len(gm.payloads)
}

func (gm *GenericFuncMocker) Payloads() [][]byte {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	out := make([][]byte, len(gm.payloads))
	copy(out, gm.payloads)
	return out
}

func (gm *GenericFuncMocker) Mock() *mock.Mock { return &gm.m }

// ─── Registry ─────────────────────────────────────────────────────────────────

var (
	mockerMu       sync.RWMutex
	mockerRegistry = map[string]FuncMocker{
		"sendmail":     NewFuncMocker("sendmail"),
		"notification": NewFuncMocker("notification"),
	}
)

// RegisterMocker registers a FuncMocker under method, replacing any
// existing one.
func RegisterMocker(method string, m FuncMocker) {
	mockerMu.Lock()
	defer mockerMu.Unlock()
	mockerRegistry[method] = m
}

// GetMocker returns the mocker for method, or nil.
//
//	m := testkit.GetMocker("sendmail")
//	assert.Equal(t, 1, m.WasCalled())
func GetMocker(method string) FuncMocker {
	mockerMu.RLock()
	defer mockerMu.RUnlock()
	return mockerRegistry[method]
}

func resetAllMockers() {
	mockerMu.RLock()
	defer mockerMu.RUnlock()
	for _, m := range mockerRegistry {
		m.Reset()
	}
}

// ─── Scenario activation ──────────────────────────────────────────────────────

// ActivateFuncMocks arms every active non-HTTP step of the scenario.
func ActivateFuncMocks(s *Scenario) error {
	for i, step := range s.NetUtilMockStep {
		if step.Method == "httprequest" || !step.IsMock {
			continue
		}
		m := GetMocker(step.Method)
		if m == nil {
			if s.IsMockRequired {
				return fmt.Errorf("testkit: no mocker registered for %q (step %d)", step.Method, i)
			}
			continue
		}
		if err := m.Arm(step); err != nil {
			return fmt.Errorf("testkit: step %d: %w", i, err)
		}
	}
	return nil
}

// AssertFuncMocksCalled returns one error per active non-HTTP step whose
// mocker never ran.
func AssertFuncMocksCalled(s *Scenario) []error {
	var errs []error
	seen := map[string]bool{}
	for _, step := range s.NetUtilMockStep {
		if step.Method == "httprequest" || !step.IsMock || seen[step.Method] {
			continue
		}
		seen[step.Method] = true
		m := GetMocker(step.Method)
		if m == nil {
			continue
		}
		if m.WasCalled() == 0 {
			errs = append(errs, fmt.Errorf("mock %q armed but never called during scenario %q", step.Method, s.Name))
		}
	}
	return errs
}
