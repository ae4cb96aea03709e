package cli

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

type fakeSpinner struct {
	mu        sync.Mutex
	text      string
	stopped   bool
	successes []string
	failures  []string
}

func (f *fakeSpinner) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSpinner) Success(message ...any) {
	f.mu.Lock()
	f.successes = append(f.successes, fmt.Sprint(message...))
	f.mu.Unlock()
	_ = f.Stop()
}

func (f *fakeSpinner) Fail(message ...any) {
	f.mu.Lock()
	f.failures = append(f.failures, fmt.Sprint(message...))
	f.mu.Unlock()
	_ = f.Stop()
}

func newTestProgressManager(steps ...*Step) (*ProgressManager, *[]*fakeSpinner) {
	var spinners []*fakeSpinner
	pm := NewProgressManager(io.Discard, true, steps...)
	pm.spinnerFactory = func(_ io.Writer, text string) (progressSpinner, error) {
		fs := &fakeSpinner{text: text}
		spinners = append(spinners, fs)
		return fs, nil
	}
	return pm, &spinners
}

func TestProgressManager(t *testing.T) {
	load := &Step{ID: "load", Message: "loading captures"}
	solve := &Step{ID: "solve", Message: "calibrating"}
	pm, spinners := newTestProgressManager(load, solve)

	test.That(t, pm.Run("load", func() error { return nil }), test.ShouldBeNil)
	test.That(t, load.Status, test.ShouldEqual, StepCompleted)
	test.That(t, *spinners, test.ShouldHaveLength, 1)
	test.That(t, (*spinners)[0].text, test.ShouldEqual, "loading captures")
	test.That(t, (*spinners)[0].successes[0], test.ShouldStartWith, "loading captures (")

	boom := errors.New("boom")
	test.That(t, pm.Run("solve", func() error { return boom }), test.ShouldEqual, boom)
	test.That(t, solve.Status, test.ShouldEqual, StepFailed)
	test.That(t, (*spinners)[1].failures, test.ShouldResemble, []string{"calibrating: boom"})

	test.That(t, pm.Start("missing"), test.ShouldBeError, `step "missing" not found`)
	test.That(t, pm.Complete("missing"), test.ShouldNotBeNil)
	test.That(t, pm.Fail("missing", boom), test.ShouldNotBeNil)
}

func TestProgressManagerRestartStopsSpinner(t *testing.T) {
	a := &Step{ID: "a", Message: "a"}
	b := &Step{ID: "b", Message: "b"}
	pm, spinners := newTestProgressManager(a, b)
	test.That(t, pm.Start("a"), test.ShouldBeNil)
	test.That(t, pm.Start("b"), test.ShouldBeNil)
	test.That(t, (*spinners)[0].stopped, test.ShouldBeTrue)
	test.That(t, (*spinners)[1].stopped, test.ShouldBeFalse)
	pm.Stop()
	test.That(t, (*spinners)[1].stopped, test.ShouldBeTrue)
}

func TestProgressManagerDisabled(t *testing.T) {
	s := &Step{ID: "s", Message: "quiet"}
	pm := NewProgressManager(io.Discard, false, s)
	pm.spinnerFactory = func(io.Writer, string) (progressSpinner, error) {
		return nil, errors.New("no spinner expected")
	}
	test.That(t, pm.Run("s", func() error { return nil }), test.ShouldBeNil)
	test.That(t, s.Status, test.ShouldEqual, StepCompleted)
}
