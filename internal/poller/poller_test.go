package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"herowatch/internal/hero"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRefresher returns its scripted errors in order, then succeeds.
type mockRefresher struct {
	errs  []error
	calls int
}

func (m *mockRefresher) Refresh(ctx context.Context) (*hero.Snapshot, error) {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &hero.Snapshot{}, nil
}

func TestPoller_Tick_Success(t *testing.T) {
	refresher := &mockRefresher{}
	p := New(refresher, time.Minute, nil)

	p.tick()

	status := p.Status()
	assert.False(t, status.AuthRequired)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastSuccess.IsZero())
	assert.Equal(t, 1, refresher.calls)
}

func TestPoller_Tick_AuthErrorLatches(t *testing.T) {
	refresher := &mockRefresher{errs: []error{
		fmt.Errorf("%w: refresh token rejected", hero.ErrAuth),
	}}
	p := New(refresher, time.Minute, nil)

	p.tick()

	status := p.Status()
	assert.True(t, status.AuthRequired)
	assert.Contains(t, status.LastError, "refresh token rejected")
	assert.True(t, status.LastSuccess.IsZero())
}

func TestPoller_Tick_SuccessClearsLatch(t *testing.T) {
	refresher := &mockRefresher{errs: []error{
		fmt.Errorf("%w: refresh token rejected", hero.ErrAuth),
		nil,
	}}
	p := New(refresher, time.Minute, nil)

	p.tick()
	require.True(t, p.Status().AuthRequired)

	// A later cycle with a working credential clears everything
	p.tick()
	status := p.Status()
	assert.False(t, status.AuthRequired)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastSuccess.IsZero())
}

func TestPoller_Tick_TransientErrorDoesNotLatch(t *testing.T) {
	refresher := &mockRefresher{errs: []error{errors.New("upstream down")}}
	p := New(refresher, time.Minute, nil)

	p.tick()

	status := p.Status()
	assert.False(t, status.AuthRequired)
	assert.Equal(t, "upstream down", status.LastError)
}

func TestPoller_StartStop(t *testing.T) {
	refresher := &mockRefresher{}
	p := New(refresher, time.Hour, nil)

	done := make(chan struct{})
	go func() {
		p.Start()
		close(done)
	}()

	// Start runs the first cycle immediately
	require.Eventually(t, func() bool {
		return !p.Status().LastSuccess.IsZero()
	}, time.Second, 10*time.Millisecond)

	p.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
