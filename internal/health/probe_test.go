package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scripted struct {
	mu     sync.Mutex
	status string
	err    error
	calls  int
}

func (s *scripted) Status(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.status, s.err
}

func (s *scripted) set(status string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.err = status, err
}

func (s *scripted) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCheckLevels(t *testing.T) {
	tests := []struct {
		name   string
		status string
		err    error
		want   Level
	}{
		{"online", "online", nil, Online},
		{"other status", "starting", nil, Degraded},
		{"error", "", errors.New("refused"), Offline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &Indicator{}
			p := NewProbe(&scripted{status: tt.status, err: tt.err}, ind, time.Second, nil)
			r := p.Check(context.Background())
			assert.Equal(t, tt.want, r.Level)
			assert.Equal(t, tt.want, ind.Current().Level)
		})
	}
}

func TestOnChangeFiresOnTransitionsOnly(t *testing.T) {
	c := &scripted{status: "online"}
	ind := &Indicator{}
	var seen []Level
	ind.OnChange(func(r Reading) { seen = append(seen, r.Level) })
	p := NewProbe(c, ind, time.Second, nil)

	p.Check(context.Background())
	p.Check(context.Background())
	c.set("", errors.New("down"))
	p.Check(context.Background())
	c.set("online", nil)
	p.Check(context.Background())

	assert.Equal(t, []Level{Online, Offline, Online}, seen)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	c := &scripted{status: "online"}
	p := NewProbe(c, &Indicator{}, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return c.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "offline", Offline.String())
}
