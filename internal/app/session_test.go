package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/config"
	"github.com/lavandejoey/MobileRAG/internal/health"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/state"
	"github.com/lavandejoey/MobileRAG/internal/testutil"
	"github.com/lavandejoey/MobileRAG/internal/turn"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

type fixture struct {
	backend *testutil.Backend
	store   *state.Store
	session *Session
	ctx     context.Context
	results chan turn.Result
}

func newFixture(t *testing.T, probe bool) *fixture {
	t.Helper()
	return newFixtureWithRenderer(t, probe, markup.Plain)
}

func newFixtureWithRenderer(t *testing.T, probe bool, renderer markup.Renderer) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	b := testutil.NewBackend(t)
	cfg := &config.Config{
		ServerURL:      b.URL(),
		APIPrefix:      "/v1",
		SessionID:      "default",
		Profile:        "default",
		ClientTimeout:  5 * time.Second,
		StatusInterval: 20 * time.Millisecond,
		FrameInterval:  time.Millisecond,
		ChatLimit:      200,
		MessageLimit:   2000,
	}
	f := &fixture{
		backend: b,
		store:   state.NewStore(filepath.Join(t.TempDir(), "state.yaml")),
		ctx:     ctx,
		results: make(chan turn.Result, 8),
	}
	f.session = New(Options{
		Config:       cfg,
		Client:       client.New(cfg.ServerURL, cfg.APIPrefix, cfg.ClientTimeout),
		Store:        f.store,
		Renderer:     renderer,
		DisableProbe: !probe,
	})
	f.session.OnFinished(func(r turn.Result) { f.results <- r })
	go func() { _ = f.session.Run(ctx) }()
	return f
}

func (f *fixture) waitFor(t *testing.T, pred func(State) bool) State {
	t.Helper()
	var last State
	require.Eventually(t, func() bool {
		st, err := f.session.State(f.ctx)
		if err != nil {
			return false
		}
		last = st
		return pred(st)
	}, 5*time.Second, 10*time.Millisecond)
	return last
}

func (f *fixture) result(t *testing.T) turn.Result {
	t.Helper()
	select {
	case r := <-f.results:
		return r
	case <-f.ctx.Done():
		t.Fatal("turn never finished")
		return turn.Result{}
	}
}

func TestBootWithoutSelectionGreets(t *testing.T) {
	f := newFixture(t, false)
	f.backend.AddChat("existing")
	f.session.Boot()

	st := f.waitFor(t, func(s State) bool { return len(s.Transcript.Bubbles) == 1 })
	assert.Equal(t, view.KindSystem, st.Transcript.Bubbles[0].Kind)
	assert.Equal(t, ReadyMessage, st.Transcript.Bubbles[0].Text)
	assert.Len(t, st.Chats, 1)
}

func TestBootRestoresSelection(t *testing.T) {
	f := newFixture(t, false)
	id := f.backend.AddChat("t",
		models.ChatRecord{Role: models.RoleUser, Content: "hi"},
		models.ChatRecord{Role: models.RoleAssistantThink, Content: "ab"},
		models.ChatRecord{Role: models.RoleMeta, Content: `{"think_ms":1500}`},
		models.ChatRecord{Role: models.RoleAssistant, Content: "hello"},
	)
	require.NoError(t, f.store.SetSelected("default", id))

	f.session.Boot()
	st := f.waitFor(t, func(s State) bool { return len(s.Transcript.Bubbles) == 2 })

	assert.Equal(t, id, st.Selected)
	a := st.Transcript.Assistants()
	require.Len(t, a, 1)
	assert.Equal(t, "hello", a[0].Markup)
	assert.Equal(t, "Thought · 1.5s", a[0].Hint.Label)

	title, text, ok, err := f.session.Reveal(f.ctx, a[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Thinking (1.50s)", title)
	assert.Equal(t, "ab", text)

	assert.Eventually(t, func() bool { return f.session.Stats().Replay != nil }, time.Second, 10*time.Millisecond)
}

func TestSendNewChatAdoptsSelection(t *testing.T) {
	f := newFixture(t, false)
	f.backend.Enqueue(testutil.Turn{
		Stages:  []string{"retrieval"},
		Think:   []string{"a", "b"},
		ThinkMs: 1500,
		Answer:  []string{"He", "llo"},
		TotalMs: 2500,
	})

	f.session.Send("  hi  ")
	res := f.result(t)
	require.NoError(t, res.Err)
	assert.Equal(t, "Hello", res.Answer)
	assert.Equal(t, "ab", res.Think)
	assert.NotEmpty(t, res.ChatID)

	st := f.waitFor(t, func(s State) bool { return s.Selected != "" && len(s.Chats) == 1 })
	assert.False(t, st.Busy)
	assert.Equal(t, turn.StatusIdle, st.Status)
	assert.Equal(t, res.ChatID, st.Selected)
	require.Len(t, st.Transcript.Bubbles, 2)
	assert.Equal(t, "hi", st.Transcript.Bubbles[0].Text)
	assert.Equal(t, "Hello", st.Transcript.Bubbles[1].Markup)
	assert.Equal(t, "Thought · 1.5s", st.Transcript.Bubbles[1].Hint.Label)
	assert.Equal(t, int64(2500), st.Transcript.Bubbles[1].TotalMs)

	persisted, err := f.store.Selected("default")
	require.NoError(t, err)
	assert.Equal(t, res.ChatID, persisted)

	// The next message continues the same chat.
	f.session.Send("again")
	f.result(t)
	reqs := f.backend.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].ChatID)
	assert.Equal(t, res.ChatID, reqs[1].ChatID)

	stats := f.session.Stats()
	require.NotNil(t, stats.Turn)
	assert.Equal(t, int64(2), stats.Turn.Count)
	assert.NotNil(t, stats.FirstToken)
}

func TestLiveAndReplayMatch(t *testing.T) {
	f := newFixture(t, false)
	f.backend.Enqueue(testutil.Turn{Think: []string{"a", "b"}, ThinkMs: 1500, Answer: []string{"Hi"}})

	f.session.Send("q")
	res := f.result(t)
	live := f.waitFor(t, func(s State) bool { return s.Selected != "" })

	f.session.Select(res.ChatID)
	replayed := f.waitFor(t, func(s State) bool {
		return s.Transcript.Version != live.Transcript.Version && len(s.Transcript.Assistants()) == 1 && s.Transcript.Assistants()[0].Markup != ""
	})

	require.Len(t, replayed.Transcript.Bubbles, len(live.Transcript.Bubbles))
	for i, lb := range live.Transcript.Bubbles {
		rb := replayed.Transcript.Bubbles[i]
		assert.Equal(t, lb.Kind, rb.Kind)
		assert.Equal(t, lb.Text, rb.Text)
		assert.Equal(t, lb.Markup, rb.Markup)
		assert.Equal(t, lb.Hint, rb.Hint)
	}
}

func TestErrorTurnShowsSystemBubble(t *testing.T) {
	f := newFixture(t, false)
	f.backend.Enqueue(testutil.Turn{Answer: []string{"par", "tial"}, Error: "model exploded", Hold: true})

	f.session.Send("q")
	res := f.result(t)
	assert.ErrorIs(t, res.Err, turn.ErrBackend)

	st := f.waitFor(t, func(s State) bool { return !s.Busy && len(s.Transcript.Bubbles) == 3 })
	assert.Equal(t, "partial", st.Transcript.Bubbles[1].Markup)
	assert.Equal(t, "Error: model exploded", st.Transcript.Bubbles[2].Text)
	assert.Equal(t, turn.Errored, st.Phase)
}

func TestStopKeepsPartialAnswer(t *testing.T) {
	f := newFixture(t, false)
	answer := make([]string, 100)
	for i := range answer {
		answer[i] = "x"
	}
	f.backend.Enqueue(testutil.Turn{Answer: answer, Gap: 10 * time.Millisecond, Hold: true})

	f.session.Send("q")
	f.waitFor(t, func(s State) bool {
		a := s.Transcript.Assistants()
		return len(a) == 1 && a[0].Markup != ""
	})
	f.session.Stop()

	res := f.result(t)
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Answer)
	assert.Less(t, len(res.Answer), len(answer))

	st := f.waitFor(t, func(s State) bool { return !s.Busy })
	assert.Equal(t, turn.Done, st.Phase)
	assert.Equal(t, res.Answer, st.Transcript.Assistants()[0].Markup)
	assert.Eventually(t, func() bool { return f.backend.OpenStreams() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestNewChatDuringTurnAbandonsIt(t *testing.T) {
	f := newFixture(t, false)
	f.backend.Enqueue(testutil.Turn{Answer: []string{"a", "b", "c", "d"}, Gap: 20 * time.Millisecond, Hold: true})

	f.session.Send("q")
	f.waitFor(t, func(s State) bool { return s.Busy })
	f.session.NewChat()

	st := f.waitFor(t, func(s State) bool { return !s.Busy && len(s.Transcript.Bubbles) == 0 })
	assert.Empty(t, st.Selected)
	assert.Equal(t, turn.Idle, st.Phase)

	time.Sleep(100 * time.Millisecond)
	st, err := f.session.State(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Transcript.Bubbles, "abandoned stream adds nothing")
}

func TestDeleteSelectedChat(t *testing.T) {
	f := newFixture(t, false)
	id := f.backend.AddChat("t", models.ChatRecord{Role: models.RoleUser, Content: "hi"})
	f.session.Select(id)
	f.waitFor(t, func(s State) bool { return s.Selected == id && len(s.Transcript.Bubbles) == 1 })

	f.session.Delete(id)
	st := f.waitFor(t, func(s State) bool { return s.Selected == "" && len(s.Chats) == 0 })
	assert.Empty(t, st.Transcript.Bubbles)
}

func TestSubscribeReceivesStates(t *testing.T) {
	f := newFixture(t, false)
	states := make(chan State, 64)
	f.session.Subscribe(func(s State) {
		select {
		case states <- s:
		default:
		}
	})
	f.session.Boot()

	for {
		select {
		case s := <-states:
			if len(s.Transcript.Bubbles) == 1 && s.Transcript.Bubbles[0].Text == ReadyMessage {
				return
			}
		case <-f.ctx.Done():
			t.Fatal("no state with the ready message was published")
		}
	}
}

func TestHealthIndicator(t *testing.T) {
	f := newFixture(t, true)
	f.waitFor(t, func(s State) bool { return s.Health.Level == health.Online })

	f.backend.SetStatus("maintenance")
	f.waitFor(t, func(s State) bool { return s.Health.Level == health.Degraded })
}

func TestFastTokenStreamDoesNotStallLoop(t *testing.T) {
	slow := markup.Func(func(s string) string {
		time.Sleep(20 * time.Millisecond)
		return s
	})
	f := newFixtureWithRenderer(t, false, slow)
	var published atomic.Int64
	f.session.Subscribe(func(State) { published.Add(1) })

	tokens := make([]string, 20000)
	for i := range tokens {
		tokens[i] = "x"
	}
	f.backend.Enqueue(testutil.Turn{Answer: tokens})

	f.session.Send("flood")
	res := f.result(t)
	require.NoError(t, res.Err)
	assert.Len(t, res.Answer, len(tokens))
	assert.NotEmpty(t, res.ChatID)

	st := f.waitFor(t, func(s State) bool { return s.Selected == res.ChatID })
	assert.False(t, st.Busy)
	assert.Positive(t, published.Load())
}
