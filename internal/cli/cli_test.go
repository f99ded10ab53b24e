package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavandejoey/MobileRAG/internal/app"
	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/config"
	"github.com/lavandejoey/MobileRAG/internal/history"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/testutil"
	"github.com/lavandejoey/MobileRAG/internal/turn"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

type stubLister struct {
	chats []models.Chat
	err   error
}

func (s stubLister) ListChats(context.Context, int) ([]models.Chat, error) {
	return s.chats, s.err
}

func TestResolveChat(t *testing.T) {
	lister := stubLister{chats: []models.Chat{
		{ChatID: "3f2a9c1e-0000", Title: "one"},
		{ChatID: "3f2b0000-0000", Title: "two"},
		{ChatID: "aa", Title: "short"},
	}}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr string
	}{
		{name: "full id", ref: "aa", want: "aa"},
		{name: "unique prefix", ref: "3f2a", want: "3f2a9c1e-0000"},
		{name: "ambiguous prefix", ref: "3f2", wantErr: "ambiguous"},
		{name: "unknown", ref: "zz", wantErr: "not found"},
		{name: "empty", ref: "  ", wantErr: "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat, err := resolveChat(context.Background(), lister, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, chat.ChatID)
		})
	}
}

func TestResolveChatListError(t *testing.T) {
	_, err := resolveChat(context.Background(), stubLister{err: errors.New("boom")}, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list chats")
}

func replayed(records ...models.ChatRecord) *view.Transcript {
	tr := view.NewTranscript()
	history.New(tr, markup.HTML(), nil).Replay(records)
	return tr
}

func sampleRecords() []models.ChatRecord {
	at := models.At(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	return []models.ChatRecord{
		{Role: models.RoleUser, Content: "what is <b>rag</b>?", CreatedAt: at},
		{Role: models.RoleAssistantThink, Content: "recall the definition", CreatedAt: at},
		{Role: models.RoleMeta, Content: `{"think_ms":1500}`, CreatedAt: at},
		{Role: models.RoleAssistant, Content: "**Retrieval** augmented generation<script>alert(1)</script>", CreatedAt: at},
	}
}

func TestWriteExport(t *testing.T) {
	tr := replayed(sampleRecords()...)
	chat := models.Chat{ChatID: "3f2a9c1e-0000", Title: "RAG"}

	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, chat, tr, false, time.Unix(0, 0)))
	out := buf.String()

	assert.Contains(t, out, "<title>RAG</title>")
	assert.Contains(t, out, "<strong>Retrieval</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "what is &lt;b&gt;rag&lt;/b&gt;?", "user text is escaped")
	assert.Contains(t, out, "Thought · 1.5s")
	assert.NotContains(t, out, "recall the definition", "reasoning stays out unless asked for")
}

func TestWriteExportWithThink(t *testing.T) {
	tr := replayed(sampleRecords()...)

	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, models.Chat{ChatID: "x"}, tr, true, time.Unix(0, 0)))
	out := buf.String()

	assert.Contains(t, out, "<details><summary>Thinking (1.50s)</summary>")
	assert.Contains(t, out, "recall the definition")
	assert.Contains(t, out, "<title>(no title)</title>")
}

func TestPrintTranscript(t *testing.T) {
	tr := view.NewTranscript()
	history.New(tr, markup.Plain, nil).Replay(sampleRecords())

	var buf bytes.Buffer
	printTranscript(&buf, tr, false)
	out := buf.String()
	assert.Contains(t, out, "YOU")
	assert.Contains(t, out, "ASSISTANT")
	assert.Contains(t, out, "[Thought · 1.5s]")
	assert.NotContains(t, out, "recall the definition")

	buf.Reset()
	printTranscript(&buf, tr, true)
	assert.Contains(t, buf.String(), "Thinking (1.50s)")
	assert.Contains(t, buf.String(), "recall the definition")

	buf.Reset()
	printTranscript(&buf, view.NewTranscript(), true)
	assert.Equal(t, "No messages.\n", buf.String())
}

func TestPrintChats(t *testing.T) {
	var buf bytes.Buffer
	printChats(&buf, nil, "")
	assert.Equal(t, "No chats found.\n", buf.String())

	buf.Reset()
	printChats(&buf, []models.Chat{
		{ChatID: "3f2a9c1e-0000", Title: "one"},
		{ChatID: "bbbbbbbb-0000"},
	}, "3f2a9c1e-0000")
	out := buf.String()
	assert.Contains(t, out, "Chats (2):")
	assert.Contains(t, out, "* ")
	assert.Contains(t, out, "3f2a9c1e")
	assert.Contains(t, out, "(no title)")
}

func TestAnswerWriterPrintsDeltas(t *testing.T) {
	var buf bytes.Buffer
	w := &answerWriter{w: &buf}
	w.update("He")
	w.update("He")
	w.update("Hello")
	w.update("Hel")
	assert.Equal(t, "Hello", buf.String())
}

func TestPrintAskSummary(t *testing.T) {
	var buf bytes.Buffer
	printAskSummary(&buf, turn.Result{ChatID: "3f2a9c1e-0000", Think: "because", ThinkMs: 1500, TotalMs: 2500}, false)
	out := buf.String()
	assert.Contains(t, out, "chat 3f2a9c1e")
	assert.Contains(t, out, "think 1.50s")
	assert.Contains(t, out, "total_ms 2500")
	assert.NotContains(t, out, "because")

	buf.Reset()
	printAskSummary(&buf, turn.Result{Think: "because", ThinkMs: 1500}, true)
	assert.Contains(t, buf.String(), "Thinking (1.50s)")
	assert.Contains(t, buf.String(), "because")
}

type stopCounter struct{ n int }

func (s *stopCounter) Stop() { s.n++ }

func TestAskModel(t *testing.T) {
	s := &stopCounter{}
	started := time.Now()
	var m = newAskModel(s, started)

	st := app.State{
		Status: "Thinking... (retrieval)",
		Transcript: view.Snapshot{Bubbles: []view.BubbleView{
			{Kind: view.KindUser, Text: "q"},
			{Kind: view.KindAssistant, Markup: "partial", Hint: view.HintView{Label: "Thought · 1.5s"}},
		}},
	}
	next, _ := m.Update(askStateMsg(st))
	m = next.(askModel)
	assert.Equal(t, "partial", m.answer)
	assert.Contains(t, m.renderContent(), "[Thinking... (retrieval)]")
	assert.Contains(t, m.renderContent(), "Thought · 1.5s")

	next, _ = m.Update(tickMsg(started.Add(1500 * time.Millisecond)))
	m = next.(askModel)
	assert.Contains(t, m.renderContent(), "1.5s")

	next, cmd := m.Update(askResultMsg(turn.Result{Answer: "partial answer"}))
	m = next.(askModel)
	require.NotNil(t, cmd)
	require.NotNil(t, m.result)
	assert.Contains(t, m.renderContent(), "✓")
	assert.Contains(t, m.renderContent(), "partial answer")
	assert.Zero(t, s.n)
}

func TestAskModelErrorView(t *testing.T) {
	m := newAskModel(&stopCounter{}, time.Now())
	next, _ := m.Update(askResultMsg(turn.Result{Answer: "half", Err: turn.ErrBackend}))
	out := next.(askModel).renderContent()
	assert.Contains(t, out, "half")
	assert.Contains(t, out, "✗")
}

func TestStreamAnswerEndToEnd(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Enqueue(testutil.Turn{
		Think:   []string{"hm"},
		ThinkMs: 1200,
		Answer:  []string{"Hel", "lo", " world"},
		TotalMs: 2000,
	})

	conf := &config.Config{
		ServerURL:      b.URL(),
		APIPrefix:      "/v1",
		SessionID:      "default",
		Profile:        "default",
		ClientTimeout:  5 * time.Second,
		StatusInterval: time.Second,
		FrameInterval:  time.Millisecond,
		ChatLimit:      10,
		MessageLimit:   100,
	}
	session := app.New(app.Options{
		Config:       conf,
		Client:       client.New(conf.ServerURL, conf.APIPrefix, conf.ClientTimeout),
		DisableProbe: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = session.Run(ctx) }()

	var buf bytes.Buffer
	res, err := streamAnswer(ctx, session, "hi", &buf)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, "Hello world\n", buf.String())
	assert.Equal(t, "hm", res.Think)
	assert.Equal(t, int64(1200), res.ThinkMs)
	assert.Equal(t, int64(2000), res.TotalMs)
	assert.True(t, b.HasChat(res.ChatID))
	assert.False(t, strings.Contains(buf.String(), "hm"), "reasoning is never streamed")
}
