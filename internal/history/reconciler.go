// Package history rebuilds a chat view from its persisted record log.
//
// The backend writes a turn's assistant_think, meta and assistant records in
// an order it does not guarantee, so replay tolerates supporting records on
// either side of the answer they annotate.
package history

import (
	"log/slog"

	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

// Stats summarizes one replay.
type Stats struct {
	Records    int
	Users      int
	Assistants int
	Hints      int
	BadMeta    int
	Skipped    int
}

// Reconciler replays records into a transcript.
type Reconciler struct {
	transcript *view.Transcript
	renderer   markup.Renderer
	logger     *slog.Logger
}

// New creates a reconciler writing into transcript.
func New(transcript *view.Transcript, renderer markup.Renderer, logger *slog.Logger) *Reconciler {
	if renderer == nil {
		renderer = markup.Plain
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{transcript: transcript, renderer: renderer, logger: logger}
}

// replay holds the rolling references of one pass.
type replay struct {
	pendingThink string
	pendingMeta  *models.Meta

	last      *view.Bubble
	lastThink string
	lastMeta  *models.Meta
}

// Replay appends bubbles for records, in order, to the transcript. Answers
// are rendered once each; nothing is re-streamed.
func (r *Reconciler) Replay(records []models.ChatRecord) Stats {
	var (
		st    replay
		stats = Stats{Records: len(records)}
	)

	for _, rec := range records {
		switch rec.Role {
		case models.RoleUser:
			r.transcript.AddUser(rec.Content, rec.CreatedAt.Time)
			// Supporting records never carry over to the next exchange.
			st = replay{}
			stats.Users++

		case models.RoleAssistantThink:
			if rec.Content != "" && st.last != nil && st.lastThink == "" {
				// Stored after its answer.
				meta := st.pendingMeta
				if meta == nil {
					meta = st.lastMeta
				}
				st.lastThink = rec.Content
				st.last.AttachThink(rec.Content, meta)
				stats.Hints++
				continue
			}
			st.pendingThink = rec.Content

		case models.RoleMeta:
			meta, err := models.ParseMeta(rec.Content)
			if err != nil {
				r.logger.Warn("skipping malformed meta record", "chat_id", rec.ChatID, "msg_id", rec.MsgID, "error", err)
				st.pendingMeta = nil
				stats.BadMeta++
				continue
			}
			st.pendingMeta = meta
			if st.last != nil {
				st.lastMeta = meta
				st.last.SetTotal(meta.TotalMs)
				if st.lastThink != "" {
					st.last.AttachThink(st.lastThink, meta)
				}
			}

		case models.RoleAssistant:
			b := r.transcript.AddAssistant(rec.CreatedAt.Time)
			st.last = b
			st.lastThink = ""
			st.lastMeta = st.pendingMeta
			if st.pendingThink != "" {
				st.lastThink = st.pendingThink
				b.AttachThink(st.pendingThink, st.pendingMeta)
				stats.Hints++
			}
			if st.pendingMeta != nil {
				b.SetTotal(st.pendingMeta.TotalMs)
			}
			b.SetAnswer(rec.Content, r.renderer.Render(rec.Content))
			st.pendingThink = ""
			st.pendingMeta = nil
			stats.Assistants++

		default:
			r.logger.Debug("skipping record with unknown role", "role", string(rec.Role), "msg_id", rec.MsgID)
			stats.Skipped++
		}
	}

	r.logger.Debug("history replayed",
		"records", stats.Records,
		"users", stats.Users,
		"assistants", stats.Assistants,
		"hints", stats.Hints,
		"bad_meta", stats.BadMeta)
	return stats
}
