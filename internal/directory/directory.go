// Package directory tracks the chat list and the selected chat.
//
// It orchestrates the storage backend, the local selection store and the
// history reconciler but holds no protocol logic. Network calls run off the
// loop; their results are posted back and applied there. Failures leave the
// list as it was.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/history"
	"github.com/lavandejoey/MobileRAG/internal/loop"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

// Backend is the storage collaborator.
type Backend interface {
	ListChats(ctx context.Context, limit int) ([]models.Chat, error)
	GetMessages(ctx context.Context, chatID string, limit int) ([]models.ChatRecord, error)
	DeleteChat(ctx context.Context, chatID string) error
}

// SelectionStore persists the selected chat per profile.
type SelectionStore interface {
	Selected(profile string) (string, error)
	SetSelected(profile, chatID string) error
}

// Options configures a Directory.
type Options struct {
	Backend    Backend
	Selection  SelectionStore
	Profile    string
	Poster     loop.Poster
	Transcript *view.Transcript
	Reconciler *history.Reconciler

	// ClearTurn abandons any live turn before the view is cleared.
	ClearTurn func()
	// Changed is called after the list or the selection changes.
	Changed func()

	ChatLimit    int
	MessageLimit int
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Directory is the session/list directory.
// Its methods must be called on the loop; completion callbacks run there too.
type Directory struct {
	opts   Options
	logger *slog.Logger

	chats    []models.Chat
	selected string
	stale    bool

	// viewSeq increases whenever the view is cleared, so a replay fetched
	// for an earlier view is discarded.
	viewSeq    uint64
	refreshSeq uint64
}

// New creates a directory with an empty list.
func New(opts Options) *Directory {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ChatLimit <= 0 {
		opts.ChatLimit = 200
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = 2000
	}
	return &Directory{opts: opts, logger: opts.Logger}
}

// List returns the chats, most recently updated first.
func (d *Directory) List() []models.Chat {
	out := make([]models.Chat, len(d.chats))
	copy(out, d.chats)
	return out
}

// Selected returns the selected chat id, or "" for a new chat.
func (d *Directory) Selected() string {
	return d.selected
}

// Stale reports whether the last refresh failed.
func (d *Directory) Stale() bool {
	return d.stale
}

// Refresh reloads the list. then, if non-nil, receives the fetch error.
func (d *Directory) Refresh(then func(error)) {
	d.refreshSeq++
	seq := d.refreshSeq
	d.async(func(ctx context.Context) func() {
		chats, err := d.opts.Backend.ListChats(ctx, d.opts.ChatLimit)
		return func() {
			if seq != d.refreshSeq {
				// A newer refresh is in flight.
				done(then, err)
				return
			}
			if err != nil {
				d.logger.Warn("chat list refresh failed", "error", err)
				d.stale = true
			} else {
				d.chats = chats
				d.stale = false
			}
			d.changed()
			done(then, err)
		}
	})
}

// Select makes chatID the current chat, persists the choice and replays
// its history into a cleared view, then refreshes the list.
func (d *Directory) Select(chatID string, then func(error)) {
	if chatID == "" {
		d.Create()
		done(then, nil)
		return
	}

	d.setSelected(chatID)
	seq := d.clearView()
	d.changed()

	d.async(func(ctx context.Context) func() {
		records, err := d.opts.Backend.GetMessages(ctx, chatID, d.opts.MessageLimit)
		return func() {
			if seq != d.viewSeq {
				d.logger.Debug("discarding replay for superseded view", "chat_id", chatID)
				done(then, context.Canceled)
				return
			}
			if err != nil {
				d.logger.Warn("load chat history failed", "chat_id", chatID, "error", err)
			} else {
				d.opts.Reconciler.Replay(records)
			}
			d.Refresh(func(error) { done(then, err) })
		}
	})
}

// Create starts a new chat: the view and the selection are cleared and the
// list is refreshed.
func (d *Directory) Create() {
	d.setSelected("")
	d.clearView()
	d.changed()
	d.Refresh(nil)
}

// Adopt records chatID as the selection without touching the view. Used
// when the backend creates a chat for a live turn.
func (d *Directory) Adopt(chatID string) {
	if chatID == "" || chatID == d.selected {
		return
	}
	d.setSelected(chatID)
	d.changed()
}

// Delete removes a chat. Deleting the selected chat also clears the view
// and the selection; deleting another chat leaves the view untouched.
func (d *Directory) Delete(chatID string, then func(error)) {
	d.async(func(ctx context.Context) func() {
		err := d.opts.Backend.DeleteChat(ctx, chatID)
		return func() {
			if errors.Is(err, client.ErrNotFound) {
				d.logger.Debug("deleted chat was already gone", "chat_id", chatID)
				err = nil
			}
			if err != nil {
				d.logger.Warn("delete chat failed", "chat_id", chatID, "error", err)
			} else if chatID == d.selected {
				d.setSelected("")
				d.clearView()
				d.changed()
			}
			d.Refresh(func(error) { done(then, err) })
		}
	})
}

// Restore loads the persisted selection. It reports whether a chat was
// selected; when it was, Select runs and then receives its outcome.
func (d *Directory) Restore(then func(error)) bool {
	if d.opts.Selection == nil {
		return false
	}
	chatID, err := d.opts.Selection.Selected(d.opts.Profile)
	if err != nil {
		d.logger.Warn("read persisted selection failed", "profile", d.opts.Profile, "error", err)
		return false
	}
	if chatID == "" {
		return false
	}
	d.Select(chatID, then)
	return true
}

// DiscardPendingReplay drops a history load still in flight, so it cannot
// land behind content added to the view since.
func (d *Directory) DiscardPendingReplay() {
	d.viewSeq++
}

func (d *Directory) setSelected(chatID string) {
	d.selected = chatID
	if d.opts.Selection == nil {
		return
	}
	if err := d.opts.Selection.SetSelected(d.opts.Profile, chatID); err != nil {
		d.logger.Error("persist selection failed", "profile", d.opts.Profile, "error", err)
	}
}

func (d *Directory) clearView() uint64 {
	d.viewSeq++
	if d.opts.ClearTurn != nil {
		d.opts.ClearTurn()
	}
	d.opts.Transcript.Clear()
	return d.viewSeq
}

func (d *Directory) changed() {
	if d.opts.Changed != nil {
		d.opts.Changed()
	}
}

// async runs work off the loop with a timeout and posts the callback it
// returns back onto the loop.
func (d *Directory) async(work func(ctx context.Context) func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()
		apply := work(ctx)
		if !d.opts.Poster.Post(apply) {
			d.logger.Debug("loop stopped before directory result was applied")
		}
	}()
}

func done(then func(error), err error) {
	if then != nil {
		then(err)
	}
}
