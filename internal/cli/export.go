package cli

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lavandejoey/MobileRAG/internal/history"
	"github.com/lavandejoey/MobileRAG/internal/markup"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/view"
)

var (
	exportOutput string
	exportThink  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <chat-id>",
	Short: "Export a chat to a standalone HTML file",
	Long: `Export a stored chat to a standalone HTML document.

Answers are rendered from Markdown and sanitized. With --think the
reasoning behind each answer is included in a collapsed section.

Examples:
  mobilerag export 3f2a9c1e
  mobilerag export 3f2a9c1e -o onboarding.html
  mobilerag export 3f2a9c1e --think -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, '-' for stdout (default <chat-id>.html)")
	exportCmd.Flags().BoolVar(&exportThink, "think", false, "include the reasoning behind each answer")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ClientTimeout)
	defer cancel()

	chat, err := resolveChat(ctx, apiClient, args[0])
	if err != nil {
		return err
	}
	records, err := apiClient.GetMessages(ctx, chat.ChatID, cfg.MessageLimit)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	transcript := view.NewTranscript()
	history.New(transcript, markup.HTML(), logger).Replay(records)

	if exportOutput == "-" {
		return writeExport(os.Stdout, chat, transcript, exportThink, time.Now())
	}

	path := exportOutput
	if path == "" {
		path = chat.ShortID() + ".html"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := writeExport(f, chat, transcript, exportThink, time.Now()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}

	fmt.Printf("Exported %d messages to %s\n", transcript.Len(), path)
	return nil
}

type exportMessage struct {
	Kind      string
	Badge     string
	Time      string
	Text      string
	HTML      template.HTML
	Hint      string
	ThinkHead string
	Think     string
}

type exportDocument struct {
	Title    string
	ChatID   string
	Exported string
	Messages []exportMessage
}

// writeExport renders the transcript as one HTML document. Assistant
// markup is already sanitized by the HTML renderer.
func writeExport(w io.Writer, chat models.Chat, t *view.Transcript, think bool, now time.Time) error {
	doc := exportDocument{
		Title:    chat.DisplayTitle(),
		ChatID:   chat.ChatID,
		Exported: now.Format(time.RFC3339),
	}

	for _, b := range t.Snapshot().Bubbles {
		msg := exportMessage{
			Badge: b.Badge,
			Text:  b.Text,
			Hint:  b.Hint.Label,
		}
		switch b.Kind {
		case view.KindUser:
			msg.Kind = "user"
		case view.KindAssistant:
			msg.Kind = "assistant"
			msg.HTML = template.HTML(b.Markup)
		default:
			msg.Kind = "system"
		}
		if !b.Time.IsZero() {
			msg.Time = b.Time.Format("2006-01-02 15:04:05")
		}
		if think {
			if title, text, ok := t.Reveal(b.ID); ok {
				msg.ThinkHead = title
				msg.Think = text
			}
		}
		doc.Messages = append(doc.Messages, msg)
	}

	if err := exportTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("render export: %w", err)
	}
	return nil
}

var exportTemplate = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
.msg { margin: 1.25rem 0; padding: .75rem 1rem; border-radius: .5rem; }
.user { background: #eef6fb; }
.assistant { background: #f4fbf7; }
.system { background: #fdeef2; }
.badge { font-weight: 600; font-size: .8rem; letter-spacing: .05em; }
.meta { color: #6c6c6c; font-size: .8rem; margin-left: .5rem; }
.text { white-space: pre-wrap; }
details { margin-top: .5rem; color: #555; }
details pre { white-space: pre-wrap; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">{{.ChatID}} · exported {{.Exported}}</p>
{{range .Messages}}<div class="msg {{.Kind}}">
<div><span class="badge">{{.Badge}}</span>{{if .Time}}<span class="meta">{{.Time}}</span>{{end}}{{if .Hint}}<span class="meta">{{.Hint}}</span>{{end}}</div>
{{if .HTML}}<div class="markup">{{.HTML}}</div>{{else}}<div class="text">{{.Text}}</div>{{end}}
{{if .ThinkHead}}<details><summary>{{.ThinkHead}}</summary><pre>{{.Think}}</pre></details>{{end}}
</div>
{{end}}</body>
</html>
`))
