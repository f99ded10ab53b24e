package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/lavandejoey/MobileRAG/internal/models"
)

// chatLister lists the backend's chats.
type chatLister interface {
	ListChats(ctx context.Context, limit int) ([]models.Chat, error)
}

// resolveChat finds a chat by full id or unique id prefix.
func resolveChat(ctx context.Context, c chatLister, ref string) (models.Chat, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Chat{}, fmt.Errorf("chat id is empty")
	}

	chats, err := c.ListChats(ctx, cfg.ChatLimit)
	if err != nil {
		return models.Chat{}, fmt.Errorf("list chats: %w", err)
	}

	var matches []models.Chat
	for _, chat := range chats {
		if chat.ChatID == ref {
			return chat, nil
		}
		if strings.HasPrefix(chat.ChatID, ref) {
			matches = append(matches, chat)
		}
	}

	switch len(matches) {
	case 0:
		return models.Chat{}, fmt.Errorf("chat not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Chat{}, fmt.Errorf("chat id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
