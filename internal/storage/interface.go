package storage

import (
	"time"

	"xcard-backend/internal/model"
)

// SessionEntry 记录某个 chat 最近一次处理的推文
type SessionEntry struct {
	ChatID    int64
	TweetURL  string
	Post      *model.PostData // nil 表示上次在拿到数据前就失败了
	UpdatedAt time.Time
}

type SessionStore interface {
	Get(chatID int64) (*SessionEntry, error)
	Put(entry *SessionEntry) error
}
