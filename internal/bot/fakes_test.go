package bot

import (
	"context"
	"sync"

	"xcard-backend/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type call struct {
	Method  string
	ChatID  int64
	Text    string
	Offset  int
	Timeout int
	Markup  *tgbotapi.InlineKeyboardMarkup
}

// fakeMessenger 记录所有调用，getUpdates 的结果由 updates 决定
type fakeMessenger struct {
	mu       sync.Mutex
	calls    []call
	nextID   int
	updates  func(offset, timeout int) ([]tgbotapi.Update, error)
	photoCh  chan struct{}
	photoErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100, photoCh: make(chan struct{}, 10)}
}

func (f *fakeMessenger) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeMessenger) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeMessenger) methods() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeMessenger) texts() []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Method == "sendText" {
			out = append(out, c.Text)
		}
	}
	return out
}

func (f *fakeMessenger) GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error) {
	f.record(call{Method: "getUpdates", Offset: offset, Timeout: timeout})
	if f.updates == nil {
		return nil, nil
	}
	return f.updates(offset, timeout)
}

func (f *fakeMessenger) DeleteWebhook(ctx context.Context) error {
	f.record(call{Method: "deleteWebhook"})
	return nil
}

func (f *fakeMessenger) SetCommands(ctx context.Context, commands ...tgbotapi.BotCommand) error {
	f.record(call{Method: "setCommands"})
	return nil
}

func (f *fakeMessenger) SendText(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.record(call{Method: "sendText", ChatID: chatID, Text: text, Markup: markup})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeMessenger) SendPhoto(ctx context.Context, chatID int64, png []byte, markup *tgbotapi.InlineKeyboardMarkup) error {
	f.record(call{Method: "sendPhoto", ChatID: chatID, Markup: markup})
	f.photoCh <- struct{}{}
	return f.photoErr
}

func (f *fakeMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.record(call{Method: "deleteMessage", ChatID: chatID})
	return nil
}

func (f *fakeMessenger) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.record(call{Method: "answerCallback", Text: text})
	return nil
}

// fakeCards 的 Fetch 可以阻塞，直到测试放行
type fakeCards struct {
	mu         sync.Mutex
	fetches    []string
	fetchGate  chan struct{}
	fetchErr   error
	renderErr  error
	social     string
	socialErr  error
	socialOn   bool
	socialPost *model.PostData
}

func (c *fakeCards) Fetch(ctx context.Context, tweetURL string) (*model.PostData, error) {
	c.mu.Lock()
	c.fetches = append(c.fetches, tweetURL)
	gate := c.fetchGate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return &model.PostData{Text: "hello", TweetURL: tweetURL}, nil
}

func (c *fakeCards) Render(ctx context.Context, post *model.PostData) ([]byte, error) {
	if c.renderErr != nil {
		return nil, c.renderErr
	}
	return []byte("png"), nil
}

func (c *fakeCards) Social(ctx context.Context, post *model.PostData) (string, error) {
	c.mu.Lock()
	c.socialPost = post
	c.mu.Unlock()
	return c.social, c.socialErr
}

func (c *fakeCards) SocialEnabled() bool { return c.socialOn }

func (c *fakeCards) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetches)
}
