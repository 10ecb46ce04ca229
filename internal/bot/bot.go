package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"xcard-backend/internal/model"
	"xcard-backend/internal/storage"
	"xcard-backend/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Cards 是 bot 依赖的卡片服务
type Cards interface {
	Fetch(ctx context.Context, tweetURL string) (*model.PostData, error)
	Render(ctx context.Context, post *model.PostData) ([]byte, error)
	Social(ctx context.Context, post *model.PostData) (string, error)
	SocialEnabled() bool
}

// Credentials 每轮读取一次，配置热更新后可以补上 token
type Credentials func() (token string, chatID int64)

// Delays 轮询间隔
type Delays struct {
	Poll               time.Duration
	Error              time.Duration
	Conflict           time.Duration
	MissingCredentials time.Duration
}

var DefaultDelays = Delays{
	Poll:               time.Second,
	Error:              5 * time.Second,
	Conflict:           10 * time.Second,
	MissingCredentials: 10 * time.Second,
}

const (
	DefaultPollTimeout       = 30
	DefaultGenerationTimeout = 45 * time.Second
)

type Bot struct {
	cards       Cards
	sessions    storage.SessionStore
	credentials Credentials
	connect     Connector
	onStop      func()

	delays      Delays
	pollTimeout int
	genTimeout  time.Duration

	guard    Guard
	inFlight atomic.Bool

	// 以下字段只在持有 inFlight 的轮询中访问
	messenger   Messenger
	token       string
	initialized bool

	cursorMu sync.Mutex
	cursor   int

	lifeMu   sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Bot)

func WithDelays(d Delays) Option {
	return func(b *Bot) { b.delays = d }
}

func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		if seconds >= 0 {
			b.pollTimeout = seconds
		}
	}
}

func WithGenerationTimeout(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.genTimeout = d
		}
	}
}

// WithOnStop 在 Stop 时调用，用于关闭浏览器
func WithOnStop(fn func()) Option {
	return func(b *Bot) { b.onStop = fn }
}

func New(cards Cards, sessions storage.SessionStore, credentials Credentials, connect Connector, opts ...Option) *Bot {
	b := &Bot{
		cards:       cards,
		sessions:    sessions,
		credentials: credentials,
		connect:     connect,
		delays:      DefaultDelays,
		pollTimeout: DefaultPollTimeout,
		genTimeout:  DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var ErrAlreadyStarted = errors.New("bot already started")

// Start 启动轮询 goroutine。第一轮会先清理残留的轮询会话
func (b *Bot) Start(ctx context.Context) error {
	b.lifeMu.Lock()
	defer b.lifeMu.Unlock()
	if b.done != nil {
		return ErrAlreadyStarted
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.run(ctx, b.done)

	_, chatID := b.credentials()
	logger.WithFields(logrus.Fields{"chat_id": chatID}).Info("telegram bot started")
	return nil
}

// Stop 停止轮询并等待循环退出，可重复调用
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		b.lifeMu.Lock()
		cancel, done := b.cancel, b.done
		b.lifeMu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		if b.onStop != nil {
			b.onStop()
		}
		logger.Info("telegram bot stopped")
	})
}

func (b *Bot) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		delay := b.poll(ctx)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Cursor 返回最后处理的 update id
func (b *Bot) Cursor() int {
	b.cursorMu.Lock()
	defer b.cursorMu.Unlock()
	return b.cursor
}

// advance 游标只增不减
func (b *Bot) advance(updateID int) {
	b.cursorMu.Lock()
	defer b.cursorMu.Unlock()
	if updateID > b.cursor {
		b.cursor = updateID
	}
}

// poll 执行一轮 getUpdates，返回距下一轮的等待时间
func (b *Bot) poll(ctx context.Context) time.Duration {
	if !b.inFlight.CompareAndSwap(false, true) {
		return b.delays.Poll
	}
	defer b.inFlight.Store(false)

	token, chatID := b.credentials()
	if token == "" || chatID == 0 {
		logger.Debug("telegram credentials missing, waiting")
		return b.delays.MissingCredentials
	}

	m, err := b.client(token)
	if err != nil {
		logger.WithError(err).Error("telegram connect failed")
		return b.delays.Error
	}

	if !b.initialized {
		b.recoverSession(ctx, m)
		if err := m.SetCommands(ctx, commands...); err != nil {
			logger.WithError(err).Warn("set bot commands failed")
		}
		b.initialized = true
	}

	updates, err := m.GetUpdates(ctx, b.Cursor()+1, b.pollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		if isConflict(err) {
			logger.Warn("409 conflict detected, clearing stale connections")
			b.recoverSession(ctx, m)
			return b.delays.Conflict
		}
		logger.WithError(err).Error("poll failed")
		return b.delays.Error
	}

	for _, u := range updates {
		b.advance(u.UpdateID)
		b.dispatch(ctx, m, u)
	}
	return b.delays.Poll
}

// client 按需创建 Messenger，token 变化时重建
func (b *Bot) client(token string) (Messenger, error) {
	if b.messenger != nil && b.token == token {
		return b.messenger, nil
	}
	m, err := b.connect(token)
	if err != nil {
		return nil, err
	}
	b.messenger, b.token, b.initialized = m, token, false
	return m, nil
}

// recoverSession 删除 webhook 并用零超时轮询跳过残留的更新
func (b *Bot) recoverSession(ctx context.Context, m Messenger) {
	if err := m.DeleteWebhook(ctx); err != nil {
		logger.WithError(err).Warn("delete webhook failed")
	}
	updates, err := m.GetUpdates(ctx, -1, 0)
	if err != nil {
		logger.WithError(err).Warn("flush updates failed")
		return
	}
	if n := len(updates); n > 0 {
		b.advance(updates[n-1].UpdateID)
	}
	logger.Info("cleared stale telegram connections")
}

// dispatch 每个 update 在自己的 goroutine 里处理
func (b *Bot) dispatch(ctx context.Context, m Messenger, u tgbotapi.Update) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{"update_id": u.UpdateID, "panic": r}).Error("handle update panicked")
			}
		}()
		b.handleUpdate(ctx, m, u)
	}()
}
