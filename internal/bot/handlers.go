package bot

import (
	"context"
	"html"
	"strings"
	"time"

	"xcard-backend/internal/model"
	"xcard-backend/internal/source"
	"xcard-backend/internal/storage"
	"xcard-backend/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const cleanupTimeout = 10 * time.Second

func (b *Bot) authorized(chat *tgbotapi.Chat) bool {
	_, chatID := b.credentials()
	return chat != nil && chatID != 0 && chat.ID == chatID
}

func (b *Bot) handleUpdate(ctx context.Context, m Messenger, u tgbotapi.Update) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.Message == nil || !b.authorized(cb.Message.Chat) {
			return
		}
		chatID := cb.Message.Chat.ID
		switch cb.Data {
		case cbRegen, cbRetry:
			b.handleRegen(ctx, m, chatID, cb.ID)
		case cbRewriteSocial:
			b.handleRewriteSocial(ctx, m, chatID, cb.ID)
		}
		return
	}

	msg := u.Message
	if msg == nil || msg.Text == "" || !b.authorized(msg.Chat) {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.send(ctx, m, chatID, textStart, nil)
			return
		case "help":
			b.send(ctx, m, chatID, textHelp, nil)
			return
		case "rewrite":
			var arg string
			if fields := strings.Fields(msg.CommandArguments()); len(fields) > 0 {
				arg = fields[0]
			}
			b.handleRewrite(ctx, m, chatID, arg)
			return
		}
	}

	if tweetURL := source.ExtractURL(msg.Text); tweetURL != "" {
		b.handleXCard(ctx, m, chatID, tweetURL)
		return
	}

	b.send(ctx, m, chatID, textUnknown, nil)
}

func (b *Bot) send(ctx context.Context, m Messenger, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) int {
	id, err := m.SendText(ctx, chatID, text, markup)
	if err != nil {
		logger.WithFields(logrus.Fields{"chat_id": chatID}).WithError(err).Error("send message failed")
	}
	return id
}

func (b *Bot) answer(ctx context.Context, m Messenger, callbackID, text string) {
	if err := m.AnswerCallback(ctx, callbackID, text); err != nil {
		logger.WithError(err).Warn("answer callback failed")
	}
}

// deleteStatus 尽力删除状态消息，调用方的 context 可能已取消
func (b *Bot) deleteStatus(ctx context.Context, m Messenger, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := m.DeleteMessage(ctx, chatID, messageID); err != nil {
		logger.WithError(err).Warn("failed to delete status message")
	}
}

func (b *Bot) remember(chatID int64, tweetURL string, post *model.PostData) {
	if err := b.sessions.Put(&storage.SessionEntry{ChatID: chatID, TweetURL: tweetURL, Post: post}); err != nil {
		logger.WithError(err).Warn("save session failed")
	}
}

type socialResult struct {
	text string
	err  error
}

// handleXCard 完整流程：抓取、渲染并发送图片，同时生成文案
func (b *Bot) handleXCard(ctx context.Context, m Messenger, chatID int64, tweetURL string) {
	if !b.guard.TryAcquire() {
		b.send(ctx, m, chatID, textInProgress, nil)
		return
	}
	defer b.guard.Release()

	statusID := b.send(ctx, m, chatID, textGenerating, nil)
	defer b.deleteStatus(ctx, m, chatID, statusID)

	ctx, cancel := context.WithTimeout(ctx, b.genTimeout)
	defer cancel()

	log := logger.WithFields(logrus.Fields{"chat_id": chatID, "url": tweetURL})

	post, err := b.cards.Fetch(ctx, tweetURL)
	if err != nil {
		b.generationFailed(ctx, m, chatID, tweetURL, nil, err)
		return
	}

	var socialCh chan socialResult
	if b.cards.SocialEnabled() {
		socialCh = make(chan socialResult, 1)
		go func() {
			text, err := b.cards.Social(ctx, post)
			socialCh <- socialResult{text, err}
		}()
	}

	img, err := b.cards.Render(ctx, post)
	if err == nil {
		err = m.SendPhoto(ctx, chatID, img, photoKeyboard())
	}
	if err != nil {
		b.generationFailed(ctx, m, chatID, tweetURL, post, err)
		return
	}
	b.remember(chatID, tweetURL, post)
	log.Info("xcard delivered")

	if socialCh == nil {
		return
	}
	select {
	case r := <-socialCh:
		switch {
		case r.err != nil:
			log.WithError(r.err).Error("ai social post failed")
		case r.text != "":
			b.send(ctx, m, chatID, html.EscapeString(r.text), nil)
		}
	case <-ctx.Done():
		log.WithError(ctx.Err()).Error("ai social post timed out")
	}
}

func (b *Bot) generationFailed(ctx context.Context, m Messenger, chatID int64, tweetURL string, post *model.PostData, err error) {
	logger.WithFields(logrus.Fields{"chat_id": chatID, "url": tweetURL}).WithError(err).Error("xcard generation failed")
	b.remember(chatID, tweetURL, post)
	b.send(context.WithoutCancel(ctx), m, chatID, textCardFailed, retryKeyboard())
}

func (b *Bot) handleRegen(ctx context.Context, m Messenger, chatID int64, callbackID string) {
	entry, err := b.sessions.Get(chatID)
	if err != nil {
		b.answer(ctx, m, callbackID, answerNoRegen)
		return
	}
	b.answer(ctx, m, callbackID, "")
	b.handleXCard(ctx, m, chatID, entry.TweetURL)
}

// handleRewrite 只重新生成文案，不经过 Guard
func (b *Bot) handleRewrite(ctx context.Context, m Messenger, chatID int64, arg string) {
	if arg == "" {
		b.send(ctx, m, chatID, textRewriteUsage, nil)
		return
	}
	tweetURL := source.ExtractURL(arg)
	if tweetURL == "" {
		b.send(ctx, m, chatID, textInvalidURL, nil)
		return
	}
	if !b.cards.SocialEnabled() {
		b.send(ctx, m, chatID, textAIMissing, nil)
		return
	}

	statusID := b.send(ctx, m, chatID, textRewriting, nil)
	defer b.deleteStatus(ctx, m, chatID, statusID)

	log := logger.WithFields(logrus.Fields{"chat_id": chatID, "url": tweetURL})

	post, err := b.cards.Fetch(ctx, tweetURL)
	if err != nil {
		log.WithError(err).Error("rewrite fetch failed")
		b.send(ctx, m, chatID, textRewriteFailed, nil)
		return
	}
	b.remember(chatID, tweetURL, post)

	text, err := b.cards.Social(ctx, post)
	if err != nil || text == "" {
		log.WithError(err).Error("rewrite failed")
		b.send(ctx, m, chatID, textAIFailed, nil)
		return
	}
	b.send(ctx, m, chatID, html.EscapeString(text), nil)
}

// handleRewriteSocial 使用保存的推文数据重写文案，没有数据时重新抓取
func (b *Bot) handleRewriteSocial(ctx context.Context, m Messenger, chatID int64, callbackID string) {
	entry, err := b.sessions.Get(chatID)
	if err != nil {
		b.answer(ctx, m, callbackID, answerNoRewrite)
		return
	}
	if !b.cards.SocialEnabled() {
		b.answer(ctx, m, callbackID, answerAIMissing)
		return
	}
	b.answer(ctx, m, callbackID, answerRewriting)

	log := logger.WithFields(logrus.Fields{"chat_id": chatID, "url": entry.TweetURL})

	post := entry.Post
	if post == nil {
		post, err = b.cards.Fetch(ctx, entry.TweetURL)
		if err != nil {
			log.WithError(err).Error("rewrite social fetch failed")
			b.send(ctx, m, chatID, textAIFailed, nil)
			return
		}
		b.remember(chatID, entry.TweetURL, post)
	}

	text, err := b.cards.Social(ctx, post)
	if err != nil || text == "" {
		log.WithError(err).Error("rewrite social failed")
		b.send(ctx, m, chatID, textAIFailed, nil)
		return
	}
	b.send(ctx, m, chatID, html.EscapeString(text), nil)
}
