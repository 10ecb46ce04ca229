package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"xcard-backend/internal/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var allowedUpdates = []string{"message", "callback_query"}

// Messenger 是 bot 用到的 Telegram 接口
type Messenger interface {
	GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error)
	DeleteWebhook(ctx context.Context) error
	SetCommands(ctx context.Context, commands ...tgbotapi.BotCommand) error
	SendText(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error)
	SendPhoto(ctx context.Context, chatID int64, png []byte, markup *tgbotapi.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Connector 用 token 建立 Messenger
type Connector func(token string) (Messenger, error)

type telegram struct {
	api *tgbotapi.BotAPI
}

// NewConnector 返回基于 tgbotapi 的 Connector，endpoint 为空时使用官方地址
func NewConnector(endpoint string, client *http.Client) Connector {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return func(token string) (Messenger, error) {
		api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
		if err != nil {
			return nil, fmt.Errorf("connect telegram: %w", err)
		}
		return &telegram{api: api}, nil
	}
}

// isConflict 判断是否有另一个实例在轮询
func isConflict(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == http.StatusConflict
}

func (t *telegram) GetUpdates(ctx context.Context, offset, timeout int) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.UpdateConfig{
		Offset:         offset,
		Timeout:        timeout,
		AllowedUpdates: allowedUpdates,
	}

	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	ch := make(chan result, 1)
	// tgbotapi 不支持 context，长轮询放到 goroutine 里以便 Stop 时不必等满超时
	go func() {
		updates, err := t.api.GetUpdates(cfg)
		ch <- result{updates, err}
	}()

	select {
	case r := <-ch:
		return r.updates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *telegram) DeleteWebhook(ctx context.Context) error {
	_, err := t.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false})
	return err
}

func (t *telegram) SetCommands(ctx context.Context, commands ...tgbotapi.BotCommand) error {
	_, err := t.api.Request(tgbotapi.NewSetMyCommands(commands...))
	return err
}

func (t *telegram) SendText(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
	}
	return sent.MessageID, nil
}

func (t *telegram) SendPhoto(ctx context.Context, chatID int64, png []byte, markup *tgbotapi.InlineKeyboardMarkup) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "xcard.png", Bytes: png})
	if markup != nil {
		photo.ReplyMarkup = *markup
	}
	if _, err := t.api.Send(photo); err != nil {
		return fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
	}
	return nil
}

func (t *telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (t *telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
