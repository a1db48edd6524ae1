package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig 管理员 Telegram 告警配置
type TelegramConfig struct {
	BotToken    string
	ChatIDs     []int64
	APIEndpoint string // 为空时使用官方地址
}

// TelegramAlerter 把管理员告警推送到 Telegram 群组/会话
type TelegramAlerter struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
}

// NewTelegramAlerter 创建 Telegram 告警器（会调用 getMe 校验 token）
func NewTelegramAlerter(cfg TelegramConfig) (*TelegramAlerter, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, fmt.Errorf("%w: telegram bot token is empty", ErrConfigInvalid)
	}
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return &TelegramAlerter{
		api:     api,
		chatIDs: append([]int64(nil), cfg.ChatIDs...),
	}, nil
}

// Alert 向所有管理员会话发送文本；任一失败都会汇总返回
func (a *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if a == nil || a.api == nil || len(a.chatIDs) == 0 {
		return nil
	}
	var errs []error
	for _, chatID := range a.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := a.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrSendFailed, errors.Join(errs...))
	}
	return nil
}
