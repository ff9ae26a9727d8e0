package service

import (
	"context"
	"fmt"
	"strconv"

	"mentalgoals/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var notificationIcons = map[NotificationKind]string{
	NotifySuccess: "✅",
	NotifyWarning: "⚠️",
	NotifyDanger:  "⛔",
}

type NotifierConfig struct {
	BotToken string
	Debug    bool
}

// TelegramNotifier delivers notifications as bot messages to the owner's
// chat. Owners are Telegram user ids.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramNotifier(config NotifierConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = config.Debug

	return &TelegramNotifier{
		bot: bot,
	}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, owner, message string, kind NotificationKind) {
	chatID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil {
		logger.Logger().Warn("cannot notify owner without telegram id",
			zap.String("owner", owner),
			zap.String("message", message))
		return
	}

	text := fmt.Sprintf("%s %s", notificationIcons[kind], message)
	go func() {
		if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			logger.Logger().Error("failed to send telegram notification",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}()
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, owner, message string, kind NotificationKind) {
	logger.Logger().Info("notification",
		zap.String("owner", owner),
		zap.String("kind", string(kind)),
		zap.String("message", message))
}
