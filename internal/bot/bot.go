package bot

import (
	"fmt"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/calv06/snag/internal/services"
)

const welcomeText = `👋 Send me a link and I'll fetch the media for you.

Supported: YouTube, Instagram, Facebook, TikTok.
Files over 50 MB come back as a gofile.io link.`

const helpText = `Send a link from YouTube, Instagram, Facebook or TikTok.

YouTube asks for video or audio first; everything else downloads right away.
• Albums and carousels arrive as media groups.
• Files over 50 MB are uploaded to gofile.io and you get a link.

Commands:
/start – intro
/help – this message`

// Bot drives the Telegram update loop and hands chat input to the
// orchestrator.
type Bot struct {
	api       *tgbotapi.BotAPI
	orch      *services.Orchestrator
	qualities []int
	log       *zap.Logger
}

func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func New(api *tgbotapi.BotAPI, orch *services.Orchestrator, qualities []int, log *zap.Logger) *Bot {
	return &Bot{api: api, orch: orch, qualities: qualities, log: log}
}

// Run consumes updates until Stop is called, which closes the channel.
func (b *Bot) Run() {
	b.log.Info("bot logged in", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		go b.handleUpdate(update)
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("update handler panicked",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(update.Message)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, welcomeText)
	case "help":
		b.reply(msg.Chat.ID, helpText)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleText(msg *tgbotapi.Message) {
	if b.orch.SubmitURL(msg.Chat.ID, msg.Text) {
		b.sendModeKeyboard(msg.Chat.ID)
	}
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	// Ack first so the client stops its spinner even if the press is stale.
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.log.Debug("callback ack failed", zap.Error(err))
	}
	if cq.Message == nil {
		return
	}

	chatID := cq.Message.Chat.ID
	if b.orch.SubmitSelection(chatID, cq.Message.MessageID, cq.Data) == services.SelectionNeedQuality {
		b.editQualityKeyboard(chatID, cq.Message.MessageID)
	}
}

func (b *Bot) sendModeKeyboard(chatID int64) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 Video", "video"),
			tgbotapi.NewInlineKeyboardButtonData("🎵 Audio (MP3)", "audio"),
		),
	)
	m := tgbotapi.NewMessage(chatID, "How do you want it?")
	m.ReplyMarkup = kb
	if _, err := b.api.Send(m); err != nil {
		b.log.Warn("mode keyboard failed", zap.Error(err))
	}
}

func (b *Bot) editQualityKeyboard(chatID int64, messageID int) {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(b.qualities))
	for _, q := range b.qualities {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dp", q), fmt.Sprintf("video_%d", q)))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, "Pick a quality:", kb)
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("quality keyboard failed", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("reply failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}
