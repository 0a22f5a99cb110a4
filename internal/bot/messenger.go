package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/calv06/snag/internal/services"
)

// TelegramMessenger adapts the Telegram API to the orchestrator's delivery
// interface. Paths go out as multipart uploads straight from disk.
type TelegramMessenger struct {
	api *tgbotapi.BotAPI
}

var _ services.Messenger = (*TelegramMessenger)(nil)

func NewMessenger(api *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{api: api}
}

func (m *TelegramMessenger) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := m.api.Send(msg)
	return err
}

func (m *TelegramMessenger) SendStatus(chatID int64, text string) (int, error) {
	sent, err := m.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (m *TelegramMessenger) EditStatus(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	_, err := m.api.Send(edit)
	return err
}

func (m *TelegramMessenger) DeleteStatus(chatID int64, messageID int) error {
	_, err := m.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (m *TelegramMessenger) SendAudio(chatID int64, path string) error {
	_, err := m.api.Send(tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path)))
	return err
}

func (m *TelegramMessenger) SendVideo(chatID int64, path string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.SupportsStreaming = true
	_, err := m.api.Send(video)
	return err
}

func (m *TelegramMessenger) SendPhoto(chatID int64, path string) error {
	_, err := m.api.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path)))
	return err
}

func (m *TelegramMessenger) SendDocument(chatID int64, path string) error {
	_, err := m.api.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
	return err
}

func (m *TelegramMessenger) SendAlbum(chatID int64, items []services.AlbumItem) error {
	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		if item.Photo {
			media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(item.Path)))
			continue
		}
		v := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(item.Path))
		v.SupportsStreaming = true
		media = append(media, v)
	}
	_, err := m.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return err
}
