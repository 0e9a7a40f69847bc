// Package telegram adapts the Telegram Bot API to the transport contract:
// it consumes the update stream, routes messages and keyboard taps to the
// workflow handler, and delivers text, progress edits, and files.
package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ytcourier/internal/logging"
	"ytcourier/internal/services"
	"ytcourier/internal/transport"
)

// Bot runs the Telegram front end.
type Bot struct {
	api         *tgbotapi.BotAPI
	acl         *transport.AccessControl
	handler     transport.Handler
	logger      *slog.Logger
	pollTimeout int
}

// New connects to the Bot API and validates the token.
func New(token string, acl *transport.AccessControl, handler transport.Handler, pollTimeout int, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "telegram", "new", "authorize bot", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bot{
		api:         api,
		acl:         acl,
		handler:     handler,
		logger:      logger,
		pollTimeout: pollTimeout,
	}, nil
}

// SetHandler binds the workflow handler. The handler needs the bot as its
// messenger, so it is attached after construction and before Run.
func (b *Bot) SetHandler(handler transport.Handler) {
	b.handler = handler
}

// Username returns the authorized bot account name.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run consumes the update stream until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("telegram transport started",
		logging.String("bot", b.api.Self.UserName),
		logging.String(logging.FieldEventType, "transport_started"))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	ownerID := msg.From.ID
	if !b.acl.Allowed(ownerID) {
		// No reply: unlisted users get no hint the bot is alive.
		b.logger.Debug("dropped message from unlisted user",
			logging.Int64(logging.FieldOwnerID, ownerID))
		return
	}

	ctx = services.WithOwnerID(ctx, ownerID)
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.reply(ctx, chatID, "Send a YouTube link and pick a quality. /cancel aborts the active job, /status shows it.")
		case "cancel":
			b.handler.HandleCancel(ctx, ownerID, chatID)
		case "status":
			b.handler.HandleStatus(ctx, ownerID, chatID)
		default:
			b.reply(ctx, chatID, "Unknown command. Send a YouTube link, or use /cancel or /status.")
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.handler.HandleURL(ctx, ownerID, chatID, text)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	ownerID := query.From.ID
	if !b.acl.Allowed(ownerID) {
		return
	}
	ctx = services.WithOwnerID(ctx, ownerID)

	sel, cancel, err := transport.DecodeCallback(query.Data)
	if err != nil {
		b.logger.Warn("undecodable callback payload",
			logging.Int64(logging.FieldOwnerID, ownerID),
			logging.Error(err))
		b.answerCallback(query.ID, "")
		return
	}

	if cancel {
		b.answerCallback(query.ID, "Cancelling...")
		if query.Message != nil {
			b.handler.HandleCancel(ctx, ownerID, query.Message.Chat.ID)
		}
		return
	}

	ack := b.handler.HandleSelection(ctx, ownerID, sel)
	b.answerCallback(query.ID, ack)
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug("answer callback failed", logging.Error(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.SendText(ctx, chatID, text); err != nil {
		b.logger.Warn("reply failed",
			logging.Int64("chat_id", chatID),
			logging.Error(err))
	}
}

// SendText posts a message and returns its id.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "telegram", "send_text", "send message", err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a previously sent message.
func (b *Bot) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "edit_text", "edit message", err)
	}
	return nil
}

// SendSelection posts a message with the format keyboard attached.
func (b *Bot) SendSelection(ctx context.Context, chatID int64, text string, options []transport.SelectionOption) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildKeyboard(options)
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, services.Wrap(services.ErrTransport, "telegram", "send_selection", "send keyboard", err)
	}
	return sent.MessageID, nil
}

// ClearSelection strips the keyboard from a selection message.
func (b *Bot) ClearSelection(ctx context.Context, chatID int64, messageID int) error {
	markup := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Send(markup); err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "clear_selection", "remove keyboard", err)
	}
	return nil
}

// SendVideo uploads a video file with a caption.
func (b *Bot) SendVideo(ctx context.Context, chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	if _, err := b.api.Send(video); err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "send_video", "upload video", err)
	}
	return nil
}

// SendAudio uploads an audio file with tag metadata and cover art.
func (b *Bot) SendAudio(ctx context.Context, chatID int64, audio transport.Audio) error {
	msg := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(audio.Path))
	msg.Title = audio.Title
	msg.Performer = audio.Performer
	msg.Duration = audio.DurationSecs
	if audio.ThumbnailPath != "" {
		msg.Thumb = tgbotapi.FilePath(audio.ThumbnailPath)
	}
	if _, err := b.api.Send(msg); err != nil {
		return services.Wrap(services.ErrTransport, "telegram", "send_audio", "upload audio", err)
	}
	return nil
}

// buildKeyboard lays format options out two per row with a trailing cancel
// row.
func buildKeyboard(options []transport.SelectionOption) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	jobID := ""
	for _, opt := range options {
		jobID = opt.JobID
		button := tgbotapi.NewInlineKeyboardButtonData(
			transport.OptionLabel(opt),
			transport.EncodeSelection(opt.JobID, opt.FormatID),
		)
		row = append(row, button)
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if jobID != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", transport.EncodeCancel(jobID)),
		))
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
