package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/weforks/taskbot/pkg/bus"
	"github.com/weforks/taskbot/pkg/config"
	"github.com/weforks/taskbot/pkg/logger"
)

const telegramMaxMessageLength = 4096

type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	config config.TelegramConfig
}

func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", messageBus, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					return
				}
				switch {
				case update.Message != nil:
					c.handleMessage(update.Message)
				case update.CallbackQuery != nil:
					c.handleCallbackQuery(ctx, update.CallbackQuery)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	chunks := splitMessage(msg.Content, telegramMaxMessageLength)
	for i, chunk := range chunks {
		params := tu.Message(tu.ID(chatID), chunk)
		// The keyboard belongs under the final chunk.
		if i == len(chunks)-1 && len(msg.Buttons) > 0 {
			params = params.WithReplyMarkup(inlineKeyboard(msg.Buttons))
		}
		if _, err := c.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (c *TelegramChannel) handleMessage(message *telego.Message) {
	user := message.From
	if user == nil || message.Text == "" {
		return
	}

	senderID, metadata := senderInfo(user, message.Chat)
	logger.DebugCF("telegram", "Received message", map[string]any{
		"sender_id": senderID,
		"chat_id":   message.Chat.ID,
	})

	c.HandleMessage(senderID, fmt.Sprintf("%d", message.Chat.ID), message.Text, "", metadata)
}

func (c *TelegramChannel) handleCallbackQuery(ctx context.Context, query *telego.CallbackQuery) {
	// Always acknowledge, or the client keeps the button spinner forever.
	err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	})
	if err != nil {
		logger.DebugCF("telegram", "Failed to answer callback query", map[string]any{
			"error": err.Error(),
		})
	}

	if query.Message == nil {
		return
	}
	chat := query.Message.GetChat()

	senderID, metadata := senderInfo(&query.From, chat)
	logger.DebugCF("telegram", "Received button press", map[string]any{
		"sender_id": senderID,
		"data":      query.Data,
	})

	c.HandleMessage(senderID, fmt.Sprintf("%d", chat.ID), "", query.Data, metadata)
}

func senderInfo(user *telego.User, chat telego.Chat) (string, map[string]string) {
	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}

	metadata := map[string]string{
		"user_id":  userID,
		"username": user.Username,
		"is_group": fmt.Sprintf("%t", chat.Type != "private"),
	}
	return senderID, metadata
}

func inlineKeyboard(buttons [][]bus.Button) *telego.InlineKeyboardMarkup {
	rows := make([][]telego.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		tgRow := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			tgRow = append(tgRow, tu.InlineKeyboardButton(button.Text).WithCallbackData(button.Data))
		}
		rows = append(rows, tgRow)
	}
	return tu.InlineKeyboard(rows...)
}

func parseChatID(chatIDStr string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(chatIDStr, "%d", &id)
	return id, err
}

// splitMessage splits text into chunks of at most maxLen runes, preferring
// newline and space boundaries.
func splitMessage(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}

	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}

		splitAt := findSplitPoint(runes, maxLen)
		chunk := strings.TrimSpace(string(runes[:splitAt]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		runes = runes[splitAt:]
		for len(runes) > 0 && (runes[0] == '\n' || runes[0] == ' ' || runes[0] == '\t') {
			runes = runes[1:]
		}
	}
	return chunks
}

func findSplitPoint(runes []rune, limit int) int {
	floor := limit / 2
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == ' ' || runes[i-1] == '\t' {
			return i
		}
	}
	return limit
}
