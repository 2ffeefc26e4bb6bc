package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
	"margin_guard/pkg/logger"
)

// RiskEngine — то, что боту нужно от риск-движка.
type RiskEngine interface {
	Settings() models.RiskManagementSettings
	SetSettings(ctx context.Context, s models.RiskManagementSettings)
	MonitorCount() int
	ValidatePartialTakeProfit(ctx context.Context, positionID string, partialQty float64) (*models.PartialTakeProfitRule, error)
	ExecutePartialTakeProfit(ctx context.Context, positionID string, partialQty, triggerPrice float64) error
}

// RiskAssessor отдаёт оценку риска счёта и позиций.
type RiskAssessor interface {
	AssessAccountRisk(ctx context.Context) (models.RiskAssessment, error)
	AnalyzePositionRisks(ctx context.Context) ([]models.PositionRisk, error)
}

// TradeOpener готовит и ставит входные связки parent + SL/TP.
type TradeOpener interface {
	PlanBracket(ctx context.Context, draft models.BracketDraft, stopPrice, takeProfit float64) (*models.BracketPlan, error)
	PlaceBracket(ctx context.Context, plan *models.BracketPlan) (*models.BracketOrder, error)
}

// PositionSource отдаёт открытые позиции.
type PositionSource interface {
	GetPositions(ctx context.Context) ([]models.Position, error)
}

// JournalReader отдаёт последние записи журнала корректировок.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]models.Adjustment, error)
}

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

// Telegram — бот одного оператора: команды управления риск-движком
// плюс канал уведомлений. Без токена работает вхолостую.
type Telegram struct {
	bot    *tgbot.BotAPI
	cfg    *config.Config
	chatID int64

	engine    RiskEngine
	assessor  RiskAssessor
	trader    TradeOpener
	positions PositionSource
	journal   JournalReader

	await awaitInput

	mu       sync.Mutex
	pendings map[string]*pending
}

func NewTelegram(
	cfg *config.Config,
	engine RiskEngine,
	assessor RiskAssessor,
	trader TradeOpener,
	positions PositionSource,
	journal JournalReader,
) (*Telegram, error) {
	t := &Telegram{
		cfg:       cfg,
		chatID:    cfg.Telegram.ChatID,
		engine:    engine,
		assessor:  assessor,
		trader:    trader,
		positions: positions,
		journal:   journal,
		pendings:  make(map[string]*pending),
	}

	if cfg.Telegram.Token == "" {
		return t, nil
	}

	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("NewTelegram: %w", err)
	}
	t.bot = b
	return t, nil
}

// Enabled — настроен ли бот токеном.
func (t *Telegram) Enabled() bool { return t != nil && t.bot != nil }

func (t *Telegram) Send(msg string) {
	if !t.Enabled() || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) sendMarkdown(text string) {
	if !t.Enabled() || t.chatID == 0 {
		return
	}
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) editReplyMarkupRemove(chatID int64, msgID int) error {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	edit := tgbot.NewEditMessageReplyMarkup(chatID, msgID, rm)
	_, err := t.bot.Request(edit)
	return err
}

func (t *Telegram) editText(chatID int64, msgID int, text string) error {
	edit := tgbot.NewEditMessageText(chatID, msgID, text)
	_, err := t.bot.Request(edit)
	return err
}

// Confirm — сообщение с кнопками и ожиданием callback.
func (t *Telegram) Confirm(ctx context.Context, prompt string, timeout time.Duration) bool {
	if !t.Enabled() || t.chatID == 0 {
		return true
	}

	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{
		ch:     make(chan bool, 1),
		prompt: prompt,
	}

	t.mu.Lock()
	t.pendings[token] = p
	t.mu.Unlock()

	btnYes := tgbot.NewInlineKeyboardButtonData("✅ Исполнить", "CONF::"+token)
	btnNo := tgbot.NewInlineKeyboardButtonData("❌ Отмена", "REJ::"+token)
	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(btnYes, btnNo))

	msg := tgbot.NewMessage(t.chatID, prompt)
	msg.ReplyMarkup = kb

	sent, _ := t.bot.Send(msg)
	p.msgID = sent.MessageID

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		_ = t.editReplyMarkupRemove(t.chatID, p.msgID)
		_ = t.editText(t.chatID, p.msgID, fmt.Sprintf("%s\n\n⏳ Таймаут", prompt))
		t.forget(token)
		return false
	case <-ctx.Done():
		_ = t.editReplyMarkupRemove(t.chatID, p.msgID)
		_ = t.editText(t.chatID, p.msgID, fmt.Sprintf("%s\n\n⛔️ Отменено", prompt))
		t.forget(token)
		return false
	}
}

func (t *Telegram) forget(token string) {
	t.mu.Lock()
	delete(t.pendings, token)
	t.mu.Unlock()
}

// Start запускает long-polling в фоне.
func (t *Telegram) Start(ctx context.Context) {
	if !t.Enabled() {
		logger.Info("telegram: token not set, bot disabled")
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(ctx, upd)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t.Enabled() {
		t.bot.StopReceivingUpdates()
	}
}
