package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"margin_guard/internal/models"
	"margin_guard/pkg/logger"
)

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// 1) Обычные сообщения
	if msg := update.Message; msg != nil {
		if msg.Chat == nil {
			return
		}
		if t.chatID != 0 && msg.Chat.ID != t.chatID {
			return
		}

		if msg.IsCommand() {
			t.handleCommand(ctx, msg)
			return
		}

		// кнопки reply-клавиатуры приходят обычным текстом
		t.handleTextMessage(ctx, msg)
		return
	}

	// 2) Inline-кнопки (CallbackQuery)
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		if t.chatID != 0 && cb.Message.Chat.ID != t.chatID {
			return
		}
		t.handleCallback(ctx, cb)
		return
	}
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		t.handleStart(ctx)
	case "status":
		t.handleStatus(ctx)
	case "risk":
		t.handleRisk(ctx)
	case "settings":
		t.handleSettings(ctx)
	case "presets":
		t.handlePresets(ctx)
	case "preset":
		t.applyPreset(ctx, strings.TrimSpace(msg.CommandArguments()))
	case "tp":
		// Confirm блокирует до ответа, уводим в горутину
		go t.handlePartialTP(ctx, msg.CommandArguments())
	case "open":
		go t.handleOpen(ctx, msg.CommandArguments())
	case "journal":
		t.handleJournal(ctx)
	default:
		t.Send("Не знаю такую команду, смотри /help")
	}
}

func (t *Telegram) handleTextMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)

	// сначала незакрытый ввод настройки
	if key, ok := t.await.peek(msg.Chat.ID); ok {
		if strings.EqualFold(text, "отмена") {
			t.await.clear()
			t.handleSettings(ctx)
			return
		}
		t.handleAwaitValue(ctx, msg.Chat.ID, text, key)
		return
	}

	switch text {
	case "📊 Статус":
		t.handleStatus(ctx)
	case "🛡 Риск":
		t.handleRisk(ctx)
	case "⚙️ Настройки":
		t.handleSettings(ctx)
	case "📒 Журнал":
		t.handleJournal(ctx)
	}
}

func (t *Telegram) handleStart(ctx context.Context) {
	replyKb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📊 Статус"),
			tgbotapi.NewKeyboardButton("🛡 Риск"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("⚙️ Настройки"),
			tgbotapi.NewKeyboardButton("📒 Журнал"),
		),
	)

	msgText := "Привет! Я слежу за открытыми позициями: перевожу стопы в безубыток, " +
		"тяну трейлинг и помогаю частично фиксировать профит.\n\n" +
		"Команды:\n" +
		"/status — позиции под наблюдением\n" +
		"/risk — оценка риска счёта\n" +
		"/settings — действующие настройки\n" +
		"/presets — готовые профили защиты\n" +
		"/open `<инструмент> <BUY|SELL> <объём|auto> <цена|mkt> <стоп> [тейк]` — вход связкой\n" +
		"/tp `<позиция> <объём> <цена>` — частичная фиксация\n" +
		"/journal — последние действия движка"

	msg := tgbotapi.NewMessage(t.chatID, msgText)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = replyKb

	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram handleStart: %v", err)
	}
}

func (t *Telegram) handleStatus(ctx context.Context) {
	positions, err := t.positions.GetPositions(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка получения позиций: %v", err)
		return
	}
	t.Send(renderStatus(t.engine.MonitorCount(), positions))
}

func (t *Telegram) handleRisk(ctx context.Context) {
	as, err := t.assessor.AssessAccountRisk(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка оценки риска: %v", err)
		return
	}
	risks, err := t.assessor.AnalyzePositionRisks(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка анализа позиций: %v", err)
		return
	}
	t.Send(renderAssessment(as, risks))
}

func (t *Telegram) handleSettings(ctx context.Context) {
	t.sendSettingsMenu(t.engine.Settings())
}

func (t *Telegram) handlePresets(ctx context.Context) {
	keys := make([]string, 0, len(models.Presets))
	for k := range models.Presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keys))
	var b strings.Builder
	b.WriteString("Готовые профили защиты:\n\n")
	for _, k := range keys {
		p := models.Presets[k]
		b.WriteString(p.Name + " — " + p.Description + "\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Name, "PRESET::"+k),
		))
	}

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram handlePresets: %v", err)
	}
}

func (t *Telegram) applyPreset(ctx context.Context, key string) {
	p, ok := models.Presets[key]
	if !ok {
		t.Sendf("Нет профиля %q, смотри /presets", key)
		return
	}

	settings := t.engine.Settings()
	p.Apply(&settings)
	t.engine.SetSettings(ctx, settings)

	t.Sendf("%s применён\n\n%s", p.Name, renderSettings(settings))
}

// handlePartialTP: /tp <позиция> <объём> <цена>
func (t *Telegram) handlePartialTP(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		t.sendMarkdown("Формат: /tp `<позиция> <объём> <цена>`\nНапример: `/tp pos-1 2 105.25`")
		return
	}

	positionID := fields[0]
	qty, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		t.Sendf("Не понял объём %q", fields[1])
		return
	}
	price, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		t.Sendf("Не понял цену %q", fields[2])
		return
	}

	rule, err := t.engine.ValidatePartialTakeProfit(ctx, positionID, qty)
	if err != nil {
		t.Sendf("❗️ Ошибка валидации: %v", err)
		return
	}
	if !rule.IsValid {
		t.Send("🚫 Заявка не прошла проверку:\n• " + strings.Join(rule.ValidationErrors, "\n• "))
		return
	}

	prompt := renderPartialTP(positionID, qty, price, rule.RemainingQtyAfter)
	if !t.Confirm(ctx, prompt, time.Minute) {
		return
	}

	if err := t.engine.ExecutePartialTakeProfit(ctx, positionID, qty, price); err != nil {
		t.Sendf("❗️ Частичная фиксация не прошла: %v", err)
		return
	}
}

func (t *Telegram) handleJournal(ctx context.Context) {
	if t.journal == nil {
		t.Send("Журнал не подключён")
		return
	}
	recs, err := t.journal.Recent(ctx, 10)
	if err != nil {
		t.Sendf("❗️ Ошибка чтения журнала: %v", err)
		return
	}
	t.Send(renderJournal(recs))
}

func (t *Telegram) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// ответ Telegram для остановки спиннера
	_, _ = t.bot.Request(tgbotapi.NewCallback(cb.ID, ""))

	data := cb.Data

	if key, ok := strings.CutPrefix(data, "PRESET::"); ok {
		t.applyPreset(ctx, key)
		return
	}
	if key, ok := strings.CutPrefix(data, "SET::"); ok {
		t.askValue(cb.Message.Chat.ID, key)
		return
	}
	if key, ok := strings.CutPrefix(data, "TOGGLE::"); ok {
		t.toggleSetting(ctx, key)
		return
	}
	if data == "MENU::presets" {
		t.handlePresets(ctx)
		return
	}

	// CONF::token / REJ::token
	var verb, token string
	if i := strings.Index(data, "::"); i > 0 {
		verb, token = data[:i], data[i+2:]
	}
	if verb == "" || token == "" {
		return
	}

	t.mu.Lock()
	p, ok := t.pendings[token]
	t.mu.Unlock()
	if !ok {
		return
	}

	accepted := verb == "CONF"
	p.ch <- accepted
	close(p.ch)

	status := "Отклонено"
	emoji := "❌"
	if accepted {
		status = "Подтверждено"
		emoji = "✅"
	}

	_ = t.editReplyMarkupRemove(t.chatID, p.msgID)
	_ = t.editText(t.chatID, p.msgID, p.prompt+"\n\n"+emoji+" "+status)

	t.forget(token)
}
