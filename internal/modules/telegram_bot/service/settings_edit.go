package service

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"margin_guard/internal/models"
	"margin_guard/pkg/logger"
)

// sendSettingsMenu — действующие настройки плюс кнопки редактирования.
func (t *Telegram) sendSettingsMenu(rs models.RiskManagementSettings) {
	if !t.Enabled() || t.chatID == 0 {
		return
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("BE-порог %", "SET::be_trigger"),
			tgbotapi.NewInlineKeyboardButtonData("BE-отступ, тик.", "SET::be_buffer"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Трейл-порог %", "SET::trail_trigger"),
			tgbotapi.NewInlineKeyboardButtonData("Трейл-дистанция", "SET::trail_distance"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Риск на сделку %", "SET::max_risk"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Безубыток: "+onOff(rs.EnableBreakEvenProtection), "TOGGLE::be"),
			tgbotapi.NewInlineKeyboardButtonData("Трейлинг: "+onOff(rs.EnableTrailingStops), "TOGGLE::trail"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗂 Профили", "MENU::presets"),
		),
	)

	msg := tgbotapi.NewMessage(t.chatID, renderSettings(rs))
	msg.ReplyMarkup = kb
	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram settings menu: %v", err)
	}
}

// askValue переводит чат в режим ожидания ввода значения по ключу.
func (t *Telegram) askValue(chatID int64, key string) {
	t.await.set(chatID, key)

	var hint string
	switch key {
	case "be_trigger":
		hint = "Введи порог безубытка в %, например: `2.0`"
	case "be_buffer":
		hint = "Введи отступ от входа в тиках (целое), например: `1`"
	case "trail_trigger":
		hint = "Введи порог трейлинга в %, например: `3.0`"
	case "trail_distance":
		hint = "Введи дистанцию трейла в тиках (целое), например: `5`"
	case "max_risk":
		hint = "Введи риск на сделку в % депозита, например: `2.0`"
	default:
		hint = "Введи значение"
	}

	t.sendMarkdown("✍️ " + hint + "\n\nОтмена: напиши `отмена`")
}

// handleAwaitValue разбирает введённое значение и применяет его к настройкам.
func (t *Telegram) handleAwaitValue(ctx context.Context, chatID int64, text, key string) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")

	rs := t.engine.Settings()

	switch key {
	case "be_trigger":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v <= 0 || v > 20 {
			t.sendMarkdown("❗️Нужно число 0..20, например `2.0`")
			return
		}
		rs.BreakEvenTriggerPct = v

	case "be_buffer":
		v, err := strconv.Atoi(text)
		if err != nil || v < 0 || v > 100 {
			t.sendMarkdown("❗️Нужно целое 0..100, например `1`")
			return
		}
		rs.BreakEvenBufferTicks = v

	case "trail_trigger":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v <= 0 || v > 20 {
			t.sendMarkdown("❗️Нужно число 0..20, например `3.0`")
			return
		}
		rs.TrailingStopTriggerPct = v

	case "trail_distance":
		v, err := strconv.Atoi(text)
		if err != nil || v < 1 || v > 1000 {
			t.sendMarkdown("❗️Нужно целое 1..1000, например `5`")
			return
		}
		rs.TrailingStopDistanceTicks = v

	case "max_risk":
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v <= 0 || v > 10 {
			t.sendMarkdown("❗️Нужно число 0..10, например `2.0`")
			return
		}
		rs.MaxRiskPerTradePct = v

	default:
		t.await.clear()
		t.Send("❗️Неизвестная настройка")
		return
	}

	t.await.clear()
	t.engine.SetSettings(ctx, rs)

	t.Send("✅ Сохранено")
	t.sendSettingsMenu(rs)
}
