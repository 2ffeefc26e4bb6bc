package service

import "context"

// toggleSetting переключает защиту по ключу кнопки и перерисовывает меню.
func (t *Telegram) toggleSetting(ctx context.Context, key string) {
	rs := t.engine.Settings()

	switch key {
	case "be":
		rs.EnableBreakEvenProtection = !rs.EnableBreakEvenProtection
	case "trail":
		rs.EnableTrailingStops = !rs.EnableTrailingStops
	default:
		return
	}

	t.engine.SetSettings(ctx, rs)
	t.sendSettingsMenu(rs)
}
