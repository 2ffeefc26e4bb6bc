package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"margin_guard/internal/models"
	"margin_guard/internal/modules/config"
	"margin_guard/pkg/logger"
)

// InstrumentMeta отдаёт параметры инструмента: шаг цены, мин. объём.
type InstrumentMeta interface {
	GetInstrumentMeta(ctx context.Context, instrumentID string) (models.Instrument, error)
}

// SettingsStore хранит действующие настройки между перезапусками.
type SettingsStore interface {
	Save(ctx context.Context, s models.RiskManagementSettings) error
	Load(ctx context.Context) (models.RiskManagementSettings, bool, error)
}

// HealthSink получает отметки живости петли мониторинга.
type HealthSink interface {
	TouchTick(at time.Time)
	SetMonitors(n int)
}

// Service — риск-движок: реестр мониторов позиций, петля опроса
// и операции частичной фиксации профита.
type Service struct {
	cfg *config.Config

	gateway     TradingGateway
	quotes      QuoteFeed
	instruments InstrumentMeta
	notifier    Notifier
	journal     Journal
	store       SettingsStore
	health      HealthSink

	settingsMu sync.RWMutex
	settings   models.RiskManagementSettings

	monMu    sync.RWMutex
	monitors map[string]*PositionMonitor

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewService(
	cfg *config.Config,
	gateway TradingGateway,
	quotes QuoteFeed,
	instruments InstrumentMeta,
	journal Journal,
	store SettingsStore,
	health HealthSink,
) *Service {
	return &Service{
		cfg:         cfg,
		gateway:     gateway,
		quotes:      quotes,
		instruments: instruments,
		journal:     journal,
		store:       store,
		health:      health,
		settings:    models.NewRiskSettingsFromDefaults(cfg),
		monitors:    make(map[string]*PositionMonitor),
	}
}

// SetNotifier подключает канал уведомлений. Вызывается на сборке
// приложения, до старта петли и регистраций.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Settings возвращает копию действующих настроек.
func (s *Service) Settings() models.RiskManagementSettings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// SetSettings заменяет настройки. Действует со следующего тика,
// уже сработавшие триггеры не откатываются.
func (s *Service) SetSettings(ctx context.Context, settings models.RiskManagementSettings) {
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()

	if s.store != nil {
		if err := s.store.Save(ctx, settings); err != nil {
			logger.Error("risk: save settings: %v", err)
		}
	}
}

// RestoreSettings подтягивает сохранённые настройки из хранилища.
func (s *Service) RestoreSettings(ctx context.Context) {
	if s.store == nil {
		return
	}
	saved, ok, err := s.store.Load(ctx)
	if err != nil {
		logger.Error("risk: load settings: %v", err)
		return
	}
	if !ok {
		return
	}

	s.settingsMu.Lock()
	s.settings = saved
	s.settingsMu.Unlock()
	logger.Info("risk: settings restored from store")
}

// Register создаёт монитор для позиции. Повторная регистрация того же id
// заменяет старый монитор, дублей не бывает.
func (s *Service) Register(ctx context.Context, pos models.Position, entryPrice float64) {
	inst, err := s.instruments.GetInstrumentMeta(ctx, pos.InstrumentID)
	if err != nil || inst.TickSize <= 0 {
		if err != nil {
			logger.Error("risk: instrument meta %s: %v", pos.InstrumentID, err)
		}
		inst = models.Instrument{
			ID:       pos.InstrumentID,
			TickSize: s.cfg.FallbackTickSize,
			MinQty:   s.cfg.FallbackMinQty,
		}
	}

	m := newPositionMonitor(pos, entryPrice, s.Settings(), inst, s.gateway, s.quotes, s.journal, s.notifier)

	s.monMu.Lock()
	s.monitors[pos.ID] = m
	s.monMu.Unlock()

	logger.Info("risk: monitor registered for position %s (%s %s)", pos.ID, pos.Side, pos.InstrumentID)
}

// Unregister снимает позицию с мониторинга. Неизвестный id — не ошибка.
func (s *Service) Unregister(positionID string) {
	s.monMu.Lock()
	delete(s.monitors, positionID)
	s.monMu.Unlock()
}

// MonitorCount — сколько позиций сейчас под наблюдением.
func (s *Service) MonitorCount() int {
	s.monMu.RLock()
	defer s.monMu.RUnlock()
	return len(s.monitors)
}

// Registered сообщает, есть ли монитор для позиции.
func (s *Service) Registered(positionID string) bool {
	s.monMu.RLock()
	defer s.monMu.RUnlock()
	_, ok := s.monitors[positionID]
	return ok
}

// Start запускает петлю мониторинга. Повторный вызов ничего не делает.
func (s *Service) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.monitorLoop(s.stopCh, s.doneCh)
	logger.Info("risk: monitoring loop started")
}

// Stop сигналит петле и ждёт завершения текущего тика, но не дольше
// StopTimeout. Не успевшая выйти петля — ErrShutdownTimeout.
func (s *Service) Stop() error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.runMu.Unlock()

	select {
	case <-done:
		logger.Info("risk: monitoring loop stopped")
		return nil
	case <-time.After(s.cfg.StopTimeout):
		return ErrShutdownTimeout
	}
}

func (s *Service) monitorLoop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	interval := s.cfg.MonitorInterval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.tick(context.Background()); err != nil {
				logger.Error("risk: monitoring tick: %v", err)
				// передышка после сбоя, петля не падает
				select {
				case <-stopCh:
					return
				case <-time.After(s.cfg.ErrorBackoff):
				}
			}
		}
	}
}

// tick обновляет все мониторы по одному снапшоту позиций.
// Ошибка одного монитора тик не прерывает.
func (s *Service) tick(ctx context.Context) error {
	positions, err := s.gateway.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("positions snapshot: %w", err)
	}

	byID := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		byID[p.ID] = p
	}

	s.monMu.RLock()
	snapshot := make([]*PositionMonitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		snapshot = append(snapshot, m)
	}
	s.monMu.RUnlock()

	for _, m := range snapshot {
		var cur *models.Position
		if p, ok := byID[m.pos.ID]; ok {
			cur = &p
		}
		m.update(ctx, cur)
	}

	s.pruneClosed()

	if s.health != nil {
		s.health.TouchTick(time.Now())
		s.health.SetMonitors(s.MonitorCount())
	}
	return nil
}

// pruneClosed выкидывает мониторы закрытых позиций из реестра.
func (s *Service) pruneClosed() {
	s.monMu.Lock()
	for id, m := range s.monitors {
		if m.closed {
			delete(s.monitors, id)
		}
	}
	s.monMu.Unlock()
}

// ValidatePartialTakeProfit проверяет частичную фиксацию по живой позиции.
// Отсутствующая позиция — невалидное правило, а не ошибка вызова.
func (s *Service) ValidatePartialTakeProfit(ctx context.Context, positionID string, partialQty float64) (*models.PartialTakeProfitRule, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "risk.validate_partial_take_profit")
	defer span.Finish()

	positions, err := s.gateway.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ValidatePartialTakeProfit positions: %w", err)
	}

	pos := findPosition(positions, positionID)
	if pos == nil {
		return &models.PartialTakeProfitRule{
			PositionID:       positionID,
			PartialQty:       partialQty,
			IsValid:          false,
			ValidationErrors: []string{"Position not found"},
		}, nil
	}

	return ValidatePartialTP(pos, partialQty), nil
}

// ExecutePartialTakeProfit заново валидирует заявку и ставит reduce-only
// лимитник на противоположную сторону. Чужим результатам валидации не верим.
func (s *Service) ExecutePartialTakeProfit(ctx context.Context, positionID string, partialQty, triggerPrice float64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "risk.execute_partial_take_profit")
	defer span.Finish()

	rule, err := s.ValidatePartialTakeProfit(ctx, positionID, partialQty)
	if err != nil {
		return err
	}
	if !rule.IsValid {
		return fmt.Errorf("%w: %s", ErrRiskValidation, strings.Join(rule.ValidationErrors, "; "))
	}

	positions, err := s.gateway.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("ExecutePartialTakeProfit positions: %w", err)
	}
	pos := findPosition(positions, positionID)
	if pos == nil {
		return fmt.Errorf("%w: %s", ErrRiskValidation, "Position not found")
	}

	triggerPrice, err = s.guardTriggerPrice(ctx, pos, partialQty, triggerPrice)
	if err != nil {
		return err
	}

	orderID, err := s.gateway.PlaceLimitOrder(ctx, pos.InstrumentID, partialQty, triggerPrice, pos.Side.Opposite(), true)
	if err != nil {
		return fmt.Errorf("ExecutePartialTakeProfit place: %w", err)
	}

	logger.Info("risk: partial take profit placed: position=%s qty=%v trigger=%v remaining=%v order=%s",
		positionID, partialQty, triggerPrice, rule.RemainingQtyAfter, orderID)

	if s.notifier != nil {
		s.notifier.Sendf("💰 [%s] Частичная фиксация: %s контрактов по %s, в позиции остаётся %s",
			pos.InstrumentID, fmtPx(partialQty), fmtPx(triggerPrice), fmtPx(rule.RemainingQtyAfter))
	}

	if s.journal != nil {
		rec := models.Adjustment{
			PositionID:   positionID,
			InstrumentID: pos.InstrumentID,
			Kind:         models.AdjustPartialTP,
			NewStop:      triggerPrice,
			Qty:          partialQty,
			OrderID:      orderID,
			CreatedAt:    time.Now(),
		}
		if err := s.journal.RecordAdjustment(ctx, rec); err != nil {
			logger.Error("risk: journal partial tp: %v", err)
		}
	}
	return nil
}

// guardTriggerPrice прижимает цену к сетке тиков и проверяет объём
// и отклонение от рынка. Без метаданных или котировки проверка пропускается.
func (s *Service) guardTriggerPrice(ctx context.Context, pos *models.Position, qty, price float64) (float64, error) {
	inst, err := s.instruments.GetInstrumentMeta(ctx, pos.InstrumentID)
	if err != nil || inst.TickSize <= 0 {
		if err != nil {
			logger.Error("risk: instrument meta %s: %v", pos.InstrumentID, err)
		}
		return price, nil
	}

	price, err = TickRound(price, inst.TickSize)
	if err != nil {
		return 0, err
	}
	if err := EnsureQtyIncrement(qty, inst.MinQty); err != nil {
		return 0, err
	}

	q, err := s.quotes.GetQuote(ctx, pos.InstrumentID)
	if err != nil || q.Last <= 0 {
		if err != nil {
			logger.Error("risk: quote %s: %v", pos.InstrumentID, err)
		}
		return price, nil
	}

	maxTicks := inst.MaxDeviationTicks
	if maxTicks <= 0 {
		maxTicks = s.cfg.MaxDeviationTicks
	}
	if err := EnsurePriceBands(q.Last, price, maxTicks, inst.TickSize); err != nil {
		return 0, err
	}
	return price, nil
}

func findPosition(positions []models.Position, id string) *models.Position {
	for i := range positions {
		if positions[i].ID == id {
			return &positions[i]
		}
	}
	return nil
}
