package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"margin_guard/internal/modules/config"
	"margin_guard/internal/modules/health/service"
	mdservice "margin_guard/internal/modules/marketdata/service"
	risksvc "margin_guard/internal/modules/risk/service"
)

func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		// готов = прогрев прошёл, мониторинг крутится
		if !state.Snapshot().Ready {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sn := state.Snapshot()

		var lastTick int64
		if !sn.LastTick.IsZero() {
			lastTick = sn.LastTick.Unix()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ready":        sn.Ready,
			"wsConnected":  sn.WSConnected,
			"monitors":     sn.Monitors,
			"uptimeSec":    int64(sn.Uptime.Seconds()),
			"lastTickUnix": lastTick,
		})
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:              cfg.Service.HealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewMux,
		),

		// Адаптеры: *service.State -> интерфейсы потребителей
		fx.Provide(
			func(s *service.State) risksvc.HealthSink { return s },
			func(s *service.State) mdservice.StreamHealth { return s },
		),

		fx.Invoke(RunHTTP),
	)
}
