package tracing

import (
	"fmt"
	"io"
	"time"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"

	"margin_guard/pkg/logger"
)

var serviceName = "default"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Config — адрес jaeger-агента. Пустой Host выключает трассировку,
// на локальном стенде агент поднимать не обязательно.
type Config struct {
	Host string
	Port int
}

// InitTracer ставит глобальный трейсер. Возвращённую функцию зовут
// при остановке приложения, она дожимает буфер спанов.
func InitTracer(conf Config) (opentracing.Tracer, func(), error) {
	if conf.Host == "" {
		tracer := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(tracer)
		return tracer, func() {}, nil
	}

	cfg := &jCfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:            false,
			BufferFlushInterval: time.Second,
			LocalAgentHostPort:  fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jCfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, fmt.Errorf("init tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)

	return tracer, flushOnClose(closer), nil
}

func flushOnClose(closer io.Closer) func() {
	return func() {
		if err := closer.Close(); err != nil {
			logger.Error("closing tracer: %v", err)
		}
	}
}
