package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var base *zap.Logger

var serviceName = "default"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init собирает глобальный логгер. Вызывается один раз при старте,
// имя сервиса вшивается в каждую запись.
func Init() error {
	l, err := zap.NewProduction(
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("service", serviceName)),
	)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}

	base = l

	return nil
}

func Info(format string, args ...interface{}) {
	mustBase().Info(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	mustBase().Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	mustBase().Fatal(fmt.Sprintf(format, args...))
}

func mustBase() *zap.Logger {
	if base == nil {
		panic("logger is not initialized")
	}

	return base
}
