package notify

import "log"

// Notifier — куда риск-движок шлёт уведомления о своих действиях.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Stdout — заглушка на случай, когда Telegram не настроен.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
