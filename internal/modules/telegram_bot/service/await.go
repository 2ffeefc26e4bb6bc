package service

import "sync"

// awaitInput — какое поле настроек ждёт следующего сообщения.
// Оператор один, так что хватает одного слота.
type awaitInput struct {
	mu     sync.Mutex
	chatID int64
	key    string
}

func (a *awaitInput) set(chatID int64, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatID = chatID
	a.key = key
}

func (a *awaitInput) peek(chatID int64) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == "" || a.chatID != chatID {
		return "", false
	}
	return a.key, true
}

func (a *awaitInput) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatID, a.key = 0, ""
}
