package service

import (
	"sync/atomic"
	"time"
)

// State — живость сервиса: тикает ли петля мониторинга, подключён ли
// стрим котировок, сколько позиций под наблюдением.
type State struct {
	startedAt time.Time

	ready        atomic.Bool
	wsConnected  atomic.Bool
	monitors     atomic.Int64
	lastTickUnix atomic.Int64
}

// Snapshot — состояние одним значением, для HTTP-ручек.
type Snapshot struct {
	Ready       bool
	WSConnected bool
	Monitors    int
	Uptime      time.Duration
	LastTick    time.Time
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool)       { s.ready.Store(v) }
func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) SetMonitors(n int)     { s.monitors.Store(int64(n)) }
func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }

func (s *State) Snapshot() Snapshot {
	sn := Snapshot{
		Ready:       s.ready.Load(),
		WSConnected: s.wsConnected.Load(),
		Monitors:    int(s.monitors.Load()),
		Uptime:      time.Since(s.startedAt),
	}
	if u := s.lastTickUnix.Load(); u != 0 {
		sn.LastTick = time.Unix(u, 0)
	}
	return sn
}
