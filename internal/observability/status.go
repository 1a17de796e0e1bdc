package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RolePlanning  Role = "PLANNING"
	RoleExecuting Role = "EXECUTING"
	RoleCombining Role = "COMBINING"
)

// Snapshot is a copy of the process status.
type Snapshot struct {
	Role          Role      `json:"role"`
	Unit          string    `json:"unit,omitempty"`
	Task          string    `json:"task,omitempty"`
	Active        int       `json:"active_pipelines"`
	Completed     int64     `json:"completed_pipelines"`
	Failed        int64     `json:"failed_pipelines"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Uptime        string    `json:"uptime"`
}

// Status tracks what the process is doing. Concurrent pipelines share one
// Status; the role and unit reflect the most recent transition.
type Status struct {
	mu        sync.RWMutex
	started   time.Time
	role      Role
	unit      string
	task      string
	active    int
	completed int64
	failed    int64
	heartbeat time.Time
}

func NewStatus() *Status {
	now := time.Now()
	return &Status{started: now, role: RoleIdle, heartbeat: now}
}

// Begin marks a pipeline as started.
func (s *Status) Begin(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active++
	s.task = task
}

// Set records the current phase of the running pipeline.
func (s *Status) Set(role Role, unit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = role
	s.unit = unit
}

// End marks a pipeline as finished.
func (s *Status) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		s.active--
	}
	if err != nil {
		s.failed++
	} else {
		s.completed++
	}
	if s.active == 0 {
		s.role = RoleIdle
		s.unit = ""
		s.task = ""
	}
}

// Heartbeat updates the last heartbeat time.
func (s *Status) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeat = time.Now()
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Role:          s.role,
		Unit:          s.unit,
		Task:          s.task,
		Active:        s.active,
		Completed:     s.completed,
		Failed:        s.failed,
		LastHeartbeat: s.heartbeat,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
	}
}
