package tasks

import (
	"log"

	"school-messenger/internal/registry"

	"github.com/robfig/cron/v3"
)

// SessionSweeper periodically drops registry sessions whose sockets died
// without a clean unregister, so push delivery never wastes work on
// zombies. Connection state is best-effort by design; missed messages are
// recovered through the store regardless.
type SessionSweeper struct {
	reg      *registry.Registry
	schedule string
}

func NewSessionSweeper(reg *registry.Registry, schedule string) *SessionSweeper {
	return &SessionSweeper{
		reg:      reg,
		schedule: schedule,
	}
}

func (s *SessionSweeper) Start() {
	c := cron.New()

	_, err := c.AddFunc(s.schedule, func() {
		if removed := s.reg.Sweep(); removed > 0 {
			log.Printf("[WORKER] Swept %d dead session(s) from registry", removed)
		}
	})
	if err != nil {
		log.Printf("[WORKER] Error scheduling registry sweep: %v", err)
		return
	}

	c.Start()
}
