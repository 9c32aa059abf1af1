// Package schedule runs the automatic daily protection job.
package schedule

import (
	"fmt"
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Service fires the Trigger callback on a cron schedule. The callback
// only marks the job due; the dispatcher loop performs the actual run
// so config and state are never touched from the cron goroutine.
type Service struct {
	spec    string
	cron    *rcron.Cron
	Trigger func()
}

func NewService(spec string) *Service {
	return &Service{spec: spec}
}

func (s *Service) Start() error {
	s.cron = rcron.New()
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("register auto-protect job (%s): %w", s.spec, err)
	}
	s.cron.Start()
	log.Printf("[cron] auto-protect scheduled: %s", s.spec)
	return nil
}

func (s *Service) run() {
	if s.Trigger == nil {
		log.Printf("[cron] no trigger set")
		return
	}
	s.Trigger()
	log.Printf("[cron] auto-protect marked due")
}

func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running job")
	}
	log.Printf("[cron] stopped")
}
