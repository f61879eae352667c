package generation

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Sweeper periodically fails jobs that outlived the deadline without anyone
// polling them. It is redundant with the poll-time timeout check; its job is
// to keep abandoned rows from dangling in a non-terminal state forever.
type Sweeper struct {
	repo     Repository
	deadline time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a timeout sweeper over the given repository.
func NewSweeper(repo Repository, deadline, interval time.Duration) *Sweeper {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		repo:     repo,
		deadline: deadline,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweeper goroutine.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	log.Infof("[Generation] Timeout sweeper running (deadline=%s, interval=%s)", s.deadline, s.interval)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the sweeper and waits for it to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[Generation] Timeout sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.deadline)
	jobs, err := s.repo.ListOverdueJobs(cutoff)
	if err != nil {
		log.Errorf("[Generation] Sweeper list error: %v", err)
		return
	}

	for i := range jobs {
		job := &jobs[i]
		msg := fmt.Sprintf("generation timed out after %s", s.deadline)
		if err := s.repo.MarkFailed(job, msg); err != nil {
			log.Errorf("[Generation] Sweeper failed to mark job %s: %v", job.ID, err)
			continue
		}
		log.Warnf("[Generation] Sweeper timed out job %s (age=%s)", job.ID, time.Since(job.CreatedAt))
	}
}
