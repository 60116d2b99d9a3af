package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpirySweeper periodically cancels ride requests that no driver
// accepted within the configured timeout and returns their drivers to
// the matching pool.
type ExpirySweeper struct {
	ledger   *RideLedger
	timeout  time.Duration
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

// NewExpirySweeper creates a sweeper that cancels requests older than
// timeout, checking every interval.
func NewExpirySweeper(ledger *RideLedger, timeout, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		ledger:   ledger,
		timeout:  timeout,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *ExpirySweeper) Stop() {
	close(s.done)
	<-s.stopped
}

func (s *ExpirySweeper) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.timeout)
	expired, err := s.ledger.ExpireRequested(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("ride expiry sweep failed")
		return
	}
	if expired > 0 {
		logrus.WithField("expired", expired).Info("cancelled stale ride requests")
	}
}
