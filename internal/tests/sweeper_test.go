package tests

import (
	"context"
	"testing"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/service"
)

func TestExpirySweeper_CancelsStaleRequests(t *testing.T) {
	ctx := context.Background()
	ledger, rideRepo, driverRepo, _ := newLedgerFixture()

	stale := addRide(rideRepo, "ride-stale", domain.RideStatusRequested)
	stale.CreatedAt = time.Now().Add(-10 * time.Minute)
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", IsAvailable: false})

	sweeper := service.NewExpirySweeper(ledger, 5*time.Minute, 10*time.Millisecond)
	sweeper.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r, err := rideRepo.GetByID(ctx, "ride-stale"); err == nil && r.Status == domain.RideStatusCancelled {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	sweeper.Stop()

	got := rideRepo.GetRide("ride-stale")
	if got.Status != domain.RideStatusCancelled {
		t.Fatalf("stale ride not cancelled, status %s", got.Status)
	}
	if got.CancelReason != "request expired" {
		t.Errorf("unexpected cancel reason: %q", got.CancelReason)
	}
	if d := driverRepo.GetDriver("driver-1"); !d.IsAvailable {
		t.Error("driver not released by sweep")
	}
}

func TestExpirySweeper_LeavesAcceptedRidesAlone(t *testing.T) {
	ledger, rideRepo, driverRepo, _ := newLedgerFixture()

	accepted := addRide(rideRepo, "ride-accepted", domain.RideStatusAccepted)
	accepted.CreatedAt = time.Now().Add(-10 * time.Minute)
	driverRepo.AddDriver(&domain.Driver{ID: "driver-1", IsAvailable: false})

	sweeper := service.NewExpirySweeper(ledger, 5*time.Minute, 10*time.Millisecond)
	sweeper.Start()
	time.Sleep(100 * time.Millisecond)
	sweeper.Stop()

	if got := rideRepo.GetRide("ride-accepted"); got.Status != domain.RideStatusAccepted {
		t.Errorf("accepted ride touched by sweep: %s", got.Status)
	}
	if d := driverRepo.GetDriver("driver-1"); d.IsAvailable {
		t.Error("driver of accepted ride released by sweep")
	}
}
