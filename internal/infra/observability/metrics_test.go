package observability_test

import (
	"math"
	"testing"

	"github.com/oleandro/investtrack-calc-go/internal/domain"
	"github.com/oleandro/investtrack-calc-go/internal/infra/observability"
)

func TestEngineSnapshot_CountsAllMutationKinds(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrCalculation(domain.CalcManual)
	m.IncrCalculation(domain.CalcAutomatic)
	m.IncrRevert()
	m.IncrVariableUpdate("percentage")
	m.IncrVariableUpdate("balance")
	m.IncrConflict()

	snap := m.GetEngineSnapshot()
	if snap.CalculationsTotal != 2 {
		t.Errorf("expected 2 calculations, got %d", snap.CalculationsTotal)
	}
	if snap.RevertsTotal != 1 {
		t.Errorf("expected 1 revert, got %d", snap.RevertsTotal)
	}
	if snap.VariableUpdatesTotal != 2 {
		t.Errorf("expected 2 variable updates, got %d", snap.VariableUpdatesTotal)
	}
	if snap.ConflictsTotal != 1 {
		t.Errorf("expected 1 conflict, got %d", snap.ConflictsTotal)
	}
}

// The error rate is server errors over all classified requests, 4xx
// included: client-heavy traffic must dilute the rate, not be invisible
// to its denominator.
func TestEngineSnapshot_ErrorRateCountsClientErrors(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrRequest("success")
	m.IncrRequest("client_error")
	m.IncrRequest("client_error")
	m.IncrRequest("error")

	snap := m.GetEngineSnapshot()
	if math.Abs(snap.ErrorRate-0.25) > 1e-9 {
		t.Errorf("expected error rate 0.25 over 4 requests, got %v", snap.ErrorRate)
	}
}

func TestEngineSnapshot_CacheHitRate(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrCacheHit("performance")
	m.IncrCacheHit("performance")
	m.IncrCacheHit("performance")
	m.IncrCacheMiss("performance")

	snap := m.GetEngineSnapshot()
	if math.Abs(snap.CacheHitRate-0.75) > 1e-9 {
		t.Errorf("expected cache hit rate 0.75, got %v", snap.CacheHitRate)
	}
}

func TestEngineSnapshot_ZeroTrafficHasZeroRates(t *testing.T) {
	snap := observability.NewMetrics().GetEngineSnapshot()
	if snap.ErrorRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero rates with no traffic, got %v / %v", snap.ErrorRate, snap.CacheHitRate)
	}
}
