package epoch

import (
	"testing"
	"time"

	"github.com/podlabs/podmint/internal/pod"
)

func TestQualify(t *testing.T) {
	q := NewQualifier(DefaultConfig())

	tests := []struct {
		density int
		want    pod.Epoch
	}{
		{10000, pod.EpochFounder},
		{8000, pod.EpochFounder},
		{7999, pod.EpochPioneer},
		{6000, pod.EpochPioneer},
		{5999, pod.EpochCommunity},
		{4000, pod.EpochCommunity},
		{3999, pod.EpochEcosystem},
		{0, pod.EpochEcosystem},
	}

	for _, tt := range tests {
		if got := q.Qualify(tt.density); got != tt.want {
			t.Errorf("Qualify(%d) = %s, want %s", tt.density, got, tt.want)
		}
	}
}

func TestOpenInfoUnlocks(t *testing.T) {
	q := NewQualifier(DefaultConfig())

	tests := []struct {
		density  int64
		wantOpen int
	}{
		{0, 1},
		{999_999, 1},
		{1_000_000, 2},
		{2_000_000, 3},
		{3_000_000, 4},
		{9_999_999, 4},
	}

	for _, tt := range tests {
		info := q.OpenInfo(pod.TokenomicsState{TotalCoherenceDensity: tt.density, UpdatedAt: time.Now()})
		if len(info.Open) != tt.wantOpen {
			t.Errorf("density %d: %d open epochs, want %d", tt.density, len(info.Open), tt.wantOpen)
		}
		if info.Open[0] != pod.EpochFounder {
			t.Errorf("density %d: founder must always be open", tt.density)
		}
	}
}

func TestOpenInfoQualificationBar(t *testing.T) {
	q := NewQualifier(DefaultConfig())

	// While founder is the priority open epoch, the qualification bar
	// stays at the founder threshold even after later epochs unlock.
	info := q.OpenInfo(pod.TokenomicsState{TotalCoherenceDensity: 3_500_000})
	if info.Priority != pod.EpochFounder {
		t.Errorf("priority = %s, want founder", info.Priority)
	}
	if info.QualificationThreshold != 8000 {
		t.Errorf("qualification threshold = %d, want 8000", info.QualificationThreshold)
	}
}

func TestQualifiedForOpenEpoch(t *testing.T) {
	q := NewQualifier(DefaultConfig())

	tests := []struct {
		podScore, density int
		want              bool
	}{
		{8000, 8000, true},
		{10000, 8000, true},
		{7999, 8000, false}, // pod score failing disqualifies outright
		{8000, 7999, false}, // density failing disqualifies outright
		{0, 0, false},
	}

	for _, tt := range tests {
		if got := q.QualifiedForOpenEpoch(tt.podScore, tt.density); got != tt.want {
			t.Errorf("QualifiedForOpenEpoch(%d, %d) = %v, want %v", tt.podScore, tt.density, got, tt.want)
		}
	}
}

func TestFounderOnlyDeployment(t *testing.T) {
	// Pushing unlock levels out of reach reproduces founder-era-only
	// operation without code changes.
	config := DefaultConfig()
	config.UnlockLevels = map[pod.Epoch]int64{
		pod.EpochPioneer:   1 << 62,
		pod.EpochCommunity: 1 << 62,
		pod.EpochEcosystem: 1 << 62,
	}
	q := NewQualifier(config)

	info := q.OpenInfo(pod.TokenomicsState{TotalCoherenceDensity: 100_000_000})
	if len(info.Open) != 1 || info.Open[0] != pod.EpochFounder {
		t.Errorf("open epochs = %v, want founder only", info.Open)
	}
}
