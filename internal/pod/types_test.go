package pod

import (
	"testing"
)

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in      string
		want    Epoch
		wantErr bool
	}{
		{"founder", EpochFounder, false},
		{"  Pioneer ", EpochPioneer, false},
		{"COMMUNITY", EpochCommunity, false},
		{"ecosystem", EpochEcosystem, false},
		{"genesis", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEpoch(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEpoch(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEpoch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMetal(t *testing.T) {
	tests := []struct {
		in      string
		want    Metal
		wantErr bool
	}{
		{"gold", MetalGold, false},
		{" Silver", MetalSilver, false},
		{"COPPER", MetalCopper, false},
		{"iron", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMetal(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMetal(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMetal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEpochIndexOrder(t *testing.T) {
	if EpochFounder.Index() != 0 || EpochEcosystem.Index() != 3 {
		t.Errorf("epoch order wrong: founder=%d ecosystem=%d", EpochFounder.Index(), EpochEcosystem.Index())
	}
	if Epoch("unknown").Index() != -1 {
		t.Error("unknown epoch should index -1")
	}
}

func TestEvaluationScoreValidate(t *testing.T) {
	valid := EvaluationScore{
		SubmissionHash: "abc123",
		Novelty:        2000, Density: 2100, Coherence: 2200, Alignment: 2300,
		PodScore:                 8600,
		RedundancyOverlapPercent: 12.5,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid score rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*EvaluationScore)
	}{
		{"missing hash", func(s *EvaluationScore) { s.SubmissionHash = "" }},
		{"dimension too high", func(s *EvaluationScore) { s.Coherence = 2501 }},
		{"dimension negative", func(s *EvaluationScore) { s.Novelty = -1 }},
		{"pod score mismatch", func(s *EvaluationScore) { s.PodScore = 9000 }},
		{"overlap out of range", func(s *EvaluationScore) { s.RedundancyOverlapPercent = 101 }},
	}

	for _, tt := range tests {
		s := valid
		tt.mutate(&s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestCoherenceDensityScale(t *testing.T) {
	tests := []struct {
		density int
		want    int
	}{
		{0, 0},
		{1000, 4000},
		{2000, 8000},
		{2500, 10000},
	}
	for _, tt := range tests {
		s := EvaluationScore{Density: tt.density}
		if got := s.CoherenceDensity(); got != tt.want {
			t.Errorf("CoherenceDensity with density %d = %d, want %d", tt.density, got, tt.want)
		}
	}
}

func TestGenesisPoolsConservation(t *testing.T) {
	pools := GenesisPools()
	if len(pools) != len(EpochsInOrder)*len(Metals) {
		t.Fatalf("expected %d pools, got %d", len(EpochsInOrder)*len(Metals), len(pools))
	}

	var total int64
	perEpoch := make(map[Epoch]int64)
	for _, p := range pools {
		if p.Balance != p.DistributionAmount {
			t.Errorf("%s/%s: genesis balance %d != distribution %d", p.Epoch, p.Metal, p.Balance, p.DistributionAmount)
		}
		total += p.DistributionAmount
		perEpoch[p.Epoch] += p.DistributionAmount
	}

	if total != TotalSupply {
		t.Errorf("genesis total %d != supply %d", total, TotalSupply)
	}
	if perEpoch[EpochFounder] != TotalSupply/10*4 {
		t.Errorf("founder share %d, want 40%% of supply", perEpoch[EpochFounder])
	}
	if perEpoch[EpochEcosystem] != TotalSupply/10 {
		t.Errorf("ecosystem share %d, want 10%% of supply", perEpoch[EpochEcosystem])
	}
}
