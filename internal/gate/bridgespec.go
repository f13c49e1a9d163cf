package gate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/podlabs/podmint/internal/pod"
)

// ValidateBridgeSpec runs the Layer B checks T-B-01..04 over every bridge.
// A nil or empty spec fails closed: the three hard checks fail, the soft
// check is not evaluated, and the degeneracy penalty saturates.
func (e *Engine) ValidateBridgeSpec(spec *pod.BridgeSpec) pod.BridgeSpecValidation {
	if spec == nil || len(spec.Bridges) == 0 {
		v := pod.BridgeSpecValidation{
			TB01:              pod.VerdictFailed,
			TB02:              pod.VerdictFailed,
			TB03:              pod.VerdictFailed,
			TB04:              pod.VerdictNotChecked,
			DegeneracyPenalty: 1.0,
			Overall:           pod.VerdictFailed,
		}
		v.TestabilityScore = testabilityScore(v)
		return v
	}

	v := pod.BridgeSpecValidation{
		TB01: pod.VerdictPassed,
		TB02: pod.VerdictPassed,
		TB03: pod.VerdictPassed,
		TB04: pod.VerdictPassed,
	}

	for i, bridge := range spec.Bridges {
		if check := e.checkRegimeObservables(i, bridge); check != nil {
			v.TB01 = pod.VerdictFailed
			v.Checks = append(v.Checks, *check)
		}
		if check := e.checkPrediction(i, bridge); check != nil {
			v.TB02 = pod.VerdictFailed
			v.Checks = append(v.Checks, *check)
		}
		if check := e.checkFailureCondition(i, bridge); check != nil {
			v.TB03 = pod.VerdictFailed
			v.Checks = append(v.Checks, *check)
		}

		degeneracy, reasons := e.bridgeDegeneracy(bridge)
		if degeneracy > v.DegeneracyPenalty {
			v.DegeneracyPenalty = degeneracy
		}
		if degeneracy > e.config.BridgeDegeneracyLimit {
			v.TB04 = pod.VerdictSoftFailed
			v.Checks = append(v.Checks, pod.BridgeCheck{
				BridgeIndex: i,
				Check:       "T-B-04",
				Verdict:     pod.VerdictSoftFailed,
				Reason:      fmt.Sprintf("degeneracy %.2f exceeds %.2f: %s", degeneracy, e.config.BridgeDegeneracyLimit, strings.Join(reasons, "; ")),
			})
		}
	}

	if v.DegeneracyPenalty > 1 {
		v.DegeneracyPenalty = 1
	}

	switch {
	case v.TB01 == pod.VerdictPassed && v.TB02 == pod.VerdictPassed &&
		v.TB03 == pod.VerdictPassed && v.TB04 == pod.VerdictPassed:
		v.Overall = pod.VerdictPassed
	case v.TB01 == pod.VerdictPassed && v.TB02 == pod.VerdictPassed &&
		v.TB03 == pod.VerdictPassed:
		v.Overall = pod.VerdictSoftFailed
	default:
		v.Overall = pod.VerdictFailed
	}

	v.TestabilityScore = testabilityScore(v)
	return v
}

// checkRegimeObservables is T-B-01: a bridge must declare where it applies
// and what is measured.
func (e *Engine) checkRegimeObservables(i int, bridge pod.Bridge) *pod.BridgeCheck {
	if strings.TrimSpace(bridge.Regime) == "" {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-01", Verdict: pod.VerdictFailed, Reason: "regime is empty"}
	}
	if len(bridge.Observables) == 0 {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-01", Verdict: pod.VerdictFailed, Reason: "no observables declared"}
	}
	return nil
}

// checkPrediction is T-B-02: the differential prediction must be present,
// long enough to carry content, and free of hedge language.
func (e *Engine) checkPrediction(i int, bridge pod.Bridge) *pod.BridgeCheck {
	prediction := strings.TrimSpace(bridge.DifferentialPrediction)
	if prediction == "" {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-02", Verdict: pod.VerdictFailed, Reason: "differential prediction is empty"}
	}
	if len(prediction) < e.config.MinPredictionLen {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-02", Verdict: pod.VerdictFailed,
			Reason: fmt.Sprintf("differential prediction shorter than %d characters", e.config.MinPredictionLen)}
	}
	if pattern := matchPattern(prediction, e.config.HedgePatterns); pattern != "" {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-02", Verdict: pod.VerdictFailed,
			Reason: fmt.Sprintf("hedge language %q makes the prediction non-committal", pattern)}
	}
	return nil
}

// checkFailureCondition is T-B-03: the failure condition must be present,
// long enough, and must not claim unfalsifiability.
func (e *Engine) checkFailureCondition(i int, bridge pod.Bridge) *pod.BridgeCheck {
	condition := strings.TrimSpace(bridge.FailureCondition)
	if condition == "" {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-03", Verdict: pod.VerdictFailed, Reason: "failure condition is empty"}
	}
	if len(condition) < e.config.MinFailureLen {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-03", Verdict: pod.VerdictFailed,
			Reason: fmt.Sprintf("failure condition shorter than %d characters", e.config.MinFailureLen)}
	}
	if pattern := matchPattern(condition, e.config.UnfalsifiablePatterns); pattern != "" {
		return &pod.BridgeCheck{BridgeIndex: i, Check: "T-B-03", Verdict: pod.VerdictFailed,
			Reason: fmt.Sprintf("failure condition claims unfalsifiability (%q)", pattern)}
	}
	return nil
}

// bridgeDegeneracy accumulates the T-B-04 soft score for one bridge:
// absent floor constraints, vague-qualifier density in the free-text
// fields, and conditional-exception language in the failure condition.
func (e *Engine) bridgeDegeneracy(bridge pod.Bridge) (float64, []string) {
	var degeneracy float64
	var reasons []string

	if len(bridge.FloorConstraints) == 0 {
		degeneracy += e.config.MissingFloorPenalty
		reasons = append(reasons, "no floor constraints")
	}

	vague := countTerms(bridge.DifferentialPrediction+" "+bridge.FailureCondition, e.config.VagueTerms)
	if excess := vague - e.config.VagueFreeCount; excess > 0 {
		degeneracy += float64(excess) * e.config.VagueExcessPenalty
		reasons = append(reasons, fmt.Sprintf("%d vague qualifier terms", vague))
	}

	if pattern := matchPattern(bridge.FailureCondition, e.config.ExceptionPatterns); pattern != "" {
		degeneracy += e.config.ExceptionPenalty
		reasons = append(reasons, fmt.Sprintf("conditional exception %q in failure condition", pattern))
	}

	if degeneracy > 1 {
		degeneracy = 1
	}
	return degeneracy, reasons
}

// testabilityScore weights the four checks 0.3/0.3/0.3/0.1, subtracts the
// degeneracy penalty, and clamps to [0, 1].
func testabilityScore(v pod.BridgeSpecValidation) float64 {
	var score float64
	if v.TB01 == pod.VerdictPassed {
		score += 0.3
	}
	if v.TB02 == pod.VerdictPassed {
		score += 0.3
	}
	if v.TB03 == pod.VerdictPassed {
		score += 0.3
	}
	if v.TB04 == pod.VerdictPassed {
		score += 0.1
	}
	score -= v.DegeneracyPenalty
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// matchPattern reports the first pattern found in the text, case
// insensitively, or "".
func matchPattern(text string, patterns []string) string {
	lower := strings.ToLower(text)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return pattern
		}
	}
	return ""
}

// countTerms counts whole-word occurrences of the given terms in text.
func countTerms(text string, terms []string) int {
	termSet := make(map[string]bool, len(terms))
	for _, term := range terms {
		termSet[strings.ToLower(term)] = true
	}

	count := 0
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if termSet[word] {
			count++
		}
	}
	return count
}
