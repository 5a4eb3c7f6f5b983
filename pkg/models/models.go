package models

// FingerprintSize is the width of a hardware fingerprint digest.
const FingerprintSize = 32

// SignalState is a single attestation unit. It is immutable after generation:
// the signature covers timestamp, entropy state, payload and the issuing
// hardware fingerprint, so mutating any field invalidates it.
type SignalState struct {
	Timestamp    int64  `json:"timestamp"`
	EntropyState uint64 `json:"entropy_state"`
	Data         []byte `json:"data"`
	Signature    []byte `json:"signature"`
}

// HardwareProfile fingerprints the issuing hardware instance.
type HardwareProfile struct {
	Fingerprint  []byte            `json:"fingerprint"`
	Features     []string          `json:"features"`
	Capabilities map[string]string `json:"capabilities"`
}

// IsDegenerate reports whether the profile could never belong to real
// hardware: wrong-size or all-zero fingerprint, or empty feature and
// capability sets. Degenerate profiles must never validate.
func (p HardwareProfile) IsDegenerate() bool {
	if len(p.Fingerprint) != FingerprintSize {
		return true
	}
	allZero := true
	for _, b := range p.Fingerprint {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return true
	}
	return len(p.Features) == 0 || len(p.Capabilities) == 0
}

type OutcomeCode string

const (
	OutcomeAccepted         OutcomeCode = "accepted"
	OutcomeExpiredSignal    OutcomeCode = "expired_signal"
	OutcomeFutureTimestamp  OutcomeCode = "future_timestamp"
	OutcomeHardwareMismatch OutcomeCode = "hardware_mismatch"
	OutcomeSignatureInvalid OutcomeCode = "signature_invalid"
	OutcomeReplayDetected   OutcomeCode = "replay_detected"
	OutcomeMalformedInput   OutcomeCode = "malformed_input"
)

// ValidationOutcome is the discriminated result of signal validation. Every
// rejection carries the specific reason so callers can assert on it instead
// of an undifferentiated boolean.
type ValidationOutcome struct {
	Code   OutcomeCode `json:"code"`
	Reason string      `json:"reason,omitempty"`
}

func (o ValidationOutcome) IsAccepted() bool {
	return o.Code == OutcomeAccepted
}

func Accept() ValidationOutcome {
	return ValidationOutcome{Code: OutcomeAccepted}
}

func Reject(code OutcomeCode, reason string) ValidationOutcome {
	return ValidationOutcome{Code: code, Reason: reason}
}

func CloneSignal(s SignalState) SignalState {
	return SignalState{
		Timestamp:    s.Timestamp,
		EntropyState: s.EntropyState,
		Data:         append([]byte(nil), s.Data...),
		Signature:    append([]byte(nil), s.Signature...),
	}
}

func CloneProfile(p HardwareProfile) HardwareProfile {
	out := HardwareProfile{
		Fingerprint: append([]byte(nil), p.Fingerprint...),
		Features:    append([]string(nil), p.Features...),
	}
	if p.Capabilities != nil {
		out.Capabilities = make(map[string]string, len(p.Capabilities))
		for k, v := range p.Capabilities {
			out.Capabilities[k] = v
		}
	}
	return out
}
