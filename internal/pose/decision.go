package pose

import "math"

// State is the capture state driven by the per-frame decision.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// The decision reads one reference side. Subjects face the camera, so the
// right-side joints are the ones the estimator reports most reliably; a
// missing right-side joint makes the predicate false rather than switching
// sides, which keeps the function deterministic.
const (
	refEar   = RightEar
	refWrist = RightWrist
	refHip   = RightHip
)

// Next evaluates the capture decision for one frame and returns the next
// state. It is a pure function of (current state, subjects): no internal
// memory, no side effects. Only the first subject is consulted.
//
// Evaluation order is fixed:
//  1. no subject -> Idle
//  2. stop predicate (wrist raised above hip) -> Idle, overriding any start
//  3. Idle and both start predicates -> Recording
//  4. otherwise unchanged
func Next(cur State, subjects []LandmarkSet) State {
	if len(subjects) == 0 {
		return StateIdle
	}
	primary := subjects[0]

	if wristAboveHip(primary) {
		return StateIdle
	}
	if cur == StateIdle && wristBetweenHipAndAnkle(primary) && wristBetweenAnkles(primary) {
		return StateRecording
	}
	return cur
}

// wristBetweenHipAndAnkle reports whether the vertical hip-to-ankle distance
// is smaller than the vertical wrist-to-ankle distance. False when any of
// the required joints is missing.
func wristBetweenHipAndAnkle(ls LandmarkSet) bool {
	wrist, ok := ls.Position(refWrist)
	if !ok {
		return false
	}
	hip, ok := ls.Position(refHip)
	if !ok {
		return false
	}
	ankle, ok := ls.Position(RightAnkle)
	if !ok {
		return false
	}
	return math.Abs(hip.Y-ankle.Y) < math.Abs(wrist.Y-ankle.Y)
}

// wristBetweenAnkles reports whether the wrist's horizontal position falls
// within the closed interval spanned by the two ankles. Both endpoints are
// inclusive. False when any required joint is missing.
func wristBetweenAnkles(ls LandmarkSet) bool {
	wrist, ok := ls.Position(refWrist)
	if !ok {
		return false
	}
	left, ok := ls.Position(LeftAnkle)
	if !ok {
		return false
	}
	right, ok := ls.Position(RightAnkle)
	if !ok {
		return false
	}
	lo, hi := left.X, right.X
	if lo > hi {
		lo, hi = hi, lo
	}
	return wrist.X >= lo && wrist.X <= hi
}

// wristAboveHip is the stop predicate: the ear-to-hip vertical distance
// exceeds the ear-to-wrist vertical distance, i.e. the wrist has been raised
// above hip level toward the head. False when any required joint is missing.
func wristAboveHip(ls LandmarkSet) bool {
	ear, ok := ls.Position(refEar)
	if !ok {
		return false
	}
	wrist, ok := ls.Position(refWrist)
	if !ok {
		return false
	}
	hip, ok := ls.Position(refHip)
	if !ok {
		return false
	}
	return math.Abs(ear.Y-hip.Y) > math.Abs(ear.Y-wrist.Y)
}
