package pose

import "testing"

// Coordinates below are image-space pixels, Y growing downward. The ear sits
// at Y=10, the hip at Y=60, the ankles at Y=100.

// standingSubject returns a subject with the wrist at thigh level: neither
// start predicate nor the stop predicate holds.
func standingSubject() LandmarkSet {
	return LandmarkSet{
		RightEar:   {X: 100, Y: 10},
		RightWrist: {X: 100, Y: 80},
		RightHip:   {X: 100, Y: 60},
		LeftAnkle:  {X: 90, Y: 100},
		RightAnkle: {X: 110, Y: 100},
	}
}

// gripSubject returns a subject satisfying both start predicates: the
// hip-to-ankle vertical distance (40) is less than the wrist-to-ankle
// vertical distance (45), and the wrist sits horizontally between the
// ankles. The stop predicate is false (|ear-hip|=50, |ear-wrist|=135).
func gripSubject() LandmarkSet {
	return LandmarkSet{
		RightEar:   {X: 100, Y: 10},
		RightWrist: {X: 100, Y: 145},
		RightHip:   {X: 100, Y: 60},
		LeftAnkle:  {X: 90, Y: 100},
		RightAnkle: {X: 110, Y: 100},
	}
}

// raisedWristSubject returns a subject satisfying the stop predicate: the
// wrist is vertically closer to the ear than the hip is.
func raisedWristSubject() LandmarkSet {
	return LandmarkSet{
		RightEar:   {X: 100, Y: 10},
		RightWrist: {X: 100, Y: 25},
		RightHip:   {X: 100, Y: 60},
		LeftAnkle:  {X: 90, Y: 100},
		RightAnkle: {X: 110, Y: 100},
	}
}

func TestNextNoSubjectForcesIdle(t *testing.T) {
	for _, cur := range []State{StateIdle, StateRecording} {
		if got := Next(cur, nil); got != StateIdle {
			t.Errorf("Next(%v, nil) = %v, want idle", cur, got)
		}
		if got := Next(cur, []LandmarkSet{}); got != StateIdle {
			t.Errorf("Next(%v, empty) = %v, want idle", cur, got)
		}
	}
}

func TestPredicatesFalseWhenJointsMissing(t *testing.T) {
	tests := []struct {
		name     string
		pred     func(LandmarkSet) bool
		base     func() LandmarkSet
		required []Joint
	}{
		{"wristBetweenHipAndAnkle", wristBetweenHipAndAnkle, gripSubject, []Joint{RightWrist, RightHip, RightAnkle}},
		{"wristBetweenAnkles", wristBetweenAnkles, gripSubject, []Joint{RightWrist, LeftAnkle, RightAnkle}},
		{"wristAboveHip", wristAboveHip, raisedWristSubject, []Joint{RightEar, RightWrist, RightHip}},
	}

	for _, tc := range tests {
		for _, missing := range tc.required {
			t.Run(tc.name+"/missing_"+string(missing), func(t *testing.T) {
				ls := tc.base()
				if !tc.pred(ls) {
					t.Fatalf("test setup: %s should be true with all joints present", tc.name)
				}
				delete(ls, missing)
				if tc.pred(ls) {
					t.Errorf("%s = true with %s missing, want false", tc.name, missing)
				}
			})
		}
	}
}

func TestStopOverridesStart(t *testing.T) {
	// Ear at Y=50, wrist at Y=55, hip at Y=70: the stop predicate holds
	// (20 > 5) and so do both start predicates (30 < 45, wrist between
	// ankles). Stop must win from either state.
	ls := LandmarkSet{
		RightEar:   {X: 100, Y: 50},
		RightWrist: {X: 100, Y: 55},
		RightHip:   {X: 100, Y: 70},
		LeftAnkle:  {X: 90, Y: 100},
		RightAnkle: {X: 110, Y: 100},
	}
	if !wristAboveHip(ls) {
		t.Fatal("test setup: stop predicate should be true")
	}
	if !wristBetweenHipAndAnkle(ls) || !wristBetweenAnkles(ls) {
		t.Fatal("test setup: both start predicates should be true")
	}

	for _, cur := range []State{StateIdle, StateRecording} {
		if got := Next(cur, []LandmarkSet{ls}); got != StateIdle {
			t.Errorf("Next(%v) = %v, want idle (stop wins)", cur, got)
		}
	}
}

func TestRecordingStateIsStable(t *testing.T) {
	ls := gripSubject()
	state := StateRecording
	for i := 0; i < 10; i++ {
		state = Next(state, []LandmarkSet{ls})
		if state != StateRecording {
			t.Fatalf("iteration %d: state = %v, want recording", i, state)
		}
	}
}

func TestIdleToRecordingRequiresBothStartPredicates(t *testing.T) {
	outsideAnkles := gripSubject()
	outsideAnkles[RightWrist] = Point{X: 150, Y: 145}

	tests := []struct {
		name string
		ls   LandmarkSet
		want State
	}{
		{"both start predicates", gripSubject(), StateRecording},
		{"standing", standingSubject(), StateIdle},
		{"wrist outside ankle span", outsideAnkles, StateIdle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Next(StateIdle, []LandmarkSet{tc.ls}); got != tc.want {
				t.Errorf("Next(idle) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnkleIntervalIsInclusive(t *testing.T) {
	for _, x := range []float64{90, 110} {
		ls := gripSubject()
		ls[RightWrist] = Point{X: x, Y: 145}
		if !wristBetweenAnkles(ls) {
			t.Errorf("wrist at ankle X=%v should satisfy the interval", x)
		}
	}
	// Ankle order must not matter.
	ls := gripSubject()
	ls[LeftAnkle], ls[RightAnkle] = ls[RightAnkle], ls[LeftAnkle]
	if !wristBetweenAnkles(ls) {
		t.Error("swapped ankles should still satisfy the interval")
	}
}

func TestOnlyFirstSubjectDecides(t *testing.T) {
	subjects := []LandmarkSet{standingSubject(), gripSubject()}
	if got := Next(StateIdle, subjects); got != StateIdle {
		t.Errorf("Next = %v, want idle (second subject ignored)", got)
	}
}

func TestTwoFrameTrace(t *testing.T) {
	// Frame 1: no subject. Frame 2: both start predicates true.
	state := StateIdle
	var trace []State

	state = Next(state, nil)
	trace = append(trace, state)

	state = Next(state, []LandmarkSet{gripSubject()})
	trace = append(trace, state)

	want := []State{StateIdle, StateRecording}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}
