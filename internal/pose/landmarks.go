package pose

// Joint identifies a detected body landmark. The set mirrors the joints the
// upstream estimator reports; the decision logic only reads the ear, wrist,
// hip and ankle entries.
type Joint string

const (
	LeftEar    Joint = "left_ear"
	RightEar   Joint = "right_ear"
	LeftEye    Joint = "left_eye"
	RightEye   Joint = "right_eye"
	Nose       Joint = "nose"
	LeftWrist  Joint = "left_wrist"
	RightWrist Joint = "right_wrist"
	LeftElbow  Joint = "left_elbow"
	RightElbow Joint = "right_elbow"
	LeftHip    Joint = "left_hip"
	RightHip   Joint = "right_hip"
	LeftKnee   Joint = "left_knee"
	RightKnee  Joint = "right_knee"
	LeftAnkle  Joint = "left_ankle"
	RightAnkle Joint = "right_ankle"
)

// Point is a 2D landmark position in image coordinates. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkSet maps joints to their detected positions for one subject in one
// frame. A missing key means the joint was not detected this frame;
// confidence filtering happens upstream in the estimator.
type LandmarkSet map[Joint]Point

// Position returns the joint's position and whether it was detected.
func (ls LandmarkSet) Position(j Joint) (Point, bool) {
	p, ok := ls[j]
	return p, ok
}
