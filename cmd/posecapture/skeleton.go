package main

import (
	"github.com/fogleman/gg"

	"github.com/mikeyg42/posecapture/internal/pose"
)

// limbs connects the joints the estimator reports into a stick figure.
var limbs = [][2]pose.Joint{
	{pose.LeftEar, pose.RightEar},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftHip, pose.LeftAnkle},
	{pose.RightHip, pose.RightAnkle},
	{pose.LeftHip, pose.LeftWrist},
	{pose.RightHip, pose.RightWrist},
}

// skeletonFrame renders detected subjects as stick figures. Landmark
// coordinates are in pixel space, so they are drawn as-is.
type skeletonFrame struct {
	subjects []pose.LandmarkSet
}

func (s skeletonFrame) Render(dc *gg.Context) {
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	for i, subj := range s.subjects {
		if i == 0 {
			dc.SetRGB(0.2, 1, 0.2)
		} else {
			dc.SetRGB(0.5, 0.5, 0.5)
		}
		dc.SetLineWidth(2)

		for _, limb := range limbs {
			a, ok := subj.Position(limb[0])
			if !ok {
				continue
			}
			b, ok := subj.Position(limb[1])
			if !ok {
				continue
			}
			dc.DrawLine(a.X, a.Y, b.X, b.Y)
			dc.Stroke()
		}

		for _, pt := range subj {
			dc.DrawCircle(pt.X, pt.Y, 4)
			dc.Fill()
		}
	}
}
