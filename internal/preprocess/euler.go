package preprocess

import "math"

// EulerAngles holds an orientation derived from a quaternion sample, in
// radians.
type EulerAngles struct {
	Roll  float64
	Pitch float64
	Yaw   float64
}

// EulerFromQuaternion converts a quaternion to intrinsic roll/pitch/yaw. The
// pitch argument is clamped to [-1, 1] before the inverse sine so slightly
// denormalized sensor quaternions cannot produce a domain error.
func EulerFromQuaternion(qx, qy, qz, qw float64) EulerAngles {
	sinRoll := 2 * (qw*qx + qy*qz)
	cosRoll := 1 - 2*(qx*qx+qy*qy)
	roll := math.Atan2(sinRoll, cosRoll)

	sinPitch := 2 * (qw*qy - qz*qx)
	if sinPitch > 1 {
		sinPitch = 1
	} else if sinPitch < -1 {
		sinPitch = -1
	}
	pitch := math.Asin(sinPitch)

	sinYaw := 2 * (qw*qz + qx*qy)
	cosYaw := 1 - 2*(qy*qy+qz*qz)
	yaw := math.Atan2(sinYaw, cosYaw)

	return EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}
