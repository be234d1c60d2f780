package physics

import "math"

// stepGround advances the car: smoothed steering, longitudinal thrust or
// friction, brake, speed clamp, gravity and the ground clamp.
func stepGround(v *Vehicle, controls Controls, dt float64) {
	t := v.Ground
	forward := HeadingForward(v.Heading)

	//1.- Steering authority scales with the speed ratio so a parked car cannot spin.
	steer := axis(controls.SteerRight, controls.SteerLeft)
	authority := 0.0
	if t.MaxSpeed > 0 {
		authority = math.Min(v.Velocity.Len()/t.MaxSpeed, 1)
	}
	v.RotationVelocity += steer * t.SteerRate * authority * dt
	v.RotationVelocity -= v.RotationVelocity * math.Min(t.SteerDecay*dt, 1)
	v.TargetHeading = WrapHeading(v.TargetHeading + v.RotationVelocity*dt)
	v.Heading = LerpAngle(v.Heading, v.TargetHeading, t.HeadingSmoothing*dt)

	//2.- Thrust along the pre-steer forward vector, or coast under friction.
	throttle := axis(controls.Forward, controls.Backward)
	switch throttle {
	case 1:
		v.Velocity = v.Velocity.Add(forward.Mul(t.Accel * dt))
	case -1:
		v.Velocity = v.Velocity.Sub(forward.Mul(t.ReverseAccel * dt))
	default:
		v.Velocity = decay(v.Velocity, t.Friction, dt)
	}
	if controls.Brake {
		v.Velocity = decay(v.Velocity, t.Brake, dt)
	}

	//3.- The limit depends on the direction being commanded this frame.
	switch throttle {
	case 1:
		v.Velocity = clampMagnitude(v.Velocity, t.MaxSpeed)
	case -1:
		v.Velocity = clampMagnitude(v.Velocity, t.MaxReverse)
	}

	//4.- Gravity then integration, then keep the body on the ground plane.
	v.Velocity[1] -= t.Gravity * dt
	v.Position = v.Position.Add(v.Velocity.Mul(dt))
	if v.Position[1] < t.GroundClamp {
		v.Position[1] = t.GroundClamp
		v.Velocity[1] = 0
	}
}
