package physics

// stepAir advances the plane: thrust along the nose, friction when idle, a
// single speed limit and constant-rate pitch and yaw.
func stepAir(v *Vehicle, controls Controls, dt float64) {
	t := v.Air

	//1.- Thrust follows the current attitude so climbing planes accelerate upwards.
	throttle := axis(controls.ThrottleUp, controls.ThrottleDown)
	if throttle != 0 {
		v.Velocity = v.Velocity.Add(v.Forward().Mul(t.Accel * throttle * dt))
	} else {
		v.Velocity = decay(v.Velocity, t.Friction, dt)
	}
	v.Velocity = clampMagnitude(v.Velocity, t.MaxSpeed)

	//2.- Attitude changes after thrust so this frame's push uses last frame's nose.
	v.Pitch = wrapSigned(v.Pitch + axis(controls.PitchUp, controls.PitchDown)*t.PitchRate*dt)
	v.Heading = WrapHeading(v.Heading + axis(controls.YawRight, controls.YawLeft)*t.YawRate*dt)
	v.TargetHeading = v.Heading

	//3.- Integrate and keep the belly above the floor without bouncing.
	v.Position = v.Position.Add(v.Velocity.Mul(dt))
	if floor := t.HalfExtents[1]; v.Position[1] < floor {
		v.Position[1] = floor
		if v.Velocity[1] < 0 {
			v.Velocity[1] = 0
		}
	}
}
