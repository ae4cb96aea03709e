package transform

// InverseBrownConrady applies the inverse of the Brown-Conrady distortion model.
// Given distorted points, it computes the corresponding undistorted points using
// an iterative Newton-Raphson method.
type InverseBrownConrady struct {
	Forward BrownConrady
}

const (
	inverseDistortionIterations = 20
	inverseDistortionTolerance  = 1e-10
)

// NewInverseBrownConrady takes the forward model parameters in k1, k2, p1, p2, k3 order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	bc, err := NewBrownConrady(inp)
	if err != nil {
		return nil, err
	}
	return bc.Inverse(), nil
}

// CheckValid checks if the fields for InverseBrownConrady have valid inputs.
func (ibc *InverseBrownConrady) CheckValid() error {
	if ibc == nil {
		return InvalidDistortionError("InverseBrownConrady shaped distortion parameters not provided")
	}
	return nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Parameters returns the forward model parameters.
func (ibc *InverseBrownConrady) Parameters() []float64 {
	if ibc == nil {
		return []float64{}
	}
	return ibc.Forward.Parameters()
}

// Transform converts a distorted normalized point into the undistorted point that the
// forward model maps onto it.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc == nil {
		return xd, yd
	}
	k1, k2, k3 := ibc.Forward.RadialK1, ibc.Forward.RadialK2, ibc.Forward.RadialK3
	p1, p2 := ibc.Forward.TangentialP1, ibc.Forward.TangentialP2

	// the distorted point is the initial guess
	xu, yu := xd, yd
	for i := 0; i < inverseDistortionIterations; i++ {
		xdEst, ydEst := ibc.Forward.Transform(xu, yu)
		errX := xdEst - xd
		errY := ydEst - yd
		if errX*errX+errY*errY < inverseDistortionTolerance*inverseDistortionTolerance {
			break
		}

		r2 := xu*xu + yu*yu
		r4 := r2 * r2
		radDist := 1 + k1*r2 + k2*r4 + k3*r4*r2
		dRad := k1 + 2*k2*r2 + 3*k3*r4
		dRadDxu := 2 * xu * dRad
		dRadDyu := 2 * yu * dRad

		dxdDxu := radDist + xu*dRadDxu + 2*p1*yu + 6*p2*xu
		dxdDyu := xu*dRadDyu + 2*p1*xu + 2*p2*yu
		dydDxu := yu*dRadDxu + 2*p1*xu + 2*p2*yu
		dydDyu := radDist + yu*dRadDyu + 6*p1*yu + 2*p2*xu

		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
