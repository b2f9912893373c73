// Package interp provides the fractional-interpolation and phase-warp
// primitives shared by the delay line and the segment generator.
//
//   - [Hermite4]:               4-point cubic Hermite interpolation.
//   - [WarpPhase]:              C1 rational curve warp for envelope shaping.
//   - [InterpolateWrap]:        wrapped table lookup, used for the sine LUT.
//   - [ParameterInterpolator]:  block-rate parameter smoothing.
package interp
