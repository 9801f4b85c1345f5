// Package filter provides the Gaussian kernel math shared by the compute
// backends and the host-side model of the separable blur.
//
// Kernels:
//   - GaussianWeights: 2r+1 taps, sigma = r/SigmaRatio, normalized
//   - GaussianWeightsSigma: explicit sigma
//   - WeightCache: bounded cache keyed by radius
//
// Host model:
//   - Blur: horizontal then vertical pass with an 8-bit intermediate and
//     edge clamping, matching the device programs byte for byte
//   - ClampIndex, Quantize: the sampling and rounding rules of both passes
package filter
