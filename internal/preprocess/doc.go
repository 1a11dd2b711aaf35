// Package preprocess turns raw turbine telemetry into model-ready feature
// channels: quaternion orientation is converted to Euler angles, each channel
// is denoised with a db4 wavelet transform, and the result is standardized
// per channel. The statistics produced here travel with the dataset so the
// same scaling can be applied at inference time.
package preprocess
