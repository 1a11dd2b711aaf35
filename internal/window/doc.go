// Package window folds preprocessed telemetry channels into fixed-size
// training tensors and serializes them as NumPy array shards. Each window of
// one hundred consecutive samples becomes a ten by ten grid per channel, and
// the resulting batch is split across .npy files under a byte budget so that
// individual uploads stay small.
package window
