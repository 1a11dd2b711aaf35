package window

import (
	"fmt"
	"os"
	"path/filepath"
)

// Shard records one serialized array file within a dataset.
type Shard struct {
	Name    string `json:"name"`
	Windows int    `json:"windows"`
	Bytes   int64  `json:"bytes"`
}

// Manifest describes the set of shards a tensor was split into.
type Manifest struct {
	Windows int     `json:"windows"`
	Shape   [4]int  `json:"shape"`
	Shards  []Shard `json:"shards"`
}

// WriteShards splits the tensor into .npy files under dir so that each file
// stays within maxBytes. A single window larger than the budget still gets
// its own shard. Shard files are named <label>-<index>.npy.
func WriteShards(dir, label string, t *Tensor, maxBytes int64) (*Manifest, error) {
	if t.Windows() == 0 {
		return nil, fmt.Errorf("tensor has no windows to shard")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("shard byte budget must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory: %w", err)
	}

	perShard := windowsPerShard(t, maxBytes)
	manifest := &Manifest{Windows: t.Windows(), Shape: t.Shape}
	for from := 0; from < t.Windows(); from += perShard {
		to := from + perShard
		if to > t.Windows() {
			to = t.Windows()
		}
		name := fmt.Sprintf("%s-%03d.npy", label, len(manifest.Shards))
		size, err := writeShardFile(filepath.Join(dir, name), t.Slice(from, to))
		if err != nil {
			return nil, err
		}
		manifest.Shards = append(manifest.Shards, Shard{Name: name, Windows: to - from, Bytes: size})
	}
	return manifest, nil
}

func windowsPerShard(t *Tensor, maxBytes int64) int {
	per := 1
	for int64(EncodedSize([]int{per + 1, t.Shape[1], t.Shape[2], t.Shape[3]})) <= maxBytes {
		per++
		if per >= t.Windows() {
			break
		}
	}
	return per
}

func writeShardFile(path string, t *Tensor) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create shard %s: %w", path, err)
	}
	if err := WriteNPY(f, t); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close shard %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat shard %s: %w", path, err)
	}
	return info.Size(), nil
}
