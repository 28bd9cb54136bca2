package driver

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Checkpointer periodically persists a weight vector during training,
// so a long learning run can resume after an interruption instead of
// restarting from w0.
type Checkpointer interface {
	Checkpoint(it Iterate) error
}

// NStep checkpoints every N iterations by gob-encoding the current
// weight vector to Path, overwriting the previous checkpoint.
type NStep struct {
	N    int
	Path string
}

// Checkpoint writes it.Weights to n.Path if it.Iter is a multiple of
// n.N; otherwise it is a no-op.
func (n NStep) Checkpoint(it Iterate) error {
	if n.N <= 0 || it.Iter%n.N != 0 {
		return nil
	}

	f, err := os.Create(n.Path)
	if err != nil {
		return fmt.Errorf("driver: checkpoint: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(it.Weights); err != nil {
		return fmt.Errorf("driver: checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a weight vector previously written by NStep.
func LoadCheckpoint(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: load checkpoint: %w", err)
	}
	defer f.Close()

	var w []float64
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("driver: load checkpoint: %w", err)
	}
	return w, nil
}
