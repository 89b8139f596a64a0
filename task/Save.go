package task

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"sfneuman.com/gorltask/trajectory"
)

// manifest is the small dictionary a Task is saved under. The
// per-epoch trajectory files are written next to it, named by
// epochFilename.
type manifest struct {
	NTrajectories int
	NInteractions int
	MaxSteps      int
	Gamma         float64
	AllEpochs     []int
}

// epochFilename derives the file name an epoch is saved under: if the
// base is /foo/task.bin, epoch 1 is saved under /foo/task_epoch1.bin.
func epochFilename(base string, epoch int) string {
	ext := filepath.Ext(base)
	prefix := base[:len(base)-len(ext)]
	return prefix + "_epoch" + strconv.Itoa(epoch) + ext
}

// encodeToFile gob-encodes value into the named file, optionally
// gzip-compressed
func encodeToFile(filename string, value interface{}, compress bool) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("encodeToFile: could not create save file: %v", err)
	}

	var w io.Writer = file
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(file)
		w = gz
	}

	if err := gob.NewEncoder(w).Encode(value); err != nil {
		file.Close()
		return fmt.Errorf("encodeToFile: could not encode data: %v", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			file.Close()
			return fmt.Errorf("encodeToFile: could not flush archive: %v", err)
		}
	}
	return file.Close()
}

// decodeFromFile gob-decodes the named file into value, optionally
// gzip-decompressed
func decodeFromFile(filename string, value interface{}, compress bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("decodeFromFile: could not open data file: %v", err)
	}
	defer file.Close()

	var r io.Reader = file
	if compress {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("decodeFromFile: corrupt archive: %v", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := gob.NewDecoder(r).Decode(value); err != nil {
		return fmt.Errorf("decodeFromFile: could not decode data: %v", err)
	}
	return nil
}

// SaveToFile saves the task under the given file name: one compressed
// trajectory file per epoch that changed since the last save, then
// the manifest. The trajectory files are always written before the
// manifest, so a crash in between leaves a recoverable, if partially
// stale, state on disk. After a successful save every retained epoch
// is marked unchanged.
func (t *Task) SaveToFile(filename string) error {
	epochs := t.buffer.ids()
	for _, epoch := range epochs {
		if t.savedUnchanged[epoch] {
			continue
		}
		err := encodeToFile(epochFilename(filename, epoch),
			t.buffer.get(epoch), true)
		if err != nil {
			return fmt.Errorf("saveToFile: epoch %d: %v", epoch, err)
		}
	}

	m := manifest{
		NTrajectories: t.nTrajectories,
		NInteractions: t.nInteractions,
		MaxSteps:      t.maxSteps,
		Gamma:         t.gamma,
		AllEpochs:     epochs,
	}
	if err := encodeToFile(filename, m, false); err != nil {
		return fmt.Errorf("saveToFile: %v", err)
	}

	for _, epoch := range epochs {
		t.savedUnchanged[epoch] = true
	}
	return nil
}

// InitFromFile restores a previously saved task from the given file
// name. Only the most recent NReplayEpochs epochs named in the
// manifest are restored, and they start out marked unchanged. On
// error the task is left unmodified.
func (t *Task) InitFromFile(filename string) error {
	var m manifest
	if err := decodeFromFile(filename, &m, false); err != nil {
		return fmt.Errorf("initFromFile: %v", err)
	}

	epochs := m.AllEpochs
	if len(epochs) > t.nReplayEpochs {
		epochs = epochs[len(epochs)-t.nReplayEpochs:]
	}

	loaded := make(map[int][]*trajectory.Trajectory, len(epochs))
	for _, epoch := range epochs {
		var trajs []*trajectory.Trajectory
		err := decodeFromFile(epochFilename(filename, epoch), &trajs, true)
		if err != nil {
			return fmt.Errorf("initFromFile: epoch %d: %v", epoch, err)
		}
		loaded[epoch] = trajs
	}

	t.nTrajectories = m.NTrajectories
	t.nInteractions = m.NInteractions
	t.maxSteps = m.MaxSteps
	t.gamma = m.Gamma
	t.savedUnchanged = make(map[int]bool, len(epochs))
	for epoch, trajs := range loaded {
		t.buffer.set(epoch, trajs)
		t.savedUnchanged[epoch] = true
	}
	return nil
}
