// Package codec serializes bandit policy snapshots to a versioned JSON
// blob and validates them on the way back in.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/adaptive-router/internal/policy"
)

// #region errors

// ErrNotFound is returned when the snapshot source does not exist.
var ErrNotFound = errors.New("policy snapshot not found")

// ErrCorruptSnapshot is returned when a blob cannot be parsed or carries
// non-finite matrices.
var ErrCorruptSnapshot = errors.New("corrupt policy snapshot")

// MismatchError reports a snapshot whose shape disagrees with the live
// configuration. Loading it would silently misattribute learned state, so
// it is rejected instead.
type MismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("snapshot %s mismatch: want %d, got %d", e.Field, e.Want, e.Got)
}

// #endregion errors

// #region marshal

// Marshal encodes a snapshot as the versioned JSON blob.
func Marshal(snap policy.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a snapshot blob. wantArms and wantDim
// are the caller's live configuration; a shape disagreement fails with a
// MismatchError.
func Unmarshal(data []byte, wantArms, wantDim int) (policy.Snapshot, error) {
	var snap policy.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return policy.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.FormatVersion != policy.SnapshotFormatVersion {
		return policy.Snapshot{}, fmt.Errorf("%w: unsupported format version %d", ErrCorruptSnapshot, snap.FormatVersion)
	}
	if snap.NumArms != wantArms {
		return policy.Snapshot{}, &MismatchError{Field: "num arms", Want: wantArms, Got: snap.NumArms}
	}
	if snap.Dim != wantDim {
		return policy.Snapshot{}, &MismatchError{Field: "dim", Want: wantDim, Got: snap.Dim}
	}
	if err := validateArms(snap); err != nil {
		return policy.Snapshot{}, err
	}
	return snap, nil
}

func validateArms(snap policy.Snapshot) error {
	if len(snap.Arms) != snap.NumArms {
		return fmt.Errorf("%w: %d arm states for %d arms", ErrCorruptSnapshot, len(snap.Arms), snap.NumArms)
	}
	d := snap.Dim
	for i, arm := range snap.Arms {
		if len(arm.A) != d*d || len(arm.B) != d {
			return fmt.Errorf("%w: arm %d has shape (%d, %d), want (%d, %d)",
				ErrCorruptSnapshot, i, len(arm.A), len(arm.B), d*d, d)
		}
		for _, v := range arm.A {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: arm %d matrix contains non-finite values", ErrCorruptSnapshot, i)
			}
		}
		for _, v := range arm.B {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: arm %d vector contains non-finite values", ErrCorruptSnapshot, i)
			}
		}
	}
	return nil
}

// #endregion marshal

// #region file-io

// Save writes a snapshot blob to path.
func Save(path string, snap policy.Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot blob from path.
func Load(path string, wantArms, wantDim int) (policy.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return policy.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return Unmarshal(data, wantArms, wantDim)
}

// Inspect reads a snapshot and checks its integrity without enforcing a
// shape. Tooling uses this to examine snapshots of unknown provenance.
func Inspect(path string) (policy.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return policy.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap policy.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return policy.Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.FormatVersion != policy.SnapshotFormatVersion {
		return policy.Snapshot{}, fmt.Errorf("%w: unsupported format version %d", ErrCorruptSnapshot, snap.FormatVersion)
	}
	if err := validateArms(snap); err != nil {
		return policy.Snapshot{}, err
	}
	return snap, nil
}

// #endregion file-io
