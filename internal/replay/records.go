package replay

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-router/internal/memory"
	"github.com/danielpatrickdp/adaptive-router/internal/policy"
)

// #region records

// InferShape derives a policy shape from stored experience records: the
// dimension of the first context and one arm past the highest index seen.
func InferShape(records []memory.Record) (numArms, dim int, err error) {
	if len(records) == 0 {
		return 0, 0, fmt.Errorf("no records to infer a shape from")
	}
	dim = len(records[0].Context)
	maxArm := 0
	for i, rec := range records {
		if len(rec.Context) != dim {
			return 0, 0, fmt.Errorf("record %d: context dimension %d, want %d", i, len(rec.Context), dim)
		}
		if rec.Arm < 0 {
			return 0, 0, fmt.Errorf("record %d: negative arm index %d", i, rec.Arm)
		}
		if rec.Arm > maxArm {
			maxArm = rec.Arm
		}
	}
	return maxArm + 1, dim, nil
}

// FromRecords rebuilds a policy by folding stored experience records into a
// fresh regressor in insertion order. Updates are additive, so the result
// equals the policy that produced the records, minus any decisions that
// never received feedback.
func FromRecords(records []memory.Record, cfg policy.Config) (*policy.LinUCB, error) {
	p, err := policy.NewLinUCB(cfg)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := p.Update(rec.Context, rec.Arm, rec.Reward); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return p, nil
}

// #endregion records
