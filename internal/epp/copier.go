// Package epp carries the shared machinery of the EPP script family: the
// field copy operation, the sequential batch runner, and the per-run log.
package epp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"limsepp/internal/audit"
	"limsepp/pkg/field"
)

// FieldCopier copies one field value from a source entity to a UDF on a
// destination entity. Both values are snapshotted at construction; each
// CopyIfChanged call evaluates against that snapshot, not a re-read. One
// copier serves one copy attempt.
type FieldCopier struct {
	src      field.Entity
	dst      field.Entity
	srcField string
	dstField string

	srcValue field.Value
	prior    field.Value

	log *zap.Logger
}

// NewFieldCopier snapshots the source value and the destination's prior
// value. An empty dstField defaults to srcField.
func NewFieldCopier(src, dst field.Entity, srcField, dstField string, log *zap.Logger) *FieldCopier {
	if dstField == "" {
		dstField = srcField
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FieldCopier{
		src:      src,
		dst:      dst,
		srcField: srcField,
		dstField: dstField,
		srcValue: field.Read(src, srcField),
		prior:    field.Read(dst, dstField),
		log:      log,
	}
}

// CopyIfChanged writes the snapshotted source value to the destination UDF
// and persists the destination, but only when the value actually differs
// from the prior snapshot. Equal values (including both absent) return
// (false, nil) without any write, persist, or changelog line.
//
// A true return guarantees the destination's remote state reflects the new
// value; persist failures are returned as typed errors for the caller's
// fatal handling and never yield a true return.
func (c *FieldCopier) CopyIfChanged(ctx context.Context, changelog audit.Sink) (bool, error) {
	if c.srcValue.Equal(c.prior) {
		return false, nil
	}
	if changelog != nil {
		entry := audit.NewEntry(c.srcField, c.dst.Name(), c.dst.ID(), c.prior.Render(), c.srcValue.Render())
		if err := changelog.Append(ctx, entry); err != nil {
			return false, fmt.Errorf("append changelog: %w", err)
		}
	}
	c.log.Info("copying field between records",
		zap.String("source_id", c.src.ID()),
		zap.String("destination_id", c.dst.ID()))

	c.dst.SetUDF(c.dstField, c.srcValue)
	if err := c.dst.Persist(ctx); err != nil {
		return false, err
	}

	c.log.Info("updated destination udf",
		zap.String("destination_kind", c.dst.Kind()),
		zap.String("udf", c.dstField),
		zap.String("from", c.prior.Render()),
		zap.String("to", c.srcValue.Render()))
	return true, nil
}
