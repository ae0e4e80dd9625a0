package epp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"limsepp/internal/audit"
	"limsepp/pkg/field"
)

// Runner executes a batch of copies sequentially, one destination at a
// time. The first fatal persist failure stops the batch; there is no retry
// or skip-and-continue for a failed write.
type Runner struct {
	changelog audit.Sink
	log       *zap.Logger

	Updated   int
	Unchanged int
	Skipped   int // destinations skipped because the source UDF was undefined
	Total     int
}

// NewRunner builds a runner writing value changes to changelog (may be nil).
func NewRunner(changelog audit.Sink, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{changelog: changelog, log: log}
}

// CopyToAll copies srcField from src onto every destination in order. A
// destination whose copy requires an undefined source UDF is warned about
// and counted, not failed.
func (r *Runner) CopyToAll(ctx context.Context, src field.Entity, srcField, dstField string, dsts []field.Entity) error {
	r.Total += len(dsts)
	for _, dst := range dsts {
		if _, ok := src.UDF(srcField); !ok {
			r.log.Warn("source udf undefined or blank, skipping destination",
				zap.String("source_id", src.ID()),
				zap.String("udf", srcField),
				zap.String("destination_id", dst.ID()))
			r.Skipped++
			continue
		}
		if err := r.copyOne(ctx, src, srcField, dstField, dst); err != nil {
			return err
		}
	}
	return nil
}

// CopyPairs runs prepared source/destination pairs, used when each
// destination has its own source entity (e.g. one result-file row per
// artifact).
func (r *Runner) CopyPairs(ctx context.Context, srcField, dstField string, pairs []CopyPair) error {
	r.Total += len(pairs)
	for _, p := range pairs {
		if _, ok := p.Source.UDF(srcField); !ok {
			r.log.Warn("source udf undefined or blank, skipping destination",
				zap.String("source_id", p.Source.ID()),
				zap.String("udf", srcField),
				zap.String("destination_id", p.Destination.ID()))
			r.Skipped++
			continue
		}
		if err := r.copyOne(ctx, p.Source, srcField, dstField, p.Destination); err != nil {
			return err
		}
	}
	return nil
}

// CopyPair binds one copy source to one destination.
type CopyPair struct {
	Source      field.Entity
	Destination field.Entity
}

func (r *Runner) copyOne(ctx context.Context, src field.Entity, srcField, dstField string, dst field.Entity) error {
	copied, err := NewFieldCopier(src, dst, srcField, dstField, r.log).CopyIfChanged(ctx, r.changelog)
	if err != nil {
		return fmt.Errorf("copy %s to %s %s: %w", srcField, dst.Kind(), dst.ID(), err)
	}
	if copied {
		r.Updated++
	} else {
		r.Unchanged++
	}
	return nil
}

// Abstract renders the one-line run summary printed to stderr, whose last
// line the LIMS shows to the operator.
func (r *Runner) Abstract(noun string) string {
	warn := ""
	if r.Skipped > 0 {
		warn = fmt.Sprintf(" Failed to update %d %s(s) due to wrong source udf info.", r.Skipped, noun)
	}
	return fmt.Sprintf("Updated %d %s(s), out of %d in total.%s", r.Updated, noun, r.Total, warn)
}
