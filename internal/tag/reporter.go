package tag

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/internal/build"
	"github.com/zetsubou/tagstore/pkg/logger"
)

// Reason classifies a disagreement between the relational store and the index.
type Reason string

const (
	// ReasonMissingToken: a projection exists for a token that does not.
	ReasonMissingToken Reason = "missing_token"

	// ReasonMissingProjection: a token exists without a projection.
	ReasonMissingProjection Reason = "missing_projection"

	// ReasonUnresolvedReference: a projection links to a token or attribute
	// definition that does not exist.
	ReasonUnresolvedReference Reason = "unresolved_reference"

	// ReasonProjectionWriteFailed: the relational write committed but the
	// projection write did not.
	ReasonProjectionWriteFailed Reason = "projection_write_failed"

	// ReasonWriteConflict: the projection changed while a write was computing it.
	ReasonWriteConflict Reason = "write_conflict"
)

var inconsistenciesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: build.ProjectName,
	Name:      "tag_inconsistencies_total",
	Help:      "The total number of detected disagreements between the relational store and the tag index.",
}, []string{"reason"})

// Reporter records inconsistencies. Detection never fails the caller, it is only
// made visible.
type Reporter struct {
	logger logger.Logger
}

// NewReporter returns a Reporter logging to l.
func NewReporter(l logger.Logger) *Reporter {
	return &Reporter{logger: l}
}

// Report counts one inconsistency of tag tagID and logs it with fields.
func (r *Reporter) Report(ctx context.Context, reason Reason, tagID int64, fields ...zap.Field) {
	inconsistenciesCounter.WithLabelValues(string(reason)).Inc()
	r.logger.WarnWithContext(ctx, "tag stores are inconsistent",
		append([]zap.Field{zap.String("reason", string(reason)), zap.Int64("tag_id", tagID)}, fields...)...)
}
