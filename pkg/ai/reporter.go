package ai

import (
	"context"

	"swinglab/pkg/domain"
)

// ReportGenerator produces a coaching report for a publicly fetchable swing
// video URL. Implementations make exactly one blocking upstream call; the
// caller owns the timeout via ctx.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, videoURL string) (domain.Report, error)
}
