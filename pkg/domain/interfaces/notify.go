package interfaces

import (
	"context"

	"github.com/m-mizutani/herder/pkg/domain/model"
)

// Notifier posts a run result to humans
type Notifier interface {
	Notify(ctx context.Context, report *model.RunReport) error
}

// ReportStore archives run reports
type ReportStore interface {
	Put(ctx context.Context, report *model.RunReport) error
}

// Confirmer asks the operator before publishing in test mode
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}
