package inbound

import (
	"context"

	"github.com/shandysiswandi/gostepup/internal/notification/usecase"
)

type uc interface {
	ConsumeSecurityAlert(ctx context.Context, in usecase.ConsumeSecurityAlertInput) error
}
