package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-tracker/internal/projects/domain"
)

// Projects is the service surface the handlers depend on.
type Projects interface {
	List(ctx context.Context, f domain.Filter) ([]domain.Project, error)
	Get(ctx context.Context, id int64) (*domain.Project, error)
	Create(ctx context.Context, actor int64, in domain.Input) (*domain.Project, error)
	Update(ctx context.Context, actor, id int64, in domain.Input) (*domain.Project, error)
	Delete(ctx context.Context, actor, id int64) (*domain.Deleted, error)
	ListClients(ctx context.Context) ([]domain.Client, error)
}

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc Projects
	log *zap.Logger
}

func New(svc Projects, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}
