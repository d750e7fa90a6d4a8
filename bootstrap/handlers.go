package bootstrap

import (
	"go_audit_backend/config"
	"go_audit_backend/handlers"
)

type Handlers struct {
	AuditHandler *handlers.AuditHandler
	WSHandler    *handlers.WSHandler
}

func NewHandlers(cfg *config.Config, services *Services, repos *Repositories, infra *Infrastructure) *Handlers {
	res := &Handlers{}
	a := handlers.NewAuditHandler(services.PipelineService, repos.SessionRepository, infra.Storage, cfg.GroupSize)
	res.AuditHandler = a
	w := handlers.NewWSHandler(infra.EventPublisher)
	res.WSHandler = w
	return res
}
