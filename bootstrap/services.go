package bootstrap

import (
	"go_audit_backend/config"
	"go_audit_backend/services"
)

type Services struct {
	LLMClient        *services.LLMClient
	Conversations    *services.ConversationStore
	ExtractService   *services.ExtractService
	KnowledgeService *services.KnowledgeService
	ToolRegistry     *services.ToolRegistry
	AuditAgent       *services.AuditAgent
	PipelineService  *services.PipelineService
}

func NewServices(cfg *config.Config, repos *Repositories, infra *Infrastructure) (*Services, error) {
	res := &Services{}

	llmClient := services.NewLLMClient(cfg)
	res.LLMClient = llmClient

	conversations := services.NewConversationStore(infra.Cache, cfg.HistoryBudget)
	res.Conversations = conversations

	// 抽取服务（会话式分组调用）
	invoker := services.NewSessionExtractInvoker(llmClient, conversations)
	extractService := services.NewExtractService(invoker)
	res.ExtractService = extractService

	// 知识服务（向量化 + 检索）
	knowledgeService := services.NewKnowledgeService(cfg, infra.Cache)
	res.KnowledgeService = knowledgeService

	registry, err := services.NewToolRegistry(knowledgeService, []string{"search_audit_db"})
	if err != nil {
		return nil, err
	}
	res.ToolRegistry = registry

	auditAgent := services.NewAuditAgent(llmClient, registry, conversations)
	res.AuditAgent = auditAgent

	pipelineService := services.NewPipelineService(
		extractService,
		auditAgent,
		knowledgeService,
		repos.SessionRepository,
		infra.EventPublisher,
		infra.Storage,
		conversations,
		cfg.GroupSize,
	)
	res.PipelineService = pipelineService

	return res, nil
}
