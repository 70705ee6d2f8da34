package observability

const (
	AttrServiceName     = "service.name"
	AttrInvestigationID = "investigation.id"
	AttrAgentName       = "agent.name"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrCacheHit        = "cache.hit"
	AttrErrorKind       = "error.kind"

	SpanInvestigation = "investigation.run"
	SpanAgentRun      = "agent.run"
	SpanLLMRequest    = "agent.llm_request"
	SpanToolExecution = "agent.tool_execution"
	SpanVectorSearch  = "retrieval.search"

	DefaultServiceName = "investigator"
)
