package printer

const (
	keySummaryTitle         = "cli.summary.title"
	keyMetadataEndpoint     = "cli.metadata.endpoint"
	keyMetadataSource       = "cli.metadata.source"
	keyMetadataStatus       = "cli.metadata.status"
	keyMetadataLatency      = "cli.metadata.latency"
	keyMetadataContentType  = "cli.metadata.content_type"
	keyMetadataSize         = "cli.metadata.size"
	keyMetadataVariant      = "cli.metadata.variant"
	keyMetadataRateLimit    = "cli.metadata.rate_limit"
	keyMetadataRemote       = "cli.metadata.remote"
	keyMetadataAttempts     = "cli.metadata.attempts"
	keyMetadataError        = "cli.metadata.error"
	keySourcePrefix         = "cli.source."
	keyBodyEmpty            = "cli.body.empty"
	keyBodyTruncate         = "cli.body.truncate_hint"
	keyBodyBinary           = "cli.body.binary"
	keyJSONIndentSkipped    = "cli.json.indent_skipped"
	keyValidationTitle      = "cli.validation.title"
	keyValidationPassed     = "cli.validation.passed"
	keyExplainTitle         = "cli.explain.title"
	keyExplainConcept       = "cli.explain.concept"
	keyExplainScenario      = "cli.explain.scenario"
	keyExplainAction        = "cli.explain.action"
	keyExplainBreakdown     = "cli.explain.breakdown"
	keyTableID              = "cli.table.id"
	keyTableName            = "cli.table.name"
	keyTableMethod          = "cli.table.method"
	keyTablePath            = "cli.table.path"
	keyTableStatus          = "cli.table.status"
	keyTableLatency         = "cli.table.latency"
	keyTableFolder          = "cli.table.folder"
	keyTableFavorite        = "cli.table.favorite"
	keyTableVariants        = "cli.table.variants"
	keyTableRateLimit       = "cli.table.rate_limit"
	keyTableTime            = "cli.table.time"
	keyTableSource          = "cli.table.source"
	keyTableShown           = "cli.table.shown"
	keyAnalyticsTitle       = "cli.analytics.title"
	keyAnalyticsTotal       = "cli.analytics.total"
	keyAnalyticsSuccess     = "cli.analytics.success"
	keyAnalyticsErrors      = "cli.analytics.errors"
	keyAnalyticsSuccessRate = "cli.analytics.success_rate"
	keyAnalyticsErrorRate   = "cli.analytics.error_rate"
	keyAnalyticsAvgLatency  = "cli.analytics.avg_latency"
	keyEmptyEndpoints       = "cli.empty.endpoints"
	keyEmptyHistory         = "cli.empty.history"
)
