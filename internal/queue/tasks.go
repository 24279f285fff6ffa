package queue

const (
	TypeReindexTenant = "reindex:tenant"
	TypeAnalysisRun   = "analysis:run"
)

type ReindexTenantPayload struct {
	TenantID  string   `json:"tenant_id"`
	ExtraURLs []string `json:"extra_urls,omitempty"`
}

type AnalysisRunPayload struct {
	TenantID string `json:"tenant_id"`
	Limit    int    `json:"limit"`
}
