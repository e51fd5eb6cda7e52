package queue

const (
	TypeReportExtract     = "report:extract"
	TypeReportConsolidate = "report:consolidate"
)

type ReportExtractPayload struct {
	ReportID string `json:"report_id"`
	Force    bool   `json:"force,omitempty"`
}

type ReportConsolidatePayload struct {
	ReportID string `json:"report_id"`
	Strategy string `json:"strategy,omitempty"`
}
