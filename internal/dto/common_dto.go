package dto

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	// Fields lists per-field validation failures.
	Fields map[string]string `json:"fields,omitempty"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	DB            string `json:"db"`
	DocumentStore string `json:"document_store"`
	Billing       string `json:"billing"`
	CRM           string `json:"crm"`
}

type PageResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
