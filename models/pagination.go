package models

// PaginatedHeaders represents one page of email headers, newest first
type PaginatedHeaders struct {
	Headers     []EmailHeader `json:"headers"`
	Offset      uint32        `json:"offset"`
	Limit       uint32        `json:"limit"`
	TotalEmails uint32        `json:"total_emails"`
	HasMore     bool          `json:"has_more"`
}

// NewPaginatedHeaders creates a new paginated headers response
func NewPaginatedHeaders(headers []EmailHeader, offset, limit, totalEmails uint32) *PaginatedHeaders {
	return &PaginatedHeaders{
		Headers:     headers,
		Offset:      offset,
		Limit:       limit,
		TotalEmails: totalEmails,
		HasMore:     offset+uint32(len(headers)) < totalEmails,
	}
}
