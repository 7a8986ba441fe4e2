package models

// JobCard is the typed view of a job-card document. The store itself is
// schemaless (see store.Document); this struct is what the workflow client
// and the statistics helpers decode documents into. Date fields stay strings
// because the collection holds both RFC3339 timestamps and bare YYYY-MM-DD
// values written by older clients.
type JobCard struct {
	ID               string   `json:"id,omitempty"`
	JobCardID        string   `json:"jobCardId,omitempty"`
	Title            string   `json:"title,omitempty"`
	Department       string   `json:"department,omitempty"`
	RelatedToProject string   `json:"relatedToProject,omitempty"`
	ClientBrief      string   `json:"clientBrief,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	FileLocation     string   `json:"fileLocation,omitempty"`
	ToBeSignedOffBy  string   `json:"toBeSignedOffBy,omitempty"`
	ContactNo        string   `json:"contactNo,omitempty"`
	Justification    string   `json:"justification,omitempty"`
	Urgency          string   `json:"urgency,omitempty"`
	RequestedBy      string   `json:"requestedBy,omitempty"`
	Status           string   `json:"status,omitempty"`
	Date             string   `json:"date,omitempty"`
	DateSubmitted    string   `json:"dateSubmitted,omitempty"`
	DateRequested    string   `json:"dateRequested,omitempty"`
	DueDate          string   `json:"dueDate,omitempty"`
	StartTime        string   `json:"startTime,omitempty"`
	EndTime          string   `json:"endTime,omitempty"`
	EstimatedHours   string   `json:"estimatedHours,omitempty"`
	Hrs              string   `json:"hrs,omitempty"`
	DateApproved     string   `json:"dateApproved,omitempty"`
	ApprovedBy       string   `json:"approvedBy,omitempty"`
	DateRejected     string   `json:"dateRejected,omitempty"`
	RejectedBy       string   `json:"rejectedBy,omitempty"`
	RejectionReason  string   `json:"rejectionReason,omitempty"`
	Disbursed        bool     `json:"disbursed,omitempty"`
	DateDisbursed    string   `json:"dateDisbursed,omitempty"`
	ReceiptSubmitted bool     `json:"receiptSubmitted,omitempty"`
	TotalAmount      float64  `json:"totalAmount,omitempty"`
	Items            []Item   `json:"items,omitempty"`
}

// Item is one line of a job card's costing breakdown.
type Item struct {
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	EstimatedCost float64 `json:"estimatedCost"`
}

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"

	// Display-only aliases written by some dashboard flows. Counted as
	// done/open respectively, never produced by a transition.
	StatusClosed   = "closed"
	StatusAssigned = "assigned"
)
