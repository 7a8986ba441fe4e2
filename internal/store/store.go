package store

import (
	"context"
	"encoding/json"

	"github.com/muzukuru/jobcard-service/internal/models"
)

// Document is a raw job-card record as held by the backing collection. The
// store persists whatever fields the caller supplies verbatim; it never
// validates or reshapes them. The record identifier is carried under the
// "id" key when a document leaves the store and is never part of the stored
// body itself.
type Document map[string]json.RawMessage

// Filter selects job cards by exact field equality. Nil/empty members are
// ignored. No range or text matching exists in any backend variant.
type Filter struct {
	RequestedBy string
	Department  string
	Status      string
	Disbursed   *bool
}

type LoginInput struct {
	Username string
	Password string
	Role     string
}

// Store is the contract both backing variants satisfy: a hosted document
// collection (postgres, one JSONB document per row) and a flat JSON file
// rewritten wholesale per mutation.
type Store interface {
	ListJobCards(ctx context.Context, filter Filter) ([]Document, error)
	GetJobCard(ctx context.Context, id string) (Document, error)
	// CreateJobCard assigns an identifier and persists the document
	// verbatim. No field validation happens here.
	CreateJobCard(ctx context.Context, doc Document) (string, error)
	// UpdateJobCard shallow-merges patch into the stored document: every
	// key present in patch overwrites, all other keys are preserved. This
	// is the single mutation path behind approve, reject and disbursement
	// alike; the caller owns transition correctness.
	UpdateJobCard(ctx context.Context, id string, patch Document) (Document, error)

	Authenticate(ctx context.Context, input LoginInput) (models.User, error)
	CreateSession(ctx context.Context, user models.User) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	Ping(ctx context.Context) error
}

// Merge returns existing with every key of patch overwritten. The result is
// a fresh document; neither input is mutated. Applying the same patch twice
// yields the same result as applying it once.
func Merge(existing, patch Document) Document {
	merged := make(Document, len(existing)+len(patch))
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range patch {
		merged[key] = value
	}
	return merged
}

// Clone deep-copies a document so stored state never aliases caller memory.
func Clone(doc Document) Document {
	copied := make(Document, len(doc))
	for key, value := range doc {
		raw := make(json.RawMessage, len(value))
		copy(raw, value)
		copied[key] = raw
	}
	return copied
}

// WithID returns a copy of doc annotated with its store-assigned identifier
// under the "id" key, the shape every read path hands back to callers.
func WithID(doc Document, id string) Document {
	annotated := Clone(doc)
	raw, _ := json.Marshal(id)
	annotated["id"] = raw
	return annotated
}

// StringField extracts a string-typed field from a document. Missing or
// non-string fields yield "".
func StringField(doc Document, key string) string {
	raw, ok := doc[key]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// BoolField extracts a boolean field; missing or non-boolean fields yield
// false.
func BoolField(doc Document, key string) bool {
	raw, ok := doc[key]
	if !ok {
		return false
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	return value
}

// Matches reports whether a document satisfies every set member of filter.
func Matches(doc Document, filter Filter) bool {
	if filter.RequestedBy != "" && StringField(doc, "requestedBy") != filter.RequestedBy {
		return false
	}
	if filter.Department != "" && StringField(doc, "department") != filter.Department {
		return false
	}
	if filter.Status != "" && StringField(doc, "status") != filter.Status {
		return false
	}
	if filter.Disbursed != nil && BoolField(doc, "disbursed") != *filter.Disbursed {
		return false
	}
	return true
}

// Decode converts a document into its typed view. Fields outside the known
// schema are simply not surfaced; they stay intact in the stored document.
func Decode(doc Document) (models.JobCard, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return models.JobCard{}, err
	}
	var card models.JobCard
	if err := json.Unmarshal(payload, &card); err != nil {
		return models.JobCard{}, err
	}
	return card, nil
}

// Encode converts a typed job card back into a document.
func Encode(card models.JobCard) (Document, error) {
	payload, err := json.Marshal(card)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
