// Package alias defines the short-alias record persisted by the storage layer.
package alias

// Alias maps a short token to its original URL together with visit statistics.
//
// Invariant maintained by the storage layer: VisitCount == len(VisitorLog)
// at all times.
type Alias struct {
	// ID is the unique identifier of the record, meaning a UUID.
	ID string `json:"id"`

	// OriginalURL is the target the alias stands in for.
	OriginalURL string `json:"originalUrl"`

	// Alias is the short token, unique across all records.
	Alias string `json:"alias"`

	// PublicLink is the fully-qualified URL built from the configured
	// base URL and the alias.
	PublicLink string `json:"publicLink"`

	// VisitCount is incremented exactly once per successful resolution.
	VisitCount int `json:"visitCount"`

	// VisitorLog holds the network address of every visitor, in resolution
	// order. Growth is unbounded.
	VisitorLog []string `json:"visitorLog"`

	// OwnerID references the creating user.
	OwnerID string `json:"owner"`
}
