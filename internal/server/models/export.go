package models

import "time"

// ExportedEntry is the archived form of an entry. Secret holds the stored
// envelope unchanged; exports never contain plaintext.
type ExportedEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website,omitempty"`
	Username  string    `json:"username"`
	Secret    string    `json:"secret"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExportArchive is the JSON document written to object storage.
type ExportArchive struct {
	OwnerID    string           `json:"ownerId"`
	Algorithm  string           `json:"algorithm"`
	ExportedAt time.Time        `json:"exportedAt"`
	Entries    []*ExportedEntry `json:"entries"`
}

// ExportStatus tracks an archive upload.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusCompleted ExportStatus = "completed"
)

// Export describes an uploaded archive and the temporary link to fetch it.
// URL and ExpiresAt are only set on the value returned right after upload;
// they are not persisted.
type Export struct {
	ID         string
	UserID     string
	StorageKey string
	EntryCount int
	Status     ExportStatus
	CreatedAt  time.Time

	URL       string
	ExpiresAt time.Time
}
