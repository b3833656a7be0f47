package entity

import "time"

// Session holds one uploaded document's rendered pages. It is never mutated after creation.
type Session struct {
	ID        string
	FileName  string
	Pages     [][]byte // PNG bytes, index 0 = page 1
	PageCount int
	CreatedAt time.Time
}

// UploadResult is what ingestion hands back to the caller.
type UploadResult struct {
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
}

// SessionInfo describes a live session without exposing its image bytes.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	FileName  string    `json:"fileName"`
	PageCount int       `json:"pageCount"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
