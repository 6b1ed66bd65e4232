package store

import "time"

// --- Session index (sessions/index.json) ---

type SessionMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Status    string    `json:"status"` // "active", "archived"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionIndex struct {
	Sessions map[string]SessionMeta `json:"sessions"`
}

// --- Transcript (sessions/<id>.jsonl) ---

type TranscriptEntry struct {
	ID        string    `json:"id"` // ULID
	Timestamp time.Time `json:"ts"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}
