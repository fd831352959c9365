package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity is a discrete engagement event (reaction, search, signup...). Immutable once stored.
type Activity struct {
	ID          string            `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Type        string            `gorm:"size:32;index;not null" bson:"type" json:"type"`
	IsPublic    bool              `gorm:"index" bson:"isPublic" json:"isPublic"`
	DisplayName string            `gorm:"size:128" bson:"displayName" json:"displayName"`
	City        string            `gorm:"size:100" bson:"city" json:"city"`
	TargetSlug  string            `gorm:"size:256" bson:"targetSlug" json:"targetSlug"`
	Metadata    datatypes.JSONMap `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"index;not null" bson:"createdAt" json:"createdAt"`
}

// ActivityTypeSearch is the type whose metadata.query feeds the top search terms.
const ActivityTypeSearch = "search"

// ActivityEvent is the raw tracking payload passed through the worker channel.
// ID and CreatedAt are assigned by the worker.
type ActivityEvent struct {
	Type        string
	IsPublic    bool
	DisplayName string
	City        string
	TargetSlug  string
	Metadata    map[string]interface{}
	IPAddress   string
	ReceivedAt  time.Time
}

// TargetTitle prefers metadata.title and falls back to the slug.
func (a Activity) TargetTitle() string {
	if a.Metadata != nil {
		if title, ok := a.Metadata["title"].(string); ok && title != "" {
			return title
		}
	}
	return a.TargetSlug
}
