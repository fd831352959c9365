package models

import "time"

// Visitor is the per-visitor session state kept up to date by the tracking beacon.
// One row exists per client-generated visitor ID.
type Visitor struct {
	// ID is the primary key for SQL stores; the document store keys on VisitorID instead.
	ID uint `gorm:"primaryKey" bson:"-" json:"-"`

	// VisitorID is generated by the client and stays stable per session/device.
	VisitorID string `gorm:"uniqueIndex;size:128;not null" bson:"visitorId" json:"visitorId"`

	IP          string `gorm:"size:64" bson:"ip" json:"ip"`
	UserAgent   string `gorm:"size:512" bson:"userAgent" json:"userAgent"`
	Country     string `gorm:"size:8;index" bson:"country" json:"country"` // ISO code, "XX" when unresolved
	CountryName string `gorm:"size:100" bson:"countryName" json:"countryName"`
	City        string `gorm:"size:100;index" bson:"city" json:"city"`
	DeviceType  string `gorm:"size:16" bson:"deviceType" json:"deviceType"`
	Browser     string `gorm:"size:32" bson:"browser" json:"browser"`

	CurrentPage    string `gorm:"size:512" bson:"currentPage" json:"currentPage"`
	Referrer       string `gorm:"size:512" bson:"referrer,omitempty" json:"referrer,omitempty"`
	ReferrerSource string `gorm:"size:64" bson:"referrerSource,omitempty" json:"referrerSource,omitempty"`

	// PageViews is only ever changed by an atomic increment in the store.
	PageViews int  `gorm:"not null;default:0" bson:"pageViews" json:"pageViews"`
	Bounced   bool `bson:"bounced" json:"bounced"`
	// SessionDuration is lastSeen - sessionStart, in seconds.
	SessionDuration int  `gorm:"not null;default:0" bson:"sessionDuration" json:"sessionDuration"`
	IsOnline        bool `gorm:"index" bson:"isOnline" json:"isOnline"`

	FirstSeen    time.Time `gorm:"index;not null" bson:"firstSeen" json:"firstSeen"`
	SessionStart time.Time `gorm:"not null" bson:"sessionStart" json:"sessionStart"`
	LastSeen     time.Time `gorm:"index;not null" bson:"lastSeen" json:"lastSeen"`
}

// VisitType distinguishes a real page view from a keep-alive ping.
const (
	VisitTypePageView  = "pageview"
	VisitTypeHeartbeat = "heartbeat"
)

// VisitUpdate carries everything the store needs to upsert a Visitor in one operation.
type VisitUpdate struct {
	VisitorID      string
	IP             string
	UserAgent      string
	Country        string
	CountryName    string
	City           string
	DeviceType     string
	Browser        string
	CurrentPage    string
	Referrer       string
	ReferrerSource string
	Type           string
	At             time.Time
}

// PageViewIncrement is 0 for heartbeats and 1 for everything else.
func (u VisitUpdate) PageViewIncrement() int {
	if u.Type == VisitTypeHeartbeat {
		return 0
	}
	return 1
}
