package models

import "time"

// GroupCount is one row of a group-by breakdown, as returned by the stores.
type GroupCount struct {
	Label string `gorm:"column:label" bson:"_id"`
	Count int64  `gorm:"column:total" bson:"count"`
}

// SessionStats is the single-group session aggregation.
type SessionStats struct {
	TotalSessions   int64   `gorm:"column:total_sessions" bson:"totalSessions"`
	BouncedSessions int64   `gorm:"column:bounced_sessions" bson:"bouncedSessions"`
	AvgDuration     float64 `gorm:"column:avg_duration" bson:"avgDuration"`
}

// DailyPoint is one calendar day of the trailing visitor series.
type DailyPoint struct {
	Date      string `json:"date"`
	Visitors  int64  `json:"visitors"`
	PageViews int64  `json:"pageViews"`
}

// DeviceStats holds the three known device buckets with their shares.
type DeviceStats struct {
	Desktop           int64 `json:"desktop"`
	Mobile            int64 `json:"mobile"`
	Tablet            int64 `json:"tablet"`
	DesktopPercentage int   `json:"desktopPercentage"`
	MobilePercentage  int   `json:"mobilePercentage"`
	TabletPercentage  int   `json:"tabletPercentage"`
}

type CountryStat struct {
	Code       string `json:"code"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type CityStat struct {
	Name       string `json:"name"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type TrafficSourceStat struct {
	Source     string `json:"source"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type BrowserStat struct {
	Name       string `json:"name"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type ActivityTypeStat struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type SearchTermStat struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// RecentActivity is the public-feed projection of an Activity.
type RecentActivity struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	DisplayName string    `json:"displayName"`
	City        string    `json:"city"`
	TargetTitle string    `json:"targetTitle"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewRecentActivity reduces an Activity to the fields exposed on the dashboard feed.
func NewRecentActivity(a Activity) RecentActivity {
	return RecentActivity{
		ID:          a.ID,
		Type:        a.Type,
		DisplayName: a.DisplayName,
		City:        a.City,
		TargetTitle: a.TargetTitle(),
		CreatedAt:   a.CreatedAt,
	}
}

// Stats is the consolidated dashboard report.
type Stats struct {
	Online             int64               `json:"online"`
	TotalVisitors      int64               `json:"totalVisitors"`
	TotalPageViews     int64               `json:"totalPageViews"`
	TotalActivities    int64               `json:"totalActivities"`
	BounceRate         int                 `json:"bounceRate"`
	AvgSessionDuration int                 `json:"avgSessionDuration"`
	Devices            DeviceStats         `json:"devices"`
	Countries          []CountryStat       `json:"countries"`
	Cities             []CityStat          `json:"cities"`
	TrafficSources     []TrafficSourceStat `json:"trafficSources"`
	Browsers           []BrowserStat       `json:"browsers"`
	Activities         []ActivityTypeStat  `json:"activities"`
	DailyData          []DailyPoint        `json:"dailyData"`
	RecentActivities   []RecentActivity    `json:"recentActivities"`
	TopSearches        []SearchTermStat    `json:"topSearches"`
	Period             string              `json:"period"`
	GeneratedAt        time.Time           `json:"generatedAt"`
}
