package models

import "time"

// CreatorRecord is a raw document from the creators collection. Metric fields
// tolerate both bare-number and wrapped-object shapes.
type CreatorRecord struct {
	ID              interface{}  `bson:"_id"`
	Username        string       `bson:"username"`
	FullName        string       `bson:"full_name"`
	ProfilePicURL   string       `bson:"profile_pic_url"`
	Platform        string       `bson:"platform"`
	ProfileURL      string       `bson:"profile_url"`
	BuzzScore       MetricValue  `bson:"buzz_score"`
	FollowersCount  MetricValue  `bson:"followers_count"`
	AverageViews    MetricValue  `bson:"average_views"`
	EngagementRate  MetricValue  `bson:"engagement_rate"`
	AverageLikes    MetricValue  `bson:"average_likes"`
	AverageComments MetricValue  `bson:"average_comments"`
	PrimaryNiche    string       `bson:"primary_niche"`
	SecondaryNiche  string       `bson:"secondary_niche"`
	Hashtags        StringList   `bson:"hashtags"`
	Location        string       `bson:"location"`
	LocationRegion  string       `bson:"location_region"`
	RecentPosts     []RecentPost `bson:"recent_posts"`
	CreatedAt       interface{}  `bson:"created_at"`
	UpdatedAt       interface{}  `bson:"updated_at"`
}

// RecentPost is one entry of a creator's recent_posts array
type RecentPost struct {
	MediaURLs    StringList `bson:"media_urls"`
	MediaURL     StringList `bson:"media_url"`
	VideoURL     StringList `bson:"video_url"`
	ThumbnailURL string     `bson:"thumbnail_url"`
	Permalink    string     `bson:"permalink"`
}

// NicheKind marks whether a niche came from the primary or the secondary field
type NicheKind string

const (
	// NichePrimary is the creator's main niche
	NichePrimary NicheKind = "primary"
	// NicheSecondary is the creator's secondary niche
	NicheSecondary NicheKind = "secondary"
)

// Niche is a topical category attached to a creator
type Niche struct {
	Name string    `json:"name"`
	Kind NicheKind `json:"kind"`
}

// MetricDelta is a metric value with its change since the previous measurement
type MetricDelta struct {
	Value           float64 `json:"value"`
	ChangePct       float64 `json:"changePct"`
	ChangeDirection string  `json:"changeDirection"` // up, down, flat
}

// SocialLink is a link to a creator's profile on a platform
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Location is the display geography of a creator
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	Display string `json:"display"`
}

// Creator is the normalized creator shape handed to presentation code
type Creator struct {
	ID                 string       `json:"id"`
	Username           string       `json:"username"`
	UsernameTag        string       `json:"usernameTag"`
	FullName           string       `json:"fullName,omitempty"`
	ProfilePic         string       `json:"profilePic"`
	Platform           string       `json:"platform"`
	MatchScore         *int         `json:"matchScore,omitempty"`
	BuzzScore          int          `json:"buzzScore"`
	Followers          MetricDelta  `json:"followers"`
	Engagement         MetricDelta  `json:"engagement"`
	AvgViews           MetricDelta  `json:"avgViews"`
	AvgLikes           MetricDelta  `json:"avgLikes"`
	AvgComments        MetricDelta  `json:"avgComments"`
	Niches             []Niche      `json:"niches"`
	Hashtags           []string     `json:"hashtags"`
	Thumbnails         []string     `json:"thumbnails"`
	ExpandedThumbnails []string     `json:"expandedThumbnails"`
	ShareURLs          []string     `json:"shareUrls"`
	SocialMedia        []SocialLink `json:"socialMedia"`
	Location           Location     `json:"location"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// CreatorMetrics are the aggregate metrics over every creator matching the active filters
type CreatorMetrics struct {
	TotalCount    int64   `json:"totalCount"`
	AvgFollowers  int64   `json:"avgFollowers"`
	AvgViews      int64   `json:"avgViews"`
	AvgEngagement float64 `json:"avgEngagement"`
}

// MetricTotals are the raw sums the store returns for a filter; averages are derived from them
type MetricTotals struct {
	Count      int64   `bson:"count"`
	Followers  float64 `bson:"followers"`
	Views      float64 `bson:"views"`
	Engagement float64 `bson:"engagement"`
}

// CreatorResponse wraps a single creator for the detail endpoint
type CreatorResponse struct {
	Success bool    `json:"success"`
	Creator Creator `json:"creator"`
}
