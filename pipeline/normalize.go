package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const (
	unknownUsername = "Unknown"
	platformInsta   = "instagram"
)

var profileTemplates = map[string]string{
	"instagram": "https://www.instagram.com/%s/",
	"tiktok":    "https://www.tiktok.com/@%s",
	"youtube":   "https://www.youtube.com/@%s",
	"twitter":   "https://x.com/%s",
	"x":         "https://x.com/%s",
}

// Normalizer turns raw creator documents into the display model
type Normalizer struct {
	thumbnails ThumbnailDeriver
}

// NewNormalizer returns a normalizer deriving video thumbnails with d. A nil
// deriver means the extension swap.
func NewNormalizer(d ThumbnailDeriver) *Normalizer {
	if d == nil {
		d = ExtensionDeriver{}
	}
	return &Normalizer{thumbnails: d}
}

var defaultNormalizer = NewNormalizer(nil)

// TransformCreatorData normalizes one raw creator document with the default normalizer
func TransformCreatorData(raw bson.Raw) models.Creator {
	return defaultNormalizer.Transform(raw)
}

// TransformAll normalizes a batch. Each document is handled on its own, so one bad
// document costs one fallback record and never the batch.
func (n *Normalizer) TransformAll(raws []bson.Raw) []models.Creator {
	out := make([]models.Creator, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Transform(raw))
	}
	return out
}

// Transform normalizes one raw creator document. It never panics; anything it
// cannot read yields FallbackCreator.
func (n *Normalizer) Transform(raw bson.Raw) (c models.Creator) {
	defer func() {
		if r := recover(); r != nil {
			id := rawID(raw)
			zap.S().Errorw("creator normalization panicked", "id", id, "panic", r)
			c = FallbackCreator(id)
		}
	}()

	var rec models.CreatorRecord
	if err := bson.Unmarshal(raw, &rec); err != nil {
		id := rawID(raw)
		zap.S().Warnw("failed to decode creator, using fallback", "id", id, "error", err)
		return FallbackCreator(id)
	}
	return n.fromRecord(rec)
}

func (n *Normalizer) fromRecord(rec models.CreatorRecord) models.Creator {
	username := strings.TrimPrefix(strings.TrimSpace(rec.Username), "@")
	if username == "" {
		username = unknownUsername
	}
	platform := strings.ToLower(strings.TrimSpace(rec.Platform))

	thumbs, permalinks := n.postMedia(rec.RecentPosts)
	expanded, card := padThumbnails(thumbs)

	shareURLs := []string{}
	if platform == platformInsta {
		shareURLs = append(shareURLs, permalinks...)
	}

	return models.Creator{
		ID:                 formatID(rec.ID),
		Username:           username,
		UsernameTag:        usernameTag(username),
		FullName:           strings.TrimSpace(rec.FullName),
		ProfilePic:         strings.TrimSpace(rec.ProfilePicURL),
		Platform:           platform,
		BuzzScore:          clampScore(rec.BuzzScore.Value()),
		Followers:          metricDelta(rec.FollowersCount),
		Engagement:         metricDelta(rec.EngagementRate),
		AvgViews:           metricDelta(rec.AverageViews),
		AvgLikes:           metricDelta(rec.AverageLikes),
		AvgComments:        metricDelta(rec.AverageComments),
		Niches:             niches(rec.PrimaryNiche, rec.SecondaryNiche),
		Hashtags:           hashtags(rec.Hashtags),
		Thumbnails:         card,
		ExpandedThumbnails: expanded,
		ShareURLs:          shareURLs,
		SocialMedia:        socialLinks(platform, rec.ProfileURL, username),
		Location:           ResolveLocation(rec.LocationRegion, rec.Location),
		CreatedAt:          parseTime(rec.CreatedAt),
		UpdatedAt:          parseTime(rec.UpdatedAt),
	}
}

// FallbackCreator is the safe record emitted when a document cannot be normalized
func FallbackCreator(id string) models.Creator {
	expanded, card := padThumbnails(nil)
	return models.Creator{
		ID:                 id,
		Username:           unknownUsername,
		UsernameTag:        usernameTag(unknownUsername),
		Followers:          metricDelta(models.MetricValue{}),
		Engagement:         metricDelta(models.MetricValue{}),
		AvgViews:           metricDelta(models.MetricValue{}),
		AvgLikes:           metricDelta(models.MetricValue{}),
		AvgComments:        metricDelta(models.MetricValue{}),
		Niches:             []models.Niche{},
		Hashtags:           []string{},
		Thumbnails:         card,
		ExpandedThumbnails: expanded,
		ShareURLs:          []string{},
		SocialMedia:        []models.SocialLink{},
		Location:           unknownLocation(),
	}
}

func usernameTag(username string) string {
	if username == unknownUsername {
		return "@unknown"
	}
	return "@" + username
}

func metricDelta(m models.MetricValue) models.MetricDelta {
	change := m.Change()
	direction := "flat"
	switch {
	case change > 0:
		direction = "up"
	case change < 0:
		direction = "down"
	}
	return models.MetricDelta{Value: m.Value(), ChangePct: change, ChangeDirection: direction}
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

func niches(primary, secondary string) []models.Niche {
	out := []models.Niche{}
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	if primary != "" {
		out = append(out, models.Niche{Name: primary, Kind: models.NichePrimary})
	}
	if secondary != "" && !strings.EqualFold(secondary, primary) {
		out = append(out, models.Niche{Name: secondary, Kind: models.NicheSecondary})
	}
	return out
}

func hashtags(in models.StringList) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimPrefix(tag, "#"); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func socialLinks(platform, profileURL, username string) []models.SocialLink {
	if platform == "" {
		return []models.SocialLink{}
	}
	link := strings.TrimSpace(profileURL)
	if link == "" && username != unknownUsername {
		if tmpl, ok := profileTemplates[platform]; ok {
			link = fmt.Sprintf(tmpl, username)
		}
	}
	if link == "" {
		return []models.SocialLink{}
	}
	return []models.SocialLink{{Platform: platform, URL: link}}
}

func formatID(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// rawID reads _id straight from the document for fallback records
func rawID(raw bson.Raw) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	rv, err := raw.LookupErr("_id")
	if err != nil {
		return ""
	}
	if oid, ok := rv.ObjectIDOK(); ok {
		return oid.Hex()
	}
	if s, ok := rv.StringValueOK(); ok {
		return s
	}
	return strings.Trim(rv.String(), `"`)
}

func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t)); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
