package pipeline

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const (
	// PlaceholderThumbnail pads thumbnail lists when a creator has fewer usable posts
	PlaceholderThumbnail = "/placeholder.svg"

	maxRecentPosts       = 12
	expandedThumbnails   = 4
	cardThumbnails       = 3
	cloudinaryHost       = "res.cloudinary.com"
	cloudinaryFirstFrame = "so_0"
)

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".m4v":  true,
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// ThumbnailDeriver turns a video URL into a still image URL. It returns "" when
// no thumbnail can be derived.
type ThumbnailDeriver interface {
	DeriveThumbnail(videoURL string) string
}

// ExtensionDeriver assumes the CDN serves a poster frame next to the video with a
// .jpg extension
type ExtensionDeriver struct{}

// DeriveThumbnail implements ThumbnailDeriver
func (ExtensionDeriver) DeriveThumbnail(videoURL string) string {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil || u.Host == "" {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if !videoExtensions[ext] {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, path.Ext(u.Path)) + ".jpg"
	return u.String()
}

// CloudinaryDeriver builds first-frame thumbnails for Cloudinary-hosted videos with
// the Cloudinary URL builder, and defers to the extension swap for anything else
type CloudinaryDeriver struct {
	cld      *cloudinary.Cloudinary
	fallback ExtensionDeriver
}

// NewCloudinaryDeriver configures a deriver for cloudName. No API credentials are
// needed to build delivery URLs.
func NewCloudinaryDeriver(cloudName string) (*CloudinaryDeriver, error) {
	cld, err := cloudinary.NewFromParams(cloudName, "", "")
	if err != nil {
		return nil, err
	}
	return &CloudinaryDeriver{cld: cld}, nil
}

// DeriveThumbnail implements ThumbnailDeriver
func (d *CloudinaryDeriver) DeriveThumbnail(videoURL string) string {
	publicID, ok := cloudinaryVideoID(videoURL)
	if !ok {
		return d.fallback.DeriveThumbnail(videoURL)
	}
	video, err := d.cld.Video(publicID + ".jpg")
	if err != nil {
		zap.S().Warnw("failed to build cloudinary thumbnail", "url", videoURL, "error", err)
		return d.fallback.DeriveThumbnail(videoURL)
	}
	video.Transformation = cloudinaryFirstFrame
	thumb, err := video.String()
	if err != nil {
		zap.S().Warnw("failed to build cloudinary thumbnail", "url", videoURL, "error", err)
		return d.fallback.DeriveThumbnail(videoURL)
	}
	return thumb
}

// cloudinaryVideoID extracts the public id, without extension, from a
// res.cloudinary.com video delivery URL. Transformations and the version
// segment are dropped.
func cloudinaryVideoID(videoURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil || u.Host != cloudinaryHost {
		return "", false
	}
	_, rest, found := strings.Cut(u.Path, "/video/upload/")
	if !found || rest == "" {
		return "", false
	}
	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		if versionSegment.MatchString(seg) {
			segments = segments[i+1:]
			break
		}
	}
	publicID := strings.Join(segments, "/")
	publicID = strings.TrimSuffix(publicID, path.Ext(publicID))
	return publicID, publicID != ""
}

// postMedia collects the usable thumbnails of the first recent posts together with
// the permalink of each contributing post
func (n *Normalizer) postMedia(posts []models.RecentPost) (thumbs []string, permalinks []string) {
	for i, p := range posts {
		if i >= maxRecentPosts || len(thumbs) == expandedThumbnails {
			break
		}
		thumb := n.postThumbnail(p)
		if thumb == "" {
			continue
		}
		thumbs = append(thumbs, thumb)
		permalinks = append(permalinks, strings.TrimSpace(p.Permalink))
	}
	return thumbs, permalinks
}

func (n *Normalizer) postThumbnail(p models.RecentPost) string {
	if u := p.MediaURLs.First(); u != "" {
		return u
	}
	if u := p.MediaURL.First(); u != "" {
		return u
	}
	video := p.VideoURL.First()
	if video == "" {
		return ""
	}
	if t := strings.TrimSpace(p.ThumbnailURL); t != "" {
		return t
	}
	return n.thumbnails.DeriveThumbnail(video)
}

// padThumbnails returns the expanded and card thumbnail lists, padded with the placeholder
func padThumbnails(thumbs []string) (expanded []string, card []string) {
	expanded = make([]string, expandedThumbnails)
	for i := range expanded {
		if i < len(thumbs) {
			expanded[i] = thumbs[i]
		} else {
			expanded[i] = PlaceholderThumbnail
		}
	}
	card = make([]string, cardThumbnails)
	copy(card, expanded)
	return expanded, card
}
