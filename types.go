package pubstatic

import "time"

// Status is the lifecycle state of a post in the content store.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Post is a content record owned by the external authoring system.
// Optional text fields use "" for absent; optional timestamps use the zero time.
type Post struct {
	ID          string
	Title       string
	Content     string
	Summary     string
	ImageURL    string
	Status      Status
	Keyword     string
	Slug        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt time.Time
}

// Addressable reports whether the post can be served at a public path.
func (p Post) Addressable() bool {
	return p.Status == StatusPublished && p.Slug != ""
}

// LastModified is the sitemap timestamp: the update time, or the publish
// time when the update time is missing.
func (p Post) LastModified() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.PublishedAt
}

// Listing is the index-card projection of a post. It is what the cached index
// snapshot holds, so it carries no body.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary,omitempty"`
	ImageURL    string    `json:"img_url,omitempty"`
	Keyword     string    `json:"keyword,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	ReadingTime int       `json:"reading_time"`
}

// IndexSnapshot is the data behind the index page: the most recent post as
// the featured entry and up to eleven more.
type IndexSnapshot struct {
	Featured *Listing  `json:"featured"`
	Posts    []Listing `json:"posts"`
}

func listingOf(p Post) Listing {
	return Listing{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Summary:     p.Summary,
		ImageURL:    p.ImageURL,
		Keyword:     p.Keyword,
		PublishedAt: p.PublishedAt,
		ReadingTime: ReadingTime(p.Content),
	}
}
