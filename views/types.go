package views

import "time"

// Site holds site-wide values every page template reads.
type Site struct {
	Name        string
	URL         string
	Description string
	HomeURL     string // publisher's main site
}

// PageMeta carries per-page OpenGraph, Twitter and SEO metadata into <head>.
// Empty Description, Image and PublishedTime leave their tags out.
type PageMeta struct {
	Title         string
	Description   string
	URL           string // canonical + og:url
	OGType        string // "website" or "article"
	Image         string
	PublishedTime string
	JSONLD        string
}

// Card is a post summary in a listing.
type Card struct {
	Title       string
	Link        string
	Summary     string
	ImageURL    string
	Keyword     string
	PublishedAt time.Time
	ReadingTime int
}

// IndexPage is the blog listing: one featured card and the rest.
type IndexPage struct {
	Meta     PageMeta
	Featured *Card
	Posts    []Card
	Query    string
}

// PostPage is a full article with its related cards.
type PostPage struct {
	Meta        PageMeta
	Title       string
	Summary     string
	Keyword     string
	ImageURL    string
	Author      string
	PublishedAt time.Time
	ReadingTime int
	BodyHTML    string
	Related     []Card
}

// AdminEntry is one cached page as shown on the dashboard.
type AdminEntry struct {
	Path        string
	GeneratedAt time.Time
	Age         time.Duration
	Stale       bool
}

// AdminPage is the revalidation dashboard.
type AdminPage struct {
	Entries    []AdminEntry
	KnownPaths int
	Budget     time.Duration
	Message    string
	CSRFToken  string
}
