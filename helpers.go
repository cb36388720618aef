package pubstatic

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// readingCharsPerMinute is the divisor behind the "N min read" estimate.
const readingCharsPerMinute = 200

// ReadingTime estimates minutes to read body, rounded up, never below 1.
func ReadingTime(body string) int {
	n := utf8.RuneCountInString(body)
	minutes := (n + readingCharsPerMinute - 1) / readingCharsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// BuildURL joins path segments onto a base URL.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	if len(pathSegments) == 0 {
		return strings.TrimRight(u.String(), "/")
	}
	u.Path = path.Join("/", u.Path, path.Join(pathSegments...))
	return u.String()
}

// PostPath is the site-relative path of a post detail page.
func PostPath(slug string) string {
	return "/blog/" + slug
}

// FilterListings keeps the listings whose title, summary or keyword contains
// query, ignoring case. Empty fields never match. An empty query keeps all.
func FilterListings(posts []Listing, query string) []Listing {
	query = strings.TrimSpace(query)
	if query == "" {
		return posts
	}
	fold := cases.Fold()
	needle := fold.String(query)
	contains := func(field string) bool {
		return field != "" && strings.Contains(fold.String(field), needle)
	}
	filtered := []Listing{}
	for _, p := range posts {
		if contains(p.Title) || contains(p.Summary) || contains(p.Keyword) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ArticleJsonLD returns a Schema.org Article JSON-LD block for post.
// Description and image are left out when the post has none.
func ArticleJsonLD(post Post, cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "Article",
		"headline": post.Title,
		"author": map[string]string{
			"@type": "Organization",
			"name":  authorName(cfg),
		},
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Publisher,
			"url":   cfg.PublisherURL,
		},
		"url": BuildURL(cfg.URL, "blog", post.Slug),
	}
	if post.Summary != "" {
		data["description"] = post.Summary
	}
	if published := formatTime(post.PublishedAt); published != "" {
		data["datePublished"] = published
	}
	if modified := formatTime(post.UpdatedAt); modified != "" {
		data["dateModified"] = modified
	}
	if post.ImageURL != "" {
		data["image"] = post.ImageURL
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogJsonLD returns a Schema.org Blog JSON-LD block for the index page.
func BlogJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "Blog",
		"name":     cfg.Name,
		"url":      BuildURL(cfg.URL),
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  cfg.Publisher,
			"url":   cfg.PublisherURL,
		},
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func authorName(cfg SiteConfig) string {
	if cfg.Author != "" {
		return cfg.Author
	}
	return cfg.Publisher
}
