package pubstatic

import (
	"bytes"
	"encoding/xml"
	"time"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// buildSitemap lists the index and one URL per addressable slug. The index
// lastmod is the newest post lastmod, so unchanged content yields an
// unchanged document; with no posts it is now.
func buildSitemap(base string, posts []Post, now time.Time) ([]byte, error) {
	index := sitemapURL{Loc: BuildURL(base), ChangeFreq: "daily", Priority: "1.0"}
	var newest time.Time
	seen := make(map[string]struct{}, len(posts))
	var urls []sitemapURL
	for _, p := range posts {
		if !p.Addressable() {
			continue
		}
		if _, dup := seen[p.Slug]; dup {
			continue
		}
		seen[p.Slug] = struct{}{}
		mod := p.LastModified()
		if mod.After(newest) {
			newest = mod
		}
		urls = append(urls, sitemapURL{
			Loc:        BuildURL(base, "blog", p.Slug),
			LastMod:    formatTime(mod),
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}
	if newest.IsZero() {
		newest = now
	}
	index.LastMod = formatTime(newest)

	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  append([]sitemapURL{index}, urls...),
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(sitemap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
