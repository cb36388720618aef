package pubstatic

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Posts []seedPost `yaml:"posts"`
}

type seedPost struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Slug        string    `yaml:"slug"`
	Summary     string    `yaml:"summary"`
	Content     string    `yaml:"content"`
	ImageURL    string    `yaml:"img_url"`
	Keyword     string    `yaml:"keyword"`
	Status      string    `yaml:"status"`
	PublishedAt time.Time `yaml:"published_at"`
}

// LoadSeedFile reads posts from a YAML file of the form
//
//	posts:
//	  - title: Hello
//	    slug: hello
//	    status: published
//	    published_at: 2024-05-01T09:00:00Z
//	    content: <p>...</p>
//
// Status defaults to draft.
func LoadSeedFile(path string) ([]Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	posts := make([]Post, 0, len(f.Posts))
	for i, sp := range f.Posts {
		if sp.Title == "" {
			return nil, fmt.Errorf("seed post %d: title is required", i)
		}
		status := Status(sp.Status)
		switch status {
		case "":
			status = StatusDraft
		case StatusDraft, StatusPublished:
		default:
			return nil, fmt.Errorf("seed post %q: unknown status %q", sp.Title, sp.Status)
		}
		posts = append(posts, Post{
			ID:          sp.ID,
			Title:       sp.Title,
			Slug:        sp.Slug,
			Summary:     sp.Summary,
			Content:     sp.Content,
			ImageURL:    sp.ImageURL,
			Keyword:     sp.Keyword,
			Status:      status,
			PublishedAt: sp.PublishedAt,
		})
	}
	return posts, nil
}

// Seed saves posts into store and returns how many were written.
func Seed(ctx context.Context, store *Store, posts []Post) (int, error) {
	for i, p := range posts {
		if _, err := store.SavePost(ctx, p); err != nil {
			return i, fmt.Errorf("seed %q: %w", p.Title, err)
		}
	}
	return len(posts), nil
}
