package pubstatic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportWritesStaticSite(t *testing.T) {
	store := &fakeStore{}
	store.setPosts(samplePosts()...)
	p, _ := newTestPublisher(t, store)
	dir := t.TempDir()

	n, err := p.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, rel := range []string{
		"index.html",
		"index.json",
		"feed.xml",
		"sitemap.xml",
		"blog/seo-basics/index.html",
		"blog/link-building/index.html",
		"blog/launch/index.html",
	} {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		assert.NoError(t, err, rel)
	}
	_, err = os.Stat(filepath.Join(dir, "blog", "draft"))
	assert.True(t, os.IsNotExist(err), "drafts are not exported")

	body, err := os.ReadFile(filepath.Join(dir, "blog", "launch", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Launch Day")
}

func TestExportFailsWhenStoreIsDown(t *testing.T) {
	store := &fakeStore{err: errStoreDown}
	p, _ := newTestPublisher(t, store)

	_, err := p.Export(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestExportSkipsUnsafeSlugs(t *testing.T) {
	store := &fakeStore{}
	store.setPosts(append(samplePosts(),
		published("7", "../../escape", "Escape", day(6)),
		published("8", "nested/slug", "Nested", day(7)),
	)...)
	p, _ := newTestPublisher(t, store)
	root := t.TempDir()
	dir := filepath.Join(root, "site")

	n, err := p.Export(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 7, n, "only the safe articles are written")

	_, err = os.Stat(filepath.Join(root, "escape"))
	assert.True(t, os.IsNotExist(err), "nothing is written outside the export dir")
	_, err = os.Stat(filepath.Join(dir, "blog", "nested"))
	assert.True(t, os.IsNotExist(err))
}

func TestExportableSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"launch", true},
		{"seo-basics-2024", true},
		{"../x", false},
		{"a/b", false},
		{`a\b`, false},
		{"/abs", false},
		{"..", false},
		{".", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exportableSlug(tt.slug), tt.slug)
	}
}
