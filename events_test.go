package pubstatic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

type recordingRevalidator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingRevalidator) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.err
}

func (r *recordingRevalidator) Revalidate(_ context.Context, slug string) error {
	return r.record("revalidate " + slug)
}

func (r *recordingRevalidator) RevalidateIndex(context.Context) error {
	return r.record("index")
}

func (r *recordingRevalidator) Purge(_ context.Context, slug string) error {
	return r.record("purge " + slug)
}

func TestEventSubscriberApply(t *testing.T) {
	tests := []struct {
		event ChangeEvent
		want  []string
	}{
		{ChangeEvent{Slug: "hello", Action: ActionPublished}, []string{"revalidate hello", "index"}},
		{ChangeEvent{Slug: "hello", Action: ActionUpdated}, []string{"revalidate hello", "index"}},
		{ChangeEvent{Slug: "hello", Action: ActionUnpublished}, []string{"purge hello", "index"}},
		{ChangeEvent{Slug: "hello", Action: ActionDeleted}, []string{"purge hello", "index"}},
		{ChangeEvent{Action: ActionUpdated}, []string{"index"}},
	}
	for _, tt := range tests {
		t.Run(tt.event.Action+"/"+tt.event.Slug, func(t *testing.T) {
			rec := &recordingRevalidator{}
			sub := NewEventSubscriber(rec, nil)
			assert.NoError(t, sub.Apply(context.Background(), tt.event))
			assert.Equal(t, tt.want, rec.calls)
		})
	}
}

func TestEventSubscriberUnknownAction(t *testing.T) {
	rec := &recordingRevalidator{}
	sub := NewEventSubscriber(rec, nil)

	err := sub.Apply(context.Background(), ChangeEvent{Slug: "x", Action: "archived"})
	assert.Error(t, err)
	assert.Empty(t, rec.calls)
}

func TestEventSubscriberRefreshesIndexWhenArticleFails(t *testing.T) {
	rec := &recordingRevalidator{err: errors.New("store down")}
	sub := NewEventSubscriber(rec, nil)

	err := sub.Apply(context.Background(), ChangeEvent{Slug: "x", Action: ActionPublished})
	assert.Error(t, err)
	assert.Equal(t, []string{"revalidate x", "index"}, rec.calls)
}

func TestEventSubscriberHandleMessage(t *testing.T) {
	rec := &recordingRevalidator{}
	sub := NewEventSubscriber(rec, nil)

	sub.handle(&nats.Msg{Subject: "blog.posts.changed", Data: []byte(`{"slug":"hello","action":"published"}`)})
	assert.Equal(t, []string{"revalidate hello", "index"}, rec.calls)

	rec.calls = nil
	sub.handle(&nats.Msg{Subject: "blog.posts.changed", Data: []byte(`not json`)})
	assert.Empty(t, rec.calls)
}

func TestEventSubscriberDrivesPublisher(t *testing.T) {
	store := &fakeStore{}
	store.setPosts(samplePosts()...)
	p, _ := newTestPublisher(t, store)
	ctx := context.Background()
	_, _, err := p.RenderPost(ctx, "launch")
	assert.NoError(t, err)

	sub := NewEventSubscriber(p, nil)
	assert.NoError(t, sub.Apply(ctx, ChangeEvent{Slug: "launch", Action: ActionDeleted}))
	assert.False(t, p.Cache().Has(ctx, "/blog/launch"))
	assert.True(t, p.Cache().Has(ctx, "/"))
}
