package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"FriendFeedwebserver/internal/domain"
)

type stubBlobStore struct {
	putFunc func(context.Context, string, io.Reader, int64, string) (string, error)
}

func (s *stubBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.putFunc != nil {
		return s.putFunc(ctx, key, body, size, contentType)
	}
	return "https://cdn.example.com/" + key, nil
}

type stubPostEvents struct {
	events []domain.PostEvent
}

func (s *stubPostEvents) PublishPost(_ context.Context, ev domain.PostEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func TestPostServiceCreateUploadsImageAndInvalidatesFriends(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]
	if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("accept: %v", err)
	}

	rec := &recordingSideEffects{}
	events := &stubPostEvents{}
	var uploadedKey string
	svc := &PostService{
		Posts: f.store,
		Edges: f.store,
		Feeds: rec,
		Blobs: &stubBlobStore{putFunc: func(_ context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
			uploadedKey = key
			raw, _ := io.ReadAll(body)
			if string(raw) != "jpegbytes" || size != 9 || contentType != "image/jpeg" {
				t.Fatalf("unexpected upload: %q %d %s", raw, size, contentType)
			}
			return "https://cdn.example.com/" + key, nil
		}},
		Events: events,
		Now:    func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	}

	p, err := svc.Create(ctx, alice, NewPost{
		Caption: "  sunset  ",
		Image:   &Upload{Body: strings.NewReader("jpegbytes"), Size: 9, ContentType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Caption != "sunset" || p.ID == "" || p.AuthorID != alice {
		t.Fatalf("unexpected post: %+v", p)
	}
	if !strings.HasPrefix(uploadedKey, "posts/"+alice+"/") || !strings.HasSuffix(uploadedKey, ".jpg") {
		t.Fatalf("unexpected object key: %s", uploadedKey)
	}
	if p.ImageURL != "https://cdn.example.com/"+uploadedKey {
		t.Fatalf("unexpected image url: %s", p.ImageURL)
	}

	if len(rec.invalidated) != 1 {
		t.Fatalf("expected one invalidation, got %v", rec.invalidated)
	}
	got := strings.Join(rec.invalidated[0], ",")
	if got != alice+","+bob {
		t.Fatalf("expected author and friend feeds invalidated, got %s", got)
	}
	if len(events.events) != 1 || events.events[0].Type != domain.PostCreated || events.events[0].PostID != p.ID {
		t.Fatalf("unexpected events: %+v", events.events)
	}
}

func TestPostServiceCreateValidation(t *testing.T) {
	svc := &PostService{Posts: nil}

	tests := []struct {
		name string
		in   NewPost
	}{
		{name: "empty", in: NewPost{}},
		{name: "long caption", in: NewPost{Caption: strings.Repeat("x", maxCaptionLen+1)}},
		{name: "bad url", in: NewPost{Caption: "hi", ImageURL: "ftp://example.com/a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "user-1", tt.in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPostServiceRejectsUnsupportedImageType(t *testing.T) {
	svc := &PostService{Blobs: &stubBlobStore{}}
	_, err := svc.Create(context.Background(), "user-1", NewPost{
		Image: &Upload{Body: bytes.NewReader([]byte("gif")), Size: 3, ContentType: "image/gif"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
