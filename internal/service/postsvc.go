package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"FriendFeedwebserver/internal/domain"
)

const maxCaptionLen = 2200

type PostsStore interface {
	CreatePost(ctx context.Context, p domain.Post) (domain.Post, error)
	ListPostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]domain.Post, error)
}

type PostEventPublisher interface {
	PublishPost(ctx context.Context, ev domain.PostEvent) error
}

type EdgesLister interface {
	ListEdges(ctx context.Context, ownerID string) ([]domain.Edge, error)
}

type PostService struct {
	Posts  PostsStore
	Blobs  BlobStore
	Edges  EdgesLister
	Feeds  FeedInvalidator
	Events PostEventPublisher
	Logger *slog.Logger
	Now    func() time.Time
}

type NewPost struct {
	Caption  string
	ImageURL string
	Image    *Upload
}

func (s *PostService) Create(ctx context.Context, authorID string, in NewPost) (domain.Post, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	caption := strings.TrimSpace(in.Caption)
	imageURL := strings.TrimSpace(in.ImageURL)
	fields := map[string]string{}
	if utf8.RuneCountInString(caption) > maxCaptionLen {
		fields["caption"] = fmt.Sprintf("must be %d characters or less", maxCaptionLen)
	}
	if imageURL != "" {
		if u, err := url.Parse(imageURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			fields["image_url"] = "must be an http or https url"
		}
	}
	if caption == "" && imageURL == "" && in.Image == nil {
		fields["caption"] = "caption or image required"
	}
	if len(fields) > 0 {
		return domain.Post{}, domain.NewValidationError(fields)
	}

	now := s.now().UTC()
	p := domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Caption:   caption,
		ImageURL:  imageURL,
		CreatedAt: now,
	}

	if in.Image != nil {
		if s.Blobs == nil {
			return domain.Post{}, fmt.Errorf("image uploads: %w", domain.ErrUnavailable)
		}
		ext, err := imageExtension(*in.Image, "image")
		if err != nil {
			return domain.Post{}, err
		}
		p.ImageURL, err = s.Blobs.Put(ctx, "posts/"+authorID+"/"+p.ID+ext, in.Image.Body, in.Image.Size, in.Image.ContentType)
		if err != nil {
			return domain.Post{}, fmt.Errorf("upload post image: %w", err)
		}
	}

	created, err := s.Posts.CreatePost(ctx, p)
	if err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}

	s.invalidateAudience(ctx, logger, authorID)
	if s.Events != nil {
		ev := domain.PostEvent{Type: domain.PostCreated, PostID: created.ID, AuthorID: authorID, OccurredAt: created.CreatedAt}
		if err := s.Events.PublishPost(ctx, ev); err != nil {
			logger.Warn("posts: publish event failed", "err", err, "post_id", created.ID)
		}
	}
	return created, nil
}

// invalidateAudience drops cached feeds of the author and every accepted
// friend, since all of them include the new post.
func (s *PostService) invalidateAudience(ctx context.Context, logger *slog.Logger, authorID string) {
	if s.Feeds == nil {
		return
	}
	ids := []string{authorID}
	if s.Edges != nil {
		edges, err := s.Edges.ListEdges(ctx, authorID)
		if err != nil {
			logger.Warn("posts: list friends for invalidation failed", "err", err, "user_id", authorID)
		}
		for _, e := range edges {
			if e.Status == domain.EdgeStatusAccepted {
				ids = append(ids, e.OtherID)
			}
		}
	}
	if err := s.Feeds.Invalidate(ctx, ids...); err != nil {
		logger.Warn("posts: feed cache invalidation failed", "err", err, "user_id", authorID)
	}
}

func (s *PostService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
