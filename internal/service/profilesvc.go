package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"FriendFeedwebserver/internal/domain"
)

const (
	maxDisplayNameLen = 48
	maxLocationLen    = 120
)

type ProfileStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	UpdateProfile(ctx context.Context, userID, displayName, location string, updatedAt time.Time) (domain.User, error)
	SetAvatarURL(ctx context.Context, userID, avatarURL string, updatedAt time.Time) (domain.User, error)
}

// Upload is an image received from a client.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type BlobStore interface {
	// Put stores the object and returns the URL clients should load it from.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type ProfileService struct {
	Store ProfileStore
	Blobs BlobStore
	Now   func() time.Time
}

func (s *ProfileService) Get(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.GetUserByID(ctx, userID)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID, displayName, location string) (domain.User, error) {
	displayName = strings.TrimSpace(displayName)
	location = strings.TrimSpace(location)

	fields := map[string]string{}
	if msg := displayNameProblem(displayName); msg != "" {
		fields["display_name"] = msg
	}
	if utf8.RuneCountInString(location) > maxLocationLen {
		fields["location"] = fmt.Sprintf("must be %d characters or less", maxLocationLen)
	} else if hasControl(location) {
		fields["location"] = "contains invalid characters"
	}
	if len(fields) > 0 {
		return domain.User{}, domain.NewValidationError(fields)
	}
	return s.Store.UpdateProfile(ctx, userID, displayName, location, s.now().UTC())
}

// SetAvatar uploads a new avatar image and points the profile at it.
func (s *ProfileService) SetAvatar(ctx context.Context, userID string, img Upload) (domain.User, error) {
	if s.Blobs == nil {
		return domain.User{}, fmt.Errorf("avatar uploads: %w", domain.ErrUnavailable)
	}
	ext, err := imageExtension(img, "avatar")
	if err != nil {
		return domain.User{}, err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("avatars/%s/%d%s", userID, now.UnixMilli(), ext)
	url, err := s.Blobs.Put(ctx, key, img.Body, img.Size, img.ContentType)
	if err != nil {
		return domain.User{}, fmt.Errorf("upload avatar: %w", err)
	}
	return s.Store.SetAvatarURL(ctx, userID, url, now)
}

func validateDisplayName(displayName string) error {
	if msg := displayNameProblem(displayName); msg != "" {
		return domain.NewValidationError(map[string]string{"display_name": msg})
	}
	return nil
}

func displayNameProblem(displayName string) string {
	switch {
	case displayName == "":
		return "required"
	case utf8.RuneCountInString(displayName) > maxDisplayNameLen:
		return fmt.Sprintf("must be %d characters or less", maxDisplayNameLen)
	case hasControl(displayName):
		return "contains invalid characters"
	}
	return ""
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

func imageExtension(img Upload, field string) (string, error) {
	if img.Body == nil || img.Size <= 0 {
		return "", domain.NewValidationError(map[string]string{field: "file is required"})
	}
	ext, ok := imageTypes[strings.ToLower(strings.TrimSpace(img.ContentType))]
	if !ok {
		return "", domain.NewValidationError(map[string]string{field: "must be a jpeg, png, webp or heic image"})
	}
	return ext, nil
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
