package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sharedalbum/album-server/internal/domain"
	"github.com/sharedalbum/album-server/internal/service"
)

func (s *Server) registerAlbumRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "News feed",
		Description: "Returns the most recent activity notifications, newest first",
		Tags:        []string{"Album"},
	}, s.handleListNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPhotos",
		Method:      http.MethodGet,
		Path:        "/api/v1/photos",
		Summary:     "Gallery",
		Description: "Returns every photo thumbnail, newest first",
		Tags:        []string{"Album"},
	}, s.handleListPhotos)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPhoto",
		Method:      http.MethodGet,
		Path:        "/api/v1/photos/{key}",
		Summary:     "Get photo",
		Description: "Returns one photo by thumbnail key",
		Tags:        []string{"Album"},
	}, s.handleGetPhoto)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLabels",
		Method:      http.MethodGet,
		Path:        "/api/v1/labels",
		Summary:     "List labels",
		Description: "Returns every label with the number of photos carrying it",
		Tags:        []string{"Album"},
	}, s.handleListLabels)
}

// === DTOs ===

// ListNotificationsInput contains parameters for the news feed.
type ListNotificationsInput struct {
	Limit int `query:"limit" default:"10" minimum:"0" doc:"Number of notifications, capped at 100"`
}

// NotificationResponse is one news feed entry.
type NotificationResponse struct {
	ID         string    `json:"id" doc:"Notification ID"`
	Message    string    `json:"message" doc:"Activity message"`
	Generation string    `json:"generation" doc:"Object generation the activity concerns"`
	CreatedAt  time.Time `json:"created_at" doc:"When the activity was recorded"`
}

// ListNotificationsResponse contains the news feed.
type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications" doc:"Notifications, newest first"`
}

// ListNotificationsOutput wraps the news feed for Huma.
type ListNotificationsOutput struct {
	Body ListNotificationsResponse
}

// PhotoResponse contains photo data in API responses.
type PhotoResponse struct {
	ThumbnailKey  string    `json:"thumbnail_key" doc:"Unique thumbnail key"`
	ThumbnailName string    `json:"thumbnail_name" doc:"Original photo object name"`
	Generation    string    `json:"generation" doc:"Photo object generation"`
	CreatedAt     time.Time `json:"created_at" doc:"When the thumbnail was created"`
	Labels        []string  `json:"labels" doc:"Labels, filename first"`
	ThumbnailURL  string    `json:"thumbnail_url" doc:"URL serving the thumbnail"`
	OriginalPhoto string    `json:"original_photo" doc:"URL of the original photo generation"`
	BlurHash      string    `json:"blur_hash,omitempty" doc:"BlurHash placeholder"`
	Width         int       `json:"width,omitempty" doc:"Thumbnail width in pixels"`
	Height        int       `json:"height,omitempty" doc:"Thumbnail height in pixels"`
}

// ListPhotosResponse contains a list of photos.
type ListPhotosResponse struct {
	Photos []PhotoResponse `json:"photos" doc:"Photos"`
}

// ListPhotosOutput wraps the gallery for Huma.
type ListPhotosOutput struct {
	Body ListPhotosResponse
}

// GetPhotoInput contains parameters for getting a photo.
type GetPhotoInput struct {
	Key string `path:"key" doc:"Thumbnail key"`
}

// PhotoOutput wraps a photo for Huma.
type PhotoOutput struct {
	Body PhotoResponse
}

// LabelResponse is a label and its photo count.
type LabelResponse struct {
	Name  string `json:"name" doc:"Label"`
	Count int    `json:"count" doc:"Number of photos carrying the label"`
}

// ListLabelsResponse contains every label.
type ListLabelsResponse struct {
	Labels []LabelResponse `json:"labels" doc:"Labels ordered by name"`
}

// ListLabelsOutput wraps the label list for Huma.
type ListLabelsOutput struct {
	Body ListLabelsResponse
}

// === Handlers ===

func (s *Server) handleListNotifications(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
	notifications, err := s.services.Album.Feed(ctx, input.Limit)
	if err != nil {
		return nil, err
	}

	resp := make([]NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, toNotificationResponse(n))
	}
	return &ListNotificationsOutput{Body: ListNotificationsResponse{Notifications: resp}}, nil
}

func (s *Server) handleListPhotos(ctx context.Context, _ *struct{}) (*ListPhotosOutput, error) {
	photos, err := s.services.Album.Gallery(ctx)
	if err != nil {
		return nil, err
	}
	return &ListPhotosOutput{Body: ListPhotosResponse{Photos: toPhotoResponses(photos)}}, nil
}

func (s *Server) handleGetPhoto(ctx context.Context, input *GetPhotoInput) (*PhotoOutput, error) {
	photo, err := s.services.Album.Photo(ctx, input.Key)
	if err != nil {
		return nil, err
	}
	return &PhotoOutput{Body: toPhotoResponse(photo)}, nil
}

func (s *Server) handleListLabels(ctx context.Context, _ *struct{}) (*ListLabelsOutput, error) {
	labels, err := s.services.Album.Labels(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]LabelResponse, 0, len(labels))
	for _, l := range labels {
		resp = append(resp, LabelResponse{Name: l.Name, Count: l.Count})
	}
	return &ListLabelsOutput{Body: ListLabelsResponse{Labels: resp}}, nil
}

// === Converters ===

func toNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		Message:    n.Message,
		Generation: n.Generation,
		CreatedAt:  n.CreatedAt,
	}
}

func toPhotoResponse(p service.Photo) PhotoResponse {
	labels := p.Labels
	if labels == nil {
		labels = []string{}
	}
	return PhotoResponse{
		ThumbnailKey:  p.ThumbnailKey,
		ThumbnailName: p.ThumbnailName,
		Generation:    p.Generation,
		CreatedAt:     p.CreatedAt,
		Labels:        labels,
		ThumbnailURL:  p.ThumbnailURL,
		OriginalPhoto: p.OriginalURL,
		BlurHash:      p.BlurHash,
		Width:         p.Width,
		Height:        p.Height,
	}
}

func toPhotoResponses(photos []service.Photo) []PhotoResponse {
	resp := make([]PhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, toPhotoResponse(p))
	}
	return resp
}
