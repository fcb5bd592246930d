package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"roombook/pkg/auth"
	"roombook/pkg/model"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomsUnavailable  = errors.New("rooms service unavailable")
	ErrRoomsUnauthorized = errors.New("rooms service rejected credentials")
)

const roomsPath = "/api/v1/rooms"

// RoomClient reads the room directory served by the rooms service. The
// caller's bearer token is forwarded from the request context.
type RoomClient struct {
	httpClient *HttpClient
}

func NewRoomClient(baseURL string, opts ...HttpOption) *RoomClient {
	return &RoomClient{httpClient: NewHttpClient(baseURL, opts...)}
}

func (c *RoomClient) Get(ctx context.Context, roomID string) (*model.Room, error) {
	resp, err := c.httpClient.GET(ctx, roomsPath+"/id/"+url.PathEscape(roomID), authHeaders(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomsUnavailable, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body struct {
		Data model.Room `json:"data"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	return &body.Data, nil
}

// List returns every room matching filter, following pagination.
func (c *RoomClient) List(ctx context.Context, filter model.RoomFilter) ([]*model.Room, error) {
	const pageSize = 100
	var rooms []*model.Room

	for offset := int64(0); ; offset += pageSize {
		q := url.Values{}
		if filter.MinCapacity > 0 {
			q.Set("min_capacity", strconv.Itoa(filter.MinCapacity))
		}
		if filter.Location != "" {
			q.Set("location", filter.Location)
		}
		if len(filter.Equipment) > 0 {
			q.Set("equipment", strings.Join(filter.Equipment, ","))
		}
		if filter.AvailableOnly {
			q.Set("available_only", "true")
		}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.FormatInt(offset, 10))

		resp, err := c.httpClient.GET(ctx, roomsPath+"?"+q.Encode(), authHeaders(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRoomsUnavailable, err)
		}
		if err := checkStatus(resp); err != nil {
			return nil, err
		}

		var page struct {
			Data       []*model.Room `json:"data"`
			TotalCount int64         `json:"total_count"`
		}
		if err := resp.DecodeJSON(&page); err != nil {
			return nil, fmt.Errorf("failed to decode rooms: %w", err)
		}

		rooms = append(rooms, page.Data...)
		if len(page.Data) < pageSize || int64(len(rooms)) >= page.TotalCount {
			return rooms, nil
		}
	}
}

func authHeaders(ctx context.Context) map[string]string {
	id, ok := auth.FromContext(ctx)
	if !ok || id.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + id.Token}
}

func checkStatus(resp *Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRoomNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrRoomsUnauthorized
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s", ErrRoomsUnavailable, GetErrorMessage(resp))
	}
	return nil
}
