package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"roombook/internal/bookings/interval"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

func newValidator() *BookingValidator {
	return NewBookingValidator(logger.Discard())
}

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        model.BookingRequest
		wantFields []string
	}{
		{
			name: "valid",
			req: model.BookingRequest{
				RoomID:    "room-1",
				StartTime: "2030-01-01T10:00:00Z",
				EndTime:   "2030-01-01T11:00:00Z",
				Purpose:   "standup",
			},
		},
		{
			name:       "missing everything",
			req:        model.BookingRequest{},
			wantFields: []string{"room_id", "start_time", "end_time"},
		},
		{
			name: "inverted interval",
			req: model.BookingRequest{
				RoomID:    "room-1",
				StartTime: "2030-01-01T11:00:00Z",
				EndTime:   "2030-01-01T10:00:00Z",
			},
			wantFields: []string{"end_time"},
		},
		{
			name: "zero length",
			req: model.BookingRequest{
				RoomID:    "room-1",
				StartTime: "2030-01-01T10:00:00Z",
				EndTime:   "2030-01-01T10:00:00Z",
			},
			wantFields: []string{"end_time"},
		},
		{
			name: "missing offset",
			req: model.BookingRequest{
				RoomID:    "room-1",
				StartTime: "2030-01-01T10:00:00",
				EndTime:   "2030-01-01T11:00:00Z",
			},
			wantFields: []string{"start_time"},
		},
		{
			name: "purpose too long",
			req: model.BookingRequest{
				RoomID:    "room-1",
				StartTime: "2030-01-01T10:00:00Z",
				EndTime:   "2030-01-01T11:00:00Z",
				Purpose:   strings.Repeat("x", 501),
			},
			wantFields: []string{"purpose"},
		},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := v.Validate(&tt.req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if iv.Duration() != time.Hour {
					t.Errorf("duration = %v, want 1h", iv.Duration())
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			got := map[string]bool{}
			for _, e := range verrs {
				got[e.Field] = true
			}
			for _, f := range tt.wantFields {
				if !got[f] {
					t.Errorf("missing error for field %q in %v", f, verrs)
				}
			}
		})
	}
}

func TestValidate_NormalizesOffset(t *testing.T) {
	iv, err := newValidator().Validate(&model.BookingRequest{
		RoomID:    "room-1",
		StartTime: "2030-01-01T12:00:00+02:00",
		EndTime:   "2030-01-01T13:00:00+02:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	if !iv.Start.Equal(want) || iv.Start.Location() != time.UTC {
		t.Errorf("start = %v, want %v in UTC", iv.Start, want)
	}
}

func TestValidateUpdate(t *testing.T) {
	current, err := interval.New(
		time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatal(err)
	}
	v := newValidator()

	t.Run("purpose only keeps interval", func(t *testing.T) {
		iv, err := v.ValidateUpdate(&model.BookingUpdate{Purpose: strPtr("retro")}, current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !iv.Equal(current) {
			t.Errorf("interval = %v, want %v", iv, current)
		}
	})

	t.Run("end only extends", func(t *testing.T) {
		iv, err := v.ValidateUpdate(&model.BookingUpdate{EndTime: strPtr("2030-01-01T12:00:00Z")}, current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if iv.Duration() != 2*time.Hour {
			t.Errorf("duration = %v, want 2h", iv.Duration())
		}
	})

	t.Run("start past current end", func(t *testing.T) {
		_, err := v.ValidateUpdate(&model.BookingUpdate{StartTime: strPtr("2030-01-01T11:30:00Z")}, current)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) || verrs[0].Field != "end_time" {
			t.Fatalf("expected end_time validation error, got %v", err)
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		_, err := v.ValidateUpdate(&model.BookingUpdate{StartTime: strPtr("tomorrow")}, current)
		var verrs ValidationErrors
		if !errors.As(err, &verrs) || verrs[0].Field != "start_time" {
			t.Fatalf("expected start_time validation error, got %v", err)
		}
	})
}

func TestValidateInterval(t *testing.T) {
	v := newValidator()

	if _, err := v.ValidateInterval("", ""); err == nil {
		t.Fatal("expected error for empty bounds")
	}

	iv, err := v.ValidateInterval("2030-01-01T10:00:00Z", "2030-01-01T10:30:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Duration() != 30*time.Minute {
		t.Errorf("duration = %v, want 30m", iv.Duration())
	}
}
