package handler

import (
	"context"
	"net/http"
	"strings"

	"roombook/internal/bookings/events"
	"roombook/internal/bookings/service"
	"roombook/pkg/auth"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const requestIDHeader = "X-Request-ID"

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// requestContext carries the request id through to published events.
func requestContext(r *http.Request) context.Context {
	return events.WithCorrelationID(r.Context(), r.Header.Get(requestIDHeader))
}

func identity(r *http.Request) *auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	booking, err := h.service.Create(requestContext(r), identity(r), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), identity(r), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	query := r.URL.Query()
	filter := model.BookingFilter{
		RoomID: query.Get("room_id"),
		Status: strings.ToLower(query.Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	bookings, total, err := h.service.List(r.Context(), identity(r), filter)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) GetByOwner(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetByOwner", err)
		return
	}

	bookings, total, err := h.service.ListByOwner(r.Context(), identity(r), ps.ByName("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, "GetByOwner", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetByOwner", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.BookingUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	booking, err := h.service.Update(requestContext(r), identity(r), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Cancel(requestContext(r), identity(r), ps.ByName("id")); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AvailabilityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	availability, err := h.service.CheckAvailability(r.Context(), &req)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

// AvailableRooms takes start_time and end_time plus the room filters
// min_capacity, location and equipment (repeated or comma separated).
func (h *BookingHandler) AvailableRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	minCapacity, err := httputil.QueryCount(query, "min_capacity")
	if err != nil {
		h.writeError(w, "AvailableRooms", err)
		return
	}

	rooms, err := h.service.FindAvailableRooms(r.Context(), &model.RoomSearchRequest{
		StartTime: query.Get("start_time"),
		EndTime:   query.Get("end_time"),
		Filter: model.RoomFilter{
			MinCapacity: minCapacity,
			Location:    strings.TrimSpace(query.Get("location")),
			Equipment:   httputil.QueryList(query, "equipment"),
		},
	})
	if err != nil {
		h.writeError(w, "AvailableRooms", err)
		return
	}

	if err := httputil.WriteSuccess(w, rooms); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableRooms", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.GetAll)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PUT("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
	router.GET("/api/v1/bookings/user/:user_id", h.GetByOwner)
	router.POST("/api/v1/bookings/check-availability", h.CheckAvailability)
	router.GET("/api/v1/bookings/available-rooms", h.AvailableRooms)
}
