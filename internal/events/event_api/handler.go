package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-events/internal/events/service"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	EventService *service.EventService
	Logger       *logger.Logger
}

func NewHandler(eventService *service.EventService, log *logger.Logger) *Handler {
	return &Handler{
		EventService: eventService,
		Logger:       log,
	}
}

// RegisterRoutes registers the event routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/create-event", h.CreateEvent)
	r.Get("/get-events", h.GetEventDetails)
	r.Post("/register-event", h.RegisterEvent)
	r.Delete("/cancel-event", h.CancelRegistration)
	r.Get("/all-upcoming-events", h.UpcomingEvents)
	r.Get("/stats/{eventId}", h.EventStats)
	r.Get("/pass/{eventId}", h.RegistrationPass)
}

type createEventResponse struct {
	utils.APIResponse
	NewEventID string `json:"newEventId,omitempty"`
}

type eventsResponse struct {
	utils.APIResponse
	Events []models.EventWithRegistrants `json:"Events"`
}

type upcomingEventsResponse struct {
	utils.APIResponse
	Events []models.Event `json:"events"`
}

type statsResponse struct {
	utils.APIResponse
	Stats *models.EventStats `json:"stats,omitempty"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateEvent: failed to decode request body: %v", err))
		h.writeError(w, http.StatusBadRequest, "All the details are required", "")
		return
	}

	id, err := h.EventService.CreateEvent(r.Context(), req)
	if err != nil {
		status, message, detail := createEventError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("CreateEvent: %v", err))
		}
		h.writeError(w, status, message, detail)
		return
	}

	h.writeJSON(w, http.StatusCreated, createEventResponse{
		APIResponse: utils.SuccessResponse("Event created"),
		NewEventID:  id,
	})
}

func (h *Handler) GetEventDetails(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListEventsWithRegistrants(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetEventDetails: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Error in fetching Events", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, eventsResponse{
		APIResponse: utils.SuccessResponse("Events fetched Successfully!"),
		Events:      events,
	})
}

func (h *Handler) RegisterEvent(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("RegisterEvent: failed to decode request body: %v", err))
		h.writeError(w, http.StatusBadRequest, "All fields are required", "")
		return
	}

	if err := h.EventService.Register(r.Context(), req); err != nil {
		status, message, detail := registerError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("RegisterEvent: %v", err))
		}
		h.writeError(w, status, message, detail)
		return
	}

	h.writeJSON(w, http.StatusCreated, utils.SuccessResponse("User registered for Event"))
}

func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	var req models.CancellationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CancelRegistration: failed to decode request body: %v", err))
		h.writeError(w, http.StatusBadRequest, "Email and eventId are required", "")
		return
	}

	if err := h.EventService.CancelRegistration(r.Context(), req); err != nil {
		status, message, detail := lookupError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("CancelRegistration: %v", err))
		}
		h.writeError(w, status, message, detail)
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Registration canceled"))
}

func (h *Handler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.UpcomingEvents(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpcomingEvents: %v", err))
		h.writeError(w, http.StatusInternalServerError, "Server error", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, upcomingEventsResponse{
		APIResponse: utils.SuccessResponse("Upcoming events fetched"),
		Events:      events,
	})
}

func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	stats, err := h.EventService.Stats(r.Context(), eventID)
	if err != nil {
		status, message, detail := lookupError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("EventStats: eventId=%s: %v", eventID, err))
		}
		h.writeError(w, status, message, detail)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse{
		APIResponse: utils.SuccessResponse("Event stats fetched"),
		Stats:       stats,
	})
}

func (h *Handler) RegistrationPass(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	email := r.URL.Query().Get("email")

	png, err := h.EventService.RegistrationPass(r.Context(), eventID, email)
	if err != nil {
		status, message, detail := lookupError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("API", fmt.Sprintf("RegistrationPass: eventId=%s: %v", eventID, err))
		}
		h.writeError(w, status, message, detail)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=pass-%s.png", eventID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("RegistrationPass: failed to write image: %v", err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := utils.WriteJSON(w, status, data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	h.writeJSON(w, status, utils.ErrorResponse(message, detail))
}

// createEventError hides store errors from the caller.
func createEventError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrMissingEventFields):
		return http.StatusBadRequest, "All the details are required", ""
	case errors.Is(err, service.ErrInvalidCapacity):
		return http.StatusBadRequest, "Capacity must be between 1 and 1000", ""
	case errors.Is(err, service.ErrInvalidDateTime):
		return http.StatusBadRequest, "Invalid dateTime format", ""
	case errors.Is(err, service.ErrEventExists):
		return http.StatusBadRequest, "Event already exists!", ""
	}
	return http.StatusInternalServerError, "Internal server error", ""
}

func registerError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrMissingRegistrationFields):
		return http.StatusBadRequest, "All fields are required", ""
	case errors.Is(err, service.ErrRegistrationInProgress):
		return http.StatusConflict, "Registration already in progress", ""
	case errors.Is(err, service.ErrEventNotFound):
		return http.StatusBadRequest, "Event not found", ""
	case errors.Is(err, service.ErrPastEvent):
		return http.StatusBadRequest, "Cannot register for past events", ""
	case errors.Is(err, service.ErrEventFull):
		return http.StatusBadRequest, "Event is already full", ""
	case errors.Is(err, service.ErrAlreadyRegistered):
		return http.StatusBadRequest, "User already registered for this event", ""
	}
	return http.StatusInternalServerError, "Error while registering for event", err.Error()
}

// lookupError covers cancel, stats and pass, which share their not-found
// responses.
func lookupError(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrMissingCancellationFields):
		return http.StatusBadRequest, "Email and eventId are required", ""
	case errors.Is(err, service.ErrMissingEmail):
		return http.StatusBadRequest, "Email is required", ""
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found", ""
	case errors.Is(err, service.ErrEventNotFound):
		return http.StatusNotFound, "Event not found", ""
	case errors.Is(err, service.ErrNotRegistered):
		return http.StatusBadRequest, "User not registered for this event", ""
	}
	return http.StatusInternalServerError, "Server error", err.Error()
}
