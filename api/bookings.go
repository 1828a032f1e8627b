package api

import (
	"net/http"

	"github.com/VYBRANDMEDIA/nannygo/internal/bookings"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

type BookingHandler struct {
	bookings *bookings.Service
	profiles *profiles.Service
}

func NewBookingHandler(b *bookings.Service, p *profiles.Service) *BookingHandler {
	return &BookingHandler{bookings: b, profiles: p}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in bookings.CreateBookingInput
	if err := decodeBody(r, w, "create_booking", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.bookings.CreateBooking(r.Context(), me.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.bookings.ListMyBookings(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.bookings.GetBooking(r.Context(), id, me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *BookingHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, w, "booking_status", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	status, ok := models.ParseBookingStatus(in.Status)
	if !ok {
		writeErrorCode(w, domainerr.CodeInvalidInput, "unknown booking status")
		return
	}
	b, err := h.bookings.TransitionStatus(r.Context(), id, status, me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeBody(r, w, "review", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.bookings.CreateReview(r.Context(), me.ID, id, in.Rating, in.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
