package api

import (
	"net/http"
	"strings"

	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

// photoBodySlack covers the JSON envelope and a data URL prefix around the
// base64 payload.
const photoBodySlack = 4 << 10

type ProfileHandler struct {
	profiles      *profiles.Service
	maxPhotoBytes int64
}

func NewProfileHandler(svc *profiles.Service, maxPhotoBytes int64) *ProfileHandler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 5 << 20
	}
	return &ProfileHandler{profiles: svc, maxPhotoBytes: maxPhotoBytes}
}

// actor resolves the authenticated user to the profile acting for them.
func actor(r *http.Request, svc *profiles.Service) (*models.Profile, error) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		return nil, domainerr.New(domainerr.CodeUnauthorized, "not authenticated")
	}
	return svc.ResolveActor(r.Context(), id.ID)
}

func (h *ProfileHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeErrorCode(w, domainerr.CodeUnauthorized, "not authenticated")
		return
	}
	p, err := h.profiles.GetMyProfile(r.Context(), id.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeErrorCode(w, domainerr.CodeUnauthorized, "not authenticated")
		return
	}
	var in profiles.CreateProfileInput
	if err := decodeBody(r, w, "create_profile", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.profiles.CreateProfile(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in profiles.ProfileUpdate
	if err := decodeBody(r, w, "update_profile", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.profiles.UpdateProfile(r.Context(), me.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in profiles.PhotoUpload
	limit := h.maxPhotoBytes*4/3 + photoBodySlack
	if err := decodeBody(r, w, "photo", limit, &in); err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.profiles.UploadPhoto(r.Context(), me.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

func (h *ProfileHandler) UpdateNannyProfile(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in profiles.NannyProfileUpdate
	if err := decodeBody(r, w, "update_nanny_profile", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.profiles.UpdateNannyProfile(r.Context(), me.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *ProfileHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nannyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		IsAvailable bool `json:"is_available"`
	}
	if err := decodeBody(r, w, "availability", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.SetAvailability(r.Context(), me.ID, nannyID, in.IsAvailable); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_available": in.IsAvailable})
}

// GetCalendar is public: the nanny's available dates from today on.
func (h *ProfileHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	nannyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := h.profiles.ListAvailableDates(r.Context(), nannyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

func (h *ProfileHandler) SetCalendar(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nannyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		Dates []string `json:"dates"`
	}
	if err := decodeBody(r, w, "calendar", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	dates, err := h.profiles.SetAvailableDates(r.Context(), me.ID, nannyID, in.Dates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"dates": dates})
}

// LogContact answers 201 for the first contact of the day and 200 for
// repeats, which are not stored.
func (h *ProfileHandler) LogContact(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nannyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		ContactType string `json:"contact_type"`
	}
	if err := decodeBody(r, w, "contact", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.profiles.LogContact(r.Context(), me.ID, nannyID, in.ContactType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"logged": created})
}

func (h *ProfileHandler) ContactStats(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.profiles.ContactStats(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListNannies is the public search directory.
func (h *ProfileHandler) ListNannies(w http.ResponseWriter, r *http.Request) {
	list, err := h.profiles.ListVisibleNannies(r.Context(), profiles.NannyFilter{City: r.URL.Query().Get("city")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProfileHandler) GetNanny(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.profiles.GetNanny(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// StartCheckout opens a subscription checkout. The return origin comes from
// the body, else the Origin header, else the configured public URL.
func (h *ProfileHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeErrorCode(w, domainerr.CodeUnauthorized, "not authenticated")
		return
	}
	var in struct {
		Origin string `json:"origin"`
	}
	if r.ContentLength > 0 {
		if err := decodeBody(r, w, "checkout", 0, &in); err != nil {
			writeError(w, r, err)
			return
		}
	}
	origin := strings.TrimSpace(in.Origin)
	if origin == "" {
		origin = r.Header.Get("Origin")
	}
	url, err := h.profiles.StartCheckout(r.Context(), id, origin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *ProfileHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.profiles.ListFavorites(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProfileHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		NannyID int64 `json:"nanny_id"`
	}
	if err := decodeBody(r, w, "favorite", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.AddFavorite(r.Context(), me.ID, in.NannyID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"nanny_id": in.NannyID})
}

func (h *ProfileHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	nannyID, err := pathID(r, "nannyId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.RemoveFavorite(r.Context(), me.ID, nannyID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequireAdmin guards the admin routes; it runs after JWTAuthMiddleware.
func (h *ProfileHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		me, err := actor(r, h.profiles)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ok, err := h.profiles.IsAdmin(r.Context(), me.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeErrorCode(w, domainerr.CodeForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ProfileHandler) AdminListProfiles(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.profiles.ListProfiles(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProfileHandler) AdminSetActive(w http.ResponseWriter, r *http.Request) {
	me, err := actor(r, h.profiles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in struct {
		IsActive bool `json:"is_active"`
	}
	if err := decodeBody(r, w, "set_active", 0, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.SetProfileActive(r.Context(), me.ID, target, in.IsActive); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": target, "is_active": in.IsActive})
}
