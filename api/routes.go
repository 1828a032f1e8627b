package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VYBRANDMEDIA/nannygo/internal/auth"
	"github.com/VYBRANDMEDIA/nannygo/internal/bookings"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Version       string
	BuildTime     string
	CORSOrigins   []string
	MaxPhotoBytes int64

	DB       Pinger
	Users    repository.UserRepo
	Tokens   *auth.TokenManager
	Revoked  auth.Revocations
	Profiles *profiles.Service
	Bookings *bookings.Service
	Webhooks EventParser
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func SetupRoutes(d Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware(d.Metrics))
	r.Use(CORSMiddleware(d.CORSOrigins))

	systemHandler := NewSystemHandler(d.DB)
	authHandler := NewAuthHandler(d.Users, d.Tokens, d.Revoked)
	profileHandler := NewProfileHandler(d.Profiles, d.MaxPhotoBytes)
	bookingHandler := NewBookingHandler(d.Bookings, d.Profiles)
	webhookHandler := NewWebhookHandler(d.Webhooks, d.Profiles)

	// Preflight requests match no method-bound route; CORSMiddleware answers them.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(d.Version, d.BuildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/webhooks/stripe", webhookHandler.Stripe).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods(http.MethodPost)
	r.HandleFunc("/v1/nannies", profileHandler.ListNannies).Methods(http.MethodGet)
	r.HandleFunc("/v1/nannies/{id}", profileHandler.GetNanny).Methods(http.MethodGet)
	r.HandleFunc("/v1/nannies/{id}/calendar", profileHandler.GetCalendar).Methods(http.MethodGet)

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddleware(d.Tokens, d.Revoked))

	apiV1.HandleFunc("/auth/signout", authHandler.Signout).Methods(http.MethodPost)

	apiV1.HandleFunc("/profile", profileHandler.GetMyProfile).Methods(http.MethodGet)
	apiV1.HandleFunc("/profile", profileHandler.CreateProfile).Methods(http.MethodPost)
	apiV1.HandleFunc("/profile", profileHandler.UpdateProfile).Methods(http.MethodPatch)
	apiV1.HandleFunc("/profile/photo", profileHandler.UploadPhoto).Methods(http.MethodPost)
	apiV1.HandleFunc("/nanny-profile", profileHandler.UpdateNannyProfile).Methods(http.MethodPatch)
	apiV1.HandleFunc("/nanny-profile/contacts", profileHandler.ContactStats).Methods(http.MethodGet)
	apiV1.HandleFunc("/nannies/{id}/availability", profileHandler.SetAvailability).Methods(http.MethodPut)
	apiV1.HandleFunc("/nannies/{id}/calendar", profileHandler.SetCalendar).Methods(http.MethodPut)
	apiV1.HandleFunc("/nannies/{id}/contacts", profileHandler.LogContact).Methods(http.MethodPost)
	apiV1.HandleFunc("/subscription/checkout", profileHandler.StartCheckout).Methods(http.MethodPost)

	apiV1.HandleFunc("/favorites", profileHandler.ListFavorites).Methods(http.MethodGet)
	apiV1.HandleFunc("/favorites", profileHandler.AddFavorite).Methods(http.MethodPost)
	apiV1.HandleFunc("/favorites/{nannyId}", profileHandler.RemoveFavorite).Methods(http.MethodDelete)

	apiV1.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods(http.MethodPost)
	apiV1.HandleFunc("/bookings", bookingHandler.ListMyBookings).Methods(http.MethodGet)
	apiV1.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods(http.MethodGet)
	apiV1.HandleFunc("/bookings/{id}/status", bookingHandler.TransitionStatus).Methods(http.MethodPatch)
	apiV1.HandleFunc("/bookings/{id}/reviews", bookingHandler.CreateReview).Methods(http.MethodPost)

	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(profileHandler.RequireAdmin)
	admin.HandleFunc("/profiles", profileHandler.AdminListProfiles).Methods(http.MethodGet)
	admin.HandleFunc("/profiles/{id}/active", profileHandler.AdminSetActive).Methods(http.MethodPatch)

	return r
}
