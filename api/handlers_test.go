package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/VYBRANDMEDIA/nannygo/api"
	"github.com/VYBRANDMEDIA/nannygo/internal/auth"
	"github.com/VYBRANDMEDIA/nannygo/internal/bookings"
	"github.com/VYBRANDMEDIA/nannygo/internal/metrics"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository/mock"
)

// fakeParser accepts any body that decodes into a SubscriptionEvent when the
// signature header is "valid".
type fakeParser struct{}

func (fakeParser) Parse(payload []byte, signature string) (profiles.SubscriptionEvent, error) {
	if signature != "valid" {
		return profiles.SubscriptionEvent{}, domainerr.New(domainerr.CodeUnauthorized, "invalid webhook signature")
	}
	var ev profiles.SubscriptionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, domainerr.Wrap(err, domainerr.CodeInvalidInput, "malformed webhook payload")
	}
	return ev, nil
}

type server struct {
	t     *testing.T
	srv   *httptest.Server
	store *mock.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api.SetLogger(logger)

	store := mock.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	tokens := auth.NewTokenManager("handler-secret", time.Hour)
	profileSvc := profiles.NewService(store, logger, profiles.Options{
		AdminEmails: []string{"admin@example.test"},
		Metrics:     m,
	})

	router := api.SetupRoutes(api.Deps{
		Version:     "test",
		BuildTime:   "now",
		CORSOrigins: []string{"*"},
		Users:       store,
		Tokens:      tokens,
		Revoked:     auth.NewMemoryRevocations(),
		Profiles:    profileSvc,
		Bookings:    bookings.NewService(store, logger, m, nil),
		Webhooks:    fakeParser{},
		Metrics:     m,
		Gatherer:    reg,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{t: t, srv: srv, store: store}
}

func (s *server) do(method, path, token string, body any) (int, []byte) {
	s.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := s.srv.Client().Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func (s *server) expect(method, path, token string, body any, want int) []byte {
	s.t.Helper()
	got, data := s.do(method, path, token, body)
	if got != want {
		s.t.Fatalf("%s %s: want %d got %d body=%s", method, path, want, got, string(data))
	}
	return data
}

// onboard signs a user up and creates their profile, returning the token
// and profile id.
func (s *server) onboard(email string, profile map[string]any) (string, int64) {
	s.t.Helper()
	data := s.expect(http.MethodPost, "/v1/auth/signup", "", map[string]string{"email": email, "password": "password1"}, http.StatusCreated)
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &ar); err != nil {
		s.t.Fatalf("decode signup: %v", err)
	}
	data = s.expect(http.MethodPost, "/v1/profile", ar.Token, profile, http.StatusCreated)
	var mp profiles.MyProfile
	if err := json.Unmarshal(data, &mp); err != nil {
		s.t.Fatalf("decode profile: %v", err)
	}
	return ar.Token, mp.Profile.ID
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, string(data))
	}
	return v
}

func TestRoutes_Open(t *testing.T) {
	s := newServer(t)

	s.expect(http.MethodGet, "/health", "", nil, http.StatusOK)
	s.expect(http.MethodGet, "/version", "", nil, http.StatusOK)
	s.expect(http.MethodGet, "/metrics", "", nil, http.StatusOK)
	list := s.expect(http.MethodGet, "/v1/nannies", "", nil, http.StatusOK)
	if strings.TrimSpace(string(list)) != "[]" {
		t.Fatalf("empty directory should be [], got %s", list)
	}
	s.expect(http.MethodGet, "/v1/nannies/abc", "", nil, http.StatusBadRequest)
	s.expect(http.MethodGet, "/v1/nannies/999", "", nil, http.StatusNotFound)
	s.expect(http.MethodGet, "/v1/nannies/999/calendar", "", nil, http.StatusNotFound)

	got, _ := s.do(http.MethodOptions, "/v1/bookings", "", nil)
	if got != http.StatusNoContent {
		t.Fatalf("preflight: want 204 got %d", got)
	}
}

func TestRoutes_RequireToken(t *testing.T) {
	s := newServer(t)
	for _, c := range []struct{ method, path string }{
		{http.MethodGet, "/v1/profile"},
		{http.MethodPatch, "/v1/nanny-profile"},
		{http.MethodPost, "/v1/bookings"},
		{http.MethodGet, "/v1/favorites"},
		{http.MethodGet, "/v1/admin/profiles"},
		{http.MethodPut, "/v1/nannies/1/calendar"},
		{http.MethodPost, "/v1/nannies/1/contacts"},
		{http.MethodGet, "/v1/nanny-profile/contacts"},
		{http.MethodPost, "/v1/auth/signout"},
	} {
		t.Run(c.method+" "+c.path, func(t *testing.T) {
			got, data := s.do(c.method, c.path, "", nil)
			if got != http.StatusUnauthorized {
				t.Fatalf("want 401 got %d", got)
			}
			er := decode[map[string]string](t, data)
			if er["error"] != string(domainerr.CodeUnauthorized) {
				t.Fatalf("unexpected error body %s", data)
			}
		})
	}
}

func TestProfileRoutes(t *testing.T) {
	s := newServer(t)

	_, nannyID := s.onboard("nanny@example.test", map[string]any{
		"role": "nanny", "full_name": "Sanne", "city": "Utrecht", "hourly_rate": 1500, "tags": []string{"dutch", "Dutch", " first aid "},
	})
	nannyTok := s.login("nanny@example.test")

	// Onboarding twice is a conflict.
	s.expect(http.MethodPost, "/v1/profile", nannyTok, map[string]any{"role": "nanny", "full_name": "Again"}, http.StatusConflict)

	me := decode[profiles.MyProfile](t, s.expect(http.MethodGet, "/v1/profile", nannyTok, nil, http.StatusOK))
	if me.Nanny == nil || me.Nanny.Subscription.Status != models.SubscriptionInactive {
		t.Fatalf("new nanny should start inactive: %+v", me.Nanny)
	}
	if len(me.Nanny.Tags) != 2 {
		t.Fatalf("tags should be cleaned, got %v", me.Nanny.Tags)
	}

	// Subscription state cannot be written through the profile API.
	s.expect(http.MethodPatch, "/v1/nanny-profile", nannyTok, map[string]any{"subscription_status": "active"}, http.StatusBadRequest)
	s.expect(http.MethodPatch, "/v1/nanny-profile", nannyTok, map[string]any{"bio": "Ervaren oppas", "hourly_rate": 1800}, http.StatusOK)
	s.expect(http.MethodPatch, "/v1/profile", nannyTok, map[string]any{"full_name": "Sanne B", "city": "Utrecht"}, http.StatusOK)
	s.expect(http.MethodPatch, "/v1/profile", nannyTok, map[string]any{"full_name": "Sanne", "youtube_video_url": "http://exa mple.com"}, http.StatusBadRequest)

	// Invisible until the subscription grants access.
	list := decode[[]models.NannyListing](t, s.expect(http.MethodGet, "/v1/nannies?city=utrecht", "", nil, http.StatusOK))
	if len(list) != 0 {
		t.Fatalf("inactive nanny listed: %+v", list)
	}
	ev := profiles.SubscriptionEvent{
		ID: "evt_1", Type: profiles.EventCheckoutCompleted, CreatedAt: time.Now().UTC(),
		Mode: "subscription", CustomerRef: "cus_1", SubscriptionRef: "sub_1", ProfileID: nannyID,
	}
	s.expectWebhook(ev, "valid", http.StatusOK)
	s.expectWebhook(ev, "forged", http.StatusUnauthorized)

	list = decode[[]models.NannyListing](t, s.expect(http.MethodGet, "/v1/nannies?city=%20UTRECHT%20", "", nil, http.StatusOK))
	if len(list) != 1 || list[0].Profile.ID != nannyID {
		t.Fatalf("trial nanny should be listed: %+v", list)
	}
	if list[0].Nanny.HourlyRate != 1800 {
		t.Fatalf("want updated rate, got %d", list[0].Nanny.HourlyRate)
	}
	detail := decode[profiles.NannyDetail](t, s.expect(http.MethodGet, fmt.Sprintf("/v1/nannies/%d", nannyID), "", nil, http.StatusOK))
	if detail.Reviews == nil {
		t.Fatalf("reviews should be an empty list")
	}

	// Availability belongs to the owner.
	parentTok, parentID := s.onboard("parent@example.test", map[string]any{"role": "parent", "full_name": "Pim"})
	availPath := fmt.Sprintf("/v1/nannies/%d/availability", nannyID)
	s.expect(http.MethodPut, availPath, parentTok, map[string]any{"is_available": false}, http.StatusForbidden)
	s.expect(http.MethodPut, availPath, nannyTok, map[string]any{"is_available": false}, http.StatusOK)
	list = decode[[]models.NannyListing](t, s.expect(http.MethodGet, "/v1/nannies", "", nil, http.StatusOK))
	if len(list) != 0 {
		t.Fatalf("unavailable nanny listed")
	}
	s.expect(http.MethodPut, availPath, nannyTok, map[string]any{"is_available": true}, http.StatusOK)

	// Favorites are for parents.
	s.expect(http.MethodPost, "/v1/favorites", nannyTok, map[string]any{"nanny_id": nannyID}, http.StatusForbidden)
	s.expect(http.MethodPost, "/v1/favorites", parentTok, map[string]any{"nanny_id": nannyID}, http.StatusCreated)
	s.expect(http.MethodPost, "/v1/favorites", parentTok, map[string]any{"nanny_id": nannyID}, http.StatusCreated)
	favs := decode[[]models.NannyListing](t, s.expect(http.MethodGet, "/v1/favorites", parentTok, nil, http.StatusOK))
	if len(favs) != 1 {
		t.Fatalf("want one favorite, got %d", len(favs))
	}
	s.expect(http.MethodDelete, fmt.Sprintf("/v1/favorites/%d", nannyID), parentTok, nil, http.StatusNoContent)

	// Checkout without a configured provider.
	s.expect(http.MethodPost, "/v1/subscription/checkout", parentTok, nil, http.StatusForbidden)
	s.expect(http.MethodPost, "/v1/subscription/checkout", nannyTok, map[string]any{"origin": "https://app.test"}, http.StatusConflict)

	// Admin surface.
	s.expect(http.MethodGet, "/v1/admin/profiles", parentTok, nil, http.StatusForbidden)
	adminTok, adminID := s.onboard("admin@example.test", map[string]any{"role": "admin", "full_name": "Ada"})
	all := decode[[]models.Profile](t, s.expect(http.MethodGet, "/v1/admin/profiles", adminTok, nil, http.StatusOK))
	if len(all) != 3 {
		t.Fatalf("want 3 profiles, got %d", len(all))
	}
	s.expect(http.MethodPatch, fmt.Sprintf("/v1/admin/profiles/%d/active", adminID), adminTok, map[string]any{"is_active": false}, http.StatusBadRequest)
	s.expect(http.MethodPatch, fmt.Sprintf("/v1/admin/profiles/%d/active", parentID), adminTok, map[string]any{"is_active": false}, http.StatusOK)
	s.expect(http.MethodGet, "/v1/favorites", parentTok, nil, http.StatusForbidden)

	// Anyone else trying to onboard as admin is refused.
	tok := s.signup("mallory@example.test")
	s.expect(http.MethodPost, "/v1/profile", tok, map[string]any{"role": "admin", "full_name": "M"}, http.StatusForbidden)
}

func TestCalendarAndContactRoutes(t *testing.T) {
	s := newServer(t)
	nannyTok, nannyID := s.onboard("nanny@example.test", map[string]any{"role": "nanny", "full_name": "Sanne", "city": "Utrecht"})
	parentTok, _ := s.onboard("parent@example.test", map[string]any{"role": "parent", "full_name": "Pim"})

	calendar := fmt.Sprintf("/v1/nannies/%d/calendar", nannyID)
	s.expect(http.MethodPut, calendar, parentTok, map[string]any{"dates": []string{"2099-01-02"}}, http.StatusForbidden)
	s.expect(http.MethodPut, calendar, nannyTok, map[string]any{"dates": []string{"02-01-2099"}}, http.StatusBadRequest)
	s.expect(http.MethodPut, calendar, nannyTok, map[string]any{"dates": []string{"2099-02-30"}}, http.StatusBadRequest)
	s.expect(http.MethodPut, calendar, nannyTok, map[string]any{"dates": []string{"2099-01-05", "2099-01-02", "2099-01-05", "2000-01-01"}}, http.StatusOK)

	got := decode[map[string][]string](t, s.expect(http.MethodGet, calendar, "", nil, http.StatusOK))
	if want := []string{"2099-01-02", "2099-01-05"}; fmt.Sprint(got["dates"]) != fmt.Sprint(want) {
		t.Fatalf("calendar: want %v got %v", want, got["dates"])
	}

	contacts := fmt.Sprintf("/v1/nannies/%d/contacts", nannyID)
	s.expect(http.MethodPost, contacts, parentTok, map[string]any{"contact_type": "pigeon"}, http.StatusBadRequest)
	s.expect(http.MethodPost, contacts, nannyTok, map[string]any{"contact_type": "call"}, http.StatusForbidden)
	s.expect(http.MethodPost, contacts, parentTok, map[string]any{"contact_type": "call"}, http.StatusCreated)
	s.expect(http.MethodPost, contacts, parentTok, map[string]any{"contact_type": "whatsapp"}, http.StatusOK)

	s.expect(http.MethodGet, "/v1/nanny-profile/contacts", parentTok, nil, http.StatusForbidden)
	stats := decode[profiles.ContactStats](t, s.expect(http.MethodGet, "/v1/nanny-profile/contacts", nannyTok, nil, http.StatusOK))
	if stats.Count != 1 {
		t.Fatalf("want one contact request, got %d", stats.Count)
	}
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	s := newServer(t)
	parentTok, parentID := s.onboard("parent@example.test", map[string]any{"role": "parent", "full_name": "Pim"})
	nannyTok, _ := s.onboard("nanny@example.test", map[string]any{"role": "nanny", "full_name": "Sanne"})
	noProfileTok := s.signup("fresh@example.test")

	active := fmt.Sprintf("/v1/admin/profiles/%d/active", parentID)
	for _, c := range []struct {
		name  string
		token string
		want  int
	}{
		{"parent", parentTok, http.StatusForbidden},
		{"nanny", nannyTok, http.StatusForbidden},
		{"no profile yet", noProfileTok, http.StatusNotFound},
	} {
		t.Run(c.name, func(t *testing.T) {
			s.expect(http.MethodGet, "/v1/admin/profiles", c.token, nil, c.want)
			// rejected before the body is read
			s.expect(http.MethodPatch, active, c.token, "not json", c.want)
		})
	}

	adminTok, _ := s.onboard("admin@example.test", map[string]any{"role": "admin", "full_name": "Ada"})
	s.expect(http.MethodPatch, active, adminTok, "not json", http.StatusBadRequest)
	s.store.Err = errors.New("connection refused")
	s.expect(http.MethodGet, "/v1/admin/profiles", adminTok, nil, http.StatusServiceUnavailable)
}

func TestBookingRoutes(t *testing.T) {
	s := newServer(t)
	nannyTok, nannyID := s.onboard("nanny@example.test", map[string]any{"role": "nanny", "full_name": "Sanne", "hourly_rate": 1500})
	parentTok, _ := s.onboard("parent@example.test", map[string]any{"role": "parent", "full_name": "Pim"})
	strangerTok, _ := s.onboard("other@example.test", map[string]any{"role": "parent", "full_name": "Olga"})

	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	req := map[string]any{
		"nanny_id":   nannyID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(3 * time.Hour).Format(time.RFC3339),
		"address":    "Oudegracht 1, Utrecht",
	}

	s.expect(http.MethodPost, "/v1/bookings", nannyTok, req, http.StatusForbidden)
	bad := map[string]any{"nanny_id": nannyID, "start_time": "tomorrow", "end_time": "later", "address": "x"}
	s.expect(http.MethodPost, "/v1/bookings", parentTok, bad, http.StatusBadRequest)
	backwards := map[string]any{
		"nanny_id":   nannyID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Format(time.RFC3339),
		"address":    "x",
	}
	s.expect(http.MethodPost, "/v1/bookings", parentTok, backwards, http.StatusBadRequest)

	b := decode[models.Booking](t, s.expect(http.MethodPost, "/v1/bookings", parentTok, req, http.StatusCreated))
	if b.Status != models.BookingPending || b.TotalAmount != 4500 {
		t.Fatalf("unexpected booking %+v", b)
	}

	path := fmt.Sprintf("/v1/bookings/%d", b.ID)
	s.expect(http.MethodGet, path, strangerTok, nil, http.StatusForbidden)
	s.expect(http.MethodGet, path, nannyTok, nil, http.StatusOK)

	status := path + "/status"
	s.expect(http.MethodPatch, status, parentTok, map[string]string{"status": "accepted"}, http.StatusForbidden)
	s.expect(http.MethodPatch, status, nannyTok, map[string]string{"status": "paid"}, http.StatusBadRequest)
	s.expect(http.MethodPatch, status, nannyTok, map[string]string{"status": "completed"}, http.StatusConflict)
	s.expect(http.MethodPatch, status, nannyTok, map[string]string{"status": "accepted"}, http.StatusOK)
	s.expect(http.MethodPost, path+"/reviews", parentTok, map[string]any{"rating": 5}, http.StatusBadRequest)
	s.expect(http.MethodPatch, status, parentTok, map[string]string{"status": "completed"}, http.StatusOK)

	s.expect(http.MethodPost, path+"/reviews", parentTok, map[string]any{"rating": 6}, http.StatusBadRequest)
	s.expect(http.MethodPost, path+"/reviews", parentTok, map[string]any{"rating": 4, "comment": "Fijn"}, http.StatusCreated)
	s.expect(http.MethodPost, path+"/reviews", parentTok, map[string]any{"rating": 4}, http.StatusConflict)

	mine := decode[[]models.BookingSummary](t, s.expect(http.MethodGet, "/v1/bookings", parentTok, nil, http.StatusOK))
	if len(mine) != 1 || mine[0].Counterpart.ID != nannyID {
		t.Fatalf("unexpected bookings %+v", mine)
	}
	detail := decode[profiles.NannyDetail](t, s.expect(http.MethodGet, fmt.Sprintf("/v1/nannies/%d", nannyID), "", nil, http.StatusOK))
	if detail.Profile.AverageRating != 400 || len(detail.Reviews) != 1 {
		t.Fatalf("rating aggregate not refreshed: %+v", detail.Profile)
	}
}

func TestRoutes_DatastoreDown(t *testing.T) {
	s := newServer(t)
	tok, _ := s.onboard("parent@example.test", map[string]any{"role": "parent", "full_name": "Pim"})
	s.store.Err = errors.New("connection refused")

	got, data := s.do(http.MethodGet, "/v1/bookings", tok, nil)
	if got != http.StatusServiceUnavailable {
		t.Fatalf("want 503 got %d", got)
	}
	if er := decode[map[string]string](t, data); er["error"] != string(domainerr.CodeUnavailable) {
		t.Fatalf("unexpected body %s", data)
	}
}

func (s *server) signup(email string) string {
	s.t.Helper()
	data := s.expect(http.MethodPost, "/v1/auth/signup", "", map[string]string{"email": email, "password": "password1"}, http.StatusCreated)
	return decode[struct {
		Token string `json:"token"`
	}](s.t, data).Token
}

func (s *server) login(email string) string {
	s.t.Helper()
	data := s.expect(http.MethodPost, "/v1/auth/signin", "", map[string]string{"email": email, "password": "password1"}, http.StatusOK)
	return decode[struct {
		Token string `json:"token"`
	}](s.t, data).Token
}

func (s *server) expectWebhook(ev profiles.SubscriptionEvent, sig string, want int) {
	s.t.Helper()
	raw, err := json.Marshal(ev)
	if err != nil {
		s.t.Fatalf("marshal event: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/webhooks/stripe", bytes.NewReader(raw))
	if err != nil {
		s.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Stripe-Signature", sig)
	res, err := s.srv.Client().Do(req)
	if err != nil {
		s.t.Fatalf("webhook: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		data, _ := io.ReadAll(res.Body)
		s.t.Fatalf("webhook: want %d got %d body=%s", want, res.StatusCode, data)
	}
}
