package profiles_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VYBRANDMEDIA/nannygo/internal/events"
	"github.com/VYBRANDMEDIA/nannygo/internal/profiles"
	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository/mock"
)

type queuedJob struct {
	typ     string
	payload events.Notification
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, typ string, payload any, priority, maxAttempts int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	n, _ := payload.(events.Notification)
	q.jobs = append(q.jobs, queuedJob{typ: typ, payload: n})
	return int64(len(q.jobs)), nil
}

func (q *fakeQueue) all() []queuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedJob(nil), q.jobs...)
}

type fakeObjects struct {
	keys []string
	err  error
}

func (o *fakeObjects) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	o.keys = append(o.keys, key)
	return "https://cdn.example.test/" + key, nil
}

type fakeCheckout struct {
	req profiles.CheckoutRequest
	err error
}

func (c *fakeCheckout) CreateCheckout(ctx context.Context, req profiles.CheckoutRequest) (string, error) {
	c.req = req
	if c.err != nil {
		return "", c.err
	}
	return "https://checkout.example.test/session", nil
}

type fixture struct {
	now      time.Time // zero means the wall clock
	svc      *profiles.Service
	store    *mock.Store
	queue    *fakeQueue
	objects  *fakeObjects
	checkout *fakeCheckout
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    mock.NewStore(),
		queue:    &fakeQueue{},
		objects:  &fakeObjects{},
		checkout: &fakeCheckout{},
	}
	f.svc = profiles.NewService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), profiles.Options{
		AdminEmails:   []string{"Admin@NannyGo.nl"},
		MaxPhotoBytes: 1024,
		PublicURL:     "https://nannygo.example.test/",
		Jobs:          f.queue,
		Objects:       f.objects,
		Checkout:      f.checkout,
		Now: func() time.Time {
			if f.now.IsZero() {
				return time.Now()
			}
			return f.now
		},
	})
	return f
}

var nextUserID int64 = 1000

func (f *fixture) onboard(t *testing.T, role, city string) models.Profile {
	t.Helper()
	nextUserID++
	id := models.Identity{ID: nextUserID, Email: "user@example.test"}
	out, err := f.svc.CreateProfile(context.Background(), id, profiles.CreateProfileInput{
		Role:       role,
		FullName:   "Test " + role,
		City:       city,
		HourlyRate: 1500,
	})
	require.NoError(t, err)
	return out.Profile
}

func assertCode(t *testing.T, err error, code domainerr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, domainerr.CodeOf(err), "error: %v", err)
}

func TestCreateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nanny, err := f.svc.CreateProfile(ctx, models.Identity{ID: 1, Email: "n@example.test"}, profiles.CreateProfileInput{
		Role:     "Nanny",
		FullName: "  Sanne  ",
		City:     " Utrecht ",
		Tags:     []string{"first aid", " ", "First Aid", "dutch"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleNanny, nanny.Profile.Role)
	assert.Equal(t, "Sanne", nanny.Profile.FullName)
	assert.Equal(t, "Utrecht", nanny.Profile.City)
	assert.True(t, nanny.Profile.IsActive)
	require.NotNil(t, nanny.Nanny)
	assert.Equal(t, models.SubscriptionInactive, nanny.Nanny.Subscription.Status)
	assert.True(t, nanny.Nanny.IsAvailable)
	assert.Equal(t, []string{"first aid", "dutch"}, nanny.Nanny.Tags)

	parent, err := f.svc.CreateProfile(ctx, models.Identity{ID: 2}, profiles.CreateProfileInput{Role: "parent", FullName: "Piet"})
	require.NoError(t, err)
	assert.Nil(t, parent.Nanny)

	_, err = f.svc.CreateProfile(ctx, models.Identity{ID: 2}, profiles.CreateProfileInput{Role: "parent", FullName: "Piet"})
	assertCode(t, err, domainerr.CodeConflict)

	tests := []struct {
		name string
		id   models.Identity
		in   profiles.CreateProfileInput
		code domainerr.Code
	}{
		{"unknown role", models.Identity{ID: 10}, profiles.CreateProfileInput{Role: "butler", FullName: "x"}, domainerr.CodeInvalidInput},
		{"missing name", models.Identity{ID: 11}, profiles.CreateProfileInput{Role: "parent", FullName: " "}, domainerr.CodeInvalidInput},
		{"admin not allowed", models.Identity{ID: 12, Email: "someone@example.test"}, profiles.CreateProfileInput{Role: "admin", FullName: "x"}, domainerr.CodeForbidden},
		{"negative rate", models.Identity{ID: 13}, profiles.CreateProfileInput{Role: "nanny", FullName: "x", HourlyRate: -1}, domainerr.CodeInvalidInput},
		{"bad video url", models.Identity{ID: 14}, profiles.CreateProfileInput{Role: "nanny", FullName: "x", YouTubeVideoURL: "not a url"}, domainerr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateProfile(ctx, tt.id, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	admin, err := f.svc.CreateProfile(ctx, models.Identity{ID: 20, Email: "admin@nannygo.nl"}, profiles.CreateProfileInput{Role: "admin", FullName: "Ops"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Profile.Role)
}

func TestGetMyProfileAndResolveActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetMyProfile(ctx, 99)
	assertCode(t, err, domainerr.CodeNotFound)
	_, err = f.svc.ResolveActor(ctx, 99)
	assertCode(t, err, domainerr.CodeNotFound)

	p := f.onboard(t, "nanny", "Utrecht")
	me, err := f.svc.GetMyProfile(ctx, p.UserID)
	require.NoError(t, err)
	require.NotNil(t, me.Nanny)
	assert.Equal(t, p.ID, me.Nanny.ProfileID)

	actor, err := f.svc.ResolveActor(ctx, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, actor.ID)

	require.NoError(t, f.store.SetProfileActive(ctx, p.ID, false))
	_, err = f.svc.ResolveActor(ctx, p.UserID)
	assertCode(t, err, domainerr.CodeForbidden)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.onboard(t, "parent", "Utrecht")

	out, err := f.svc.UpdateProfile(ctx, p.ID, profiles.ProfileUpdate{FullName: "New Name", City: "Delft", YouTubeVideoURL: "https://youtu.be/abc"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", out.Profile.FullName)
	assert.Equal(t, "Delft", out.Profile.City)

	_, err = f.svc.UpdateProfile(ctx, p.ID, profiles.ProfileUpdate{FullName: ""})
	assertCode(t, err, domainerr.CodeInvalidInput)
	_, err = f.svc.UpdateProfile(ctx, 424242, profiles.ProfileUpdate{FullName: "x"})
	assertCode(t, err, domainerr.CodeNotFound)
}

func TestUpdateNannyProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	bio := "Ervaren oppas"
	rate := int64(1850)
	tags := []string{"EHBO"}
	off := false
	n, err := f.svc.UpdateNannyProfile(ctx, nanny.ID, profiles.NannyProfileUpdate{Bio: &bio, HourlyRate: &rate, Tags: &tags, IsAvailable: &off})
	require.NoError(t, err)
	assert.Equal(t, bio, n.Bio)
	assert.Equal(t, rate, n.HourlyRate)
	assert.Equal(t, []string{"EHBO"}, n.Tags)
	assert.False(t, n.IsAvailable)
	assert.Equal(t, models.SubscriptionInactive, n.Subscription.Status)

	negative := -1
	_, err = f.svc.UpdateNannyProfile(ctx, nanny.ID, profiles.NannyProfileUpdate{MaxChildren: &negative})
	assertCode(t, err, domainerr.CodeInvalidInput)

	_, err = f.svc.UpdateNannyProfile(ctx, parent.ID, profiles.NannyProfileUpdate{Bio: &bio})
	assertCode(t, err, domainerr.CodeNotFound)
}

func TestGetNanny(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	d, err := f.svc.GetNanny(ctx, nanny.ID)
	require.NoError(t, err)
	assert.Equal(t, nanny.ID, d.Profile.ID)
	assert.NotNil(t, d.Reviews)

	_, err = f.svc.GetNanny(ctx, parent.ID)
	assertCode(t, err, domainerr.CodeNotFound)
	_, err = f.svc.GetNanny(ctx, 777)
	assertCode(t, err, domainerr.CodeNotFound)
}

func TestSetAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	other := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	assertCode(t, f.svc.SetAvailability(ctx, parent.ID, nanny.ID, false), domainerr.CodeForbidden)
	assertCode(t, f.svc.SetAvailability(ctx, other.ID, nanny.ID, false), domainerr.CodeForbidden)
	assertCode(t, f.svc.SetAvailability(ctx, parent.ID, parent.ID, false), domainerr.CodeNotFound)

	require.NoError(t, f.svc.SetAvailability(ctx, nanny.ID, nanny.ID, false))
	n, err := f.store.GetNanny(ctx, nanny.ID)
	require.NoError(t, err)
	assert.False(t, n.IsAvailable)
	assert.Equal(t, models.SubscriptionInactive, n.Subscription.Status)
}

func TestListVisibleNannies_CityFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	utrecht := f.onboard(t, "nanny", "Utrecht")
	amsterdam := f.onboard(t, "nanny", "Amsterdam")
	hidden := f.onboard(t, "nanny", "Utrecht")
	umlaut := f.onboard(t, "nanny", "Überlingen")
	for _, id := range []int64{utrecht.ID, amsterdam.ID, umlaut.ID} {
		_, err := f.store.UpdateSubscription(ctx, id, models.Subscription{Status: models.SubscriptionActive}, false)
		require.NoError(t, err)
	}

	tests := []struct {
		city string
		want []int64
	}{
		{"", []int64{utrecht.ID, amsterdam.ID, umlaut.ID}},
		{"Utrecht", []int64{utrecht.ID}},
		{"  uTRECHT ", []int64{utrecht.ID}},
		{"ÜBERLINGEN", []int64{umlaut.ID}},
		{"Rotterdam", nil},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			got, err := f.svc.ListVisibleNannies(ctx, profiles.NannyFilter{City: tt.city})
			require.NoError(t, err)
			var ids []int64
			for _, l := range got {
				ids = append(ids, l.Profile.ID)
				assert.NotEqual(t, hidden.ID, l.Profile.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// Search visibility holds exactly when the nanny is available and the
// subscription is trial or active, over randomized states.
func TestListVisibleNannies_VisibilityProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	statuses := []models.SubscriptionStatus{
		models.SubscriptionInactive, models.SubscriptionTrial, models.SubscriptionActive, models.SubscriptionCancelled,
	}

	want := map[int64]bool{}
	for i := 0; i < 200; i++ {
		p := f.onboard(t, "nanny", "Utrecht")
		status := statuses[rng.IntN(len(statuses))]
		available := rng.IntN(2) == 0
		_, err := f.store.UpdateSubscription(ctx, p.ID, models.Subscription{Status: status}, false)
		require.NoError(t, err)
		require.NoError(t, f.store.SetAvailability(ctx, p.ID, available))
		want[p.ID] = available && (status == models.SubscriptionTrial || status == models.SubscriptionActive)
	}

	got, err := f.svc.ListVisibleNannies(ctx, profiles.NannyFilter{})
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, l := range got {
		seen[l.Profile.ID] = true
	}
	for id, visible := range want {
		assert.Equal(t, visible, seen[id], "profile %d", id)
	}
}

func TestDatastoreFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	f.store.Err = errors.New("connection refused")

	_, err := f.svc.ListVisibleNannies(ctx, profiles.NannyFilter{})
	assertCode(t, err, domainerr.CodeUnavailable)
	assertCode(t, f.svc.SetAvailability(ctx, nanny.ID, nanny.ID, true), domainerr.CodeUnavailable)
	assertCode(t, f.svc.ApplySubscriptionEvent(ctx, profiles.SubscriptionEvent{
		Type: profiles.EventSubscriptionDeleted, SubscriptionRef: "sub_1",
	}), domainerr.CodeUnavailable)
}

func TestAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.onboard(t, "parent", "Utrecht")
	adminOut, err := f.svc.CreateProfile(ctx, models.Identity{ID: 1, Email: "admin@nannygo.nl"}, profiles.CreateProfileInput{Role: "admin", FullName: "Ops"})
	require.NoError(t, err)
	admin := adminOut.Profile

	_, err = f.svc.ListProfiles(ctx, parent.ID)
	assertCode(t, err, domainerr.CodeForbidden)
	assertCode(t, f.svc.SetProfileActive(ctx, parent.ID, admin.ID, false), domainerr.CodeForbidden)

	all, err := f.svc.ListProfiles(ctx, admin.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	isAdmin, err := f.svc.IsAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)
	isAdmin, err = f.svc.IsAdmin(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	require.NoError(t, f.svc.SetProfileActive(ctx, admin.ID, parent.ID, false))
	_, err = f.svc.ResolveActor(ctx, parent.UserID)
	assertCode(t, err, domainerr.CodeForbidden)

	assertCode(t, f.svc.SetProfileActive(ctx, admin.ID, admin.ID, false), domainerr.CodeInvalidInput)
	assertCode(t, f.svc.SetProfileActive(ctx, admin.ID, 9999, true), domainerr.CodeNotFound)
}

func TestFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.onboard(t, "parent", "Utrecht")
	nanny := f.onboard(t, "nanny", "Utrecht")

	require.NoError(t, f.svc.AddFavorite(ctx, parent.ID, nanny.ID))
	require.NoError(t, f.svc.AddFavorite(ctx, parent.ID, nanny.ID))
	favs, err := f.svc.ListFavorites(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, nanny.ID, favs[0].Profile.ID)

	assertCode(t, f.svc.AddFavorite(ctx, nanny.ID, nanny.ID), domainerr.CodeForbidden)
	assertCode(t, f.svc.AddFavorite(ctx, parent.ID, parent.ID), domainerr.CodeNotFound)

	require.NoError(t, f.svc.RemoveFavorite(ctx, parent.ID, nanny.ID))
	require.NoError(t, f.svc.RemoveFavorite(ctx, parent.ID, nanny.ID))
	favs, err = f.svc.ListFavorites(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func TestUploadPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.onboard(t, "nanny", "Utrecht")
	raw := base64.StdEncoding.EncodeToString(pngHeader)

	url, err := f.svc.UploadPhoto(ctx, p.ID, profiles.PhotoUpload{Data: "data:image/png;base64," + raw})
	require.NoError(t, err)
	require.Len(t, f.objects.keys, 1)
	assert.Regexp(t, `^profiles/\d+/[0-9a-f-]{36}\.png$`, f.objects.keys[0])
	stored, err := f.store.GetProfileByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, url, stored.AvatarURL)

	_, err = f.svc.UploadPhoto(ctx, p.ID, profiles.PhotoUpload{Data: raw, ContentType: "image/png"})
	require.NoError(t, err)

	jpeg := base64.StdEncoding.EncodeToString(jpegHeader)
	for _, in := range []profiles.PhotoUpload{
		{Data: jpeg, ContentType: "image/jpg"},
		{Data: jpeg, ContentType: " Image/JPG "},
		{Data: "data:image/jpg;base64," + jpeg},
	} {
		_, err = f.svc.UploadPhoto(ctx, p.ID, in)
		require.NoError(t, err, "content type %q", in.ContentType)
	}
	assert.Regexp(t, `\.jpg$`, f.objects.keys[len(f.objects.keys)-1])

	big := base64.StdEncoding.EncodeToString(append(append([]byte(nil), pngHeader...), make([]byte, 2048)...))
	tests := []struct {
		name string
		in   profiles.PhotoUpload
		code domainerr.Code
	}{
		{"empty", profiles.PhotoUpload{}, domainerr.CodeInvalidInput},
		{"not base64", profiles.PhotoUpload{Data: "%%%"}, domainerr.CodeInvalidInput},
		{"too large", profiles.PhotoUpload{Data: big}, domainerr.CodeInvalidInput},
		{"not an image", profiles.PhotoUpload{Data: base64.StdEncoding.EncodeToString([]byte("hello world"))}, domainerr.CodeInvalidInput},
		{"declared mismatch", profiles.PhotoUpload{Data: raw, ContentType: "image/jpeg"}, domainerr.CodeInvalidInput},
		{"data url without base64", profiles.PhotoUpload{Data: "data:image/png," + raw}, domainerr.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadPhoto(ctx, p.ID, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	f.objects.err = errors.New("bucket offline")
	_, err = f.svc.UploadPhoto(ctx, p.ID, profiles.PhotoUpload{Data: raw})
	assertCode(t, err, domainerr.CodeUnavailable)
}

func TestStartCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nanny := f.onboard(t, "nanny", "Utrecht")
	parent := f.onboard(t, "parent", "Utrecht")

	_, err := f.svc.StartCheckout(ctx, models.Identity{ID: parent.UserID}, "https://app.test")
	assertCode(t, err, domainerr.CodeForbidden)

	url, err := f.svc.StartCheckout(ctx, models.Identity{ID: nanny.UserID, Email: "n@example.test"}, "https://app.test/")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.test/session", url)
	assert.Equal(t, "https://app.test/app/nanny?subscription=success", f.checkout.req.SuccessURL)
	assert.Equal(t, "https://app.test/app/nanny/subscription?canceled=true", f.checkout.req.CancelURL)
	assert.Equal(t, "n@example.test", f.checkout.req.UserEmail)
	assert.Equal(t, nanny.FullName, f.checkout.req.UserName)

	_, err = f.svc.StartCheckout(ctx, models.Identity{ID: nanny.UserID}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://nannygo.example.test/app/nanny?subscription=success", f.checkout.req.SuccessURL)

	f.checkout.err = errors.New("stripe down")
	_, err = f.svc.StartCheckout(ctx, models.Identity{ID: nanny.UserID}, "https://app.test")
	assertCode(t, err, domainerr.CodeUnavailable)

	_, err = f.store.UpdateSubscription(ctx, nanny.ID, models.Subscription{Status: models.SubscriptionActive, LastEventAt: time.Now().Unix()}, false)
	require.NoError(t, err)
	_, err = f.svc.StartCheckout(ctx, models.Identity{ID: nanny.UserID}, "https://app.test")
	assertCode(t, err, domainerr.CodeConflict)
}
