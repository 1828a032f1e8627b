package mock

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is an in-memory repository.Store for service and handler tests.
// Setting Err makes every call fail with it.
type Store struct {
	mu sync.Mutex

	Err error

	nextID    int64
	users     map[int64]models.User
	profiles  map[int64]models.Profile
	nannies   map[int64]models.NannyProfile // by profile id
	bookings  map[int64]models.Booking
	reviews   map[int64]models.Review
	favorites map[[2]int64]time.Time
	calendar  map[int64][]string
	contacts  []models.ContactRequest
}

func NewStore() *Store {
	return &Store{
		users:     map[int64]models.User{},
		profiles:  map[int64]models.Profile{},
		nannies:   map[int64]models.NannyProfile{},
		bookings:  map[int64]models.Booking{},
		reviews:   map[int64]models.Review{},
		favorites: map[[2]int64]time.Time{},
		calendar:  map[int64][]string{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return 0, repository.ErrDuplicate
		}
	}
	c := *u
	c.ID = s.id()
	c.Created = time.Now().UTC()
	s.users[c.ID] = c
	return c.ID, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

// Profiles

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile, nanny *models.NannyProfile) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	for _, existing := range s.profiles {
		if existing.UserID == p.UserID {
			return 0, repository.ErrDuplicate
		}
	}
	c := *p
	c.ID = s.id()
	c.Created = time.Now().UTC()
	s.profiles[c.ID] = c
	if nanny != nil {
		n := *nanny
		n.ID = s.id()
		n.ProfileID = c.ID
		n.Created = c.Created
		n.Tags = append([]string(nil), nanny.Tags...)
		s.nannies[c.ID] = n
	}
	return c.ID, nil
}

func (s *Store) GetProfileByID(ctx context.Context, id int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.profiles[p.ID]
	if !ok {
		return nil
	}
	cur.FullName = p.FullName
	cur.Phone = p.Phone
	cur.City = p.City
	cur.YouTubeVideoURL = p.YouTubeVideoURL
	s.profiles[p.ID] = cur
	return nil
}

func (s *Store) SetAvatarURL(ctx context.Context, id int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if cur, ok := s.profiles[id]; ok {
		cur.AvatarURL = url
		s.profiles[id] = cur
	}
	return nil
}

func (s *Store) SetProfileActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if cur, ok := s.profiles[id]; ok {
		cur.IsActive = active
		s.profiles[id] = cur
	}
	return nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Nanny profiles

func (s *Store) GetNanny(ctx context.Context, profileID int64) (*models.NannyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	n, ok := s.nannies[profileID]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) GetNannyBySubscriptionRef(ctx context.Context, ref string) (*models.NannyProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if ref == "" {
		return nil, nil
	}
	for _, n := range s.nannies {
		if n.Subscription.SubscriptionRef == ref {
			return &n, nil
		}
	}
	return nil, nil
}

func (s *Store) ListVisible(ctx context.Context, city string) ([]models.NannyListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	city = models.NormalizeCity(city)
	var out []models.NannyListing
	for _, n := range s.nannies {
		if !n.SearchVisible() {
			continue
		}
		p := s.profiles[n.ProfileID]
		if city != "" && models.NormalizeCity(p.City) != city {
			continue
		}
		out = append(out, models.NannyListing{Profile: p, Nanny: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nanny.ID < out[j].Nanny.ID })
	return out, nil
}

func (s *Store) UpdateNannyDetails(ctx context.Context, n *models.NannyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.nannies[n.ProfileID]
	if !ok {
		return nil
	}
	cur.Bio = n.Bio
	cur.HourlyRate = n.HourlyRate
	cur.YearsExperience = n.YearsExperience
	cur.MaxChildren = n.MaxChildren
	cur.Tags = append([]string(nil), n.Tags...)
	cur.IsAvailable = n.IsAvailable
	s.nannies[n.ProfileID] = cur
	return nil
}

func (s *Store) SetAvailability(ctx context.Context, profileID int64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if cur, ok := s.nannies[profileID]; ok {
		cur.IsAvailable = available
		s.nannies[profileID] = cur
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, profileID int64, sub models.Subscription, forceUnavailable bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	cur, ok := s.nannies[profileID]
	if !ok || cur.Subscription.LastEventAt > sub.LastEventAt {
		return false, nil
	}
	cur.Subscription = sub
	if forceUnavailable {
		cur.IsAvailable = false
	}
	s.nannies[profileID] = cur
	return true, nil
}

// Bookings

func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	c := *b
	c.ID = s.id()
	c.Created = time.Now().UTC()
	s.bookings[c.ID] = c
	return c.ID, nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	s.bookings[id] = b
	return true, nil
}

func (s *Store) ListBookingsByParty(ctx context.Context, profileID int64) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Booking
	for _, b := range s.bookings {
		if b.IsParty(profileID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reviews

func (s *Store) CreateReview(ctx context.Context, r *models.Review) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	for _, existing := range s.reviews {
		if existing.BookingID == r.BookingID && existing.ReviewerID == r.ReviewerID {
			return 0, repository.ErrDuplicate
		}
	}
	c := *r
	c.ID = s.id()
	c.Created = time.Now().UTC()
	s.reviews[c.ID] = c

	var sum, n int
	for _, rv := range s.reviews {
		if rv.RevieweeID == r.RevieweeID {
			sum += rv.Rating
			n++
		}
	}
	if p, ok := s.profiles[r.RevieweeID]; ok {
		p.ReviewCount = n
		p.AverageRating = (sum*100 + n/2) / n
		s.profiles[r.RevieweeID] = p
	}
	return c.ID, nil
}

func (s *Store) HasReview(ctx context.Context, bookingID, reviewerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, rv := range s.reviews {
		if rv.BookingID == bookingID && rv.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListReviewsFor(ctx context.Context, revieweeID int64) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Review
	for _, rv := range s.reviews {
		if rv.RevieweeID == revieweeID {
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Favorites

func (s *Store) AddFavorite(ctx context.Context, parentID, nannyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	key := [2]int64{parentID, nannyID}
	if _, ok := s.favorites[key]; !ok {
		s.favorites[key] = time.Now().UTC()
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, parentID, nannyID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.favorites, [2]int64{parentID, nannyID})
	return nil
}

func (s *Store) ListFavorites(ctx context.Context, parentID int64) ([]models.NannyListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.NannyListing
	for key := range s.favorites {
		if key[0] != parentID {
			continue
		}
		n, ok := s.nannies[key[1]]
		if !ok {
			continue
		}
		out = append(out, models.NannyListing{Profile: s.profiles[key[1]], Nanny: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nanny.ID < out[j].Nanny.ID })
	return out, nil
}

// Calendar

func (s *Store) ReplaceAvailableDates(ctx context.Context, nannyID int64, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.calendar[nannyID] = append([]string(nil), dates...)
	return nil
}

func (s *Store) ListAvailableDates(ctx context.Context, nannyID int64, from string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []string
	for _, d := range s.calendar[nannyID] {
		if d >= from {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Contact requests

func (s *Store) CreateContactRequest(ctx context.Context, c *models.ContactRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, existing := range s.contacts {
		if existing.ParentID == c.ParentID && existing.NannyID == c.NannyID && existing.Day == c.Day {
			return false, nil
		}
	}
	cp := *c
	cp.ID = s.id()
	if cp.Created.IsZero() {
		cp.Created = time.Now().UTC()
	}
	s.contacts = append(s.contacts, cp)
	return true, nil
}

func (s *Store) CountContactRequests(ctx context.Context, nannyID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	n := 0
	for _, c := range s.contacts {
		if c.NannyID == nannyID && !c.Created.Before(since) {
			n++
		}
	}
	return n, nil
}
