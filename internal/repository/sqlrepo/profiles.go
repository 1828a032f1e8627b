package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

const profileColumns = `p.id, p.user_id, p.role, p.full_name, p.phone, p.city, p.avatar_url, p.youtube_video_url, p.average_rating, p.review_count, p.is_active, p.created`

func scanProfile(sc scanner, extra ...any) (*models.Profile, error) {
	var (
		p                            models.Profile
		phone, city, avatar, youtube sql.NullString
		active                       int
		created                      int64
	)
	dest := append([]any{&p.ID, &p.UserID, &p.Role, &p.FullName, &phone, &city, &avatar, &youtube, &p.AverageRating, &p.ReviewCount, &active, &created}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	p.Phone = phone.String
	p.City = city.String
	p.AvatarURL = avatar.String
	p.YouTubeVideoURL = youtube.String
	p.IsActive = active != 0
	p.Created = fromMillis(created)
	return &p, nil
}

func (r *Repo) CreateProfile(ctx context.Context, p *models.Profile, nanny *models.NannyProfile) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("profile is nil")
	}

	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		created := now()
		var err error
		id, err = r.insert(ctx, tx, `INSERT INTO profiles (user_id, role, full_name, phone, city, city_norm, youtube_video_url, is_active, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UserID, string(p.Role), p.FullName, p.Phone, p.City, models.NormalizeCity(p.City), p.YouTubeVideoURL, boolToInt(p.IsActive), created)
		if err != nil {
			return err
		}
		if nanny == nil {
			return nil
		}

		tags, err := json.Marshal(nonNilTags(nanny.Tags))
		if err != nil {
			return err
		}
		_, err = r.insert(ctx, tx, `INSERT INTO nanny_profiles (profile_id, bio, hourly_rate, years_experience, max_children, tags, is_available, subscription_status, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, nanny.Bio, nanny.HourlyRate, nanny.YearsExperience, nanny.MaxChildren, string(tags), boolToInt(nanny.IsAvailable), string(nanny.Subscription.Status), created)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) GetProfileByID(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := scanProfile(r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *Repo) GetProfileByUserID(ctx context.Context, userID int64) (*models.Profile, error) {
	p, err := scanProfile(r.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UpdateProfile writes the user-editable fields. Role, rating and the active
// flag are not touched.
func (r *Repo) UpdateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("profile is nil")
	}
	_, err := r.conn.Exec(ctx, `UPDATE profiles SET full_name = ?, phone = ?, city = ?, city_norm = ?, youtube_video_url = ? WHERE id = ?`,
		p.FullName, p.Phone, p.City, models.NormalizeCity(p.City), p.YouTubeVideoURL, p.ID)
	return err
}

func (r *Repo) SetAvatarURL(ctx context.Context, id int64, url string) error {
	_, err := r.conn.Exec(ctx, `UPDATE profiles SET avatar_url = ? WHERE id = ?`, url, id)
	return err
}

func (r *Repo) SetProfileActive(ctx context.Context, id int64, active bool) error {
	_, err := r.conn.Exec(ctx, `UPDATE profiles SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	return err
}

func (r *Repo) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+profileColumns+` FROM profiles p ORDER BY p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
