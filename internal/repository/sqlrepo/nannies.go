package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

const nannyColumns = `n.id, n.profile_id, n.bio, n.hourly_rate, n.years_experience, n.max_children, n.tags, n.is_available, n.subscription_status, n.customer_ref, n.subscription_ref, n.trial_ends_at, n.subscription_event_at, n.created`

// nannyRow holds the raw scan targets of a nanny_profiles row.
type nannyRow struct {
	n           models.NannyProfile
	bio, tags   sql.NullString
	customerRef sql.NullString
	subRef      sql.NullString
	trialEndsAt sql.NullInt64
	available   int
	created     int64
}

func (nr *nannyRow) dest() []any {
	return []any{&nr.n.ID, &nr.n.ProfileID, &nr.bio, &nr.n.HourlyRate, &nr.n.YearsExperience, &nr.n.MaxChildren, &nr.tags, &nr.available,
		&nr.n.Subscription.Status, &nr.customerRef, &nr.subRef, &nr.trialEndsAt, &nr.n.Subscription.LastEventAt, &nr.created}
}

func (nr *nannyRow) profile() (*models.NannyProfile, error) {
	n := nr.n
	n.Bio = nr.bio.String
	n.IsAvailable = nr.available != 0
	n.Subscription.CustomerRef = nr.customerRef.String
	n.Subscription.SubscriptionRef = nr.subRef.String
	if nr.trialEndsAt.Valid {
		t := fromMillis(nr.trialEndsAt.Int64)
		n.Subscription.TrialEndsAt = &t
	}
	n.Created = fromMillis(nr.created)
	n.Tags = []string{}
	if nr.tags.Valid && nr.tags.String != "" {
		if err := json.Unmarshal([]byte(nr.tags.String), &n.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &n, nil
}

func (r *Repo) getNanny(ctx context.Context, where string, arg any) (*models.NannyProfile, error) {
	var nr nannyRow
	if err := r.conn.QueryRow(ctx, `SELECT `+nannyColumns+` FROM nanny_profiles n WHERE `+where, arg).Scan(nr.dest()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return nr.profile()
}

func (r *Repo) GetNanny(ctx context.Context, profileID int64) (*models.NannyProfile, error) {
	return r.getNanny(ctx, `n.profile_id = ?`, profileID)
}

func (r *Repo) GetNannyBySubscriptionRef(ctx context.Context, ref string) (*models.NannyProfile, error) {
	if ref == "" {
		return nil, nil
	}
	return r.getNanny(ctx, `n.subscription_ref = ?`, ref)
}

// ListVisible applies the directory predicate in SQL; callers re-check it
// with models.NannyProfile.SearchVisible.
func (r *Repo) ListVisible(ctx context.Context, city string) ([]models.NannyListing, error) {
	query := `SELECT ` + profileColumns + `, ` + nannyColumns + ` FROM nanny_profiles n JOIN profiles p ON p.id = n.profile_id` +
		` WHERE n.is_available = 1 AND n.subscription_status IN ('trial', 'active')`
	var args []any
	// SQLite's LOWER only folds ASCII, so the comparison runs on a column
	// normalized in Go when the profile is written.
	if city = models.NormalizeCity(city); city != "" {
		query += ` AND p.city_norm = ?`
		args = append(args, city)
	}
	query += ` ORDER BY n.id`
	return r.listListings(ctx, query, args...)
}

func (r *Repo) listListings(ctx context.Context, query string, args ...any) ([]models.NannyListing, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NannyListing
	for rows.Next() {
		var nr nannyRow
		p, err := scanProfile(rows, nr.dest()...)
		if err != nil {
			return nil, err
		}
		n, err := nr.profile()
		if err != nil {
			return nil, err
		}
		out = append(out, models.NannyListing{Profile: *p, Nanny: *n})
	}
	return out, rows.Err()
}

// UpdateNannyDetails writes the owner-editable fields. Subscription columns
// are only written by UpdateSubscription.
func (r *Repo) UpdateNannyDetails(ctx context.Context, n *models.NannyProfile) error {
	if n == nil {
		return fmt.Errorf("nanny profile is nil")
	}
	tags, err := json.Marshal(nonNilTags(n.Tags))
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, `UPDATE nanny_profiles SET bio = ?, hourly_rate = ?, years_experience = ?, max_children = ?, tags = ?, is_available = ? WHERE profile_id = ?`,
		n.Bio, n.HourlyRate, n.YearsExperience, n.MaxChildren, string(tags), boolToInt(n.IsAvailable), n.ProfileID)
	return err
}

func (r *Repo) SetAvailability(ctx context.Context, profileID int64, available bool) error {
	_, err := r.conn.Exec(ctx, `UPDATE nanny_profiles SET is_available = ? WHERE profile_id = ?`, boolToInt(available), profileID)
	return err
}

func (r *Repo) UpdateSubscription(ctx context.Context, profileID int64, sub models.Subscription, forceUnavailable bool) (bool, error) {
	var trialEndsAt any
	if sub.TrialEndsAt != nil {
		trialEndsAt = sub.TrialEndsAt.UTC().UnixMilli()
	}

	set := `subscription_status = ?, customer_ref = ?, subscription_ref = ?, trial_ends_at = ?, subscription_event_at = ?`
	if forceUnavailable {
		set += `, is_available = 0`
	}
	res, err := r.conn.Exec(ctx, `UPDATE nanny_profiles SET `+set+` WHERE profile_id = ? AND subscription_event_at <= ?`,
		string(sub.Status), nullable(sub.CustomerRef), nullable(sub.SubscriptionRef), trialEndsAt, sub.LastEventAt, profileID, sub.LastEventAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
