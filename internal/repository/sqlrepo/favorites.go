package sqlrepo

import (
	"context"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

func (r *Repo) AddFavorite(ctx context.Context, parentID, nannyID int64) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO favorites (parent_id, nanny_id, created) VALUES (?, ?, ?) ON CONFLICT (parent_id, nanny_id) DO NOTHING`, parentID, nannyID, now())
	return err
}

func (r *Repo) RemoveFavorite(ctx context.Context, parentID, nannyID int64) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM favorites WHERE parent_id = ? AND nanny_id = ?`, parentID, nannyID)
	return err
}

// ListFavorites returns the favorited nannies regardless of their current
// search visibility.
func (r *Repo) ListFavorites(ctx context.Context, parentID int64) ([]models.NannyListing, error) {
	query := `SELECT ` + profileColumns + `, ` + nannyColumns + ` FROM favorites f` +
		` JOIN nanny_profiles n ON n.profile_id = f.nanny_id JOIN profiles p ON p.id = n.profile_id` +
		` WHERE f.parent_id = ? ORDER BY n.id`
	return r.listListings(ctx, query, parentID)
}
