package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

func (r *Repo) CreateReview(ctx context.Context, rv *models.Review) (int64, error) {
	if rv == nil {
		return 0, fmt.Errorf("review is nil")
	}

	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = r.insert(ctx, tx, `INSERT INTO reviews (booking_id, reviewer_id, reviewee_id, rating, comment, created) VALUES (?, ?, ?, ?, ?, ?)`,
			rv.BookingID, rv.ReviewerID, rv.RevieweeID, rv.Rating, nullable(rv.Comment), now())
		if err != nil {
			return err
		}

		// average kept as stars x100
		_, err = tx.ExecContext(ctx, r.conn.Rebind(`UPDATE profiles SET
			review_count = (SELECT COUNT(*) FROM reviews WHERE reviewee_id = ?),
			average_rating = COALESCE((SELECT CAST(ROUND(AVG(rating) * 100) AS INTEGER) FROM reviews WHERE reviewee_id = ?), 0)
			WHERE id = ?`), rv.RevieweeID, rv.RevieweeID, rv.RevieweeID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) HasReview(ctx context.Context, bookingID, reviewerID int64) (bool, error) {
	var cnt int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE booking_id = ? AND reviewer_id = ?`, bookingID, reviewerID).Scan(&cnt); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *Repo) ListReviewsFor(ctx context.Context, revieweeID int64) ([]models.Review, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, booking_id, reviewer_id, reviewee_id, rating, comment, created FROM reviews WHERE reviewee_id = ? ORDER BY created DESC, id DESC`, revieweeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		var (
			rv      models.Review
			comment sql.NullString
			created int64
		)
		if err := rows.Scan(&rv.ID, &rv.BookingID, &rv.ReviewerID, &rv.RevieweeID, &rv.Rating, &comment, &created); err != nil {
			return nil, err
		}
		rv.Comment = comment.String
		rv.Created = fromMillis(created)
		out = append(out, rv)
	}
	return out, rows.Err()
}
