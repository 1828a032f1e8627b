package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

const bookingColumns = `id, parent_id, nanny_id, start_time, end_time, address, notes, status, payment_status, payment_ref, total_amount, created`

func scanBooking(sc scanner) (*models.Booking, error) {
	var (
		b                   models.Booking
		start, end, created int64
		notes, paymentRef   sql.NullString
	)
	if err := sc.Scan(&b.ID, &b.ParentID, &b.NannyID, &start, &end, &b.Address, &notes, &b.Status, &b.PaymentStatus, &paymentRef, &b.TotalAmount, &created); err != nil {
		return nil, err
	}
	b.StartTime = fromMillis(start)
	b.EndTime = fromMillis(end)
	b.Notes = notes.String
	b.PaymentRef = paymentRef.String
	b.Created = fromMillis(created)
	return &b, nil
}

func (r *Repo) CreateBooking(ctx context.Context, b *models.Booking) (int64, error) {
	if b == nil {
		return 0, fmt.Errorf("booking is nil")
	}
	return r.insert(ctx, r.conn.GetConn(), `INSERT INTO bookings (parent_id, nanny_id, start_time, end_time, address, notes, status, payment_status, payment_ref, total_amount, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ParentID, b.NannyID, b.StartTime.UTC().UnixMilli(), b.EndTime.UTC().UnixMilli(), b.Address, nullable(b.Notes),
		string(b.Status), string(b.PaymentStatus), nullable(b.PaymentRef), b.TotalAmount, now())
}

func (r *Repo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(r.conn.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// UpdateBookingStatus is a compare-and-set on the stored status, so two
// concurrent transitions out of the same state cannot both succeed.
func (r *Repo) UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	res, err := r.conn.Exec(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repo) ListBookingsByParty(ctx context.Context, profileID int64) ([]models.Booking, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE parent_id = ? OR nanny_id = ? ORDER BY created, id`, profileID, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
