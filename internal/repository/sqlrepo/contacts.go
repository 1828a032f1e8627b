package sqlrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
	"github.com/VYBRANDMEDIA/nannygo/pkg/repository"
)

func (r *Repo) CreateContactRequest(ctx context.Context, c *models.ContactRequest) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("contact request is nil")
	}
	created := now()
	if !c.Created.IsZero() {
		created = c.Created.UTC().UnixMilli()
	}
	_, err := r.insert(ctx, r.conn.GetConn(), `INSERT INTO contact_requests (parent_id, nanny_id, contact_type, contact_day, created) VALUES (?, ?, ?, ?, ?)`,
		c.ParentID, c.NannyID, string(c.ContactType), c.Day, created)
	if errors.Is(err, repository.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) CountContactRequests(ctx context.Context, nannyID int64, since time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM contact_requests WHERE nanny_id = ? AND created >= ?`, nannyID, since.UTC().UnixMilli()).Scan(&n)
	return n, err
}
