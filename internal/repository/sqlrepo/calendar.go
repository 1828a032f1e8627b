package sqlrepo

import (
	"context"
	"database/sql"
)

func (r *Repo) ReplaceAvailableDates(ctx context.Context, nannyID int64, dates []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.conn.Rebind(`DELETE FROM nanny_availability WHERE nanny_id = ?`), nannyID); err != nil {
			return err
		}
		insert := r.conn.Rebind(`INSERT INTO nanny_availability (nanny_id, available_date) VALUES (?, ?)`)
		for _, d := range dates {
			if _, err := tx.ExecContext(ctx, insert, nannyID, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ListAvailableDates(ctx context.Context, nannyID int64, from string) ([]string, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT available_date FROM nanny_availability WHERE nanny_id = ? AND available_date >= ? ORDER BY available_date`, nannyID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
