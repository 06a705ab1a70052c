package race

import (
	"context"
	"fmt"
	"strings"
)

// UpsertKart creates or replaces the kart mapping for a transponder.
func (s *Store) UpsertKart(ctx context.Context, kart Kart) error {
	if kart.Transponder <= 0 {
		return fmt.Errorf("kart needs a transponder, got %d", kart.Transponder)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO karts (transponder_id, name, kart_number) VALUES (?, ?, ?)
         ON CONFLICT(transponder_id) DO UPDATE SET name = excluded.name, kart_number = excluded.kart_number`,
		kart.Transponder,
		strings.TrimSpace(kart.Name),
		kart.Number,
	)
	if err != nil {
		return fmt.Errorf("upsert kart for transponder %d: %w", kart.Transponder, err)
	}
	return nil
}

// KartByTransponder fetches the kart mapped to a transponder, or nil when
// the transponder is unmapped.
func (s *Store) KartByTransponder(ctx context.Context, transponder int64) (*Kart, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT transponder_id, name, kart_number FROM karts WHERE transponder_id = ?`,
		transponder,
	)
	var kart Kart
	if err := row.Scan(&kart.Transponder, &kart.Name, &kart.Number); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get kart for transponder %d: %w", transponder, err)
	}
	return &kart, nil
}

// Karts returns all kart mappings ordered by kart number.
func (s *Store) Karts(ctx context.Context) ([]Kart, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT transponder_id, name, kart_number FROM karts ORDER BY kart_number, transponder_id`)
	if err != nil {
		return nil, fmt.Errorf("query karts: %w", err)
	}
	defer rows.Close()

	var karts []Kart
	for rows.Next() {
		var kart Kart
		if err := rows.Scan(&kart.Transponder, &kart.Name, &kart.Number); err != nil {
			return nil, err
		}
		karts = append(karts, kart)
	}
	return karts, rows.Err()
}
