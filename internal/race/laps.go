package race

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertLap records an accepted lap. The unique constraint on the pass
// number makes retries idempotent; the return value reports whether a new
// row was created.
func (s *Store) InsertLap(ctx context.Context, lap *Lap) (bool, error) {
	if lap == nil {
		return false, errors.New("lap is nil")
	}
	if lap.HeatID <= 0 || lap.PassID <= 0 {
		return false, fmt.Errorf("lap needs heat and pass identifiers, got heat %d pass %d", lap.HeatID, lap.PassID)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO laps (heat_id, pass_id, transponder_id, rtc_time, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		lap.HeatID,
		lap.PassID,
		lap.Transponder,
		lap.RTCTime,
		timestamp(lap.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert lap for pass %d: %w", lap.PassID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// LastAcceptedLapRTC returns the RTC time of the most recent lap a
// transponder completed in a heat. The judge seeds its per-transponder state
// from this after a restart.
func (s *Store) LastAcceptedLapRTC(ctx context.Context, heatID, transponder int64) (int64, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT rtc_time FROM laps WHERE heat_id = ? AND transponder_id = ? ORDER BY pass_id DESC LIMIT 1`,
		heatID,
		transponder,
	)
	var rtc int64
	if err := row.Scan(&rtc); err != nil {
		if noRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("last lap for transponder %d: %w", transponder, err)
	}
	return rtc, true, nil
}

// HeatStarters counts the distinct transponders that completed at least one
// lap in the heat.
func (s *Store) HeatStarters(ctx context.Context, heatID int64) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(DISTINCT transponder_id) FROM laps WHERE heat_id = ?`,
		heatID,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count heat starters: %w", err)
	}
	return count, nil
}

// HeatFinishers counts the distinct transponders with a lap recorded past
// the heat end, which is the crossing that completes their race.
func (s *Store) HeatFinishers(ctx context.Context, heatID, rtcTimeEnd int64) (int, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(DISTINCT transponder_id) FROM laps WHERE heat_id = ? AND rtc_time > ?`,
		heatID,
		rtcTimeEnd,
	)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count heat finishers: %w", err)
	}
	return count, nil
}

// LapCount reports the number of laps recorded for a heat.
func (s *Store) LapCount(ctx context.Context, heatID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM laps WHERE heat_id = ?`, heatID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count laps for heat %d: %w", heatID, err)
	}
	return count, nil
}

// MaxLapPassID returns the highest passing number consumed as a lap across
// all heats, or zero when no laps exist. A new heat's opening pass must come
// after this so leftover passes from an old window cannot start a race.
func (s *Store) MaxLapPassID(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(pass_id), 0) FROM laps`)
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max lap pass id: %w", err)
	}
	return max, nil
}

// MaxLapPassIDForHeat returns the highest passing number recorded as a lap
// of one heat, or zero when the heat has no laps.
func (s *Store) MaxLapPassIDForHeat(ctx context.Context, heatID int64) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(pass_id), 0) FROM laps WHERE heat_id = ?`, heatID)
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, fmt.Errorf("max lap pass id for heat %d: %w", heatID, err)
	}
	return max, nil
}

// LapsForHeat returns the heat's laps in passing order joined with kart
// mappings, with per-transponder lap times computed from the previous lap.
func (s *Store) LapsForHeat(ctx context.Context, heatID int64) ([]*LapRow, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT l.id, l.heat_id, l.pass_id, l.transponder_id, l.rtc_time, l.created_at,
                l.rtc_time - COALESCE(LAG(l.rtc_time) OVER (
                    PARTITION BY l.transponder_id ORDER BY l.pass_id
                ), l.rtc_time) AS lap_time,
                COALESCE(k.name, ''), COALESCE(k.kart_number, 0)
         FROM laps l
         LEFT JOIN karts k ON k.transponder_id = l.transponder_id
         WHERE l.heat_id = ?
         ORDER BY l.pass_id`,
		heatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query laps for heat %d: %w", heatID, err)
	}
	defer rows.Close()

	var laps []*LapRow
	for rows.Next() {
		var (
			lap       LapRow
			createdAt sql.NullString
		)
		if err := rows.Scan(
			&lap.ID,
			&lap.HeatID,
			&lap.PassID,
			&lap.Transponder,
			&lap.RTCTime,
			&createdAt,
			&lap.LapTime,
			&lap.KartName,
			&lap.KartNumber,
		); err != nil {
			return nil, err
		}
		lap.CreatedAt = scanTime(createdAt)
		laps = append(laps, &lap)
	}
	return laps, rows.Err()
}
