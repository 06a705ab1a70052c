package race

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const heatColumns = "heat_id, heat_finished, first_pass_id, last_pass_id, rtc_time_start, rtc_time_end, rtc_time_max_end, race_flag, created_at, updated_at"

// ActiveHeat returns the newest unfinished heat, or nil when every heat is
// finished. At most one heat is expected to be active at a time.
func (s *Store) ActiveHeat(ctx context.Context) (*Heat, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+heatColumns+` FROM heats WHERE heat_finished = 0 ORDER BY heat_id DESC LIMIT 1`,
	)
	heat, err := scanHeat(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active heat: %w", err)
	}
	return heat, nil
}

// HeatByID fetches a heat by identifier.
func (s *Store) HeatByID(ctx context.Context, heatID int64) (*Heat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+heatColumns+` FROM heats WHERE heat_id = ?`, heatID)
	heat, err := scanHeat(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get heat %d: %w", heatID, err)
	}
	return heat, nil
}

// CreateHeat inserts a heat opened by the given pass with a fixed race
// window and returns the stored row.
func (s *Store) CreateHeat(ctx context.Context, firstPassID, rtcTimeStart, rtcTimeEnd, rtcTimeMaxEnd int64) (*Heat, error) {
	if firstPassID <= 0 {
		return nil, fmt.Errorf("heat needs an opening pass, got %d", firstPassID)
	}
	if rtcTimeEnd <= rtcTimeStart || rtcTimeMaxEnd < rtcTimeEnd {
		return nil, fmt.Errorf("heat window is inverted: start %d end %d max %d", rtcTimeStart, rtcTimeEnd, rtcTimeMaxEnd)
	}

	now := timestamp(time.Time{})
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO heats (
            heat_finished, first_pass_id, last_pass_id, rtc_time_start, rtc_time_end, rtc_time_max_end,
            race_flag, created_at, updated_at
        ) VALUES (0, ?, NULL, ?, ?, ?, ?, ?, ?)`,
		firstPassID,
		rtcTimeStart,
		rtcTimeEnd,
		rtcTimeMaxEnd,
		FlagGreen,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert heat: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.HeatByID(ctx, id)
}

// UpdateHeat persists the mutable heat fields: finished, last pass, and the
// race flag.
func (s *Store) UpdateHeat(ctx context.Context, heat *Heat) error {
	if heat == nil {
		return errors.New("heat is nil")
	}
	heat.UpdatedAt = time.Now().UTC()

	var lastPass any
	if heat.LastPassID > 0 {
		lastPass = heat.LastPassID
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE heats
         SET heat_finished = ?, last_pass_id = ?, race_flag = ?, updated_at = ?
         WHERE heat_id = ?`,
		boolToInt(heat.Finished),
		lastPass,
		heat.RaceFlag,
		timestamp(heat.UpdatedAt),
		heat.ID,
	)
	if err != nil {
		return fmt.Errorf("update heat %d: %w", heat.ID, err)
	}
	return nil
}

// Heats returns the newest heats first for CLI inspection.
func (s *Store) Heats(ctx context.Context, limit int) ([]*Heat, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+heatColumns+` FROM heats ORDER BY heat_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query heats: %w", err)
	}
	defer rows.Close()

	var heats []*Heat
	for rows.Next() {
		heat, err := scanHeat(rows)
		if err != nil {
			return nil, err
		}
		heats = append(heats, heat)
	}
	return heats, rows.Err()
}

func scanHeat(scanner interface{ Scan(dest ...any) error }) (*Heat, error) {
	var (
		heat      Heat
		finished  int64
		lastPass  sql.NullInt64
		flag      int64
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := scanner.Scan(
		&heat.ID,
		&finished,
		&heat.FirstPassID,
		&lastPass,
		&heat.RTCTimeStart,
		&heat.RTCTimeEnd,
		&heat.RTCTimeMaxEnd,
		&flag,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	heat.Finished = finished != 0
	if lastPass.Valid {
		heat.LastPassID = lastPass.Int64
	}
	heat.RaceFlag = RaceFlag(flag)
	heat.CreatedAt = scanTime(createdAt)
	heat.UpdatedAt = scanTime(updatedAt)
	return &heat, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
