package race

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const passColumns = "id, pass_id, transponder_id, rtc_time, strength, hits, flags, decoder_id, received_at"

// InsertPass records a raw pass keyed on the decoder's passing number.
// Replayed frames are ignored; the return value reports whether a new row
// was created.
func (s *Store) InsertPass(ctx context.Context, pass *Pass) (bool, error) {
	if pass == nil {
		return false, errors.New("pass is nil")
	}
	if pass.PassID <= 0 {
		return false, fmt.Errorf("pass %d: passing number must be positive", pass.PassID)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO passes (
            pass_id, transponder_id, rtc_time, strength, hits, flags, decoder_id, received_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pass.PassID,
		pass.Transponder,
		pass.RTCTime,
		pass.Strength,
		pass.Hits,
		pass.Flags,
		pass.DecoderID,
		timestamp(pass.ReceivedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert pass %d: %w", pass.PassID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// PassByPassID fetches a pass by its decoder passing number.
func (s *Store) PassByPassID(ctx context.Context, passID int64) (*Pass, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE pass_id = ?`, passID)
	pass, err := scanPass(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pass %d: %w", passID, err)
	}
	return pass, nil
}

// FirstPassAfter returns the earliest pass whose passing number is beyond
// minPassID and whose RTC time is beyond afterRTC, or nil when no such pass
// exists yet. The heat engine uses it to find the pass that opens a heat.
func (s *Store) FirstPassAfter(ctx context.Context, minPassID, afterRTC int64) (*Pass, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+passColumns+` FROM passes WHERE pass_id > ? AND rtc_time > ? ORDER BY pass_id LIMIT 1`,
		minPassID,
		afterRTC,
	)
	pass, err := scanPass(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first pass after %d: %w", afterRTC, err)
	}
	return pass, nil
}

// UnprocessedPasses returns the passes inside a heat window that have not
// been consumed as laps, in passing-number order, plus at most one pass
// beyond the window so the caller can observe that the window has been
// crossed. Passes the judge skipped are returned again on every call; the
// judge is responsible for remembering its verdicts.
func (s *Store) UnprocessedPasses(ctx context.Context, firstPassID, maxEndRTC int64) ([]*Pass, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT p.id, p.pass_id, p.transponder_id, p.rtc_time, p.strength, p.hits, p.flags, p.decoder_id, p.received_at
         FROM (
             SELECT * FROM passes WHERE pass_id >= ? AND rtc_time <= ?
             UNION ALL
             SELECT * FROM (
                 SELECT * FROM passes WHERE pass_id >= ? AND rtc_time > ? ORDER BY pass_id LIMIT 1
             )
         ) AS p
         LEFT JOIN laps ON laps.pass_id = p.pass_id
         WHERE laps.pass_id IS NULL
         ORDER BY p.pass_id`,
		firstPassID,
		maxEndRTC,
		firstPassID,
		maxEndRTC,
	)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed passes: %w", err)
	}
	defer rows.Close()

	var passes []*Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	return passes, rows.Err()
}

// RecentPasses returns the newest passes first for CLI inspection.
func (s *Store) RecentPasses(ctx context.Context, limit int) ([]*Pass, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+passColumns+` FROM passes ORDER BY pass_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent passes: %w", err)
	}
	defer rows.Close()

	var passes []*Pass
	for rows.Next() {
		pass, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, pass)
	}
	return passes, rows.Err()
}

func scanPass(scanner interface{ Scan(dest ...any) error }) (*Pass, error) {
	var (
		pass       Pass
		receivedAt sql.NullString
	)
	if err := scanner.Scan(
		&pass.ID,
		&pass.PassID,
		&pass.Transponder,
		&pass.RTCTime,
		&pass.Strength,
		&pass.Hits,
		&pass.Flags,
		&pass.DecoderID,
		&receivedAt,
	); err != nil {
		return nil, err
	}
	pass.ReceivedAt = scanTime(receivedAt)
	return &pass, nil
}
