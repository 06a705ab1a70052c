package race

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Setting returns the raw value of a setting, or ok=false when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE setting = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if noRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, true, nil
}

// SettingInt64 returns a setting parsed as an integer, falling back to the
// given default when the setting is unset or not a number.
func (s *Store) SettingInt64(ctx context.Context, key string, fallback int64) (int64, error) {
	value, ok, err := s.Setting(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback, nil
	}
	return parsed, nil
}

// SetSetting stores a setting, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settings (setting, value) VALUES (?, ?)
         ON CONFLICT(setting) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// Settings returns all settings ordered by key.
func (s *Store) Settings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT setting, value FROM settings ORDER BY setting`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, err
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// GreenFlag reports whether the operator has raised the green flag.
func (s *Store) GreenFlag(ctx context.Context) (bool, error) {
	value, ok, err := s.Setting(ctx, SettingGreenFlag)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return false, nil
	}
	return parsed != 0, nil
}

// SetGreenFlag raises or clears the green flag.
func (s *Store) SetGreenFlag(ctx context.Context, raised bool) error {
	value := "0"
	if raised {
		value = "1"
	}
	return s.SetSetting(ctx, SettingGreenFlag, value)
}
