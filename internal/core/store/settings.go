package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/notelens/notelens/internal/core"
)

// Setting keys. Everything user-scoped lives in the settings table so a
// credential swap or license refresh is a couple of upserts.
const (
	settingAPIKey        = "api_key"
	settingAPIKeyValid   = "api_key_valid"
	settingLicenseKey    = "license_key"
	settingLicenseStatus = "license_status"
	settingLicenseEmail  = "license_email"
	settingLicenseTime   = "license_verified_at"
)

// APIKey returns the stored credential and whether it last validated.
func (s *Store) APIKey(ctx context.Context) (key string, valid bool, err error) {
	key, err = s.getSetting(ctx, settingAPIKey)
	if err != nil {
		return "", false, err
	}

	validRaw, err := s.getSetting(ctx, settingAPIKeyValid)
	if err != nil {
		return "", false, err
	}

	return key, validRaw == "1", nil
}

// SetAPIKey persists a new credential. Validity resets until the next
// explicit validation.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	if err := s.setSetting(ctx, settingAPIKey, key); err != nil {
		return err
	}
	return s.setSetting(ctx, settingAPIKeyValid, "0")
}

// SetAPIKeyValid records the outcome of a credential validation.
func (s *Store) SetAPIKeyValid(ctx context.Context, valid bool) error {
	value := "0"
	if valid {
		value = "1"
	}
	return s.setSetting(ctx, settingAPIKeyValid, value)
}

// License returns the persisted license, or nil when none is stored.
func (s *Store) License(ctx context.Context) (*core.License, error) {
	key, err := s.getSetting(ctx, settingLicenseKey)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}

	status, err := s.getSetting(ctx, settingLicenseStatus)
	if err != nil {
		return nil, err
	}
	email, err := s.getSetting(ctx, settingLicenseEmail)
	if err != nil {
		return nil, err
	}
	verifiedRaw, err := s.getSetting(ctx, settingLicenseTime)
	if err != nil {
		return nil, err
	}

	license := &core.License{
		Key:    key,
		Status: core.LicenseStatus(status),
		Email:  email,
	}
	if unix, err := strconv.ParseInt(verifiedRaw, 10, 64); err == nil {
		license.VerifiedAt = time.Unix(unix, 0).UTC()
	}

	return license, nil
}

// SaveLicense persists a verified license.
func (s *Store) SaveLicense(ctx context.Context, license core.License) error {
	if err := s.setSetting(ctx, settingLicenseKey, license.Key); err != nil {
		return err
	}
	if err := s.setSetting(ctx, settingLicenseStatus, string(license.Status)); err != nil {
		return err
	}
	if err := s.setSetting(ctx, settingLicenseEmail, license.Email); err != nil {
		return err
	}
	return s.setSetting(ctx, settingLicenseTime, strconv.FormatInt(license.VerifiedAt.UTC().Unix(), 10))
}

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	row := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch setting %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	return nil
}
