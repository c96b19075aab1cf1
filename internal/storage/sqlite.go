package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"teamup/internal/domain"
	logx "teamup/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- device tokens ----

func (s *sqliteStore) UpsertToken(ctx context.Context, t domain.DeviceToken) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_tokens(user_id, token, platform, device_id, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(user_id, token) DO UPDATE SET
		   platform=excluded.platform,
		   device_id=excluded.device_id,
		   updated_at=excluded.updated_at`,
		t.UserID, t.Token, string(t.Platform), nullStr(t.DeviceID), t.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) DeleteToken(ctx context.Context, userID int64, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) DeleteUserTokens(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = ?`, userID)
	return err
}

func (s *sqliteStore) DeleteTokenValue(ctx context.Context, token string) (int64, bool, error) {
	var ownerID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM device_tokens WHERE token = ? LIMIT 1`, token).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token); err != nil {
		return 0, false, err
	}
	return ownerID, true, nil
}

func (s *sqliteStore) RenewToken(ctx context.Context, userID int64, oldToken, newToken string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE device_tokens SET token = ?, updated_at = ? WHERE user_id = ? AND token = ?`,
		newToken, time.Now().UnixMilli(), userID, oldToken)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) TokensByUser(ctx context.Context, userID int64) ([]domain.DeviceToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, token, platform, COALESCE(device_id, ''), updated_at
		 FROM device_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeviceToken
	for rows.Next() {
		var t domain.DeviceToken
		var platform string
		var ms int64
		if err := rows.Scan(&t.UserID, &t.Token, &platform, &t.DeviceID, &ms); err != nil {
			return nil, err
		}
		t.Platform = domain.Platform(platform)
		t.UpdatedAt = time.UnixMilli(ms)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountTokens(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM device_tokens WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// ---- channel preferences ----

func (s *sqliteStore) GetPreference(ctx context.Context, userID int64, ch domain.Channel) (domain.PreferenceFlags, bool, error) {
	var f domain.PreferenceFlags
	err := s.db.QueryRowContext(ctx,
		`SELECT invites, direct_messages, reminders, wallet, generic
		 FROM channel_prefs WHERE user_id = ? AND channel = ?`,
		userID, string(ch)).Scan(&f.Invites, &f.DirectMessages, &f.Reminders, &f.Wallet, &f.Generic)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PreferenceFlags{}, false, nil
	}
	if err != nil {
		return domain.PreferenceFlags{}, false, err
	}
	return f, true, nil
}

func (s *sqliteStore) PutPreference(ctx context.Context, userID int64, ch domain.Channel, f domain.PreferenceFlags) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_prefs(user_id, channel, invites, direct_messages, reminders, wallet, generic)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(user_id, channel) DO UPDATE SET
		   invites=excluded.invites,
		   direct_messages=excluded.direct_messages,
		   reminders=excluded.reminders,
		   wallet=excluded.wallet,
		   generic=excluded.generic`,
		userID, string(ch), f.Invites, f.DirectMessages, f.Reminders, f.Wallet, f.Generic)
	return err
}

func (s *sqliteStore) DeletePreference(ctx context.Context, userID int64, ch domain.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM channel_prefs WHERE user_id = ? AND channel = ?`, userID, string(ch))
	return err
}

// ---- mutes ----

func (s *sqliteStore) PutMute(ctx context.Context, m domain.Mute) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mutes(user_id, context_type, context_id) VALUES(?,?,?)
		 ON CONFLICT(user_id, context_type, context_id) DO NOTHING`,
		m.UserID, string(m.Context), m.ContextID)
	return err
}

func (s *sqliteStore) DeleteMute(ctx context.Context, m domain.Mute) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM mutes WHERE user_id = ? AND context_type = ? AND context_id = ?`,
		m.UserID, string(m.Context), m.ContextID)
	return err
}

func (s *sqliteStore) IsMuted(ctx context.Context, userID int64, mc domain.MuteContext, contextID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM mutes WHERE user_id = ? AND context_type = ? AND context_id = ?`,
		userID, string(mc), contextID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---- OTP records ----

func (s *sqliteStore) InsertOtp(ctx context.Context, rec OtpRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO otp_codes(code, telegram_id, chat_id, prompt_message_id, code_message_id, created_at, expires_at)
		 VALUES(?,?,?,?,?,?,?)`,
		rec.Code, rec.TelegramID, rec.ChatID, rec.PromptMessageID, rec.CodeMessageID,
		rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) OtpByCode(ctx context.Context, code string, now time.Time) (OtpRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, telegram_id, chat_id, prompt_message_id, code_message_id, created_at, expires_at
		 FROM otp_codes WHERE code = ? AND expires_at > ? LIMIT 1`,
		code, now.UnixMilli())
	rec, err := scanOtp(row)
	if errors.Is(err, sql.ErrNoRows) {
		return OtpRecord{}, false, nil
	}
	if err != nil {
		return OtpRecord{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) OtpByIdentity(ctx context.Context, telegramID int64) ([]OtpRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, telegram_id, chat_id, prompt_message_id, code_message_id, created_at, expires_at
		 FROM otp_codes WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOtp(rows)
}

func (s *sqliteStore) DeleteOtp(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) ExpiredOtp(ctx context.Context, now time.Time) ([]OtpRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, telegram_id, chat_id, prompt_message_id, code_message_id, created_at, expires_at
		 FROM otp_codes WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOtp(rows)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOtp(row rowScanner) (OtpRecord, error) {
	var rec OtpRecord
	var created, expires int64
	err := row.Scan(&rec.ID, &rec.Code, &rec.TelegramID, &rec.ChatID,
		&rec.PromptMessageID, &rec.CodeMessageID, &created, &expires)
	if err != nil {
		return OtpRecord{}, err
	}
	rec.CreatedAt = time.UnixMilli(created)
	rec.ExpiresAt = time.UnixMilli(expires)
	return rec, nil
}

func collectOtp(rows *sql.Rows) ([]OtpRecord, error) {
	var out []OtpRecord
	for rows.Next() {
		rec, err := scanOtp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- pinned refs ----

func (s *sqliteStore) GetPinnedRef(ctx context.Context, localityID int64) (PinnedRef, bool, error) {
	var ref PinnedRef
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT locality_id, chat_id, message_id, updated_at FROM pinned_refs WHERE locality_id = ?`,
		localityID).Scan(&ref.LocalityID, &ref.ChatID, &ref.MessageID, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return PinnedRef{}, false, nil
	}
	if err != nil {
		return PinnedRef{}, false, err
	}
	ref.UpdatedAt = time.UnixMilli(ms)
	return ref, true, nil
}

func (s *sqliteStore) PutPinnedRef(ctx context.Context, ref PinnedRef) error {
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pinned_refs(locality_id, chat_id, message_id, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(locality_id) DO UPDATE SET
		   chat_id=excluded.chat_id,
		   message_id=excluded.message_id,
		   updated_at=excluded.updated_at`,
		ref.LocalityID, ref.ChatID, ref.MessageID, ref.UpdatedAt.UnixMilli())
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
