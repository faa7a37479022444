package database

import "strings"

// Dates are stored as YYYY-MM-DD text; instants are stored in UTC.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS referral_codes (
		user_id    TEXT PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		created_at {{timestamp}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS referrals (
		id                  TEXT PRIMARY KEY,
		referrer_id         TEXT NOT NULL,
		referred_email      TEXT NOT NULL,
		referred_student_id TEXT,
		status              TEXT NOT NULL,
		credit_amount       BIGINT NOT NULL DEFAULT 0,
		created_at          {{timestamp}} NOT NULL,
		registered_at       {{timestamp}},
		converted_at        {{timestamp}},
		credited_at         {{timestamp}}
	)`,
	`CREATE INDEX IF NOT EXISTS referrals_student_status_idx ON referrals (referred_student_id, status)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS referrals_one_registered_per_student_idx
		ON referrals (referred_student_id) WHERE status = 'registered'`,
	`CREATE TABLE IF NOT EXISTS terms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		category     TEXT NOT NULL,
		schedule_day TEXT NOT NULL,
		start_time   TEXT NOT NULL,
		end_time     TEXT NOT NULL,
		timezone     TEXT NOT NULL,
		term_id      TEXT NOT NULL,
		active       BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id                       TEXT PRIMARY KEY,
		display_name             TEXT NOT NULL,
		email                    TEXT NOT NULL,
		timezone                 TEXT NOT NULL DEFAULT '',
		locale                   TEXT NOT NULL DEFAULT '',
		role                     TEXT NOT NULL,
		notification_preferences TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		class_id   TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		PRIMARY KEY (class_id, profile_id)
	)`,
	`CREATE TABLE IF NOT EXISTS report_cards (
		id           TEXT PRIMARY KEY,
		student_id   TEXT NOT NULL,
		coach_id     TEXT NOT NULL,
		term_id      TEXT NOT NULL,
		status       TEXT NOT NULL,
		file_path    TEXT NOT NULL DEFAULT '',
		review_note  TEXT NOT NULL DEFAULT '',
		reviewer_id  TEXT NOT NULL DEFAULT '',
		created_at   {{timestamp}} NOT NULL,
		submitted_at {{timestamp}},
		reviewed_at  {{timestamp}}
	)`,
	`CREATE TABLE IF NOT EXISTS coaches (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		hourly_rate  NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS class_sessions (
		id               TEXT PRIMARY KEY,
		class_id         TEXT NOT NULL,
		coach_id         TEXT NOT NULL,
		session_date     TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		attendee_count   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS reminder_log (
		class_id      TEXT NOT NULL,
		session_date  TEXT NOT NULL,
		profile_id    TEXT NOT NULL,
		reminder_type TEXT NOT NULL,
		claimed_at    {{timestamp}} NOT NULL,
		PRIMARY KEY (class_id, session_date, profile_id, reminder_type)
	)`,
}

func schema(driver string) []string {
	ts := "TIMESTAMP"
	if driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = strings.ReplaceAll(t, "{{timestamp}}", ts)
	}
	return out
}
