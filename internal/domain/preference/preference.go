// Package preference reads schema-less notification preferences. Stored
// values are arbitrary JSON; every accessor has a safe default and none of
// them fails on malformed input.
package preference

import (
	"encoding/json"
	"strings"
)

// Keys read from the preference blob.
const (
	KeyClassReminders     = "class_reminders"
	KeyEmailNotifications = "email_notifications"
)

// ReminderSetting is the canonical class-reminder preference.
type ReminderSetting string

const (
	ReminderBoth ReminderSetting = "both"
	ReminderDay  ReminderSetting = "1day"
	ReminderHour ReminderSetting = "1hour"
	ReminderNone ReminderSetting = "none"
)

// ReminderType is a class of reminder a dispatcher wants to send.
type ReminderType string

const (
	ReminderTypeDayBefore  ReminderType = "1day"
	ReminderTypeHourBefore ReminderType = "1hour"
)

// Preferences is a parsed preference blob. The zero value means "nothing set".
type Preferences map[string]any

// Parse decodes raw JSON. Anything that is not a JSON object yields empty
// preferences.
func Parse(raw []byte) Preferences {
	if len(raw) == 0 {
		return Preferences{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Preferences{}
	}
	return FromValue(v)
}

// FromValue accepts an already-decoded value.
func FromValue(v any) Preferences {
	switch m := v.(type) {
	case map[string]any:
		return Preferences(m)
	case Preferences:
		return m
	default:
		return Preferences{}
	}
}

// ShouldSend returns the boolean stored at key, or def when the key is
// missing or not a boolean.
func (p Preferences) ShouldSend(key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// ClassReminderPreference maps current and legacy encodings to a canonical
// setting. Unrecognized values resolve to ReminderBoth: reminders are only
// suppressed on an exact, known opt-out.
func (p Preferences) ClassReminderPreference() ReminderSetting {
	switch v := p[KeyClassReminders].(type) {
	case bool:
		if v {
			return ReminderBoth
		}
		return ReminderNone
	case string:
		return parseReminderSetting(v)
	default:
		return ReminderBoth
	}
}

func parseReminderSetting(s string) ReminderSetting {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "off", "disabled":
		return ReminderNone
	case "1day", "day", "24h", "1d":
		return ReminderDay
	case "1hour", "hour", "60m", "1h":
		return ReminderHour
	default:
		// "both", "all", "on" and anything unknown
		return ReminderBoth
	}
}

// AllowsReminder decides whether a reminder of type t may be sent.
func (p Preferences) AllowsReminder(t ReminderType) bool {
	switch p.ClassReminderPreference() {
	case ReminderNone:
		return false
	case ReminderDay:
		return t == ReminderTypeDayBefore
	case ReminderHour:
		return t == ReminderTypeHourBefore
	default:
		return true
	}
}

// AllowsReminderEmail combines the global email switch with the reminder
// setting.
func (p Preferences) AllowsReminderEmail(t ReminderType) bool {
	return p.ShouldSend(KeyEmailNotifications, true) && p.AllowsReminder(t)
}
