package preference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMalformedInput(t *testing.T) {
	inputs := map[string]string{
		"empty":       "",
		"null":        "null",
		"array":       `["class_reminders"]`,
		"string":      `"none"`,
		"number":      `42`,
		"broken":      `{"class_reminders":`,
		"nested only": `{"prefs":{"class_reminders":"none"}}`,
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			p := Parse([]byte(raw))
			assert.True(t, p.ShouldSend(KeyEmailNotifications, true))
			assert.Equal(t, ReminderBoth, p.ClassReminderPreference())
			assert.True(t, p.AllowsReminder(ReminderTypeDayBefore))
		})
	}
}

func TestShouldSend(t *testing.T) {
	p := Parse([]byte(`{"email_notifications": false, "sms": "yes", "push": true}`))

	assert.False(t, p.ShouldSend("email_notifications", true))
	assert.True(t, p.ShouldSend("push", false))
	assert.True(t, p.ShouldSend("sms", true), "non-boolean falls back to default")
	assert.False(t, p.ShouldSend("sms", false))
	assert.False(t, p.ShouldSend("missing", false))

	var nilPrefs Preferences
	assert.True(t, nilPrefs.ShouldSend("anything", true))
}

func TestClassReminderPreference(t *testing.T) {
	tests := []struct {
		raw  string
		want ReminderSetting
	}{
		{`{"class_reminders":"both"}`, ReminderBoth},
		{`{"class_reminders":"none"}`, ReminderNone},
		{`{"class_reminders":"1day"}`, ReminderDay},
		{`{"class_reminders":"1hour"}`, ReminderHour},
		{`{"class_reminders":" 1DAY "}`, ReminderDay},
		{`{"class_reminders":"off"}`, ReminderNone},
		{`{"class_reminders":"24h"}`, ReminderDay},
		{`{"class_reminders":"1h"}`, ReminderHour},
		{`{"class_reminders":true}`, ReminderBoth},
		{`{"class_reminders":false}`, ReminderNone},
		{`{"class_reminders":"weekly"}`, ReminderBoth},
		{`{"class_reminders":3}`, ReminderBoth},
		{`{"class_reminders":null}`, ReminderBoth},
		{`{}`, ReminderBoth},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse([]byte(tt.raw)).ClassReminderPreference())
		})
	}
}

func TestAllowsReminder(t *testing.T) {
	tests := []struct {
		setting string
		day     bool
		hour    bool
	}{
		{"none", false, false},
		{"both", true, true},
		{"1day", true, false},
		{"1hour", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			p := FromValue(map[string]any{KeyClassReminders: tt.setting})
			assert.Equal(t, tt.day, p.AllowsReminder(ReminderTypeDayBefore))
			assert.Equal(t, tt.hour, p.AllowsReminder(ReminderTypeHourBefore))
		})
	}
}

func TestAllowsReminderEmail(t *testing.T) {
	off := FromValue(map[string]any{KeyEmailNotifications: false, KeyClassReminders: "both"})
	assert.False(t, off.AllowsReminderEmail(ReminderTypeHourBefore))

	on := FromValue(map[string]any{KeyClassReminders: "1hour"})
	assert.True(t, on.AllowsReminderEmail(ReminderTypeHourBefore))
	assert.False(t, on.AllowsReminderEmail(ReminderTypeDayBefore))

	assert.True(t, FromValue([]any{"x"}).AllowsReminderEmail(ReminderTypeDayBefore))
}
