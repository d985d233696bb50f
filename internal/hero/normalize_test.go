package hero

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeJSON produces the same untyped values the client hands to the
// normalizers (all numbers arrive as float64).
func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalizeDoses_FlatList(t *testing.T) {
	payload := decodeJSON(t, `[
		{"scheduled_time": "2025-03-01T08:00:00", "status": "TAKEN",
		 "pills": [{"name": "Aspirin"}, {"name": "Lipitor"}]},
		{"scheduled_time": "2025-03-01T20:00:00", "status": "upcoming", "pills": []}
	]`)

	doses := normalizeDoses(payload)
	require.Len(t, doses, 2)
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), doses[0].ScheduledAt)
	assert.Equal(t, "taken", doses[0].Status)
	assert.Equal(t, []string{"Aspirin", "Lipitor"}, doses[0].Pills)
	assert.Equal(t, "upcoming", doses[1].Status)
	assert.Empty(t, doses[1].Pills)
}

func TestNormalizeDoses_DayBuckets(t *testing.T) {
	payload := decodeJSON(t, `{"doses": [
		{"date": "2025-03-01", "times": [
			{"time": "08:00", "doses": [
				{"status": "taken", "pills": [{"name": "Aspirin"}]}
			]},
			{"time": "20:00", "doses": [
				{"status": "missed", "pills": [{"name": "Aspirin"}]}
			]}
		]}
	]}`)

	doses := normalizeDoses(payload)
	require.Len(t, doses, 2)

	// The bucket's date and time land on every dose in it
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), doses[0].ScheduledAt)
	assert.Equal(t, time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC), doses[1].ScheduledAt)
	assert.Equal(t, "missed", doses[1].Status)
}

func TestNormalizeDoses_NestedMatchesFlat(t *testing.T) {
	// The same dose expressed both ways must project to the same result
	nested := decodeJSON(t, `{"doses": [
		{"date": "2025-03-01", "times": [
			{"time": "08:00", "doses": [{"status": "taken", "pills": [{"name": "Aspirin"}]}]}
		]}
	]}`)
	flat := decodeJSON(t, `[
		{"scheduled_time": "2025-03-01T08:00:00", "status": "taken",
		 "pills": [{"name": "Aspirin"}]}
	]`)

	assert.Equal(t, normalizeDoses(flat), normalizeDoses(nested))
}

func TestNormalizeDoses_Garbage(t *testing.T) {
	assert.Empty(t, normalizeDoses(nil))
	assert.Empty(t, normalizeDoses(decodeJSON(t, `"unexpected"`)))
	assert.Empty(t, normalizeDoses(decodeJSON(t, `{"count": 3}`)))
	assert.Len(t, normalizeDoses(decodeJSON(t, `[42, {"status": "taken"}]`)), 1)
}

func TestNormalizeEvents_FlatList(t *testing.T) {
	payload := decodeJSON(t, `[
		{"timestamp": "2025-03-01T20:15:00", "event_type": "dose_taken",
		 "pills": [{"name": "Aspirin"}]},
		{"timestamp": "2025-03-01T08:05:00", "event_type": "door_opened",
		 "details": "front door"}
	]`)

	events := normalizeEvents(payload)
	require.Len(t, events, 2)

	// Chronological regardless of arrival order
	assert.Equal(t, "door_opened", events[0].Type)
	assert.Equal(t, "front door", events[0].Details)
	assert.Equal(t, "dose_taken", events[1].Type)
	assert.Equal(t, []string{"Aspirin"}, events[1].Pills)
}

func TestNormalizeEvents_DayBuckets(t *testing.T) {
	payload := decodeJSON(t, `[
		{"date": "2025-03-02", "events": [{"type": "refill"}]},
		{"date": "2025-03-01", "events": [{"type": "dose_taken"}]}
	]`)

	events := normalizeEvents(payload)
	require.Len(t, events, 2)
	assert.Equal(t, "dose_taken", events[0].Type)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), events[0].Timestamp)
	assert.Equal(t, "refill", events[1].Type)
}

func TestNormalizeEvents_DateKeyedMap(t *testing.T) {
	payload := decodeJSON(t, `{
		"2025-03-02": [{"type": "refill"}],
		"2025-03-01": [{"type": "dose_taken"}]
	}`)

	events := normalizeEvents(payload)
	require.Len(t, events, 2)
	assert.Equal(t, "dose_taken", events[0].Type)
	assert.Equal(t, "refill", events[1].Type)
}

func TestNormalizeEvents_WrappedList(t *testing.T) {
	payload := decodeJSON(t, `{"events": [{"timestamp": "2025-03-01T08:00:00", "type": "dose_taken"}]}`)
	events := normalizeEvents(payload)
	require.Len(t, events, 1)
	assert.Equal(t, "dose_taken", events[0].Type)
}

func TestNormalizeSlotIndexes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []int
	}{
		{"bare numbers", `[2, 5, 9]`, []int{2, 5, 9}},
		{"objects", `[{"slot_index": 2}, {"slot": 5}, {"index": 9}]`, []int{2, 5, 9}},
		{"wrapped", `{"slots": [1, 3]}`, []int{1, 3}},
		{"results key", `{"results": [{"slot_index": 4}]}`, []int{4}},
		{"mixed garbage", `[2, "five", {"note": "x"}, 7]`, []int{2, 7}},
		{"empty", `[]`, []int{}},
		{"not a list", `{"count": 3}`, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeSlotIndexes(decodeJSON(t, tt.payload)))
		})
	}
}

func TestJoinTakenSlots(t *testing.T) {
	config := asMap(decodeJSON(t, `{"pills": [
		{"slot": 5, "name": "Aspirin", "in_storage": true}
	]}`))

	slots := joinTakenSlots([]int{2, 5}, pillsFromConfig(config))
	require.Len(t, slots, 2)

	// Slot 2 is occupied but has no config entry: name stays absent
	assert.Equal(t, TakenSlot{SlotIndex: 2}, slots[0])
	assert.Equal(t, TakenSlot{SlotIndex: 5, PillName: "Aspirin", InStorage: true}, slots[1])
}

func TestPillsFromConfig_AlternateKeys(t *testing.T) {
	config := asMap(decodeJSON(t, `{"pill_list": [
		{"slot_index": 1, "pill_name": "Metformin", "stored": true}
	]}`))

	pills := pillsFromConfig(config)
	require.Contains(t, pills, 1)
	assert.Equal(t, PillConfig{Name: "Metformin", InStorage: true}, pills[1])
}

func TestNormalizeStats(t *testing.T) {
	t.Run("explicit percentage", func(t *testing.T) {
		stats := normalizeStats(decodeJSON(t, `{"adherence_percentage": 93.27, "taken_count": 28, "total_count": 30}`))
		require.NotNil(t, stats.AdherencePercent)
		assert.Equal(t, 93.3, *stats.AdherencePercent)
		assert.Equal(t, 28, stats.TakenCount)
		assert.Equal(t, 30, stats.TotalCount)
	})

	t.Run("computed from counts", func(t *testing.T) {
		stats := normalizeStats(decodeJSON(t, `{"taken": 3, "missed": 1, "total": 4}`))
		require.NotNil(t, stats.AdherencePercent)
		assert.Equal(t, 75.0, *stats.AdherencePercent)
		assert.Equal(t, 1, stats.MissedCount)
	})

	t.Run("no signal at all", func(t *testing.T) {
		stats := normalizeStats(decodeJSON(t, `{}`))
		assert.Nil(t, stats.AdherencePercent)
	})

	t.Run("not a map", func(t *testing.T) {
		stats := normalizeStats(decodeJSON(t, `[1, 2, 3]`))
		assert.Nil(t, stats.AdherencePercent)
	})
}

func TestNormalizeSupply(t *testing.T) {
	estimate := normalizeSupply(decodeJSON(t, `{
		"remaining_days": 12, "min_days": 10, "max_days": 14,
		"pills_remaining": 24.5, "pills_per_day": 2
	}`))
	assert.Equal(t, 12, estimate.Days)
	assert.Equal(t, 10, estimate.MinDays)
	assert.Equal(t, 14, estimate.MaxDays)
	assert.Equal(t, 24.5, estimate.PillsRemaining)
	assert.Equal(t, 2.0, estimate.PillsPerDay)
	assert.Empty(t, estimate.Error)

	withError := normalizeSupply(decodeJSON(t, `{"error": "no schedule configured"}`))
	assert.Equal(t, "no schedule configured", withError.Error)
	assert.Zero(t, withError.Days)
}

func TestDeviceOnline(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"offline flag true", `{"is_offline": true}`, false},
		{"offline flag false", `{"is_offline": false}`, true},
		{"online flag", `{"online": false}`, false},
		{"flag absent", `{"something": "else"}`, true},
		{"flag malformed", `{"is_offline": "yes"}`, true},
		{"not a map", `[true]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deviceOnline(decodeJSON(t, tt.payload)))
		})
	}
}

func TestParseTime(t *testing.T) {
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), parseTime("2025-03-01T08:00:00Z"))
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), parseTime("2025-03-01 08:00:00"))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), parseTime("2025-03-01"))
	assert.True(t, parseTime("not a time").IsZero())
	assert.True(t, parseTime("").IsZero())
}
