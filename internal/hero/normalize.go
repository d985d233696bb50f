package hero

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Per-endpoint normalization. The cloud API has no stable response shapes: a
// payload may be a bare sequence, a mapping with varying key names, or carry
// nested hierarchies. Each function here probes an ordered list of candidate
// shapes and field names exactly once and emits a fixed internal type, so the
// uncertainty never leaks past this file.

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime parses a timestamp string, returning the zero time on failure.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// unwrap returns the first list found under one of the candidate keys, or the
// payload itself when it already is a list.
func unwrap(payload any, keys ...string) []any {
	if s, ok := payload.([]any); ok {
		return s
	}
	m := asMap(payload)
	for _, key := range keys {
		if s, ok := m[key].([]any); ok {
			return s
		}
	}
	return nil
}

// firstString returns the first non-empty string among the candidate keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstNumber returns the first numeric value among the candidate keys.
func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}

// pillNames extracts display names from a pill list payload.
func pillNames(v any) []string {
	names := []string{}
	for _, item := range asSlice(v) {
		m := asMap(item)
		if m == nil {
			continue
		}
		if name := firstString(m, "name", "drug_name", "pill_name"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// normalizeDoses flattens the home-screen-doses payload into a flat dose list.
// Accepts either an already-flat list of dose objects (a projection, so
// feeding flat input through changes nothing) or a nested date -> time -> dose
// hierarchy, denormalizing the scheduled timestamp onto each dose.
func normalizeDoses(payload any) []Dose {
	doses := []Dose{}
	for _, item := range unwrap(payload, "doses", "results") {
		m := asMap(item)
		if m == nil {
			continue
		}

		// Day bucket: {"date": ..., "times": [{"time": ..., "doses": [...]}]}
		buckets := asSlice(m["times"])
		if buckets == nil {
			buckets = asSlice(m["schedules"])
		}
		if buckets != nil {
			date := firstString(m, "date", "day")
			for _, bucket := range buckets {
				bm := asMap(bucket)
				if bm == nil {
					continue
				}
				timeOfDay := firstString(bm, "time", "scheduled_time")
				for _, d := range asSlice(bm["doses"]) {
					if dm := asMap(d); dm != nil {
						doses = append(doses, projectDose(dm, date, timeOfDay))
					}
				}
			}
			continue
		}

		doses = append(doses, projectDose(m, "", ""))
	}
	return doses
}

func projectDose(m map[string]any, date, timeOfDay string) Dose {
	return Dose{
		ScheduledAt: doseTime(m, date, timeOfDay),
		Status:      strings.ToLower(firstString(m, "status")),
		Pills:       pillNames(m["pills"]),
	}
}

func doseTime(m map[string]any, date, timeOfDay string) time.Time {
	candidate := firstString(m, "scheduled_time", "time", "schedule_time")
	if t := parseTime(candidate); !t.IsZero() {
		return t
	}
	if candidate == "" {
		candidate = timeOfDay
	}
	if date != "" && candidate != "" {
		if t := parseTime(date + "T" + candidate + ":00"); !t.IsZero() {
			return t
		}
		if t := parseTime(date + "T" + candidate); !t.IsZero() {
			return t
		}
	}
	if date != "" {
		return parseTime(date)
	}
	return time.Time{}
}

// normalizeEvents flattens the events payload into a flat, chronologically
// ordered event list. Accepts a flat list, a list of per-day buckets, or a
// mapping keyed by date.
func normalizeEvents(payload any) []Event {
	events := []Event{}

	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			m := asMap(item)
			if m == nil {
				continue
			}
			// Day bucket: {"date": ..., "events": [...]}
			if bucket := asSlice(m["events"]); bucket != nil {
				date := firstString(m, "date", "day")
				for _, e := range bucket {
					if em := asMap(e); em != nil {
						events = append(events, projectEvent(em, date))
					}
				}
				continue
			}
			events = append(events, projectEvent(m, ""))
		}
	case map[string]any:
		if inner := unwrap(v, "events", "results"); inner != nil {
			return normalizeEvents(inner)
		}
		// Date-keyed buckets: {"2025-03-01": [...], ...}
		for date, bucket := range v {
			for _, e := range asSlice(bucket) {
				if em := asMap(e); em != nil {
					events = append(events, projectEvent(em, date))
				}
			}
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func projectEvent(m map[string]any, date string) Event {
	ts := parseTime(firstString(m, "timestamp", "time", "created_at", "event_time"))
	if ts.IsZero() && date != "" {
		ts = parseTime(date)
	}
	return Event{
		Timestamp: ts,
		Type:      firstString(m, "event_type", "type", "action"),
		Details:   firstString(m, "details", "description", "message"),
		Pills:     pillNames(m["pills"]),
	}
}

// normalizeSlotIndexes coerces the taken-slots payload into a canonical
// sequence of slot numbers. The payload arrives either as a bare sequence
// (of numbers or objects) or as a mapping with a slots/results field.
func normalizeSlotIndexes(payload any) []int {
	indexes := []int{}
	for _, item := range unwrap(payload, "slots", "results") {
		switch v := item.(type) {
		case float64:
			indexes = append(indexes, int(v))
		case map[string]any:
			if n, ok := firstNumber(v, "slot_index", "slot", "index"); ok {
				indexes = append(indexes, int(n))
			}
		}
	}
	return indexes
}

// pillsFromConfig extracts the pill list from the device configuration,
// keyed by slot number.
func pillsFromConfig(config map[string]any) map[int]PillConfig {
	pills := map[int]PillConfig{}
	list := asSlice(config["pills"])
	if list == nil {
		list = asSlice(config["pill_list"])
	}
	if list == nil {
		list = asSlice(config["medications"])
	}
	for _, item := range list {
		m := asMap(item)
		if m == nil {
			continue
		}
		slot, ok := firstNumber(m, "slot", "slot_index", "index")
		if !ok {
			continue
		}
		inStorage, _ := m["in_storage"].(bool)
		if !inStorage {
			inStorage, _ = m["stored"].(bool)
		}
		pills[int(slot)] = PillConfig{
			Name:      firstString(m, "name", "pill_name", "drug_name"),
			InStorage: inStorage,
		}
	}
	return pills
}

// joinTakenSlots joins occupied slot numbers against the device
// configuration's pill list. Slots with no config entry keep an absent name.
func joinTakenSlots(indexes []int, pills map[int]PillConfig) []TakenSlot {
	slots := make([]TakenSlot, 0, len(indexes))
	for _, index := range indexes {
		slot := TakenSlot{SlotIndex: index}
		if pc, ok := pills[index]; ok {
			slot.PillName = pc.Name
			slot.InStorage = pc.InStorage
		}
		slots = append(slots, slot)
	}
	return slots
}

// normalizeStats extracts the adherence summary, computing the percentage
// from taken/total counts when no explicit percentage field is present.
func normalizeStats(payload any) AdherenceStats {
	m := asMap(payload)
	if m == nil {
		return AdherenceStats{}
	}

	stats := AdherenceStats{
		Period: firstString(m, "period"),
	}
	if n, ok := firstNumber(m, "taken_count", "taken"); ok {
		stats.TakenCount = int(n)
	}
	if n, ok := firstNumber(m, "missed_count", "missed"); ok {
		stats.MissedCount = int(n)
	}
	if n, ok := firstNumber(m, "total_count", "total"); ok {
		stats.TotalCount = int(n)
	}

	if pct, ok := firstNumber(m, "adherence_percentage", "adherence", "adherence_rate", "percentage"); ok {
		rounded := math.Round(pct*10) / 10
		stats.AdherencePercent = &rounded
	} else if stats.TotalCount > 0 {
		computed := math.Round(float64(stats.TakenCount)/float64(stats.TotalCount)*1000) / 10
		stats.AdherencePercent = &computed
	}
	return stats
}

// normalizeSupply extracts the remaining-supply estimate for one slot.
func normalizeSupply(payload any) SupplyEstimate {
	m := asMap(payload)
	if m == nil {
		return SupplyEstimate{}
	}

	estimate := SupplyEstimate{
		Error: firstString(m, "error", "error_message"),
	}
	if n, ok := firstNumber(m, "remaining_days", "days_remaining", "days", "exact_days"); ok {
		estimate.Days = int(n)
	}
	if n, ok := firstNumber(m, "min_days", "minimum_days"); ok {
		estimate.MinDays = int(n)
	}
	if n, ok := firstNumber(m, "max_days", "maximum_days"); ok {
		estimate.MaxDays = int(n)
	}
	if n, ok := firstNumber(m, "pills_remaining", "remaining", "pill_count"); ok {
		estimate.PillsRemaining = n
	}
	if n, ok := firstNumber(m, "pills_per_day", "daily_count"); ok {
		estimate.PillsPerDay = n
	}
	return estimate
}

// deviceOnline derives connectivity from the offline-check payload. An absent
// or malformed flag reads as online, so a transient parsing miss cannot flip
// a connectivity reading.
func deviceOnline(payload any) bool {
	m := asMap(payload)
	if m == nil {
		return true
	}
	if offline, ok := m["is_offline"].(bool); ok {
		return !offline
	}
	if online, ok := m["online"].(bool); ok {
		return online
	}
	return true
}

// asMapSlice coerces a payload into a list of objects, dropping anything else.
func asMapSlice(payload any) []map[string]any {
	out := []map[string]any{}
	for _, item := range unwrap(payload, "results") {
		if m := asMap(item); m != nil {
			out = append(out, m)
		}
	}
	return out
}
