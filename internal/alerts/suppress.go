package alerts

import (
	"strconv"
	"strings"
	"time"

	"github.com/northbridge/tenderops/internal/models"
)

// Suppress decides whether a delivery to one recipient on one channel should
// be skipped. Pure computation; rate counts are passed in by the caller.
// Critical alerts bypass quiet hours but nothing else.
func Suppress(pref *models.UserAlertPreference, channel, priority string, now time.Time, hourCount, dayCount int) (bool, string) {
	if !pref.ChannelEnabled(channel) {
		return true, "channel disabled"
	}
	if models.PriorityRank(priority) < models.PriorityRank(pref.MinPriority) {
		return true, "below minimum priority"
	}
	if priority != models.PriorityCritical && pref.QuietHoursEnabled &&
		inDailyWindow(now, pref.QuietHoursStart, pref.QuietHoursEnd) {
		return true, "quiet hours"
	}
	if pref.DNDEnabled && (pref.DNDUntil == nil || now.Before(*pref.DNDUntil)) {
		return true, "do not disturb"
	}
	if pref.MaxPerHour > 0 && hourCount >= pref.MaxPerHour {
		return true, "hourly rate cap reached"
	}
	if pref.MaxPerDay > 0 && dayCount >= pref.MaxPerDay {
		return true, "daily rate cap reached"
	}
	return false, ""
}

// inDailyWindow reports whether now's local time of day falls inside the
// [start, end) window. A window with start > end wraps past midnight.
func inDailyWindow(now time.Time, start, end string) bool {
	startMin, ok1 := parseClock(start)
	endMin, ok2 := parseClock(end)
	if !ok1 || !ok2 || startMin == endMin {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	if startMin < endMin {
		return cur >= startMin && cur < endMin
	}
	return cur >= startMin || cur < endMin
}

// parseClock parses "HH:MM".
func parseClock(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
