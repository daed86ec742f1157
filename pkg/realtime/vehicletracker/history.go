package vehicletracker

import (
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
)

// appendHistory records the sample against the previous top of history and evicts the
// oldest entries so at most historyCap remain
func appendHistory(session *ctdf.TrackingSession, update *ctdf.LocationUpdate, timestamp time.Time, receivedAt time.Time, historyCap int) ctdf.LocationHistoryEntry {
	entry := ctdf.LocationHistoryEntry{
		Latitude:   update.Latitude,
		Longitude:  update.Longitude,
		Speed:      update.SpeedValue(),
		Heading:    update.HeadingValue(),
		Altitude:   update.AltitudeValue(),
		Accuracy:   update.AccuracyValue(),
		Address:    update.Address,
		Timestamp:  timestamp,
		ReceivedAt: receivedAt,
	}

	if len(session.History) > 0 {
		previous := session.History[len(session.History)-1]

		entry.DistanceFromPrevious = ctdf.DistanceKm(previous.Latitude, previous.Longitude, entry.Latitude, entry.Longitude) * 1000

		elapsed := timestamp.Sub(previous.Timestamp)
		if elapsed < 0 {
			entry.OutOfOrder = true
			elapsed = 0
		}
		entry.TimeSinceLastUpdate = elapsed.Seconds()
	}

	session.History = append(session.History, entry)

	if overflow := len(session.History) - historyCap; overflow > 0 {
		// copy down so the backing array does not keep growing
		session.History = append(session.History[:0], session.History[overflow:]...)
	}

	return entry
}

// historySince returns the entries whose sample time is after the cutoff
func historySince(history []ctdf.LocationHistoryEntry, cutoff time.Time) []ctdf.LocationHistoryEntry {
	entries := []ctdf.LocationHistoryEntry{}

	for _, entry := range history {
		if entry.Timestamp.After(cutoff) {
			entries = append(entries, entry)
		}
	}

	return entries
}
