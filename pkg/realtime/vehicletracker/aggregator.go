package vehicletracker

import (
	"math"

	"github.com/travigo/fleettracker/pkg/ctdf"
)

// aggregate folds the newest history entry into the performance counters
func aggregate(session *ctdf.TrackingSession, entry ctdf.LocationHistoryEntry) {
	performance := &session.Performance

	performance.TotalDistance += entry.DistanceFromPrevious / 1000
	performance.MaxSpeed = math.Max(performance.MaxSpeed, entry.Speed)
	performance.AverageSpeed = averageSpeed(session.History)
}

func averageSpeed(history []ctdf.LocationHistoryEntry) float64 {
	if len(history) == 0 {
		return 0
	}

	total := 0.0
	for _, entry := range history {
		total += entry.Speed
	}

	return total / float64(len(history))
}

// updateRouteProgress derives completion from the distance travelled against the planned route
func updateRouteProgress(session *ctdf.TrackingSession) {
	progress := &session.RouteProgress
	progress.DistanceFromOrigin = session.Performance.TotalDistance

	// reaching the destination geofence always wins over the odometer estimate
	if progress.RouteDistance > 0 && progress.CompletionPercentage < 100 {
		progress.EstimatedRemaining = math.Max(0, progress.RouteDistance-session.Performance.TotalDistance)
		progress.CompletionPercentage = clampPercentage(session.Performance.TotalDistance / progress.RouteDistance * 100)
	}
	if progress.CompletionPercentage >= 100 {
		progress.EstimatedRemaining = 0
	}

	progress.NextWaypoint = ""
	for _, geofence := range session.Geofences {
		if geofence.Type.IsWaypoint() && geofence.EnteredAt.IsZero() {
			progress.NextWaypoint = geofence.Name
			break
		}
	}
}

func clampPercentage(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Min(100, math.Max(0, p))
}
