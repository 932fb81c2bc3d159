package decision

import (
	"math"
	"sort"

	"github.com/velibadvisor/velibadvisor/internal/routing"
	"github.com/velibadvisor/velibadvisor/internal/velib"
)

// Comparison thresholds, as ratios of the alternative duration.
const (
	clearlyFasterRatio = 0.8
	clearlySlowerRatio = 1.2
	abundantRatio      = 1.1

	// abundantSupply is the availability above which both ends are considered safe.
	abundantSupply = 3
)

// ShouldRecommend compares the Vélib time with the alternative time.
// Within 20% of each other, abundant supply on both ends tolerates a Vélib
// trip up to 10% slower; marginal supply requires it to be strictly faster.
func ShouldRecommend(velibSeconds, alternativeSeconds float64, departureAvailability, arrivalAvailability int) bool {
	switch {
	case velibSeconds < alternativeSeconds*clearlyFasterRatio:
		return true
	case velibSeconds > alternativeSeconds*clearlySlowerRatio:
		return false
	case departureAvailability > abundantSupply && arrivalAvailability > abundantSupply:
		return velibSeconds <= alternativeSeconds*abundantRatio
	default:
		return velibSeconds < alternativeSeconds
	}
}

// BestStations ranks the stations that have the resource available by
// walking time plus a penalty for scarce supply and returns at most
// StationCount of them. Only stations within PreferredStationMeters are
// ranked when any exist; otherwise the nearest ones are.
func (c Config) BestStations(stations []velib.Station, resource velib.Resource) []velib.Station {
	available := make([]velib.Station, 0, len(stations))
	for _, s := range stations {
		if s.Available(resource) > 0 {
			available = append(available, s)
		}
	}

	candidates := make([]velib.Station, 0, len(available))
	for _, s := range available {
		if s.DistanceMeters <= c.PreferredStationMeters {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		candidates = available
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].DistanceMeters < candidates[j].DistanceMeters
		})
		if len(candidates) > c.StationCount {
			candidates = candidates[:c.StationCount]
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := c.score(candidates[i], resource), c.score(candidates[j], resource)
		if si != sj {
			return si < sj
		}
		return candidates[i].DistanceMeters < candidates[j].DistanceMeters
	})

	if len(candidates) > c.StationCount {
		candidates = candidates[:c.StationCount]
	}
	return candidates
}

func (c Config) score(s velib.Station, resource velib.Resource) int {
	if s.Available(resource) < c.ScarcityThreshold {
		return s.WalkDurationSeconds + c.ScarcityPenaltySeconds
	}
	return s.WalkDurationSeconds
}

// VelibTime splits the door-to-door Vélib time for a cycling route between
// the given stations. Walks are capped at MaxWalkSeconds per side and
// short routes use the short-trip buffer.
func (c Config) VelibTime(route routing.RouteResult, departure, arrival velib.Station) Breakdown {
	buffer := c.BufferSeconds
	if route.DistanceMeters < c.ShortTripMeters {
		buffer = c.ShortTripBufferSeconds
	}

	return Breakdown{
		CyclingSeconds:       int(math.Round(math.Max(route.DurationSeconds, 0))),
		DepartureWalkSeconds: min(max(departure.WalkDurationSeconds, 0), c.MaxWalkSeconds),
		ArrivalWalkSeconds:   min(max(arrival.WalkDurationSeconds, 0), c.MaxWalkSeconds),
		BufferSeconds:        buffer,
	}
}
