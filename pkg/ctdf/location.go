package ctdf

import "math"

// Location is a GeoJSON point, coordinates are stored as [longitude, latitude]
type Location struct {
	Type        string    `json:"type" groups:"basic"`
	Coordinates []float64 `json:"coordinates" groups:"basic"`
}

func NewLocation(latitude float64, longitude float64) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{longitude, latitude},
	}
}

func (l *Location) Latitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[1]
}

func (l *Location) Longitude() float64 {
	if len(l.Coordinates) < 2 {
		return 0
	}
	return l.Coordinates[0]
}

func (l *Location) IsValid() bool {
	return l.Type == "Point" && len(l.Coordinates) == 2
}

func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}

	c := &Location{Type: l.Type}
	if l.Coordinates != nil {
		c.Coordinates = append(make([]float64, 0, len(l.Coordinates)), l.Coordinates...)
	}

	return c
}

// Distance returns the great circle distance to another point in metres
func (l *Location) Distance(other *Location) float64 {
	return DistanceKm(l.Latitude(), l.Longitude(), other.Latitude(), other.Longitude()) * 1000
}

// DistanceFromLine returns the shortest distance in metres from the point to the segment a-b.
// The segment is projected onto a local flat plane centred on the point which holds for
// segments of a few kilometres.
// Shameless taken 'inspiration' from https://stackoverflow.com/a/6853926
func (l *Location) DistanceFromLine(a Location, b Location) float64 {
	metresPerDegree := EarthRadiusKm * 1000 * math.Pi / 180
	lonScale := math.Cos(l.Latitude() * math.Pi / 180)

	project := func(p *Location) (float64, float64) {
		return (p.Longitude() - l.Longitude()) * lonScale * metresPerDegree, (p.Latitude() - l.Latitude()) * metresPerDegree
	}

	ax, ay := project(&a)
	bx, by := project(&b)

	C := bx - ax
	D := by - ay

	dot := -ax*C + -ay*D
	lenSq := C*C + D*D

	param := -1.0
	if lenSq != 0 {
		param = dot / lenSq
	}

	var xx, yy float64

	if param < 0 {
		xx = ax
		yy = ay
	} else if param > 1 {
		xx = bx
		yy = by
	} else {
		xx = ax + param*C
		yy = ay + param*D
	}

	return math.Sqrt(xx*xx + yy*yy)
}

// DistanceFromPath returns the distance in metres to the closest segment of the path
func (l *Location) DistanceFromPath(path []Location) float64 {
	if len(path) == 0 {
		return 0
	}
	if len(path) == 1 {
		return l.Distance(&path[0])
	}

	closest := math.MaxFloat64
	for i := 0; i < len(path)-1; i++ {
		distance := l.DistanceFromLine(path[i], path[i+1])

		if distance < closest {
			closest = distance
		}
	}

	return closest
}
