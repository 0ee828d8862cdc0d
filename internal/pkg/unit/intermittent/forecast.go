package intermittent

import (
	"math"
	"time"
)

const (
	solarConstant = 1353.0
	// standard test condition irradiance, W/m^2
	ratedIrradiance = 1000.0
	degToRad        = math.Pi / 180
)

// ClearSky is a cloudless irradiance model of a fixed solar array. Angles are
// in degrees, Elevation in km and Rating in the unit's power scale.
type ClearSky struct {
	Rating    float64
	Tilt      float64
	Latitude  float64
	Elevation float64
}

// Profile returns n availability values starting at start, step apart. Each
// value is the rating derated by the plane of array irradiance and never
// exceeds the rating.
func (c ClearSky) Profile(start time.Time, step time.Duration, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		p := c.Rating * c.Irradiance(start.Add(time.Duration(i)*step)) / ratedIrradiance
		out[i] = math.Min(math.Max(p, 0), c.Rating)
	}
	return out
}

// Irradiance is the plane of array irradiance in W/m^2 at t. Diffuse light
// is collected when the sun is behind the array.
func (c ClearSky) Irradiance(t time.Time) float64 {
	if !c.daylight(t) {
		return 0
	}
	direct := c.direct(t)
	diffuse := 0.1 * direct
	incidence := c.incidence(t)
	if incidence > math.Pi/2 {
		return diffuse
	}
	return direct*math.Cos(incidence) + diffuse
}

func (c ClearSky) direct(t time.Time) float64 {
	am := 1 / math.Cos(math.Pi/2-c.elevationAngle(t))
	attenuated := math.Pow(0.7, math.Pow(am, 0.678))
	h := 0.14 * c.Elevation
	return solarConstant * (attenuated*(1-h) + h)
}

func (c ClearSky) incidence(t time.Time) float64 {
	d := declination(t)
	lat := c.Latitude * degToRad
	tilt := c.Tilt * degToRad
	x := math.Cos(hourAngle(t))*math.Cos(d)*math.Cos(lat-tilt) + math.Sin(d)*math.Sin(lat-tilt)
	return math.Acos(clamp(x))
}

func (c ClearSky) elevationAngle(t time.Time) float64 {
	d := declination(t)
	lat := c.Latitude * degToRad
	x := math.Sin(d)*math.Sin(lat) + math.Cos(d)*math.Cos(lat)*math.Cos(hourAngle(t))
	return math.Max(math.Asin(clamp(x)), 0)
}

// daylight reports whether t falls between sunrise and sunset in solar time.
func (c ClearSky) daylight(t time.Time) bool {
	d := declination(t)
	lat := c.Latitude * degToRad
	half := math.Acos(clamp(-math.Tan(lat)*math.Tan(d))) / degToRad / 15
	hour := solarHour(t)
	return hour > 12-half && hour < 12+half
}

func solarHour(t time.Time) float64 {
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 3600
}

func hourAngle(t time.Time) float64 {
	return (solarHour(t) - 12) * 15 * degToRad
}

func declination(t time.Time) float64 {
	return math.Asin(math.Sin(2*math.Pi*(float64(t.YearDay())-81)/365.25) * math.Sin(0.40928))
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
