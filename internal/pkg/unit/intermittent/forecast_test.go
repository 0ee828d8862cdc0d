package intermittent

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

var array = ClearSky{Rating: 4, Tilt: 30, Latitude: 42, Elevation: 1.5}

func TestIrradianceFollowsTheSun(t *testing.T) {
	day := time.Date(2020, time.June, 21, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, array.Irradiance(day.Add(2*time.Hour)), 0.0)
	assert.Equal(t, array.Irradiance(day.Add(23*time.Hour)), 0.0)

	morning := array.Irradiance(day.Add(8 * time.Hour))
	noon := array.Irradiance(day.Add(12 * time.Hour))
	assert.Assert(t, morning > 0)
	assert.Assert(t, noon > morning)
}

func TestWinterIsDimmer(t *testing.T) {
	summer := array.Irradiance(time.Date(2020, time.June, 21, 12, 0, 0, 0, time.UTC))
	winter := array.Irradiance(time.Date(2020, time.December, 21, 12, 0, 0, 0, time.UTC))
	assert.Assert(t, winter < summer)
}

func TestProfile(t *testing.T) {
	start := time.Date(2020, time.June, 21, 0, 0, 0, 0, time.UTC)
	p := array.Profile(start, time.Hour, 24)
	assert.Equal(t, len(p), 24)
	assert.Equal(t, p[0], 0.0)
	assert.Assert(t, p[12] > p[9])
	for _, v := range p {
		assert.Assert(t, v >= 0 && v <= array.Rating)
	}
}
