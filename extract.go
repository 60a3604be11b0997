package fitlog

import (
	"fmt"
	"strings"
	"time"
)

// Source ranks; lower wins.
const (
	rankPrimary = iota
	rankFallback
	rankLastResort
)

// slot holds a value together with the rank of the source that set it.
type slot[T any] struct {
	val  *T
	rank int
}

// offer keeps v unless a value of equal or better rank is already present.
func (s *slot[T]) offer(rank int, v T) {
	if s.val != nil && s.rank <= rank {
		return
	}
	s.val = &v
	s.rank = rank
}

// foldState is threaded through the dispatcher; each extractor writes into it.
type foldState struct {
	workoutType slot[string]
	startTime   slot[time.Time]
	endTime     slot[time.Time]
	duration    slot[int64]
	distance    slot[float64]
	calories    slot[int64]
	avgHR       slot[int64]
	maxHR       slot[int64]
	avgPower    slot[int64]
	maxPower    slot[int64]
	avgCadence  slot[int64]
	maxCadence  slot[int64]
	avgSpeed    slot[float64]
	maxSpeed    slot[float64]
	gain        slot[float64]
	loss        slot[float64]

	gps       []GpsPoint
	sensors   []SensorPoint
	altitudes []float64
}

func newFoldState() *foldState {
	return &foldState{
		gps:       make([]GpsPoint, 0),
		sensors:   make([]SensorPoint, 0),
		altitudes: make([]float64, 0),
	}
}

type extractor func(*foldState, Message)

var extractors = map[string]extractor{
	"sport":    (*foldState).extractSport,
	"session":  (*foldState).extractSession,
	"record":   (*foldState).extractRecord,
	"lap":      (*foldState).extractLap,
	"activity": (*foldState).extractActivity,
}

func (st *foldState) dispatch(m Message) {
	if fn, ok := extractors[m.Kind]; ok {
		fn(st, m)
	}
}

var sportNames = map[int64]string{
	0:  "generic",
	1:  "running",
	2:  "cycling",
	3:  "transition",
	4:  "fitness_equipment",
	5:  "swimming",
	6:  "basketball",
	7:  "soccer",
	8:  "tennis",
	9:  "american_football",
	10: "training",
	11: "walking",
	12: "cross_country_skiing",
	13: "alpine_skiing",
	14: "snowboarding",
	15: "rowing",
	16: "mountaineering",
	17: "hiking",
	18: "multisport",
	19: "paddling",
	20: "strength_training",
}

// SportName maps a FIT sport code to its canonical label.
func SportName(code int64) string {
	if name, ok := sportNames[code]; ok {
		return name
	}
	return fmt.Sprintf("sport_%d", code)
}

func sportLabel(v Value) (string, bool) {
	if s, ok := v.Str(); ok {
		return strings.ToLower(s), true
	}
	if n, ok := v.Int(); ok {
		return SportName(n), true
	}
	return "", false
}

func (st *foldState) offerSport(rank int, m Message, field string) {
	v, ok := m.Get(field)
	if !ok {
		return
	}
	if label, ok := sportLabel(v); ok {
		st.workoutType.offer(rank, label)
	}
}

func (st *foldState) extractSport(m Message) {
	st.offerSport(rankPrimary, m, "sport")
}

func (st *foldState) extractActivity(m Message) {
	st.offerSport(rankLastResort, m, "type")
}

func (st *foldState) extractLap(m Message) {
	offerTime(&st.startTime, rankFallback, m, "start_time")
}

func (st *foldState) extractSession(m Message) {
	st.offerSport(rankFallback, m, "sport")

	offerTime(&st.startTime, rankPrimary, m, "start_time")
	offerTime(&st.endTime, rankPrimary, m, "timestamp")

	if secs, ok := floatField(m, "total_elapsed_time"); ok {
		st.duration.offer(rankPrimary, int64(secs))
	} else if secs, ok := floatField(m, "total_timer_time"); ok {
		st.duration.offer(rankFallback, int64(secs))
	}

	offerFloat(&st.distance, rankPrimary, m, "total_distance")
	offerInt(&st.calories, rankPrimary, m, "total_calories")
	offerInt(&st.avgHR, rankPrimary, m, "avg_heart_rate")
	offerInt(&st.maxHR, rankPrimary, m, "max_heart_rate")
	offerInt(&st.avgPower, rankPrimary, m, "avg_power")
	offerInt(&st.maxPower, rankPrimary, m, "max_power")
	offerInt(&st.avgCadence, rankPrimary, m, "avg_cadence")
	offerInt(&st.maxCadence, rankPrimary, m, "max_cadence")

	if v, ok := floatField(m, "avg_speed"); ok {
		st.avgSpeed.offer(rankPrimary, v)
	} else if v, ok := floatField(m, "enhanced_avg_speed"); ok {
		st.avgSpeed.offer(rankFallback, v)
	}
	if v, ok := floatField(m, "max_speed"); ok {
		st.maxSpeed.offer(rankPrimary, v)
	} else if v, ok := floatField(m, "enhanced_max_speed"); ok {
		st.maxSpeed.offer(rankFallback, v)
	}

	offerFloat(&st.gain, rankPrimary, m, "total_ascent")
	offerFloat(&st.loss, rankPrimary, m, "total_descent")
}

func (st *foldState) extractRecord(m Message) {
	var ts *string
	if v, ok := m.Get("timestamp"); ok {
		if t, ok := v.Time(); ok {
			s := t.Format(time.RFC3339)
			ts = &s
		}
	}

	altitude := optFloat(m.GetAny("altitude", "enhanced_altitude"))

	lat, latOK := semicircleField(m, "position_lat")
	lon, lonOK := semicircleField(m, "position_long")
	if latOK && lonOK && validCoordinate(lat, lon) {
		st.gps = append(st.gps, GpsPoint{
			Timestamp: ts,
			Lat:       lat,
			Lon:       lon,
			Altitude:  altitude,
		})
	}

	if altitude != nil {
		st.altitudes = append(st.altitudes, *altitude)
	}

	st.sensors = append(st.sensors, SensorPoint{
		Timestamp: ts,
		HeartRate: optInt(m.Get("heart_rate")),
		Power:     optInt(m.Get("power")),
		Cadence:   optInt(m.Get("cadence")),
		Speed:     optFloat(m.GetAny("speed", "enhanced_speed")),
		Distance:  optFloat(m.Get("distance")),
		Altitude:  altitude,
	})
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func semicircleField(m Message, name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.Int()
	if !ok {
		return 0, false
	}
	return SemicirclesToDegrees(int32(n)), true
}

func floatField(m Message, name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	return v.Float()
}

func offerFloat(s *slot[float64], rank int, m Message, name string) {
	if v, ok := floatField(m, name); ok {
		s.offer(rank, v)
	}
}

func offerInt(s *slot[int64], rank int, m Message, name string) {
	v, ok := m.Get(name)
	if !ok {
		return
	}
	if n, ok := v.Int(); ok {
		s.offer(rank, n)
	}
}

func offerTime(s *slot[time.Time], rank int, m Message, name string) {
	v, ok := m.Get(name)
	if !ok {
		return
	}
	if t, ok := v.Time(); ok {
		s.offer(rank, t)
	}
}

func optInt(v Value, ok bool) *int64 {
	if !ok {
		return nil
	}
	n, ok := v.Int()
	if !ok {
		return nil
	}
	return &n
}

func optFloat(v Value, ok bool) *float64 {
	if !ok {
		return nil
	}
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return &f
}
