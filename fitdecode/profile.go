package fitdecode

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tormoder/fit"
)

type fieldKind uint8

const (
	fieldPlain fieldKind = iota
	fieldScaled
	fieldTime
	fieldEnum
)

type fieldProfile struct {
	name   string
	kind   fieldKind
	scale  float64
	offset float64
	enum   func(int64) string
}

func plain(name string) fieldProfile { return fieldProfile{name: name} }
func stamp(name string) fieldProfile { return fieldProfile{name: name, kind: fieldTime} }

func scaled(name string, scale, offset float64) fieldProfile {
	return fieldProfile{name: name, kind: fieldScaled, scale: scale, offset: offset}
}

func enum(name string, label func(int64) string) fieldProfile {
	return fieldProfile{name: name, kind: fieldEnum, enum: label}
}

// activityMode names the activity.type enum. It is not a sport code.
func activityMode(n int64) string {
	name := fit.ActivityMode(n).String()
	if strings.HasPrefix(name, "ActivityMode(") {
		return fmt.Sprintf("activity_mode_%d", n)
	}
	return snakeCase(name)
}

// Field numbers follow the FIT global profile. Fields not listed here are
// emitted as field_<n> with their native value.
var profile = map[uint16]map[uint8]fieldProfile{
	0: { // file_id
		0: plain("type"),
		1: plain("manufacturer"),
		2: plain("product"),
		3: plain("serial_number"),
		4: stamp("time_created"),
		5: plain("number"),
		8: plain("product_name"),
	},
	12: { // sport
		0: plain("sport"),
		1: plain("sub_sport"),
		3: plain("name"),
	},
	18: { // session
		253: stamp("timestamp"),
		0:   plain("event"),
		1:   plain("event_type"),
		2:   stamp("start_time"),
		5:   plain("sport"),
		6:   plain("sub_sport"),
		7:   scaled("total_elapsed_time", 1000, 0),
		8:   scaled("total_timer_time", 1000, 0),
		9:   scaled("total_distance", 100, 0),
		11:  plain("total_calories"),
		14:  scaled("avg_speed", 1000, 0),
		15:  scaled("max_speed", 1000, 0),
		16:  plain("avg_heart_rate"),
		17:  plain("max_heart_rate"),
		18:  plain("avg_cadence"),
		19:  plain("max_cadence"),
		20:  plain("avg_power"),
		21:  plain("max_power"),
		22:  plain("total_ascent"),
		23:  plain("total_descent"),
		124: scaled("enhanced_avg_speed", 1000, 0),
		125: scaled("enhanced_max_speed", 1000, 0),
	},
	19: { // lap
		253: stamp("timestamp"),
		2:   stamp("start_time"),
		7:   scaled("total_elapsed_time", 1000, 0),
		8:   scaled("total_timer_time", 1000, 0),
		9:   scaled("total_distance", 100, 0),
		11:  plain("total_calories"),
		13:  scaled("avg_speed", 1000, 0),
		14:  scaled("max_speed", 1000, 0),
		15:  plain("avg_heart_rate"),
		16:  plain("max_heart_rate"),
		17:  plain("avg_cadence"),
		18:  plain("max_cadence"),
		19:  plain("avg_power"),
		20:  plain("max_power"),
		21:  plain("total_ascent"),
		22:  plain("total_descent"),
		25:  plain("sport"),
	},
	20: { // record
		253: stamp("timestamp"),
		0:   plain("position_lat"),
		1:   plain("position_long"),
		2:   scaled("altitude", 5, 500),
		3:   plain("heart_rate"),
		4:   plain("cadence"),
		5:   scaled("distance", 100, 0),
		6:   scaled("speed", 1000, 0),
		7:   plain("power"),
		9:   scaled("grade", 100, 0),
		13:  plain("temperature"),
		73:  scaled("enhanced_speed", 1000, 0),
		78:  scaled("enhanced_altitude", 5, 500),
	},
	21: { // event
		253: stamp("timestamp"),
		0:   plain("event"),
		1:   plain("event_type"),
		3:   plain("data"),
		4:   plain("event_group"),
	},
	34: { // activity
		253: stamp("timestamp"),
		0:   scaled("total_timer_time", 1000, 0),
		1:   plain("num_sessions"),
		2:   enum("type", activityMode),
		3:   plain("event"),
		4:   plain("event_type"),
		5:   stamp("local_timestamp"),
	},
}

func lookupField(global uint16, num uint8) fieldProfile {
	if m, ok := profile[global]; ok {
		if p, ok := m[num]; ok {
			return p
		}
	}
	if num == 253 {
		return stamp("timestamp")
	}
	return plain(fmt.Sprintf("field_%d", num))
}

// MessageName returns the snake_case name of a FIT global message number,
// or mesg_<n> for numbers outside the profile.
func MessageName(global uint16) string {
	name := fmt.Sprint(fit.MesgNum(global))
	if strings.HasPrefix(name, "MesgNum(") {
		return fmt.Sprintf("mesg_%d", global)
	}
	return snakeCase(strings.TrimPrefix(name, "MesgNum"))
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
