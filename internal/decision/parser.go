package decision

import (
	"log"
	"regexp"
	"strconv"

	"github.com/skyward-data/groundtrack/internal/config"
)

// AltitudeBounds is the safe altitude envelope. Altitude-bearing commands
// outside it are rewritten to the nearest boundary, never rejected: the
// intent (ascend/descend) stays valid even when the magnitude is not.
type AltitudeBounds struct {
	Min float64
	Max float64
}

// AltitudeBoundsFromTuning builds AltitudeBounds from a loaded TuningConfig.
func AltitudeBoundsFromTuning(cfg *config.TuningConfig) AltitudeBounds {
	return AltitudeBounds{Min: cfg.GetMinAltitudeMeters(), Max: cfg.GetMaxAltitudeMeters()}
}

// Clamp rewrites metres to the nearest boundary and reports whether it did.
func (b AltitudeBounds) Clamp(meters float64) (float64, bool) {
	if meters < b.Min {
		return b.Min, true
	}
	if meters > b.Max {
		return b.Max, true
	}
	return meters, false
}

// rule binds one directive pattern to its command constructor. Rules are
// evaluated in declaration order and each contributes at most one command
// per text, so parsing is deterministic.
type rule struct {
	pattern *regexp.Regexp
	build   func(m []string, bounds AltitudeBounds) (Command, bool)
}

var rules = []rule{
	{
		// 飞向ID 3的公交车…
		pattern: regexp.MustCompile(`飞向ID\s*(\d+)`),
		build: func(m []string, _ AltitudeBounds) (Command, bool) {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return Command{}, false
			}
			return Command{Kind: KindMoveToTarget, TargetID: id}, true
		},
	},
	{
		// 远离人群区域…
		pattern: regexp.MustCompile(`远离`),
		build: func(_ []string, _ AltitudeBounds) (Command, bool) {
			return Command{Kind: KindMoveAway}, true
		},
	},
	{
		// 保持30米高度
		pattern: regexp.MustCompile(`保持(\d+(?:\.\d+)?)米高度`),
		build: func(m []string, bounds AltitudeBounds) (Command, bool) {
			alt, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return Command{}, false
			}
			clamped, did := bounds.Clamp(alt)
			return Command{Kind: KindHoldAltitude, Meters: clamped, Clamped: did}, true
		},
	},
	{
		// 上升20米 / 下降15米
		pattern: regexp.MustCompile(`(上升|下降)\s*(\d+(?:\.\d+)?)\s*米`),
		build: func(m []string, bounds AltitudeBounds) (Command, bool) {
			delta, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return Command{}, false
			}
			// The delta magnitude is capped at the altitude ceiling; the
			// interpreter additionally clamps the resulting absolute
			// altitude at dispatch.
			magnitude := delta
			clamped := false
			if magnitude > bounds.Max {
				magnitude = bounds.Max
				clamped = true
			}
			if m[1] == "下降" {
				magnitude = -magnitude
			}
			return Command{Kind: KindChangeAltitude, Meters: magnitude, Clamped: clamped}, true
		},
	},
	{
		// 悬停
		pattern: regexp.MustCompile(`悬停`),
		build: func(_ []string, _ AltitudeBounds) (Command, bool) {
			return Command{Kind: KindHover}, true
		},
	},
}

// Parser extracts commands from free-form analysis text.
type Parser struct {
	bounds AltitudeBounds
}

// NewParser creates a parser with the given safety bounds.
func NewParser(bounds AltitudeBounds) *Parser {
	return &Parser{bounds: bounds}
}

// Parse returns the commands found in the text, in rule order. Text with no
// actionable directives yields an empty slice — free-form commentary is
// expected and normal, not an error. Clamped values are logged.
func (p *Parser) Parse(text string) []Command {
	var cmds []Command
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		cmd, ok := r.build(m, p.bounds)
		if !ok {
			continue
		}
		if cmd.Clamped {
			log.Printf("command %s clamped to safety bounds [%.0f, %.0f]", cmd, p.bounds.Min, p.bounds.Max)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}
