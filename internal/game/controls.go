package game

import (
	"fmt"
	"time"
)

// Game types and their time-control classes.
const (
	TypeNoLimit = "no limit"
	TypeSlow    = "slow"
	TypeFast    = "fast"
)

// Types lists the valid game types in display order.
var Types = []string{TypeNoLimit, TypeSlow, TypeFast}

type limitClass struct {
	Name     string
	Duration time.Duration
}

// limits maps each timed type to its classes, in pairing-scan order.
var limits = map[string][]limitClass{
	TypeSlow: {
		{"1h", time.Hour},
		{"8h", 8 * time.Hour},
		{"1d", 24 * time.Hour},
		{"3d", 3 * 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	},
	TypeFast: {
		{"1m", time.Minute},
		{"3m", 3 * time.Minute},
		{"5m", 5 * time.Minute},
		{"10m", 10 * time.Minute},
		{"30m", 30 * time.Minute},
	},
}

// ValidType reports whether t names a known game type.
func ValidType(t string) bool {
	_, ok := limits[t]
	return ok || t == TypeNoLimit
}

// Timed reports whether the game type carries a clock at all.
func Timed(t string) bool {
	return t != TypeNoLimit
}

// LimitNames returns the limit classes of a timed type, scan order.
func LimitNames(t string) []string {
	classes := limits[t]
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}
	return names
}

// ParseLimit resolves a limit class name for the given type. An empty
// name is valid for every type and means "no limit specified" (zero
// duration). A name unknown to the type is ErrInvalidRequest.
func ParseLimit(t, name string) (time.Duration, error) {
	if !ValidType(t) {
		return 0, fmt.Errorf("%w: unknown game type %q", ErrInvalidRequest, t)
	}
	if name == "" {
		return 0, nil
	}
	for _, c := range limits[t] {
		if c.Name == name {
			return c.Duration, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown limit %q for type %q", ErrInvalidRequest, name, t)
}
