package formz

import (
	"reflect"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// cloneValue returns a deep copy of a field value so that snapshots handed to
// observers are isolated from later mutations of maps and slices held by the
// caller. Scalars pass through untouched.
func cloneValue(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, time.Duration:
		return v
	}
	var dst any
	if err := deepcopy.Copy(&dst, v); err != nil {
		return v
	}
	return dst
}

// valueEqual compares two field values structurally.
func valueEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
