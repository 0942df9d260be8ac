package pipeline

import "reflect"

// newScanTarget allocates a pointer of the driver's scan type for one
// column, as required by the native ClickHouse row scanner.
func newScanTarget(t reflect.Type) any {
	return reflect.New(t).Interface()
}

// normalizeValue unwraps a scan target and converts byte slices to
// strings so downstream formatting sees plain values.
func normalizeValue(v any) any {
	rv := reflect.ValueOf(v)
	// Nullable columns scan through a second pointer level.
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	val := rv.Interface()
	if b, ok := val.([]byte); ok {
		return string(b)
	}
	return val
}
