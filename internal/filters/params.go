package filters

// Params represents decode parameters from PDF stream dictionaries.
// Common parameters include Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// Int extracts an integer parameter, returning def if it is missing or not
// numeric.
func (p Params) Int(key string, def int) int {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool extracts a boolean parameter, returning def if it is missing.
func (p Params) Bool(key string, def bool) bool {
	if p == nil {
		return def
	}
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}
