package translate

// SanitizeSchema returns a deep copy of a JSON Schema with unsupported
// string `format` values removed. Upstream validators reject most of the
// formats Anthropic tools commonly declare; only "date-time" survives.
// The walk recurses through properties, items, anyOf/allOf/oneOf, $defs
// and additionalProperties, and is idempotent.
func SanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		out[k] = sanitizeValue(v)
	}
	if out["type"] == "string" {
		if format, ok := out["format"].(string); ok && format != "date-time" {
			delete(out, "format")
		}
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return SanitizeSchema(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}

// CleanSchemaForGemini applies the Gemini-specific pass on top of
// sanitisation: Gemini's function declarations reject additionalProperties
// and default at any nesting depth, so both are dropped everywhere.
func CleanSchemaForGemini(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if k == "additionalProperties" || k == "default" {
			continue
		}
		out[k] = cleanValueForGemini(v)
	}
	if out["type"] == "string" {
		if format, ok := out["format"].(string); ok && format != "date-time" {
			delete(out, "format")
		}
	}
	return out
}

func cleanValueForGemini(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CleanSchemaForGemini(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cleanValueForGemini(item)
		}
		return out
	default:
		return v
	}
}
