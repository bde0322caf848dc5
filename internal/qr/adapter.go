package qr

// EventAdapter extracts the scanned payload string from one decoded scanner
// event. Each scanning library exposes the payload under a different field;
// the adapter for the configured library is selected once at startup instead
// of probing fields at every call site.
type EventAdapter func(event map[string]any) (string, bool)

func fieldAdapter(key string) EventAdapter {
	return func(event map[string]any) (string, bool) {
		v, ok := event[key]
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}

// Adapters for the scanner libraries the kiosk frontends are known to use.
var (
	DataAdapter        = fieldAdapter("data")
	TextAdapter        = fieldAdapter("text")
	RawValueAdapter    = fieldAdapter("rawValue")
	DecodedTextAdapter = fieldAdapter("decodedText")
)

// FirstPayload applies the adapter to a batch of scanner events and returns
// the first payload found. Scanners may report several detections per frame;
// the first one wins.
func FirstPayload(adapter EventAdapter, events []map[string]any) (string, bool) {
	for _, ev := range events {
		if s, ok := adapter(ev); ok {
			return s, true
		}
	}
	return "", false
}
