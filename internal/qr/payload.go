package qr

import (
	"net/url"
	"strings"
)

// Reference is the parsed, unverified claim of which machine a scanned or
// manually entered payload refers to.
type Reference struct {
	MachineID string // empty means the payload could not be parsed
	Timestamp string
	Signature string
	RawSource string
}

// Valid reports whether parsing produced a machine identifier.
func (r Reference) Valid() bool {
	return r.MachineID != ""
}

// Parse converts a raw scanner or manual-entry string into a Reference.
// origin is the application origin used to resolve root-relative payloads
// (a kiosk QR often encodes just "/r?m=007&sig=..."); it may be empty.
//
// Recognized forms, first match wins:
//  1. absolute or root-relative URL carrying m (preferred) or machineId,
//     plus optional ts and sig query parameters
//  2. bare querystring with the same field names
//  3. literal machine identifier
//
// Parse never fails loudly: malformed input yields a Reference with an empty
// MachineID, and URL parse errors fall through to the next form.
func Parse(raw string, origin string) Reference {
	ref := Reference{RawSource: raw}

	s := strings.TrimSpace(raw)
	if s == "" {
		return ref
	}

	if u, ok := parseAsURL(s, origin); ok {
		q := u.Query()
		ref.MachineID = strings.TrimSpace(firstNonEmpty(q.Get("m"), q.Get("machineId")))
		ref.Timestamp = q.Get("ts")
		ref.Signature = q.Get("sig")
		return ref
	}

	if strings.Contains(s, "=") && strings.Contains(s, "&") {
		if q, err := url.ParseQuery(s); err == nil {
			ref.MachineID = strings.TrimSpace(firstNonEmpty(q.Get("m"), q.Get("machineId")))
			ref.Timestamp = q.Get("ts")
			ref.Signature = q.Get("sig")
			return ref
		}
	}

	ref.MachineID = s
	return ref
}

func parseAsURL(s string, origin string) (*url.URL, bool) {
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		u, err := url.Parse(s)
		return u, err == nil
	case strings.HasPrefix(s, "www."):
		u, err := url.Parse("https://" + s)
		return u, err == nil
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "?"):
		rel, err := url.Parse(s)
		if err != nil {
			return nil, false
		}
		if origin == "" {
			return rel, true
		}
		base, err := url.Parse(origin)
		if err != nil {
			return rel, true
		}
		return base.ResolveReference(rel), true
	}
	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
