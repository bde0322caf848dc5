package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventAdapters(t *testing.T) {
	testCases := []struct {
		name     string
		adapter  EventAdapter
		event    map[string]any
		expected string
		ok       bool
	}{
		{"data field", DataAdapter, map[string]any{"data": "m=1&sig=a"}, "m=1&sig=a", true},
		{"text field", TextAdapter, map[string]any{"text": "007"}, "007", true},
		{"rawValue field", RawValueAdapter, map[string]any{"rawValue": "/r?m=2"}, "/r?m=2", true},
		{"decodedText field", DecodedTextAdapter, map[string]any{"decodedText": "x"}, "x", true},
		{"wrong field", DataAdapter, map[string]any{"text": "007"}, "", false},
		{"non-string value", DataAdapter, map[string]any{"data": 42}, "", false},
		{"empty value", DataAdapter, map[string]any{"data": ""}, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.adapter(tc.event)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFirstPayload(t *testing.T) {
	events := []map[string]any{
		{"text": "ignored"},
		{"data": "first"},
		{"data": "second"},
	}

	got, ok := FirstPayload(DataAdapter, events)
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	_, ok = FirstPayload(DataAdapter, nil)
	assert.False(t, ok)
}
