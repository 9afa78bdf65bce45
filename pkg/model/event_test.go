package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestToStoreFromStoreRoundTrip(t *testing.T) {
	e := EventJSON{
		APIKey:    "K",
		EventType: string(EventTypeAlert),
		Summary:   "disk full",
		AlertKey:  strp("corr-1"),
		Priority:  strp(string(PriorityHigh)),
		Images:    []Image{{Src: "http://img", Alt: "alt"}},
		Links:     []Link{{Href: "http://link", Text: "text"}},
	}

	item := ToStore(e, "")
	back := FromStore(item)

	assert.Equal(t, e.APIKey, back.APIKey)
	assert.Equal(t, e.EventType, back.EventType)
	assert.Equal(t, e.Summary, back.Summary)
	require.NotNil(t, back.AlertKey)
	assert.Equal(t, *e.AlertKey, *back.AlertKey)
	require.NotNil(t, back.Priority)
	assert.Equal(t, *e.Priority, *back.Priority)
	require.Len(t, back.Images, 1)
	assert.Equal(t, e.Images[0].Src, back.Images[0].Src)
	require.Len(t, back.Links, 1)
	assert.Equal(t, e.Links[0].Href, back.Links[0].Href)
}

func TestFromStoreDegradesSilentlyOnMalformedJSON(t *testing.T) {
	bad := "{not json"
	item := QueueItem{
		APIKey:    "K",
		EventType: string(EventTypeAlert),
		Summary:   "s",
		Images:    &bad,
	}
	e := FromStore(item)
	assert.Nil(t, e.Images)
}

func TestEventAPIPathOverride(t *testing.T) {
	item := ToStore(EventJSON{APIKey: "k", EventType: "ALERT", Summary: "s"}, "/custom/path")
	require.NotNil(t, item.EventAPIPath)
	assert.Equal(t, "/custom/path", *item.EventAPIPath)

	item2 := ToStore(EventJSON{APIKey: "k", EventType: "ALERT", Summary: "s"}, "")
	assert.Nil(t, item2.EventAPIPath)
}

func TestCustomDetailsJSONRoundTrip(t *testing.T) {
	raw := json.RawMessage(`{"a":1,"b":"two"}`)
	item := ToStore(EventJSON{APIKey: "k", EventType: "ALERT", Summary: "s", CustomDetails: raw}, "")
	require.NotNil(t, item.CustomDetails)

	back := FromStore(item)
	var got map[string]any
	require.NoError(t, json.Unmarshal(back.CustomDetails, &got))
	assert.Equal(t, float64(1), got["a"])
	assert.Equal(t, "two", got["b"])
}

func TestFromTransitionDefaults(t *testing.T) {
	e := FromTransition(TransitionJSON{})
	assert.Equal(t, "", e.APIKey)
	assert.Equal(t, string(EventTypeAlert), e.EventType)
	assert.Equal(t, "", e.Summary)
}

func TestParseEventTypeAndPriority(t *testing.T) {
	_, ok := ParseEventType("BAD")
	assert.False(t, ok)
	et, ok := ParseEventType("ALERT")
	assert.True(t, ok)
	assert.Equal(t, EventTypeAlert, et)

	_, ok = ParsePriority("URGENT")
	assert.False(t, ok)
	p, ok := ParsePriority("LOW")
	assert.True(t, ok)
	assert.Equal(t, PriorityLow, p)
}
