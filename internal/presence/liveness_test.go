package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThresholdsKeepMarginOverHeartbeat(t *testing.T) {
	assert.Less(t, HeartbeatInterval, OnlineThreshold)
	assert.Less(t, TypingThreshold, HeartbeatInterval)
}

func TestIsLive(t *testing.T) {
	const now = int64(1_700_000_000_000)

	cases := []struct {
		name     string
		isOnline bool
		lastSeen int64
		want     bool
	}{
		{"fresh heartbeat", true, now - 1000, true},
		{"just under threshold", true, now - 29999, true},
		{"exactly threshold", true, now - 30000, false},
		{"stale flag", true, now - 45000, false},
		{"offline flag", false, now - 10, false},
		{"lastSeen undefined", true, 0, false},
		{"clock skew ahead", true, now + 500, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsLive(c.isOnline, c.lastSeen, now))
		})
	}
}

func TestPolicyOverrides(t *testing.T) {
	p := NewPolicy(5000, 0)
	assert.Equal(t, 5*time.Second, p.OnlineThreshold)
	assert.Equal(t, TypingThreshold, p.TypingThreshold)

	assert.True(t, p.IsLive(true, 1000, 5999))
	assert.False(t, p.IsLive(true, 1000, 6000))
}

func TestTypingActive(t *testing.T) {
	const start = int64(1_700_000_000_000)

	assert.True(t, TypingActive(true, start, start))
	assert.True(t, TypingActive(true, start, start+1999))
	assert.True(t, TypingActive(true, start, start+2000))
	assert.False(t, TypingActive(true, start, start+2001))
	assert.False(t, TypingActive(false, start, start+10))
}
