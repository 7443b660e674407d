package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityVisible(t *testing.T) {
	tests := []struct {
		status Status
		state  State
		vur    bool
		want   bool
	}{
		{Approved, Normal, false, true},
		{Approved, Draft, false, false},
		{Pending, Normal, false, false},
		{Pending, Normal, true, true},
		{Pending, Draft, true, false},
		{Rejected, Normal, true, false},
		{Rejected, Normal, false, false},
	}
	for _, tt := range tests {
		e := &Entity{Status: tt.status, State: tt.state}
		assert.Equal(t, tt.want, e.Visible(tt.vur), "%s %s vur=%t", tt.status, tt.state, tt.vur)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{Pending, Approved, Rejected} {
		parsed, err := ParseStatus(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseStatus("not registered")
	assert.Error(t, err)
	assert.False(t, NotRegistered.Valid())
}

func TestQueueFilterDefaults(t *testing.T) {
	assert.Equal(t, []Status{Pending, Rejected}, QueueFilter{}.EffectiveStatuses())
	assert.Equal(t, []Status{Approved}, QueueFilter{Statuses: []Status{Approved}}.EffectiveStatuses())
}
