package cron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterJobs(t *testing.T) {
	disabled := NewCronManager(nil, "")
	require.NoError(t, disabled.RegisterJobs())
	assert.Empty(t, disabled.engine.Entries())

	enabled := NewCronManager(nil, "0 * * * * *")
	require.NoError(t, enabled.RegisterJobs())
	assert.Len(t, enabled.engine.Entries(), 1)

	broken := NewCronManager(nil, "every minute")
	assert.Error(t, broken.RegisterJobs())
}
