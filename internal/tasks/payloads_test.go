package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweepOrphanImagesTask(t *testing.T) {
	task, err := NewSweepOrphanImagesTask(7, 1, "cid-1")
	require.NoError(t, err)
	assert.Equal(t, TypeSweepOrphanImages, task.Type())

	var payload SweepOrphanImagesPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, SweepOrphanImagesPayload{UserID: 7, RequestedBy: 1, CorrelationID: "cid-1"}, payload)
}

func TestNotifyChannel(t *testing.T) {
	assert.Equal(t, "user_notify:42", NotifyChannel(42))
}
