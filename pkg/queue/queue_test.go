package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobEncodesPayload(t *testing.T) {
	logID := uuid.New()
	job, err := NewJob(JobTypeEmailResend, EmailResendPayload{EmailLogID: logID})
	require.NoError(t, err)

	assert.Equal(t, JobTypeEmailResend, job.Type)
	assert.NotEmpty(t, job.ID)
	assert.Zero(t, job.Attempt)

	var p EmailResendPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, logID, p.EmailLogID)
}

func TestShouldDeadLetter(t *testing.T) {
	job := &Job{Attempt: MaxRetries - 1}
	assert.False(t, ShouldDeadLetter(job))
	job.Attempt++
	assert.True(t, ShouldDeadLetter(job))
}
