package orchestrator

import (
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Order(t *testing.T) {
	for i, s := range Stages {
		assert.Equal(t, i+1, s.Number())
	}
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages {
		got, err := ParseStage(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStage("rollback")
	assert.Error(t, err)
	assert.Equal(t, "stage(42)", Stage(42).String())
}

func TestStageError(t *testing.T) {
	cause := errors.New("connection refused")
	var err error = &StageError{Stage: StageConnect, Err: cause}
	wrapped := fmt.Errorf("deploy blog: %w", err)

	assert.ErrorIs(t, wrapped, apperrors.ErrConnectFailed)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, apperrors.ErrUploadFailed)
	assert.Equal(t, "(3) connect failed: connection refused", err.Error())

	stage, ok := FailedStage(wrapped)
	assert.True(t, ok)
	assert.Equal(t, StageConnect, stage)

	_, ok = FailedStage(cause)
	assert.False(t, ok)
}

func TestStageError_SentinelCauseNotRepeated(t *testing.T) {
	tests := []struct {
		stage Stage
		cause error
		want  string
	}{
		{StageArchive, fmt.Errorf("%w: disk full", apperrors.ErrArchiveFailed), "(2) archive failed: disk full"},
		{StageUpload, fmt.Errorf("%w: broken pipe", apperrors.ErrUploadFailed), "(4) upload failed: broken pipe"},
		{StageConnect, fmt.Errorf("%w: auth", apperrors.ErrConnectFailed), "(3) ssh connection failed: auth"},
		{StageBuild, errors.New("exit 2"), "(1) build failed: exit 2"},
	}

	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			err := &StageError{Stage: tt.stage, Err: tt.cause}
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}
