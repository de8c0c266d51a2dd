package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/engine"
	"github.com/scrypster/reverie/internal/logger"
)

func TestClassify_LogsInternalFailureWithStack(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "test", config.LogConfig{Format: "json"})
	require.NoError(t, err)

	status, msg := classify(log, &engine.StageError{Stage: engine.StageRetrieve, Err: errors.New("disk gone")})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, genericFailure, msg)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload))
	assert.Equal(t, "retrieve", payload["stage"])
	assert.Contains(t, payload, "stack")
	assert.NotContains(t, msg, "disk gone")
}

func TestClassify_ValidationIsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "test", config.LogConfig{Format: "json"})
	require.NoError(t, err)

	status, msg := classify(log, fmt.Errorf("%w: question is empty", engine.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.True(t, strings.HasSuffix(msg, "question is empty"))
	assert.Empty(t, buf.String())
}
