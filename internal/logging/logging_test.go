package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/testutil"
)

func TestPGHandler_PersistsErrorRecords(t *testing.T) {
	db := testutil.NewTestDB(t)
	h := NewPGHandler(db, time.Hour)
	t.Cleanup(h.Stop)

	logger := slog.New(h).With("feedback_id", "fb-1")
	ctx := WithRequestID(context.Background(), "req-42")

	logger.InfoContext(ctx, "ignored")
	logger.ErrorContext(ctx, "integration step failed",
		"action", "feedback_crm", "error", "hubspot 500", "user_id", "u-1", "crm_backend", "hubspot")
	h.Flush()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "req-42", entry.RequestID)
	assert.Equal(t, "feedback_crm", entry.Action)
	assert.Equal(t, "hubspot 500", entry.Error)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-1", *entry.UserID)
	require.NotNil(t, entry.FeedbackID)
	assert.Equal(t, "fb-1", *entry.FeedbackID)

	var extra map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Extra, &extra))
	assert.Equal(t, "hubspot", extra["crm_backend"])
}

func TestPGHandler_StopFlushes(t *testing.T) {
	db := testutil.NewTestDB(t)
	h := NewPGHandler(db, time.Hour)

	slog.New(h).Error("boom")
	h.Stop()
	h.Stop()

	var count int64
	require.NoError(t, db.Model(&models.SystemLog{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	errOnly := slog.NewJSONHandler(&errBuf, &slog.HandlerOptions{Level: slog.LevelError})

	logger := slog.New(NewMultiHandler(info, errOnly))
	logger.Info("hello")
	logger.Error("bad")

	assert.Contains(t, infoBuf.String(), "hello")
	assert.Contains(t, infoBuf.String(), "bad")
	assert.NotContains(t, errBuf.String(), "hello")
	assert.Contains(t, errBuf.String(), "bad")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandler_Handle_FailingSinkDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	out := slog.NewJSONHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{out}, nil, out)

	record := slog.NewRecord(time.Now(), slog.LevelError, "bad", 0)
	err := h.Handle(context.Background(), record)

	assert.EqualError(t, err, "sink down")
	assert.Contains(t, buf.String(), `"msg":"bad"`)
}

func TestContextHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ContextHandler{slog.NewJSONHandler(&buf, nil)})
	logger.InfoContext(WithRequestID(context.Background(), "abc"), "hi")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abc", rec["request_id"])
}

func TestDeleteOlderThan(t *testing.T) {
	db := testutil.NewTestDB(t)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: time.Now().AddDate(0, 0, -40), Level: "ERROR"}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: time.Now(), Level: "ERROR"}).Error)

	deleted, err := DeleteOlderThan(context.Background(), db, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
