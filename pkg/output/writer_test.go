package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	assert.NotNil(t, w)
	assert.Equal(t, "job-123", w.jobID)
	assert.Equal(t, "s3", w.provider)
}

func TestJSONLWriter_WriteUsage(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	oldest := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	newest := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	usage := &UsageRecord{
		Prefix:  "data/2024/",
		Depth:   2,
		Bytes:   1048576,
		Objects: 42,
		Oldest:  &oldest,
		Newest:  &newest,
	}

	err := w.WriteUsage(context.Background(), usage)
	require.NoError(t, err)

	var record Record
	err = json.Unmarshal(buf.Bytes(), &record)
	require.NoError(t, err)

	assert.Equal(t, TypeUsage, record.Type)
	assert.Equal(t, "job-123", record.JobID)
	assert.Equal(t, "s3", record.Provider)
	assert.False(t, record.TS.IsZero())

	var data UsageRecord
	err = json.Unmarshal(record.Data, &data)
	require.NoError(t, err)

	assert.Equal(t, "data/2024/", data.Prefix)
	assert.Equal(t, 2, data.Depth)
	assert.Equal(t, int64(1048576), data.Bytes)
	assert.Equal(t, int64(42), data.Objects)
	require.NotNil(t, data.Oldest)
	assert.Equal(t, oldest, *data.Oldest)
	require.NotNil(t, data.Newest)
	assert.Equal(t, newest, *data.Newest)
	assert.Nil(t, data.Tiers)
}

func TestJSONLWriter_WriteUsage_EmptyPrefixOmitsTimes(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	err := w.WriteUsage(context.Background(), &UsageRecord{Prefix: ""})
	require.NoError(t, err)

	// Empty prefixes carry no objects, so the timestamps are omitted.
	line := buf.String()
	assert.NotContains(t, line, "oldest")
	assert.NotContains(t, line, "newest")
	assert.Contains(t, line, `"prefix":""`)
}

func TestJSONLWriter_WriteUsage_WithTiers(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	usage := &UsageRecord{
		Prefix:  "media/",
		Bytes:   300,
		Objects: 3,
		Tiers: map[string]TierUsage{
			"standard": {Bytes: 250, Objects: 2},
			"glacier":  {Bytes: 50, Objects: 1},
		},
	}

	err := w.WriteUsage(context.Background(), usage)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	var data UsageRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, TierUsage{Bytes: 250, Objects: 2}, data.Tiers["standard"])
	assert.Equal(t, TierUsage{Bytes: 50, Objects: 1}, data.Tiers["glacier"])
}

func TestJSONLWriter_WriteError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	errRec := &ErrorRecord{
		Code:    ErrCodeMalformed,
		Message: "negative size",
		Key:     "data/bad-object",
	}

	err := w.WriteError(context.Background(), errRec)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeError, record.Type)

	var data ErrorRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, ErrCodeMalformed, data.Code)
	assert.Equal(t, "data/bad-object", data.Key)
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	sum := &SummaryRecord{
		ObjectsListed:   1000,
		ObjectsSkipped:  3,
		BytesTotal:      1 << 30,
		Pages:           2,
		Duration:        90 * time.Second,
		DurationHuman:   "1m30s",
		Truncated:       true,
		TruncatedReason: "max-objects",
	}

	err := w.WriteSummary(context.Background(), sum)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeSummary, record.Type)

	var data SummaryRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, int64(1000), data.ObjectsListed)
	assert.Equal(t, int64(3), data.ObjectsSkipped)
	assert.True(t, data.Truncated)
	assert.Equal(t, "max-objects", data.TruncatedReason)
}

func TestJSONLWriter_OneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	ctx := context.Background()
	require.NoError(t, w.WriteUsage(ctx, &UsageRecord{Prefix: "a/"}))
	require.NoError(t, w.WriteProgress(ctx, &ProgressRecord{ObjectsListed: 10}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{ObjectsListed: 10}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record))
	}
}

func TestJSONLWriter_Closed(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.Close())

	err := w.WriteUsage(context.Background(), &UsageRecord{Prefix: "a/"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ContextCancelled(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteUsage(ctx, &UsageRecord{Prefix: "a/"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

// shortWriter writes at most n bytes per call, exercising the short
// write handling in writeAll.
type shortWriter struct {
	buf bytes.Buffer
	n   int
}

func (sw *shortWriter) Write(p []byte) (int, error) {
	if len(p) > sw.n {
		p = p[:sw.n]
	}
	return sw.buf.Write(p)
}

func TestJSONLWriter_ShortWrites(t *testing.T) {
	sw := &shortWriter{n: 7}
	w := NewJSONLWriter(sw, "job-123", "s3")

	err := w.WriteUsage(context.Background(), &UsageRecord{Prefix: "data/", Bytes: 123})
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(sw.buf.Bytes(), &record))
	assert.Equal(t, TypeUsage, record.Type)
}

type failWriter struct{ err error }

func (fw *failWriter) Write([]byte) (int, error) { return 0, fw.err }

func TestJSONLWriter_WriteFailure(t *testing.T) {
	sentinel := errors.New("disk full")
	w := NewJSONLWriter(&failWriter{err: sentinel}, "job-123", "s3")

	err := w.WriteUsage(context.Background(), &UsageRecord{Prefix: "a/"})
	require.Error(t, err)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "write", werr.Op)
	assert.ErrorIs(t, err, sentinel)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&syncWriter{w: &buf}, "job-123", "s3")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = w.WriteUsage(context.Background(), &UsageRecord{Prefix: "p/"})
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 200)
	for _, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record), "line %q", line)
	}
}

// syncWriter serializes writes to the wrapped writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *syncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}
