package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryRecord struct {
	query    string
	duration time.Duration
	failed   bool
}

type recordingQueryObserver struct {
	records []queryRecord
}

func (o *recordingQueryObserver) ObserveDBQuery(query string, duration time.Duration, failed bool) {
	o.records = append(o.records, queryRecord{query: query, duration: duration, failed: failed})
}

func TestMetricsTracer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	obs := &recordingQueryObserver{}
	tracer := NewMetricsTracer(obs, clock)

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "\n  select value FROM vote_kv WHERE key = $1"})
	clock.Advance(15 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO vote_kv"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("unique violation")})

	require.Len(t, obs.records, 2)
	assert.Equal(t, queryRecord{query: "SELECT", duration: 15 * time.Millisecond}, obs.records[0])
	assert.Equal(t, "INSERT", obs.records[1].query)
	assert.True(t, obs.records[1].failed)
}

func TestMetricsTracer_EndWithoutStart(t *testing.T) {
	obs := &recordingQueryObserver{}
	tracer := NewMetricsTracer(obs, clockwork.NewFakeClock())

	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

	assert.Empty(t, obs.records)
}

func TestQueryName(t *testing.T) {
	assert.Equal(t, "unknown", queryName(""))
	assert.Equal(t, "unknown", queryName("   "))
	assert.Equal(t, "DELETE", queryName("delete from vote_kv"))
	assert.Equal(t, "SELECT", queryName("SELECT 1"))
}
