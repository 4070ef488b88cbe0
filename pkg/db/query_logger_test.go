package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

func newCapturingQueryLogger(slow time.Duration) (gormlogger.Interface, *bytes.Buffer) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	return newQueryLogger(logg, slow), &buf
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	ql, buf := newCapturingQueryLogger(10 * time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(ctx, time.Now(), sql, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast successful query should not log: %s", buf.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	if !strings.Contains(buf.String(), "db.slow_query") {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	ql.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("record not found is not a failure: %s", buf.String())
	}

	ql.Trace(ctx, time.Now(), sql, errors.New("relation does not exist"))
	if !strings.Contains(buf.String(), "db.query_failed") || !strings.Contains(buf.String(), "relation does not exist") {
		t.Fatalf("expected failed query entry, got %s", buf.String())
	}
}

func TestQueryLoggerSilentMode(t *testing.T) {
	ql, buf := newCapturingQueryLogger(time.Nanosecond)
	silent := ql.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 0 }, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log: %s", buf.String())
	}
}

func TestQueryLoggerTruncatesSQL(t *testing.T) {
	ql, buf := newCapturingQueryLogger(time.Nanosecond)
	long := "SELECT '" + strings.Repeat("a", 2*maxLoggedSQL) + "'"
	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return long, 0 }, nil)
	if strings.Contains(buf.String(), long) {
		t.Fatalf("sql should be truncated")
	}
}

func TestNewQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatalf("expected discard logger")
	}
}
