package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/ideaboard/internal/config"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

func validOptions() ConnectOptions {
	return ConnectOptions{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: 50 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
		MaxWait:        20 * time.Millisecond,
		PingTimeout:    10 * time.Millisecond,
		DialTimeout:    10 * time.Millisecond,
	}
}

func TestValidateOptions(t *testing.T) {
	cl := &connectionLogger{logger: logger.Nop()}

	tests := []struct {
		name    string
		mutate  func(*ConnectOptions)
		wantSub string
	}{
		{name: "valid", mutate: func(*ConnectOptions) {}},
		{name: "no addr", mutate: func(o *ConnectOptions) { o.Addr = "" }, wantSub: "Addr"},
		{name: "no connect timeout", mutate: func(o *ConnectOptions) { o.ConnectTimeout = 0 }, wantSub: "ConnectTimeout"},
		{name: "no retry interval", mutate: func(o *ConnectOptions) { o.RetryInterval = 0 }, wantSub: "RetryInterval"},
		{name: "no max wait", mutate: func(o *ConnectOptions) { o.MaxWait = 0 }, wantSub: "MaxWait"},
		{name: "no ping timeout", mutate: func(o *ConnectOptions) { o.PingTimeout = 0 }, wantSub: "PingTimeout"},
		{name: "negative warn threshold", mutate: func(o *ConnectOptions) { o.WarnThreshold = -1 }, wantSub: "WarnThreshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := validOptions()
			tt.mutate(&opts)
			err := cl.validateOptions(opts)
			if tt.wantSub == "" {
				if err != nil {
					t.Fatalf("validateOptions() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("validateOptions() error = %v, want mention of %s", err, tt.wantSub)
			}
		})
	}
}

func TestNextWait(t *testing.T) {
	if got := nextWait(2*time.Second, 10*time.Second); got != 4*time.Second {
		t.Errorf("nextWait(2s) = %v, want 4s", got)
	}
	if got := nextWait(8*time.Second, 10*time.Second); got != 10*time.Second {
		t.Errorf("nextWait(8s) = %v, want capped 10s", got)
	}
}

func TestNewGivesUpAfterTimeout(t *testing.T) {
	start := time.Now()
	client, err := New(context.Background(), validOptions(), logger.Nop())
	if err == nil {
		t.Fatal("New() against a closed port should fail")
	}
	if client != nil {
		t.Error("New() should not return a client on failure")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("New() took %v, should stop near ConnectTimeout", elapsed)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{RedisAddr: "redis:6379", RedisDB: 2, RedisPoolSize: 4, RedisMaxWait: time.Second}
	opts := OptionsFromConfig(cfg)
	if opts.Addr != "redis:6379" || opts.RedisDB != 2 || opts.PoolSize != 4 || opts.MaxWait != time.Second {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
}

func TestAttemptFailedEscalates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := &connectionLogger{logger: logger.FromZap(zap.New(core))}
	boom := errors.New("connection refused")

	cl.attemptFailed("redis:6379", 1, 2, time.Minute, time.Second, boom)
	cl.attemptFailed("redis:6379", 3, 2, time.Minute, time.Second, boom)
	cl.attemptFailed("redis:6379", 1, 2, 5*time.Second, time.Second, boom)

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	want := []zapcore.Level{zapcore.WarnLevel, zapcore.ErrorLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, want[i])
		}
	}
}
