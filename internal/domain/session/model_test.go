package session

import (
	"testing"
	"time"
)

func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "initializing to active", from: StatusInitializing, to: StatusActive, want: true},
		{name: "initializing to completed", from: StatusInitializing, to: StatusCompleted, want: true},
		{name: "initializing to failed", from: StatusInitializing, to: StatusFailed, want: true},
		{name: "active to completed", from: StatusActive, to: StatusCompleted, want: true},
		{name: "active to failed", from: StatusActive, to: StatusFailed, want: true},
		{name: "active back to initializing", from: StatusActive, to: StatusInitializing, want: false},
		{name: "completed to active", from: StatusCompleted, to: StatusActive, want: false},
		{name: "completed to failed", from: StatusCompleted, to: StatusFailed, want: false},
		{name: "failed to completed", from: StatusFailed, to: StatusCompleted, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%q) = %v, want %v", tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusInitializing.Terminal() || StatusActive.Terminal() {
		t.Error("non-terminal statuses reported terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("terminal statuses not reported terminal")
	}
}

func TestSessionDuration(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sess Session
		want int64
	}{
		{
			name: "whole seconds",
			sess: Session{StartedAt: start, EndedAt: start.Add(95 * time.Second)},
			want: 95,
		},
		{
			name: "fraction truncated",
			sess: Session{StartedAt: start, EndedAt: start.Add(95*time.Second + 900*time.Millisecond)},
			want: 95,
		},
		{
			name: "not ended yet",
			sess: Session{StartedAt: start},
			want: 0,
		},
		{
			name: "start never recorded",
			sess: Session{EndedAt: start},
			want: 0,
		},
		{
			name: "clock went backwards",
			sess: Session{StartedAt: start, EndedAt: start.Add(-3 * time.Second)},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sess.Duration(); got != tt.want {
				t.Errorf("Duration() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInputKind(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		wantKind string
		wantOK   bool
	}{
		{name: "audio only", in: Input{AudioChunk: "YWJj"}, wantKind: "audio", wantOK: true},
		{name: "text only", in: Input{Text: "hello"}, wantKind: "text", wantOK: true},
		{name: "control only", in: Input{Control: &Control{Type: ControlStop}}, wantKind: "control", wantOK: true},
		{name: "empty", in: Input{}, wantOK: false},
		{name: "audio and text", in: Input{AudioChunk: "YWJj", Text: "hello"}, wantOK: false},
		{name: "all three", in: Input{AudioChunk: "YWJj", Text: "hi", Control: &Control{Type: ControlStop}}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := tt.in.Kind()
			if ok != tt.wantOK {
				t.Fatalf("Kind() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && kind != tt.wantKind {
				t.Errorf("Kind() = %q, want %q", kind, tt.wantKind)
			}
		})
	}
}
