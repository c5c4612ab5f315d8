package errors

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *mockCloser
		wantLogged bool
	}{
		{name: "successful close", closer: &mockCloser{}},
		{name: "close error is logged", closer: &mockCloser{closeErr: errors.New("disk gone")}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "close failed")

			if !tt.closer.closed {
				t.Error("expected closer to be closed")
			}
			if got := strings.Contains(buf.String(), "close failed"); got != tt.wantLogged {
				t.Errorf("logged = %v, want %v", got, tt.wantLogged)
			}
		})
	}
}

func TestDeferClose_NilCloser(t *testing.T) {
	var buf bytes.Buffer
	DeferClose(zerolog.New(&buf), nil, "close failed")
	if buf.Len() != 0 {
		t.Error("expected nothing logged for nil closer")
	}
}

func TestMust(t *testing.T) {
	Must(nil, "should not panic")

	defer func() {
		if recover() == nil {
			t.Error("expected panic on error")
		}
	}()
	Must(errors.New("boom"), "init failed")
}
