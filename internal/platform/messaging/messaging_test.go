package messaging

import (
	"context"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "nats://localhost:4222", false},
		{"cluster", "nats://a:4222, nats://b:4222", false},
		{"tls", "tls://nats.internal:4443", false},
		{"empty", "", true},
		{"http", "http://localhost:4222", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	if _, err := New(ctx, "nats://localhost:59999", "assessor-test"); err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}
