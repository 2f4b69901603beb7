package handlers

import (
	"context"
	"errors"
	"testing"

	"fido/cmd/server/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "store answers",
			store:      pingFunc(func(context.Context) error { return nil }),
			wantStatus: 200,
			wantBody:   map[string]string{"status": "ok", "store": "memory"},
		},
		{
			name:       "store down",
			store:      pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			wantStatus: 500,
			wantBody:   map[string]string{"status": "down", "store": "memory", "error": "connection refused"},
		},
		{
			name:       "no store",
			store:      nil,
			wantStatus: 500,
			wantBody:   map[string]string{"status": "down", "store": "memory", "error": "store not initialized"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testutil.CreateTestApp(t)
			app.Get("/healthz", Healthz(tt.store, "memory"))

			resp, err := app.Test(testutil.CreateJSONRequest("GET", "/healthz", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			testutil.DecodeJSON(t, resp, &body)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
