package federation_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/federation/fedtest"
	"github.com/Mirebella/fedimint/internal/infra/tlsroots"
)

func TestAPI_StatusOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(&fedtest.Guardian{})
	t.Cleanup(srv.Close)
	peers := []domain.PeerEndpoint{{ID: 0, URL: "wss://" + strings.TrimPrefix(srv.URL, "https://")}}

	pool := tlsroots.NewEmptyPool()
	pool.AddCert(srv.Certificate())

	tests := []struct {
		name   string
		opts   federation.APIOptions
		online bool
	}{
		{"trusted test CA", federation.APIOptions{TLSConfig: pool.TLSConfig()}, true},
		{"system roots only", federation.APIOptions{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := federation.NewAPI(peers, "", tt.opts).Status(context.Background())
			if len(status) != 1 {
				t.Fatalf("Status() = %+v", status)
			}
			if status[0].Online != tt.online {
				t.Errorf("Online = %v, want %v (error %q)", status[0].Online, tt.online, status[0].Error)
			}
		})
	}
}
