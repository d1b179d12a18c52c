package codec

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/neuroadapt/internal/signal"
)

// startServer runs an acquisition server over an in-memory listener.
func startServer(t *testing.T, factory SourceFactory) func(sessionID string, length int) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterAcquisitionServer(srv, NewServer(factory, nil))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return func(sessionID string, length int) *Client {
		c, err := NewClient("passthrough:///bufnet", sessionID, length,
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		return c
	}
}

func TestServer_SyntheticRoundTrip(t *testing.T) {
	dial := startServer(t, func(_ string, length int) (signal.Source, error) {
		cfg := signal.DefaultSyntheticConfig()
		cfg.Length = length
		return signal.NewSyntheticSource(cfg), nil
	})

	remote := dial("s1", 32)
	cfg := signal.DefaultSyntheticConfig()
	cfg.Length = 32
	local := signal.NewSyntheticSource(cfg)

	for i := 0; i < 3; i++ {
		got, err := remote.Next(context.Background())
		if err != nil {
			t.Fatalf("remote window %d: %v", i, err)
		}
		want, err := local.Next(context.Background())
		if err != nil {
			t.Fatalf("local window %d: %v", i, err)
		}
		if diff := cmp.Diff(want.Samples(), got.Samples()); diff != "" {
			t.Errorf("window %d differs (-want +got):\n%s", i, diff)
		}
	}
}

func TestServer_SessionsAreIndependent(t *testing.T) {
	var mu sync.Mutex
	opened := map[string]int{}
	dial := startServer(t, func(sessionID string, length int) (signal.Source, error) {
		mu.Lock()
		defer mu.Unlock()
		opened[sessionID]++
		return signal.NewSliceSource(signal.NewBuffer(make([]float64, length))), nil
	})

	a := dial("a", 2)
	b := dial("b", 2)
	if _, err := a.Next(context.Background()); err != nil {
		t.Fatalf("a.Next: %v", err)
	}
	if _, err := b.Next(context.Background()); err != nil {
		t.Fatalf("b.Next: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(map[string]int{"a": 1, "b": 1}, opened); diff != "" {
		t.Errorf("opened sources (-want +got):\n%s", diff)
	}
}

func TestServer_ExhaustedSourceIsEOF(t *testing.T) {
	dial := startServer(t, func(_ string, length int) (signal.Source, error) {
		return signal.NewSliceSource(signal.NewBuffer([]float64{1, 2})), nil
	})

	c := dial("s1", 2)
	if _, err := c.Next(context.Background()); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestServer_LengthMismatch(t *testing.T) {
	dial := startServer(t, func(_ string, _ int) (signal.Source, error) {
		return signal.NewSliceSource(signal.NewBuffer([]float64{1, 2, 3})), nil
	})

	_, err := dial("s1", 8).Next(context.Background())
	if err == nil || !strings.Contains(err.Error(), "want 8") {
		t.Fatalf("expected length mismatch error, got %v", err)
	}
}

func TestServer_FactoryError(t *testing.T) {
	dial := startServer(t, func(_ string, _ int) (signal.Source, error) {
		return nil, errors.New("no device")
	})

	_, err := dial("s1", 8).Next(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no device") {
		t.Fatalf("expected factory error, got %v", err)
	}
}
