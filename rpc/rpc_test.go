package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/persistence"
	"github.com/wfunc/rpsarena/services"
)

func startLeaderboardServer(t *testing.T, db persistence.Database) *Server {
	srv, err := NewServer("127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Register(LeaderboardName, NewLeaderboardService(services.NewLeaderboardService(db))))
	go srv.Start()
	t.Cleanup(srv.Stop)
	return srv
}

func TestLeaderboardRPC(t *testing.T) {
	db := persistence.NewMemory()
	ctx := context.Background()
	require.NoError(t, db.RegisterPlayer(ctx, "a", "Alice"))
	require.NoError(t, db.IncrementWins(ctx, "a"))
	require.NoError(t, db.IncrementWins(ctx, "a"))
	require.NoError(t, db.IncrementWins(ctx, "b"))
	require.NoError(t, db.IncrementLosses(ctx, "c"))

	srv := startLeaderboardServer(t, db)
	client, err := Dial(srv.Addr())
	require.NoError(t, err)
	defer client.Close()

	entries, err := client.Top(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].UserID)
	assert.Equal(t, "Alice", entries[0].DisplayName)
	assert.Equal(t, int64(2), entries[0].Wins)
	assert.Equal(t, "b", entries[1].UserID)

	entries, err = client.Top(0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	require.NoError(t, db.SaveGameRecord(ctx, models.GameRecord{RoomID: "r1", Round: 1}))
	require.NoError(t, db.SaveGameRecord(ctx, models.GameRecord{RoomID: "r1", Round: 2}))
	records, err := client.Recent(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Round)

	entry, err := client.Player("c")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Losses)

	_, err = client.Player("zed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealthServer(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	hs := NewHealthServerOn(lis)
	go hs.Start()
	defer hs.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: LobbyService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	hs.SetNotServing()
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: LobbyService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
