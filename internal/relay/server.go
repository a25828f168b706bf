package relay

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sekmet/corefans-relay/internal/stats"
	"github.com/sekmet/corefans-relay/internal/types"
)

// RelayServer ties the registry and fan-out together and owns the lifecycle
// of every connected session.
type RelayServer struct {
	log      *log.Logger
	stats    stats.StatsProvider
	fan      *Fanout
	registry *Registry
}

func NewRelayServer(logger *log.Logger, st stats.StatsProvider) *RelayServer {
	fan := NewFanout(logger, st)
	return &RelayServer{
		log:      logger,
		stats:    st,
		fan:      fan,
		registry: NewRegistry(fan, logger, st),
	}
}

func (rs *RelayServer) StartRoom(ownerId, title, description string) (types.LiveRoom, error) {
	return rs.registry.StartRoom(ownerId, title, description)
}

func (rs *RelayServer) StopRoom(ownerId string) []string {
	return rs.registry.StopRoom(ownerId)
}

func (rs *RelayServer) ListLive() []types.LiveRoom {
	return rs.registry.ListLive()
}

// HandleConnection adopts an upgraded websocket connection for the given
// viewer and blocks until the connection is gone. Cleanup of membership
// happens on the way out regardless of how the transport died.
func (rs *RelayServer) HandleConnection(conn *websocket.Conn, viewer types.Viewer, announcements bool) {
	c := NewSession(viewer, conn, rs, rs.log, announcements)

	rs.fan.Register(c)
	rs.stats.Incr(stats.ActiveSessions)
	rs.stats.Incr(stats.TotalConnections)
	rs.log.Printf("session opened for %q", viewer.DisplayName)

	go c.Write()
	c.Read()
}

func (rs *RelayServer) dropSession(c *Session) {
	rs.registry.DropSession(c)
	rs.fan.Deregister(c)
	rs.stats.Decr(stats.ActiveSessions)
	rs.log.Printf("session closed for %q", c.viewer.DisplayName)
}

// Shutdown stops every session and waits for them to drain or for ctx to
// expire.
func (rs *RelayServer) Shutdown(ctx context.Context) error {
	rs.log.Println("shutting down relay")
	rs.fan.CloseAll()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for rs.fan.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}
