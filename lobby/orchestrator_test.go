package lobby

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wfunc/rpsarena/auth"
	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/network"
	"github.com/wfunc/rpsarena/session"
)

// recordingConn keeps every outbound frame in encoded form.
type recordingConn struct {
	mu     sync.Mutex
	frames []gjson.Result
}

func (c *recordingConn) Send(event string, payload any) error {
	frame, err := network.EncodePacket(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, gjson.ParseBytes(frame))
	return nil
}

func (c *recordingConn) Close() error                         { return nil }
func (c *recordingConn) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (c *recordingConn) SetHeartbeat(time.Duration)           {}
func (c *recordingConn) ReadPacket() (*network.Packet, error) { return nil, nil }

// events returns the data of every frame with the given event name.
func (c *recordingConn) events(name string) []gjson.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []gjson.Result
	for _, f := range c.frames {
		if f.Get("event").String() == name {
			out = append(out, f.Get("data"))
		}
	}
	return out
}

func (c *recordingConn) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Get("event").String())
	}
	return out
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type fakeRecorder struct {
	mu         sync.Mutex
	registered map[string]string
	rounds     []models.GameRecord
}

func (r *fakeRecorder) RegisterPlayer(userID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered == nil {
		r.registered = make(map[string]string)
	}
	r.registered[userID] = displayName
}

func (r *fakeRecorder) RecordRound(record models.GameRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, record)
}

type harness struct {
	t        *testing.T
	orch     *Orchestrator
	recorder *fakeRecorder
}

func newHarness(t *testing.T) *harness {
	rec := &fakeRecorder{}
	return &harness{
		t:        t,
		orch:     NewOrchestrator(session.NewManager(), rec, nil),
		recorder: rec,
	}
}

func (h *harness) connect(connID, userID, name string) (*session.Session, *recordingConn) {
	conn := &recordingConn{}
	sess := session.NewSession(connID, conn, auth.Identity{UserID: userID, DisplayName: name})
	require.NoError(h.t, h.orch.Connect(sess))
	return sess, conn
}

func (h *harness) send(sess *session.Session, event, data string) {
	frame := `{"event":"` + event + `"}`
	if data != "" {
		frame = `{"event":"` + event + `","data":` + data + `}`
	}
	packet, err := network.DecodePacket([]byte(frame))
	require.NoError(h.t, err)
	h.orch.Dispatch(sess, packet)
}

// seat pairs a and b and returns the room id.
func (h *harness) seat(a, b *session.Session, ca *recordingConn) string {
	h.send(a, network.EventQueueJoin, "")
	h.send(b, network.EventQueueJoin, "")
	joined := ca.events(network.EventRoomJoined)
	require.Len(h.t, joined, 1)
	return joined[0].Get("roomId").String()
}

func userIDs(list gjson.Result) []string {
	var ids []string
	list.ForEach(func(_, v gjson.Result) bool {
		ids = append(ids, v.Get("userId").String())
		return true
	})
	return ids
}

func TestConnect_DistinctOnlineCount(t *testing.T) {
	h := newHarness(t)

	_, watcher := h.connect("w", "watcher", "Watcher")
	a1, c1 := h.connect("a1", "alice", "Alice")
	a2, c2 := h.connect("a2", "alice", "Alice")

	assert.Equal(t, 2, h.orch.Presence().OnlineCount())
	// the second connection of alice does not change the count; only she
	// is told the current value
	counts := watcher.events(network.EventOnlineCount)
	require.Len(t, counts, 2)
	assert.Equal(t, int64(1), counts[0].Int())
	assert.Equal(t, int64(2), counts[1].Int())
	assert.Len(t, c1.events(network.EventOnlineCount), 1)
	require.Len(t, c2.events(network.EventOnlineCount), 1)
	assert.Equal(t, int64(2), c2.events(network.EventOnlineCount)[0].Int())

	h.orch.Disconnect(a1)
	assert.Equal(t, 2, h.orch.Presence().OnlineCount())
	assert.Len(t, watcher.events(network.EventOnlineCount), 2)

	h.orch.Disconnect(a2)
	assert.Equal(t, 1, h.orch.Presence().OnlineCount())
	counts = watcher.events(network.EventOnlineCount)
	require.Len(t, counts, 3)
	assert.Equal(t, int64(1), counts[2].Int())

	assert.Equal(t, "Alice", h.recorder.registered["alice"])
}

func TestConnect_DuplicateConnID(t *testing.T) {
	h := newHarness(t)
	h.connect("c1", "alice", "Alice")

	dup := session.NewSession("c1", &recordingConn{}, auth.Identity{UserID: "bob", DisplayName: "Bob"})
	assert.Error(t, h.orch.Connect(dup))
	assert.Equal(t, 1, h.orch.Presence().OnlineCount())
}

func TestScenario_MatchAndPlayRound(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, cb := h.connect("cb", "B", "Bob")

	roomID := h.seat(a, b, ca)
	require.NotEmpty(t, roomID)

	joinedB := cb.events(network.EventRoomJoined)
	require.Len(t, joinedB, 1)
	assert.Equal(t, roomID, joinedB[0].Get("roomId").String())
	assert.ElementsMatch(t, []string{"A", "B"}, userIDs(joinedB[0].Get("players")))
	assert.Equal(t, 0, h.orch.Queue().Len())

	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":"rock"}`)
	assert.Empty(t, ca.events(network.EventGameResult))

	h.send(b, network.EventGameMove, `{"roomId":"`+roomID+`","move":"Scissors "}`)

	for _, c := range []*recordingConn{ca, cb} {
		results := c.events(network.EventGameResult)
		require.Len(t, results, 1)
		assert.Equal(t, roomID, results[0].Get("roomId").String())
		outcomes := map[string]string{}
		moves := map[string]string{}
		results[0].Get("resultsPerPlayer").ForEach(func(_, v gjson.Result) bool {
			outcomes[v.Get("userId").String()] = v.Get("outcome").String()
			moves[v.Get("userId").String()] = v.Get("move").String()
			return true
		})
		assert.Equal(t, map[string]string{"A": "win", "B": "lose"}, outcomes)
		assert.Equal(t, "scissors", moves["B"])
	}

	require.Len(t, h.recorder.rounds, 1)
	winner, ok := h.recorder.rounds[0].Winner()
	require.True(t, ok)
	assert.Equal(t, "A", winner)
	loser, ok := h.recorder.rounds[0].Loser()
	require.True(t, ok)
	assert.Equal(t, "B", loser)
	assert.Equal(t, 1, h.recorder.rounds[0].Round)

	// the room survives for another round
	r, exists := h.orch.Rooms().GetRoom(roomID)
	require.True(t, exists)
	assert.Equal(t, 0, r.PendingMoves())
	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":"paper"}`)
	h.send(b, network.EventGameMove, `{"roomId":"`+roomID+`","move":"paper"}`)
	assert.Len(t, ca.events(network.EventGameResult), 2)
	require.Len(t, h.recorder.rounds, 2)
	_, ok = h.recorder.rounds[1].Winner()
	assert.False(t, ok)
	assert.Equal(t, 2, h.recorder.rounds[1].Round)
}

func TestGameMove_OverwriteResolvesOnce(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, _ := h.connect("cb", "B", "Bob")
	roomID := h.seat(a, b, ca)

	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":"rock"}`)
	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":"paper"}`)
	r, _ := h.orch.Rooms().GetRoom(roomID)
	assert.Equal(t, 1, r.PendingMoves())

	h.send(b, network.EventGameMove, `{"roomId":"`+roomID+`","move":"rock"}`)

	results := ca.events(network.EventGameResult)
	require.Len(t, results, 1)
	assert.Equal(t, "win", results[0].Get("resultsPerPlayer.#(userId==\"A\").outcome").String())
	assert.Len(t, h.recorder.rounds, 1)
}

func TestGameMove_InvalidIgnored(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, cb := h.connect("cb", "B", "Bob")
	roomID := h.seat(a, b, ca)
	ca.reset()
	cb.reset()

	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":"lizard"}`)
	h.send(a, network.EventGameMove, `{"roomId":"`+roomID+`","move":7}`)
	h.send(a, network.EventGameMove, `{"move":"rock"}`)
	h.send(a, network.EventGameMove, `{"roomId":"nope","move":"rock"}`)
	h.send(a, network.EventGameMove, "")

	r, _ := h.orch.Rooms().GetRoom(roomID)
	assert.Equal(t, 0, r.PendingMoves())
	assert.Empty(t, ca.names())
	assert.Empty(t, cb.names())
}

func TestGameMove_NotSeatedIgnored(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, _ := h.connect("cb", "B", "Bob")
	c, _ := h.connect("cc", "C", "Carol")
	roomID := h.seat(a, b, ca)

	h.send(c, network.EventGameMove, `{"roomId":"`+roomID+`","move":"rock"}`)
	r, _ := h.orch.Rooms().GetRoom(roomID)
	assert.Equal(t, 0, r.PendingMoves())
}

func TestQueue_SeatedUserCannotRejoin(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, _ := h.connect("cb", "B", "Bob")
	h.seat(a, b, ca)

	h.send(a, network.EventQueueJoin, "")
	assert.Equal(t, 0, h.orch.Queue().Len())
	assert.False(t, h.orch.Queue().Contains("A"))
}

func TestQueue_FIFOPairing(t *testing.T) {
	h := newHarness(t)
	s1, c1 := h.connect("c1", "u1", "U1")
	s2, _ := h.connect("c2", "u2", "U2")
	s3, c3 := h.connect("c3", "u3", "U3")
	s4, _ := h.connect("c4", "u4", "U4")

	h.send(s1, network.EventQueueJoin, "")
	h.send(s2, network.EventQueueJoin, "")
	h.send(s3, network.EventQueueJoin, "")
	h.send(s4, network.EventQueueJoin, "")

	first := c1.events(network.EventRoomJoined)
	require.Len(t, first, 1)
	assert.ElementsMatch(t, []string{"u1", "u2"}, userIDs(first[0].Get("players")))
	second := c3.events(network.EventRoomJoined)
	require.Len(t, second, 1)
	assert.ElementsMatch(t, []string{"u3", "u4"}, userIDs(second[0].Get("players")))
	assert.Equal(t, 2, h.orch.Rooms().Count())
}

func TestQueue_LeaveAndDisconnect(t *testing.T) {
	h := newHarness(t)
	a, _ := h.connect("ca", "A", "Alice")
	b, _ := h.connect("cb", "B", "Bob")

	h.send(a, network.EventQueueJoin, "")
	h.send(a, network.EventQueueLeave, "")
	assert.Equal(t, 0, h.orch.Queue().Len())

	h.send(b, network.EventQueueJoin, "")
	h.orch.Disconnect(b)
	assert.Equal(t, 0, h.orch.Queue().Len())
	assert.Equal(t, 0, h.orch.Rooms().Count())
}

func TestDisconnect_EndsRoom(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, cb := h.connect("cb", "B", "Bob")
	roomID := h.seat(a, b, ca)
	cb.reset()

	h.orch.Disconnect(a)

	names := cb.names()
	require.Contains(t, names, network.EventRoomUpdatePlayers)
	require.Contains(t, names, network.EventRoomEnded)
	assert.Less(t, indexOf(names, network.EventRoomUpdatePlayers), indexOf(names, network.EventRoomEnded))

	update := cb.events(network.EventRoomUpdatePlayers)
	assert.Equal(t, []string{"B"}, userIDs(update[0]))

	_, exists := h.orch.Rooms().GetRoom(roomID)
	assert.False(t, exists)
	_, seated := h.orch.Rooms().RoomOf("B")
	assert.False(t, seated)

	cb.reset()
	h.send(b, network.EventGameMove, `{"roomId":"`+roomID+`","move":"rock"}`)
	assert.Empty(t, cb.events(network.EventGameResult))

	// B may queue again
	h.send(b, network.EventQueueJoin, "")
	assert.True(t, h.orch.Queue().Contains("B"))
}

func TestDisconnect_OtherConnectionKeepsSeat(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, cb := h.connect("cb", "B", "Bob")
	a2, _ := h.connect("ca2", "A", "Alice")
	roomID := h.seat(a, b, ca)
	cb.reset()

	h.orch.Disconnect(a2)

	_, exists := h.orch.Rooms().GetRoom(roomID)
	assert.True(t, exists)
	assert.Empty(t, cb.events(network.EventRoomEnded))
	assert.Equal(t, 2, h.orch.Presence().OnlineCount())

	// the seated connection still owns the room
	h.orch.Disconnect(a)
	_, exists = h.orch.Rooms().GetRoom(roomID)
	assert.False(t, exists)
	assert.Len(t, cb.events(network.EventRoomEnded), 1)
}

func TestDisconnect_OtherConnectionKeepsQueueEntry(t *testing.T) {
	h := newHarness(t)
	a, _ := h.connect("ca", "A", "Alice")
	a2, _ := h.connect("ca2", "A", "Alice")

	h.send(a, network.EventQueueJoin, "")
	h.orch.Disconnect(a2)
	assert.True(t, h.orch.Queue().Contains("A"))

	h.orch.Disconnect(a)
	assert.False(t, h.orch.Queue().Contains("A"))
}

func TestDisconnect_NotSeatedIsNoop(t *testing.T) {
	h := newHarness(t)
	a, _ := h.connect("ca", "A", "Alice")
	h.orch.Disconnect(a)
	h.orch.Disconnect(a)
	assert.Equal(t, 0, h.orch.Presence().OnlineCount())
}

func TestGlobalChat(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	_, cb := h.connect("cb", "B", "Bob")

	h.send(a, network.EventChatMessage, `{"text":"  hello  ","displayName":"Mallory"}`)
	h.send(a, network.EventChatMessage, `{"text":"   "}`)
	h.send(a, network.EventChatMessage, `{"text":42}`)

	for _, c := range []*recordingConn{ca, cb} {
		msgs := c.events(network.EventChatNewMessage)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Alice", msgs[0].Get("displayName").String())
		assert.Equal(t, "hello", msgs[0].Get("text").String())
		assert.True(t, msgs[0].Get("timestamp").Exists())
	}
}

func TestRoomChat(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, cb := h.connect("cb", "B", "Bob")
	c, cc := h.connect("cc", "C", "Carol")
	roomID := h.seat(a, b, ca)

	h.send(a, network.EventRoomChat, `{"roomId":"`+roomID+`","text":" gg "}`)
	h.send(c, network.EventRoomChat, `{"roomId":"`+roomID+`","text":"let me in"}`)
	h.send(a, network.EventRoomChat, `{"roomId":"missing","text":"hi"}`)
	h.send(a, network.EventRoomChat, `{"roomId":"`+roomID+`","text":""}`)

	for _, conn := range []*recordingConn{ca, cb} {
		msgs := conn.events(network.EventRoomChatNew)
		require.Len(t, msgs, 1)
		assert.Equal(t, roomID, msgs[0].Get("roomId").String())
		assert.Equal(t, "Alice", msgs[0].Get("displayName").String())
		assert.Equal(t, "gg", msgs[0].Get("text").String())
	}
	assert.Empty(t, cc.events(network.EventRoomChatNew))
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	a, ca := h.connect("ca", "A", "Alice")
	b, _ := h.connect("cb", "B", "Bob")
	c, _ := h.connect("cc", "C", "Carol")
	h.seat(a, b, ca)
	h.send(c, network.EventQueueJoin, "")

	h.orch.Shutdown()
	assert.Equal(t, 0, h.orch.Rooms().Count())
	assert.Equal(t, 0, h.orch.Queue().Len())
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
