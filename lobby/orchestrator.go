// Package lobby routes socket events to presence, matchmaking and rooms.
package lobby

import (
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wfunc/rpsarena/broadcast"
	"github.com/wfunc/rpsarena/game"
	"github.com/wfunc/rpsarena/logger"
	"github.com/wfunc/rpsarena/matchmaking"
	"github.com/wfunc/rpsarena/models"
	"github.com/wfunc/rpsarena/network"
	"github.com/wfunc/rpsarena/presence"
	"github.com/wfunc/rpsarena/room"
	"github.com/wfunc/rpsarena/session"
)

// Recorder receives leaderboard side effects. services.Recorder applies
// them in the background.
type Recorder interface {
	RegisterPlayer(userID, displayName string)
	RecordRound(record models.GameRecord)
}

// Metrics is the subset of monitor.Monitor used here.
type Metrics interface {
	SetOnlinePlayers(count int)
	SetActiveRooms(count int)
	SetQueueLength(count int)
	IncMessagesReceived(event string)
	IncRoundsResolved(outcome string)
	ObserveMessageLatency(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SetOnlinePlayers(int)                {}
func (nopMetrics) SetActiveRooms(int)                  {}
func (nopMetrics) SetQueueLength(int)                  {}
func (nopMetrics) IncMessagesReceived(string)          {}
func (nopMetrics) IncRoundsResolved(string)            {}
func (nopMetrics) ObserveMessageLatency(time.Duration) {}

type nopRecorder struct{}

func (nopRecorder) RegisterPlayer(string, string)  {}
func (nopRecorder) RecordRound(models.GameRecord) {}

// Orchestrator is the single writer for presence, queue and rooms. Every
// Connect, Dispatch and Disconnect runs under one mutex.
type Orchestrator struct {
	sessions    *session.Manager
	presence    *presence.Tracker
	queue       *matchmaking.Queue
	rooms       *room.Manager
	broadcaster broadcast.Broadcaster
	recorder    Recorder
	metrics     Metrics
	now         func() time.Time
	mutex       sync.Mutex
}

// NewOrchestrator wires the core components around sessions. recorder and
// metrics may be nil.
func NewOrchestrator(sessions *session.Manager, recorder Recorder, metrics Metrics) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	b := broadcast.NewSessionBroadcaster(sessions)
	return &Orchestrator{
		sessions:    sessions,
		presence:    presence.NewTracker(),
		queue:       matchmaking.NewQueue(),
		rooms:       room.NewRoomManager(b),
		broadcaster: b,
		recorder:    recorder,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (o *Orchestrator) Presence() *presence.Tracker { return o.presence }
func (o *Orchestrator) Queue() *matchmaking.Queue    { return o.queue }
func (o *Orchestrator) Rooms() *room.Manager         { return o.rooms }

// Connect admits an authenticated session.
func (o *Orchestrator) Connect(sess *session.Session) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	changed, err := o.presence.Register(sess.ID, sess.Identity)
	if err != nil {
		return err
	}
	o.sessions.Add(sess)

	logger.Log.Infow("session connected",
		"connId", sess.ID,
		"userId", sess.Identity.UserID,
		"displayName", sess.Identity.DisplayName,
	)

	count := o.presence.OnlineCount()
	o.metrics.SetOnlinePlayers(count)
	if changed {
		o.broadcastAll(network.EventOnlineCount, count)
	} else if err := sess.Send(network.EventOnlineCount, count); err != nil {
		logger.Log.Debugf("send onlineCount to %s: %v", sess.ID, err)
	}

	o.recorder.RegisterPlayer(sess.Identity.UserID, sess.Identity.DisplayName)
	return nil
}

// Disconnect runs the three cleanups unconditionally: presence, queue, room.
// Queue entry and seat are only released when they belong to this
// connection; another tab of the same user keeps them.
func (o *Orchestrator) Disconnect(sess *session.Session) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	userID := sess.Identity.UserID
	o.sessions.Remove(sess.ID)

	if o.presence.Unregister(sess.ID) {
		count := o.presence.OnlineCount()
		o.metrics.SetOnlinePlayers(count)
		o.broadcastAll(network.EventOnlineCount, count)
	}

	if o.queue.LeaveConn(userID, sess.ID) {
		o.metrics.SetQueueLength(o.queue.Len())
	}

	if roomID, ok := o.rooms.RoomOf(userID); ok {
		if r, exists := o.rooms.GetRoom(roomID); exists {
			if connID, _ := r.ConnOf(userID); connID == sess.ID {
				o.leaveRoom(roomID, userID)
			}
		}
	}

	logger.Log.Infow("session disconnected", "connId", sess.ID, "userId", userID)
}

// Dispatch handles one inbound packet. Malformed payloads and references to
// missing rooms are ignored.
func (o *Orchestrator) Dispatch(sess *session.Session, packet *network.Packet) {
	start := o.now()
	sess.Touch()
	o.metrics.IncMessagesReceived(packet.Event)

	o.mutex.Lock()
	defer func() {
		o.mutex.Unlock()
		o.metrics.ObserveMessageLatency(o.now().Sub(start))
	}()

	switch packet.Event {
	case network.EventQueueJoin:
		o.handleQueueJoin(sess)
	case network.EventQueueLeave:
		o.handleQueueLeave(sess)
	case network.EventGameMove:
		o.handleGameMove(sess, packet)
	case network.EventChatMessage:
		o.handleChat(sess, packet)
	case network.EventRoomChat:
		o.handleRoomChat(sess, packet)
	default:
		logger.Log.Debugf("unknown event %q from %s", packet.Event, sess.ID)
	}
}

func (o *Orchestrator) handleQueueJoin(sess *session.Session) {
	entry := matchmaking.Entry{
		UserID:      sess.Identity.UserID,
		DisplayName: sess.Identity.DisplayName,
		ConnID:      sess.ID,
		QueuedAt:    o.now(),
	}
	if !o.queue.Join(entry, o.rooms) {
		return
	}

	for _, pair := range o.queue.Drain() {
		o.startRoom(pair)
	}
	o.metrics.SetQueueLength(o.queue.Len())
	o.metrics.SetActiveRooms(o.rooms.Count())
}

func (o *Orchestrator) startRoom(pair matchmaking.Pair) {
	r := o.rooms.CreateRoom(pair[0], pair[1])

	msg := network.RoomJoined{RoomID: r.ID, Players: playerViews(r.Players[:])}
	for _, p := range r.Players {
		if err := o.broadcaster.BroadcastToConnections([]string{p.ConnID}, network.EventRoomJoined, msg); err != nil {
			logger.Log.Warnf("room %s: notify %s: %v", r.ID, p.UserID, err)
		}
	}
	logger.Log.Infow("room created",
		"roomId", r.ID,
		"players", []string{r.Players[0].UserID, r.Players[1].UserID},
	)
}

func (o *Orchestrator) handleQueueLeave(sess *session.Session) {
	if o.queue.Leave(sess.Identity.UserID) {
		o.metrics.SetQueueLength(o.queue.Len())
	}
}

func (o *Orchestrator) handleGameMove(sess *session.Session, packet *network.Packet) {
	roomID, ok := stringField(packet, "roomId")
	if !ok {
		return
	}
	move, ok := stringField(packet, "move")
	if !ok {
		return
	}

	outcome, accepted := o.rooms.SubmitMove(roomID, sess.Identity.UserID, move)
	if !accepted || outcome == nil {
		return
	}

	r, exists := o.rooms.GetRoom(roomID)
	if exists {
		msg := network.GameResult{RoomID: roomID, ResultsPerPlayer: outcome.Result.Slice()}
		if err := r.Broadcast(network.EventGameResult, msg); err != nil {
			logger.Log.Warnf("room %s: broadcast result: %v", roomID, err)
		}
	}

	label := string(game.Draw)
	if _, _, decisive := outcome.Result.Decisive(); decisive {
		label = "decisive"
	}
	o.metrics.IncRoundsResolved(label)
	o.recorder.RecordRound(gameRecord(outcome, o.now()))
}

func (o *Orchestrator) handleChat(sess *session.Session, packet *network.Packet) {
	text, ok := chatText(packet)
	if !ok {
		return
	}
	o.broadcastAll(network.EventChatNewMessage, network.ChatMessage{
		DisplayName: sess.Identity.DisplayName,
		Text:        text,
		Timestamp:   o.now(),
	})
}

func (o *Orchestrator) handleRoomChat(sess *session.Session, packet *network.Packet) {
	roomID, ok := stringField(packet, "roomId")
	if !ok {
		return
	}
	text, ok := chatText(packet)
	if !ok {
		return
	}
	r, exists := o.rooms.GetRoom(roomID)
	if !exists || !r.HasPlayer(sess.Identity.UserID) {
		return
	}
	err := r.Broadcast(network.EventRoomChatNew, network.RoomChatMessage{
		RoomID:      roomID,
		DisplayName: sess.Identity.DisplayName,
		Text:        text,
		Timestamp:   o.now(),
	})
	if err != nil {
		logger.Log.Warnf("room %s: broadcast chat: %v", roomID, err)
	}
}

// leaveRoom tears the room down and tells whoever is left.
func (o *Orchestrator) leaveRoom(roomID, userID string) {
	_, remaining, removed := o.rooms.RemovePlayer(roomID, userID)
	if !removed {
		return
	}
	o.metrics.SetActiveRooms(o.rooms.Count())

	if len(remaining) > 0 {
		connIDs := make([]string, 0, len(remaining))
		for _, p := range remaining {
			connIDs = append(connIDs, p.ConnID)
		}
		if err := o.broadcaster.BroadcastToConnections(connIDs, network.EventRoomUpdatePlayers, playerViews(remaining)); err != nil {
			logger.Log.Warnf("room %s: update players: %v", roomID, err)
		}
		if err := o.broadcaster.BroadcastToConnections(connIDs, network.EventRoomEnded, nil); err != nil {
			logger.Log.Warnf("room %s: ended: %v", roomID, err)
		}
	}
	logger.Log.Infow("room ended", "roomId", roomID, "leaver", userID)
}

func (o *Orchestrator) broadcastAll(event string, payload any) {
	if err := o.broadcaster.BroadcastToAll(event, payload); err != nil {
		logger.Log.Warnf("broadcast %s: %v", event, err)
	}
}

// Shutdown destroys every room and forgets the queue. Connections are
// closed by the transport.
func (o *Orchestrator) Shutdown() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.rooms.CloseAll()
	o.queue.Reset()
	o.metrics.SetActiveRooms(0)
	o.metrics.SetQueueLength(0)
}

func playerViews(players []room.Player) []network.PlayerView {
	views := make([]network.PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, network.PlayerView{UserID: p.UserID, DisplayName: p.DisplayName})
	}
	return views
}

func gameRecord(outcome *room.RoundOutcome, at time.Time) models.GameRecord {
	players := make([]models.PlayerInfo, 0, len(outcome.Result))
	for _, r := range outcome.Result {
		players = append(players, models.PlayerInfo{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Move:        r.Move.String(),
			Outcome:     string(r.Outcome),
		})
	}
	return models.GameRecord{
		RoomID:    outcome.RoomID,
		Round:     outcome.Round,
		Players:   players,
		CreatedAt: at,
	}
}

// stringField returns a non-empty string member of the packet data.
func stringField(packet *network.Packet, name string) (string, bool) {
	f := packet.Field(name)
	if f.Type != gjson.String || f.Str == "" {
		return "", false
	}
	return f.Str, true
}

func chatText(packet *network.Packet) (string, bool) {
	raw, ok := stringField(packet, "text")
	if !ok {
		return "", false
	}
	text := strings.TrimSpace(raw)
	return text, text != ""
}
