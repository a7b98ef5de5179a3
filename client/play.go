package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/wfunc/rpsarena/network"
)

func newPlayCmd(opts *options) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the queue and play from stdin",
		Long: `Connects, joins the matchmaking queue and reads commands from stdin:

  rock | paper | scissors   submit a move
  say <text>                room chat
  lobby <text>              global chat
  join                      queue again after a room ended
  leave                     leave the queue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			return play(opts.server, token, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&token, "token", os.Getenv("RPS_TOKEN"), "player token (env: RPS_TOKEN)")
	return cmd
}

// playState remembers the room the read loop last saw.
type playState struct {
	mu     sync.Mutex
	roomID string
}

func (s *playState) room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *playState) setRoom(id string) {
	s.mu.Lock()
	s.roomID = id
	s.mu.Unlock()
}

// parseLine maps one stdin line onto an outbound event.
func parseLine(line, roomID string) (event string, data any, ok bool) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "rock", "paper", "scissors":
		if roomID == "" {
			return "", nil, false
		}
		return network.EventGameMove, map[string]string{"roomId": roomID, "move": strings.ToLower(cmd)}, true
	case "say":
		if roomID == "" || rest == "" {
			return "", nil, false
		}
		return network.EventRoomChat, map[string]string{"roomId": roomID, "text": rest}, true
	case "lobby":
		if rest == "" {
			return "", nil, false
		}
		return network.EventChatMessage, map[string]string{"text": rest}, true
	case "join":
		return network.EventQueueJoin, nil, true
	case "leave":
		return network.EventQueueLeave, nil, true
	}
	return "", nil, false
}

// describe renders an inbound frame for the terminal and tracks the room.
func describe(frame []byte, state *playState) string {
	msg := gjson.ParseBytes(frame)
	data := msg.Get("data")

	switch msg.Get("event").String() {
	case network.EventOnlineCount:
		return fmt.Sprintf("online: %d", data.Int())
	case network.EventRoomJoined:
		state.setRoom(data.Get("roomId").String())
		return fmt.Sprintf("joined room %s with %s", data.Get("roomId"), data.Get("players.#.displayName"))
	case network.EventGameResult:
		var parts []string
		data.Get("resultsPerPlayer").ForEach(func(_, r gjson.Result) bool {
			parts = append(parts, fmt.Sprintf("%s played %s (%s)", r.Get("displayName"), r.Get("move"), r.Get("outcome")))
			return true
		})
		return "result: " + strings.Join(parts, ", ")
	case network.EventRoomUpdatePlayers:
		return fmt.Sprintf("players now: %s", data.Get("#.displayName"))
	case network.EventRoomEnded:
		state.setRoom("")
		return "room ended; type 'join' to queue again"
	case network.EventChatNewMessage:
		return fmt.Sprintf("[lobby] %s: %s", data.Get("displayName"), data.Get("text"))
	case network.EventRoomChatNew:
		return fmt.Sprintf("[room] %s: %s", data.Get("displayName"), data.Get("text"))
	}
	return string(frame)
}

func play(server, token string, in io.Reader, out io.Writer) error {
	u, err := url.Parse(server)
	if err != nil {
		return err
	}
	header := http.Header{"Authorization": {"Bearer " + token}}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", u, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer c.Close()

	var writeMu sync.Mutex
	write := func(event string, data any) error {
		frame, err := network.EncodePacket(event, data)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteMessage(websocket.TextMessage, frame)
	}

	state := &playState{}
	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				fmt.Fprintln(out, "connection closed:", err)
				return
			}
			fmt.Fprintln(out, describe(message, state))
		}
	}()

	if err := write(network.EventQueueJoin, nil); err != nil {
		return err
	}
	fmt.Fprintln(out, "waiting for an opponent...")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	for {
		select {
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return closeGracefully(c, &writeMu, done)
			}
			event, data, valid := parseLine(line, state.room())
			if !valid {
				fmt.Fprintln(out, "?", strings.TrimSpace(line))
				continue
			}
			if err := write(event, data); err != nil {
				return err
			}
		case <-interrupt:
			return closeGracefully(c, &writeMu, done)
		}
	}
}

func closeGracefully(c *websocket.Conn, mu *sync.Mutex, done <-chan struct{}) error {
	mu.Lock()
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	mu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return err
}
