package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"github.com/wfunc/mafiaserver/models"
	"github.com/wfunc/mafiaserver/network"
)

var (
	info    = color.New(color.FgCyan)
	warn    = color.New(color.FgYellow)
	danger  = color.New(color.FgRed, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, body interface{}) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return err
		}
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func printEvent(packet *network.Packet) {
	if packet.MsgID == network.MsgTypeError {
		var msg network.ErrorMessage
		if err := json.Unmarshal(packet.Data, &msg); err != nil {
			log.Printf("bad error packet: %v", err)
			return
		}
		danger.Printf("!! %s: %s\n", msg.Error, msg.Message)
		return
	}
	if packet.MsgID == network.MsgTypeHeartbeat {
		info.Println("pong")
		return
	}

	var ev models.Event
	if err := json.Unmarshal(packet.Data, &ev); err != nil {
		log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		return
	}
	switch ev.Type {
	case models.EventStateUpdated:
		printRoom(ev.Room)
	case models.EventPlayerKilled:
		danger.Printf("player %s was eliminated\n", ev.PlayerID)
	case models.EventPoliceWinAnnounced:
		success.Printf("police %s identified the mafia %s\n", ev.PlayerID, ev.TargetID)
	case models.EventGameEnded:
		warn.Println("room closed")
	default:
		info.Printf("%s %s\n", ev.Type, ev.PlayerID)
	}
}

func printRoom(room *models.RoomView) {
	if room == nil {
		return
	}
	info.Printf("room %s  phase=%s  winner=%s  v%d\n", room.Code, room.Phase, room.Winner, room.Version)
	for _, p := range room.Players {
		line := color.New(color.FgWhite)
		if !p.IsAlive {
			line = color.New(color.FgHiBlack)
		}
		marker := " "
		if p.IsHost {
			marker = "*"
		}
		line.Printf("  %s %-36s %-12s role=%-8s votes=%d\n", marker, p.ID, p.Name, p.Role, len(p.VotesReceived))
	}
}

// parseCommand turns a console line into a packet.
func parseCommand(text string) (uint16, interface{}, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, nil, false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "start":
		return network.MsgTypeStartGame, nil, true
	case "kill", "guess":
		return network.MsgTypeNightAction, network.ActionRequest{Action: fields[0], Target: arg}, true
	case "nominate":
		return network.MsgTypeNominate, network.ActionRequest{Target: arg}, true
	case "tally":
		return network.MsgTypeTallyVotes, nil, true
	case "exit":
		return network.MsgTypeExitRoom, nil, true
	case "ping":
		return network.MsgTypeHeartbeat, nil, true
	}
	return 0, nil, false
}

func main() {
	host := flag.String("server", "localhost:8080", "game server address")
	roomID := flag.String("room", "", "room id")
	playerID := flag.String("player", "", "player id")
	flag.Parse()
	if *roomID == "" || *playerID == "" {
		log.Fatal("both -room and -player are required; create or join a room over HTTP first")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws/" + *roomID, RawQuery: "player=" + url.QueryEscape(*playerID)}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet: %v", err)
				continue
			}
			printEvent(packet)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	log.Println("Commands: start | kill <id> | guess <id> | nominate <id> | tally | exit | ping")

	// Write loop
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			msgID, body, ok := parseCommand(text)
			if !ok {
				warn.Printf("unknown command %q\n", strings.TrimSpace(text))
				continue
			}
			if err := send(c, msgID, body); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
