package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sekmet/corefans-relay/internal/client"
	"github.com/sekmet/corefans-relay/internal/history"
	"github.com/sekmet/corefans-relay/internal/relay"
	"github.com/sekmet/corefans-relay/internal/types"
)

var (
	url          string
	roomId       string
	name         string
	protocol     string
	historyPath  string
	historyLines int
)

func main() {
	flag.StringVar(&url, "url", "ws://localhost:8000/ws", "relay websocket url")
	flag.StringVar(&roomId, "room", "", "room to join")
	flag.StringVar(&name, "name", "anonymous", "display name")
	flag.StringVar(&protocol, "protocol", string(client.ProtocolRelay), "endpoint protocol: relay or echo")
	flag.StringVar(&historyPath, "db", "livechat.db", "history database path")
	flag.IntVar(&historyLines, "history", 20, "history lines to replay on start")
	flag.Parse()

	logger := log.New(os.Stderr, "[livechat] ", log.LstdFlags)

	store, err := history.OpenStore(historyPath)
	if err != nil {
		logger.Fatal("history store:", err)
	}
	defer store.Close()

	hist := history.NewLog(history.DefaultChatCap, history.DefaultTipCap, store, logger)
	if err := hist.Restore(roomId); err != nil {
		logger.Println("history restore:", err)
	}
	for _, rec := range hist.Load(roomId, historyLines) {
		printRecord(rec)
	}

	ch, err := client.NewChannel(client.Config{
		URL:         url + "?name=" + name,
		RoomId:      roomId,
		DisplayName: name,
		Protocol:    client.Protocol(protocol),
	}, logger)
	if err != nil {
		logger.Fatal("channel:", err)
	}
	defer ch.Close()

	ch.Connect()

	go func() {
		for {
			select {
			case s := <-ch.Statuses():
				fmt.Printf("* connection %s\n", s)
			case ev := <-ch.Events():
				printEvent(ev)
				if rec, ok := history.RecordFromEvent(ev); ok {
					hist.Append(ev.RoomId, rec)
				}
			case <-ch.Done():
				fmt.Println("* connection gone, press enter to exit")
				return
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ch.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			ch.InputChanged()
			ch.SendChat(line)
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit":
			return
		case "/tip":
			amountStr, message, _ := strings.Cut(rest, " ")
			amount, err := strconv.ParseFloat(amountStr, 64)
			if err != nil || amount <= 0 {
				fmt.Println("usage: /tip <amount> [message]")
				continue
			}
			ch.SendTip(amount, message)
		case "/mute":
			ch.Send(relay.Event{Type: relay.EventMute, RoomId: roomId, User: rest})
		case "/unmute":
			ch.Send(relay.Event{Type: relay.EventUnmute, RoomId: roomId, User: rest})
		case "/tips":
			for _, rec := range hist.LoadTips(roomId, 0) {
				printRecord(rec)
			}
		case "/clear":
			hist.Clear(roomId)
			fmt.Println("* history cleared")
		default:
			fmt.Println("commands: /quit /tip /mute /unmute /tips /clear")
		}
	}
}

func printEvent(ev relay.Event) {
	switch ev.Type {
	case relay.EventChat:
		fmt.Printf("<%s> %s\n", ev.User, ev.Text)
	case relay.EventTip:
		fmt.Printf("* %s tipped %.2f %s\n", ev.User, ev.Amount, ev.Message)
	case relay.EventViewerCount:
		fmt.Printf("* %d watching\n", ev.Count)
	case relay.EventTyping:
		if ev.IsTyping {
			fmt.Printf("* %s is typing\n", ev.User)
		}
	case relay.EventPresence:
		fmt.Printf("* here: %s\n", strings.Join(ev.Users, ", "))
	case relay.EventSystem:
		fmt.Printf("* %s\n", ev.Text)
	case relay.EventRoomStarted:
		if ev.Room != nil {
			fmt.Printf("* live now: %s (%s)\n", ev.Room.Title, ev.RoomId)
		}
	case relay.EventRoomEnded:
		fmt.Printf("* room %s ended\n", ev.RoomId)
	case relay.EventError:
		fmt.Printf("! %s (%d)\n", ev.Message, ev.Code)
	}
}

func printRecord(rec types.HistoryRecord) {
	switch rec.Kind {
	case types.HistoryTip:
		fmt.Printf("* %s tipped %.2f %s\n", rec.User, rec.Amount, rec.Text)
	case types.HistorySystem:
		fmt.Printf("* %s\n", rec.Text)
	default:
		fmt.Printf("<%s> %s\n", rec.User, rec.Text)
	}
}
