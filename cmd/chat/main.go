// Command chat is the terminal chat client. It drives the run coordinator
// against a relay: submits turns, polls, executes map tool calls locally,
// and renders assistant replies.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ashleydavis/wunderlust-example/internal/chat/chatlog"
	"github.com/ashleydavis/wunderlust-example/internal/chat/coordinator"
	"github.com/ashleydavis/wunderlust-example/internal/chat/mapview"
	"github.com/ashleydavis/wunderlust-example/internal/chat/relayclient"
	"github.com/ashleydavis/wunderlust-example/internal/chat/session"
	"github.com/ashleydavis/wunderlust-example/internal/chat/toolkit"
)

func main() {
	relayURL := flag.String("relay", "http://localhost:8080", "relay base URL")
	statePath := flag.String("state", session.DefaultPath(), "conversation state file")
	interval := flag.Duration("interval", coordinator.DefaultPollInterval, "poll interval")
	settle := flag.Duration("settle", coordinator.DefaultSettleDelay, "settle delay after a completed run")
	turnTimeout := flag.Duration("timeout", 2*time.Minute, "per-turn timeout")
	flag.Parse()

	transport := relayclient.NewClient(*relayURL)
	sessions := session.NewStore(*statePath)
	coord := coordinator.New(transport, sessions, *settle)

	widget := mapview.NewWidget()
	registry := toolkit.NewRegistry()
	toolkit.RegisterMapTools(registry, widget)
	chatLog := chatlog.New()

	conversationID, err := coord.StartConversation(context.Background())
	if err != nil {
		log.Fatalf("Failed to start conversation: %v", err)
	}
	fmt.Printf("Conversation %s ready. Type a message, /audio <file>, /map, /reset, or /exit.\n", conversationID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/exit" || line == "/quit":
			return

		case line == "/map":
			fmt.Println(widget)
			continue

		case line == "/reset":
			if err := coord.Reset(); err != nil {
				fmt.Printf("reset failed: %v\n", err)
				continue
			}
			chatLog.Clear()
			widget.Reset()
			id, err := coord.StartConversation(context.Background())
			if err != nil {
				fmt.Printf("failed to start a new conversation: %v\n", err)
				continue
			}
			fmt.Printf("New conversation %s.\n", id)
			continue

		case strings.HasPrefix(line, "/audio "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/audio "))
			audio, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("cannot read audio file: %v\n", err)
				continue
			}
			runTurn(chatLog, *turnTimeout, func(ctx context.Context, onUpdate coordinator.UpdateFunc) error {
				return coord.RunAudioTurn(ctx, audio, registry, *interval, onUpdate)
			})

		default:
			runTurn(chatLog, *turnTimeout, func(ctx context.Context, onUpdate coordinator.UpdateFunc) error {
				return coord.RunTurn(ctx, line, registry, *interval, onUpdate)
			})
		}
	}
}

func runTurn(chatLog *chatlog.Log, timeout time.Duration, turn func(context.Context, coordinator.UpdateFunc) error) {
	before := chatLog.Len()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := turn(ctx, func(update *coordinator.TurnUpdate) {
		chatLog.Replace(update.Messages)
		for _, inv := range update.Pending {
			fmt.Printf("  [tool] %s\n", inv.Function)
		}
	})
	if err != nil {
		var conflict *coordinator.ConflictError
		if errors.As(err, &conflict) {
			fmt.Printf("still working on the previous message (%s)\n", conflict.ActiveRunID)
			return
		}
		fmt.Printf("turn failed: %v\n", err)
		fmt.Println("use /reset to start a fresh conversation if this persists")
		return
	}

	for i, entry := range chatLog.Entries() {
		if i < before || entry.Role != "assistant" {
			continue
		}
		fmt.Printf("assistant: %s\n", entry.Text)
	}
}
