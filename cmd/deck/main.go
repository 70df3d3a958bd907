package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"deckpair/internal/app/events"
	"deckpair/internal/app/runtime"
	"deckpair/internal/domain"
	"deckpair/internal/infrastructure/config"
	sqlitestorage "deckpair/internal/infrastructure/persistence/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	store, err := sqlitestorage.NewDeckStore(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	run, err := runtime.Start(ctx, cfg, store)
	if err != nil {
		log.Fatal(err)
	}
	defer run.Shutdown()

	log.Println("deck: ready, type 'help' for commands")

	go streamLive(ctx, run)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("deck: shut down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "exit" {
				return
			}
			handle(run, line)
		}
	}
}

// streamLive prints chat, stream events and link changes as they happen,
// the 'chat' and 'events' commands only replay the backlog.
func streamLive(ctx context.Context, run *runtime.Runtime) {
	bus := run.Bus()
	msgs, stopMsgs := bus.Subscribe(events.TopicChatMessage)
	defer stopMsgs()
	evs, stopEvs := bus.Subscribe(events.TopicStreamEvent)
	defer stopEvs()
	peers, stopPeers := bus.Subscribe(events.TopicPeerStatus)
	defer stopPeers()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-msgs:
			if !ok {
				return
			}
			if m, ok := v.(domain.ChatMessage); ok {
				fmt.Printf("%s %s: %s\n", m.ID, m.Username, m.Text)
			}
		case v, ok := <-evs:
			if !ok {
				return
			}
			if e, ok := v.(domain.StreamEvent); ok {
				fmt.Printf("[%s] %s %s\n", e.Kind, e.Username, e.Details)
			}
		case v, ok := <-peers:
			if !ok {
				return
			}
			if st, ok := v.(domain.ConnStatus); ok {
				log.Printf("deck: overlay link %s", st)
			}
		}
	}
}

func handle(run *runtime.Runtime, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "help":
		printHelp()
	case "pair":
		if len(args) != 1 {
			err = fmt.Errorf("usage: pair <code>")
			break
		}
		if err = run.Pair(args[0]); err == nil {
			log.Println("deck: pairing...")
		}
	case "unpair":
		run.Unpair()
	case "resume":
		run.ResumeLink()
	case "status":
		fmt.Printf("peer: %s (%d ms)  chat: %s  viewers: %d\n",
			run.PeerStatus(), run.PeerLatencyMS(), run.ChatStatus(), run.Viewers())
	case "sfx":
		if len(args) != 1 {
			err = fmt.Errorf("usage: sfx <id>")
			break
		}
		err = run.TriggerSound(args[0])
	case "show":
		if len(args) != 1 {
			err = fmt.Errorf("usage: show <message-id>")
			break
		}
		err = run.ShowChat(args[0])
	case "say":
		run.SendChat(strings.Join(args, " "))
	case "poll":
		// poll Question? | Option A | Option B
		parts := strings.Split(strings.Join(args, " "), "|")
		if len(parts) < 3 {
			err = fmt.Errorf("usage: poll <question> | <option> | <option> [| ...]")
			break
		}
		question := strings.TrimSpace(parts[0])
		var options []string
		for _, p := range parts[1:] {
			options = append(options, strings.TrimSpace(p))
		}
		if st, e := run.StartPoll(question, options); e != nil {
			err = e
		} else {
			for _, o := range st.Options {
				fmt.Printf("  [%s] %s  (chat votes with %q)\n", o.ID, o.Label, o.Trigger)
			}
		}
	case "endpoll":
		if final, e := run.EndPoll(); e != nil {
			err = e
		} else {
			votes := 0
			for _, o := range final.Options {
				if o.ID == final.WinnerID {
					votes = o.Votes
				}
			}
			fmt.Printf("winner: option %s with %d/%d votes\n",
				final.WinnerID, votes, final.TotalVotes)
		}
	case "react":
		if len(args) != 2 {
			err = fmt.Errorf("usage: react <option-id> <up|down>")
			break
		}
		err = run.ReactPoll(args[0], args[1])
	case "chat":
		for _, m := range run.Messages() {
			mark := " "
			if m.Read {
				mark = "*"
			}
			fmt.Printf("%s %s  %s: %s\n", mark, m.ID, m.Username, m.Text)
		}
	case "events":
		for _, e := range run.Events() {
			mark := " "
			if e.Seen {
				mark = "*"
			}
			fmt.Printf("%s %s  [%s] %s %s\n", mark, e.ID, e.Kind, e.Username, e.Details)
		}
	case "seen":
		if len(args) != 1 || !run.MarkEventSeen(args[0]) {
			err = fmt.Errorf("usage: seen <event-id>")
		}
	case "log":
		for _, l := range run.DebugLog() {
			fmt.Println(l)
		}
	case "export":
		if raw, e := run.ExportConfig(); e != nil {
			err = e
		} else {
			fmt.Println(string(raw))
		}
	case "import":
		if len(args) != 1 {
			err = fmt.Errorf("usage: import <file>")
			break
		}
		var raw []byte
		if raw, err = os.ReadFile(args[0]); err == nil {
			err = run.ImportConfig(raw)
		}
	default:
		err = fmt.Errorf("unknown command %q, try 'help'", cmd)
	}

	if err != nil {
		log.Printf("deck: %v", err)
	}
}

func printHelp() {
	fmt.Print(`commands:
  pair <code>                    pair with the overlay shown code
  unpair | resume | status
  sfx <id>                       fire a sound button (hype, fail, gg, wow, lol, alert)
  show <message-id>              spotlight a chat message on the overlay
  say <text>                     send a chat message
  poll <q> | <opt> | <opt>       start a chat poll
  endpoll | react <id> <up|down>
  chat | events | seen <id> | log
  export | import <file>
  exit
`)
}
