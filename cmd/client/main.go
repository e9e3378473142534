package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/cyberinferno/wordduel/client"
	"github.com/cyberinferno/wordduel/wire"
)

const clearTerminal = "\x1B[2J\x1B[1;1H"

const menu = `Available commands:
  /DM <id> <text>         send a direct message
  /HEARTBEAT              check the server is alive
  /DROP                   leave the server
  /HINT <text>            send a hint to your opponent (host only)
  /GUESS <word>           guess the secret word (opponent only)
  /STARTGAME <id> <word>  host a game against player <id>
  /CANCEL                 cancel your current game
  /REQUEST                list connected opponents
  /HELP                   show this list again
Anything not starting with / is sent as chat.`

func main() {
	cmd := &cli.Command{
		Name:  "wordduel",
		Usage: "play word-guessing duels from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Value: "tcp", Usage: "socket transport: tcp or unix"},
			&cli.StringFlag{Name: "endpoint", Value: "8080", Usage: "port, host:port, or unix socket path"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("transport"), cmd.String("endpoint"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, transport, endpoint string) error {
	conn, err := client.Connect(transport, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Print(clearTerminal)
	fmt.Println("Connected. Enter the server password:")

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
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if err := sendLine(conn, line); err != nil {
				return err
			}
		default:
			msg, ok, err := conn.ReceiveNonblocking()
			if err != nil {
				return fmt.Errorf("server connection lost: %w", err)
			}

			if ok {
				printEvent(client.ParseEvent(msg))
			}
		}
	}
}

// sendLine turns one line of input into a frame: a leading slash makes it a
// command, anything else is chat. /HELP is handled locally.
func sendLine(conn *client.Conn, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if rest, isCommand := strings.CutPrefix(line, "/"); isCommand {
		if strings.EqualFold(rest, "HELP") {
			fmt.Println(menu)
			return nil
		}

		return conn.Send(wire.NewCommand(rest))
	}

	return conn.Send(wire.NewChat(line))
}

func printEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventID:
		fmt.Printf("SERVER REPLY: you are player ID %d\n", ev.ID)
		fmt.Println(menu)
	case client.EventError:
		fmt.Println("SERVER REPLY: ERROR " + ev.Text)
	case client.EventChat:
		fmt.Println("EVENT MESSAGE: " + ev.Text)
	case client.EventRequestAck:
		fmt.Println("SERVER REPLY: Request was acknowledged")
	case client.EventRequestedGame:
		fmt.Print(clearTerminal)
		fmt.Println("EVENT MESSAGE: Game started")
		fmt.Println("Use /HINT to send a hint, and /GUESS to send a guess (the host sends hints and the opponent guesses)")
	case client.EventVictory:
		fmt.Println("EVENT MESSAGE: Victory!")
	case client.EventDefeat:
		fmt.Println("EVENT MESSAGE: Defeat!")
	case client.EventCanceled:
		fmt.Println("SERVER REPLY: Game was cancelled")
	default:
		if ev.Text != "" {
			fmt.Println("SERVER REPLY: " + ev.Text)
		}
	}
}
