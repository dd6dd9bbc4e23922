package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/springsconnect/springs/internal/blob"
	"github.com/springsconnect/springs/internal/message"
	"github.com/springsconnect/springs/internal/profile"
	"github.com/springsconnect/springs/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fail(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	socketPath := profile.SocketPath(name)
	c, err := rpc.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", name, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// watch and record run until interrupted.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := printer{json: *jsonFlag}
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, out)
	case "open":
		need(args, 2, "open <peer>")
		cmdOpen(ctx, c, args[1], out)
	case "messages":
		need(args, 2, "messages <peer>")
		cmdMessages(ctx, c, args[1], out)
	case "send":
		need(args, 3, "send <peer> <text>")
		cmdSend(ctx, c, args[1], &rpc.SendRequest{Text: strings.Join(args[2:], " ")}, out)
	case "send-image":
		need(args, 3, "send-image <peer> <path> [caption]")
		data, err := os.ReadFile(args[2])
		if err != nil {
			fail(err)
		}
		req := &rpc.SendRequest{Media: data, MediaType: blob.MIMEForName(args[2])}
		if len(args) > 3 {
			req.Text = strings.Join(args[3:], " ")
		}
		cmdSend(ctx, c, args[1], req, out)
	case "record":
		need(args, 2, "record <peer>")
		cmdRecord(sigCtx, c, args[1], out)
	case "retry":
		need(args, 3, "retry <peer> <message-id>")
		cmdRetry(ctx, c, args[1], args[2], out)
	case "failed":
		chatID := ""
		if len(args) > 1 {
			chatID = openChat(ctx, c, args[1])
		}
		cmdFailed(ctx, c, chatID, out)
	case "conversations":
		cmdConversations(ctx, c, out)
	case "watch":
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		cmdWatch(sigCtx, c, prefix)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: springsctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                          Show daemon status")
	fmt.Fprintln(os.Stderr, "  open <peer>                     Open the conversation with a user")
	fmt.Fprintln(os.Stderr, "  messages <peer>                 Print the conversation")
	fmt.Fprintln(os.Stderr, "  send <peer> <text>              Send a text message")
	fmt.Fprintln(os.Stderr, "  send-image <peer> <path> [txt]  Send an image")
	fmt.Fprintln(os.Stderr, "  record <peer>                   Record a voice message; Ctrl-C sends it")
	fmt.Fprintln(os.Stderr, "  retry <peer> <id>               Retry a failed message")
	fmt.Fprintln(os.Stderr, "  failed [peer]                   List failed messages")
	fmt.Fprintln(os.Stderr, "  conversations                   List recent conversations")
	fmt.Fprintln(os.Stderr, "  watch [prefix]                  Stream daemon events")
}

type printer struct {
	json bool
}

func (p printer) emit(v any, text func()) {
	if p.json {
		outputJSON(v)
		return
	}
	text()
}

func cmdStatus(ctx context.Context, c *rpc.Client, out printer) {
	resp, err := c.Status(ctx)
	if err != nil {
		fail(err)
	}
	out.emit(resp, func() {
		fmt.Printf("Profile:       %s\n", resp.Profile)
		fmt.Printf("User:          %s\n", resp.UserID)
		fmt.Printf("Status:        %s\n", resp.State)
		fmt.Printf("Connected:     %v\n", resp.Connected)
		fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
		fmt.Printf("Conversations: %d\n", resp.ConversationCount)
		fmt.Printf("Failed:        %d\n", resp.FailedCount)
		if resp.Recording {
			fmt.Println("Recording:     yes")
		}
	})
}

func openChat(ctx context.Context, c *rpc.Client, peer string) string {
	resp, err := c.Open(ctx, peer)
	if err != nil {
		fail(err)
	}
	return resp.ChatID
}

func cmdOpen(ctx context.Context, c *rpc.Client, peer string, out printer) {
	resp, err := c.Open(ctx, peer)
	if err != nil {
		fail(err)
	}
	out.emit(resp, func() {
		fmt.Printf("Chat:   %s\n", resp.ChatID)
		fmt.Printf("Peer:   %s\n", peerLine(resp.Peer))
		fmt.Printf("Thread: %d messages\n", len(resp.Messages))
	})
}

func cmdMessages(ctx context.Context, c *rpc.Client, peer string, out printer) {
	resp, err := c.Open(ctx, peer)
	if err != nil {
		fail(err)
	}
	out.emit(resp.Messages, func() {
		for _, m := range resp.Messages {
			printMessage(m)
		}
	})
}

func cmdSend(ctx context.Context, c *rpc.Client, peer string, req *rpc.SendRequest, out printer) {
	req.ChatID = openChat(ctx, c, peer)
	resp, err := c.Send(ctx, req)
	if err != nil {
		fail(err)
	}
	out.emit(resp.Message, func() {
		fmt.Printf("queued %s\n", resp.Message.ID)
	})
}

func cmdRecord(ctx context.Context, c *rpc.Client, peer string, out printer) {
	chatID := openChat(ctx, c, peer)
	start, err := c.StartRecording(ctx)
	if err != nil {
		fail(err)
	}
	limit := time.Duration(start.LimitMs) * time.Millisecond
	fmt.Fprintf(os.Stderr, "recording (max %s), Ctrl-C to send\n", limit)

	select {
	case <-ctx.Done():
	case <-time.After(limit):
	}

	// ctx is cancelled by now; finish with a fresh deadline.
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rec, err := c.StopRecording(stopCtx)
	if err != nil {
		fail(err)
	}
	resp, err := c.Send(stopCtx, &rpc.SendRequest{ChatID: chatID, BlobURL: rec.URL})
	if err != nil {
		fail(err)
	}
	out.emit(resp.Message, func() {
		fmt.Printf("queued %s (%s, %s)\n", resp.Message.ID, rec.MIME, time.Duration(rec.DurationMs)*time.Millisecond)
	})
}

func cmdRetry(ctx context.Context, c *rpc.Client, peer, id string, out printer) {
	chatID := openChat(ctx, c, peer)
	resp, err := c.Resend(ctx, chatID, id)
	if grpcstatus.Code(err) == codes.FailedPrecondition {
		fail(fmt.Errorf("%s is not a failed message (or is already being retried)", id))
	}
	if err != nil {
		fail(err)
	}
	out.emit(resp.Message, func() {
		fmt.Printf("retrying as %s\n", resp.Message.ID)
	})
}

func cmdFailed(ctx context.Context, c *rpc.Client, chatID string, out printer) {
	resp, err := c.ListFailed(ctx, chatID)
	if err != nil {
		fail(err)
	}
	out.emit(resp.Failed, func() {
		if len(resp.Failed) == 0 {
			fmt.Println("No failed messages.")
			return
		}
		for _, f := range resp.Failed {
			at := time.UnixMilli(f.FailedAtMs).Format(time.DateTime)
			fmt.Printf("%-28s %-10s %s  %s (%s)\n", f.Message.ID, f.Message.ChatID, at, summary(f.Message), f.Error)
		}
	})
}

func cmdConversations(ctx context.Context, c *rpc.Client, out printer) {
	resp, err := c.ListConversations(ctx, 50)
	if err != nil {
		fail(err)
	}
	out.emit(resp.Conversations, func() {
		if len(resp.Conversations) == 0 {
			fmt.Println("No conversations yet.")
			return
		}
		for _, conv := range resp.Conversations {
			name := conv.PeerName
			if name == "" {
				name = conv.PeerID
			}
			fmt.Printf("%-20s %-24s %s\n", name, conv.ChatID, conv.Preview)
		}
	})
}

func cmdWatch(ctx context.Context, c *rpc.Client, prefix string) {
	err := c.WatchEvents(ctx, prefix, func(e *rpc.Event) {
		outputJSON(e)
	})
	if err != nil && !errors.Is(err, io.EOF) && grpcstatus.Code(err) != codes.Canceled {
		fail(err)
	}
}

func printMessage(m message.Message) {
	fmt.Printf("%s  %-10s %-9s %s\n", m.CreatedAt.Local().Format(time.DateTime), m.FromUserID, m.Status, summary(m))
}

func summary(m message.Message) string {
	switch m.Kind {
	case message.KindImage:
		return strings.TrimSpace("[image] " + m.Text)
	case message.KindAudio:
		return "[voice message]"
	}
	return m.Text
}

func peerLine(p rpc.PeerInfo) string {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	switch {
	case p.Online:
		return name + " (online)"
	case p.LastActiveAtMs > 0:
		return fmt.Sprintf("%s (last seen %s)", name, time.UnixMilli(p.LastActiveAtMs).Format(time.DateTime))
	}
	return name
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "usage: springsctl "+usage)
		os.Exit(1)
	}
}

func fail(err error) {
	if st, ok := grpcstatus.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s\n", st.Message())
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
