package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"roomlink/internal/core/domain"
	"roomlink/internal/core/ports"
	"roomlink/internal/core/services"
	"roomlink/internal/infrastructure/monitoring"
	"roomlink/internal/infrastructure/notify"
	signaling "roomlink/internal/infrastructure/signal"
	"roomlink/internal/infrastructure/webrtc"
	"roomlink/pkg/utils"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rooms, err := a.rooms.List(cmd.Context())
		if err != nil {
			return err
		}
		a.analytics.TrackVisit(cmd.Context(), "/rooms", "cli")
		printRooms(cmd.OutOrStdout(), rooms)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a room",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		private, _ := cmd.Flags().GetBool("private")
		maxUsers, _ := cmd.Flags().GetInt("max")
		if maxUsers == 0 {
			maxUsers = a.cfg.Room.DefaultMaxParticipants
		}

		room, err := a.rooms.Create(cmd.Context(), strings.Join(args, " "), private, maxUsers)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %q, code %s\n", room.Name, room.Code)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Join a room and chat",
	Long: `Join a room. Lines typed on standard input are sent as chat messages.
Commands: /who, /links, /kick <id> [reason], /ban <id> [reason],
/mute, /unmute, /video on|off, /leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatOnly, _ := cmd.Flags().GetBool("chat-only")
		return runRoom(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), domain.RoomCode(args[0]), !chatOnly)
	},
}

func init() {
	createCmd.Flags().Bool("private", false, "create a private room")
	createCmd.Flags().Int("max", 0, "maximum participants (2-50, default from config)")
	joinCmd.Flags().Bool("chat-only", false, "do not send audio or video")
}

func printRooms(out io.Writer, rooms []domain.RoomSummary) {
	if len(rooms) == 0 {
		fmt.Fprintln(out, "No rooms.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tUSERS\tPRIVATE\tHOST")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%t\t%s\n",
			r.Code, utils.TruncateString(r.Name, 32), r.ParticipantCount, r.MaxParticipants, r.IsPrivate, r.HostName)
	}
	w.Flush()
}

// session wires one room controller with its signaling channel and peer
// links for the lifetime of the join command.
type session struct {
	ctrl    *services.RoomController
	peers   *webrtc.Manager
	queue   *notify.Queue
	channel atomic.Pointer[signaling.Channel]
}

func newSession(media bool) (*session, error) {
	cfg := a.cfg
	s := &session{queue: notify.NewQueue(64)}
	notifier := notify.Multi{notify.NewLog(a.logger), s.queue}

	rtcCfg := webrtc.DefaultConfig()
	if len(cfg.WebRTC.ICEServers) > 0 {
		rtcCfg.ICEServers = rtcCfg.ICEServers[:0]
		for _, srv := range cfg.WebRTC.ICEServers {
			rtcCfg.ICEServers = append(rtcCfg.ICEServers, webrtc.ICEServer{
				URLs:       srv.URLs,
				Username:   srv.Username,
				Credential: srv.Credential,
			})
		}
	}
	rtcCfg.PortRange.Min = cfg.WebRTC.PortRange.Min
	rtcCfg.PortRange.Max = cfg.WebRTC.PortRange.Max

	factory, err := webrtc.NewPionFactory(rtcCfg, a.logger)
	if err != nil {
		return nil, err
	}
	s.peers = webrtc.NewManager(factory, nil, notifier, a.metrics, a.logger)

	sigCfg := signaling.Config{
		URL:               cfg.Signal.URL,
		HandshakeTimeout:  cfg.Signal.HandshakeTimeout,
		PingInterval:      cfg.Signal.PingInterval,
		PongTimeout:       cfg.Signal.PongTimeout,
		WriteTimeout:      cfg.Signal.WriteTimeout,
		MaxMessageSize:    cfg.Signal.MaxMessageSizeBytes,
		MessagesPerSecond: cfg.Signal.MessagesPerSecond,
		Burst:             cfg.Signal.Burst,
		EventBuffer:       cfg.Signal.EventBuffer,
	}
	channels := func(self domain.ParticipantID) ports.SignalingChannel {
		ch := signaling.NewChannel(sigCfg, a.sessions, self, a.metrics, a.logger)
		s.channel.Store(ch)
		return ch
	}

	media = media && cfg.WebRTC.Media.Enabled
	s.ctrl = services.NewRoomController(
		services.RoomControllerConfig{
			JoinTimeout: cfg.Room.JoinTimeout,
			Media:       media,
		},
		a.sessions,
		channels,
		s.peers,
		webrtc.StaticSource{Audio: cfg.WebRTC.Media.Audio, Video: cfg.WebRTC.Media.Video},
		notifier,
		a.metrics,
		a.logger,
	)
	s.peers.SetSignalSender(s.ctrl)
	return s, nil
}

func (s *session) currentChannel() ports.SignalingChannel {
	if ch := s.channel.Load(); ch != nil {
		return ch
	}
	return nil
}

func runRoom(ctx context.Context, in io.Reader, out io.Writer, code domain.RoomCode, media bool) error {
	if a.sessions.Current() == nil {
		return domain.NewAuthError(domain.AuthNoSession, nil)
	}

	s, err := newSession(media)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.ctrl.Run(ctx)
	}()

	if a.cfg.Status.Enabled {
		health := monitoring.NewHealthChecker()
		health.AddSessionStorageCheck(a.repos.CreateSessionStorage(), 2*time.Second)
		if rc := a.repos.RedisClient(); rc != nil {
			health.AddRedisCheck(rc, 2*time.Second)
		}
		health.AddSignalingCheck(s.currentChannel)
		stopStatus := startStatusServer(s.ctrl, health)
		defer stopStatus()
	}

	if err := s.ctrl.Join(ctx, code); err != nil {
		cancel()
		wg.Wait()
		return err
	}
	a.analytics.TrackVisit(ctx, "/room/"+string(code), "cli")

	count := 0
	room := s.ctrl.Room()
	if room != nil {
		count = len(room.Participants)
	}
	fmt.Fprintf(out, "Joined %s (%d participants). Type /leave to exit.\n", displayName(room), count)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	printed := 0
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case n := <-s.queue.C():
			fmt.Fprintf(out, "* %s\n", n.Message)
			if s.ctrl.State() == services.RoomIdle {
				break loop
			}
		case <-tick.C:
			printed = printTranscript(out, s.ctrl.Transcript(), printed)
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := s.command(ctx, out, line)
			if err != nil {
				fmt.Fprintln(out, "!", describe(err))
			}
			if quit {
				break loop
			}
		}
	}

	leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer leaveCancel()
	err = s.ctrl.Close(leaveCtx)
	cancel()
	wg.Wait()
	s.queue.Close()
	if dropped := s.queue.Dropped(); dropped > 0 {
		a.logger.Debugw("notices dropped", "count", dropped)
	}
	return err
}

func printTranscript(out io.Writer, msgs []domain.ChatMessage, printed int) int {
	if len(msgs) < printed {
		printed = 0
	}
	for _, m := range msgs[printed:] {
		// remote text must not drive the terminal
		fmt.Fprintf(out, "[%s] %s\n", utils.FormatClock(m.SentAt), utils.SanitizeString(m.Plain()))
	}
	return len(msgs)
}

func displayName(room *domain.RoomSession) string {
	if room == nil {
		return "room"
	}
	if room.Name != "" {
		return fmt.Sprintf("%s [%s]", room.Name, room.Code)
	}
	return string(room.Code)
}

// command handles one input line. It reports whether the user asked to leave.
func (s *session) command(ctx context.Context, out io.Writer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.ctrl.SendChat(ctx, line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/leave", "/quit":
		return true, nil
	case "/who":
		room := s.ctrl.Room()
		if room == nil {
			return false, domain.ErrNotInRoom
		}
		for _, p := range room.Participants {
			tag := ""
			switch {
			case p.ID == room.SelfID:
				tag = " (you)"
			case room.IsHost(p.ID):
				tag = " (host)"
			}
			fmt.Fprintf(out, "  %s %s%s\n", p.ID, p.DisplayName, tag)
		}
	case "/links":
		for _, l := range s.ctrl.Links() {
			fmt.Fprintf(out, "  %s %s media=%t for %s\n",
				l.RemoteParticipantID, l.State, l.LocalMediaAttached, utils.FormatDuration(time.Since(l.CreatedAt)))
		}
	case "/kick", "/ban":
		if len(fields) < 2 {
			return false, fmt.Errorf("usage: %s <participant-id> [reason]", fields[0])
		}
		action := domain.ActionKick
		if fields[0] == "/ban" {
			action = domain.ActionBan
		}
		reason := strings.Join(fields[2:], " ")
		return false, s.ctrl.Moderate(ctx, domain.ParticipantID(fields[1]), action, reason)
	case "/mute":
		return false, s.ctrl.SetAudioEnabled(false)
	case "/unmute":
		return false, s.ctrl.SetAudioEnabled(true)
	case "/video":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return false, errors.New("usage: /video on|off")
		}
		return false, s.ctrl.SetVideoEnabled(fields[1] == "on")
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
	return false, nil
}
