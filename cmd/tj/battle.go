package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskjama/internal/config"
	"taskjama/internal/realtime"
)

func battleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battle",
		Short: "Race a friend in real time over the battle hub",
		Long: `Connects to the hub served by 'tj serve' at /ws.
While connected, type:
  /todo <title>   pick the todo you race with
  /jama [text]    hit the opponent with a penalty
  /done           report your todo completed
  anything else   chat`,
	}
	cmd.PersistentFlags().String("server", "ws://127.0.0.1:8080/ws", "battle hub URL")
	_ = viper.BindPFlag("battle-server", cmd.PersistentFlags().Lookup("server"))

	invite := &cobra.Command{
		Use:   "invite <friend-id>",
		Short: "Invite an online friend and wait for them to join",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return runBattle(cmd.Context(), viper.GetString("battle-server"), userID, os.Stdin, os.Stdout, func(c *realtime.Client) error {
				return c.Send(realtime.TypeInvite, realtime.InviteContent{TargetID: args[0], HostID: userID})
			})
		},
	}
	join := &cobra.Command{
		Use:   "join <host-id>",
		Short: "Accept an invitation from host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return runBattle(cmd.Context(), viper.GetString("battle-server"), userID, os.Stdin, os.Stdout, func(c *realtime.Client) error {
				return c.Send(realtime.TypeJoin, realtime.JoinContent{HostID: args[0]})
			})
		},
	}
	cmd.AddCommand(invite, join)
	return cmd
}

// runBattle connects, performs the opening move and then plays until the hub
// reports a result or in is exhausted.
func runBattle(ctx context.Context, url, userID string, in io.Reader, out io.Writer, opening func(*realtime.Client) error) error {
	cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	client := realtime.NewClient(url, userID, realtime.WithClientLogger(logger))
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	var outMu sync.Mutex
	say := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format+"\n", args...)
	}

	finished := make(chan realtime.ResultContent, 1)
	battle := realtime.NewBattle(client,
		realtime.WithTiming(cfg.BattleDuration(), 0, cfg.PenaltyDuration()),
		realtime.WithBattleLogger(logger),
	)
	defer battle.Stop()

	client.Subscribe(func(env realtime.Envelope) {
		battle.Handle(env)
		switch env.Type {
		case realtime.TypeInvitation:
			var inv realtime.InvitationContent
			if env.Decode(&inv) == nil {
				say("%s challenges you: tj battle join %s", inv.From, inv.From)
			}
		case realtime.TypeMatchConfirmed:
			var mc realtime.MatchConfirmedContent
			_ = env.Decode(&mc)
			say("matched with %s; pick your todo with /todo <title>", mc.OpponentID)
		case realtime.TypeGameStart:
			st := battle.State()
			if st.OpponentTodo != nil {
				say("GO! opponent races with %q (%ds)", st.OpponentTodo.Title, st.TimeLeft)
			}
		case realtime.TypeChat:
			say("> %s", env.Text())
		case realtime.TypeJama:
			say("!! %s", battle.State().PenaltyMessage)
		case realtime.TypeError:
			var e realtime.ErrorContent
			_ = env.Decode(&e)
			say("error: %s", e.Message)
		case realtime.TypeResult:
			var res realtime.ResultContent
			if env.Decode(&res) == nil {
				select {
				case finished <- res:
				default:
				}
			}
		}
	})

	if err := opening(client); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	lines := readLines(in, done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-finished:
			switch {
			case res.Winner == "":
				say("draw (%s)", res.Reason)
			case res.Winner == userID:
				say("you win (%s)", res.Reason)
			default:
				say("%s wins (%s)", res.Winner, res.Reason)
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := battleInput(battle, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, realtime.ErrNotConnected) {
					return err
				}
				say("error: %v", err)
			}
		}
	}
}

// readLines feeds in line by line until EOF or until done is closed. A read
// blocked on in only returns once in yields or closes.
func readLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func battleInput(b *realtime.Battle, line string) error {
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, "/todo "):
		return b.SelectTodo(strings.TrimPrefix(line, "/todo "), "")
	case line == "/jama" || strings.HasPrefix(line, "/jama "):
		return b.SendJama(strings.TrimSpace(strings.TrimPrefix(line, "/jama")))
	case line == "/done":
		return b.Finish(true)
	default:
		return b.SendChat(line)
	}
}
