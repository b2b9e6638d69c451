package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taskjama/internal/app"
	"taskjama/internal/commentary"
	"taskjama/internal/config"
	"taskjama/internal/domain"
	"taskjama/internal/engine"
	"taskjama/internal/realtime"
	"taskjama/internal/repo"
	"taskjama/internal/server"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "tj",
	Short: "taskjama CLI",
	Long: `taskjama is a to-do list where friends get in each other's way.
- Points: you start with some, completing a todo earns more.
- Friends: send a request by id or email; only accepted friends can see or jam your todos.
- Jama: spend points to scramble a friend's todo title into mojibake. Enough jams and it turns into ??????????.
- Battles: challenge an online friend to a timed race over the WebSocket hub (tj battle).
- Event log: every change is recorded, view with 'tj log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := app.NewLogger(viper.GetBool("debug"))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKJAMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("debug", false, "verbose logging")
	rootCmd.PersistentFlags().StringP("user", "u", "", "acting user id (env TASKJAMA_USER)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(todoCmd())
	rootCmd.AddCommand(friendCmd())
	rootCmd.AddCommand(jamaCmd())
	rootCmd.AddCommand(battleCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Workspace configuration (taskjama.yml)",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default taskjama.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate taskjama.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(viper.GetString("workspace")); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.AddCommand(initCmd, showCmd, validateCmd)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Accounts and point balances",
	}
	var opts engine.RegisterOptions
	register := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.RegisterUser(ctx, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	register.Flags().StringVar(&opts.ID, "id", "", "user id (random UUID if omitted)")
	register.Flags().StringVar(&opts.Email, "email", "", "email address")
	register.Flags().StringVar(&opts.Username, "username", "", "display name (defaults to the email local part)")
	_ = register.MarkFlagRequired("email")

	show := &cobra.Command{
		Use:   "show [user-id]",
		Short: "Show a user; defaults to --user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := viper.GetString("user")
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return errors.New("user id required (argument or --user)")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.GetUser(ctx, id)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}

	var keyName string
	key := &cobra.Command{
		Use:   "api-key",
		Short: "Create an API key for --user; printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, raw, err := e.CreateAPIKey(ctx, userID, keyName)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": k.ID, "key": raw})
				}
				fmt.Println(raw)
				return nil
			})
		},
	}
	key.Flags().StringVar(&keyName, "name", "", "label for the key")
	cmd.AddCommand(register, show, key)
	return cmd
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --user (needs TASKJAMA_JWT_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return errors.New("TASKJAMA_JWT_SECRET is required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.GetUser(ctx, userID); err != nil {
					return fmt.Errorf("user %s: %w", userID, err)
				}
				token, err := server.SignToken(secret, userID, ttl, time.Now())
				if err != nil {
					return err
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", server.DefaultTokenTTL, "token lifetime")
	return cmd
}

func todoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage your todos",
		Long:  "Todos belong to one user. Completing one earns points once; friends may jam the title.",
	}

	var create engine.TodoCreateOptions
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			create.UserID = userID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTodo(ctx, create)
				if err != nil {
					return err
				}
				return printTodos([]domain.Todo{t})
			})
		},
	}
	add.Flags().StringVar(&create.Title, "title", "", "title")
	add.Flags().StringVar(&create.Description, "description", "", "description")
	add.Flags().StringVar(&create.DeadlineAt, "deadline", "", "deadline (RFC3339)")
	add.Flags().StringVar(&create.DueDate, "due", "", "due date (YYYY-MM-DD)")
	_ = add.MarkFlagRequired("title")

	var completed string
	list := &cobra.Command{
		Use:   "list",
		Short: "List your todos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			var filter *bool
			if completed != "" {
				v, err := strconv.ParseBool(completed)
				if err != nil {
					return fmt.Errorf("invalid --completed %q", completed)
				}
				filter = &v
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTodos(ctx, userID, filter)
				if err != nil {
					return err
				}
				return printTodos(items)
			})
		},
	}
	list.Flags().StringVar(&completed, "completed", "", "filter by completion (true|false)")

	show := &cobra.Command{
		Use:   "show <todo-id>",
		Short: "Show one of your todos or a friend's",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTodo(ctx, userID, args[0])
				if err != nil {
					return err
				}
				return printTodos([]domain.Todo{t})
			})
		},
	}

	var title, description, deadline, due string
	edit := &cobra.Command{
		Use:   "edit <todo-id>",
		Short: "Edit a todo; retitling clears the scramble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			opts := engine.TodoUpdateOptions{UserID: userID, TodoID: args[0]}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("deadline") {
				opts.DeadlineAt = &deadline
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTodo(ctx, opts)
				if err != nil {
					return err
				}
				return printTodos([]domain.Todo{t})
			})
		},
	}
	edit.Flags().StringVar(&title, "title", "", "new title")
	edit.Flags().StringVar(&description, "description", "", "new description")
	edit.Flags().StringVar(&deadline, "deadline", "", "new deadline (RFC3339, empty clears)")
	edit.Flags().StringVar(&due, "due", "", "new due date (empty clears)")

	done := &cobra.Command{
		Use:   "done <todo-id>",
		Short: "Complete a todo and earn points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, balance, err := e.CompleteTodo(ctx, userID, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"todo": t, "points": balance})
				}
				fmt.Printf("completed %q, balance %d\n", t.Title, balance)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <todo-id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTodo(ctx, userID, args[0])
			})
		},
	}
	cmd.AddCommand(add, list, show, edit, done, rm)
	return cmd
}

func friendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Friend requests and friend lists",
	}
	request := &cobra.Command{
		Use:   "request <user-id|email>",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			opts := engine.FriendRequestOptions{RequesterID: userID}
			if strings.Contains(args[0], "@") {
				opts.TargetEmail = args[0]
			} else {
				opts.TargetID = args[0]
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.RequestFriend(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	respond := func(use, short string, accept bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <friendship-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := actingUser()
				if err != nil {
					return err
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					fn := e.RejectFriend
					if accept {
						fn = e.AcceptFriend
					}
					f, err := fn(ctx, userID, args[0])
					if err != nil {
						return err
					}
					return printJSONOrTable(f)
				})
			},
		}
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "Accepted friends",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				friends, err := e.ListFriends(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(friends)
				}
				tw := newTable(table.Row{"User", "Username"})
				for _, f := range friends {
					tw.AppendRow(table.Row{f.UserID, f.Username})
				}
				tw.Render()
				return nil
			})
		},
	}
	pending := &cobra.Command{
		Use:   "pending",
		Short: "Incoming requests awaiting your answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reqs, err := e.ListPendingRequests(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reqs)
				}
				tw := newTable(table.Row{"Request", "From", "Email", "Requested"})
				for _, r := range reqs {
					tw.AppendRow(table.Row{r.FriendshipID, r.Username, r.Email, r.RequestedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	todos := &cobra.Command{
		Use:   "todos <user-id>",
		Short: "A friend's todos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListFriendTodos(ctx, userID, args[0])
				if err != nil {
					return err
				}
				return printTodos(items)
			})
		},
	}
	cmd.AddCommand(request,
		respond("accept", "Accept a friend request", true),
		respond("reject", "Reject a friend request", false),
		list, pending, todos, newsCmd())
	return cmd
}

func jamaCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "jama <todo-id>",
		Short: "Spend points to scramble a friend's todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Disrupt(ctx, engine.DisruptOptions{DisruptorID: userID, TodoID: args[0], Type: kind})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("jammed: %s (balance %d)\n", res.Todo.Title, res.Balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", engine.DefaultDisruptionType, "disruption type")

	var limit int
	history := func(use, short string, received bool) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := actingUser()
				if err != nil {
					return err
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					fetch := e.ListDisruptionsSent
					if received {
						fetch = e.ListDisruptionsReceived
					}
					items, err := fetch(ctx, userID, limit)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(items)
					}
					tw := newTable(table.Row{"ID", "By", "Todo", "Points", "When"})
					for _, d := range items {
						tw.AppendRow(table.Row{d.ID, d.DisruptorID, d.TargetTodoID, d.PointsSpent, d.CreatedAt})
					}
					tw.Render()
					return nil
				})
			},
		}
		c.Flags().IntVar(&limit, "limit", 50, "max rows")
		return c
	}
	cmd.AddCommand(history("sent", "Jams you sent", false), history("received", "Jams on your todos", true))
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	var n int
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Latest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	tail.Flags().StringVar(&f.ActorID, "actor-id", "", "actor filter")
	cmd.AddCommand(tail)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, battle hub and webhook dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ws, err := app.Open(ctx, viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ws.Close()

			authCfg := server.AuthConfig{
				JWTSecret:             viper.GetString("jwt-secret"),
				AllowLegacyUserHeader: viper.GetBool("allow-legacy-header"),
				Logger:                logger,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyUserHeader {
				return errors.New("TASKJAMA_JWT_SECRET is required for bearer auth (or pass --allow-legacy-header)")
			}
			hub := realtime.NewHub(
				realtime.WithBattleDuration(ws.Config.BattleDuration()),
				realtime.WithHubLogger(logger),
			)
			critic := commentary.New(ws.Config.Commentary.BaseURL,
				commentary.WithAPIKey(viper.GetString("commentary-api-key")),
				commentary.WithHTTPClient(&http.Client{Timeout: ws.Config.CommentaryTimeout()}),
				commentary.WithFallbacks(ws.Config.Commentary.CriticismFallback, ws.Config.Commentary.InciteFallback),
				commentary.WithLogger(logger),
			)
			if !critic.Enabled() {
				logger.Warn("commentary.base_url not set; criticism and incite return canned replies")
			}
			if ws.Config.Payment.Link == "" {
				logger.Warn("payment.link not set; GET /payment-link will return 404")
			}
			handler, err := server.New(server.Config{
				Engine:     ws.Engine,
				BasePath:   basePath,
				Auth:       authCfg,
				Hub:        hub,
				Commentary: critic,
				Logger:     logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			dispatcher := server.NewWebhookDispatcher(ws.Engine.Repo, ws.Config.Webhooks, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("serving taskjama API",
					zap.String("addr", "http://"+addr+basePath),
					zap.String("docs", "/docs"),
					zap.String("ws", "/ws"),
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return dispatcher.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().Bool("allow-legacy-header", false, "trust X-User-Id without credentials (local testing only)")
	_ = viper.BindPFlag("allow-legacy-header", cmd.Flags().Lookup("allow-legacy-header"))
	return cmd
}

// --- helpers ---

func actingUser() (string, error) {
	id := strings.TrimSpace(viper.GetString("user"))
	if id == "" {
		return "", errors.New("acting user required; pass --user or set TASKJAMA_USER")
	}
	return id, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := newTable(table.Row{"ID", "Username", "Email", "Points"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Username, u.Email, u.Points})
	}
	tw.Render()
	return nil
}

func printTodos(todos []domain.Todo) error {
	if viper.GetBool("json") {
		return printJSON(todos)
	}
	tw := newTable(table.Row{"ID", "Title", "Done", "Jammed", "Due"})
	for _, t := range todos {
		due := ""
		if t.DueDate != nil {
			due = *t.DueDate
		}
		jammed := ""
		if t.IsDisguised {
			jammed = fmt.Sprintf("x%d", t.DisruptionCount)
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.IsCompleted, jammed, due})
	}
	tw.Render()
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
