package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskjama/internal/app"
	"taskjama/internal/domain"
)

const newsRefreshInterval = time.Minute

func newsCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Friends' unfinished todos past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := actingUser()
			if err != nil {
				return err
			}
			ws, err := app.Open(cmd.Context(), viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ws.Close()
			fetch := func(ctx context.Context) ([]domain.OverdueTodo, error) {
				return ws.Engine.ListFriendOverdueTodos(ctx, userID)
			}
			render := func(items []domain.OverdueTodo) error {
				return renderNews(os.Stdout, items, viper.GetBool("json"))
			}
			if !watch {
				items, err := fetch(cmd.Context())
				if err != nil {
					return err
				}
				return render(items)
			}
			return watchNews(cmd.Context(), newsRefreshInterval, fetch, render)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "refresh every minute until interrupted")
	return cmd
}

// watchNews renders immediately and then on every tick until ctx ends. A
// failed refresh is logged and the previous output stays on screen.
func watchNews(ctx context.Context, every time.Duration, fetch func(context.Context) ([]domain.OverdueTodo, error), render func([]domain.OverdueTodo) error) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for ctx.Err() == nil {
		items, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("refresh friend news", zap.Error(err))
		} else if err := render(items); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func renderNews(w io.Writer, items []domain.OverdueTodo, asJSON bool) error {
	if asJSON {
		if items == nil {
			items = []domain.OverdueTodo{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no overdue todos among your friends")
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Friend", "Title", "Due", "ID"})
	for _, o := range items {
		due := ""
		if o.DueDate != nil {
			due = *o.DueDate
		}
		tw.AppendRow(table.Row{o.Username, o.Title, due, o.ID})
	}
	tw.Render()
	return nil
}
