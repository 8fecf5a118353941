package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/daybook/internal/client"
	"github.com/starford/daybook/internal/editor"
	"github.com/starford/daybook/internal/markdown"
	"github.com/starford/daybook/internal/mcpserver"
	"github.com/starford/daybook/internal/widget"
)

// RunMCP serves the journal tools over stdin/stdout. Calls that reach open
// pages go through the API of the server at editor.server_url.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	// stdout carries the protocol.
	logger := newLogger(cfg, os.Stderr)

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.db.Close()

	c := client.New(cfg.Editor.ServerURL, client.WithToken(cfg.Editor.Token))
	srv := mcpserver.New(b.journal, b.calendar, mcpserver.RemotePages{Client: c})

	logger.Info("mcp: serving on stdio", slog.String("server_url", cfg.Editor.ServerURL))
	return srv.ServeStdio()
}

// RunEditor binds a draft file to the server's journal and saves edits to
// it until interrupted.
func RunEditor(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stderr)

	c := client.New(cfg.Editor.ServerURL, client.WithToken(cfg.Editor.Token))

	draft, err := editor.NewDraftEditor(cfg.Editor.DraftPath)
	if err != nil {
		return err
	}
	url, err := editor.NewURLState(cfg.Editor.ServerURL+"/", cfg.Editor.StateFile)
	if err != nil {
		return err
	}

	sessionOpts := []editor.Option{
		editor.WithView(editor.TerminalView{W: app.stdout}),
		editor.WithSaveDelay(cfg.Editor.SaveDelay),
		editor.WithStatusHold(cfg.Editor.StatusHold),
		editor.WithURLState(url),
		editor.WithLogger(logger),
	}

	dispatcher := widget.NewDispatcher()
	ws, err := dialWidget(ctx, c, cfg, dispatcher, logger)
	if err != nil {
		logger.Warn("editor: widget unavailable", slog.String("error", err.Error()))
	} else {
		defer ws.Close()
		sessionOpts = append(sessionOpts, editor.WithAnnouncer(ws))
	}

	session := editor.NewSession(c, draft, sessionOpts...)
	defer session.Close()
	session.RegisterCalls(dispatcher)

	if err := session.Start(ctx); err != nil {
		logger.Error("editor: start failed", slog.String("error", err.Error()))
	}
	if _, err := session.FocusEmpty(ctx); err != nil {
		logger.Error("editor: create entry failed", slog.String("error", err.Error()))
	}
	logger.Info("editor: ready", slog.String("draft", draft.Path()), slog.String("entry", session.Current()))

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	g.Go(func() error {
		return draft.Watch(runCtx, logger, session.OnEdit)
	})
	if ws != nil {
		g.Go(func() error {
			if err := ws.Run(runCtx); err != nil {
				// The session keeps saving without the assistant link.
				logger.Warn("editor: widget disconnected", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		waitForShutdown(runCtx, logger)
		stop()
		return nil
	})

	err = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := session.Flush(flushCtx); ferr != nil && !errors.Is(ferr, editor.ErrNoEntry) {
		logger.Error("editor: final save failed", slog.String("error", ferr.Error()))
		if err == nil {
			err = ferr
		}
	}
	return err
}

// dialWidget connects to the hub named by the server's widget config,
// falling back to the local config when the server does not answer.
func dialWidget(ctx context.Context, c *client.Client, cfg *Config, d *widget.Dispatcher, logger *slog.Logger) (*widget.Client, error) {
	wcfg := cfg.Widget
	if remote, err := c.WidgetConfig(ctx); err == nil {
		wcfg = *remote
	} else {
		logger.Warn("editor: widget config unavailable", slog.String("error", err.Error()))
	}
	socket, err := wcfg.SocketURL()
	if err != nil {
		return nil, err
	}
	return widget.Dial(ctx, socket, c.AuthHeader(), d, logger)
}

// RunList prints the journal entries, marking the one the editor has open.
func RunList(ctx context.Context, showCalendar bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	c := client.New(cfg.Editor.ServerURL, client.WithToken(cfg.Editor.Token))

	entries, err := c.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	url, err := editor.NewURLState(cfg.Editor.ServerURL+"/", cfg.Editor.StateFile)
	if err != nil {
		return err
	}
	st := editor.ViewState{Current: url.Entry()}
	editor.WriteEntryTable(app.stdout, editor.RenderEntryList(entries, &st))

	if !showCalendar {
		return nil
	}
	res, err := c.CalendarEvents(ctx, "", false)
	if err != nil {
		return fmt.Errorf("calendar events: %w", err)
	}
	view := editor.TerminalView{W: app.stdout}
	view.ShowCalendar(editor.RenderCalendar(res.TodaysEvents, slog.Default()))
	return nil
}

// RunConvert reads an HTML fragment and writes its Markdown form.
func RunConvert(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(app.stdin)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	_, err = fmt.Fprintln(app.stdout, markdown.ToMarkdown(string(data)))
	return err
}
