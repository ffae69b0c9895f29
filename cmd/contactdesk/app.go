package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"contactdesk/internal/cache"
	"contactdesk/internal/client"
	"contactdesk/internal/controller"
	"contactdesk/internal/session"
)

// stdin is where confirmations and credentials are read from.
var stdin = bufio.NewReader(os.Stdin)

var errNotSignedIn = errors.New("not signed in; run 'contactdesk login' first")

// app wires the persisted session, transport, offline cache and controller.
type app struct {
	files *session.FileStore
	sess  *session.Manager
	api   *client.Client
	cache *cache.Store
	ctl   *controller.Controller
}

func openApp(opts ...controller.Option) *app {
	a := &app{files: session.NewFileStore(cfg.SessionPath())}
	a.sess = session.NewManager(a.files)
	a.api = client.New(cfg.Server.BaseURL, a.sess, client.WithTimeout(requestTimeout()))

	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.CachePath())
		if err != nil {
			logger.Warn("offline cache unavailable", zap.String("path", cfg.CachePath()), zap.Error(err))
		} else {
			a.cache = c
			opts = append(opts, controller.WithSnapshotter(c))
		}
	}
	a.ctl = controller.New(a.api, a.sess, opts...)
	return a
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("close cache", zap.Error(err))
		}
	}
}

func (a *app) requireSession() error {
	if !a.sess.Current().Valid() {
		return errNotSignedIn
	}
	return nil
}

// printNotice writes controller notices to the terminal.
func printNotice(n controller.Notice) {
	switch n.Kind {
	case controller.NoticeError, controller.NoticeBlocking:
		fmt.Fprintln(os.Stderr, "✗ "+n.Message)
	case controller.NoticeSuccess:
		fmt.Println("✓ " + n.Message)
	default:
		fmt.Println(n.Message)
	}
}

// cliOptions returns the notifier and a confirmer that reads y/N from stdin,
// or always agrees when assumeYes is set.
func cliOptions(assumeYes bool) []controller.Option {
	confirm := controller.ConfirmFunc(func(prompt string) bool {
		if assumeYes {
			return true
		}
		fmt.Printf("%s [y/N] ", prompt)
		return readYes(stdin)
	})
	return []controller.Option{
		controller.WithNotifier(controller.NotifyFunc(printNotice)),
		controller.WithConfirmer(confirm),
	}
}

func readYes(r *bufio.Reader) bool {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func readLine(r *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
