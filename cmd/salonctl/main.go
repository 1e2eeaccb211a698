// Command salonctl drives the storefront from a terminal: the support
// inbox and widget, partial page loads and the phone mask.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/salon-storefront/internal/cart"
	appconfig "github.com/wolfman30/salon-storefront/internal/config"
	"github.com/wolfman30/salon-storefront/internal/navigation"
	"github.com/wolfman30/salon-storefront/internal/observability/metrics"
	"github.com/wolfman30/salon-storefront/internal/phone"
	"github.com/wolfman30/salon-storefront/internal/support"
	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const (
	supportSessionCookie = "sessionid"
	usage                = `usage: salonctl <command> [flags] [args]

commands:
  inbox [-once] [-metrics-addr a]       poll open support threads
  inbox show <thread>                   print a thread with its messages
  inbox reply [-attach file] <thread> <message>
  inbox close <thread>
  widget state                          print the customer chat
  widget send [-name n] [-email e] [-attach file] <message>
  nav <url>                             load a page the way the partial navigation does
  phone [-country code] <value>         normalise and format a phone number
`
)

var errUsage = errors.New("invalid usage")

type app struct {
	cfg     *appconfig.Config
	out     io.Writer
	logger  *logging.Logger
	support *support.Client
	nav     *navigation.Navigator
	reg     *prometheus.Registry
	polls   support.Recorder
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, os.Stdout, logger)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("salonctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp(cfg *appconfig.Config, out io.Writer, logger *logging.Logger) *app {
	opts := []support.Option{
		support.WithLogger(logger.Component("support")),
		support.WithCSRFToken(cfg.SupportCSRFToken),
	}
	if cfg.SupportSessionCookie != "" {
		opts = append(opts, support.WithCookie(supportSessionCookie, cfg.SupportSessionCookie))
	}
	reg := prometheus.NewRegistry()
	return &app{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		support: support.NewClient(support.DefaultEndpoints(cfg.SupportBaseURL), opts...),
		nav:     navigation.NewNavigator(navigation.WithLogger(logger.Component("navigation"))),
		reg:     reg,
		polls:   metrics.NewSupportMetrics(reg),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "inbox":
		return a.inbox(ctx, args[1:])
	case "widget":
		return a.widget(ctx, args[1:])
	case "nav":
		return a.navigate(ctx, args[1:])
	case "phone":
		return a.phone(args[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func (a *app) inbox(ctx context.Context, args []string) error {
	inbox := support.NewInbox(a.support, a.logger.Component("inbox")).
		WithInterval(a.cfg.SupportRefreshInterval).
		WithMetrics(a.polls)

	if len(args) > 0 {
		switch args[0] {
		case "show":
			if len(args) != 2 {
				return errUsage
			}
			if err := inbox.Select(ctx, args[1]); err != nil {
				printThread(a.out, inbox.Snapshot())
				return err
			}
			printThread(a.out, inbox.Snapshot())
			return nil
		case "reply":
			fs := flag.NewFlagSet("inbox reply", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			attach := fs.String("attach", "", "image to attach")
			if err := fs.Parse(args[1:]); err != nil || fs.NArg() < 2 {
				return errUsage
			}
			threadID := fs.Arg(0)
			file, closeFile, err := openAttachment(*attach)
			if err != nil {
				return err
			}
			defer closeFile()
			if err := inbox.Select(ctx, threadID); err != nil {
				return err
			}
			err = inbox.Reply(ctx, support.Reply{Message: strings.Join(fs.Args()[1:], " "), Attachment: file})
			printThread(a.out, inbox.Snapshot())
			return err
		case "close":
			if len(args) != 2 {
				return errUsage
			}
			if err := inbox.Select(ctx, args[1]); err != nil {
				return err
			}
			if err := inbox.Close(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "thread %s closed\n", args[1])
			printThreads(a.out, inbox.Snapshot())
			return nil
		}
	}

	fs := flag.NewFlagSet("inbox", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	once := fs.Bool("once", false, "refresh once and exit")
	metricsAddr := fs.String("metrics-addr", "", "serve poll metrics on this address while polling")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return errUsage
	}
	if *once {
		err := inbox.Refresh(ctx)
		printThreads(a.out, inbox.Snapshot())
		return err
	}
	if *metricsAddr != "" {
		stop := a.serveMetrics(*metricsAddr)
		defer stop()
	}
	inbox.WithObserver(func(s support.InboxSnapshot) {
		fmt.Fprintf(a.out, "--- %s\n", time.Now().Format("15:04:05"))
		printThreads(a.out, s)
	})
	return inbox.Run(ctx)
}

// serveMetrics exposes the poll counters until the returned func is called.
func (a *app) serveMetrics(addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) widget(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	w := support.NewWidget(a.support, a.logger.Component("widget")).
		WithInterval(a.cfg.SupportPollInterval).
		WithMetrics(a.polls)

	switch args[0] {
	case "state":
		if _, err := w.Toggle(ctx); err != nil {
			printWidget(a.out, w.Snapshot())
			return err
		}
		printWidget(a.out, w.Snapshot())
		return nil
	case "send":
		fs := flag.NewFlagSet("widget send", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		name := fs.String("name", "", "contact name for a new thread")
		email := fs.String("email", "", "contact email for a new thread")
		attach := fs.String("attach", "", "image to attach")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() == 0 {
			return errUsage
		}
		file, closeFile, err := openAttachment(*attach)
		if err != nil {
			return err
		}
		defer closeFile()
		if _, err := w.Toggle(ctx); err != nil {
			return err
		}
		err = w.Send(ctx, support.WidgetMessage{
			ContactName:  *name,
			ContactEmail: *email,
			Message:      strings.Join(fs.Args(), " "),
			Attachment:   file,
		})
		printWidget(a.out, w.Snapshot())
		return err
	default:
		return errUsage
	}
}

func (a *app) navigate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	page, err := a.nav.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if page.Fallback || page.Container == nil {
		fmt.Fprintf(a.out, "%s has no dynamic container; a full page load is required\n", args[0])
		return nil
	}

	enhanced := phone.EnhanceNode(page.Container, a.cfg.DefaultCountryCode)
	body, err := navigation.RenderNode(page.Container)
	if err != nil {
		return err
	}
	stylists := cart.ReadStylistsMap(strings.NewReader(body), a.cfg.StylistMapID)

	if page.HasTitle {
		fmt.Fprintf(a.out, "title: %s\n", page.Title)
	}
	fmt.Fprintf(a.out, "url: %s\n", page.URL)
	fmt.Fprintf(a.out, "phone inputs: %d\n", enhanced)
	if len(stylists) > 0 {
		services := stylists.ServiceIDs()
		fmt.Fprintf(a.out, "services with stylists: %v\n", services)
		fmt.Fprintf(a.out, "common stylists: %v\n", stylists.Common(services))
	}
	fmt.Fprintln(a.out, body)
	return nil
}

func (a *app) phone(args []string) error {
	fs := flag.NewFlagSet("phone", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	country := fs.String("country", a.cfg.DefaultCountryCode, "default country code")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}
	raw := strings.Join(fs.Args(), " ")
	normalized := phone.Normalize(raw, *country)
	fmt.Fprintf(a.out, "normalized: %s\n", normalized)
	fmt.Fprintf(a.out, "formatted:  %s\n", phone.Format(normalized))
	fmt.Fprintf(a.out, "valid:      %t\n", phone.IsValid(normalized))
	return nil
}

func openAttachment(path string) (*support.File, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return &support.File{Name: filepath.Base(path), Content: f}, func() { _ = f.Close() }, nil
}

func printThreads(out io.Writer, s support.InboxSnapshot) {
	if s.ListError != "" {
		fmt.Fprintln(out, s.ListError)
		return
	}
	if len(s.Threads) == 0 {
		fmt.Fprintln(out, support.TextNoThreads)
		return
	}
	for _, t := range s.Threads {
		last := t.LastMessage
		if last == "" {
			last = support.TextNoLastMessage
		}
		fmt.Fprintf(out, "%s  %s  [%s]  %s\n", t.ID, t.DisplayName, t.UpdatedAt, last)
	}
}

func printThread(out io.Writer, s support.InboxSnapshot) {
	if s.MessagesError != "" {
		fmt.Fprintln(out, s.MessagesError)
		return
	}
	if s.Thread != nil {
		status := "open"
		if s.Thread.IsClosed {
			status = "closed"
		}
		fmt.Fprintf(out, "%s (%s) %s\n", s.Thread.DisplayName, s.Thread.ContactEmail, status)
	}
	printMessages(out, s.Messages, support.TextNoMessages)
	for _, notice := range s.Notices {
		fmt.Fprintf(out, "! %s\n", notice)
	}
}

func printWidget(out io.Writer, s support.WidgetSnapshot) {
	fmt.Fprintln(out, s.Title)
	if s.Hint != "" {
		fmt.Fprintln(out, s.Hint)
	} else {
		printMessages(out, s.Messages, "")
	}
	if s.Error != "" {
		fmt.Fprintf(out, "! %s\n", s.Error)
	}
}

func printMessages(out io.Writer, msgs []support.Message, empty string) {
	if len(msgs) == 0 {
		if empty != "" {
			fmt.Fprintln(out, empty)
		}
		return
	}
	for _, m := range msgs {
		who := m.Author
		if who == "" {
			who = "клиент"
			if m.IsFromStaff {
				who = "поддержка"
			}
		}
		line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt, who, m.Text())
		if m.Attachment != nil {
			line += fmt.Sprintf(" (%s)", m.Attachment.URL)
		}
		fmt.Fprintln(out, line)
	}
}
