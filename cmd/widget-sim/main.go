// Command widget-sim runs an embedding page and its chat document in one
// process and drives them from stdin.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/omnitrix-widget/internal/app/bootstrap"
	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	appconfig "github.com/wolfman30/omnitrix-widget/internal/config"
	"github.com/wolfman30/omnitrix-widget/internal/flow"
	"github.com/wolfman30/omnitrix-widget/internal/host"
	"github.com/wolfman30/omnitrix-widget/internal/responder"
	"github.com/wolfman30/omnitrix-widget/internal/scheduler"
	"github.com/wolfman30/omnitrix-widget/internal/widgetconfig"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

const (
	pageOrigin  = "https://page.local"
	frameOrigin = "https://widget.local"
)

const usage = `commands:
  click | open | close | toggle | esc | viewport W H
  register NAME|EMAIL|PHONE[|SUBJECT]
  digit SLOT D | back SLOT | paste CODE | submit | resend
  send TEXT | attach PATH | push TEXT | user | frame-close
  theme #RRGGBB | quit`

// sim wires a host controller and a frame session on one loop.
type sim struct {
	loop    scheduler.Scheduler
	out     io.Writer
	page    *pageConsole
	ctrl    *host.Controller
	session *flow.Session
	cancel  context.CancelFunc
}

// framePoster delivers frame messages to the host asynchronously, the way
// postMessage does.
type framePoster struct {
	s *sim
}

func (p framePoster) Post(msg bridge.Message) error {
	raw, err := bridge.Encode(msg)
	if err != nil {
		return err
	}
	p.s.loop.Post(func() {
		if err := p.s.ctrl.HandleFrameMessage(frameOrigin, raw); err != nil {
			fmt.Fprintf(p.s.out, "[page] frame message rejected: %v\n", err)
		}
	})
	return nil
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	defaults, err := bootstrap.LoadWidgetDefaults(cfg)
	if err != nil {
		log.Fatalf("widget defaults: %v", err)
	}
	rules, err := bootstrap.LoadReplyRules(cfg, logger)
	if err != nil {
		log.Fatalf("reply rules: %v", err)
	}
	widgetCfg := widgetconfig.Resolve(defaults, nil).DetectBaseURLs("", frameOrigin)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := scheduler.NewLoop()
	s, err := newSim(loop, widgetCfg, rules, os.Stdout, logger)
	if err != nil {
		log.Fatalf("simulator: %v", err)
	}
	s.cancel = cancel

	go s.readCommands(os.Stdin)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	fmt.Printf("widget simulator (page %s, default code %s)\n%s\n", pageOrigin, widgetCfg.DefaultOTP, usage)
	loop.Run(ctx)
	s.ctrl.Shutdown()
	s.session.Shutdown()
}

func newSim(sched scheduler.Scheduler, cfg widgetconfig.Config, rules *responder.RuleSet, out io.Writer, logger *logging.Logger) (*sim, error) {
	s := &sim{loop: sched, out: out, cancel: func() {}}

	var rOpts []responder.Option
	if rules != nil {
		rOpts = append(rOpts, responder.WithRuleSet(*rules))
	}
	session, err := flow.NewSession(flow.Options{
		Config:    cfg,
		Scheduler: sched,
		Surface:   &frameConsole{out: out},
		Host:      framePoster{s: s},
		Responder: responder.New(rOpts...),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	s.session = session

	s.page = &pageConsole{out: out, width: 1280, height: 800}
	s.page.toFrame = func(msg bridge.Message) error {
		sched.Post(func() {
			if err := s.session.HandleHostMessage(msg); err != nil {
				fmt.Fprintf(out, "[frame] host message rejected: %v\n", err)
			}
		})
		return nil
	}
	s.ctrl, err = host.New(host.Options{
		Config:    cfg,
		Scheduler: sched,
		Surface:   s.page,
		Origins:   bridge.NewOriginPolicy([]string{frameOrigin}),
		Users:     s.session,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	sched.Post(s.session.Start)
	return s, nil
}

func (s *sim) readCommands(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.loop.Post(func() { s.run(line) })
	}
	s.cancel()
}

// run executes one command on the loop.
func (s *sim) run(line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "click":
		s.ctrl.ButtonClick()
	case "open":
		s.ctrl.Open()
	case "close":
		s.ctrl.Close()
	case "toggle":
		s.ctrl.Toggle()
	case "esc":
		s.ctrl.HandleKey("Escape")
	case "viewport":
		w, h, perr := parsePair(arg)
		if perr != nil {
			err = perr
			break
		}
		s.page.width, s.page.height = w, h
		s.ctrl.HandleResize()
	case "register":
		parts := strings.Split(arg, "|")
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		err = s.session.SubmitRegistration(flow.Registration{Name: parts[0], Email: parts[1], Phone: parts[2], Subject: parts[3]})
	case "digit":
		slot, digit, _ := strings.Cut(arg, " ")
		n, perr := strconv.Atoi(slot)
		if perr != nil {
			err = perr
			break
		}
		err = s.session.EnterDigit(n, strings.TrimSpace(digit))
	case "back":
		n, perr := strconv.Atoi(arg)
		if perr != nil {
			err = perr
			break
		}
		err = s.session.Backspace(n)
	case "paste":
		err = s.session.Paste(1, arg)
	case "submit":
		err = s.session.SubmitOTP()
	case "resend":
		err = s.session.ResendOTP()
	case "send":
		err = s.session.SendText(arg)
	case "attach":
		err = s.attach(arg)
	case "push":
		err = s.ctrl.SendMessage(arg)
	case "user":
		if user, ok := s.ctrl.CurrentUser(); ok {
			fmt.Fprintf(s.out, "[page] current user: %s <%s> %s\n", user.Name, user.Email, user.Phone)
		} else {
			fmt.Fprintln(s.out, "[page] no current user")
		}
	case "frame-close":
		s.session.Close()
	case "theme":
		s.ctrl.UpdateConfig(widgetconfig.Override{ThemeColor: &arg})
		s.session.UpdateConfig(widgetconfig.Override{ThemeColor: &arg})
	case "quit", "exit":
		s.cancel()
	case "help":
		fmt.Fprintln(s.out, usage)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.out, "! %v\n", err)
	}
}

func (s *sim) attach(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.session.SendAttachment(flow.Attachment{
		Name:     filepath.Base(path),
		MIMEType: http.DetectContentType(data),
		Size:     int64(len(data)),
		Content:  bytes.NewReader(data),
	})
}

func parsePair(arg string) (int, int, error) {
	a, b, ok := strings.Cut(arg, " ")
	if !ok {
		return 0, 0, fmt.Errorf("expected two numbers")
	}
	w, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}
