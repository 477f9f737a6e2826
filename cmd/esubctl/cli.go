package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/esub/esub-go/internal/client"
	"github.com/esub/esub-go/internal/config"
	"github.com/esub/esub-go/internal/protocol"
	"github.com/esub/esub-go/internal/session"
)

var errKeyRequired = errors.New("exactly one <key> argument is required")

// settings is the parsed command line.
type settings struct {
	key        string
	data       string
	token      string
	host       string
	port       int
	psub       bool
	prep       bool
	timeout    int // seconds, 0 = wait indefinitely
	shared     bool
	debug      bool
	configPath string
}

func parseArgs(args []string) (settings, error) {
	var s settings
	fs := flag.NewFlagSet("esubctl", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: esubctl [options] <key>")
		fs.PrintDefaults()
	}

	fs.StringVar(&s.data, "data", "", "rep a waiting sub with data (- for stdin)")
	fs.StringVar(&s.data, "d", "", "shorthand for -data")
	fs.StringVar(&s.token, "token", "", "sub token to use")
	fs.StringVar(&s.token, "t", "", "shorthand for -token")
	fs.StringVar(&s.host, "host", "", "esub server node")
	fs.StringVar(&s.host, "H", "", "shorthand for -host")
	fs.IntVar(&s.port, "port", 0, "esub server port")
	fs.IntVar(&s.port, "P", 0, "shorthand for -port")
	fs.BoolVar(&s.psub, "psub", false, "sub with a persistent sub")
	fs.BoolVar(&s.psub, "p", false, "shorthand for -psub")
	fs.BoolVar(&s.prep, "prep", false, "rep with a persistent rep")
	fs.BoolVar(&s.prep, "r", false, "shorthand for -prep")
	fs.IntVar(&s.timeout, "timeout", 0, "optional timeout in seconds")
	fs.BoolVar(&s.shared, "shared", false, "if the psub is shared")
	fs.BoolVar(&s.shared, "s", false, "shorthand for -shared")
	fs.BoolVar(&s.debug, "debug", false, "show full error chains")
	fs.BoolVar(&s.debug, "D", false, "shorthand for -debug")
	fs.StringVar(&s.configPath, "config", "", "optional TOML config file")

	if err := fs.Parse(args); err != nil {
		return settings{}, err
	}
	rest := fs.Args()
	if len(rest) != 1 || strings.TrimSpace(rest[0]) == "" {
		return settings{}, errKeyRequired
	}
	s.key = rest[0]

	if s.prep && s.data == "" {
		return settings{}, errors.New("-prep requires -data")
	}
	return s, nil
}

// apply layers command-line overrides onto the environment options.
func (s settings) apply(opts config.Options) config.Options {
	if s.host != "" {
		opts.Host = s.host
	}
	if s.port > 0 {
		opts.Port = s.port
	}
	if s.token != "" {
		opts.Token = s.token
	}
	return opts
}

func (s settings) timeoutDuration() time.Duration {
	if s.timeout <= 0 {
		return 0
	}
	return time.Duration(s.timeout) * time.Second
}

func run(ctx context.Context, s settings, opts config.Options, out io.Writer, in io.Reader) error {
	opts = s.apply(opts)
	if err := opts.Validate(); err != nil {
		return err
	}

	switch {
	case s.data != "" && s.prep:
		return runPrep(ctx, s, opts, out, in)
	case s.data != "":
		return runRep(ctx, s, opts, in)
	case s.psub:
		return runPsub(ctx, s, opts, out)
	default:
		return runSub(ctx, s, opts, out)
	}
}

func runSub(ctx context.Context, s settings, opts config.Options, out io.Writer) error {
	c := client.New(opts)
	body, err := c.Sub(ctx, s.key, client.CallOptions{
		Token:   s.token,
		Timeout: s.timeoutDuration(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", body)
	return nil
}

func runRep(ctx context.Context, s settings, opts config.Options, in io.Reader) error {
	data := []byte(s.data)
	if s.data == "-" {
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		data = raw
	}
	c := client.New(opts)
	return c.Rep(ctx, s.key, data, client.CallOptions{
		Token:   s.token,
		Timeout: s.timeoutDuration(),
		Psub:    s.psub,
	})
}

func runPsub(ctx context.Context, s settings, opts config.Options, out io.Writer) error {
	url := protocol.PsubURL(opts.WSAddr(), s.key, opts.Token, s.shared, s.timeoutDuration())
	fmt.Fprintf(out, "persistent sub to %s\n", url)

	return session.Subscribe(ctx, session.NewWebsocketDialer(), session.SubscribeConfig{
		URL:           url,
		Confirm:       opts.Confirm,
		ProbeInterval: opts.ProbeInterval(),
		Timeout:       s.timeoutDuration(),
	}, func(msg []byte) error {
		_, err := fmt.Fprintf(out, "%s\n", msg)
		return err
	})
}

func runPrep(ctx context.Context, s settings, opts config.Options, out io.Writer, in io.Reader) error {
	var src session.Source
	if s.data == "-" {
		src = lineSource(in)
	} else {
		src = session.Values(strings.Split(s.data, ","))
	}

	return session.Publish(ctx, session.NewWebsocketDialer(), session.PublishConfig{
		URL: protocol.PrepURL(opts.WSAddr()),
		Defaults: protocol.Envelope{
			Key:   s.key,
			Token: opts.Token,
			Psub:  s.psub,
		},
		Confirm: opts.Confirm,
		OnConfirm: func(sent string, confirmation []byte) {
			fmt.Fprintf(out, "%q: %s\n", sent, confirmation)
		},
		Timeout: s.timeoutDuration(),
	}, src)
}

// lineSource yields one publish item per line of input, for `-data -`.
// Lines are unbounded; payload size carries no limit anywhere on the path.
func lineSource(in io.Reader) session.Source {
	r := bufio.NewReader(in)
	return func() (session.Item, error) {
		line, err := r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return session.Item{}, err
			}
			if line == "" {
				return session.Item{}, io.EOF
			}
			// Final line without a trailing newline still publishes.
		}
		return session.Item{Data: strings.TrimSuffix(line, "\n")}, nil
	}
}
