package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/esub/esub-go/internal/config"
	"github.com/esub/esub-go/internal/protocol"
	"github.com/esub/esub-go/internal/testutil/esubtest"
	"github.com/esub/esub-go/internal/testutil/testlog"
)

func TestParseArgsDefaults(t *testing.T) {
	s, err := parseArgs([]string{"orders"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.key != "orders" {
		t.Fatalf("unexpected key: %q", s.key)
	}
	if s.data != "" || s.psub || s.prep || s.shared || s.debug {
		t.Fatalf("unexpected non-default settings: %+v", s)
	}
}

func TestParseArgsFlags(t *testing.T) {
	s, err := parseArgs([]string{
		"-d", "a,b", "-r", "-t", "tok", "-H", "esub.internal",
		"-P", "9001", "-timeout", "30", "-s", "-D", "orders",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.key != "orders" {
		t.Fatalf("unexpected key: %q", s.key)
	}
	if s.data != "a,b" || !s.prep || s.token != "tok" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.host != "esub.internal" || s.port != 9001 {
		t.Fatalf("unexpected host/port: %q/%d", s.host, s.port)
	}
	if s.timeout != 30 || !s.shared || !s.debug {
		t.Fatalf("unexpected settings: %+v", s)
	}
}

func TestParseArgsRejectsMissingKey(t *testing.T) {
	if _, err := parseArgs([]string{"-p"}); err == nil {
		t.Fatalf("expected error without key")
	}
	if _, err := parseArgs([]string{"a", "b"}); err == nil {
		t.Fatalf("expected error with two keys")
	}
}

func TestParseArgsPrepRequiresData(t *testing.T) {
	if _, err := parseArgs([]string{"-r", "orders"}); err == nil {
		t.Fatalf("expected error for prep without data")
	}
}

func TestSettingsApplyOverrides(t *testing.T) {
	s := settings{host: "other", port: 7777, token: "cli-token"}
	opts := s.apply(config.Default())
	if opts.Host != "other" || opts.Port != 7777 || opts.Token != "cli-token" {
		t.Fatalf("unexpected options: %+v", opts)
	}

	base := config.Default()
	base.Token = "env-token"
	opts = settings{}.apply(base)
	if opts.Host != config.DefaultHost || opts.Token != "env-token" {
		t.Fatalf("empty settings must not override: %+v", opts)
	}
}

func nodeOptions(t *testing.T, n *esubtest.Node) config.Options {
	t.Helper()
	u, err := url.Parse(n.URL())
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	opts := config.Default()
	opts.Host = host
	opts.Port = port
	return opts
}

func TestRunSubPrintsBody(t *testing.T) {
	testlog.Start(t)
	n := esubtest.NewNode()
	defer n.Close()
	n.SetSubReply("orders", "payload")

	var out bytes.Buffer
	s := settings{key: "orders"}
	if err := run(context.Background(), s, nodeOptions(t, n), &out, strings.NewReader("")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.String() != "payload\n" {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRunRepReadsStdin(t *testing.T) {
	testlog.Start(t)
	n := esubtest.NewNode()
	defer n.Close()

	s := settings{key: "orders", data: "-", token: "tok"}
	in := strings.NewReader("piped payload")
	if err := run(context.Background(), s, nodeOptions(t, n), io.Discard, in); err != nil {
		t.Fatalf("run: %v", err)
	}

	reps := n.Reps()
	if len(reps) != 1 {
		t.Fatalf("unexpected rep count: %d", len(reps))
	}
	if reps[0].Body != "piped payload" || reps[0].Token != "tok" {
		t.Fatalf("unexpected rep: %+v", reps[0])
	}
}

func TestRunPsubPrintsMessages(t *testing.T) {
	testlog.Start(t)
	n := esubtest.NewNode()
	defer n.Close()
	n.Confirm = true
	n.FeedPsub("orders", "m1", "m2")

	var out bytes.Buffer
	s := settings{key: "orders", psub: true}
	opts := nodeOptions(t, n)
	opts.Confirm = true
	if err := run(context.Background(), s, opts, &out, strings.NewReader("")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "m1\n") || !strings.Contains(out.String(), "m2\n") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRunPrepSendsCommaSplitItems(t *testing.T) {
	testlog.Start(t)
	n := esubtest.NewNode()
	defer n.Close()

	s := settings{key: "orders", data: "a,b,c", prep: true, token: "tok"}
	if err := run(context.Background(), s, nodeOptions(t, n), io.Discard, strings.NewReader("")); err != nil {
		t.Fatalf("run: %v", err)
	}

	frames := waitForPrepFrames(t, n, 3)
	for i, want := range []string{"a", "b", "c"} {
		env, err := protocol.DecodeEnvelope([]byte(frames[i].Raw))
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if env.Key != "orders" || env.Token != "tok" || env.Data != want {
			t.Fatalf("unexpected envelope %d: %+v", i, env)
		}
	}
}

func TestRunPrepStdinLineSource(t *testing.T) {
	testlog.Start(t)
	n := esubtest.NewNode()
	defer n.Close()

	s := settings{key: "orders", data: "-", prep: true}
	in := strings.NewReader("line one\nline two\n")
	if err := run(context.Background(), s, nodeOptions(t, n), io.Discard, in); err != nil {
		t.Fatalf("run: %v", err)
	}

	frames := waitForPrepFrames(t, n, 2)
	env, err := protocol.DecodeEnvelope([]byte(frames[1].Raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data != "line two" {
		t.Fatalf("unexpected data: %q", env.Data)
	}
}

func TestLineSourceUnboundedAndUnterminated(t *testing.T) {
	long := strings.Repeat("x", 17<<20)
	src := lineSource(strings.NewReader("first\n" + long + "\nlast"))

	item, err := src()
	if err != nil || item.Data != "first" {
		t.Fatalf("first line: %q %v", item.Data, err)
	}
	item, err = src()
	if err != nil {
		t.Fatalf("long line: %v", err)
	}
	if len(item.Data) != len(long) || item.Data != long {
		t.Fatalf("long line truncated: got %d bytes, want %d", len(item.Data), len(long))
	}
	item, err = src()
	if err != nil || item.Data != "last" {
		t.Fatalf("unterminated final line: %q %v", item.Data, err)
	}
	if _, err := src(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

// waitForPrepFrames polls until the node has consumed n frames. Without
// confirmations the sender can return before the node's read loop catches up.
func waitForPrepFrames(t *testing.T, node *esubtest.Node, n int) []esubtest.PrepFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		frames := node.PrepFrames()
		if len(frames) >= n {
			if len(frames) != n {
				t.Fatalf("unexpected frame count: %d", len(frames))
			}
			return frames
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d frames, have %d", n, len(frames))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	opts := config.Default()
	opts.Port = 0
	s := settings{key: "orders"}
	if err := run(context.Background(), s, opts, io.Discard, strings.NewReader("")); err == nil {
		t.Fatalf("expected validation error")
	}
}
