// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
)

func init() {
	Add(Cmd{
		Name:    "echo",
		Args:    1,
		Pattern: regexp.MustCompile(`^echo (.*)$`),
		Syntax:  "<text>",
		Help:    "echo text",
		Fn: func(_ *Interface, arg []string) (string, error) {
			return arg[0], nil
		},
	})

	Add(Cmd{
		Name: "fail",
		Help: "always fails",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", errors.New("failure")
		},
	})

	Add(Cmd{
		Name: "quit",
		Help: "close session",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", io.EOF
		},
	})
}

func TestExec(t *testing.T) {
	var buf bytes.Buffer
	var log bytes.Buffer

	iface := &Interface{Log: &log}

	if err := iface.Exec("echo hello", &buf); err != nil {
		t.Fatal(err)
	}

	if buf.String() != "hello\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	if log.String() != "> echo hello\n" {
		t.Fatalf("unexpected log %q", log.String())
	}

	if err := iface.Exec("bogus", &buf); err == nil {
		t.Fatal("unknown command accepted")
	}

	if err := iface.Exec("fail", &buf); err == nil || err.Error() != "failure" {
		t.Fatalf("unexpected error %v", err)
	}

	if err := iface.Exec("  ", &buf); err != nil {
		t.Fatal(err)
	}
}

func TestHelp(t *testing.T) {
	help, err := Help(nil, nil)

	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []string{"help", "echo", "<text>", "# echo text"} {
		if !strings.Contains(help, s) {
			t.Fatalf("help does not contain %q", s)
		}
	}
}

func TestStart(t *testing.T) {
	var out bytes.Buffer

	iface := &Interface{
		Banner: "test shell",
		ReadWriter: struct {
			io.Reader
			io.Writer
		}{
			strings.NewReader("echo one\rfail\rquit\recho two\r"),
			&out,
		},
	}

	iface.Start()

	s := out.String()

	if !strings.Contains(s, "test shell") || !strings.Contains(s, "one\n") {
		t.Fatalf("unexpected output %q", s)
	}

	if !strings.Contains(s, "command error, failure") {
		t.Fatalf("command error not reported %q", s)
	}

	if strings.Contains(s, "two") {
		t.Fatal("session not closed")
	}
}
