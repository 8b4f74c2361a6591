// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/control"
	"github.com/bureau-foundation/presence/lib/secret"
	"github.com/bureau-foundation/presence/lib/testutil"
	"github.com/bureau-foundation/presence/presence"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeSlack records the status text of every users.profile.set call.
func fakeSlack(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	calls := make(chan string, 16)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/users.profile.set") {
			t.Errorf("unexpected path %s", request.URL.Path)
		}
		if got := request.Header.Get("Authorization"); got != "Bearer xoxp-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Profile struct {
				Text string `json:"status_text"`
			} `json:"profile"`
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		calls <- body.Profile.Text
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	directory := t.TempDir()

	cfg := config.Default()
	cfg.Slack.APIURL = apiURL
	cfg.Automatic.Networks = map[string]presence.StatusTemplate{
		"office-wifi": {Text: "In the office", Glyph: ":office:"},
	}
	cfg.Automatic.DebounceDelay = config.Duration(20 * time.Millisecond)
	cfg.Watcher.Source = config.WatcherFile
	cfg.Watcher.File = filepath.Join(directory, "network")
	cfg.Control.Socket = filepath.Join(directory, "run", "presenced.sock")
	cfg.Notifications.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func waitForSnapshot(t *testing.T, client *control.Client, condition func(presence.Snapshot) bool) presence.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		snapshot, err := client.Snapshot(ctx)
		cancel()
		if err == nil && condition(snapshot) {
			return snapshot
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline (last snapshot %+v, error %v)", snapshot, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDaemonEndToEnd(t *testing.T) {
	server, calls := fakeSlack(t)
	cfg := testConfig(t, server.URL)
	if err := os.WriteFile(cfg.Watcher.File, []byte("office-wifi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	token, err := secret.NewFromBytes([]byte("xoxp-test"))
	if err != nil {
		t.Fatal(err)
	}
	defer token.Close()

	daemon, err := newDaemon(cfg, token, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- daemon.run(ctx) }()

	if got := testutil.RequireReceive(t, calls, 5*time.Second, "automatic status"); got != "In the office" {
		t.Fatalf("first update = %q, want the office status", got)
	}

	client := control.NewClient(cfg.Control.Socket)
	waitForSnapshot(t, client, func(snapshot presence.Snapshot) bool {
		return snapshot.Status != nil && snapshot.Status.Text == "In the office"
	})

	if _, err := client.SetManualStatus(t.Context(), "Lunch", ":pizza:", presence.ExpireAfter(30)); err != nil {
		t.Fatalf("SetManualStatus: %v", err)
	}
	if got := testutil.RequireReceive(t, calls, 5*time.Second, "manual status"); got != "Lunch" {
		t.Fatalf("manual update = %q, want Lunch", got)
	}
	snapshot := waitForSnapshot(t, client, func(snapshot presence.Snapshot) bool {
		return snapshot.Status != nil && snapshot.Status.Text == "Lunch"
	})
	if snapshot.Mode != presence.ModeManual {
		t.Errorf("mode = %v, want manual", snapshot.Mode)
	}

	// Network changes are recorded but do not touch a manual status.
	if err := os.WriteFile(cfg.Watcher.File, []byte("home\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForSnapshot(t, client, func(snapshot presence.Snapshot) bool {
		return snapshot.Environment == "home"
	})
	if err := os.WriteFile(cfg.Watcher.File, []byte("office-wifi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForSnapshot(t, client, func(snapshot presence.Snapshot) bool {
		return snapshot.Environment == "office-wifi"
	})

	if _, err := client.ResumeAutomatic(t.Context()); err != nil {
		t.Fatalf("ResumeAutomatic: %v", err)
	}
	if got := testutil.RequireReceive(t, calls, 5*time.Second, "resumed status"); got != "In the office" {
		t.Fatalf("resumed update = %q, want the office status", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, runDone, 5*time.Second, "daemon exit"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(cfg.Control.Socket); !os.IsNotExist(err) {
		t.Errorf("socket still present after shutdown: %v", err)
	}
}

func TestDaemonWithoutTokenReportsRejection(t *testing.T) {
	server, calls := fakeSlack(t)
	cfg := testConfig(t, server.URL)
	if err := os.WriteFile(cfg.Watcher.File, []byte("office-wifi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	daemon, err := newDaemon(cfg, nil, testLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- daemon.run(ctx) }()
	defer func() {
		cancel()
		<-runDone
	}()

	client := control.NewClient(cfg.Control.Socket)
	snapshot := waitForSnapshot(t, client, func(snapshot presence.Snapshot) bool {
		return snapshot.LastFailure != nil
	})
	if snapshot.LastFailure.Result != presence.ResultRejected {
		t.Errorf("failure result = %v, want rejected", snapshot.LastFailure.Result)
	}
	if snapshot.Status != nil {
		t.Errorf("status confirmed without a token: %+v", snapshot.Status)
	}
	select {
	case text := <-calls:
		t.Errorf("remote called without a token (status %q)", text)
	default:
	}
}

func TestNewDaemonRejectsBadWatcher(t *testing.T) {
	cfg := testConfig(t, "https://slack.example/api")
	cfg.Watcher.Source = "dbus"
	if _, err := newDaemon(cfg, nil, testLogger()); err == nil {
		t.Fatal("newDaemon accepted an unknown watcher source")
	}

	cfg = testConfig(t, "https://slack.example/api")
	cfg.Watcher.Source = config.WatcherCommand
	cfg.Watcher.Command = nil
	if _, err := newDaemon(cfg, nil, testLogger()); err == nil {
		t.Fatal("newDaemon accepted an empty watcher command")
	}
}
