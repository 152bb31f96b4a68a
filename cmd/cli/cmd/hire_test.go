package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
	viper.SetEnvPrefix("HIREPLANE")
	viper.AutomaticEnv()
}

func TestHireCommand_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/hires" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var reqBody map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if reqBody["agent_card_url"] != "https://agent.test/card.json" {
			t.Errorf("unexpected card url: %v", reqBody["agent_card_url"])
		}
		if reqBody["entrypoint_key"] != "summarize" {
			t.Errorf("unexpected entrypoint: %v", reqBody["entrypoint_key"])
		}
		schedule := reqBody["schedule"].(map[string]interface{})
		if schedule["kind"] != "interval" || schedule["every_ms"] != float64(3_600_000) {
			t.Errorf("unexpected schedule: %v", schedule)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"hire_id": "hire-123",
			"job_id":  "job-456",
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"hire", "--card", "https://agent.test/card.json", "--entrypoint", "summarize", "--every", "1h"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Agent hired") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "hire-123") || !strings.Contains(output, "job-456") {
		t.Errorf("expected IDs in output, got: %s", output)
	}
}

func TestHireCommand_MissingCard(t *testing.T) {
	resetViper()

	hireCmd.Flags().Set("card", "")
	hireCmd.Flags().Set("entrypoint", "")
	hireCmd.Flags().Set("every", "0")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when validation fails")
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"hire", "--entrypoint", "summarize", "--every", "1h"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "--card is required") {
		t.Errorf("expected card required error, got: %s", stdout.String())
	}
}

func TestHireCommand_RequiresExactlyOneSchedule(t *testing.T) {
	resetViper()

	hireCmd.Flags().Set("card", "")
	hireCmd.Flags().Set("entrypoint", "")
	hireCmd.Flags().Set("every", "0")
	hireCmd.Flags().Set("cron", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when validation fails")
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"hire", "--card", "https://agent.test/card.json", "--entrypoint", "run",
		"--every", "1h", "--cron", "0 9 * * *"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "exactly one of") {
		t.Errorf("expected schedule validation error, got: %s", stdout.String())
	}
}

func TestHireCommand_ServerError(t *testing.T) {
	resetViper()

	hireCmd.Flags().Set("cron", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("failed to fetch agent card"))
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"hire", "--card", "https://agent.test/card.json", "--entrypoint", "run", "--every", "1h"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Error (502)") {
		t.Errorf("expected error status in output, got: %s", stdout.String())
	}
}

func TestPauseCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hires/hire-1/pause" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"pause", "hire", "hire-1"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Paused") {
		t.Errorf("expected pause confirmation, got: %s", stdout.String())
	}
}

func TestPauseCommand_Conflict(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "reason": "hire already paused"})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"pause", "hire", "hire-1"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "Not applied: hire already paused") {
		t.Errorf("expected conflict reason, got: %s", stdout.String())
	}
}

func TestTickCommand(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/tick" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"due": 2, "claimed": 2, "succeeded": 1, "failed": 1})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"tick"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "due: 2") || !strings.Contains(output, "succeeded: 1") {
		t.Errorf("expected tick stats in output, got: %s", output)
	}
}
