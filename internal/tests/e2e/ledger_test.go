//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/db"
	"github.com/lumenbank/apiserver/internal/server"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setEnv(root)
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := db.Migrate(cfg.Database, true); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg, log.NewNopLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestLedgerLifecycle(t *testing.T) {
	client := newUser(t)

	var created struct {
		Account struct {
			ID            string `json:"id"`
			AccountNumber string `json:"accountNumber"`
			Balance       string `json:"balance"`
		} `json:"account"`
	}
	status := client.do(t, http.MethodPost, "/accounts", map[string]any{
		"accountType":    "Checking",
		"initialDeposit": 100,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create account: status %d", status)
	}
	if len(created.Account.AccountNumber) != 10 {
		t.Fatalf("unexpected account number %q", created.Account.AccountNumber)
	}

	// two concurrent $60 withdrawals against $100: exactly one succeeds
	var (
		wg       sync.WaitGroup
		statuses = make([]int, 2)
	)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = client.do(t, http.MethodPost, "/transactions", map[string]any{
				"accountId":       created.Account.ID,
				"transactionType": "withdrawal",
				"amount":          60,
			}, nil)
		}(i)
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, s := range statuses {
		switch s {
		case http.StatusCreated:
			ok++
		case http.StatusUnprocessableEntity:
			rejected++
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("got statuses %v", statuses)
	}

	var account struct {
		Account struct {
			Balance string `json:"balance"`
		} `json:"account"`
	}
	client.do(t, http.MethodGet, "/accounts/"+created.Account.ID, nil, &account)
	if account.Account.Balance != "40" {
		t.Fatalf("got balance %s", account.Account.Balance)
	}

	// replay with an idempotency key
	body := map[string]any{
		"accountId":       created.Account.ID,
		"transactionType": "deposit",
		"amount":          10,
		"idempotencyKey":  "e2e-replay",
	}
	if s := client.do(t, http.MethodPost, "/transactions", body, nil); s != http.StatusCreated {
		t.Fatalf("first deposit: status %d", s)
	}
	var replay struct {
		Replayed bool   `json:"replayed"`
		Balance  string `json:"balance"`
	}
	if s := client.do(t, http.MethodPost, "/transactions", body, &replay); s != http.StatusOK {
		t.Fatalf("replayed deposit: status %d", s)
	}
	if !replay.Replayed || replay.Balance != "50" {
		t.Fatalf("got %+v", replay)
	}

	var history struct {
		Transactions []struct {
			Type          string `json:"type"`
			AccountNumber string `json:"accountNumber"`
		} `json:"transactions"`
	}
	client.do(t, http.MethodGet, "/transactions/history", nil, &history)
	if n := len(history.Transactions); n != 3 {
		t.Fatalf("got %d history entries", n)
	}
	if history.Transactions[0].Type != "deposit" || history.Transactions[0].AccountNumber != created.Account.AccountNumber {
		t.Fatalf("unexpected newest entry %+v", history.Transactions[0])
	}
}

func TestHistoryIsolation(t *testing.T) {
	alice := newUser(t)
	bob := newUser(t)

	var created struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
	}
	alice.do(t, http.MethodPost, "/accounts", map[string]any{"accountType": "Savings", "initialDeposit": 500}, &created)

	// bob cannot touch alice's account
	status := bob.do(t, http.MethodPost, "/transactions", map[string]any{
		"accountId":       created.Account.ID,
		"transactionType": "withdrawal",
		"amount":          1,
	}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("got status %d", status)
	}

	var history struct {
		Transactions []json.RawMessage `json:"transactions"`
	}
	bob.do(t, http.MethodGet, "/transactions/history", nil, &history)
	if len(history.Transactions) != 0 {
		t.Fatalf("bob sees %d entries", len(history.Transactions))
	}
}

type apiClient struct {
	http *http.Client
}

func newUser(t *testing.T) *apiClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c := &apiClient{http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}

	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	status := c.do(t, http.MethodPost, "/auth/register", map[string]any{
		"firstName":       "Test",
		"lastName":        "User",
		"email":           email,
		"password":        "testpass123!",
		"confirmPassword": "testpass123!",
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("register: status %d", status)
	}
	return c
}

func (c *apiClient) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, baseURL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func setEnv(root string) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("STORE_DRIVER", "postgres")
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "lumen")
	_ = os.Setenv("DB_PASSWORD", "lumen")
	_ = os.Setenv("DB_NAME", "lumen")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("SESSION_STORE", "redis")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	_ = os.Setenv("HISTORY_CACHE_TTL", "1m")
	_ = os.Setenv("SESSION_DB_PATH", filepath.Join(os.TempDir(), "lumen-e2e-sessions.db"))
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.URL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health check failed: %v", err)
		case <-ticker.C:
		}
	}
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	cmd := exec.CommandContext(ctx, "docker", append([]string{"compose", "-f", composeFile}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
