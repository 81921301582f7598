//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/authloop/authserver/config"
	"github.com/authloop/authserver/internal/server"
)

const (
	serverPort = 18080
	redisAddr  = "localhost:6379"
)

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

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAuthLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"

	if err := registerUser(t, baseURL, email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}

	// The verification link goes out by mail; read the token from the DB.
	verificationToken, err := readVerificationToken(email)
	if err != nil {
		t.Fatalf("read verification token: %v", err)
	}
	if err := verifyEmail(t, baseURL, verificationToken); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	userID, err := login(t, baseURL, email, password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// The OTP goes out by mail; read it straight from the cache.
	otp, err := readOtp(userID)
	if err != nil {
		t.Fatalf("read otp: %v", err)
	}

	token, err := verifyOtp(t, baseURL, userID, otp)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	profile, err := getProfile(t, baseURL, token)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Email != email {
		t.Fatalf("unexpected profile email: %q", profile.Email)
	}
	if profile.Role != "USER" {
		t.Fatalf("unexpected profile role: %q", profile.Role)
	}

	if err := expectAuditTrail(userID, 5); err != nil {
		t.Fatalf("audit trail: %v", err)
	}
}

func TestPasswordResetLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	email := fmt.Sprintf("reset_%d@example.com", time.Now().UnixNano())
	password := "testpass123!"
	newPassword := "freshpass456!"

	if err := registerUser(t, baseURL, email, password); err != nil {
		t.Fatalf("register user: %v", err)
	}
	verificationToken, err := readVerificationToken(email)
	if err != nil {
		t.Fatalf("read verification token: %v", err)
	}
	if err := verifyEmail(t, baseURL, verificationToken); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	if err := forgotPassword(t, baseURL, email); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	resetToken, err := readResetToken(email)
	if err != nil {
		t.Fatalf("read reset token: %v", err)
	}
	if err := resetPassword(t, baseURL, resetToken, newPassword); err != nil {
		t.Fatalf("reset password: %v", err)
	}

	if _, err := login(t, baseURL, email, newPassword); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type profileResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func registerUser(t *testing.T, baseURL, email, password string) error {
	t.Helper()

	payload := map[string]string{
		"fullName": "E2E Tester",
		"email":    email,
		"password": password,
	}
	resp, err := postJSON(baseURL+"/api/auth/register", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("register status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func verifyEmail(t *testing.T, baseURL, token string) error {
	t.Helper()

	resp, err := http.Get(baseURL + "/api/auth/verify?token=" + token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("verify status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func login(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	var data struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		return "", err
	}
	if data.UserID == "" {
		return "", fmt.Errorf("missing userId in login response")
	}
	return data.UserID, nil
}

func verifyOtp(t *testing.T, baseURL, userID, otp string) (string, error) {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/auth/verify-otp", map[string]string{
		"userId": userID,
		"otp":    otp,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("verify-otp status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(parsed.Data, &data); err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", fmt.Errorf("missing token in verify-otp response")
	}
	return data.Token, nil
}

func forgotPassword(t *testing.T, baseURL, email string) error {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/auth/forgot-password", map[string]string{"email": email})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("forgot-password status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func resetPassword(t *testing.T, baseURL, token, newPassword string) error {
	t.Helper()

	resp, err := postJSON(baseURL+"/api/auth/reset-password?token="+token, map[string]string{
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reset-password status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func getProfile(t *testing.T, baseURL, token string) (profileResponse, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/auth/profile", nil)
	if err != nil {
		return profileResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return profileResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return profileResponse{}, fmt.Errorf("profile status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return profileResponse{}, err
	}
	var profile profileResponse
	if err := json.Unmarshal(parsed.Data, &profile); err != nil {
		return profileResponse{}, err
	}
	return profile, nil
}

func postJSON(url string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return http.DefaultClient.Do(req)
}

func readVerificationToken(email string) (string, error) {
	return readUserColumn(email, "verification_token")
}

func readResetToken(email string) (string, error) {
	return readUserColumn(email, "reset_token")
}

func readUserColumn(email, column string) (string, error) {
	db, err := openDB()
	if err != nil {
		return "", err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var value sql.NullString
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", column)
	if err := db.QueryRowContext(ctx, query, email).Scan(&value); err != nil {
		return "", err
	}
	if !value.Valid || value.String == "" {
		return "", fmt.Errorf("%s not set for %s", column, email)
	}
	return value.String, nil
}

func readOtp(userID string) (string, error) {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return client.Get(ctx, "otp:"+userID).Result()
}

func expectAuditTrail(userID string, minEvents int) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	// The recorder is asynchronous; give it a moment to land.
	deadline := time.Now().Add(5 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var count int
		err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM audit_events WHERE user_id = $1", userID,
		).Scan(&count)
		cancel()
		if err != nil {
			return err
		}
		if count >= minEvents {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("expected at least %d audit events, got %d", minEvents, count)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func openDB() (*sql.DB, error) {
	cfg := config.LoadConfig()
	return sql.Open("postgres", buildPostgresURL(cfg))
}

func waitForPostgres(ctx context.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
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
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "authloop")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "authloop_db")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("REDIS_ADDR", redisAddr)
	_ = os.Setenv("AUDIT_SINK", "postgres")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg, slog.Default())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
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
