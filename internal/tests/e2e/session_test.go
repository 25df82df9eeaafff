//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/mq"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func TestDeactivationInvalidatesSessions(t *testing.T) {
	suffix := time.Now().UnixNano()
	adminEmail := fmt.Sprintf("admin_%d@example.com", suffix)
	userEmail := fmt.Sprintf("user_%d@example.com", suffix)

	admin := register(t, "E2E Admin", adminEmail, "admin123")
	if err := promoteUserToAdmin(admin.User.ID); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	adminToken := login(t, adminEmail, "admin123")

	user := register(t, "E2E User", userEmail, "user123")
	staleToken := user.Token

	expectStatus(t, http.MethodGet, "/api/auth/me", staleToken, nil, http.StatusOK, "")

	statusPath := "/api/admin/users/" + user.User.ID + "/status"
	expectStatus(t, http.MethodPatch, statusPath, adminToken, map[string]string{"status": "inactive"}, http.StatusOK, "User status updated")
	expectStatus(t, http.MethodGet, "/api/auth/me", staleToken, nil, http.StatusUnauthorized, "User account is inactive")

	expectStatus(t, http.MethodPatch, statusPath, adminToken, map[string]string{"status": "active"}, http.StatusOK, "User status updated")
	expectStatus(t, http.MethodGet, "/api/auth/me", staleToken, nil, http.StatusUnauthorized, "Session expired, please login again")

	fresh := login(t, userEmail, "user123")
	expectStatus(t, http.MethodGet, "/api/auth/me", fresh, nil, http.StatusOK, "")
	expectStatus(t, http.MethodGet, "/api/admin/users", fresh, nil, http.StatusForbidden, "Access denied. Admin privileges required.")
}

func TestStatusChangePublishesEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	broker, err := mq.Open(ctx, config.LoadConfig().MQ)
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	defer broker.Close()

	suffix := time.Now().UnixNano()
	adminEmail := fmt.Sprintf("evadmin_%d@example.com", suffix)
	admin := register(t, "Events Admin", adminEmail, "admin123")
	if err := promoteUserToAdmin(admin.User.ID); err != nil {
		t.Fatalf("promote user: %v", err)
	}
	adminToken := login(t, adminEmail, "admin123")
	user := register(t, "Events User", fmt.Sprintf("evuser_%d@example.com", suffix), "user123")

	received := make(chan mq.UserStatusChanged, 1)
	go func() {
		_ = broker.Subscribe(ctx, mq.ChannelIdentity, func(_ context.Context, msg mq.Message) error {
			var event mq.Event
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				return nil
			}
			if event.Type != mq.EventUserStatusChanged {
				return nil
			}
			var payload mq.UserStatusChanged
			if err := json.Unmarshal(event.Data, &payload); err != nil || payload.UserID != user.User.ID {
				return nil
			}
			select {
			case received <- payload:
			default:
			}
			return nil
		})
	}()

	expectStatus(t, http.MethodPatch, "/api/admin/users/"+user.User.ID+"/status", adminToken, map[string]string{"status": "inactive"}, http.StatusOK, "")

	select {
	case payload := <-received:
		if payload.Status != "inactive" || payload.TokenVersion != 1 {
			t.Fatalf("unexpected event payload: %+v", payload)
		}
	case <-ctx.Done():
		t.Fatalf("no status event received")
	}
}

func TestTaskAttachmentRoundTrip(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("attach_%d@example.com", suffix)
	user := register(t, "Attach User", email, "user123")

	var task struct {
		ID string `json:"id"`
	}
	doJSON(t, http.MethodPost, "/api/tasks", user.Token, map[string]string{
		"title":      "Upload notes",
		"assignedTo": user.User.ID,
	}, http.StatusCreated, &task)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("standup notes"))
	_ = writer.Close()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/tasks/"+task.ID+"/attachments", &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+user.Token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var attachment struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&attachment); err != nil {
		t.Fatalf("decode attachment: %v", err)
	}

	download := send(t, http.MethodGet, "/api/tasks/"+task.ID+"/attachments/"+attachment.ID, user.Token, nil)
	defer download.Body.Close()
	data, _ := io.ReadAll(download.Body)
	if download.StatusCode != http.StatusOK || string(data) != "standup notes" {
		t.Fatalf("download status %d body %q", download.StatusCode, string(data))
	}
}

func register(t *testing.T, name, email, password string) authResponse {
	t.Helper()
	var parsed authResponse
	doJSON(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, http.StatusCreated, &parsed)
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed
}

func login(t *testing.T, email, password string) string {
	t.Helper()
	var parsed authResponse
	doJSON(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &parsed)
	return parsed.Token
}

func promoteUserToAdmin(userID string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE id = $1", userID)
	return err
}

func send(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func doJSON(t *testing.T, method, path, token string, payload any, wantStatus int, out any) {
	t.Helper()

	resp := send(t, method, path, token, payload)
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}

func expectStatus(t *testing.T, method, path, token string, payload any, wantStatus int, wantMessage string) {
	t.Helper()

	var parsed messageResponse
	doJSON(t, method, path, token, payload, wantStatus, &parsed)
	if wantMessage != "" && parsed.Message != wantMessage {
		t.Fatalf("%s %s message %q, want %q", method, path, parsed.Message, wantMessage)
	}
}
