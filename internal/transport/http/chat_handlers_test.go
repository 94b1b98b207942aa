package http

import (
	"fmt"
	"testing"

	"github.com/uniadvisor/advisory-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterAndLoginFlow(t *testing.T) {
	env := startTestServer(t)

	var authResp AuthResponse
	status := env.doJSON(t, "POST", "/api/register", "", RegisterRequest{
		Username: "alice",
		Password: "password123",
		Role:     "student",
	}, &authResp)
	if status != 201 {
		t.Fatalf("register: expected 201, got %d", status)
	}
	if authResp.Token == "" {
		t.Fatal("register: expected a token")
	}

	// Duplicate username.
	status = env.doJSON(t, "POST", "/api/register", "", RegisterRequest{
		Username: "alice",
		Password: "password123",
	}, nil)
	if status != 409 {
		t.Fatalf("duplicate register: expected 409, got %d", status)
	}

	// Admin is not a registrable role: rejected at binding.
	status = env.doJSON(t, "POST", "/api/register", "", map[string]string{
		"username": "mallory",
		"password": "password123",
		"role":     "admin",
	}, nil)
	if status != 400 {
		t.Fatalf("admin register: expected 400, got %d", status)
	}

	authResp = AuthResponse{}
	status = env.doJSON(t, "POST", "/api/login", "", LoginRequest{
		Username: "alice",
		Password: "password123",
	}, &authResp)
	if status != 200 || authResp.Token == "" {
		t.Fatalf("login: expected 200 with token, got %d", status)
	}

	status = env.doJSON(t, "POST", "/api/login", "", LoginRequest{
		Username: "alice",
		Password: "wrong",
	}, nil)
	if status != 401 {
		t.Fatalf("bad login: expected 401, got %d", status)
	}
}

func TestChatEndpointsRequireAuth(t *testing.T) {
	env := startTestServer(t)

	if status := env.doJSON(t, "GET", "/api/chat/boxes", "", nil, nil); status != 401 {
		t.Fatalf("no token: expected 401, got %d", status)
	}
	if status := env.doJSON(t, "GET", "/api/chat/boxes", "garbage-token", nil, nil); status != 401 {
		t.Fatalf("bad token: expected 401, got %d", status)
	}
}

func TestChatBoxLifecycle(t *testing.T) {
	env := startTestServer(t)

	student, studentToken := env.registerUser(t, "student1", store.RoleStudent)
	advisor, advisorToken := env.registerUser(t, "advisor1", store.RoleAdvisor)
	_, outsiderToken := env.registerUser(t, "student2", store.RoleStudent)

	var box ChatBoxResponse
	status := env.doJSON(t, "POST", "/api/chat/boxes", studentToken,
		CreateChatBoxRequest{UserID: advisor.ID}, &box)
	if status != 201 {
		t.Fatalf("create box: expected 201, got %d", status)
	}
	if box.StudentID != student.ID || box.AdvisorID != advisor.ID {
		t.Fatalf("unexpected box sides: %+v", box)
	}
	if !box.IsActive {
		t.Fatal("new box must be active")
	}

	// Idempotent from the other side, via the path form.
	var again ChatBoxResponse
	status = env.doJSON(t, "POST", fmt.Sprintf("/api/chat/boxes/%d", student.ID), advisorToken, nil, &again)
	if status != 201 {
		t.Fatalf("repeat create: expected 201, got %d", status)
	}
	if again.ID != box.ID {
		t.Fatalf("expected one box, got %d and %d", box.ID, again.ID)
	}

	// Two students cannot open a box.
	status = env.doJSON(t, "POST", "/api/chat/boxes", outsiderToken,
		CreateChatBoxRequest{UserID: student.ID}, nil)
	if status != 400 {
		t.Fatalf("student/student box: expected 400, got %d", status)
	}

	var boxes []ChatBoxResponse
	if status := env.doJSON(t, "GET", "/api/chat/boxes", studentToken, nil, &boxes); status != 200 {
		t.Fatalf("list boxes: expected 200, got %d", status)
	}
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}

	// Non-participant is rejected, missing box is 404.
	var errResp ErrorResponse
	if status := env.doJSON(t, "GET", fmt.Sprintf("/api/chat/boxes/%d", box.ID), outsiderToken, nil, &errResp); status != 403 {
		t.Fatalf("outsider get: expected 403, got %d", status)
	}
	if errResp.Code != "forbidden" {
		t.Fatalf("expected forbidden code, got %q", errResp.Code)
	}
	errResp = ErrorResponse{}
	if status := env.doJSON(t, "GET", "/api/chat/boxes/999", studentToken, nil, &errResp); status != 404 {
		t.Fatalf("missing box: expected 404, got %d", status)
	}
	if errResp.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", errResp.Code)
	}
}

func TestBoxMessagingFlow(t *testing.T) {
	env := startTestServer(t)

	_, studentToken := env.registerUser(t, "student1", store.RoleStudent)
	advisor, advisorToken := env.registerUser(t, "advisor1", store.RoleAdvisor)
	_, outsiderToken := env.registerUser(t, "student2", store.RoleStudent)

	var box ChatBoxResponse
	env.doJSON(t, "POST", "/api/chat/boxes", studentToken, CreateChatBoxRequest{UserID: advisor.ID}, &box)

	var sent MessageResponse
	status := env.doJSON(t, "POST", fmt.Sprintf("/api/chat/boxes/%d/messages", box.ID), studentToken,
		SendMessageRequest{Content: "when are office hours?"}, &sent)
	if status != 201 {
		t.Fatalf("send: expected 201, got %d", status)
	}
	if sent.ReceiverID != advisor.ID || sent.ChatBoxID != box.ID {
		t.Fatalf("unexpected message: %+v", sent)
	}

	status = env.doJSON(t, "POST", fmt.Sprintf("/api/chat/boxes/%d/messages", box.ID), outsiderToken,
		SendMessageRequest{Content: "let me in"}, nil)
	if status != 403 {
		t.Fatalf("outsider send: expected 403, got %d", status)
	}

	var history []MessageResponse
	status = env.doJSON(t, "GET", fmt.Sprintf("/api/chat/boxes/%d/messages", box.ID), advisorToken, nil, &history)
	if status != 200 {
		t.Fatalf("history: expected 200, got %d", status)
	}
	if len(history) != 1 || history[0].Content != "when are office hours?" {
		t.Fatalf("unexpected history: %+v", history)
	}

	// Unread, then mark read.
	var unread []MessageResponse
	status = env.doJSON(t, "GET", "/api/chat/unread", advisorToken, nil, &unread)
	if status != 200 || len(unread) != 1 {
		t.Fatalf("unread: expected 1 message, got status %d len %d", status, len(unread))
	}

	// Only the receiver may mark; others see 404.
	status = env.doJSON(t, "POST", fmt.Sprintf("/api/chat/messages/%d/read", sent.ID), studentToken, nil, nil)
	if status != 404 {
		t.Fatalf("sender mark read: expected 404, got %d", status)
	}

	var read MessageResponse
	status = env.doJSON(t, "POST", fmt.Sprintf("/api/chat/messages/%d/read", sent.ID), advisorToken, nil, &read)
	if status != 200 || !read.IsRead {
		t.Fatalf("mark read: expected 200 read message, got status %d %+v", status, read)
	}

	unread = nil
	env.doJSON(t, "GET", "/api/chat/unread", advisorToken, nil, &unread)
	if len(unread) != 0 {
		t.Fatalf("expected no unread after marking, got %d", len(unread))
	}
}

func TestDirectMessagesAndConversation(t *testing.T) {
	env := startTestServer(t)

	student, studentToken := env.registerUser(t, "student1", store.RoleStudent)
	advisor, advisorToken := env.registerUser(t, "advisor1", store.RoleAdvisor)

	var sent MessageResponse
	status := env.doJSON(t, "POST", "/api/chat/messages", studentToken,
		SendDirectMessageRequest{ReceiverID: advisor.ID, Content: "quick question"}, &sent)
	if status != 201 {
		t.Fatalf("direct send: expected 201, got %d", status)
	}
	if sent.ChatBoxID != 0 {
		t.Fatalf("direct message must omit the box id, got %d", sent.ChatBoxID)
	}

	status = env.doJSON(t, "POST", "/api/chat/messages", studentToken,
		SendDirectMessageRequest{ReceiverID: student.ID, Content: "to myself"}, nil)
	if status != 400 {
		t.Fatalf("self send: expected 400, got %d", status)
	}

	status = env.doJSON(t, "POST", "/api/chat/messages", studentToken,
		SendDirectMessageRequest{ReceiverID: 999, Content: "hello?"}, nil)
	if status != 404 {
		t.Fatalf("unknown receiver: expected 404, got %d", status)
	}

	var conv []MessageResponse
	status = env.doJSON(t, "GET", fmt.Sprintf("/api/chat/messages/%d", student.ID), advisorToken, nil, &conv)
	if status != 200 {
		t.Fatalf("conversation: expected 200, got %d", status)
	}
	if len(conv) != 1 || conv[0].Content != "quick question" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
}
