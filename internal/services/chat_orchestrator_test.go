package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fitbot/internal/config"
	"fitbot/internal/inference"
	"fitbot/internal/models"
)

type fakeBackend struct {
	mu         sync.Mutex
	configured bool
	text       string
	err        error
	block      bool
	calls      int
	prompts    []string
}

func (f *fakeBackend) Generate(ctx context.Context, req inference.Request) (*inference.Result, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &inference.Result{Text: f.text, Model: "fake-model"}, nil
}

func (f *fakeBackend) Model() string    { return "fake-model" }
func (f *fakeBackend) Configured() bool { return f.configured }

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakeFAQ struct {
	answer string
	err    error
	calls  int
}

func (f *fakeFAQ) Match(context.Context, string) (string, float64, error) {
	f.calls++
	if f.answer != "" {
		return f.answer, 1, f.err
	}
	return "", 0, f.err
}

type fakeTools struct {
	answer string
	err    error
	calls  int
}

func (f *fakeTools) Route(context.Context, *models.User, string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeAudit struct {
	mu         sync.Mutex
	usage      int
	errors     int
	lastIntent models.Intent
	lastErr    error
}

func (f *fakeAudit) LogUsage(_ context.Context, _ *models.User, _ string, intent models.Intent, _ time.Duration, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage++
	f.lastIntent = intent
}

func (f *fakeAudit) LogError(_ context.Context, _ *models.User, _ string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors++
	f.lastErr = err
}

type fakePrompts struct{}

func (fakePrompts) Build(_ context.Context, intent models.Intent, _ *models.User, _ string) string {
	return "SYSTEM PROMPT for " + string(intent)
}

type orchestratorHarness struct {
	orch    *ChatOrchestrator
	store   ConversationStore
	faq     *fakeFAQ
	tools   *fakeTools
	backend *fakeBackend
	audit   *fakeAudit
}

func newHarness(t *testing.T, mutate func(cfg *config.ChatConfig)) *orchestratorHarness {
	t.Helper()

	cfg := config.DefaultChatConfig()
	cfg.Timeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	h := &orchestratorHarness{
		store:   NewSQLConversationStore(newTestDB(t)),
		faq:     &fakeFAQ{},
		tools:   &fakeTools{},
		backend: &fakeBackend{configured: true, text: "Generated answer."},
		audit:   &fakeAudit{},
	}
	h.orch = NewChatOrchestrator(cfg, ChatDeps{
		FAQ:     h.faq,
		Tools:   h.tools,
		Prompts: fakePrompts{},
		Store:   h.store,
		Backend: h.backend,
		Audit:   h.audit,
	})
	return h
}

func (h *orchestratorHarness) send(t *testing.T, user *models.User, convID, message string) *models.ChatResponse {
	t.Helper()
	resp, err := h.orch.Handle(context.Background(), models.ChatRequest{
		User:           user,
		SessionKey:     "sess-1",
		ConversationID: convID,
		Message:        message,
	})
	if err != nil {
		t.Fatalf("Handle(%q) failed: %v", message, err)
	}
	return resp
}

func (h *orchestratorHarness) messages(t *testing.T, convID string) []models.Message {
	t.Helper()
	messages, err := h.store.List(context.Background(), convID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return messages
}

func TestChatOrchestrator_FAQHitSkipsToolsAndBackend(t *testing.T) {
	h := newHarness(t, nil)
	faq, err := NewFAQService("", 0.6)
	if err != nil {
		t.Fatalf("Failed to load FAQ corpus: %v", err)
	}
	h.orch.faq = faq

	resp := h.send(t, nil, "", "How much are walk-in passes?")

	if !resp.Success || resp.HandledBy != models.HandledByFAQ || resp.Kind != models.ResultFAQAnswer {
		t.Fatalf("Expected FAQ answer, got %+v", resp)
	}
	if resp.Intent != models.IntentFAQ {
		t.Errorf("Expected intent faq, got %s", resp.Intent)
	}
	if h.tools.calls != 0 || h.backend.callCount() != 0 {
		t.Errorf("Expected no tool or backend calls, got tools=%d backend=%d", h.tools.calls, h.backend.callCount())
	}

	messages := h.messages(t, resp.ConversationID)
	if len(messages) != 2 {
		t.Fatalf("Expected exactly 2 persisted messages, got %d", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[1].Role != models.RoleAssistant {
		t.Errorf("Unexpected roles: %s, %s", messages[0].Role, messages[1].Role)
	}
	if messages[1].ResponseTimeMs == nil {
		t.Error("Expected latency on the assistant message")
	}
}

func TestChatOrchestrator_MemberStatusUsesTools(t *testing.T) {
	db := newTestDB(t)
	seedGym(t, db)

	h := newHarness(t, nil)
	h.orch.tools = NewGymTools(NewGymDataService(db), func() time.Time { return fixedNow })

	member := testMember
	resp := h.send(t, &member, "", "What's my membership status?")

	if resp.Intent != models.IntentMemberLookup {
		t.Errorf("Expected member_lookup intent, got %s", resp.Intent)
	}
	if resp.HandledBy != models.HandledByTools || !resp.Success {
		t.Fatalf("Expected tools answer, got %+v", resp)
	}
	if !strings.Contains(resp.Response, "Monthly") {
		t.Errorf("Expected membership details, got %q", resp.Response)
	}
	if h.backend.callCount() != 0 {
		t.Errorf("Expected no backend calls, got %d", h.backend.callCount())
	}
	if h.audit.usage != 0 {
		t.Errorf("Members are not usage-audited, got %d", h.audit.usage)
	}
}

func TestChatOrchestrator_HistoryWindowByIntent(t *testing.T) {
	h := newHarness(t, nil)
	member := testMember

	first := h.send(t, &member, "", "Tell me about the sauna")
	if first.HandledBy != models.HandledByAI {
		t.Fatalf("Expected AI answer, got %+v", first)
	}

	// Informational replays the previous exchange
	h.send(t, &member, first.ConversationID, "Is it open on Sundays?")
	if prompt := h.backend.lastPrompt(); !strings.Contains(prompt, "Tell me about the sauna") {
		t.Errorf("Expected informational prompt to replay history, got:\n%s", prompt)
	}

	tests := []struct {
		intent  models.Intent
		message string
	}{
		{models.IntentAnalytical, "Show revenue trend analytics"},
		{models.IntentMemberLookup, "What are my days left?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			resp := h.send(t, &member, first.ConversationID, tt.message)
			if resp.Intent != tt.intent {
				t.Fatalf("Expected intent %s, got %s", tt.intent, resp.Intent)
			}
			prompt := h.backend.lastPrompt()
			if strings.Contains(prompt, "Tell me about the sauna") || strings.Contains(prompt, "Generated answer.") {
				t.Errorf("Expected no history for %s, got:\n%s", tt.intent, prompt)
			}
			if !strings.Contains(prompt, "User: "+tt.message) {
				t.Errorf("Expected current message in prompt, got:\n%s", prompt)
			}
		})
	}

	if h.tools.calls != 2 {
		t.Errorf("Expected tool router consulted for both structured intents, got %d", h.tools.calls)
	}
}

func TestChatOrchestrator_PromptLayout(t *testing.T) {
	h := newHarness(t, nil)
	h.send(t, nil, "", "Tell me about the sauna")

	want := "System: SYSTEM PROMPT for informational\n\nUser: Tell me about the sauna\nAssistant:"
	if got := h.backend.lastPrompt(); got != want {
		t.Errorf("Unexpected prompt:\n%q\nwant:\n%q", got, want)
	}
}

func TestChatOrchestrator_TimeoutPersistsNothing(t *testing.T) {
	h := newHarness(t, func(cfg *config.ChatConfig) { cfg.Timeout = 50 * time.Millisecond })
	h.backend.block = true
	member := testMember

	resp := h.send(t, &member, "", "Tell me about the sauna")

	if resp.Success {
		t.Fatal("Expected failure on timeout")
	}
	if resp.Kind != models.ResultError || resp.Error != string(inference.KindTimeout) {
		t.Errorf("Expected timeout error result, got %+v", resp)
	}
	if resp.Response != inference.UserSafeMessage(inference.KindTimeout) {
		t.Errorf("Expected timeout-safe message, got %q", resp.Response)
	}
	if messages := h.messages(t, resp.ConversationID); len(messages) != 0 {
		t.Errorf("Expected nothing persisted, got %d messages", len(messages))
	}
	if h.audit.errors != 1 {
		t.Errorf("Expected error audit for an attached user, got %d", h.audit.errors)
	}
}

func TestChatOrchestrator_BackendErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind inference.ErrorKind
	}{
		{"authentication", inference.ClassifyHTTPError(401, "invalid token"), inference.KindAuthentication},
		{"rate limit", inference.ClassifyHTTPError(429, "slow down"), inference.KindRateLimit},
		{"unclassified", errors.New("model exploded with provider secret"), inference.KindUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.backend.err = tt.err

			resp := h.send(t, nil, "", "Tell me about the sauna")

			if resp.Success || resp.Error != string(tt.kind) {
				t.Fatalf("Expected %s failure, got %+v", tt.kind, resp)
			}
			if resp.Response != inference.UserSafeMessage(tt.kind) {
				t.Errorf("Expected safe message, got %q", resp.Response)
			}
			if strings.Contains(resp.Response, "secret") {
				t.Error("Provider text leaked to the user")
			}
			if h.audit.errors != 0 {
				t.Errorf("Anonymous failures are not audited, got %d", h.audit.errors)
			}
			if h.backend.callCount() != 1 {
				t.Errorf("Expected a single backend attempt, got %d", h.backend.callCount())
			}
		})
	}
}

func TestChatOrchestrator_NotConfiguredFailsFast(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.configured = false
	staff := testStaff

	resp := h.send(t, &staff, "", "Tell me about the sauna")

	if resp.Success || resp.Error != string(inference.KindConfiguration) {
		t.Fatalf("Expected configuration failure, got %+v", resp)
	}
	if h.backend.callCount() != 0 {
		t.Errorf("Expected no backend attempt, got %d", h.backend.callCount())
	}
	if h.audit.errors != 1 || h.audit.usage != 0 {
		t.Errorf("Expected one error audit and no usage audit, got errors=%d usage=%d", h.audit.errors, h.audit.usage)
	}
}

func TestChatOrchestrator_UsageAuditForStaffOnly(t *testing.T) {
	member := testMember
	staff := testStaff
	admin := testAdmin

	tests := []struct {
		name  string
		user  *models.User
		usage int
	}{
		{"anonymous", nil, 0},
		{"member", &member, 0},
		{"staff", &staff, 1},
		{"admin", &admin, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.send(t, tt.user, "", "Tell me about the sauna")
			if h.audit.usage != tt.usage {
				t.Errorf("Expected %d usage audits, got %d", tt.usage, h.audit.usage)
			}
		})
	}

	t.Run("tool answer records intent", func(t *testing.T) {
		h := newHarness(t, nil)
		h.tools.answer = "Revenue for today: ₱0.00"
		h.send(t, &staff, "", "Show me today's revenue summary")
		if h.audit.usage != 1 || h.audit.lastIntent != models.IntentAnalytical {
			t.Errorf("Expected analytical usage audit, got usage=%d intent=%s", h.audit.usage, h.audit.lastIntent)
		}
	})

	t.Run("faq answer records faq intent", func(t *testing.T) {
		h := newHarness(t, nil)
		h.faq.answer = "We're open daily."
		h.send(t, &staff, "", "What are the gym hours?")
		if h.audit.usage != 1 || h.audit.lastIntent != models.IntentFAQ {
			t.Errorf("Expected faq usage audit, got usage=%d intent=%s", h.audit.usage, h.audit.lastIntent)
		}
	})
}

func TestChatOrchestrator_CapabilityFailuresDegrade(t *testing.T) {
	h := newHarness(t, nil)
	h.faq.err = errors.New("faq index unavailable")
	h.tools.err = errors.New("database down")
	staff := testStaff

	resp := h.send(t, &staff, "", "Show me today's revenue summary")

	if !resp.Success || resp.HandledBy != models.HandledByAI {
		t.Fatalf("Expected AI fallback, got %+v", resp)
	}
	if h.faq.calls != 1 || h.tools.calls != 1 || h.backend.callCount() != 1 {
		t.Errorf("Expected each stage once, got faq=%d tools=%d backend=%d", h.faq.calls, h.tools.calls, h.backend.callCount())
	}
}

func TestChatOrchestrator_InformationalSkipsTools(t *testing.T) {
	h := newHarness(t, nil)
	h.tools.answer = "should not be used"

	resp := h.send(t, nil, "", "Tell me about the sauna")

	if resp.HandledBy != models.HandledByAI || h.tools.calls != 0 {
		t.Errorf("Expected AI without tools, got %s with %d tool calls", resp.HandledBy, h.tools.calls)
	}
	if resp.Model != "fake-model" {
		t.Errorf("Expected backend model, got %q", resp.Model)
	}
}

func TestChatOrchestrator_Streaming(t *testing.T) {
	h := newHarness(t, func(cfg *config.ChatConfig) { cfg.EnableStreaming = true })

	resp := h.send(t, nil, "", "Tell me about the sauna")

	if resp.HandledBy != models.HandledByAIStream || !resp.Streaming {
		t.Errorf("Expected ai_stream result, got %+v", resp)
	}
	if h.backend.callCount() != 1 {
		t.Errorf("Expected a single backend call, got %d", h.backend.callCount())
	}
}

func TestChatOrchestrator_StreamingErrorKeepsPathTag(t *testing.T) {
	h := newHarness(t, func(cfg *config.ChatConfig) { cfg.EnableStreaming = true })
	h.backend.err = &inference.BackendError{Kind: inference.KindRateLimit, Message: "slow down"}

	resp := h.send(t, nil, "", "Tell me about the sauna")

	if resp.Success || resp.HandledBy != models.HandledByAIStream {
		t.Errorf("Expected failed ai_stream result, got %+v", resp)
	}
	if resp.Streaming {
		t.Error("Expected streaming flag only on delivered answers")
	}
}

func TestChatOrchestrator_EmptyGenerationIsError(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.text = "   "

	resp := h.send(t, nil, "", "Tell me about the sauna")

	if resp.Success || resp.Error != string(inference.KindUnclassified) {
		t.Errorf("Expected unclassified failure, got %+v", resp)
	}
	if messages := h.messages(t, resp.ConversationID); len(messages) != 0 {
		t.Errorf("Expected nothing persisted, got %d", len(messages))
	}
}

func TestChatOrchestrator_ConversationResolution(t *testing.T) {
	h := newHarness(t, nil)
	member := testMember

	first := h.send(t, &member, "", "Tell me about the sauna")
	again := h.send(t, &member, first.ConversationID, "And the pool?")
	if again.ConversationID != first.ConversationID {
		t.Errorf("Expected conversation %s to be resumed, got %s", first.ConversationID, again.ConversationID)
	}

	unknown := h.send(t, &member, "does-not-exist", "Hello")
	if unknown.ConversationID == "does-not-exist" || unknown.ConversationID == first.ConversationID {
		t.Errorf("Expected a new conversation for an unknown id, got %s", unknown.ConversationID)
	}

	// Another requester cannot resume the member's conversation
	other := h.send(t, nil, first.ConversationID, "Hello")
	if other.ConversationID == first.ConversationID {
		t.Error("Expected anonymous requester to get a new conversation")
	}

	history, err := h.orch.ConversationHistory(context.Background(), first.ConversationID, models.Owner{UserID: member.ID})
	if err != nil {
		t.Fatalf("ConversationHistory failed: %v", err)
	}
	if len(history) != 4 {
		t.Errorf("Expected 4 messages, got %d", len(history))
	}
	if _, err := h.orch.ConversationHistory(context.Background(), first.ConversationID, models.Owner{SessionKey: "sess-1"}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected not found for another owner, got %v", err)
	}
}

func TestChatOrchestrator_PersistenceDisabled(t *testing.T) {
	h := newHarness(t, func(cfg *config.ChatConfig) { cfg.EnablePersistence = false })

	resp := h.send(t, nil, "", "Tell me about the sauna")
	if !resp.Success || resp.ConversationID == "" {
		t.Fatalf("Expected success with a generated conversation id, got %+v", resp)
	}

	resumed := h.send(t, nil, "client-id", "Tell me about the sauna")
	if resumed.ConversationID != "client-id" {
		t.Errorf("Expected caller id to be echoed, got %s", resumed.ConversationID)
	}

	if _, err := h.orch.ConversationHistory(context.Background(), resp.ConversationID, models.Owner{SessionKey: "sess-1"}); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected not found without persistence, got %v", err)
	}
}

func TestChatOrchestrator_EmptyMessage(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.orch.Handle(context.Background(), models.ChatRequest{SessionKey: "s", Message: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
}

func TestChatOrchestrator_ConcurrentSameConversation(t *testing.T) {
	h := newHarness(t, nil)
	member := testMember
	first := h.send(t, &member, "", "Tell me about the sauna")

	const workers = 5
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Handle(context.Background(), models.ChatRequest{
				User:           &member,
				ConversationID: first.ConversationID,
				Message:        "Tell me more",
			})
			if err != nil {
				t.Errorf("Handle failed: %v", err)
			}
		}()
	}
	wg.Wait()

	messages := h.messages(t, first.ConversationID)
	if len(messages) != 2+2*workers {
		t.Fatalf("Expected %d messages, got %d", 2+2*workers, len(messages))
	}
	for i, msg := range messages {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		if msg.Role != want {
			t.Errorf("Message %d: expected %s, got %s (exchanges interleaved)", i, want, msg.Role)
		}
	}
	if n := h.orch.locks.Len(); n != 0 {
		t.Errorf("Expected lock table to drain, got %d entries", n)
	}
}
