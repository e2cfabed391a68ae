package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitbot/internal/config"
	"fitbot/internal/inference"
	"fitbot/internal/logging"
	"fitbot/internal/models"
)

// ErrEmptyMessage is returned for a chat request without text
var ErrEmptyMessage = errors.New("message is required")

// FAQMatcher returns a canned answer for messages close to a known question, or "" with the best score
type FAQMatcher interface {
	Match(ctx context.Context, message string) (string, float64, error)
}

// PromptBuilder assembles the system prompt for the generative path
type PromptBuilder interface {
	Build(ctx context.Context, intent models.Intent, user *models.User, message string) string
}

// ChatDeps are the collaborators of a ChatOrchestrator. Store, FAQ, Tools, Audit and Metrics are optional.
type ChatDeps struct {
	FAQ        FAQMatcher
	Classifier *IntentClassifier
	Tools      ToolRouter
	Prompts    PromptBuilder
	Store      ConversationStore
	Backend    inference.Backend
	Audit      AuditLogger
	Metrics    *Metrics
}

// ChatOrchestrator routes one chat message through the FAQ, tool and generative paths
type ChatOrchestrator struct {
	cfg        config.ChatConfig
	faq        FAQMatcher
	classifier *IntentClassifier
	tools      ToolRouter
	prompts    PromptBuilder
	store      ConversationStore
	backend    inference.Backend
	audit      AuditLogger
	metrics    *Metrics
	locks      *ConversationLocks
}

// NewChatOrchestrator creates an orchestrator with a fixed chat configuration
func NewChatOrchestrator(cfg config.ChatConfig, deps ChatDeps) *ChatOrchestrator {
	if deps.Classifier == nil {
		deps.Classifier = NewIntentClassifier(DefaultIntentRules)
	}
	if !cfg.EnablePersistence {
		deps.Store = nil
	}

	return &ChatOrchestrator{
		cfg:        cfg,
		faq:        deps.FAQ,
		classifier: deps.Classifier,
		tools:      deps.Tools,
		prompts:    deps.Prompts,
		store:      deps.Store,
		backend:    deps.Backend,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		locks:      NewConversationLocks(),
	}
}

// Backend returns the generative backend
func (o *ChatOrchestrator) Backend() inference.Backend {
	return o.backend
}

// chatTurn is the state of one request as it moves through the paths
type chatTurn struct {
	req     models.ChatRequest
	conv    *models.Conversation
	convID  string
	created bool
	history []models.Turn
	start   time.Time
	logger  *slog.Logger
}

// Handle processes one chat message. The returned error is limited to invalid
// input and conversation store failures; backend failures yield an error result.
func (o *ChatOrchestrator) Handle(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	turn := &chatTurn{req: req, start: time.Now()}

	if err := o.resolveConversation(ctx, turn); err != nil {
		return nil, err
	}

	unlock := o.locks.Lock(turn.convID)
	defer unlock()

	userID := ""
	if req.User.IsAuthenticated() {
		userID = req.User.ID
	}
	turn.logger = logging.WithRequest(turn.convID, userID)

	if err := o.loadHistory(ctx, turn); err != nil {
		return nil, err
	}

	resp := o.route(ctx, turn)
	o.metrics.RecordChat(resp)
	return resp, nil
}

func (o *ChatOrchestrator) route(ctx context.Context, turn *chatTurn) *models.ChatResponse {
	msg := turn.req.Message
	user := turn.req.User

	// FAQ fast path, before classification
	if o.faq != nil {
		answer, score, err := o.faq.Match(ctx, msg)
		if err != nil {
			log.Printf("⚠️  [CHAT] FAQ match failed, continuing: %v", err)
		} else if answer != "" {
			turn.logger.Info("FAQ fast path hit", "score", score)
			return o.answer(ctx, turn, models.ResultFAQAnswer, models.HandledByFAQ, models.IntentFAQ, answer, "")
		}
	}

	intent, confidence := o.classifier.Classify(msg)
	turn.logger = logging.WithIntent(turn.logger, string(intent), confidence)
	turn.logger.Debug("Intent classified")

	if intent.UsesTools() && o.tools != nil {
		answer, err := o.tools.Route(ctx, user, msg)
		if err != nil {
			log.Printf("⚠️  [CHAT] Tool routing failed, falling back to AI: %v", err)
		} else if answer != "" {
			return o.answer(ctx, turn, models.ResultToolAnswer, models.HandledByTools, intent, answer, "")
		}
	}

	return o.generate(ctx, turn, intent)
}

func (o *ChatOrchestrator) generate(ctx context.Context, turn *chatTurn, intent models.Intent) *models.ChatResponse {
	if o.backend == nil || !o.backend.Configured() {
		return o.fail(ctx, turn, intent, inference.ErrNotConfigured)
	}

	system := ""
	if o.prompts != nil {
		system = o.prompts.Build(ctx, intent, turn.req.User, turn.req.Message)
	}

	turns := make([]models.Turn, 0, 4)
	if system != "" {
		turns = append(turns, models.Turn{Role: models.RoleSystem, Content: system})
	}
	turns = append(turns, SelectHistory(turn.history, intent, o.cfg.ContextWindow)...)
	turns = append(turns, models.Turn{Role: models.RoleUser, Content: turn.req.Message})

	genCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	result, err := o.backend.Generate(genCtx, inference.Request{
		Prompt:       inference.FormatPrompt(turns),
		Temperature:  o.cfg.Temperature,
		MaxNewTokens: o.cfg.MaxTokens,
		DoSample:     o.cfg.DoSample,
		TopP:         o.cfg.TopP,
	})
	if err != nil {
		return o.fail(ctx, turn, intent, err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return o.fail(ctx, turn, intent, &inference.BackendError{
			Kind:    inference.KindUnclassified,
			Message: "backend returned an empty generation",
		})
	}

	model := result.Model
	if model == "" {
		model = o.backend.Model()
	}

	resp := o.answer(ctx, turn, models.ResultAIAnswer, o.aiPath(), intent, text, model)
	resp.Streaming = o.cfg.EnableStreaming
	return resp
}

// aiPath is the handled_by tag of the generative path, on success and failure alike
func (o *ChatOrchestrator) aiPath() models.HandledBy {
	if o.cfg.EnableStreaming {
		return models.HandledByAIStream
	}
	return models.HandledByAI
}

// answer persists the exchange, records usage and builds a successful result
func (o *ChatOrchestrator) answer(ctx context.Context, turn *chatTurn, kind models.ResultKind, handledBy models.HandledBy, intent models.Intent, text, model string) *models.ChatResponse {
	elapsed := time.Since(turn.start)
	latency := elapsed.Milliseconds()

	o.persist(ctx, turn, text, latency)

	if turn.req.User.IsStaffOrAdmin() && o.audit != nil {
		o.audit.LogUsage(ctx, turn.req.User, turn.req.Message, intent, elapsed, len(text))
	}

	turn.logger.Info("Chat answered", "handled_by", handledBy, "response_time_ms", latency)

	return &models.ChatResponse{
		Kind:           kind,
		Success:        true,
		Response:       text,
		ConversationID: turn.convID,
		Intent:         intent,
		HandledBy:      handledBy,
		Model:          model,
		ResponseTimeMs: latency,
	}
}

// fail maps a backend failure to a user-safe result. Nothing is persisted.
func (o *ChatOrchestrator) fail(ctx context.Context, turn *chatTurn, intent models.Intent, err error) *models.ChatResponse {
	backendErr := inference.Classify(err)
	log.Printf("❌ [BACKEND] Generation failed (%s): %v", backendErr.Kind, err)
	o.metrics.RecordBackendError(string(backendErr.Kind))

	if turn.req.User.IsAuthenticated() && o.audit != nil {
		o.audit.LogError(ctx, turn.req.User, turn.req.Message, backendErr)
	}

	return &models.ChatResponse{
		Kind:           models.ResultError,
		Success:        false,
		Response:       inference.UserSafeMessage(backendErr.Kind),
		ConversationID: turn.convID,
		Intent:         intent,
		HandledBy:      o.aiPath(),
		ResponseTimeMs: time.Since(turn.start).Milliseconds(),
		Error:          string(backendErr.Kind),
	}
}

// resolveConversation loads the requested conversation or starts a new one.
// An id that does not resolve for this owner starts a new conversation.
func (o *ChatOrchestrator) resolveConversation(ctx context.Context, turn *chatTurn) error {
	if o.store == nil {
		turn.convID = turn.req.ConversationID
		if turn.convID == "" {
			turn.convID = uuid.New().String()
		}
		return nil
	}

	owner := models.OwnerFor(turn.req.User, turn.req.SessionKey)

	if turn.req.ConversationID != "" {
		conv, err := o.store.Find(ctx, turn.req.ConversationID, owner)
		switch {
		case err == nil:
			turn.conv = conv
			turn.convID = conv.ID
			return nil
		case errors.Is(err, ErrConversationNotFound):
			log.Printf("🔍 [CHAT] Conversation %s not found for requester, starting a new one", turn.req.ConversationID)
		default:
			return fmt.Errorf("failed to load conversation: %w", err)
		}
	}

	conv, err := o.store.Create(ctx, owner, o.cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	turn.conv = conv
	turn.convID = conv.ID
	turn.created = true
	return nil
}

// loadHistory re-reads an existing conversation under its lock so a request
// queued behind another sees the turns that request appended.
func (o *ChatOrchestrator) loadHistory(ctx context.Context, turn *chatTurn) error {
	if turn.conv == nil || turn.created {
		return nil
	}
	conv, err := o.store.Find(ctx, turn.conv.ID, models.OwnerFor(turn.req.User, turn.req.SessionKey))
	if err != nil {
		return fmt.Errorf("failed to reload conversation: %w", err)
	}
	turn.conv = conv
	if conv.MessageCount == 0 {
		return nil
	}
	messages, err := o.store.List(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load conversation history: %w", err)
	}
	turn.history = models.ReplayTurns(messages)
	return nil
}

// persist appends the user and assistant messages. Store failures are logged, the answer is still returned.
func (o *ChatOrchestrator) persist(ctx context.Context, turn *chatTurn, answer string, latencyMs int64) {
	turn.history = append(turn.history,
		models.Turn{Role: models.RoleUser, Content: turn.req.Message},
		models.Turn{Role: models.RoleAssistant, Content: answer},
	)

	if o.store == nil || turn.conv == nil {
		return
	}
	if _, err := o.store.Append(ctx, turn.conv, models.RoleUser, turn.req.Message, nil); err != nil {
		log.Printf("⚠️  [CHAT] Failed to persist user message for %s: %v", turn.convID, err)
		return
	}
	if _, err := o.store.Append(ctx, turn.conv, models.RoleAssistant, answer, &latencyMs); err != nil {
		log.Printf("⚠️  [CHAT] Failed to persist assistant message for %s: %v", turn.convID, err)
	}
}

// ConversationHistory returns the non-system messages of a conversation owned by owner
func (o *ChatOrchestrator) ConversationHistory(ctx context.Context, id string, owner models.Owner) ([]models.Message, error) {
	if o.store == nil {
		return nil, ErrConversationNotFound
	}
	if _, err := o.store.Find(ctx, id, owner); err != nil {
		return nil, err
	}
	messages, err := o.store.List(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]models.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != models.RoleSystem {
			out = append(out, msg)
		}
	}
	return out, nil
}
