package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/conduit/core/pace"
	"github.com/leofalp/conduit/core/prompt"
	"github.com/leofalp/conduit/core/tokenizer"
	"github.com/leofalp/conduit/internal/utils"
	"github.com/leofalp/conduit/providers/llm"
)

// cancellationMarker is persisted as the assistant content when a turn is
// cancelled before any content arrived.
const cancellationMarker = "[generation stopped]"

// defaultReserveTokens is the response budget kept out of the context
// window when the request sets no explicit token cap.
const defaultReserveTokens = 4096

// Dependencies are the collaborators an Orchestrator is constructed with.
type Dependencies struct {
	Conversations ConversationStore
	Files         FileStore
	Personas      PersonaStore
	Prompts       PromptStore
	Settings      SettingsResolver
	Notifier      NotificationSink
	Clients       ClientFactory
	Pricing       PricingLookup
	Tokenizer     *tokenizer.Service
}

// Orchestrator coordinates a single chat turn: request enrichment, provider
// dispatch, stream consumption with pacing, persistence, and the unified
// event sequence. It is safe for concurrent use; per-turn state lives on
// the stack of each Run call.
type Orchestrator struct {
	deps   Dependencies
	pacing pace.Config
	logger *slog.Logger

	providerErrors atomic.Int64
}

// NewOrchestrator creates an Orchestrator with default pacing and logging.
func NewOrchestrator(deps Dependencies) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: slog.Default(),
	}
}

// WithPacing sets the process-wide pacing defaults.
func (o *Orchestrator) WithPacing(config pace.Config) *Orchestrator {
	o.pacing = config
	return o
}

// WithLogger sets the structured logger used for turn diagnostics.
func (o *Orchestrator) WithLogger(logger *slog.Logger) *Orchestrator {
	if logger != nil {
		o.logger = logger
	}
	return o
}

// ProviderErrorCount reports how many turns have ended on the error path
// since process start.
func (o *Orchestrator) ProviderErrorCount() int64 {
	return o.providerErrors.Load()
}

// preparedTurn is the outcome of the synchronous enrichment and validation
// phase, holding everything the streaming phase needs.
type preparedTurn struct {
	request      TurnRequest
	provider     llm.ProviderType
	model        string
	client       llm.StreamClient
	conversation *Conversation // nil for temporary or brand-new conversations
	messageText  string
	systemPrompt string
	sampling     *llm.SamplingConfig
	attachments  []llm.Attachment
	notes        []string // attachment failure annotations for the user message
}

// Run executes one chat turn. Validation and enrichment failures are
// returned synchronously (as *ValidationError for client faults) before
// any event is produced; afterwards every outcome, including provider
// failure and cancellation, is reported through the event sequence, which
// always terminates with exactly one final_message event.
func (o *Orchestrator) Run(ctx context.Context, request TurnRequest) (iter.Seq[Event], error) {
	turn, err := o.prepare(ctx, request)
	if err != nil {
		return nil, err
	}

	return func(yield func(Event) bool) {
		o.stream(ctx, turn, yield)
	}, nil
}

// prepare enriches and validates the request: persona and prompt
// resolution, provider settings, model fallback, attachment decoding, and
// conversation loading. No provider network I/O happens here.
func (o *Orchestrator) prepare(ctx context.Context, request TurnRequest) (*preparedTurn, error) {
	if strings.TrimSpace(request.Message) == "" {
		return nil, validationErrorf("message is required")
	}
	if request.Provider == "" {
		return nil, validationErrorf("provider is required")
	}
	provider, err := llm.ParseProviderType(request.Provider)
	if err != nil {
		return nil, validationErrorf("invalid provider: %v", err)
	}

	turn := &preparedTurn{
		request:      request,
		provider:     provider,
		messageText:  request.Message,
		systemPrompt: request.SystemPrompt,
		sampling:     request.sampling(),
	}

	// Persona enrichment: stored defaults fill parameter gaps (the request
	// always wins) and persona instructions lead the system prompt.
	if request.PersonaID != "" {
		persona, err := o.deps.Personas.Persona(ctx, request.PersonaID)
		if err != nil {
			return nil, validationErrorf("persona %q not found: %v", request.PersonaID, err)
		}
		turn.sampling = prompt.MergeSampling(turn.sampling, persona.Defaults)
		turn.systemPrompt = prompt.MergeSystemPrompt(persona.Instructions, turn.systemPrompt)
	}

	// Prompt-template enrichment: the rendered template replaces the
	// message text sent upstream.
	if request.PromptID != "" {
		template, err := o.deps.Prompts.Template(ctx, request.PromptID)
		if err != nil {
			return nil, validationErrorf("prompt %q not found: %v", request.PromptID, err)
		}

		variables := make(map[string]string, len(request.PromptVariables)+1)
		for name, value := range request.PromptVariables {
			variables[name] = value
		}
		if _, ok := variables[prompt.UserInputVariable]; !ok {
			variables[prompt.UserInputVariable] = request.Message
		}

		rendered, err := prompt.Render(*template, variables)
		if err != nil {
			return nil, validationErrorf("prompt rendering failed: %v", err)
		}
		turn.messageText = rendered
	}

	settings, err := o.deps.Settings.Resolve(ctx, request.UserID, provider)
	if err != nil {
		return nil, fmt.Errorf("resolving provider settings: %w", err)
	}

	turn.model = request.Model
	if turn.model == "" {
		turn.model = settings.DefaultModel
	}
	if turn.model == "" {
		return nil, validationErrorf("no model specified and no default model configured for provider %s", provider)
	}

	// Ollama is self-hosted and keyless; every other provider requires a key.
	if provider != llm.ProviderOllama && settings.APIKey == "" {
		return nil, validationErrorf("no API key configured for provider %s", provider)
	}

	turn.client, err = o.deps.Clients.Client(provider, llm.ClientSettings{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
	})
	if err != nil {
		return nil, validationErrorf("%v", err)
	}

	// Decode inline attachments. A bad payload annotates the persisted
	// message instead of failing the turn.
	for _, upload := range request.Attachments {
		data, err := base64.StdEncoding.DecodeString(upload.Base64Data)
		if err != nil {
			turn.notes = append(turn.notes,
				fmt.Sprintf("[attachment %q could not be decoded: %v]", upload.FileName, err))
			continue
		}
		turn.attachments = append(turn.attachments, llm.Attachment{
			FileName:    upload.FileName,
			ContentType: upload.ContentType,
			Data:        data,
		})
	}

	// Existing conversations load here so an unknown id fails the request
	// synchronously instead of mid-stream.
	if !request.Temporary && request.ConversationID != nil {
		conversation, err := o.deps.Conversations.Conversation(ctx, *request.ConversationID)
		if err != nil {
			if errors.Is(err, ErrConversationNotFound) {
				return nil, validationErrorf("conversation %d not found", *request.ConversationID)
			}
			return nil, fmt.Errorf("loading conversation %d: %w", *request.ConversationID, err)
		}
		turn.conversation = conversation
	}

	return turn, nil
}

// stream drives the turn through dispatch, provider streaming, and
// finalization, yielding the unified event sequence.
func (o *Orchestrator) stream(ctx context.Context, turn *preparedTurn, yield func(Event) bool) {
	timer := utils.NewTimer()
	request := turn.request

	userMessage := &Message{
		ID:        uuid.New(),
		Role:      llm.RoleUser,
		Content:   turn.messageText,
		Provider:  turn.provider,
		Model:     turn.model,
		CreatedAt: time.Now().UTC(),
	}

	// Dispatch phase: persist the conversation and user message for
	// non-temporary turns. A brand-new conversation is persisted first so
	// its id can be announced before any content event.
	if !request.Temporary {
		if turn.conversation == nil {
			turn.conversation = &Conversation{
				OwnerID:   request.UserID,
				Title:     deriveTitle(request.Message),
				Provider:  turn.provider,
				CreatedAt: time.Now().UTC(),
			}
			if err := o.deps.Conversations.CreateConversation(ctx, turn.conversation); err != nil {
				o.finishErrored(ctx, turn, nil, yield, "", nil,
					fmt.Errorf("creating conversation: %w", err), CodeGenerationFailed)
				return
			}
			if !yield(conversationIDEvent(turn.conversation.ID)) {
				return
			}
		}

		notes := append([]string(nil), turn.notes...)
		notes = append(notes, o.persistAttachments(ctx, turn)...)
		if len(notes) > 0 {
			userMessage.Content += "\n\n" + strings.Join(notes, "\n")
		}

		userMessage.ConversationID = turn.conversation.ID
		if err := o.deps.Conversations.AppendMessage(ctx, turn.conversation.ID, userMessage); err != nil {
			o.finishErrored(ctx, turn, userMessage, yield, "", nil,
				fmt.Errorf("persisting user message: %w", err), CodeGenerationFailed)
			return
		}
	}

	// Streaming phase.
	stream, err := turn.client.Stream(ctx, o.buildProviderRequest(turn))
	if err != nil {
		o.finishErrored(ctx, turn, userMessage, yield, "", nil, err, CodeGenerationFailed)
		return
	}

	source := stream.Iter()
	if request.Stream {
		source = pace.Stream(ctx, source, o.paceConfig(request))
	}

	var content strings.Builder
	var images []MessageImage
	seen := make(map[string]bool)
	var streamErr error

	for chunk, err := range source {
		if err != nil {
			streamErr = err
			break
		}

		if chunk.Text != "" {
			content.WriteString(chunk.Text)
			if !yield(contentEvent(chunk.Text)) {
				// The consumer stopped iterating. Its yield must not be
				// called again, so persist the partial turn with a discard
				// yield instead of returning bare.
				o.finishCancelled(ctx, turn, userMessage, discardEvents, content.String(), images)
				return
			}
		}

		// Images are emitted once per URL; in non-streaming mode they are
		// only attached to the final message.
		for _, image := range chunk.Images {
			if image.URL == "" || seen[image.URL] {
				continue
			}
			seen[image.URL] = true
			index := len(images)
			images = append(images, MessageImage{URL: image.URL})
			if request.Stream {
				if !yield(imageEvent(image.URL, index)) {
					o.finishCancelled(ctx, turn, userMessage, discardEvents, content.String(), images)
					return
				}
			}
		}
	}

	cancelled := errors.Is(streamErr, context.Canceled) ||
		errors.Is(streamErr, context.DeadlineExceeded) ||
		(streamErr == nil && ctx.Err() != nil)

	timer.Stop()

	switch {
	case cancelled:
		o.finishCancelled(ctx, turn, userMessage, yield, content.String(), images)
	case streamErr != nil:
		o.finishErrored(ctx, turn, userMessage, yield, content.String(), images, streamErr, CodeGenerationFailed)
	case content.Len() == 0 && len(images) == 0:
		// A provider that streams nothing violated its contract; this is
		// reported as a gateway-class failure, not an empty success.
		o.finishErrored(ctx, turn, userMessage, yield, "", nil,
			fmt.Errorf("provider %s returned no content", turn.provider), CodeEmptyCompletion)
	default:
		o.finishComplete(ctx, turn, userMessage, yield, stream, content.String(), images, timer.GetDuration())
	}
}

// buildProviderRequest assembles the normalized provider request from
// history plus the new user message, truncated to the model's context
// window with the response budget reserved.
func (o *Orchestrator) buildProviderRequest(turn *preparedTurn) llm.Request {
	var history []llm.Message
	if turn.conversation != nil {
		for _, message := range turn.conversation.Messages {
			if message.Content == "" || message.FinishReason == FinishError {
				continue
			}
			history = append(history, llm.Message{Role: message.Role, Content: message.Content})
		}
	}
	history = append(history, llm.Message{Role: llm.RoleUser, Content: turn.messageText})

	reserve := defaultReserveTokens
	if turn.sampling != nil && turn.sampling.MaxTokens != nil {
		reserve = *turn.sampling.MaxTokens
	}
	reserve += o.deps.Tokenizer.EstimateTokens(turn.model, turn.systemPrompt)

	return llm.Request{
		Model:        turn.model,
		Messages:     o.deps.Tokenizer.TruncateToWindow(turn.model, history, reserve),
		SystemPrompt: turn.systemPrompt,
		Sampling:     turn.sampling,
		Attachments:  turn.attachments,
	}
}

// paceConfig applies per-request pacing overrides to the process defaults.
func (o *Orchestrator) paceConfig(request TurnRequest) pace.Config {
	config := o.pacing
	if request.PaceChunkSize > 0 {
		config.TargetChunkSize = request.PaceChunkSize
	}
	if request.PaceIntervalMs > 0 {
		config.Interval = time.Duration(request.PaceIntervalMs) * time.Millisecond
	}
	return config
}

// persistAttachments saves the decoded attachments to the file store,
// returning inline annotations for any failures. Best-effort: a failed
// save never aborts the turn.
func (o *Orchestrator) persistAttachments(ctx context.Context, turn *preparedTurn) []string {
	var notes []string
	for _, attachment := range turn.attachments {
		_, err := o.deps.Files.Save(ctx, attachment.FileName, attachment.ContentType, attachment.Data)
		if err != nil {
			o.logger.Warn("attachment persistence failed",
				"file", attachment.FileName, "error", err.Error())
			notes = append(notes,
				fmt.Sprintf("[attachment %q could not be stored: %v]", attachment.FileName, err))
		}
	}
	return notes
}

// assistantMessage builds the turn's assistant message shell. The parent is
// always the triggering user message.
func (o *Orchestrator) assistantMessage(turn *preparedTurn, userMessage *Message, content string, finish FinishReason, images []MessageImage) *Message {
	message := &Message{
		ID:           uuid.New(),
		ParentID:     utils.Ptr(userMessage.ID),
		Role:         llm.RoleAssistant,
		Content:      content,
		Provider:     turn.provider,
		Model:        turn.model,
		FinishReason: finish,
		Images:       images,
		CreatedAt:    time.Now().UTC(),
	}
	if turn.conversation != nil {
		message.ConversationID = turn.conversation.ID
	}
	return message
}

// persistAssistantMessage appends the assistant message for non-temporary
// turns. Persistence runs on a cancellation-free context so cancelled
// turns still keep their partial content.
func (o *Orchestrator) persistAssistantMessage(ctx context.Context, turn *preparedTurn, message *Message) {
	if turn.request.Temporary || turn.conversation == nil {
		return
	}
	persistCtx := context.WithoutCancel(ctx)
	if err := o.deps.Conversations.AppendMessage(persistCtx, turn.conversation.ID, message); err != nil {
		o.logger.Error("persisting assistant message failed",
			"conversation", turn.conversation.ID, "error", err.Error())
	}
}

// finishComplete handles the normal-completion path: usage settlement,
// image persistence, final message, metric, notification.
func (o *Orchestrator) finishComplete(ctx context.Context, turn *preparedTurn, userMessage *Message, yield func(Event) bool, stream *llm.ChunkStream, content string, images []MessageImage, elapsed time.Duration) {
	usage := stream.Usage().Await(ctx)

	if !turn.request.Temporary {
		o.persistImages(context.WithoutCancel(ctx), images)
	}

	message := o.assistantMessage(turn, userMessage, content, FinishComplete, images)
	message.TokenCount = usage.CompletionTokens
	o.persistAssistantMessage(ctx, turn, message)

	if !yield(finalMessageEvent(message)) {
		return
	}

	if !turn.request.Temporary {
		metric := &UsageMetric{
			ConversationID:   message.ConversationID,
			MessageID:        message.ID,
			UserID:           turn.request.UserID,
			Provider:         turn.provider,
			Model:            turn.model,
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			Cost:             o.deps.Pricing.TurnCost(ctx, turn.provider, turn.model, usage),
			Estimated:        usage.Estimated,
			DurationMs:       elapsed.Milliseconds(),
			CreatedAt:        time.Now().UTC(),
		}
		if err := o.deps.Conversations.SaveMetric(context.WithoutCancel(ctx), metric); err != nil {
			o.logger.Error("persisting usage metric failed", "error", err.Error())
		}
		if !yield(metricsEvent(metric)) {
			return
		}
	}

	o.notify(ctx, turn, message)
}

// discardEvents is the yield used when a consumer has stopped iterating.
// Calling the real yield again would panic, but the turn must still be
// settled and persisted.
func discardEvents(Event) bool { return false }

// finishCancelled handles client-initiated cancellation: partial content is
// kept, a cancellation marker stands in when nothing arrived, and no error
// event is emitted.
func (o *Orchestrator) finishCancelled(ctx context.Context, turn *preparedTurn, userMessage *Message, yield func(Event) bool, content string, images []MessageImage) {
	if content == "" && len(images) == 0 {
		content = cancellationMarker
	}

	if !turn.request.Temporary {
		o.persistImages(context.WithoutCancel(ctx), images)
	}

	message := o.assistantMessage(turn, userMessage, content, FinishCancelled, images)
	o.persistAssistantMessage(ctx, turn, message)
	yield(finalMessageEvent(message))
}

// finishErrored handles provider failures and the empty-completion
// contract violation: an error event followed by an error-flagged final
// message.
func (o *Orchestrator) finishErrored(ctx context.Context, turn *preparedTurn, userMessage *Message, yield func(Event) bool, content string, images []MessageImage, cause error, code string) {
	o.providerErrors.Add(1)
	o.logger.Error("chat turn failed",
		"provider", turn.provider, "model", turn.model, "code", code, "error", cause.Error())

	if !yield(errorEvent(code, "The provider failed to generate a response.", cause.Error(), true)) {
		return
	}

	body := content
	if body != "" {
		body += "\n\n"
	}
	body += fmt.Sprintf("Generation failed: %v", cause)

	if userMessage == nil {
		userMessage = &Message{ID: uuid.New(), Role: llm.RoleUser, CreatedAt: time.Now().UTC()}
	}

	message := o.assistantMessage(turn, userMessage, body, FinishError, images)
	message.Error = cause.Error()
	o.persistAssistantMessage(ctx, turn, message)
	yield(finalMessageEvent(message))
}

// persistImages saves data-URL images to the file store in place,
// rewriting each entry to its stored reference. Provider-hosted URLs are
// kept as external references and not downloaded. Best-effort: failures
// are logged and the original URL retained.
func (o *Orchestrator) persistImages(ctx context.Context, images []MessageImage) {
	for index := range images {
		url := images[index].URL
		if !strings.HasPrefix(url, "data:") {
			continue
		}

		mimeType, data, err := decodeDataURL(url)
		if err != nil {
			o.logger.Warn("decoding generated image failed", "error", err.Error())
			continue
		}

		fileName := fmt.Sprintf("generated-%s%s", uuid.NewString(), extensionForMIME(mimeType))
		stored, err := o.deps.Files.Save(ctx, fileName, mimeType, data)
		if err != nil {
			o.logger.Warn("persisting generated image failed", "error", err.Error())
			continue
		}

		images[index] = MessageImage{FileID: stored.ID, URL: stored.URL}
	}
}

// notify fires the turn-completion notification. Failures are logged and
// swallowed; delivery never affects the turn outcome.
func (o *Orchestrator) notify(ctx context.Context, turn *preparedTurn, message *Message) {
	if o.deps.Notifier == nil {
		return
	}

	notification := Notification{
		Kind:           "chat_completed",
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
	}
	if err := o.deps.Notifier.Notify(context.WithoutCancel(ctx), turn.request.UserID, notification); err != nil {
		o.logger.Warn("completion notification failed",
			"user", turn.request.UserID, "error", err.Error())
	}
}

// decodeDataURL splits a data: URL into its MIME type and decoded payload.
func decodeDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL: missing payload separator")
	}

	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding data URL payload: %w", err)
	}

	return mimeType, data, nil
}

// extensionForMIME picks a file extension for the common image MIME types.
func extensionForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
