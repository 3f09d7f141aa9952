package assistant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"askbridge/internal/conversation"
	"askbridge/internal/models"
	"askbridge/internal/service/ai"
	"askbridge/internal/service/format"
	"askbridge/internal/service/prompt"
)

type stubChat struct {
	result *ai.ChatResult
	err    error

	gotTool     models.Tool
	gotMessages []models.ChatMessage
	gotOpts     ai.ChatOptions
	ctxErr      error
	calls       int
}

func (s *stubChat) Chat(ctx context.Context, tool models.Tool, messages []models.ChatMessage, opts ai.ChatOptions) (*ai.ChatResult, error) {
	s.calls++
	s.gotTool = tool
	s.gotMessages = messages
	s.gotOpts = opts
	s.ctxErr = ctx.Err()
	return s.result, s.err
}

// recordingStore logs the order of store calls on top of a real store.
type recordingStore struct {
	*conversation.Store
	calls *[]string
}

func (r recordingStore) GetOrCreate(id string) models.Conversation {
	*r.calls = append(*r.calls, "getOrCreate")
	return r.Store.GetOrCreate(id)
}

func (r recordingStore) Append(id string, msgs ...models.ChatMessage) error {
	*r.calls = append(*r.calls, "append")
	return r.Store.Append(id, msgs...)
}

func (r recordingStore) Trim(id string, max int) error {
	*r.calls = append(*r.calls, "trim")
	return r.Store.Trim(id, max)
}

type recordingBuilders struct {
	inner *prompt.Registry
	calls *[]string
}

func (r recordingBuilders) Resolve(tool models.Tool) (prompt.Builder, error) {
	*r.calls = append(*r.calls, "resolve")
	return r.inner.Resolve(tool)
}

func newTestService(chat ai.ChatResult, opts Options) (*Service, *conversation.Store, *stubChat) {
	store := conversation.NewStore()
	stub := &stubChat{result: &chat}
	svc := NewService(store, prompt.NewRegistry(), stub, format.NewStructured(), opts, zerolog.Nop())
	return svc, store, stub
}

func TestAskEndToEnd(t *testing.T) {
	answer := "レイアウトを見直すべきです。余白が狭いです。次に配色を試してください。"
	svc, store, chat := newTestService(ai.ChatResult{Content: answer, Raw: map[string]any{"source": "codex-cli"}}, Options{})

	res, err := svc.Ask(context.Background(), models.AskRequest{
		Tool:      models.ToolCodex,
		Model:     "gpt-5-codex",
		UserInput: "改善ポイントを教えて",
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.ConversationID == "" {
		t.Fatalf("expected generated conversation id")
	}
	if chat.gotTool != models.ToolCodex {
		t.Fatalf("unexpected tool %q", chat.gotTool)
	}
	if chat.gotOpts.Timeout != 0 {
		t.Fatalf("expected default timeout, got %v", chat.gotOpts.Timeout)
	}

	formatter, ok := res.Raw["formatter"].(map[string]any)
	if !ok {
		t.Fatalf("missing formatter diagnostics: %#v", res.Raw)
	}
	if res.Raw["source"] != "codex-cli" {
		t.Fatalf("backend raw not preserved: %#v", res.Raw)
	}
	improvements := formatter["improvements"].([]format.Improvement)
	wantImprovement := format.Improvement{Point: "レイアウトを見直すべきです。", Rationale: "余白が狭いです。"}
	if improvements[0] != wantImprovement {
		t.Fatalf("unexpected improvement %#v", improvements[0])
	}
	actions := formatter["nextActions"].([]string)
	if actions[0] != "次に配色を試してください。" {
		t.Fatalf("unexpected next actions %v", actions)
	}
	if formatter["originalContent"] != answer {
		t.Fatalf("original content not recorded")
	}
	if !strings.HasPrefix(res.Content, "✅ 要約\n") {
		t.Fatalf("content is not the formatted rendering: %q", res.Content)
	}

	conv := store.GetOrCreate(res.ConversationID)
	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "改善ポイントを教えて"},
		{Role: models.RoleAssistant, Content: answer},
	}
	if !reflect.DeepEqual(conv.History, want) {
		t.Fatalf("unexpected history %#v", conv.History)
	}
}

func TestAskCallOrder(t *testing.T) {
	var calls []string
	stub := &stubChat{result: &ai.ChatResult{Content: "ok."}}
	store := recordingStore{Store: conversation.NewStore(), calls: &calls}
	builders := recordingBuilders{inner: prompt.NewRegistry(), calls: &calls}
	svc := NewService(store, builders, stub, format.NewStructured(), Options{}, zerolog.Nop())

	if _, err := svc.Ask(context.Background(), models.AskRequest{Tool: models.ToolClaude, Model: "sonnet", UserInput: "q"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	want := []string{"getOrCreate", "resolve", "append", "trim"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("call order = %v, want %v", calls, want)
	}
}

func TestAskBuildsPromptFromHistoryAndContext(t *testing.T) {
	svc, store, chat := newTestService(ai.ChatResult{Content: "two."}, Options{DefaultTimeout: time.Minute})
	conv := store.GetOrCreate("conv-1")
	if err := store.Append(conv.ID,
		models.ChatMessage{Role: models.RoleUser, Content: "one"},
		models.ChatMessage{Role: models.RoleAssistant, Content: "one."},
	); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	timeoutMs := float64(1500)
	long := strings.Repeat("枠", 130)
	res, err := svc.Ask(context.Background(), models.AskRequest{
		Tool:           models.ToolCodex,
		Model:          "m",
		UserInput:      "two?",
		DesignContext:  "  " + long + "  ",
		ConversationID: " conv-1 ",
		Options:        &models.AskOptions{TimeoutMs: &timeoutMs},
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.ConversationID != "conv-1" {
		t.Fatalf("conversation id = %q", res.ConversationID)
	}
	if chat.gotOpts.Timeout != 1500*time.Millisecond {
		t.Fatalf("timeout = %v", chat.gotOpts.Timeout)
	}

	msgs := chat.gotMessages
	if len(msgs) != 5 {
		t.Fatalf("expected 5 messages, got %d: %#v", len(msgs), msgs)
	}
	if msgs[1].Role != models.RoleSystem || msgs[1].Content != prompt.DesignContextLabel+"\n"+long {
		t.Fatalf("design context message = %#v", msgs[1])
	}
	if msgs[2].Content != "one" || msgs[3].Content != "one." {
		t.Fatalf("history not forwarded in order: %#v", msgs)
	}
	if msgs[4] != (models.ChatMessage{Role: models.RoleUser, Content: "two?"}) {
		t.Fatalf("user message = %#v", msgs[4])
	}

	note := res.Raw["formatter"].(map[string]any)["designContextNote"].(string)
	if note != strings.Repeat("枠", 120)+"…" {
		t.Fatalf("design context note = %q", note)
	}
	if got := len(store.GetOrCreate("conv-1").History); got != 4 {
		t.Fatalf("history length = %d", got)
	}
}

func TestAskUsesDefaultTimeout(t *testing.T) {
	svc, _, chat := newTestService(ai.ChatResult{Content: "ok"}, Options{DefaultTimeout: 42 * time.Second})
	if _, err := svc.Ask(context.Background(), models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: "q"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if chat.gotOpts.Timeout != 42*time.Second {
		t.Fatalf("timeout = %v", chat.gotOpts.Timeout)
	}
}

func TestAskTrimsHistory(t *testing.T) {
	svc, store, _ := newTestService(ai.ChatResult{Content: "a"}, Options{MaxHistory: 3})
	var id string
	for i := 0; i < 3; i++ {
		res, err := svc.Ask(context.Background(), models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: "q", ConversationID: id})
		if err != nil {
			t.Fatalf("ask %d: %v", i, err)
		}
		id = res.ConversationID
	}
	history := store.GetOrCreate(id).History
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Role != models.RoleAssistant {
		t.Fatalf("oldest messages should be dropped first: %#v", history)
	}
}

func TestAskChatFailureLeavesHistoryUntouched(t *testing.T) {
	store := conversation.NewStore()
	boom := &models.UnknownConversationError{ID: "x"}
	chat := &stubChat{err: boom}
	svc := NewService(store, prompt.NewRegistry(), chat, format.NewStructured(), Options{}, zerolog.Nop())

	_, err := svc.Ask(context.Background(), models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: "q", ConversationID: "c"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected chat error, got %v", err)
	}
	if got := len(store.GetOrCreate("c").History); got != 0 {
		t.Fatalf("history should be empty, got %d", got)
	}
}

func TestAskValidatesBeforeSideEffects(t *testing.T) {
	tests := []struct {
		name string
		req  models.AskRequest
		want error
	}{
		{"unsupported tool", models.AskRequest{Tool: "gemini", Model: "m", UserInput: "q"}, models.ErrUnsupportedTool},
		{"missing model", models.AskRequest{Tool: models.ToolCodex, UserInput: "q"}, models.ErrInvalidRequest},
		{"blank input", models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: " \n"}, models.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, chat := newTestService(ai.ChatResult{Content: "ok"}, Options{})
			_, err := svc.Ask(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if store.Len() != 0 || chat.calls != 0 {
				t.Fatalf("side effects before validation: len=%d calls=%d", store.Len(), chat.calls)
			}
		})
	}
}

func TestAskIgnoresCallerCancellation(t *testing.T) {
	svc, _, chat := newTestService(ai.ChatResult{Content: "ok"}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Ask(ctx, models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: "q"}); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if chat.ctxErr != nil {
		t.Fatalf("backend context was cancelled: %v", chat.ctxErr)
	}
}

// blockingChat waits until its context ends and reports why.
type blockingChat struct {
	started chan struct{}
}

func (b *blockingChat) Chat(ctx context.Context, _ models.Tool, _ []models.ChatMessage, _ ai.ChatOptions) (*ai.ChatResult, error) {
	close(b.started)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, errors.New("backend call outlived the service lifetime")
	}
}

func TestAskStopsBackendWhenLifetimeEnds(t *testing.T) {
	lifetime, stop := context.WithCancel(context.Background())
	defer stop()
	chat := &blockingChat{started: make(chan struct{})}
	store := conversation.NewStore()
	svc := NewService(store, prompt.NewRegistry(), chat, format.NewStructured(), Options{Lifetime: lifetime}, zerolog.Nop())

	go func() {
		<-chat.started
		stop()
	}()
	_, err := svc.Ask(context.Background(), models.AskRequest{Tool: models.ToolCodex, Model: "m", UserInput: "q", ConversationID: "c"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := len(store.GetOrCreate("c").History); got != 0 {
		t.Fatalf("history length = %d, want 0", got)
	}
}
