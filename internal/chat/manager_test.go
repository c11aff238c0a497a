package chat_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/sage/internal/chat"
	"github.com/flemzord/sage/internal/conversation"
	"github.com/flemzord/sage/internal/conversation/conversationtest"
	"github.com/flemzord/sage/internal/provider"
	"github.com/flemzord/sage/internal/provider/providertest"
)

const suggestionSystem = "You are a helpful assistant that generates question suggestions."

// oracle answers chat turns with reply and suggestion calls with suggestions.
func oracle(reply, suggestions string) func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
	return func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if isSuggestionCall(req) {
			return provider.CompletionResponse{Content: suggestions}, nil
		}
		return provider.CompletionResponse{Content: reply}, nil
	}
}

func isSuggestionCall(req provider.CompletionRequest) bool {
	return len(req.Messages) > 0 && req.Messages[0].Content == suggestionSystem
}

func chatRequests(p *providertest.MockProvider) []provider.CompletionRequest {
	var out []provider.CompletionRequest
	for _, r := range p.Requests() {
		if !isSuggestionCall(r) {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	provider *providertest.MockProvider
	backend  *conversationtest.Backend
	cache    *conversation.Cache
	manager  *chat.Manager
}

func newFixture(t *testing.T, cfg chat.Config) *fixture {
	t.Helper()
	p := &providertest.MockProvider{CompleteFunc: oracle("4", `["Why?","How?"]`)}
	b := conversationtest.NewBackend()
	cache := conversation.NewCache(b, time.Minute, slog.New(slog.DiscardHandler))
	m := chat.NewManager(chat.Deps{
		Provider: p,
		Store:    cache,
		Logger:   slog.New(slog.DiscardHandler),
	}, cfg)
	return &fixture{provider: p, backend: b, cache: cache, manager: m}
}

func TestRespond_NewSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	reply, err := f.manager.Respond(ctx, chat.Request{Message: "What is 2+2?"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Message != "4" {
		t.Errorf("Message = %q, want 4", reply.Message)
	}
	if reply.SessionID == "" {
		t.Fatal("expected a minted session id")
	}
	if len(reply.Suggestions) != 2 {
		t.Errorf("Suggestions = %v", reply.Suggestions)
	}

	h, ok := f.manager.History(ctx, reply.SessionID)
	if !ok {
		t.Fatal("history not stored")
	}
	if len(h.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(h.Messages))
	}
	if h.Messages[0].Role != conversation.RoleUser || h.Messages[0].Content != "What is 2+2?" {
		t.Errorf("first turn = %+v", h.Messages[0])
	}
	if h.Messages[1].Role != conversation.RoleAssistant || h.Messages[1].Content != "4" {
		t.Errorf("second turn = %+v", h.Messages[1])
	}
}

func TestRespond_MintedIDsAreUniqueAndResumable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	first, err := f.manager.Respond(ctx, chat.Request{Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	other, err := f.manager.Respond(ctx, chat.Request{Message: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if first.SessionID == other.SessionID {
		t.Fatalf("two new sessions share id %s", first.SessionID)
	}

	again, err := f.manager.Respond(ctx, chat.Request{Message: "again", SessionID: first.SessionID})
	if err != nil {
		t.Fatal(err)
	}
	if again.SessionID != first.SessionID {
		t.Errorf("SessionID = %s, want %s", again.SessionID, first.SessionID)
	}
	h, _ := f.manager.History(ctx, first.SessionID)
	if len(h.Messages) != 4 {
		t.Errorf("messages = %d, want 4", len(h.Messages))
	}
}

func TestRespond_SessionContinuity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()
	f.provider.CompleteFunc = oracle("d", `[]`)

	seed := conversation.NewHistory("S", nil, time.Now())
	seed.Append(
		conversation.Turn{Role: conversation.RoleUser, Content: "a"},
		conversation.Turn{Role: conversation.RoleAssistant, Content: "b"},
	)
	f.cache.Save(ctx, seed)

	if _, err := f.manager.Respond(ctx, chat.Request{Message: "c", SessionID: "S"}); err != nil {
		t.Fatal(err)
	}

	h, _ := f.manager.History(ctx, "S")
	var got []string
	for _, m := range h.Messages {
		got = append(got, m.Content)
	}
	if strings.Join(got, ",") != "a,b,c,d" {
		t.Errorf("transcript = %v, want [a b c d]", got)
	}
}

func TestRespond_WindowKeepsMostRecentTurns(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{MaxConversationLength: 4, SystemPrompt: "persona"})
	ctx := context.Background()

	seed := conversation.NewHistory("S", nil, time.Now())
	for i := range 10 {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		seed.Append(conversation.Turn{Role: role, Content: fmt.Sprintf("t%d", i)})
	}
	f.cache.Save(ctx, seed)

	if _, err := f.manager.Respond(ctx, chat.Request{Message: "new", SessionID: "S"}); err != nil {
		t.Fatal(err)
	}

	reqs := chatRequests(f.provider)
	if len(reqs) != 1 {
		t.Fatalf("chat calls = %d, want 1", len(reqs))
	}
	msgs := reqs[0].Messages
	want := []string{"persona", "t6", "t7", "t8", "t9", "new"}
	if len(msgs) != len(want) {
		t.Fatalf("window = %d messages, want %d", len(msgs), len(want))
	}
	for i, w := range want {
		if msgs[i].Content != w {
			t.Errorf("window[%d] = %q, want %q", i, msgs[i].Content, w)
		}
	}
	if msgs[0].Role != provider.MessageRoleSystem || msgs[5].Role != provider.MessageRoleUser {
		t.Errorf("roles = %s ... %s", msgs[0].Role, msgs[5].Role)
	}
	if msgs[2].Role != provider.MessageRoleAssistant {
		t.Errorf("t7 role = %s, want assistant", msgs[2].Role)
	}

	h, _ := f.manager.History(ctx, "S")
	if len(h.Messages) != 12 {
		t.Errorf("persisted transcript = %d turns, want the full 12", len(h.Messages))
	}
}

func TestRespond_SamplingParameters(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})

	if _, err := f.manager.Respond(context.Background(), chat.Request{Message: "hi"}); err != nil {
		t.Fatal(err)
	}
	for _, req := range f.provider.Requests() {
		if isSuggestionCall(req) {
			if req.MaxTokens != 200 || *req.Temperature != 0.8 {
				t.Errorf("suggestion params = %d, %v", req.MaxTokens, *req.Temperature)
			}
			continue
		}
		if req.MaxTokens != 500 || *req.Temperature != 0.7 {
			t.Errorf("chat params = %d, %v", req.MaxTokens, *req.Temperature)
		}
	}
}

func TestRespond_EmptyMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.manager.Respond(context.Background(), chat.Request{Message: msg, SessionID: "S"})
		if !errors.Is(err, chat.ErrEmptyMessage) {
			t.Errorf("Respond(%q) err = %v, want ErrEmptyMessage", msg, err)
		}
	}
	if f.provider.Calls() != 0 {
		t.Errorf("provider called %d times", f.provider.Calls())
	}
	if f.backend.SetCalls() != 0 {
		t.Errorf("store written %d times", f.backend.SetCalls())
	}
}

func TestRespond_CompletionFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	if _, err := f.manager.Respond(ctx, chat.Request{Message: "one", SessionID: "S"}); err != nil {
		t.Fatal(err)
	}
	before, _ := f.backend.Raw("S")
	sets := f.backend.SetCalls()

	f.provider.CompleteFunc = providertest.Fail(provider.ErrRateLimit)
	reply, err := f.manager.Respond(ctx, chat.Request{Message: "two", SessionID: "S"})

	var ce *chat.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompletionError", err)
	}
	if ce.SessionID != "S" || !errors.Is(err, provider.ErrRateLimit) {
		t.Errorf("CompletionError = %+v", ce)
	}
	if reply.Message != "" || reply.SessionID != "" {
		t.Errorf("partial reply returned: %+v", reply)
	}

	after, _ := f.backend.Raw("S")
	if !bytes.Equal(before, after) {
		t.Error("stored history changed after a failed completion")
	}
	if f.backend.SetCalls() != sets {
		t.Error("store written after a failed completion")
	}
}

func TestRespond_SuggestionFailureIsAbsorbed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	f.provider.CompleteFunc = func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if isSuggestionCall(req) {
			return provider.CompletionResponse{}, provider.ErrProviderDown
		}
		return provider.CompletionResponse{Content: "fine"}, nil
	}

	reply, err := f.manager.Respond(context.Background(), chat.Request{Message: "hi"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Suggestions != nil {
		t.Errorf("Suggestions = %v, want nil", reply.Suggestions)
	}
	if _, ok := f.manager.History(context.Background(), reply.SessionID); !ok {
		t.Error("turn should be persisted even when suggestions fail")
	}
}

func TestRespond_ResumedSessionKeepsStoredUserInfo(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	first, err := f.manager.Respond(ctx, chat.Request{Message: "hi", UserInfo: map[string]any{"name": "Kim"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.Respond(ctx, chat.Request{
		Message:   "again",
		SessionID: first.SessionID,
		UserInfo:  map[string]any{"name": "Lee"},
	}); err != nil {
		t.Fatal(err)
	}

	h, _ := f.manager.History(ctx, first.SessionID)
	if h.UserInfo["name"] != "Kim" {
		t.Errorf("UserInfo = %v, want the original", h.UserInfo)
	}
}

func TestRespond_DegradedStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	f.backend.PingErr = errors.New("connection refused")
	if err := f.cache.Connect(context.Background()); err == nil {
		t.Fatal("Connect should report the failed probe")
	}
	ctx := context.Background()

	reply, err := f.manager.Respond(ctx, chat.Request{Message: "hello", SessionID: "S"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Message != "4" {
		t.Errorf("Message = %q", reply.Message)
	}
	if n := len(chatRequests(f.provider)[0].Messages); n != 2 {
		t.Errorf("window = %d messages, want system + user", n)
	}
	if _, ok := f.manager.History(ctx, "S"); ok {
		t.Error("History should be absent in degraded mode")
	}
}

func TestRespond_SaveFailureIsAbsorbed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	f.backend.SetErr = errors.New("disk full")

	reply, err := f.manager.Respond(context.Background(), chat.Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Message == "" {
		t.Error("expected a reply")
	}
	if f.cache.Failures() != 1 {
		t.Errorf("Failures = %d, want 1", f.cache.Failures())
	}
}

func TestRespond_CanceledCallerStillPersists(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	f.provider.CompleteFunc = func(_ context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
		if isSuggestionCall(req) {
			return provider.CompletionResponse{}, context.Canceled
		}
		// The caller disconnects once the reply is generated.
		cancel()
		return provider.CompletionResponse{Content: "done"}, nil
	}

	reply, err := f.manager.Respond(ctx, chat.Request{Message: "hello", SessionID: "S"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Message != "done" {
		t.Errorf("Message = %q", reply.Message)
	}
	if _, ok := f.backend.Raw("S"); !ok {
		t.Error("completed turn was not persisted")
	}
}

func TestRespond_CompletionTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{CompletionTimeout: 20 * time.Millisecond})
	f.provider.CompleteFunc = func(ctx context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
		<-ctx.Done()
		return provider.CompletionResponse{}, ctx.Err()
	}

	_, err := f.manager.Respond(context.Background(), chat.Request{Message: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestClear_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	reply, err := f.manager.Respond(ctx, chat.Request{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	f.manager.Clear(ctx, reply.SessionID)
	f.manager.Clear(ctx, reply.SessionID)

	if _, ok := f.manager.History(ctx, reply.SessionID); ok {
		t.Error("history should be absent after Clear")
	}
	if f.backend.DeleteCalls() != 2 {
		t.Errorf("DeleteCalls = %d, want 2", f.backend.DeleteCalls())
	}
}

func TestRespond_InjectedClockAndIDs(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	p := &providertest.MockProvider{CompleteFunc: oracle("ok", "[]")}
	cache := conversation.NewCache(conversationtest.NewBackend(), time.Minute, slog.New(slog.DiscardHandler))
	m := chat.NewManager(chat.Deps{
		Provider: p,
		Store:    cache,
		Now:      func() time.Time { return fixed },
		NewID:    func() string { return "fixed-id" },
	}, chat.Config{Suggestions: chat.SuggestionConfig{Disabled: true}})

	reply, err := m.Respond(context.Background(), chat.Request{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if reply.SessionID != "fixed-id" {
		t.Errorf("SessionID = %s", reply.SessionID)
	}
	if !reply.Timestamp.Equal(fixed) || reply.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", reply.Timestamp, fixed)
	}
	if p.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1 with suggestions disabled", p.Calls())
	}
}

func TestRespond_ConcurrentSessionsAreIndependent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			for range 3 {
				if _, err := f.manager.Respond(ctx, chat.Request{Message: "m", SessionID: id}); err != nil {
					t.Errorf("Respond(%s): %v", id, err)
				}
			}
		}()
	}
	wg.Wait()

	for i := range 16 {
		h, ok := f.manager.History(ctx, fmt.Sprintf("s%d", i))
		if !ok || len(h.Messages) != 6 {
			t.Errorf("session s%d: ok=%v", i, ok)
		}
	}
}

func TestRespond_SerializedSessionsKeepEveryTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, chat.Config{SerializeSessions: true, Suggestions: chat.SuggestionConfig{Disabled: true}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.manager.Respond(ctx, chat.Request{Message: "m", SessionID: "shared"}); err != nil {
				t.Errorf("Respond: %v", err)
			}
		}()
	}
	wg.Wait()

	h, _ := f.manager.History(ctx, "shared")
	if len(h.Messages) != 20 {
		t.Errorf("messages = %d, want 20 with serialized sessions", len(h.Messages))
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	turns       []chat.Outcome
	suggestions []chat.Outcome
	completions int
}

func (o *recordingObserver) ObserveTurn(out chat.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turns = append(o.turns, out)
}

func (o *recordingObserver) ObserveCompletion(time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completions++
}

func (o *recordingObserver) ObserveSuggestions(out chat.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.suggestions = append(o.suggestions, out)
}

func TestRespond_ReportsToObserver(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	p := &providertest.MockProvider{CompleteFunc: oracle("ok", "not json")}
	m := chat.NewManager(chat.Deps{
		Provider: p,
		Store:    conversation.NewCache(nil, 0, slog.New(slog.DiscardHandler)),
		Logger:   slog.New(slog.DiscardHandler),
		Observer: obs,
	}, chat.Config{})

	ctx := context.Background()
	_, _ = m.Respond(ctx, chat.Request{Message: "hi"})
	_, _ = m.Respond(ctx, chat.Request{Message: " "})
	p.CompleteFunc = providertest.Fail(provider.ErrProviderDown)
	_, _ = m.Respond(ctx, chat.Request{Message: "hi"})

	want := []chat.Outcome{chat.OutcomeOK, chat.OutcomeInvalid, chat.OutcomeCompletionError}
	if fmt.Sprint(obs.turns) != fmt.Sprint(want) {
		t.Errorf("turns = %v, want %v", obs.turns, want)
	}
	if obs.completions != 2 {
		t.Errorf("completions = %d, want 2", obs.completions)
	}
	if len(obs.suggestions) != 1 || obs.suggestions[0] != chat.SuggestionsError {
		t.Errorf("suggestions = %v", obs.suggestions)
	}
}
