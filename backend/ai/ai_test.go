package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/cache"
	"memorymaze/backend/config"
	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, url string, keys ...string) *Client {
	t.Helper()
	cfg := &config.Config{OpenAIBaseURL: url, OpenAIModel: "gpt-test", OpenAITimeout: 5 * time.Second}
	c := NewClient(cfg, NewKeyRing(keys), utils.NopLogger())
	c.backoff = time.Millisecond
	return c
}

func completionBody(content string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"model":   "gpt-test-0613",
		"choices": []map[string]interface{}{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(raw)
}

func TestClientRetriesOnceOnRateLimit(t *testing.T) {
	var calls int32
	var seenKeys []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenKeys = append(seenKeys, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.Equal(t, "/chat/completions", r.URL.Path)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(completionBody("hello")))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, "sk-first-key-0001", "sk-second-key-0002")
	out, err := c.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
	assert.Equal(t, "gpt-test-0613", out.Model)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"Bearer sk-first-key-0001", "Bearer sk-second-key-0002"}, seenKeys)
}

func TestClientGivesUpAfterTwoAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, "sk-only-key-00001")
	_, err := c.Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryUnauthorized(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, "sk-only-key-00001")
	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClientWithoutKeys(t *testing.T) {
	c := testClient(t, "http://unused.invalid")
	_, err := c.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestKeyRingPrefersLeastUsedAndSkipsFailedKeys(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewKeyRing([]string{"key-a", "key-b", "key-c"})
	r.now = func() time.Time { return now }

	first, _ := r.Next()
	second, _ := r.Next()
	third, _ := r.Next()
	assert.Equal(t, []string{"key-a", "key-b", "key-c"}, []string{first, second, third})

	r.MarkError("key-a")
	k, _ := r.Next()
	assert.Equal(t, "key-b", k)

	now = now.Add(errorCooldown)
	k, _ = r.Next()
	assert.Equal(t, "key-a", k, "cooldown over, key-a is least used")
}

func TestKeyRingFallsBackToOldestError(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewKeyRing([]string{"key-a", "key-b"})
	r.now = func() time.Time { return now }

	r.MarkError("key-b")
	now = now.Add(time.Minute)
	r.MarkError("key-a")

	k, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, "key-b", k)
}

func TestKeyRingStatsAndReset(t *testing.T) {
	r := NewKeyRing([]string{"sk-proj-abcdefgh1234"})
	r.Next()
	r.Next()
	r.MarkError("sk-proj-abcdefgh1234")

	st := r.Stats()
	assert.Equal(t, 1, st.TotalKeys)
	assert.Equal(t, 2, st.TotalRequests)
	assert.Equal(t, "50.00%", st.SuccessRate)
	assert.Equal(t, "sk-proj...1234", st.Keys["key_1"].Key)

	r.ResetStats()
	st = r.Stats()
	assert.Equal(t, 0, st.TotalRequests)
	assert.Equal(t, "N/A", st.SuccessRate)
	assert.NotNil(t, st.Keys["key_1"].LastError)

	_, ok := NewKeyRing(nil).Next()
	assert.False(t, ok)
}

func TestScheduleDailyReset(t *testing.T) {
	c, err := NewKeyRing([]string{"k"}).ScheduleDailyReset(utils.NopLogger())
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	next := c.Entries()[0].Next.UTC()
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 0, next.Minute())
	c.Stop()
}

type fakeLLM struct {
	mu    sync.Mutex
	calls []CompletionRequest
	reply string
	err   error
}

func (f *fakeLLM) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &Completion{Content: f.reply, Model: "gpt-test"}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLibrary struct {
	stories  []*models.Story
	progress []*models.Progress
}

func (l *fakeLibrary) ListStories(context.Context) ([]*models.Story, error) { return l.stories, nil }
func (l *fakeLibrary) ListProgress(context.Context) ([]*models.Progress, error) {
	return l.progress, nil
}

func library() *fakeLibrary {
	twoChapters := []models.Chapter{{Chapter: 1}, {Chapter: 2}}
	return &fakeLibrary{
		stories: []*models.Story{
			{ID: "emma", Title: "Emma", Difficulty: "medium", Description: "Matchmaking.", Chapters: twoChapters},
			{ID: "beowulf", Title: "Beowulf", Difficulty: "hard", Chapters: twoChapters},
			{ID: "dracula", Title: "Dracula", Difficulty: "medium", Chapters: twoChapters},
			{ID: "walden", Title: "Walden", Difficulty: "easy", Chapters: twoChapters},
		},
		progress: []*models.Progress{
			{Email: "r@example.com", StoryID: "emma", CurrentChapter: 3},
			{Email: "r@example.com", StoryID: "beowulf", CurrentChapter: 1},
			{Email: "other@example.com", StoryID: "walden", CurrentChapter: 2},
		},
	}
}

func TestChatBuildsContextAndTrimsHistory(t *testing.T) {
	llm := &fakeLLM{reply: "Try Dracula."}
	s := NewChatService(llm, library(), cache.NewMemory(), time.Minute, utils.NopLogger())

	var history []Message
	for i := 0; i < 14; i++ {
		history = append(history, Message{Role: "user", Content: "msg"})
	}
	history = append(history, Message{Role: "system", Content: "ignore me"})

	reply, err := s.Chat(context.Background(), "r@example.com", "What next?", history)
	require.NoError(t, err)
	assert.Equal(t, "Try Dracula.", reply.Response)

	req := llm.calls[0]
	require.Len(t, req.Messages, 1+historyLimit+1)
	sys := req.Messages[0].Content
	assert.Contains(t, sys, "- Emma (medium difficulty, 2 chapters): Matchmaking.")
	assert.Contains(t, sys, "- Emma: Completed")
	assert.Contains(t, sys, "- Beowulf: Chapter 1 of 2")
	assert.NotContains(t, sys, "Walden: Chapter")
	assert.Equal(t, "What next?", req.Messages[len(req.Messages)-1].Content)
}

func TestChatCachesFirstTurnOnly(t *testing.T) {
	llm := &fakeLLM{reply: "cached answer"}
	s := NewChatService(llm, library(), cache.NewMemory(), time.Minute, utils.NopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Chat(ctx, "r@example.com", "Hello", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, llm.callCount())

	_, err := s.Chat(ctx, "other@example.com", "Hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.callCount(), "cache is per user")

	withHistory := []Message{{Role: "user", Content: "earlier"}}
	_, err = s.Chat(ctx, "r@example.com", "Hello", withHistory)
	require.NoError(t, err)
	_, err = s.Chat(ctx, "r@example.com", "Hello", withHistory)
	require.NoError(t, err)
	assert.Equal(t, 4, llm.callCount())
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   apperr.Kind
		retry  int
		substr string
	}{
		{"no key", ErrNoAPIKey, apperr.KindUnavailable, 0, "not configured"},
		{"bad key", &HTTPError{StatusCode: 401}, apperr.KindUnavailable, 0, "Invalid OpenAI API key"},
		{"throttled", &HTTPError{StatusCode: 429}, apperr.KindRateLimited, 60, "rate limit"},
		{"other", errors.New("boom"), apperr.KindInternal, 0, "Failed to get AI response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewChatService(&fakeLLM{err: tc.err}, library(), nil, 0, utils.NopLogger())
			_, err := s.Chat(context.Background(), "r@example.com", "hi", nil)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, e.Kind)
			assert.Equal(t, tc.retry, e.RetryAfter)
			assert.Contains(t, e.Message, tc.substr)
		})
	}
}

func TestChatRequiresMessage(t *testing.T) {
	s := NewChatService(&fakeLLM{}, library(), nil, 0, utils.NopLogger())
	_, err := s.Chat(context.Background(), "r@example.com", "   ", nil)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRecommendParsesJSONArray(t *testing.T) {
	llm := &fakeLLM{reply: "Sure!\n[{\"title\":\"Dracula\",\"reason\":\"Spooky.\",\"difficulty\":\"medium\"}]\nEnjoy."}
	s := NewChatService(llm, library(), nil, 0, utils.NopLogger())

	recs, err := s.Recommend(context.Background(), "r@example.com", Preferences{Genre: "horror"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Dracula", recs[0].Title)

	prompt := llm.calls[0].Messages[1].Content
	assert.Contains(t, prompt, "User's completed books: Emma")
	assert.Contains(t, prompt, "User's books in progress: Beowulf")
	assert.Contains(t, prompt, "User preferences: horror, Any difficulty")
}

func TestRecommendFallbacks(t *testing.T) {
	s := NewChatService(&fakeLLM{reply: "I like Emma.\nIt is good."}, library(), nil, 0, utils.NopLogger())
	recs, err := s.Recommend(context.Background(), "r@example.com", Preferences{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, Recommendation{Title: "Emma", Reason: "I like Emma.", Difficulty: "medium"}, recs[0])

	s = NewChatService(&fakeLLM{err: errors.New("connection reset")}, library(), nil, 0, utils.NopLogger())
	recs, err = s.Recommend(context.Background(), "r@example.com", Preferences{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "A hard difficulty book with 2 chapters", recs[1].Reason)

	s = NewChatService(&fakeLLM{err: ErrNoAPIKey}, library(), nil, 0, utils.NopLogger())
	_, err = s.Recommend(context.Background(), "r@example.com", Preferences{})
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))

	s = NewChatService(&fakeLLM{err: &HTTPError{StatusCode: 429}}, library(), nil, 0, utils.NopLogger())
	_, err = s.Recommend(context.Background(), "r@example.com", Preferences{})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 300, e.RetryAfter)
}

func TestAnswerJudge(t *testing.T) {
	cases := map[string]struct {
		reply string
		want  bool
		err   bool
	}{
		"correct":   {reply: "CORRECT", want: true},
		"lowercase": {reply: " correct.\n", want: true},
		"incorrect": {reply: "INCORRECT", want: false},
		"garbage":   {reply: "maybe", err: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			llm := &fakeLLM{reply: tc.reply}
			ok, err := NewAnswerJudge(llm).Judge(context.Background(), "Who?", "Mr. Bingley", "mister bingly")
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, llm.calls[0].Messages[1].Content, "Submitted answer: mister bingly")
		})
	}
}
