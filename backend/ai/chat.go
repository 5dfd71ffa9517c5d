package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/cache"
	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"
)

// historyLimit is how many prior conversation messages are forwarded.
const historyLimit = 10

const (
	chatRetryAfter      = 60
	recommendRetryAfter = 300
)

// Library is the read side of the store the assistant builds its context from.
type Library interface {
	ListStories(ctx context.Context) ([]*models.Story, error)
	ListProgress(ctx context.Context) ([]*models.Progress, error)
}

type ChatReply struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

type Preferences struct {
	Genre      string `json:"genre"`
	Difficulty string `json:"difficulty"`
}

type Recommendation struct {
	Title      string `json:"title"`
	Reason     string `json:"reason"`
	Difficulty string `json:"difficulty"`
}

type ChatService struct {
	llm     Completer
	library Library
	cache   cache.Store
	ttl     time.Duration
	group   singleflight.Group
	log     *utils.Logger
}

func NewChatService(llm Completer, library Library, c cache.Store, ttl time.Duration, log *utils.Logger) *ChatService {
	return &ChatService{
		llm:     llm,
		library: library,
		cache:   c,
		ttl:     ttl,
		log:     log.With("service", "ChatService"),
	}
}

// Chat answers one user message. Replies to first-turn messages are cached
// per user and message text; anything with history always reaches the model.
func (s *ChatService) Chat(ctx context.Context, email, message string, history []Message) (*ChatReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("Message is required")
	}
	if len(history) > 0 || s.cache == nil || s.ttl <= 0 {
		return s.chat(ctx, email, message, history)
	}

	key := cacheKey("chat", email, message)
	if reply, ok := s.cachedReply(key); ok {
		return reply, nil
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		reply, err := s.chat(ctx, email, message, nil)
		if err != nil {
			return nil, err
		}
		if raw, mErr := json.Marshal(reply); mErr == nil {
			if sErr := s.cache.Set(key, raw, s.ttl); sErr != nil {
				s.log.Warn("Failed to cache chat reply", "error", sErr)
			}
		}
		return reply, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ChatReply), nil
}

func (s *ChatService) cachedReply(key string) (*ChatReply, bool) {
	raw, err := s.cache.Get(key)
	if err != nil {
		s.log.Warn("Chat cache read failed", "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var reply ChatReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, false
	}
	return &reply, true
}

func (s *ChatService) chat(ctx context.Context, email, message string, history []Message) (*ChatReply, error) {
	stories, progress := s.readingContext(ctx, email)

	messages := []Message{{Role: "system", Content: systemPrompt(stories, progress)}}
	messages = append(messages, trimHistory(history)...)
	messages = append(messages, Message{Role: "user", Content: message})

	out, err := s.llm.Complete(ctx, CompletionRequest{Messages: messages, Temperature: 0.7, MaxTokens: 500})
	if err != nil {
		s.log.Error("OpenAI chat failed", "email", email, "error", err)
		return nil, providerError(err, chatRetryAfter)
	}
	return &ChatReply{Response: out.Content, Model: out.Model}, nil
}

// Recommend asks the model for three books. Provider failures other than a
// missing key or throttling fall back to the first stories of the library.
func (s *ChatService) Recommend(ctx context.Context, email string, prefs Preferences) ([]Recommendation, error) {
	stories, progress := s.readingContext(ctx, email)

	out, err := s.llm.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You are a book recommendation assistant. Always respond with valid JSON arrays."},
			{Role: "user", Content: recommendPrompt(stories, progress, prefs)},
		},
		Temperature: 0.7,
		MaxTokens:   400,
	})
	if err != nil {
		if errors.Is(err, ErrNoAPIKey) || StatusCode(err) == http.StatusTooManyRequests {
			return nil, providerError(err, recommendRetryAfter)
		}
		s.log.Warn("Recommendation request failed, using fallback", "email", email, "error", err)
		return fallbackRecommendations(stories), nil
	}
	return parseRecommendations(out.Content, stories), nil
}

type readingState struct {
	title   string
	current int
	total   int
}

func (r readingState) completed() bool { return r.total > 0 && r.current > r.total }

func (s *ChatService) readingContext(ctx context.Context, email string) ([]*models.Story, []readingState) {
	stories, err := s.library.ListStories(ctx)
	if err != nil {
		s.log.Warn("Failed to load stories for chat context", "error", err)
		stories = nil
	}
	all, err := s.library.ListProgress(ctx)
	if err != nil {
		s.log.Warn("Failed to load progress for chat context", "error", err)
		return stories, nil
	}

	byID := make(map[string]*models.Story, len(stories))
	for _, st := range stories {
		byID[st.ID] = st
	}
	var out []readingState
	for _, p := range all {
		if p.Email != email {
			continue
		}
		rs := readingState{title: p.StoryID, current: p.CurrentChapter}
		if st, ok := byID[p.StoryID]; ok {
			rs.title = st.Title
			rs.total = len(st.Chapters)
		}
		out = append(out, rs)
	}
	return stories, out
}

func systemPrompt(stories []*models.Story, progress []readingState) string {
	var b strings.Builder
	b.WriteString(`You are a helpful and knowledgeable book recommendation assistant for "Memory Maze", a reading platform. Your role is to:
1. Recommend books based on user preferences and reading history
2. Discuss books, themes, characters, and plot points
3. Help users understand complex concepts in the books
4. Provide engaging and thoughtful conversations about literature

Available books in the library:
`)
	for _, st := range stories {
		fmt.Fprintf(&b, "- %s (%s difficulty, %d chapters): %s\n", st.Title, st.Difficulty, len(st.Chapters), st.Description)
	}
	b.WriteString("\nUser's reading progress:\n")
	if len(progress) == 0 {
		b.WriteString("No reading history yet\n")
	}
	for _, p := range progress {
		if p.completed() {
			fmt.Fprintf(&b, "- %s: Completed\n", p.title)
		} else {
			fmt.Fprintf(&b, "- %s: Chapter %d of %d\n", p.title, p.current, p.total)
		}
	}
	b.WriteString("\nKeep responses concise, engaging, and helpful. If recommending books, consider the user's reading history and preferences.")
	return b.String()
}

func recommendPrompt(stories []*models.Story, progress []readingState, prefs Preferences) string {
	var done, reading, available []string
	for _, p := range progress {
		if p.completed() {
			done = append(done, p.title)
		} else {
			reading = append(reading, p.title)
		}
	}
	for _, st := range stories {
		available = append(available, st.Title)
	}
	genre := orDefault(prefs.Genre, "Not specified")
	difficulty := orDefault(prefs.Difficulty, "Any difficulty")

	return fmt.Sprintf(`Based on the user's reading history, recommend 3 books from the available library.

User's completed books: %s
User's books in progress: %s

Available books: %s

User preferences: %s, %s

Provide 3 personalized recommendations with brief explanations (1-2 sentences each) for why each book would be a good fit. Format as a JSON array with objects containing "title", "reason", and "difficulty" fields.`,
		joinOr(done, "None"), joinOr(reading, "None"), strings.Join(available, ", "), genre, difficulty)
}

var jsonArray = regexp.MustCompile(`(?s)\[.*\]`)

func parseRecommendations(reply string, stories []*models.Story) []Recommendation {
	if m := jsonArray.FindString(reply); m != "" {
		var recs []Recommendation
		if err := json.Unmarshal([]byte(m), &recs); err == nil {
			return recs
		}
	}

	rec := Recommendation{Title: "The Alchemist", Reason: "A great book to start your journey", Difficulty: models.DefaultDifficulty}
	if len(stories) > 0 {
		rec.Title = stories[0].Title
		rec.Difficulty = orDefault(stories[0].Difficulty, models.DefaultDifficulty)
	}
	if line := strings.TrimSpace(strings.SplitN(reply, "\n", 2)[0]); line != "" {
		rec.Reason = line
	}
	return []Recommendation{rec}
}

func fallbackRecommendations(stories []*models.Story) []Recommendation {
	out := []Recommendation{}
	for i, st := range stories {
		if i == 3 {
			break
		}
		out = append(out, Recommendation{
			Title:      st.Title,
			Reason:     fmt.Sprintf("A %s difficulty book with %d chapters", st.Difficulty, len(st.Chapters)),
			Difficulty: st.Difficulty,
		})
	}
	return out
}

func providerError(err error, retryAfter int) error {
	switch {
	case errors.Is(err, ErrNoAPIKey):
		return apperr.Wrap(apperr.KindUnavailable, "OpenAI API key is not configured. Please add OPENAI_API_KEY to your backend/.env file.", err)
	case StatusCode(err) == http.StatusUnauthorized:
		return apperr.Wrap(apperr.KindUnavailable, "Invalid OpenAI API key. Please check your OPENAI_API_KEY in backend/.env", err)
	case StatusCode(err) == http.StatusTooManyRequests:
		e := apperr.RateLimited("OpenAI API rate limit exceeded. Please try again later.", retryAfter)
		e.Err = err
		return e
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.KindUnavailable, "AI service timed out. Please try again.", err)
	default:
		return apperr.Wrap(apperr.KindInternal, "Failed to get AI response. Please check your API key configuration.", err)
	}
}

func trimHistory(history []Message) []Message {
	var out []Message
	for _, m := range history {
		if (m.Role == "user" || m.Role == "assistant") && strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	if len(out) > historyLimit {
		out = out[len(out)-historyLimit:]
	}
	return out
}

func cacheKey(kind, email, message string) string {
	sum := sha256.Sum256([]byte(email + "\x00" + message))
	return kind + ":" + hex.EncodeToString(sum[:])
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}
