package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"daftarchat/internal/models"
	"daftarchat/internal/provider"
)

const summarySystemPrompt = "You compress finished assistant conversations. " +
	"Summarize the dialogue in 2-3 sentences, keeping names, amounts, and decisions. " +
	"Output only the summary."

const preferenceSystemPrompt = "You extract durable user preferences from finished " +
	"assistant conversations: language, tone, UI choices, recurring defaults. " +
	"Respond with a JSON array of short preference statements, or [] when the " +
	"conversation reveals none."

// MinMessagesForSummary is the default floor below which a cleared session
// is not worth summarizing.
const MinMessagesForSummary = 4

// Service layers conversation recall and summarization over the Store.
// Every operation is best-effort: failures are logged and swallowed so the
// primary chat path never blocks on memory.
type Service struct {
	store       *Store
	generator   provider.Generator
	recallLimit int
	minMessages int
}

func NewService(store *Store, generator provider.Generator, recallLimit, minMessages int) *Service {
	if recallLimit <= 0 {
		recallLimit = 5
	}
	if minMessages <= 0 {
		minMessages = MinMessagesForSummary
	}
	return &Service{
		store:       store,
		generator:   generator,
		recallLimit: recallLimit,
		minMessages: minMessages,
	}
}

// Recall returns the bounded, most-recent-first memory for the user. On
// failure it returns nil.
func (s *Service) Recall(ctx context.Context, tenant string, userID int64) []models.MemoryEntry {
	entries, err := s.store.List(ctx, tenant, userID, s.recallLimit)
	if err != nil {
		log.Printf("memory recall failed for user %d: %v", userID, err)
		return nil
	}
	return entries
}

// SummarizeAndStore compresses a finished conversation into one
// timestamp-qualified entry and folds any durable preferences it reveals
// into the reserved preference key. Sessions below the minimum turn
// threshold are skipped; any failure is logged and dropped.
func (s *Service) SummarizeAndStore(ctx context.Context, tenant string, userID int64, messages []*models.ChatMessage) {
	if len(messages) < s.minMessages {
		return
	}

	transcript := renderTranscript(messages)
	s.storeSummary(ctx, tenant, userID, transcript)
	s.extractPreferences(ctx, tenant, userID, transcript)
}

func (s *Service) storeSummary(ctx context.Context, tenant string, userID int64, transcript string) {
	summary, err := s.generator.Generate(ctx, userID, transcript, summarySystemPrompt, provider.Options{
		Temperature: 0.3,
	})
	if err != nil {
		log.Printf("summarize session for user %d: %v", userID, err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}

	key := fmt.Sprintf("summary:%s", time.Now().UTC().Format(time.RFC3339))
	if err := s.store.Put(ctx, tenant, userID, key, summary); err != nil {
		log.Printf("store summary for user %d: %v", userID, err)
	}
}

func (s *Service) extractPreferences(ctx context.Context, tenant string, userID int64, transcript string) {
	raw, err := s.generator.Generate(ctx, userID, transcript, preferenceSystemPrompt, provider.Options{
		Temperature:      0.3,
		StructuredOutput: true,
	})
	if err != nil {
		log.Printf("extract preferences for user %d: %v", userID, err)
		return
	}

	var lines []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &lines); err != nil {
		log.Printf("decode preferences for user %d: %v", userID, err)
		return
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := s.store.AppendPreference(ctx, tenant, userID, line); err != nil {
			log.Printf("store preference for user %d: %v", userID, err)
		}
	}
}

func renderTranscript(messages []*models.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case models.RoleUser:
			b.WriteString("User: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
