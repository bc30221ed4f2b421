package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/ingest"
	"github.com/hyperjump/oboeru/internal/llm"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/pkg/utils"
)

const emptyCorpusAnswer = "I have nothing indexed yet. Ingest some documents first."

const askSystemPrompt = "You answer questions using only the provided context passages, " +
	"conversation memory, and solution paths. Cite sources by name when you use them. " +
	"If the context does not contain the answer, say so."

const (
	relevantMemoryLimit = 5
	recentMemoryLimit   = 6
)

// Retrieve returns the topK chunks most similar to the query. Results are
// cached per (query, topK) until the next corpus mutation.
func (b *Brain) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		topK = b.cfg.Retrieval.DefaultTopK
	}
	cacheKey := fmt.Sprintf("%s::%d", query, topK)
	if cached, ok := b.cache.Get(cacheKey); ok {
		return cached, nil
	}

	queryVec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	b.mu.RLock()
	hits, err := b.index.Search(ctx, queryVec, topK)
	if err != nil {
		b.mu.RUnlock()
		return nil, fmt.Errorf("search failed: %w", err)
	}
	retrieved := make([]models.RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := b.docs.Get(hit.ID)
		if !ok {
			b.logger.Warn("index hit missing from document store", zap.String("id", hit.ID))
			continue
		}
		retrieved = append(retrieved, models.RetrievedChunk{
			ID:         chunk.ID,
			Source:     chunk.Source,
			ChunkIndex: chunk.ChunkIndex,
			Metadata:   chunk.Metadata,
			Score:      hit.Score,
			Text:       chunk.Text,
		})
	}
	b.mu.RUnlock()

	b.cache.Add(cacheKey, retrieved)
	return retrieved, nil
}

// Ask answers a question using retrieved context, conversational memory, and
// graph solution paths. The exchange is recorded in memory, user turn first.
// When no model is configured (or the call fails) the answer degrades to the
// best retrieved passages.
func (b *Brain) Ask(ctx context.Context, conversationID, query string) (*models.Answer, error) {
	answer, prompt, err := b.prepare(ctx, query)
	if err != nil || prompt == "" {
		return answer, err
	}

	text, chatErr := b.llm.Chat(ctx, askSystemPrompt, b.chatHistory(ctx, conversationID, prompt))
	if chatErr != nil {
		if !errors.Is(chatErr, llm.ErrUnavailable) {
			b.logger.Warn("model answer failed, falling back to extractive answer", zap.Error(chatErr))
		}
		text = extractiveAnswer(answer.References)
	}
	answer.Text = text

	b.remember(ctx, conversationID, query, text)
	return answer, nil
}

// AskStream is Ask with incremental delivery: onDelta receives each text
// fragment as it arrives. If the stream is cancelled midway the partial
// answer is still recorded in memory.
func (b *Brain) AskStream(ctx context.Context, conversationID, query string, onDelta func(string)) (*models.Answer, error) {
	answer, prompt, err := b.prepare(ctx, query)
	if err != nil || prompt == "" {
		if answer != nil && answer.Text != "" {
			onDelta(answer.Text)
		}
		return answer, err
	}

	deltas, errc := b.llm.ChatStream(ctx, askSystemPrompt, b.chatHistory(ctx, conversationID, prompt))
	var buf strings.Builder
	for delta := range deltas {
		buf.WriteString(delta)
		onDelta(delta)
	}
	streamErr := <-errc

	text := buf.String()
	if text == "" && streamErr != nil {
		if !errors.Is(streamErr, llm.ErrUnavailable) {
			b.logger.Warn("model stream failed, falling back to extractive answer", zap.Error(streamErr))
		}
		text = extractiveAnswer(answer.References)
		onDelta(text)
	}
	answer.Text = text

	b.remember(ctx, conversationID, query, text)
	if streamErr != nil && buf.Len() > 0 {
		// Partial answer was delivered and recorded; surface the interruption.
		return answer, streamErr
	}
	return answer, nil
}

// prepare runs retrieval, memory recall, and path search, and builds the
// model prompt. An empty prompt with a non-nil answer means the corpus is
// empty and the canned answer should be returned as-is.
func (b *Brain) prepare(ctx context.Context, query string) (*models.Answer, string, error) {
	if b.docs.Len() == 0 {
		return &models.Answer{Text: emptyCorpusAnswer}, "", nil
	}

	references, err := b.Retrieve(ctx, query, b.cfg.Retrieval.DefaultTopK)
	if err != nil {
		return nil, "", err
	}

	relevant, err := b.memory.Relevant(ctx, b.cfg.UserID, query, relevantMemoryLimit, 0)
	if err != nil {
		b.logger.Warn("memory recall failed", zap.Error(err))
	}
	paths := b.graph.FindSolutionPath(query, b.cfg.Retrieval.MaxPathDepth)

	answer := &models.Answer{
		References: references,
		Paths:      paths,
	}
	if len(references) > 0 {
		answer.Projection = ingest.ProjectExperience(references[0].Metadata)
	}

	var prompt strings.Builder
	prompt.WriteString("Question: ")
	prompt.WriteString(query)
	prompt.WriteString("\n\nContext passages:\n")
	for i, ref := range references {
		fmt.Fprintf(&prompt, "[%d] (%s) %s\n", i+1, ref.Source, ref.Text)
	}
	if len(relevant) > 0 {
		prompt.WriteString("\nRelevant memory:\n")
		for _, mem := range relevant {
			fmt.Fprintf(&prompt, "- %s: %s\n", mem.Record.Role, utils.Truncate(mem.Record.Content, 300))
		}
	}
	if len(paths) > 0 {
		prompt.WriteString("\nKnown solution paths:\n")
		for _, path := range paths {
			prompt.WriteString("- ")
			prompt.WriteString(formatPath(path))
			prompt.WriteString("\n")
		}
	}
	return answer, prompt.String(), nil
}

// chatHistory prepends recent conversation turns to the prompt.
func (b *Brain) chatHistory(ctx context.Context, conversationID, prompt string) []llm.Message {
	recent, err := b.memory.Recent(ctx, b.cfg.UserID, conversationID, recentMemoryLimit)
	if err != nil {
		b.logger.Warn("failed to load recent turns", zap.Error(err))
	}
	messages := make([]llm.Message, 0, len(recent)+1)
	for _, rec := range recent {
		if rec.Role != models.RoleUser && rec.Role != models.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: rec.Role, Content: rec.Content})
	}
	return append(messages, llm.Message{Role: models.RoleUser, Content: prompt})
}

// remember records the exchange, user turn before assistant turn so replayed
// history reads in order.
func (b *Brain) remember(ctx context.Context, conversationID, query, answer string) {
	if _, err := b.memory.Add(ctx, b.cfg.UserID, conversationID, models.RoleUser, query, nil); err != nil {
		b.logger.Warn("failed to record user turn", zap.Error(err))
		return
	}
	if answer == "" {
		return
	}
	if _, err := b.memory.Add(ctx, b.cfg.UserID, conversationID, models.RoleAssistant, answer, nil); err != nil {
		b.logger.Warn("failed to record assistant turn", zap.Error(err))
	}
}

// extractiveAnswer is the degraded no-model answer: the top passages stitched
// together with their sources.
func extractiveAnswer(references []models.RetrievedChunk) string {
	if len(references) == 0 {
		return "No relevant passages found."
	}
	var b strings.Builder
	b.WriteString("Most relevant passages:\n")
	limit := len(references)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		fmt.Fprintf(&b, "\n[%s] %s\n", references[i].Source, utils.Truncate(references[i].Text, 400))
	}
	return b.String()
}

func formatPath(path models.SolutionPath) string {
	parts := make([]string, len(path.Steps))
	for i, step := range path.Steps {
		if step.Relation != "" {
			parts[i] = fmt.Sprintf("-%s-> %s", step.Relation, step.Node.Label)
		} else {
			parts[i] = step.Node.Label
		}
	}
	return strings.Join(parts, " ")
}
