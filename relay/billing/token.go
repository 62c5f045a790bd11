// Package billing estimates token counts for requests whose responses did not
// carry a usage record.
package billing

import (
	"sync"

	"github.com/Laisky/zap"
	"github.com/pkoukk/tiktoken-go"

	"github.com/bedrockchat/relay/common/config"
	"github.com/bedrockchat/relay/common/logger"
	relaymodel "github.com/bedrockchat/relay/relay/model"
)

// Every forwarded message carries a small framing overhead on top of its
// content tokens.
const tokensPerMessage = 3

var (
	tokenEncoderOnce sync.Once
	tokenEncoder     *tiktoken.Tiktoken
)

// getTokenEncoder lazily builds the cl100k_base encoder. It approximates the
// provider's tokenizer closely enough for billing estimates. A nil return
// means the encoder is unavailable (e.g. offline without TIKTOKEN_CACHE_DIR)
// and callers fall back to approximate counting.
func getTokenEncoder() *tiktoken.Tiktoken {
	tokenEncoderOnce.Do(func() {
		encoder, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Logger.Warn("tiktoken encoder unavailable, using approximate token counting",
				zap.Error(err))
			return
		}
		tokenEncoder = encoder
	})
	return tokenEncoder
}

// CountTokenText estimates the number of tokens in a text.
func CountTokenText(text string) int {
	if config.ApproximateTokenEnabled {
		return int(float64(len(text)) * 0.38)
	}
	encoder := getTokenEncoder()
	if encoder == nil {
		return int(float64(len(text)) * 0.38)
	}
	return len(encoder.Encode(text, nil, nil))
}

// CountTokenMessages estimates the prompt tokens of a conversation. Only the
// turns that reach the provider are counted.
func CountTokenMessages(messages []relaymodel.Message) int {
	total := 0
	for i := range messages {
		message := &messages[i]
		if !message.IsConversationTurn() {
			continue
		}
		total += tokensPerMessage
		for _, content := range message.Content {
			if content.ContentType == relaymodel.ContentTypeText {
				total += CountTokenText(content.Body)
			}
		}
	}
	return total
}
