package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// CacheKey fingerprints the parts of a request that determine its output.
func CacheKey(req *CompletionRequest) string {
	parts := []string{
		"model: " + req.Model,
		"max_tokens: " + strconv.Itoa(req.MaxTokens),
		"temperature: " + strconv.FormatFloat(req.Temperature, 'f', -1, 64),
	}

	for _, msg := range req.Messages {
		parts = append(parts, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, " | ")))
	return fmt.Sprintf("completion:%s", hex.EncodeToString(hash[:]))
}
