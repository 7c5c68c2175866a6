package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/chat"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

const (
	maxChatMessageLength = 1000

	assistantPrompt = "You are the shop assistant of an online store. Answer briefly and politely. " +
		"If you do not know whether a product is available, suggest browsing the catalog."
)

var stockKeywords = []string{"stock", "available", "availability", "in store", "disponible", "quedan", "hay "}

type Assistant struct {
	products  store.ProductRepository
	completer chat.Completer
	logger    *zap.Logger
}

func NewAssistant(products store.ProductRepository, completer chat.Completer, logger *zap.Logger) *Assistant {
	return &Assistant{products: products, completer: completer, logger: logger}
}

// Reply answers stock questions about a named product from the catalog and
// hands everything else to the completion API.
func (a *Assistant) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperr.Validation("message is required")
	}
	if len(message) > maxChatMessageLength {
		return "", apperr.Validation("message is too long")
	}

	if reply, ok, err := a.stockReply(ctx, message); err != nil {
		return "", err
	} else if ok {
		return reply, nil
	}

	reply, err := a.completer.Complete(ctx, []chat.Message{
		{Role: "system", Content: assistantPrompt},
		{Role: "user", Content: message},
	})
	if err != nil {
		a.logger.Warn("chat completion failed", zap.Error(err))
		if errors.Is(err, chat.ErrNotConfigured) {
			return "", apperr.Wrap(apperr.CodeUpstream, "assistant is not available", err)
		}
		return "", apperr.Wrap(apperr.CodeUpstream, "assistant could not answer", err)
	}
	return reply, nil
}

func (a *Assistant) stockReply(ctx context.Context, message string) (string, bool, error) {
	lower := strings.ToLower(message)
	if !mentionsStock(lower) {
		return "", false, nil
	}

	products, err := a.products.List(ctx)
	if err != nil {
		return "", false, apperr.FromStore(err, "product")
	}

	var matched []models.Product
	for _, p := range products {
		if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" && strings.Contains(lower, name) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return "", false, nil
	}

	parts := make([]string, 0, len(matched))
	for _, p := range matched {
		if p.Stock > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d units in stock", p.Name, p.Stock))
		} else {
			parts = append(parts, fmt.Sprintf("%s is out of stock", p.Name))
		}
	}
	return strings.Join(parts, ". ") + ".", true, nil
}

func mentionsStock(lower string) bool {
	for _, kw := range stockKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
