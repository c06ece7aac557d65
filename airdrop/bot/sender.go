package bot

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Diamond001cloud/webhook-ape-airdrop1/airdrop/outbound"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by Sender before the bot API is attached.
var ErrNotBound = errors.New("bot: sender not bound")

// Sender delivers outbound messages synchronously through the Bot API.
// The API is attached once the bot is running. Each call waits on pace,
// which is shared with the update dispatcher when one is configured.
type Sender struct {
	mu   sync.RWMutex
	api  tele.API
	pace *rate.Limiter
}

// NewSender returns an unbound Sender. A nil pace sends without waiting.
func NewSender(pace *rate.Limiter) *Sender {
	return &Sender{pace: pace}
}

// Bind attaches the Bot API.
func (s *Sender) Bind(api tele.API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Send implements outbound.Sender.
func (s *Sender) Send(ctx context.Context, to int64, msg outbound.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	api := s.api
	s.mu.RUnlock()
	if api == nil {
		return ErrNotBound
	}
	if s.pace != nil {
		if err := s.pace.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := api.Send(tele.ChatID(to), msg.Text, SendOptions(msg))
	return err
}
