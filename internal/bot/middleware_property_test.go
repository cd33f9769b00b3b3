package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"crypto-explorer-bot/internal/config"
	"crypto-explorer-bot/internal/handler"
)

// fakeContext implements the parts of tele.Context the middleware touches.
// Calling anything else panics on the nil embedded interface.
type fakeContext struct {
	tele.Context

	chat     *tele.Chat
	sender   *tele.User
	callback *tele.Callback
	text     string

	store     map[string]any
	sent      []any
	responded int
}

func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }
func (f *fakeContext) Text() string             { return f.text }

func (f *fakeContext) Set(key string, v any) {
	if f.store == nil {
		f.store = make(map[string]any)
	}
	f.store[key] = v
}

func (f *fakeContext) Get(key string) any { return f.store[key] }

func (f *fakeContext) Send(what any, _ ...any) error {
	f.sent = append(f.sent, what)
	return nil
}

func (f *fakeContext) Respond(_ ...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func groupCtx(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		sender: &tele.User{ID: userID},
	}
}

func privateCtx(userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		sender: &tele.User{ID: userID},
	}
}

func genChatIDs(t *rapid.T) []int64 {
	// group chat ids are negative
	return rapid.SliceOfNDistinct(rapid.Int64Range(-1000000000, -1), 1, 10, rapid.ID[int64]).Draw(t, "chatIDs")
}

// TestWhitelistEnforcementProperty: a group chat is served iff it is listed.
func TestWhitelistEnforcementProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatIDs := genChatIDs(t)
		w := NewWhitelist(&config.Config{Whitelist: config.WhitelistConfig{Chats: chatIDs}})

		testChatID := rapid.OneOf(
			rapid.SampledFrom(chatIDs),
			rapid.Int64Range(-1000000000, -1),
		).Draw(t, "testChatID")

		expected := false
		for _, id := range chatIDs {
			if id == testChatID {
				expected = true
				break
			}
		}

		c := groupCtx(testChatID, 42)
		if got := w.Allow(c.chat, c.sender); got != expected {
			t.Fatalf("chat %d in %v: expected %v, got %v", testChatID, chatIDs, expected, got)
		}
	})
}

// TestEmptyWhitelistAllowsEverythingProperty: without a whitelist every chat is served.
func TestEmptyWhitelistAllowsEverythingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := NewWhitelist(&config.Config{})
		chatID := rapid.Int64().Draw(t, "chatID")
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		if !w.Allow(&tele.Chat{ID: chatID, Type: tele.ChatSuperGroup}, &tele.User{ID: userID}) {
			t.Fatalf("group chat %d rejected by empty whitelist", chatID)
		}
		if !w.Allow(&tele.Chat{ID: userID, Type: tele.ChatPrivate}, &tele.User{ID: userID}) {
			t.Fatalf("private chat of %d rejected by empty whitelist", userID)
		}
	})
}

// TestPrivateChatAfterGroupProperty: a user gains private access only by using an allowed group.
func TestPrivateChatAfterGroupProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatIDs := genChatIDs(t)
		w := NewWhitelist(&config.Config{Whitelist: config.WhitelistConfig{Chats: chatIDs}})
		userID := rapid.Int64Range(1, 1000000000).Draw(t, "userID")

		private := privateCtx(userID)
		if w.Allow(private.chat, private.sender) {
			t.Fatalf("unknown user %d allowed in private chat", userID)
		}

		group := groupCtx(chatIDs[0], userID)
		if !w.Allow(group.chat, group.sender) {
			t.Fatalf("listed chat %d rejected", chatIDs[0])
		}
		if !w.Allow(private.chat, private.sender) {
			t.Fatalf("user %d not allowed in private chat after using a listed group", userID)
		}
	})
}

func TestWhitelist_MissingChatOrSender(t *testing.T) {
	w := NewWhitelist(&config.Config{})
	assert.False(t, w.Allow(nil, &tele.User{ID: 1}))
	assert.False(t, w.Allow(&tele.Chat{ID: 1}, nil))
}

func TestWhitelistMiddleware(t *testing.T) {
	w := NewWhitelist(&config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-100}}})

	calls := 0
	next := func(tele.Context) error {
		calls++
		return nil
	}
	h := WhitelistMiddleware(w)(next)

	require.NoError(t, h(groupCtx(-200, 1)))
	assert.Equal(t, 0, calls)

	require.NoError(t, h(groupCtx(-100, 1)))
	assert.Equal(t, 1, calls)

	require.NoError(t, h(privateCtx(1)))
	assert.Equal(t, 2, calls)

	require.NoError(t, h(privateCtx(2)))
	assert.Equal(t, 2, calls)
}

func TestLoggingMiddleware_SetsRequestID(t *testing.T) {
	wantErr := errors.New("boom")
	var seen any
	h := LoggingMiddleware()(func(c tele.Context) error {
		seen = c.Get("request_id")
		return wantErr
	})

	c := groupCtx(-100, 1)
	err := h(c)

	assert.ErrorIs(t, err, wantErr)
	id, ok := seen.(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(func(tele.Context) error {
		panic("handler bug")
	})

	c := groupCtx(-100, 1)
	c.callback = &tele.Callback{Data: "coins_refresh"}

	require.NotPanics(t, func() {
		assert.NoError(t, h(c))
	})
	assert.Equal(t, 1, c.responded)
	assert.Equal(t, []any{handler.InternalError}, c.sent)
}

func TestRecoveryMiddleware_PassesThrough(t *testing.T) {
	wantErr := errors.New("plain error")
	h := RecoveryMiddleware()(func(tele.Context) error { return wantErr })

	assert.ErrorIs(t, h(groupCtx(-100, 1)), wantErr)
}
