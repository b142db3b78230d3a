package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailroute/internal/classifier"
	"github.com/nhle/mailroute/internal/credential"
	"github.com/nhle/mailroute/internal/mailbox"
	"github.com/nhle/mailroute/internal/model"
	"github.com/nhle/mailroute/internal/router"
	"github.com/nhle/mailroute/tests/testutil"
)

type mapSecrets map[string]string

func (m mapSecrets) Resolve(key string) (credential.Secret, error) {
	v, ok := m[key]
	if !ok {
		return credential.Secret{}, fmt.Errorf("resolving %q: %w", key, credential.ErrNotFound)
	}
	return credential.NewSecret(v), nil
}

type fakeCompleter struct {
	answer string
	models []string
	keys   []string
}

func (f *fakeCompleter) Complete(_ context.Context, key credential.Secret, _, _ string) (string, error) {
	f.keys = append(f.keys, key.Reveal())
	return f.answer, nil
}

func (f *fakeCompleter) ListModels(context.Context, credential.Secret) ([]string, error) {
	return f.models, nil
}

type fakeSender struct {
	creds []mailbox.Credentials
	reqs  []model.ForwardRequest
}

func (f *fakeSender) Send(_ context.Context, creds mailbox.Credentials, req model.ForwardRequest) (model.Confirmation, error) {
	f.creds = append(f.creds, creds)
	f.reqs = append(f.reqs, req)
	return model.Confirmation{Recipient: req.RecipientAddress, Transport: model.TransportSMTP, SentAt: time.Now()}, nil
}

const hrAnswer = `{"classification": "Leave Request", "department": "HR", "justification": "Sick day", "suggested_action": "Log the absence"}`

var sick = model.Email{Subject: "Sick Leave - John Doe", Body: "I am feeling unwell."}

func testConfig(t *testing.T) (*model.AppConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	cfg.Mailbox.Username = "me@corp.example"
	cfg.Mailbox.Transport = model.TransportSMTP
	cfg.Model.Provider = model.ProviderGemini
	return cfg, path
}

func newTestApp(t *testing.T, secrets mapSecrets, opts ...Option) (*App, *fakeCompleter, *fakeSender, string) {
	t.Helper()
	cfg, path := testConfig(t)
	comp := &fakeCompleter{answer: hrAnswer, models: []string{"models/gemini-2.0-flash"}}
	sender := &fakeSender{}

	opts = append([]Option{
		WithSecrets(secrets),
		WithCompleter(comp),
		WithSender(sender),
		WithOutput(&bytes.Buffer{}),
	}, opts...)

	a, err := New(context.Background(), cfg, path, nil, opts...)
	require.NoError(t, err)
	return a, comp, sender, path
}

func TestClassify(t *testing.T) {
	hist := testutil.NewTestHistory(t)
	a, comp, _, _ := newTestApp(t, mapSecrets{credential.KeyGeminiAPIKey: "g-key"}, WithHistory(hist))

	held, err := a.Classify(context.Background(), sick)
	require.NoError(t, err)
	assert.Equal(t, "HR", held.Result.Department)
	assert.Equal(t, sick, held.Email)
	assert.Equal(t, []string{"g-key"}, comp.keys)

	events, err := a.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActionClassify, events[0].Action)
	assert.Equal(t, "HR", events[0].Department)
}

func TestClassify_MissingKeyIsInvalidCredential(t *testing.T) {
	a, comp, _, _ := newTestApp(t, mapSecrets{})

	_, err := a.Classify(context.Background(), sick)
	assert.True(t, classifier.HasKind(err, classifier.KindInvalidCredential))
	assert.Empty(t, comp.keys)
}

func TestForward_UnconfiguredThenConfigured(t *testing.T) {
	secrets := mapSecrets{
		credential.KeyGeminiAPIKey:     "g-key",
		credential.KeyMailboxPassword: "app-password",
	}
	a, _, sender, path := newTestApp(t, secrets)
	ctx := context.Background()

	held, err := a.Classify(ctx, sick)
	require.NoError(t, err)

	_, err = a.Forward(ctx, held)
	assert.True(t, router.IsUnconfigured(err))
	assert.Empty(t, sender.reqs)

	require.NoError(t, a.SetDepartmentAddress("HR", "hr@corp.example"))

	conf, err := a.Forward(ctx, held)
	require.NoError(t, err)
	assert.Equal(t, "hr@corp.example", conf.Recipient)

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, model.ForwardRequest{
		RecipientAddress: "hr@corp.example",
		OriginalSubject:  sick.Subject,
		OriginalBody:     sick.Body,
	}, sender.reqs[0])
	assert.Equal(t, "me@corp.example", sender.creds[0].Username)
	assert.Equal(t, "app-password", sender.creds[0].Password.Reveal())

	saved, err := model.LoadConfig(path)
	require.NoError(t, err)
	addr, ok := saved.Departments.Address("HR")
	assert.True(t, ok)
	assert.Equal(t, "hr@corp.example", addr)
}

func TestForward_MissingPassword(t *testing.T) {
	a, _, sender, _ := newTestApp(t, mapSecrets{credential.KeyGeminiAPIKey: "g-key"})
	ctx := context.Background()
	require.NoError(t, a.SetDepartmentAddress("HR", "hr@corp.example"))

	held, err := a.Classify(ctx, sick)
	require.NoError(t, err)

	_, err = a.Forward(ctx, held)
	assert.True(t, credential.IsNotFound(err))
	assert.Empty(t, sender.reqs)
}

func TestForward_NothingHeld(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{})

	_, err := a.Forward(context.Background(), router.Held{})
	assert.ErrorIs(t, err, router.ErrNothingHeld)
}

func TestSetDepartmentAddress_UnknownDepartment(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{})
	assert.Error(t, a.SetDepartmentAddress("Facilities", "f@corp.example"))
}

func TestModels(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{credential.KeyGeminiAPIKey: "g-key"})

	models, err := a.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"models/gemini-2.0-flash"}, models)
}

func TestHistory_Disabled(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{})

	_, err := a.History(context.Background(), 5)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestSecrets(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	a, _, _, _ := newTestApp(t, mapSecrets{}, WithKeyring(credential.NewStore(ring)))

	key, err := a.SecretKey(SecretModel)
	require.NoError(t, err)
	assert.Equal(t, credential.KeyGeminiAPIKey, key)

	_, err = a.SecretKey("github")
	assert.Error(t, err)

	require.NoError(t, a.SetSecret(SecretMailbox, credential.NewSecret("pw")))
	item, err := ring.Get(credential.KeyMailboxPassword)
	require.NoError(t, err)
	assert.Equal(t, "pw", string(item.Data))

	require.NoError(t, a.DeleteSecret(SecretMailbox))
	_, err = ring.Get(credential.KeyMailboxPassword)
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestSecrets_NoKeyring(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{})
	assert.ErrorIs(t, a.SetSecret(SecretAWS, credential.NewSecret("x")), errNoKeyring)
}

func TestSecretKey_AnthropicProvider(t *testing.T) {
	a, _, _, _ := newTestApp(t, mapSecrets{})
	a.cfg.Model.Provider = model.ProviderAnthropic

	key, err := a.SecretKey(SecretModel)
	require.NoError(t, err)
	assert.Equal(t, credential.KeyAnthropicAPIKey, key)
}

func TestBuild_FromConfig(t *testing.T) {
	t.Run("smtp and gemini", func(t *testing.T) {
		cfg, path := testConfig(t)
		a, err := New(context.Background(), cfg, path, nil, WithSecrets(mapSecrets{}))
		require.NoError(t, err)
		assert.IsType(t, &mailbox.SMTPSender{}, a.sender)
		assert.IsType(t, &classifier.GeminiCompleter{}, a.completer)
		assert.NotNil(t, a.lister)
	})

	t.Run("ses and anthropic", func(t *testing.T) {
		cfg, path := testConfig(t)
		cfg.Mailbox.Transport = model.TransportSES
		cfg.Mailbox.SESRegion = "eu-west-1"
		cfg.Model.Provider = model.ProviderAnthropic

		a, err := New(context.Background(), cfg, path, nil, WithSecrets(mapSecrets{}))
		require.NoError(t, err)
		assert.IsType(t, &mailbox.SESSender{}, a.sender)
		assert.IsType(t, &classifier.AnthropicCompleter{}, a.completer)
		assert.Nil(t, a.lister)
	})

	t.Run("unknown transport", func(t *testing.T) {
		cfg, path := testConfig(t)
		cfg.Mailbox.Transport = "pigeon"
		_, err := New(context.Background(), cfg, path, nil, WithSecrets(mapSecrets{}))
		assert.ErrorContains(t, err, "unknown transport")
	})

	t.Run("bad security", func(t *testing.T) {
		cfg, path := testConfig(t)
		cfg.Mailbox.IMAPSecurity = "ssl"
		_, err := New(context.Background(), cfg, path, nil, WithSecrets(mapSecrets{}))
		assert.ErrorContains(t, err, "imap_security")
	})
}
