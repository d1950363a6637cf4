package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val      string
	err      error
	lastName string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.lastName = name
	return f.val, f.err
}

func TestFetchToken_JSONToken(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-json"}`}
	key, err := FetchToken(context.Background(), g, "/triage-agent/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", key)
	require.Equal(t, "/triage-agent/open-ai-token", g.lastName)
}

func TestFetchToken_MissingTokenField(t *testing.T) {
	g := &fakeGetter{val: `{"other":"value"}`}
	_, err := FetchToken(context.Background(), g, "/triage-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "is empty")
}

func TestFetchToken_MalformedJSON(t *testing.T) {
	g := &fakeGetter{val: `{"broken`}
	_, err := FetchToken(context.Background(), g, "/triage-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestFetchToken_GetterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	_, err := FetchToken(context.Background(), g, "/triage-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestFetchToken_NilGetter(t *testing.T) {
	_, err := FetchToken(context.Background(), nil, "/triage-agent/open-ai-token")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestFetchToken_EmptyName(t *testing.T) {
	_, err := FetchToken(context.Background(), &fakeGetter{val: `{"token":"x"}`}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestTokenName(t *testing.T) {
	require.Equal(t, "/triage-agent/gemini-token", TokenName("/triage-agent/", "gemini-token"))
	require.Equal(t, "/triage-agent/open-ai-token", TokenName(" /triage-agent", "/open-ai-token"))
}
