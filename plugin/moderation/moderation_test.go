package moderation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/internal/apperr"
)

type stubClassifier struct {
	result *Result
	err    error
	calls  int
}

func (s *stubClassifier) Classify(context.Context, string) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func TestGateFailsOpen(t *testing.T) {
	stub := &stubClassifier{err: errors.New("dial tcp: connection refused")}
	g := NewGate(stub, true)

	result, err := g.Check(context.Background(), "buy some pens")
	require.NoError(t, err)
	assert.False(t, result.Flagged)
	assert.Equal(t, 1, stub.calls)
}

func TestGateDisabledPassesThrough(t *testing.T) {
	stub := &stubClassifier{result: &Result{Flagged: true, Categories: []string{"hate"}}}
	g := NewGate(stub, false)

	result, err := g.Check(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, result.Flagged)
	assert.Zero(t, stub.calls)
	assert.False(t, NewGate(nil, true).Enabled())
}

func TestGateRejectsFlagged(t *testing.T) {
	stub := &stubClassifier{result: &Result{Flagged: true, Categories: []string{"violence"}}}
	g := NewGate(stub, true)

	_, err := g.Check(context.Background(), "bad text")
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindFlagged, appErr.Kind)
	assert.Equal(t, []string{"violence"}, appErr.Categories)
}

func TestOpenAIClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/moderations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"modr-1","model":"text-moderation-007","results":[
			{"flagged":true,"categories":{"violence":true,"violence/graphic":true,"hate":false}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier("test-key", srv.URL+"/v1")
	result, err := c.Classify(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, result.Flagged)
	assert.Equal(t, []string{"violence", "violence/graphic"}, result.Categories)
}

func TestOpenAIClassifierUndecodedCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"modr-2","model":"text-moderation-007","results":[
			{"flagged":true,"categories":{"harassment":true,"self-harm/intent":true,"self-harm":false}},
			{"flagged":false,"categories":{"hate":true}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClassifier("test-key", srv.URL+"/v1")
	result, err := c.Classify(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, result.Flagged)
	assert.Equal(t, []string{"unspecified"}, result.Categories)
}

func TestOpenAIClassifierNetworkErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewGate(NewOpenAIClassifier("test-key", url+"/v1"), true)
	result, err := g.Check(context.Background(), "pens")
	require.NoError(t, err)
	assert.False(t, result.Flagged)
}
