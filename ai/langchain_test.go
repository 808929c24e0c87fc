package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	err     error
	queries []string
	docs    [][]string
}

func (f *fakeClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.docs = append(f.docs, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (f *fakeClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

func TestLangchainEmbedder(t *testing.T) {
	client := &fakeClient{}
	e := NewLangchainEmbedder(client, nil)

	vector, err := e.EmbedText(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, vector)

	vectors, err := e.EmbedTexts(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vectors)
	assert.Equal(t, []string{"abc"}, client.queries)
	assert.Equal(t, [][]string{{"a", "bb"}}, client.docs)
}

func TestLangchainEmbedder_Errors(t *testing.T) {
	boom := errors.New("boom")
	e := NewLangchainEmbedder(&fakeClient{err: boom}, nil)

	_, err := e.EmbedText(context.Background(), "abc")
	assert.ErrorIs(t, err, boom)
	_, err = e.EmbedTexts(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestNewProvider(t *testing.T) {
	e := NewLangchainEmbedder(&fakeClient{}, nil)
	p := NewProvider(ProviderOpenAI, e, "nomic-embed-text", nil)

	assert.Same(t, e, p.Embedder())
	assert.Equal(t, "nomic-embed-text", p.Model())
	assert.NoError(t, p.Close())
}
