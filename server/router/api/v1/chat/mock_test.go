package chat

import (
	"context"
	"fmt"

	"github.com/apsa-ai/nexus/ai/llm"
)

// mockStream scripts one model's streaming behavior.
type mockStream struct {
	chunks []string
	err    error // delivered after the chunks when non-nil
}

// mockLLM scripts responses per model name.
type mockLLM struct {
	streams  map[string]mockStream
	chatResp string
	chatErr  error
	jsonResp string
	jsonErr  error

	streamCalls []string // models in call order
}

func (m *mockLLM) Chat(_ context.Context, _ string, _ []llm.Message) (string, *llm.CallStats, error) {
	if m.chatErr != nil {
		return "", nil, m.chatErr
	}
	return m.chatResp, &llm.CallStats{}, nil
}

func (m *mockLLM) ChatStream(_ context.Context, model string, _ []llm.Message) (<-chan string, <-chan *llm.CallStats, <-chan error) {
	m.streamCalls = append(m.streamCalls, model)

	contentChan := make(chan string, 16)
	statsChan := make(chan *llm.CallStats, 1)
	errChan := make(chan error, 1)

	stream, ok := m.streams[model]
	if !ok {
		stream = mockStream{err: fmt.Errorf("no script for model %s", model)}
	}

	for _, chunk := range stream.chunks {
		contentChan <- chunk
	}
	close(contentChan)
	if stream.err != nil {
		errChan <- stream.err
	} else {
		statsChan <- &llm.CallStats{TotalTokens: 42}
	}
	close(statsChan)
	close(errChan)

	return contentChan, statsChan, errChan
}

func (m *mockLLM) ChatJSON(_ context.Context, _ string, _ []llm.Message, _ int) (string, *llm.CallStats, error) {
	if m.jsonErr != nil {
		return "", nil, m.jsonErr
	}
	return m.jsonResp, &llm.CallStats{}, nil
}

func (m *mockLLM) Warmup(_ context.Context, _ string) {}

// mockFetcher resolves attachments from a fixed map.
type mockFetcher struct {
	objects map[string]string // locator -> data URL
}

func (f *mockFetcher) FetchAsDataURL(_ context.Context, locator, _ string) (string, error) {
	dataURL, ok := f.objects[locator]
	if !ok {
		return "", fmt.Errorf("object not found: %s", locator)
	}
	return dataURL, nil
}
