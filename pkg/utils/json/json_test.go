package json

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type chatBody struct {
	Choices []chatChoice `json:"choices"`
}

func TestUnmarshalChatCompletion(t *testing.T) {
	var body chatBody
	err := Unmarshal([]byte(`{"choices":[{"message":{"content":"Paris."}}]}`), &body)
	require.NoError(t, err)
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "Paris.", body.Choices[0].Message.Content)
}

func TestMarshalKeepsFieldOrder(t *testing.T) {
	out, err := Marshal(struct {
		Answer string `json:"answer"`
	}{Answer: "Não sei."})
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"Não sei."}`, string(out))
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"k": 1}))

	var got map[string]int
	require.NoError(t, NewDecoder(strings.NewReader(buf.String())).Decode(&got))
	assert.Equal(t, 1, got["k"])
}

func TestDecodeMalformed(t *testing.T) {
	var body chatBody
	assert.Error(t, Unmarshal([]byte(`{"choices":`), &body))
}

func TestIsUsingSonic(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}
