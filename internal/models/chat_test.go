package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatResponse_Answer(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string answer", `{"answer":"hi"}`, "hi"},
		{"answer with odd sources", `{"answer":"x","sources":[1,2]}`, "x"},
		{"object answer", `{"answer":{"text":"hi"}}`, `{"text":"hi"}`},
		{"true answer", `{"answer":true}`, "true"},
		{"zero answer", `{"answer":0.0}`, `{"answer":0}`},
		{"negative zero answer", `{"answer":-0}`, `{"answer":0}`},
		{"false answer", `{"answer":false, "why": "policy"}`, `{"answer":false,"why":"policy"}`},
		{"array body", `[1, 2]`, `[1,2]`},
		{"string body", `"plain"`, `"plain"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ParseChatResponse([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Answer())
		})
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unicode escapes decoded", `{"a":"caf\u00e9"}`, `{"a":"café"}`},
		{"html left alone", `{"s":"<&>"}`, `{"s":"<&>"}`},
		{"line separator left raw", `{"s":"\u2028"}`, "{\"s\":\"\u2028\"}"},
		{"control characters", `{"t":"a\u0001b\n\/"}`, `{"t":"a\u0001b\n/"}`},
		{"trailing zeros", `{"n":1.50}`, `{"n":1.5}`},
		{"exponent forms", `[1e21, 1E-7, 0.000001, 1e2, -0.0]`, `[1e+21,1e-7,0.000001,100,0]`},
		{"overflow", `[1e400]`, `[null]`},
		{"index keys first", `{"b":1,"2":"x","a":2,"1":"y","01":3}`, `{"1":"y","2":"x","b":1,"a":2,"01":3}`},
		{"duplicate key", `{"k":1,"j":0,"k":2}`, `{"k":2,"j":0}`},
		{"nested", ` { "a" : [ { "b" : null } ] } `, `{"a":[{"b":null}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stringify([]byte(tc.in)))
		})
	}
}

func TestChatResponse_Metadata(t *testing.T) {
	resp, err := ParseChatResponse([]byte(`{"answer":"a","chatId":"c-1","sources":["x.md"]}`))
	require.NoError(t, err)
	assert.Equal(t, "c-1", resp.ChatID())
	assert.Equal(t, []string{"x.md"}, resp.Sources())

	resp, err = ParseChatResponse([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, resp.ChatID())
	assert.Nil(t, resp.Sources())
}

func TestParseChatResponse_Invalid(t *testing.T) {
	_, err := ParseChatResponse([]byte("<html>oops</html>"))
	assert.Error(t, err)
}
