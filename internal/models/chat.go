package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ChatRequest is the payload POSTed to {baseUrl}/api/v1/chat.
type ChatRequest struct {
	TenantID string `json:"tenantId"`
	Question string `json:"question"`
	AllowWeb bool   `json:"allowWeb"`
}

// ChatResponse wraps the raw JSON body returned by the chat endpoint.
// Any shape is accepted; Answer decides what gets displayed.
type ChatResponse struct {
	Raw json.RawMessage
}

// chatResponseFields holds the metadata recorded with each answered send.
type chatResponseFields struct {
	Sources []string `json:"sources"`
	ChatID  string   `json:"chatId"`
}

// ParseChatResponse validates that body is JSON and wraps it.
func ParseChatResponse(body []byte) (ChatResponse, error) {
	if !json.Valid(body) {
		return ChatResponse{}, fmt.Errorf("response body is not valid JSON")
	}
	return ChatResponse{Raw: json.RawMessage(bytes.TrimSpace(body))}, nil
}

// Answer returns the text to show for this response: the "answer" field when
// it is present and truthy, otherwise the whole body serialised the way
// JSON.stringify would print it.
func (r ChatResponse) Answer() string {
	var f struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(r.Raw, &f); err == nil && truthy(f.Answer) {
		var s string
		if err := json.Unmarshal(f.Answer, &s); err == nil {
			return s
		}
		return stringify(f.Answer)
	}
	return stringify(r.Raw)
}

// Sources returns the cited sources, if the service sent any.
func (r ChatResponse) Sources() []string {
	var f chatResponseFields
	if err := json.Unmarshal(r.Raw, &f); err != nil {
		return nil
	}
	return f.Sources
}

// ChatID returns the service-side chat identifier, if any.
func (r ChatResponse) ChatID() string {
	var f chatResponseFields
	if err := json.Unmarshal(r.Raw, &f); err != nil {
		return ""
	}
	return f.ChatID
}

// truthy applies JavaScript truthiness to a JSON value.
func truthy(v json.RawMessage) bool {
	if len(bytes.TrimSpace(v)) == 0 {
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	switch t := tok.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return err != nil || f != 0
	}
	return true
}

// stringify re-encodes a JSON value with JSON.stringify's output rules:
// no whitespace, object keys in source order, numbers in shortest form and
// only the escapes JavaScript emits.
func stringify(v json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	var b strings.Builder
	if err := writeValue(dec, &b); err != nil {
		return string(bytes.TrimSpace(v))
	}
	return b.String()
}

func writeValue(dec *json.Decoder, b *strings.Builder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			return writeObject(dec, b)
		}
		b.WriteByte('[')
		for i := 0; dec.More(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeValue(dec, b); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		b.WriteByte(']')
	case string:
		writeString(b, t)
	case json.Number:
		b.WriteString(formatNumber(t))
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case nil:
		b.WriteString("null")
	}
	return nil
}

type member struct {
	key   string
	value string
}

// writeObject emits members in JavaScript property order: array-index keys
// ascending, then the rest in first-seen order. A repeated key keeps its
// first position and its last value.
func writeObject(dec *json.Decoder, b *strings.Builder) error {
	var members []member
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var vb strings.Builder
		if err := writeValue(dec, &vb); err != nil {
			return err
		}
		if i, ok := seen[key]; ok {
			members[i].value = vb.String()
			continue
		}
		seen[key] = len(members)
		members = append(members, member{key: key, value: vb.String()})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	sort.SliceStable(members, func(i, j int) bool {
		a, aok := arrayIndex(members[i].key)
		c, cok := arrayIndex(members[j].key)
		if aok && cok {
			return a < c
		}
		return aok && !cok
	})

	b.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			b.WriteByte(',')
		}
		writeString(b, m.key)
		b.WriteByte(':')
		b.WriteString(m.value)
	}
	b.WriteByte('}')
	return nil
}

// arrayIndex reports whether key is a canonical array index (0 to 2^32-2).
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// formatNumber prints n as Number.prototype.toString would. Values that
// overflow a float64 become Infinity, which JSON.stringify writes as null.
func formatNumber(n json.Number) string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsInf(f, 0) {
		return "null"
	}
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + exp
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
