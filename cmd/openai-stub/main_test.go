package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestReply_EchoesFirstValue(t *testing.T) {
	var req chatRequest
	body := `{"model":"m","messages":[{"role":"system","content":"You review economic indicators extracted from a statistics web page."},{"role":"user","content":"Source: x\n\nExtracted values:\n- Inflation: 7.1 % (2023)\n- Taux directeur: 8 %\n"}]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := reply(req)
	if !ok || !strings.Contains(got, "Inflation: 7.1 % (2023)") {
		t.Fatalf("reply = %q, %v", got, ok)
	}
	req.Messages[0].Content = "something else"
	if _, ok := reply(req); ok {
		t.Fatalf("expected unknown prompt to be refused")
	}
}
