package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestApplyStreamEventPutReplacesSubtree(t *testing.T) {
	tree, changed, fatal := applyStreamEvent(nil, "put", `{"path":"/","data":{"m1":{"content":"hi"}}}`)
	if fatal != nil || !changed {
		t.Fatalf("changed=%v fatal=%v", changed, fatal)
	}

	tree, changed, _ = applyStreamEvent(tree, "put", `{"path":"/m2","data":{"content":"yo"}}`)
	if !changed {
		t.Fatal("nested put should emit")
	}

	m := tree.(map[string]any)
	if len(m) != 2 {
		t.Fatalf("got %d children, want 2", len(m))
	}
	if m["m2"].(map[string]any)["content"] != "yo" {
		t.Errorf("nested put not applied: %v", m)
	}
}

func TestApplyStreamEventPutNilDeletes(t *testing.T) {
	tree, _, _ := applyStreamEvent(nil, "put", `{"path":"/","data":{"m1":{"content":"hi"},"m2":{"content":"yo"}}}`)
	tree, changed, _ := applyStreamEvent(tree, "put", `{"path":"/m1","data":null}`)
	if !changed {
		t.Fatal("delete should emit")
	}
	m := tree.(map[string]any)
	if _, ok := m["m1"]; ok {
		t.Error("m1 should be deleted")
	}
	if _, ok := m["m2"]; !ok {
		t.Error("m2 should survive")
	}
}

func TestApplyStreamEventPatchMerges(t *testing.T) {
	tree, _, _ := applyStreamEvent(nil, "put", `{"path":"/","data":{"c1":{"lastMessage":"old","timestamp":1}}}`)
	tree, changed, _ := applyStreamEvent(tree, "patch", `{"path":"/c1","data":{"lastMessage":"new"}}`)
	if !changed {
		t.Fatal("patch should emit")
	}
	c1 := tree.(map[string]any)["c1"].(map[string]any)
	if c1["lastMessage"] != "new" {
		t.Errorf("lastMessage = %v, want new", c1["lastMessage"])
	}
	if c1["timestamp"] != float64(1) {
		t.Errorf("timestamp = %v, want untouched 1", c1["timestamp"])
	}
}

func TestApplyStreamEventKeepAliveAndCancel(t *testing.T) {
	_, changed, fatal := applyStreamEvent(nil, "keep-alive", "null")
	if changed || fatal != nil {
		t.Error("keep-alive must not emit or terminate")
	}

	_, _, fatal = applyStreamEvent(nil, "auth_revoked", `"token expired"`)
	if fatal == nil {
		t.Error("auth_revoked must terminate the stream")
	}
}

func TestListenEmitsFullSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "expected event stream", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, "event: put\ndata: {\"path\":\"/\",\"data\":{\"c1\":{\"lastMessage\":\"hi\"}}}\n\n")
		fl.Flush()
		fmt.Fprint(w, "event: keep-alive\ndata: null\n\n")
		fl.Flush()
		fmt.Fprint(w, "event: patch\ndata: {\"path\":\"/c1\",\"data\":{\"lastMessage\":\"bye\"}}\n\n")
		fl.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewClient(srv.URL, nil, nil)
	ch, err := c.Listen(ctx, "user-conversations/u1")
	if err != nil {
		t.Fatal(err)
	}

	read := func() map[string]map[string]any {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("stream closed early")
			}
			var out map[string]map[string]any
			if err := json.Unmarshal(snap, &out); err != nil {
				t.Fatal(err)
			}
			return out
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for snapshot")
			return nil
		}
	}

	first := read()
	if first["c1"]["lastMessage"] != "hi" {
		t.Errorf("first snapshot = %v", first)
	}
	// keep-alive must not produce a snapshot; next read sees the patch.
	second := read()
	if second["c1"]["lastMessage"] != "bye" {
		t.Errorf("second snapshot = %v", second)
	}
}

func TestDecodeChildrenSortsKeys(t *testing.T) {
	snap := json.RawMessage(`{"b":{"content":"2"},"a":{"content":"1"},"c":{"content":"3"}}`)
	children, keys, err := DecodeChildren[map[string]string](snap)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 3 {
		t.Fatalf("got %d children", len(children))
	}
	want := []string{"a", "b", "c"}
	for i, k := range keys {
		if k != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, k, want[i])
		}
	}
}

func TestDecodeChildrenNull(t *testing.T) {
	children, keys, err := DecodeChildren[map[string]string](json.RawMessage("null"))
	if err != nil || children != nil || keys != nil {
		t.Errorf("null snapshot should decode to nothing, got %v %v %v", children, keys, err)
	}
}
