package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// streamEvent is the wire payload of put/patch stream events: a path
// relative to the subscription root and the value written there.
type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Listen opens a live subscription on the subtree at path. The server
// streams put (replace) and patch (merge) events; Listen folds them into an
// in-memory copy of the subtree and emits the complete subtree after every
// change, so consumers always see value-listener semantics: a full snapshot
// per change. The channel closes when ctx is cancelled, the connection
// drops, or the server revokes authorization.
func (c *Client) Listen(ctx context.Context, path string) (<-chan json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("listen %s: %s", path, resp.Status)
	}

	ch := make(chan json.RawMessage, 8)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()
		c.readStream(ctx, path, resp.Body, ch)
	}()
	return ch, nil
}

func (c *Client) readStream(ctx context.Context, path string, body io.Reader, ch chan<- json.RawMessage) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var tree any
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if event == "" {
				continue
			}
			next, changed, fatal := applyStreamEvent(tree, event, data)
			if fatal != nil {
				c.logger.Warn("subscription terminated by server",
					zap.String("path", path), zap.Error(fatal))
				return
			}
			tree = next
			if changed {
				snap, err := json.Marshal(tree)
				if err != nil {
					c.logger.Error("encode snapshot", zap.String("path", path), zap.Error(err))
					return
				}
				select {
				case ch <- snap:
				case <-ctx.Done():
					return
				}
			}
			event, data = "", ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.logger.Warn("subscription stream error", zap.String("path", path), zap.Error(err))
	}
}

// applyStreamEvent folds one wire event into the subtree. It returns the
// new subtree, whether a snapshot should be emitted, and a non-nil error
// for events that end the stream.
func applyStreamEvent(tree any, event, data string) (next any, changed bool, fatal error) {
	switch event {
	case "put":
		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return tree, false, nil
		}
		var val any
		_ = json.Unmarshal(evt.Data, &val)
		return putAt(tree, splitPath(evt.Path), val), true, nil
	case "patch":
		var evt streamEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			return tree, false, nil
		}
		var fields map[string]any
		if err := json.Unmarshal(evt.Data, &fields); err != nil {
			return tree, false, nil
		}
		return patchAt(tree, splitPath(evt.Path), fields), true, nil
	case "keep-alive":
		return tree, false, nil
	case "cancel", "auth_revoked":
		return tree, false, fmt.Errorf("stream closed by server: %s", event)
	default:
		return tree, false, nil
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// putAt replaces the value at segs within tree, materializing intermediate
// maps as needed. A nil value deletes the node.
func putAt(tree any, segs []string, val any) any {
	if len(segs) == 0 {
		return val
	}
	m, ok := tree.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := putAt(m[segs[0]], segs[1:], val)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// patchAt merges fields into the map at segs. Nil field values delete keys.
func patchAt(tree any, segs []string, fields map[string]any) any {
	merged := make(map[string]any, len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	if len(segs) == 0 {
		m, ok := tree.(map[string]any)
		if !ok {
			m = make(map[string]any)
		}
		for k, v := range merged {
			if v == nil {
				delete(m, k)
			} else {
				m[k] = v
			}
		}
		if len(m) == 0 {
			return nil
		}
		return m
	}
	m, ok := tree.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := patchAt(m[segs[0]], segs[1:], merged)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// DecodeChildren unmarshals a subtree snapshot into its keyed children and
// returns the child keys in ascending order. Push keys encode their
// creation time, so this is also chronological order.
func DecodeChildren[T any](snapshot json.RawMessage) (map[string]T, []string, error) {
	if len(snapshot) == 0 || isNull(snapshot) {
		return nil, nil, nil
	}
	var children map[string]T
	if err := json.Unmarshal(snapshot, &children); err != nil {
		return nil, nil, fmt.Errorf("decode children: %w", err)
	}
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return children, keys, nil
}
