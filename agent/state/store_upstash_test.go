package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newUpstashTestStore(t *testing.T, handler http.HandlerFunc, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	got, err := store.redisKey("abc")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "quote:session:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "quote:session:abc")
	}

	store = &UpstashRedisStore{keyPrefix: "tenant-1:"}
	if got, _ := store.redisKey("abc"); got != "tenant-1:abc" {
		t.Fatalf("redisKey() = %q, want %q", got, "tenant-1:abc")
	}
}

func TestUpstashRedisStoreRedisKeyEmptySession(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{}
	_, err := store.redisKey("   ")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidSession", err)
	}
}

func TestUpstashRedisStoreSaveWritesRecordAndIndex(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotCommands [][]any
	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotCommands); err != nil {
			t.Errorf("decode pipeline: %v", err)
		}
		fmt.Fprint(w, `[{"result":"OK"},{"result":1},{"result":0}]`)
	})

	s := newTestSession()
	s.ApplyInvocation("call_1", addLines(line("A", 10, 2)))
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if gotPath != "/pipeline" || gotAuth != "Bearer token" {
		t.Fatalf("path = %q, Authorization = %q", gotPath, gotAuth)
	}
	if len(gotCommands) != 3 {
		t.Fatalf("unexpected pipeline: %#v", gotCommands)
	}

	set := gotCommands[0]
	if len(set) != 5 || set[0] != "SET" || set[1] != "quote:session:s-1" || set[3] != "EX" || set[4] != float64(604800) {
		t.Fatalf("unexpected SET: %#v", set)
	}
	var rec SessionRecord
	if err := json.Unmarshal([]byte(set[2].(string)), &rec); err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	if rec.SessionID != "s-1" || len(rec.Quote.Items) != 1 || rec.Quote.Subtotal != 20 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.AppliedIDs) != 1 || rec.AppliedIDs[0] != "call_1" {
		t.Fatalf("unexpected applied ids: %v", rec.AppliedIDs)
	}

	zadd := gotCommands[1]
	if zadd[0] != "ZADD" || zadd[1] != "quote:session_recent" || zadd[2] != float64(1772442000) || zadd[3] != "s-1" {
		t.Fatalf("unexpected ZADD: %#v", zadd)
	}
	prune := gotCommands[2]
	if prune[0] != "ZREMRANGEBYSCORE" || prune[2] != "-inf" || prune[3] != "(1771837200" {
		t.Fatalf("unexpected prune: %#v", prune)
	}
}

func TestUpstashRedisStoreSaveWithoutTTL(t *testing.T) {
	t.Parallel()

	var gotCommands [][]any
	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommands)
		fmt.Fprint(w, `[{"result":"OK"},{"result":1}]`)
	}, WithTTL(0))

	if err := store.Save(context.Background(), newTestSession()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(gotCommands) != 2 || len(gotCommands[0]) != 3 {
		t.Fatalf("expected SET without EX and no prune, got %#v", gotCommands)
	}
}

func TestUpstashRedisStoreSavePipelineError(t *testing.T) {
	t.Parallel()

	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"result":"OK"},{"error":"WRONGTYPE"},{"result":0}]`)
	})
	err := store.Save(context.Background(), newTestSession())
	if err == nil || !strings.Contains(err.Error(), "ZADD") || !strings.Contains(err.Error(), "WRONGTYPE") {
		t.Fatalf("Save() error = %v, want ZADD failure", err)
	}

	store = newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"result":"OK"}]`)
	})
	if err := store.Save(context.Background(), newTestSession()); err == nil {
		t.Fatal("Save() expected error on short pipeline response")
	}

	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("Save(nil) error = %v", err)
	}
}

func TestUpstashRedisStoreLoadRestoresSession(t *testing.T) {
	t.Parallel()

	seed := newTestSession()
	seed.ApplyInvocation("call_1", addLines(line("A", 10, 2), line("B", 5, 1)))
	payload, err := json.Marshal(seed.Record())
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	var gotCommand []any
	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommand)
		fmt.Fprintf(w, `{"result":%s}`, encoded)
	})

	got, err := store.Load(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ID != "s-1" || len(got.Quote.Lines) != 2 || !got.Applied("call_1") {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Totals().SubtotalInclTax != 25 {
		t.Fatalf("unexpected subtotal: %v", got.Totals().SubtotalInclTax)
	}
	if gotCommand[0] != "GET" || gotCommand[1] != "quote:session:s-1" {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}

func TestUpstashRedisStoreLoadMissingAndErrors(t *testing.T) {
	t.Parallel()

	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Load() error = %v, want ErrSessionNotFound", err)
	}

	store = newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"WRONGPASS invalid token"}`)
	})
	if _, err := store.Load(context.Background(), "s-1"); err == nil || err.Error() != "WRONGPASS invalid token" {
		t.Fatalf("Load() error = %v, want redis error", err)
	}

	store = newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if err := store.Delete(context.Background(), "s-1"); err == nil {
		t.Fatal("Delete() expected error on 401")
	}
}

func TestUpstashRedisStoreDelete(t *testing.T) {
	t.Parallel()

	var gotCommands [][]any
	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommands)
		fmt.Fprint(w, `[{"result":1},{"result":1}]`)
	}, WithKeyPrefix("test:"))

	if err := store.Delete(context.Background(), "session-3"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(gotCommands) != 2 {
		t.Fatalf("unexpected pipeline: %#v", gotCommands)
	}
	if gotCommands[0][0] != "DEL" || gotCommands[0][1] != "test:session-3" {
		t.Fatalf("unexpected DEL: %#v", gotCommands[0])
	}
	if gotCommands[1][0] != "ZREM" || gotCommands[1][1] != "test_recent" || gotCommands[1][2] != "session-3" {
		t.Fatalf("unexpected ZREM: %#v", gotCommands[1])
	}
}

func TestUpstashRedisStoreRecent(t *testing.T) {
	t.Parallel()

	var gotCommand []any
	store := newUpstashTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&gotCommand)
		fmt.Fprint(w, `{"result":["s-9","s-4"]}`)
	})

	got, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0] != "s-9" || got[1] != "s-4" {
		t.Fatalf("Recent() = %v", got)
	}
	if gotCommand[0] != "ZREVRANGE" || gotCommand[1] != "quote:session_recent" || gotCommand[2] != float64(0) || gotCommand[3] != float64(4) {
		t.Fatalf("unexpected command: %#v", gotCommand)
	}
}
