package thread

import (
	"testing"
	"time"

	"github.com/springsconnect/springs/internal/message"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func tempMsg(id, text string, at time.Time) message.Message {
	return message.Message{
		ID: id, ChatID: "room1", FromUserID: "alice", ToUserID: "bob",
		Kind: message.KindText, Text: text, CreatedAt: at, Status: message.StatusSending,
	}
}

func TestReplaceKeepsLength(t *testing.T) {
	th := New("room1")
	th.Append(message.Message{ID: "srv0", ChatID: "room1", CreatedAt: t0, Status: message.StatusSeen})
	th.Append(tempMsg("temp_1", "Hello", t0.Add(time.Second)))

	before := th.Len()
	got := th.Replace("temp_1", message.Message{
		ID: "srv1", ChatID: "room1", FromUserID: "alice", ToUserID: "bob",
		Text: "Hello", CreatedAt: t0.Add(time.Second), Status: message.StatusSent,
	})

	if th.Len() != before {
		t.Errorf("len = %d, want %d", th.Len(), before)
	}
	if got.ID != "srv1" {
		t.Errorf("replaced id = %q, want srv1", got.ID)
	}
	if _, ok := th.Get("temp_1"); ok {
		t.Error("temp entry still present after Replace")
	}
}

// TestReplaceAfterSocketEcho covers the race where the socket delivers the
// confirmed message before the HTTP response returns.
func TestReplaceAfterSocketEcho(t *testing.T) {
	th := New("room1")
	th.Append(tempMsg("temp_1", "Hello", t0))

	echo := message.Message{
		ID: "srv1", ChatID: "room1", FromUserID: "alice", ToUserID: "bob",
		Text: "Hello", CreatedAt: t0, Status: message.StatusSent,
	}
	if _, changed := th.Merge(echo); !changed {
		t.Fatal("Merge(echo) should replace pending temp")
	}
	if th.Len() != 1 {
		t.Fatalf("len after echo = %d, want 1", th.Len())
	}

	echo.Status = message.StatusDelivered
	got := th.Replace("temp_1", echo)
	if th.Len() != 1 {
		t.Errorf("len after Replace = %d, want 1 (no duplicate)", th.Len())
	}
	if got.Status != message.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestMergePairsEchoWithOldestIdenticalTemp(t *testing.T) {
	// Map iteration order varies, so repeat to catch a lucky pick.
	for range 50 {
		th := New("room1")
		th.Append(tempMsg("temp_4", "ok", t0.Add(2*time.Second)))
		th.Append(tempMsg("temp_2", "ok", t0.Add(time.Second)))
		th.Append(tempMsg("temp_3", "ok", t0.Add(time.Second)))
		th.Append(tempMsg("temp_1", "ok", t0))

		echo := message.Message{
			ID: "srv1", ChatID: "room1", FromUserID: "alice", ToUserID: "bob",
			Text: "ok", CreatedAt: t0, Status: message.StatusSent,
		}
		if _, changed := th.Merge(echo); !changed {
			t.Fatal("Merge(echo) should replace a pending temp")
		}
		if _, ok := th.Get("temp_1"); ok {
			t.Fatal("echo did not replace the oldest temp entry")
		}

		echo.ID = "srv2"
		th.Merge(echo)
		if _, ok := th.Get("temp_2"); ok {
			t.Fatal("second echo did not take the lower id among equal timestamps")
		}
		if _, ok := th.Get("temp_3"); !ok {
			t.Fatal("temp_3 replaced out of order")
		}
		if th.Len() != 4 {
			t.Fatalf("len = %d, want 4", th.Len())
		}
	}
}

func TestMergeDedupByID(t *testing.T) {
	th := New("room1")
	m := message.Message{ID: "srv1", FromUserID: "bob", ToUserID: "alice", Text: "hi", CreatedAt: t0}
	if _, changed := th.Merge(m); !changed {
		t.Fatal("first Merge should add")
	}
	if _, changed := th.Merge(m); changed {
		t.Error("second Merge with same id should be discarded")
	}
	if th.Len() != 1 {
		t.Errorf("len = %d, want 1", th.Len())
	}
}

func TestMergeIgnoresFailedTemp(t *testing.T) {
	th := New("room1")
	failed := tempMsg("temp_1", "Hello", t0)
	failed.Status = message.StatusFailed
	th.Append(failed)

	th.Merge(message.Message{ID: "srv1", FromUserID: "alice", ToUserID: "bob", Text: "Hello", CreatedAt: t0})
	if th.Len() != 2 {
		t.Errorf("len = %d, want 2 (failed entries are not matched)", th.Len())
	}
}

func TestSetStatusMonotonic(t *testing.T) {
	th := New("room1")
	th.Append(message.Message{ID: "srv1", CreatedAt: t0, Status: message.StatusDelivered})

	if _, changed := th.SetStatus("srv1", message.StatusSent); changed {
		t.Error("delivered -> sent should be ignored")
	}
	if _, changed := th.SetStatus("srv1", message.StatusSeen); !changed {
		t.Error("delivered -> seen should apply")
	}
	if _, changed := th.SetStatus("srv1", message.StatusSeen); changed {
		t.Error("repeated seen should be a no-op")
	}
	m, _ := th.Get("srv1")
	if m.Status != message.StatusSeen {
		t.Errorf("status = %s, want seen", m.Status)
	}
}

func TestRekeyStartsFreshStatus(t *testing.T) {
	th := New("room1")
	failed := tempMsg("temp_1", "Hello", t0)
	failed.Status = message.StatusFailed
	th.Append(failed)

	m, ok := th.Rekey("temp_1", "temp_2", message.StatusSending)
	if !ok {
		t.Fatal("Rekey returned false")
	}
	if m.ID != "temp_2" || m.Status != message.StatusSending {
		t.Errorf("rekeyed = %s/%s, want temp_2/sending", m.ID, m.Status)
	}
	if _, ok := th.Get("temp_1"); ok {
		t.Error("old id still present")
	}
	if th.Len() != 1 {
		t.Errorf("len = %d, want 1", th.Len())
	}
}

func TestMessagesOrdered(t *testing.T) {
	th := New("room1")
	th.Append(tempMsg("temp_3", "c", t0.Add(3*time.Second)))
	th.Append(tempMsg("temp_1", "a", t0.Add(1*time.Second)))
	th.Append(tempMsg("temp_2", "b", t0.Add(2*time.Second)))

	msgs := th.Messages()
	for i, want := range []string{"a", "b", "c"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
}

func TestRegistryFind(t *testing.T) {
	r := NewRegistry()
	r.Get("room1").Append(tempMsg("temp_1", "x", t0))
	r.Get("room2").Append(message.Message{ID: "srv9", ChatID: "room2", CreatedAt: t0})

	th, m, ok := r.Find("srv9")
	if !ok || th.ChatID() != "room2" || m.ID != "srv9" {
		t.Errorf("Find(srv9) = %v, %v, %v", th, m.ID, ok)
	}
	if _, _, ok := r.Find("missing"); ok {
		t.Error("Find(missing) should be false")
	}
}
