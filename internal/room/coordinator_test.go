package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicholasgriffintn/threatjam.com/internal/models"
	"github.com/nicholasgriffintn/threatjam.com/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	c := NewCoordinator("test-room", st, zerolog.Nop(), time.Second)
	return c, st
}

// fakeChannel collects everything sent to it. With fail set it refuses
// every send, simulating a broken connection.
type fakeChannel struct {
	mu   sync.Mutex
	fail bool
	msgs []*Message
}

func (c *fakeChannel) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken channel")
	}
	msg := &Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) received() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeChannel) countType(msgType string) int {
	n := 0
	for _, m := range c.received() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Close()                            {}
func (failingStore) Ping(ctx context.Context) error    { return errors.New("down") }
func (failingStore) GetRoom(ctx context.Context, roomID string) (*models.RoomRecord, error) {
	return nil, errors.New("down")
}
func (failingStore) PutRoom(ctx context.Context, roomID string, record *models.RoomRecord) error {
	return errors.New("down")
}

func TestCreateInitializesRoom(t *testing.T) {
	c, _ := newTestCoordinator(t)

	record, err := c.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if record.Key != "test-room" {
		t.Errorf("expected key %q, got %q", "test-room", record.Key)
	}
	if len(record.Users) != 1 || record.Users[0] != "alice" {
		t.Errorf("expected users [alice], got %v", record.Users)
	}
	if record.Moderator != "alice" {
		t.Errorf("expected moderator alice, got %q", record.Moderator)
	}
	if !record.ConnectedUsers["alice"] {
		t.Error("expected alice marked connected")
	}
}

func TestCreateTwiceFails(t *testing.T) {
	c, st := newTestCoordinator(t)

	first, err := c.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Create(context.Background(), "bob")
	if !errors.Is(err, ErrRoomAlreadyExists) {
		t.Fatalf("expected ErrRoomAlreadyExists, got %v", err)
	}

	// The stored record is unchanged from the first create.
	stored, err := st.GetRoom(context.Background(), c.RoomID())
	if err != nil {
		t.Fatal(err)
	}
	if stored.Moderator != first.Moderator || len(stored.Users) != 1 {
		t.Errorf("record changed by failed create: %+v", stored)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.Join(context.Background(), "bob")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestJoinIsIdempotentForMembers(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	if _, err := c.Join(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}
	record, err := c.Join(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}

	if len(record.Users) != 2 {
		t.Errorf("expected 2 users after repeated join, got %v", record.Users)
	}
}

func TestConcurrentJoinsLoseNothing(t *testing.T) {
	c, st := newTestCoordinator(t)
	mustCreate(t, c, "creator")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Join(context.Background(), fmt.Sprintf("user-%d", i)); err != nil {
				t.Errorf("join %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := st.GetRoom(context.Background(), c.RoomID())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Users) != n+1 {
		t.Fatalf("expected %d users, got %d: %v", n+1, len(stored.Users), stored.Users)
	}
	seen := make(map[string]bool)
	for _, u := range stored.Users {
		if seen[u] {
			t.Errorf("duplicate user %q", u)
		}
		seen[u] = true
	}
	for i := 0; i < n; i++ {
		if !seen[fmt.Sprintf("user-%d", i)] {
			t.Errorf("missing user-%d", i)
		}
	}
}

func TestBroadcastOrderMatchesCommitOrder(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "creator")

	observer := &fakeChannel{}
	mustConnect(t, c, observer, "creator")

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Join(context.Background(), fmt.Sprintf("user-%d", i)); err != nil {
				t.Errorf("join %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	// Joins only ever add members, so an observer receiving snapshots in
	// commit order never sees the member count shrink.
	last := 0
	for _, m := range observer.received() {
		if m.RoomData == nil {
			continue
		}
		got := len(m.RoomData.Users)
		if got < last {
			t.Fatalf("snapshot with %d users arrived after one with %d", got, last)
		}
		last = got
	}
	if last != n+1 {
		t.Fatalf("final snapshot has %d users, want %d", last, n+1)
	}
}

func TestConnectSendsInitializeToNewChannelOnly(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	observer := &fakeChannel{}
	if err := c.Connect(context.Background(), observer, "alice"); err != nil {
		t.Fatal(err)
	}

	newcomer := &fakeChannel{}
	if err := c.Connect(context.Background(), newcomer, "bob"); err != nil {
		t.Fatal(err)
	}

	if got := newcomer.countType(MessageInitialize); got != 1 {
		t.Errorf("newcomer expected exactly 1 initialize, got %d", got)
	}
	if got := observer.countType(MessageInitialize); got != 1 {
		t.Errorf("observer expected only its own initialize, got %d", got)
	}

	// The initialize snapshot carries full state.
	var init *Message
	for _, m := range newcomer.received() {
		if m.Type == MessageInitialize {
			init = m
		}
	}
	if init.RoomData == nil || !init.RoomData.ConnectedUsers["bob"] {
		t.Errorf("initialize missing room state: %+v", init.RoomData)
	}
}

func TestModeratorFailoverDeterminism(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	chA := &fakeChannel{}
	chB := &fakeChannel{}
	chC := &fakeChannel{}
	mustConnect(t, c, chA, "alice")
	mustConnect(t, c, chB, "bob")
	mustConnect(t, c, chC, "carol")

	if err := c.Disconnect(context.Background(), chA); err != nil {
		t.Fatal(err)
	}

	// bob is the earliest joiner still connected.
	var promoted string
	for _, m := range chB.received() {
		if m.Type == MessageNewModerator {
			promoted = m.Name
		}
	}
	if promoted != "bob" {
		t.Errorf("expected moderator bob, got %q", promoted)
	}
}

func TestModeratorUnchangedWhenNobodyConnected(t *testing.T) {
	c, st := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	chA := &fakeChannel{}
	mustConnect(t, c, chA, "alice")

	if err := c.Disconnect(context.Background(), chA); err != nil {
		t.Fatal(err)
	}

	stored, err := st.GetRoom(context.Background(), c.RoomID())
	if err != nil {
		t.Fatal(err)
	}
	if stored.Moderator != "alice" {
		t.Errorf("moderator should stay alice with nobody connected, got %q", stored.Moderator)
	}
	if stored.ConnectedUsers["alice"] {
		t.Error("alice should be marked disconnected")
	}
}

func TestMultiSessionDisconnectSuppression(t *testing.T) {
	c, st := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	observer := &fakeChannel{}
	mustConnect(t, c, observer, "alice")

	tab1 := &fakeChannel{}
	tab2 := &fakeChannel{}
	mustConnect(t, c, tab1, "bob")
	mustConnect(t, c, tab2, "bob")

	before := observer.countType(MessageUserConnectionStatus)

	// Closing one of two tabs changes nothing.
	if err := c.Disconnect(context.Background(), tab1); err != nil {
		t.Fatal(err)
	}
	if got := observer.countType(MessageUserConnectionStatus); got != before {
		t.Errorf("expected no broadcast after first tab close, got %d new", got-before)
	}
	stored, _ := st.GetRoom(context.Background(), c.RoomID())
	if !stored.ConnectedUsers["bob"] {
		t.Error("bob should still be connected with one tab open")
	}

	// Closing the last tab emits exactly one status broadcast.
	if err := c.Disconnect(context.Background(), tab2); err != nil {
		t.Fatal(err)
	}
	if got := observer.countType(MessageUserConnectionStatus); got != before+1 {
		t.Errorf("expected exactly one broadcast after last tab close, got %d new", got-before)
	}
	stored, _ = st.GetRoom(context.Background(), c.RoomID())
	if stored.ConnectedUsers["bob"] {
		t.Error("bob should be disconnected after last tab close")
	}
}

func TestSettingsMergeNonDestructive(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	if _, err := c.UpdateSettings(context.Background(), "alice", settingsPatch(t, `{"x":1}`)); err != nil {
		t.Fatal(err)
	}
	merged, err := c.UpdateSettings(context.Background(), "alice", settingsPatch(t, `{"y":2}`))
	if err != nil {
		t.Fatal(err)
	}
	assertSetting(t, merged, "x", "1")
	assertSetting(t, merged, "y", "2")

	merged, err = c.UpdateSettings(context.Background(), "alice", settingsPatch(t, `{"x":3}`))
	if err != nil {
		t.Fatal(err)
	}
	assertSetting(t, merged, "x", "3")
	assertSetting(t, merged, "y", "2")
}

func TestSettingsMergeTypedFields(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	if _, err := c.UpdateSettings(context.Background(), "alice", settingsPatch(t, `{"diagram":"graph TD; A-->B","theme":"dark"}`)); err != nil {
		t.Fatal(err)
	}
	merged, err := c.UpdateSettings(context.Background(), "alice", settingsPatch(t, `{"theme":"light"}`))
	if err != nil {
		t.Fatal(err)
	}

	if merged.Diagram == nil || *merged.Diagram != "graph TD; A-->B" {
		t.Errorf("diagram lost by unrelated update: %v", merged.Diagram)
	}
	if merged.Theme == nil || *merged.Theme != "light" {
		t.Errorf("theme not updated: %v", merged.Theme)
	}
}

func TestUpdateSettingsForbiddenForNonModerator(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")
	if _, err := c.Join(context.Background(), "bob"); err != nil {
		t.Fatal(err)
	}

	_, err := c.UpdateSettings(context.Background(), "bob", settingsPatch(t, `{"x":1}`))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestChannelUpdateSilentForNonModerator(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	chBob := &fakeChannel{}
	mustConnect(t, c, chBob, "bob")

	before := len(chBob.received())
	c.HandleChannelMessage(context.Background(), chBob,
		[]byte(`{"type":"updateSettings","settings":{"x":1}}`))

	// No error reply, no settingsUpdated broadcast, state untouched.
	if got := len(chBob.received()); got != before {
		t.Errorf("expected silence for non-moderator channel update, got %d new messages", got-before)
	}
	settings, err := c.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := settings.Extra["x"]; ok {
		t.Error("settings changed by non-moderator update")
	}
}

func TestChannelUpdateAppliedForModerator(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	chAlice := &fakeChannel{}
	mustConnect(t, c, chAlice, "alice")

	c.HandleChannelMessage(context.Background(), chAlice,
		[]byte(`{"type":"updateSettings","settings":{"diagram":"flow"}}`))

	if got := chAlice.countType(MessageSettingsUpdated); got != 1 {
		t.Fatalf("expected 1 settingsUpdated broadcast, got %d", got)
	}
	settings, err := c.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settings.Diagram == nil || *settings.Diagram != "flow" {
		t.Errorf("diagram not applied: %v", settings.Diagram)
	}
}

func TestMalformedChannelMessage(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	offender := &fakeChannel{}
	bystander := &fakeChannel{}
	mustConnect(t, c, offender, "alice")
	mustConnect(t, c, bystander, "bob")

	bystanderBefore := len(bystander.received())
	c.HandleChannelMessage(context.Background(), offender, []byte(`{not json`))

	if got := offender.countType(MessageError); got != 1 {
		t.Errorf("expected 1 error reply to offender, got %d", got)
	}
	if got := len(bystander.received()); got != bystanderBefore {
		t.Error("bystander should not see the error reply")
	}
}

func TestUnknownChannelMessageIgnored(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	ch := &fakeChannel{}
	mustConnect(t, c, ch, "alice")

	before := len(ch.received())
	c.HandleChannelMessage(context.Background(), ch, []byte(`{"type":"drawPony"}`))
	if got := len(ch.received()); got != before {
		t.Errorf("unknown message type should be ignored, got %d new messages", got-before)
	}
}

func TestBroadcastIsolation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	mustCreate(t, c, "alice")

	healthy1 := &fakeChannel{}
	broken := &fakeChannel{fail: true}
	healthy2 := &fakeChannel{}
	mustConnect(t, c, healthy1, "alice")
	c.Registry().Add(broken, "ghost", "test-room")
	mustConnect(t, c, healthy2, "bob")

	if _, err := c.Join(context.Background(), "carol"); err != nil {
		t.Fatalf("join should succeed despite broken channel: %v", err)
	}

	if got := healthy1.countType(MessageUserJoined); got != 1 {
		t.Errorf("healthy1 expected userJoined, got %d", got)
	}
	if got := healthy2.countType(MessageUserJoined); got != 1 {
		t.Errorf("healthy2 expected userJoined, got %d", got)
	}
}

func TestStorageUnavailable(t *testing.T) {
	c := NewCoordinator("test-room", failingStore{}, zerolog.Nop(), time.Second)

	_, err := c.Create(context.Background(), "alice")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}

	_, err = c.GetSettings(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestGetSettingsUnknownRoom(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.GetSettings(context.Background())
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func mustCreate(t *testing.T, c *Coordinator, name string) {
	t.Helper()
	if _, err := c.Create(context.Background(), name); err != nil {
		t.Fatal(err)
	}
}

func mustConnect(t *testing.T, c *Coordinator, ch Channel, name string) {
	t.Helper()
	if err := c.Connect(context.Background(), ch, name); err != nil {
		t.Fatal(err)
	}
}

func settingsPatch(t *testing.T, raw string) models.Settings {
	t.Helper()
	var s models.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func assertSetting(t *testing.T, s models.Settings, key, want string) {
	t.Helper()
	got, ok := s.Extra[key]
	if !ok {
		t.Fatalf("setting %q missing", key)
	}
	if string(got) != want {
		t.Errorf("setting %q = %s, want %s", key, got, want)
	}
}
