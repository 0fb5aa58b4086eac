package replay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	objects map[string][]byte
	putErr  error
	listErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: make(map[string][]byte)}
}

func (f *fakeRemote) Put(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	return nil
}

func (f *fakeRemote) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeRemote) List(ctx context.Context, prefix string) ([]RemoteObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []RemoteObject
	now := time.Now()
	for k := range f.objects {
		out = append(out, RemoteObject{Key: k, ModifiedAt: now})
		now = now.Add(time.Second)
	}
	return out, nil
}

func TestWriteReadLocalRoundTrip(t *testing.T) {
	s := New(zerolog.Nop(), ModeLocal, t.TempDir(), nil)
	require.NoError(t, s.Write(context.Background(), "match_1", []byte(`{"ok":true}`)))

	data, err := s.Read(context.Background(), "match_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestWriteRejectsUnsafeID(t *testing.T) {
	s := New(zerolog.Nop(), ModeLocal, t.TempDir(), nil)
	err := s.Write(context.Background(), "../escape", []byte("x"))
	assert.Error(t, err)
}

func TestWriteBothModeSwallowsRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.putErr = errors.New("upload failed")
	s := New(zerolog.Nop(), ModeBoth, t.TempDir(), remote)

	err := s.Write(context.Background(), "match_1", []byte("x"))
	require.NoError(t, err, "local write should still succeed even if remote fails in both mode")

	data, err := s.Read(context.Background(), "match_1")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestWriteRemoteModePropagatesFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.putErr = errors.New("upload failed")
	s := New(zerolog.Nop(), ModeRemote, t.TempDir(), remote)

	err := s.Write(context.Background(), "match_1", []byte("x"))
	assert.Error(t, err)
}

func TestReadFallsBackToRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.objects["match_1.json"] = []byte(`{"remote":true}`)
	s := New(zerolog.Nop(), ModeBoth, t.TempDir(), remote)

	data, err := s.Read(context.Background(), "match_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"remote":true}`, string(data))
}

func TestListCapsAt200AndDedupes(t *testing.T) {
	dir := t.TempDir()
	remote := newFakeRemote()
	s := New(zerolog.Nop(), ModeBoth, dir, remote)

	require.NoError(t, s.Write(context.Background(), "local_only", []byte("x")))
	remote.objects["local_only.json"] = []byte("dup")
	for i := 0; i < 250; i++ {
		remote.objects[keyForIndex(i)] = []byte("x")
	}

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(ids), 200)
}

func keyForIndex(i int) string {
	return fmt.Sprintf("remote_%03d.json", i)
}

func TestWriteJSONReadJSON(t *testing.T) {
	s := New(zerolog.Nop(), ModeLocal, t.TempDir(), nil)
	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, s.WriteJSON(context.Background(), "p1", payload{Name: "arena-1"}))

	var out payload
	require.NoError(t, s.ReadJSON(context.Background(), "p1", &out))
	assert.Equal(t, "arena-1", out.Name)
}
