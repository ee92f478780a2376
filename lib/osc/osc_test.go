package osc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) (*Router, *Server, *Client) {
	t.Helper()
	router := NewRouter()
	srv, err := Listen("127.0.0.1:0", router)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := Dial(srv.Addr().String())
	require.NoError(t, err)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { client.Close() })

	return router, srv, client
}

func TestBuildParse(t *testing.T) {
	msg := Build("/take/force", int32(-3), 7, int64(1<<40), float32(0.5), 0.25, "intro", []byte{1, 2, 3}, true, false, nil)
	assert.Zero(t, len(msg)%4, "messages are 4-byte aligned")

	addr, args, err := Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "/take/force", addr)
	assert.Equal(t, []any{int32(-3), int32(7), int64(1 << 40), float32(0.5), 0.25, "intro", []byte{1, 2, 3}, true, false, nil}, args)
}

func TestParseWithoutTypeTags(t *testing.T) {
	addr, args, err := Parse([]byte("/done\x00\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, "/done", addr)
	assert.Empty(t, args)
}

func TestParseMalformed(t *testing.T) {
	for name, data := range map[string][]byte{
		"short":          []byte("/a"),
		"no slash":       []byte("take\x00\x00\x00\x00"),
		"truncated int":  Build("/take", int32(1))[:14],
		"unknown tag":    append(appendString(nil, "/x"), appendString(nil, ",q")...),
		"unterminated":   []byte("/take"),
		"truncated blob": Build("/b", []byte{1, 2, 3, 4, 5})[:16],
	} {
		_, _, err := Parse(data)
		assert.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestSLIPFraming(t *testing.T) {
	payload := []byte{'a', slipEnd, 'b', slipEsc, 'c'}
	framed := frame(payload)
	assert.Equal(t, []byte{slipEnd, 'a', slipEsc, slipEscEnd, 'b', slipEsc, slipEscEsc, 'c', slipEnd}, framed)

	var stream bytes.Buffer
	stream.Write(framed)
	stream.Write([]byte{slipEnd})
	stream.Write(frame([]byte("second")))

	sc := bufio.NewScanner(&stream)
	sc.Split(scanFrames)
	var got [][]byte
	for sc.Scan() {
		got = append(got, append([]byte(nil), sc.Bytes()...))
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, [][]byte{payload, []byte("second")}, got)
}

func TestRequestReply(t *testing.T) {
	router, _, client := setupTest(t)
	router.Handle("/take", func(_ string, args []any) (any, error) {
		id, err := Ident(args, 0)
		if err != nil {
			return nil, err
		}
		force, err := Bool(args, 1, false)
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "force": force}, nil
	})

	var got struct {
		ID    string `json:"id"`
		Force bool   `json:"force"`
	}
	require.NoError(t, client.RequestJSON(&got, "/take", int32(4), int32(1)))
	assert.Equal(t, "4", got.ID)
	assert.True(t, got.Force)

	require.NoError(t, client.RequestJSON(&got, "/take", "intro"))
	assert.Equal(t, "intro", got.ID)
	assert.False(t, got.Force)
}

func TestRequestErrors(t *testing.T) {
	router, _, client := setupTest(t)
	router.Handle("/fail", func(string, []any) (any, error) {
		return nil, errors.New("source not found")
	})

	reply, err := client.Request("/fail")
	require.Error(t, err)
	assert.Equal(t, StatusError, reply.Status)
	assert.Equal(t, "source not found", reply.Error)

	reply, err = client.Request("/nothing/here")
	require.Error(t, err)
	assert.Equal(t, StatusNotFound, reply.Status)

	router.Handle("/args", func(_ string, args []any) (any, error) {
		_, err := Int(args, 0)
		return nil, err
	})
	reply, err = client.Request("/args", []byte{1})
	require.Error(t, err)
	assert.Contains(t, reply.Error, ErrBadArgs.Error())
}

func TestPrefixRoutes(t *testing.T) {
	router, _, client := setupTest(t)
	router.HandlePrefix("/trigger/", func(suffix string, args []any) (any, error) {
		level, err := Bool(args, 0, true)
		return fmt.Sprintf("%s=%v", suffix, level), err
	})
	router.HandlePrefix("/trigger/foot/", func(suffix string, _ []any) (any, error) {
		return "foot " + suffix, nil
	})

	var got string
	require.NoError(t, client.RequestJSON(&got, "/trigger/cue", int32(0)))
	assert.Equal(t, "cue=false", got)
	require.NoError(t, client.RequestJSON(&got, "/trigger/foot/1"))
	assert.Equal(t, "foot 1", got)
}

func TestBroadcast(t *testing.T) {
	router, srv, client := setupTest(t)
	router.Handle("/ping", func(string, []any) (any, error) { return nil, nil })
	_, err := client.Request("/ping")
	require.NoError(t, err)

	state, _ := json.Marshal(map[string]string{"active": "intro"})
	srv.Broadcast("/update/state", string(state))

	select {
	case u := <-client.Updates():
		assert.Equal(t, "/update/state", u.Address)
		assert.JSONEq(t, `{"active":"intro"}`, u.Args[0].(string))
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for update")
	}
}

func TestArgs(t *testing.T) {
	args := []any{int32(2), float32(3.7), "12", "x", true, 1.0}
	n, err := Int(args, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = Int(args, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	_, err = Int(args, 3)
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = Int(args, 9)
	assert.ErrorIs(t, err, ErrBadArgs)

	b, err := Bool(args, 4, false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = Bool(args, 9, true)
	require.NoError(t, err)
	assert.True(t, b)

	id, err := Ident(args, 5)
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}
