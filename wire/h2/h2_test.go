package h2_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/streamcore/httpcore"
	"github.com/streamcore/httpcore/internal/pipeconn"
	"github.com/streamcore/httpcore/wire/h2"
)

const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

func encodeFields(t *testing.T, fields []hpack.HeaderField) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	for _, f := range fields {
		require.NoError(t, enc.WriteField(f))
	}
	return buf.Bytes()
}

func TestConnServeRequestResponseWithTrailers(t *testing.T) {
	client, server := pipeconn.New()
	defer client.Close()
	defer server.Close()

	go func() { _, _ = client.Write([]byte(clientPreface)) }()

	conn, err := h2.NewConn(server, h2.Settings{MaxFrameSize: 16384, TargetWindowSize: 65535}, nil)
	require.NoError(t, err)

	clientFramer := http2.NewFramer(client, client)

	_, err = clientFramer.ReadFrame() // server's initial SETTINGS
	require.NoError(t, err)

	requestFields := encodeFields(t, []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.test"},
		{Name: ":path", Value: "/upload"},
		{Name: "content-type", Value: "text/plain"},
	})
	require.NoError(t, clientFramer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      1,
		BlockFragment: requestFields,
		EndHeaders:    true,
		EndStream:     false,
	}))
	require.NoError(t, clientFramer.WriteData(1, false, []byte("hello")))

	trailerFields := encodeFields(t, []hpack.HeaderField{
		{Name: "x-checksum", Value: "abc123"},
	})
	require.NoError(t, clientFramer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      1,
		BlockFragment: trailerFields,
		EndHeaders:    true,
		EndStream:     true,
	}))

	headCh := make(chan httpcore.RequestHead, 1)
	streamCh := make(chan *h2.Stream, 1)
	go func() {
		_ = conn.Serve(func(head httpcore.RequestHead, st *h2.Stream) {
			headCh <- head
			streamCh <- st
		})
	}()

	head := <-headCh
	require.Equal(t, "POST", head.Method)
	require.Equal(t, "https", head.Scheme)
	require.Equal(t, "example.test", head.Authority)
	require.Equal(t, "/upload", head.Path)

	st := <-streamCh

	part, ok, err := st.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, httpcore.RequestBodyPart, part.Kind)
	require.Equal(t, "hello", string(part.Body))

	part, ok, err = st.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, httpcore.RequestEndPart, part.Kind)
	require.Equal(t, []string{"abc123"}, part.Trailers["X-Checksum"])

	require.NoError(t, st.Send(httpcore.ResponsePart{
		Kind: httpcore.ResponseHeadPart,
		Head: httpcore.ResponseHead{StatusCode: 200, Header: httpcore.Header{"Content-Type": []string{"text/plain"}}},
	}))
	require.NoError(t, st.Send(httpcore.ResponsePart{Kind: httpcore.ResponseBodyPart, Body: []byte("ack")}))
	require.NoError(t, st.Send(httpcore.ResponsePart{Kind: httpcore.ResponseEndPart}))

	dec := hpack.NewDecoder(4096, nil)
	var status string
	var sawEnd bool
readLoop:
	for {
		f, err := clientFramer.ReadFrame()
		require.NoError(t, err)
		switch fr := f.(type) {
		case *http2.HeadersFrame:
			fields, derr := dec.DecodeFull(fr.HeaderBlockFragment())
			require.NoError(t, derr)
			for _, field := range fields {
				if field.Name == ":status" {
					status = field.Value
				}
			}
		case *http2.DataFrame:
			if fr.StreamEnded() {
				sawEnd = true
				break readLoop
			}
		}
	}
	require.Equal(t, "200", status)
	require.True(t, sawEnd)
}

func TestConnServeHandlesResetStream(t *testing.T) {
	client, server := pipeconn.New()
	defer client.Close()
	defer server.Close()

	go func() { _, _ = client.Write([]byte(clientPreface)) }()

	conn, err := h2.NewConn(server, h2.Settings{MaxFrameSize: 16384, TargetWindowSize: 65535}, nil)
	require.NoError(t, err)

	clientFramer := http2.NewFramer(client, client)
	_, err = clientFramer.ReadFrame() // server's initial SETTINGS
	require.NoError(t, err)

	requestFields := encodeFields(t, []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":authority", Value: "example.test"},
		{Name: ":path", Value: "/cancel-me"},
	})
	require.NoError(t, clientFramer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      3,
		BlockFragment: requestFields,
		EndHeaders:    true,
		EndStream:     true,
	}))

	streamCh := make(chan *h2.Stream, 1)
	go func() {
		_ = conn.Serve(func(head httpcore.RequestHead, st *h2.Stream) {
			streamCh <- st
		})
	}()

	st := <-streamCh
	part, ok, err := st.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, httpcore.RequestEndPart, part.Kind)

	require.NoError(t, clientFramer.WriteRSTStream(3, http2.ErrCodeCancel))

	require.Eventually(t, func() bool {
		_, ok, err := st.Next()
		return !ok && err != nil
	}, time.Second, 5*time.Millisecond)
}
