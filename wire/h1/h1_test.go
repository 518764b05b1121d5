package h1_test

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/httpcore"
	"github.com/streamcore/httpcore/internal/pipeconn"
	"github.com/streamcore/httpcore/wire/h1"
)

func TestConnNextStreamAndEchoResponse(t *testing.T) {
	client, server := pipeconn.New()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("GET /hello HTTP/1.1\r\nHost: example.test\r\nTrailer: X-Checksum\r\n\r\n"))
	}()

	conn := h1.NewConn(server)
	st, err := conn.NextStream()
	require.NoError(t, err)
	require.Equal(t, "GET", st.Head().Method)
	require.Equal(t, "/hello", st.Head().Path)
	require.Equal(t, "example.test", st.Head().Authority)

	part, ok, err := st.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, httpcore.RequestEndPart, part.Kind)

	require.NoError(t, st.Send(httpcore.ResponsePart{
		Kind: httpcore.ResponseHeadPart,
		Head: httpcore.ResponseHead{StatusCode: 200, Header: httpcore.Header{"Content-Type": []string{"text/plain"}}},
	}))
	require.NoError(t, st.Send(httpcore.ResponsePart{Kind: httpcore.ResponseBodyPart, Body: []byte("hi there")}))
	require.NoError(t, st.Send(httpcore.ResponsePart{
		Kind:     httpcore.ResponseEndPart,
		Trailers: httpcore.Header{"X-Checksum": []string{"deadbeef"}},
	}))
	require.NoError(t, st.Finish())
	require.NoError(t, conn.Close())

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, statusLine, "200")

	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	require.Contains(t, string(rest), "Transfer-Encoding: chunked")
	require.Contains(t, string(rest), "hi there")
	require.Contains(t, string(rest), "X-Checksum: deadbeef")
}

func TestStreamSendOrdersInformationalHeadsBeforeFinal(t *testing.T) {
	client, server := pipeconn.New()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("GET /upload HTTP/1.1\r\nHost: example.test\r\nExpect: 100-continue\r\n\r\n"))
	}()

	conn := h1.NewConn(server)
	st, err := conn.NextStream()
	require.NoError(t, err)

	_, _, err = st.Next()
	require.NoError(t, err)

	require.NoError(t, st.Send(httpcore.ResponsePart{
		Kind: httpcore.ResponseHeadPart,
		Head: httpcore.ResponseHead{StatusCode: 100},
	}))
	require.NoError(t, st.Send(httpcore.ResponsePart{
		Kind: httpcore.ResponseHeadPart,
		Head: httpcore.ResponseHead{StatusCode: 200, Header: httpcore.Header{"Content-Length": []string{"2"}}},
	}))
	require.NoError(t, st.Send(httpcore.ResponsePart{Kind: httpcore.ResponseBodyPart, Body: []byte("ok")}))
	require.NoError(t, st.Send(httpcore.ResponsePart{Kind: httpcore.ResponseEndPart}))
	require.NoError(t, st.Finish())
	require.NoError(t, conn.Close())

	raw, err := io.ReadAll(client)
	require.NoError(t, err)

	continueIdx := strings.Index(string(raw), "HTTP/1.1 100")
	finalIdx := strings.Index(string(raw), "HTTP/1.1 200")
	require.GreaterOrEqual(t, continueIdx, 0)
	require.Greater(t, finalIdx, continueIdx)
	require.Contains(t, string(raw), "ok")
}
