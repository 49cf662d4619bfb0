package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dapi-grpc/message"
	"dapi-grpc/protocol"
	"dapi-grpc/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes dapictl with args and returns what it printed.
func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DAPI_ADDRESS", "")
	t.Setenv("DAPI_ETCD_ENDPOINTS", "")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// startNode serves fixtures on a loopback port and returns its address.
func startNode(t *testing.T, fixtures *server.Fixtures) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svr := server.NewServer(fixtures)
	served := make(chan error, 1)
	go func() { served <- svr.Serve(lis) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, svr.Shutdown(ctx))
		assert.NoError(t, <-served)
	})
	return lis.Addr().String()
}

// freeAddr returns a loopback address nothing listens on.
func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	return addr
}

func TestGetIdentity(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddIdentity("alice", []byte("identity"))
	addr := startNode(t, fixtures)

	out, err := run(t, nil, "--address", "http://"+addr, "--metadata", "x-api-key=secret", "get-identity", "alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"identity":"aWRlbnRpdHk="}`, out)

	_, err = run(t, nil, "--address", addr, "get-identity", "bob")
	assert.ErrorContains(t, err, "NotFound")
}

func TestGetDocumentsFromStaticNodes(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddDataContract("notes", []byte("c"))
	fixtures.AddDocuments("notes", "note", []byte("a"), []byte("b"), []byte("c"))
	addr := startNode(t, fixtures)

	path := filepath.Join(t.TempDir(), "dapi.toml")
	require.NoError(t, os.WriteFile(path, []byte("[registry]\nbalancer = \"consistent_hash\"\nnodes = [\""+addr+"\"]\n"), 0o600))

	out, err := run(t, nil, "--config", path, "get-documents", "notes", "note", "--start-at", "1", "--limit", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"documents":["Yg=="]}`, out)

	_, err = run(t, nil, "--config", path, "get-documents", "notes", "note", "--start-at", "1", "--start-after", "1")
	assert.Error(t, err)
}

func TestApplyStateTransition(t *testing.T) {
	fixtures := server.NewFixtures()
	addr := startNode(t, fixtures)

	out, err := run(t, nil, "--address", addr, "apply-state-transition", "0a0b")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
	assert.Equal(t, [][]byte{{0x0a, 0x0b}}, fixtures.Transitions())

	_, err = run(t, nil, "--address", addr, "apply-state-transition")
	assert.ErrorContains(t, err, "missing state transition")
}

func TestNoTarget(t *testing.T) {
	_, err := run(t, nil, "get-identity", "alice")
	assert.ErrorIs(t, err, errNoTarget)
}

func TestDecodeFramed(t *testing.T) {
	var input bytes.Buffer
	for _, id := range []string{"alice", "bob"} {
		body, err := (&message.GetIdentityRequest{Id: id}).MarshalWire()
		require.NoError(t, err)
		require.NoError(t, protocol.Encode(&input, &protocol.Header{}, body))
	}

	out, err := run(t, input.Bytes(), "decode", "getIdentity")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": \"alice\"\n}\n{\n  \"id\": \"bob\"\n}\n", out)
}

func TestDecodeGRPCWebText(t *testing.T) {
	body, err := (&message.GetIdentityIdByFirstPublicKeyResponse{Id: "alice"}).MarshalWire()
	require.NoError(t, err)
	var framed bytes.Buffer
	require.NoError(t, protocol.Encode(&framed, &protocol.Header{}, body))
	require.NoError(t, protocol.Encode(&framed, &protocol.Header{Flags: protocol.FlagTrailer}, []byte("grpc-status:0\r\n")))

	input := base64.StdEncoding.EncodeToString(framed.Bytes()) + "\n"
	out, err := run(t, []byte(input), "decode", "getIdentityIdByFirstPublicKey", "--response", "--format", "grpc-web-text")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"alice"}`, out)
}

func TestDecodeErrors(t *testing.T) {
	_, err := run(t, nil, "decode", "getBalance")
	assert.ErrorContains(t, err, "unknown method")

	_, err = run(t, []byte("zz"), "decode", "getIdentity", "--format", "hex")
	assert.ErrorContains(t, err, "invalid hex input")

	_, err = run(t, []byte{0x0a, 0x10}, "decode", "getIdentity", "--format", "raw")
	assert.ErrorContains(t, err, "decode getIdentity")

	_, err = run(t, nil, "decode", "getIdentity", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("DAPI_ETCD_ENDPOINTS", "")
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "error", "serve", "--listen", "127.0.0.1:0"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, root.ExecuteContext(ctx))
}

func TestMetricsFile(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddIdentity("alice", []byte("identity"))
	addr := startNode(t, fixtures)
	path := filepath.Join(t.TempDir(), "dapictl.prom")

	_, err := run(t, nil, "--address", addr, "--metrics-file", path, "get-identity", "alice")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dapi_client_calls_total{code="OK",method="`+message.MethodGetIdentity+`"} 1`)

	// failed calls are written too
	_, err = run(t, nil, "--address", addr, "--metrics-file", path, "get-identity", "bob")
	require.Error(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dapi_client_calls_total{code="NotFound",method="`+message.MethodGetIdentity+`"} 1`)
}

func TestNodes(t *testing.T) {
	live := startNode(t, server.NewFixtures())
	dead := freeAddr(t)

	path := filepath.Join(t.TempDir(), "dapi.toml")
	require.NoError(t, os.WriteFile(path, []byte("[registry]\nnodes = [\""+live+"\", \""+dead+"\"]\n"), 0o600))

	out, err := run(t, nil, "--config", path, "nodes", "--timeout", "3s")
	require.NoError(t, err)

	var nodes []nodeStatus
	require.NoError(t, json.Unmarshal([]byte(out), &nodes))
	assert.Equal(t, []nodeStatus{
		{Addr: live, Weight: 1, State: "READY"},
		{Addr: dead, Weight: 1, State: "TRANSIENT_FAILURE"},
	}, nodes)

	_, err = run(t, nil, "nodes")
	assert.ErrorIs(t, err, errNoTarget)
}

func TestServeMetrics(t *testing.T) {
	t.Setenv("DAPI_ETCD_ENDPOINTS", "")
	listen, metricsAddr := freeAddr(t), freeAddr(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--log-level", "error", "serve", "--listen", listen, "--metrics-addr", metricsAddr})

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- root.ExecuteContext(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-served)
	}()

	// the empty fixture server answers NotFound once it is up
	require.Eventually(t, func() bool {
		_, err := run(t, nil, "--address", listen, "get-identity", "alice")
		return err != nil && strings.Contains(err.Error(), "NotFound")
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get("http://" + metricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dapi_server_calls_total{code="NotFound",method="`+message.MethodGetIdentity+`"}`)
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		give    string
		want    []byte
		wantErr bool
	}{
		{give: "0a0b", want: []byte{0x0a, 0x0b}},
		{give: "0x0a0b", want: []byte{0x0a, 0x0b}},
		{give: "base64:Cgs=", want: []byte{0x0a, 0x0b}},
		{give: "xyz", wantErr: true},
		{give: "base64:***", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			got, err := parseBytes(tt.give)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
