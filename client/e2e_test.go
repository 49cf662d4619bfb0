package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"dapi-grpc/message"
	"dapi-grpc/middleware"
	"dapi-grpc/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// headerRecorder keeps the incoming metadata of the last call the server saw.
type headerRecorder struct {
	mu sync.Mutex
	md metadata.MD
}

func (h *headerRecorder) intercept(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	h.mu.Lock()
	h.md = md
	h.mu.Unlock()
	return handler(ctx, req)
}

func (h *headerRecorder) get(key string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.md.Get(key)
}

// startPlatform serves fixtures over bufconn and returns a client dialed to it.
func startPlatform(t *testing.T, fixtures *server.Fixtures, opts ...Option) (*Client, *headerRecorder) {
	t.Helper()

	headers := &headerRecorder{}
	lis := bufconn.Listen(1 << 20)
	svr := server.NewServer(fixtures,
		server.WithLogger(zaptest.NewLogger(t)),
		server.WithUnaryInterceptors(headers.intercept),
	)
	served := make(chan error, 1)
	go func() { served <- svr.Serve(lis) }()

	dial := WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	c, err := New("passthrough:///bufnet", append([]Option{dial}, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, c.Close())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, svr.Shutdown(ctx))
		assert.NoError(t, <-served)
	})
	return c, headers
}

func TestEndToEnd(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddIdentity("alice", []byte("identity-alice"))
	fixtures.AddDataContract("notes", []byte("contract-notes"))
	fixtures.AddDocuments("notes", "note", []byte("n0"), []byte("n1"), []byte("n2"))
	fixtures.AddPublicKey([]byte{0xaa}, "alice")

	metrics := middleware.NewMetrics(prometheus.NewRegistry(), "client")
	c, headers := startPlatform(t, fixtures, WithLogger(zaptest.NewLogger(t)), WithInterceptors(
		middleware.LoggingMiddleware(zaptest.NewLogger(t)),
		middleware.RequestIDMiddleware(),
		metrics.Middleware(),
	))
	ctx := context.Background()

	identity, err := c.GetIdentity(ctx, &message.GetIdentityRequest{Id: "alice"}, WithMetadata(Metadata{"x-api-key": "secret"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("identity-alice"), identity.Identity)
	assert.Equal(t, []string{"secret"}, headers.get("x-api-key"))
	assert.Len(t, headers.get(middleware.RequestIDHeader), 1)

	contract, err := c.GetDataContract(ctx, &message.GetDataContractRequest{Id: "notes"})
	require.NoError(t, err)
	assert.Equal(t, []byte("contract-notes"), contract.DataContract)

	start := uint32(0)
	docs, err := c.GetDocuments(ctx, &message.GetDocumentsRequest{DataContractId: "notes", DocumentType: "note", StartAfter: &start, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("n1")}, docs.Documents)

	byKey, err := c.GetIdentityByFirstPublicKey(ctx, &message.GetIdentityByFirstPublicKeyRequest{PublicKeyHash: []byte{0xaa}})
	require.NoError(t, err)
	assert.Equal(t, []byte("identity-alice"), byKey.Identity)

	id, err := c.GetIdentityIdByFirstPublicKey(ctx, &message.GetIdentityIdByFirstPublicKeyRequest{PublicKeyHash: []byte{0xaa}})
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Id)

	_, err = c.ApplyStateTransition(ctx, &message.ApplyStateTransitionRequest{StateTransition: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x01, 0x02}}, fixtures.Transitions())
}

func TestEndToEndErrors(t *testing.T) {
	c, _ := startPlatform(t, server.NewFixtures())
	ctx := context.Background()

	_, err := c.GetIdentity(ctx, &message.GetIdentityRequest{Id: "nobody"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.ApplyStateTransition(ctx, &message.ApplyStateTransitionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEndToEndAsync(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddIdentity("a", []byte("A"))
	fixtures.AddIdentity("b", []byte("B"))
	c, _ := startPlatform(t, fixtures)
	ctx := context.Background()

	fa := Async(ctx, c.GetIdentity, &message.GetIdentityRequest{Id: "a"})
	fb := Async(ctx, c.GetIdentity, &message.GetIdentityRequest{Id: "b"})

	a, err := fa.Await(ctx)
	require.NoError(t, err)
	b, err := fb.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", string(a.Identity))
	assert.Equal(t, "B", string(b.Identity))
}

func TestEndToEndAsyncMixedMethods(t *testing.T) {
	fixtures := server.NewFixtures()
	fixtures.AddIdentity("a", []byte("A"))
	fixtures.AddDataContract("notes", []byte("contract"))
	fixtures.AddDocuments("notes", "note", []byte{}, []byte("n1"))
	c, _ := startPlatform(t, fixtures)
	ctx := context.Background()

	identity := Async(ctx, c.GetIdentity, &message.GetIdentityRequest{Id: "a"})
	docs := Async(ctx, c.GetDocuments, &message.GetDocumentsRequest{DataContractId: "notes", DocumentType: "note"})
	missing := Async(ctx, c.GetDataContract, &message.GetDataContractRequest{Id: "unknown"})

	_, err := missing.Await(ctx)
	assert.Equal(t, codes.NotFound, status.Code(err))

	d, err := docs.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{}, []byte("n1")}, d.Documents)

	a, err := identity.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", string(a.Identity))
}
