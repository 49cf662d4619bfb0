package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dapi-grpc/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const fixtureYAML = `
identities:
  alice: aWRlbnRpdHk=
dataContracts:
  notes: Y29udHJhY3Q=
documents:
  - dataContract: notes
    type: note
    items: [ZG9jLTA=, ZG9jLTE=, ZG9jLTI=]
publicKeys:
  abcd: alice
`

func uint32Ptr(v uint32) *uint32 { return &v }

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))

	f, err := LoadFixtures(path)
	require.NoError(t, err)
	ctx := context.Background()

	identity, err := f.GetIdentity(ctx, &message.GetIdentityRequest{Id: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []byte("identity"), identity.Identity)

	contract, err := f.GetDataContract(ctx, &message.GetDataContractRequest{Id: "notes"})
	require.NoError(t, err)
	assert.Equal(t, []byte("contract"), contract.DataContract)

	byKey, err := f.GetIdentityByFirstPublicKey(ctx, &message.GetIdentityByFirstPublicKeyRequest{PublicKeyHash: []byte{0xab, 0xcd}})
	require.NoError(t, err)
	assert.Equal(t, []byte("identity"), byKey.Identity)
}

func TestParseFixturesErrors(t *testing.T) {
	tests := []struct {
		name string
		give string
	}{
		{"yaml", "identities: [a"},
		{"identity base64", "identities:\n  a: '!!'"},
		{"document base64", "documents:\n  - dataContract: c\n    type: t\n    items: ['%%']"},
		{"public key hex", "publicKeys:\n  zz: alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(tt.give))
			assert.Error(t, err)
		})
	}

	_, err := LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetDocumentsPaging(t *testing.T) {
	f, err := ParseFixtures([]byte(fixtureYAML))
	require.NoError(t, err)

	tests := []struct {
		name string
		give *message.GetDocumentsRequest
		want []string
	}{
		{"all", &message.GetDocumentsRequest{}, []string{"doc-0", "doc-1", "doc-2"}},
		{"limit", &message.GetDocumentsRequest{Limit: 2}, []string{"doc-0", "doc-1"}},
		{"start at", &message.GetDocumentsRequest{StartAt: uint32Ptr(1)}, []string{"doc-1", "doc-2"}},
		{"start after", &message.GetDocumentsRequest{StartAfter: uint32Ptr(1), Limit: 5}, []string{"doc-2"}},
		{"past end", &message.GetDocumentsRequest{StartAt: uint32Ptr(7)}, nil},
		{"other type", &message.GetDocumentsRequest{DocumentType: "profile"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.give.DataContractId = "notes"
			if tt.give.DocumentType == "" {
				tt.give.DocumentType = "note"
			}
			resp, err := f.GetDocuments(context.Background(), tt.give)
			require.NoError(t, err)

			var got []string
			for _, d := range resp.Documents {
				got = append(got, string(d))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixturesErrors(t *testing.T) {
	f := NewFixtures()
	ctx := context.Background()

	_, err := f.GetDocuments(ctx, &message.GetDocumentsRequest{DataContractId: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.GetDocuments(ctx, &message.GetDocumentsRequest{StartAt: uint32Ptr(0), StartAfter: uint32Ptr(0)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.ApplyStateTransition(ctx, &message.ApplyStateTransitionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.GetIdentityIdByFirstPublicKey(ctx, &message.GetIdentityIdByFirstPublicKeyRequest{PublicKeyHash: []byte{1}})
	assert.Equal(t, codes.NotFound, status.Code(err))

	f.AddPublicKey([]byte{1}, "ghost")
	_, err = f.GetIdentityByFirstPublicKey(ctx, &message.GetIdentityByFirstPublicKeyRequest{PublicKeyHash: []byte{1}})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
