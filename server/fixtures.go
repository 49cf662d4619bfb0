package server

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"dapi-grpc/message"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

// Fixtures is an in-memory PlatformServer. Binary values in fixture files are
// base64; public key hashes are hex.
//
//	identities:
//	  <identity id>: <base64 identity>
//	dataContracts:
//	  <contract id>: <base64 contract>
//	documents:
//	  - dataContract: <contract id>
//	    type: note
//	    items: [<base64 document>, ...]
//	publicKeys:
//	  <hex public key hash>: <identity id>
//
// Document queries match on contract and type only; Where and OrderBy are ignored.
type Fixtures struct {
	mu            sync.RWMutex
	identities    map[string][]byte
	dataContracts map[string][]byte
	documents     map[documentKey][][]byte
	publicKeys    map[string]string
	transitions   [][]byte
}

type documentKey struct {
	contract string
	typ      string
}

type fixtureFile struct {
	Identities    map[string]string `yaml:"identities"`
	DataContracts map[string]string `yaml:"dataContracts"`
	Documents     []documentSet     `yaml:"documents"`
	PublicKeys    map[string]string `yaml:"publicKeys"`
}

type documentSet struct {
	DataContract string   `yaml:"dataContract"`
	Type         string   `yaml:"type"`
	Items        []string `yaml:"items"`
}

var _ PlatformServer = (*Fixtures)(nil)

func NewFixtures() *Fixtures {
	return &Fixtures{
		identities:    make(map[string][]byte),
		dataContracts: make(map[string][]byte),
		documents:     make(map[documentKey][][]byte),
		publicKeys:    make(map[string]string),
	}
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*Fixtures, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}

	f := NewFixtures()
	for id, v := range file.Identities {
		b, err := decodeBase64(v)
		if err != nil {
			return nil, fmt.Errorf("fixtures: identity %s: %w", id, err)
		}
		f.AddIdentity(id, b)
	}
	for id, v := range file.DataContracts {
		b, err := decodeBase64(v)
		if err != nil {
			return nil, fmt.Errorf("fixtures: data contract %s: %w", id, err)
		}
		f.AddDataContract(id, b)
	}
	for _, set := range file.Documents {
		for i, v := range set.Items {
			b, err := decodeBase64(v)
			if err != nil {
				return nil, fmt.Errorf("fixtures: document %s/%s[%d]: %w", set.DataContract, set.Type, i, err)
			}
			f.AddDocuments(set.DataContract, set.Type, b)
		}
	}
	for h, id := range file.PublicKeys {
		hash, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("fixtures: public key hash %s: %w", h, err)
		}
		f.AddPublicKey(hash, id)
	}
	return f, nil
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func (f *Fixtures) AddIdentity(id string, identity []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id] = identity
}

func (f *Fixtures) AddDataContract(id string, contract []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataContracts[id] = contract
}

// AddDocuments appends docs to the documents of one type in a contract.
func (f *Fixtures) AddDocuments(contract, typ string, docs ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := documentKey{contract: contract, typ: typ}
	f.documents[key] = append(f.documents[key], docs...)
}

// AddPublicKey links the hash of an identity's first public key to the identity.
func (f *Fixtures) AddPublicKey(hash []byte, identityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publicKeys[hex.EncodeToString(hash)] = identityID
}

// Transitions returns the state transitions applied so far, oldest first.
func (f *Fixtures) Transitions() [][]byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([][]byte(nil), f.transitions...)
}

func (f *Fixtures) ApplyStateTransition(_ context.Context, req *message.ApplyStateTransitionRequest) (*message.ApplyStateTransitionResponse, error) {
	if len(req.StateTransition) == 0 {
		return nil, status.Error(codes.InvalidArgument, "state transition is empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, req.StateTransition)
	return &message.ApplyStateTransitionResponse{}, nil
}

func (f *Fixtures) GetIdentity(_ context.Context, req *message.GetIdentityRequest) (*message.GetIdentityResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	identity, ok := f.identities[req.Id]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "identity %s not found", req.Id)
	}
	return &message.GetIdentityResponse{Identity: identity}, nil
}

func (f *Fixtures) GetDataContract(_ context.Context, req *message.GetDataContractRequest) (*message.GetDataContractResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	contract, ok := f.dataContracts[req.Id]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "data contract %s not found", req.Id)
	}
	return &message.GetDataContractResponse{DataContract: contract}, nil
}

// GetDocuments pages with StartAt (index of the first document) or StartAfter
// (index of the document before the first), then Limit. Limit 0 means all.
func (f *Fixtures) GetDocuments(_ context.Context, req *message.GetDocumentsRequest) (*message.GetDocumentsResponse, error) {
	if req.StartAt != nil && req.StartAfter != nil {
		return nil, status.Error(codes.InvalidArgument, "startAt and startAfter are mutually exclusive")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if _, ok := f.dataContracts[req.DataContractId]; !ok {
		return nil, status.Errorf(codes.NotFound, "data contract %s not found", req.DataContractId)
	}

	docs := f.documents[documentKey{contract: req.DataContractId, typ: req.DocumentType}]
	start := 0
	switch {
	case req.StartAt != nil:
		start = int(*req.StartAt)
	case req.StartAfter != nil:
		start = int(*req.StartAfter) + 1
	}
	if start >= len(docs) {
		return &message.GetDocumentsResponse{}, nil
	}
	docs = docs[start:]
	if req.Limit > 0 && int(req.Limit) < len(docs) {
		docs = docs[:req.Limit]
	}
	return &message.GetDocumentsResponse{Documents: append([][]byte(nil), docs...)}, nil
}

func (f *Fixtures) GetIdentityByFirstPublicKey(_ context.Context, req *message.GetIdentityByFirstPublicKeyRequest) (*message.GetIdentityByFirstPublicKeyResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.publicKeys[hex.EncodeToString(req.PublicKeyHash)]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no identity for public key hash %x", req.PublicKeyHash)
	}
	identity, ok := f.identities[id]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "identity %s not found", id)
	}
	return &message.GetIdentityByFirstPublicKeyResponse{Identity: identity}, nil
}

func (f *Fixtures) GetIdentityIdByFirstPublicKey(_ context.Context, req *message.GetIdentityIdByFirstPublicKeyRequest) (*message.GetIdentityIdByFirstPublicKeyResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.publicKeys[hex.EncodeToString(req.PublicKeyHash)]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no identity for public key hash %x", req.PublicKeyHash)
	}
	return &message.GetIdentityIdByFirstPublicKeyResponse{Id: id}, nil
}
