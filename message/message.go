// Package message defines the Platform request and response messages exchanged with a DAPI node.
//
// Every message has two representations:
//
//   - structured: the Go struct itself. It marshals to JSON with camelCase field names and
//     base64-encoded bytes, the same shape the protobuf JSON mapping produces.
//   - wire: protobuf binary, produced by MarshalWire and read back by UnmarshalWire.
//
// The two are related by a lossless conversion, so a message survives
// MarshalWire followed by UnmarshalWire unchanged.
package message

// ServiceName is the fully-qualified protobuf name of the Platform service.
const ServiceName = "org.dash.platform.dapi.v0.Platform"

// Full gRPC method names, in "/service/method" form.
const (
	MethodApplyStateTransition          = "/" + ServiceName + "/applyStateTransition"
	MethodGetIdentity                   = "/" + ServiceName + "/getIdentity"
	MethodGetDataContract               = "/" + ServiceName + "/getDataContract"
	MethodGetDocuments                  = "/" + ServiceName + "/getDocuments"
	MethodGetIdentityByFirstPublicKey   = "/" + ServiceName + "/getIdentityByFirstPublicKey"
	MethodGetIdentityIdByFirstPublicKey = "/" + ServiceName + "/getIdentityIdByFirstPublicKey"
)

// WireMessage is implemented by every message in this package.
type WireMessage interface {
	// MarshalWire encodes the message in protobuf binary form.
	MarshalWire() ([]byte, error)
	// UnmarshalWire replaces the message contents with the decoded wire bytes.
	UnmarshalWire(b []byte) error
}

// ApplyStateTransitionRequest submits a serialized state transition.
type ApplyStateTransitionRequest struct {
	StateTransition []byte `json:"stateTransition,omitempty"`
}

// ApplyStateTransitionResponse carries no fields; success is the absence of an error.
type ApplyStateTransitionResponse struct{}

type GetIdentityRequest struct {
	Id string `json:"id,omitempty"`
}

type GetIdentityResponse struct {
	Identity []byte `json:"identity,omitempty"`
}

type GetDataContractRequest struct {
	Id string `json:"id,omitempty"`
}

type GetDataContractResponse struct {
	DataContract []byte `json:"dataContract,omitempty"`
}

// GetDocumentsRequest queries documents of one type inside a data contract.
// Where and OrderBy hold the CBOR-encoded query clauses.
// StartAfter and StartAt are mutually exclusive.
type GetDocumentsRequest struct {
	DataContractId string  `json:"dataContractId,omitempty"`
	DocumentType   string  `json:"documentType,omitempty"`
	Where          []byte  `json:"where,omitempty"`
	OrderBy        []byte  `json:"orderBy,omitempty"`
	Limit          uint32  `json:"limit,omitempty"`
	StartAfter     *uint32 `json:"startAfter,omitempty"`
	StartAt        *uint32 `json:"startAt,omitempty"`
}

type GetDocumentsResponse struct {
	Documents [][]byte `json:"documents,omitempty"`
}

type GetIdentityByFirstPublicKeyRequest struct {
	PublicKeyHash []byte `json:"publicKeyHash,omitempty"`
}

type GetIdentityByFirstPublicKeyResponse struct {
	Identity []byte `json:"identity,omitempty"`
}

type GetIdentityIdByFirstPublicKeyRequest struct {
	PublicKeyHash []byte `json:"publicKeyHash,omitempty"`
}

type GetIdentityIdByFirstPublicKeyResponse struct {
	Id string `json:"id,omitempty"`
}

// Pair links a method to constructors for its request and response.
// Tools that handle messages by name (the CLI decoder, the server) use it.
type Pair struct {
	Method      string
	NewRequest  func() WireMessage
	NewResponse func() WireMessage
}

// Pairs lists the Platform methods keyed by their short name.
var Pairs = map[string]Pair{
	"applyStateTransition": {
		Method:      MethodApplyStateTransition,
		NewRequest:  func() WireMessage { return new(ApplyStateTransitionRequest) },
		NewResponse: func() WireMessage { return new(ApplyStateTransitionResponse) },
	},
	"getIdentity": {
		Method:      MethodGetIdentity,
		NewRequest:  func() WireMessage { return new(GetIdentityRequest) },
		NewResponse: func() WireMessage { return new(GetIdentityResponse) },
	},
	"getDataContract": {
		Method:      MethodGetDataContract,
		NewRequest:  func() WireMessage { return new(GetDataContractRequest) },
		NewResponse: func() WireMessage { return new(GetDataContractResponse) },
	},
	"getDocuments": {
		Method:      MethodGetDocuments,
		NewRequest:  func() WireMessage { return new(GetDocumentsRequest) },
		NewResponse: func() WireMessage { return new(GetDocumentsResponse) },
	},
	"getIdentityByFirstPublicKey": {
		Method:      MethodGetIdentityByFirstPublicKey,
		NewRequest:  func() WireMessage { return new(GetIdentityByFirstPublicKeyRequest) },
		NewResponse: func() WireMessage { return new(GetIdentityByFirstPublicKeyResponse) },
	},
	"getIdentityIdByFirstPublicKey": {
		Method:      MethodGetIdentityIdByFirstPublicKey,
		NewRequest:  func() WireMessage { return new(GetIdentityIdByFirstPublicKeyRequest) },
		NewResponse: func() WireMessage { return new(GetIdentityIdByFirstPublicKeyResponse) },
	},
}
