package client

import (
	"context"

	"dapi-grpc/message"
)

// ApplyStateTransition submits a serialized state transition to the platform.
func (c *Client) ApplyStateTransition(ctx context.Context, req *message.ApplyStateTransitionRequest, opts ...CallOption) (*message.ApplyStateTransitionResponse, error) {
	resp := new(message.ApplyStateTransitionResponse)
	if err := c.call(ctx, message.MethodApplyStateTransition, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetIdentity fetches the serialized identity with the given id.
func (c *Client) GetIdentity(ctx context.Context, req *message.GetIdentityRequest, opts ...CallOption) (*message.GetIdentityResponse, error) {
	resp := new(message.GetIdentityResponse)
	if err := c.call(ctx, message.MethodGetIdentity, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDataContract fetches the serialized data contract with the given id.
func (c *Client) GetDataContract(ctx context.Context, req *message.GetDataContractRequest, opts ...CallOption) (*message.GetDataContractResponse, error) {
	resp := new(message.GetDataContractResponse)
	if err := c.call(ctx, message.MethodGetDataContract, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetDocuments queries documents of one type in a data contract.
func (c *Client) GetDocuments(ctx context.Context, req *message.GetDocumentsRequest, opts ...CallOption) (*message.GetDocumentsResponse, error) {
	resp := new(message.GetDocumentsResponse)
	if err := c.call(ctx, message.MethodGetDocuments, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetIdentityByFirstPublicKey fetches the identity whose first public key has the given hash.
func (c *Client) GetIdentityByFirstPublicKey(ctx context.Context, req *message.GetIdentityByFirstPublicKeyRequest, opts ...CallOption) (*message.GetIdentityByFirstPublicKeyResponse, error) {
	resp := new(message.GetIdentityByFirstPublicKeyResponse)
	if err := c.call(ctx, message.MethodGetIdentityByFirstPublicKey, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetIdentityIdByFirstPublicKey resolves a first public key hash to an identity id.
func (c *Client) GetIdentityIdByFirstPublicKey(ctx context.Context, req *message.GetIdentityIdByFirstPublicKeyRequest, opts ...CallOption) (*message.GetIdentityIdByFirstPublicKeyResponse, error) {
	resp := new(message.GetIdentityIdByFirstPublicKeyResponse)
	if err := c.call(ctx, message.MethodGetIdentityIdByFirstPublicKey, req, resp, opts); err != nil {
		return nil, err
	}
	return resp, nil
}
