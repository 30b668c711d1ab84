// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package protocol

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/HANABLI/WebSocket/api"
)

// requiredKeyLength is the decoded length, in bytes, a valid
// Sec-WebSocket-Key must have (RFC 6455 §4.1).
const requiredKeyLength = 16

// HTTP header names and token values used by the opening handshake
// (RFC 6455 §4). Header names need no particular case since
// api.HeaderAccessor is case-insensitive; token values are lowercase
// to match the lowercased output of GetHeaderTokens.
const (
	HeaderConnection        = "Connection"
	HeaderUpgrade           = "Upgrade"
	HeaderSecWebSocketKey   = "Sec-WebSocket-Key"
	HeaderSecWebSocketAcc   = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVer   = "Sec-WebSocket-Version"
	HeaderSecWebSocketProto = "Sec-WebSocket-Protocol"
	HeaderSecWebSocketExt   = "Sec-WebSocket-Extensions"

	ValueUpgrade     = "upgrade"
	ValueWebSocket   = "websocket"
	SupportedVersion = "13"

	webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
)

// Handshake errors, returned by CompleteOpenAsClient and OpenAsServer
// on a malformed or rejected exchange (spec.md §4.4).
var (
	ErrNotUpgradeRequest    = errors.New("request is not a WebSocket upgrade request")
	ErrMissingKey           = errors.New("missing Sec-WebSocket-Key header")
	ErrUnsupportedVersion   = errors.New("unsupported Sec-WebSocket-Version")
	ErrNotSwitchingProtocol = errors.New("response status is not 101 Switching Protocols")
	ErrAcceptMismatch       = errors.New("Sec-WebSocket-Accept does not match the computed value")
	ErrUnrequestedExtension = errors.New("response negotiated a protocol or extension that was never offered")
	ErrMalformedKey         = errors.New("Sec-WebSocket-Key does not decode to 16 bytes")
)

// ComputeAcceptKey derives Sec-WebSocket-Accept from a client's
// Sec-WebSocket-Key per RFC 6455 §1.3: concatenate the key with the
// protocol's fixed GUID, SHA-1 the result, and base64-encode it.
func ComputeAcceptKey(clientKey string) string {
	h := sha1.Sum([]byte(clientKey + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h[:])
}

// generateClientKey produces a fresh, random 16-byte Sec-WebSocket-Key,
// base64-encoded (RFC 6455 §4.1).
func generateClientKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", errors.Wrap(err, "generate Sec-WebSocket-Key")
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// StartOpenAsClient populates req with the headers of a WebSocket
// opening handshake request and returns the key that must be checked
// against the server's response in CompleteOpenAsClient.
func StartOpenAsClient(req api.Request) (clientKey string, err error) {
	clientKey, err = generateClientKey()
	if err != nil {
		return "", err
	}
	req.SetHeader(HeaderUpgrade, ValueWebSocket)
	setConnectionUpgradeToken(req)
	req.SetHeader(HeaderSecWebSocketKey, clientKey)
	req.SetHeader(HeaderSecWebSocketVer, SupportedVersion)
	return clientKey, nil
}

// CompleteOpenAsClient validates a server's handshake response against
// the key returned by StartOpenAsClient. A nil error means the
// connection is now open as a Client.
func CompleteOpenAsClient(resp api.Response, clientKey string) error {
	if resp.StatusCode() != 101 {
		return ErrNotSwitchingProtocol
	}
	if !hasToken(resp, HeaderUpgrade, ValueWebSocket) {
		return ErrNotUpgradeRequest
	}
	if !hasToken(resp, HeaderConnection, ValueUpgrade) {
		return ErrNotUpgradeRequest
	}
	want := ComputeAcceptKey(clientKey)
	if resp.GetHeaderValue(HeaderSecWebSocketAcc) != want {
		return ErrAcceptMismatch
	}
	// This engine never offers a subprotocol or extension, so a
	// server that negotiates one anyway has violated RFC 6455 §4.1.
	if len(resp.GetHeaderTokens(HeaderSecWebSocketProto)) > 0 {
		return ErrUnrequestedExtension
	}
	if len(resp.GetHeaderTokens(HeaderSecWebSocketExt)) > 0 {
		return ErrUnrequestedExtension
	}
	return nil
}

// OpenAsServer validates an incoming upgrade request and populates
// resp with the matching 101 response. A nil error means the
// connection is now open as a Server; the caller is responsible for
// actually writing resp to the wire.
func OpenAsServer(req api.Request, resp api.Response) error {
	if !hasToken(req, HeaderUpgrade, ValueWebSocket) {
		return ErrNotUpgradeRequest
	}
	if !hasToken(req, HeaderConnection, ValueUpgrade) {
		return ErrNotUpgradeRequest
	}
	clientKey := req.GetHeaderValue(HeaderSecWebSocketKey)
	if clientKey == "" {
		return ErrMissingKey
	}
	decoded, err := base64.StdEncoding.DecodeString(clientKey)
	if err != nil || len(decoded) != requiredKeyLength {
		return ErrMalformedKey
	}
	if v := req.GetHeaderValue(HeaderSecWebSocketVer); v != SupportedVersion {
		return ErrUnsupportedVersion
	}

	resp.SetStatusCode(101, "Switching Protocols")
	resp.SetHeader(HeaderUpgrade, ValueWebSocket)
	setConnectionUpgradeToken(resp)
	resp.SetHeader(HeaderSecWebSocketAcc, ComputeAcceptKey(clientKey))
	return nil
}

// setConnectionUpgradeToken adds the "upgrade" token to whatever
// Connection header value is already present, rather than replacing
// it outright, per RFC 6455 §4.2.2 step 5 (the original appends to
// connectionTokens rather than overwriting them).
func setConnectionUpgradeToken(h api.HeaderAccessor) {
	existing := h.GetHeaderValue(HeaderConnection)
	if existing == "" {
		h.SetHeader(HeaderConnection, ValueUpgrade)
		return
	}
	for _, t := range h.GetHeaderTokens(HeaderConnection) {
		if t == ValueUpgrade {
			return
		}
	}
	h.SetHeader(HeaderConnection, existing+", "+ValueUpgrade)
}

func hasToken(h api.HeaderAccessor, name, token string) bool {
	for _, t := range h.GetHeaderTokens(name) {
		if t == token {
			return true
		}
	}
	return false
}
