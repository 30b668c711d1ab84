package nettransport_test

import (
	"testing"

	"github.com/HANABLI/WebSocket/api"
	"github.com/HANABLI/WebSocket/nettransport"
)

func TestConnImplementsAPITransport(t *testing.T) {
	var _ api.Transport = (*nettransport.Conn)(nil)
}
