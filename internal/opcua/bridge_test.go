package opcua

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

type BridgeTestSuite struct {
	suite.Suite
}

func TestBridgeTestSuite(t *testing.T) {
	suite.Run(t, new(BridgeTestSuite))
}

func (s *BridgeTestSuite) TestNewBridgeStartsEmpty() {
	b := NewBridge()
	s.Empty(b.Read())
}

func (s *BridgeTestSuite) TestInitializeWithNoBindingsIsNoop() {
	b := NewBridge()
	err := b.Initialize(context.Background(), nil)
	s.NoError(err)
	s.Empty(b.sessions)
}

func (s *BridgeTestSuite) TestInitializeUnreachableEndpointReturnsError() {
	b := NewBridge()
	bindings := []model.CommunicationBinding{
		{ID: 1, EndpointURL: "opc.tcp://127.0.0.1:1", Address: "ns=2;s=Temp", Direction: model.DirectionRead},
	}
	err := b.Initialize(context.Background(), bindings)
	s.Error(err)
}

func (s *BridgeTestSuite) TestReadReturnsIndependentSnapshot() {
	b := NewBridge()
	b.valuesMu.Lock()
	b.latestValues[1] = 42.0
	b.valuesMu.Unlock()

	snap := b.Read()
	s.Equal(42.0, snap[1])

	snap[1] = 0.0
	s.Equal(42.0, b.Read()[1])
}

func (s *BridgeTestSuite) TestWriteSkipsBindingWithoutSession() {
	b := NewBridge()
	b.bindingByID[1] = model.CommunicationBinding{ID: 1, EndpointURL: "opc.tcp://nowhere", Address: "ns=2;s=X"}
	// No session registered for the endpoint: Write must return without
	// blocking or panicking.
	b.Write(context.Background(), map[uint64]model.Value{1: 1.0})
}

func (s *BridgeTestSuite) TestDisconnectAllOnEmptyBridgeIsSafe() {
	b := NewBridge()
	b.DisconnectAll()
	s.Empty(b.Read())
}

func (s *BridgeTestSuite) TestToVariantValueInfersType() {
	s.Equal(true, toVariantValue(true))
	s.Equal(int64(7), toVariantValue(int(7)))
	s.Equal(int64(7), toVariantValue(int32(7)))
	s.Equal(int64(7), toVariantValue(int64(7)))
	s.Equal(3.5, toVariantValue(float32(3.5)))
	s.Equal(2.25, toVariantValue(2.25))
	s.Equal("hello", toVariantValue("hello"))
}
