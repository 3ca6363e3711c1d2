package serde

import (
	"errors"
	"testing"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

type orderPlaced struct {
	OrderID string `json:"orderId"`
}

func TestJSONSerializerRoundTrip(t *testing.T) {
	// Arrange
	ser := NewJSONSerializer[orderPlaced]("order.placed")
	headers := valueobject.NewOrderedHeaders()

	// Act
	data, err := ser.Serialize(&headers, orderPlaced{OrderID: "o-1"})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := ser.Deserialize(headers, data)

	// Assert
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if out.OrderID != "o-1" {
		t.Fatalf("expected o-1, got %q", out.OrderID)
	}
	if tag, _ := headers.Get("$type"); tag != "order.placed" {
		t.Fatalf("expected $type header set, got %q", tag)
	}
}

func TestJSONSerializerDeserializeUnknownType(t *testing.T) {
	// Arrange
	ser := NewJSONSerializer[orderPlaced]("order.placed")
	headers := valueobject.NewOrderedHeaders()
	headers.Set("$type", "order.cancelled")

	// Act
	_, err := ser.Deserialize(headers, []byte(`{}`))

	// Assert
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

type shipmentEvent interface {
	TypeTag() string
}

type shipmentCreated struct {
	ShipmentID string `json:"shipmentId"`
}

func (shipmentCreated) TypeTag() string { return "shipment.created" }

type shipmentCancelled struct {
	ShipmentID string `json:"shipmentId"`
}

func (shipmentCancelled) TypeTag() string { return "shipment.cancelled" }

func TestJSONSerializerPolymorphicVariants(t *testing.T) {
	// Arrange
	ser := NewJSONSerializer[shipmentEvent]("shipment.event")
	ser.RegisterVariant("shipment.created", func() shipmentEvent { return &shipmentCreated{} })
	ser.RegisterVariant("shipment.cancelled", func() shipmentEvent { return &shipmentCancelled{} })
	headers := valueobject.NewOrderedHeaders()

	// Act
	data, err := ser.Serialize(&headers, shipmentCreated{ShipmentID: "s-1"})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	out, err := ser.Deserialize(headers, data)

	// Assert
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	created, ok := out.(*shipmentCreated)
	if !ok {
		t.Fatalf("expected *shipmentCreated, got %T", out)
	}
	if created.ShipmentID != "s-1" {
		t.Fatalf("expected s-1, got %q", created.ShipmentID)
	}
	if rt, _ := headers.Get("$runtimeType"); rt != "shipment.created" {
		t.Fatalf("expected $runtimeType header set, got %q", rt)
	}
}
