package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shandysiswandi/txmq/internal/app"
	"github.com/shandysiswandi/txmq/internal/examples/order"
)

func main() {
	application := app.New() // Initialize the application

	orderWiring, err := order.Register(application)
	if err != nil {
		slog.Error("failed to register order.placed topic", "error", err)
		os.Exit(1)
	}
	orderWiring.Start(context.Background(), func(placed order.Placed) error {
		slog.Info("order placed", "order_id", placed.OrderID, "customer_id", placed.CustomerID)
		return nil
	})

	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	orderWiring.Stop()    // Drain the consumer Runtime before closing shared resources
	application.Stop(ctx) // Stop the application gracefully
}
