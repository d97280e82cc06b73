package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"salesdash/internal/app"
)

func main() {
	application, err := app.NewApplication(context.Background())
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "salesdash: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
