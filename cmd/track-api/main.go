package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

func main() {
	a := mustBootstrapTrackAPI()
	defer a.Close()

	if err := a.Run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("track-api stopped", "error", err.Error())
		a.Close()
		os.Exit(1)
	}
}
