package main

import (
	"log/slog"
	"os"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("checklists.exit", "err", err)
		os.Exit(1)
	}
}
