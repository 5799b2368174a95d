// Package main implements the entry point for the TaskVault API server,
// a multi-tenant task management backend with JWT authentication.
package main

import (
	"context"
	"log"
	"os"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}

// run wires the application and serves until shutdown, releasing resources
// before returning so main can exit cleanly.
func run(ctx context.Context) error {
	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	return app.startHTTPServer(ctx, app.setupRouter())
}
