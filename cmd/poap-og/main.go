// @title poap-og API
// @version 1.0
// @description Open Graph preview cards for POAP collector addresses
// @host localhost:3000
// @BasePath /api
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"poap-og-server/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [BOOT] starting poap-og...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "poap-og failed: %v\n", err)
		os.Exit(1)
	}
}
