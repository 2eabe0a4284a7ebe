// @title The Skin Lab API
// @version 1.0
// @description Streaming skin analysis for The Skin Lab.
// @BasePath /api
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dfeirstein/the-skin-lab/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search the working directory)")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [BOOT] starting skinlab-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{ConfigPath: *configPath}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "skinlab-server failed: %v\n", err)
		os.Exit(1)
	}
}
