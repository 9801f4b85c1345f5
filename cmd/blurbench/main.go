// Command blurbench compares the compute blur path with a CPU reference
// filter over a matrix of image sizes and radii.
//
// Usage:
//
//	blurbench --sizes 500x500,2000x2000 --radii 1,10,25
//	blurbench --matrix matrix.yaml --backend software --reference bild
//
// Defaults for --backend and --reference are read from GBLUR_BACKEND and
// GBLUR_REFERENCE, which may also be set in a .env file.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	// Registers the GPU backend; the software backend is always available.
	_ "github.com/gogpu/gblur/backend/wgpu"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "blurbench:", err)
		os.Exit(1)
	}
}
