// Command carve evaluates CSG designs and applies Boolean operations to
// triangle meshes.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
