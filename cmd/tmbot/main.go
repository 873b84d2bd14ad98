// tmbot runs the TaskMate chat bot and its notification worker.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
