// Command submit uploads a batch of resumes to a resumerank server and prints the ranking.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
