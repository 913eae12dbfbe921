// Command whats-overhead shows the aircraft nearest to, or most directly
// above, the observer. It runs as a terminal UI, a one-shot lookup or an
// HTTP API server.
package main

func main() {
	Execute()
}
