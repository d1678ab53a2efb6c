// Command sessionstate runs the session record reconciler as a standalone
// service, migrates its schema or replays recorded lifecycle events.
package main

func main() {
	Execute()
}
