// Command mntn is the CLI entry point for the sandbox engine: fire a
// function, validate a module's export/import surface, or inspect a saved
// forensic dump.
package main

func main() {
	Execute()
}
