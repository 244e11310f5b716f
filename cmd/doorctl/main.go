// Command doorctl is the backend-facing admin CLI for the door-unlock
// system: revoking credentials and inspecting a door's configured aliases.
package main

import (
	"fmt"
	"os"

	"github.com/barnettlynn/doorlink/cmd/doorctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
