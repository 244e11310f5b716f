// Command mobilesim drives the mobile central side of the door-unlock
// protocol for demonstration and integration testing, without requiring a
// physical BLE radio: its simulated adapter talks directly in-process to a
// pkg/doorproto.PeripheralEngine over the same Connection/Characteristic
// interfaces a production platform BLE binding would satisfy.
package main

import (
	"fmt"
	"os"

	"github.com/barnettlynn/doorlink/cmd/mobilesim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
