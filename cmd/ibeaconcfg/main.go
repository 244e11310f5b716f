// Command ibeaconcfg generates and verifies the iBeacon advertising data
// block an intercom peripheral broadcasts before a central connects.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/barnettlynn/doorlink/pkg/ibeacon"
)

func main() {
	var (
		proximityUUID = flag.String("uuid", "", "proximity UUID, e.g. E2C56DB5-DFFB-48D2-B060-D0F5A71096E0 (required)")
		major         = flag.Uint("major", 1, "major value")
		minor         = flag.Uint("minor", 1, "minor value")
		txPower       = flag.Int("tx-power", -59, "calibrated RSSI at 1 meter")
		decode        = flag.String("decode", "", "hex-encoded manufacturer data block to decode instead of generating one")
		verbose       = flag.Bool("v", false, "enable debug logging")
		logFormat     = flag.String("log-format", "text", "log format: text or json")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	if *decode != "" {
		raw, err := hex.DecodeString(*decode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding hex: %v\n", err)
			os.Exit(1)
		}
		block, err := ibeacon.Decode(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding iBeacon block: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("UUID:     %s\n", block.ProximityUUID)
		fmt.Printf("Major:    %d\n", block.Major)
		fmt.Printf("Minor:    %d\n", block.Minor)
		fmt.Printf("TxPower:  %d\n", block.TxPower)
		return
	}

	if *proximityUUID == "" {
		fmt.Fprintf(os.Stderr, "Error: -uuid is required\n")
		flag.Usage()
		os.Exit(1)
	}
	parsedUUID, err := uuid.Parse(*proximityUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -uuid: %v\n", err)
		os.Exit(1)
	}
	if *major > 0xFFFF || *minor > 0xFFFF {
		fmt.Fprintf(os.Stderr, "Error: major/minor must each fit in 16 bits\n")
		os.Exit(1)
	}

	slog.Debug("encoding iBeacon block", "uuid", parsedUUID, "major", *major, "minor", *minor)
	block := ibeacon.DataBlock{
		ProximityUUID: parsedUUID,
		Major:         uint16(*major),
		Minor:         uint16(*minor),
		TxPower:       int8(*txPower),
	}
	raw := ibeacon.Encode(block)

	fmt.Printf("UUID:     %s\n", parsedUUID)
	fmt.Printf("Major:    %d\n", block.Major)
	fmt.Printf("Minor:    %d\n", block.Minor)
	fmt.Printf("TxPower:  %d\n", block.TxPower)
	fmt.Printf("Data:     %s\n", hex.EncodeToString(raw))

	decoded, err := ibeacon.Decode(raw)
	if err != nil || decoded.ProximityUUID != parsedUUID {
		fmt.Fprintf(os.Stderr, "Error: self-verification of generated block failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Verify:   OK")
}
