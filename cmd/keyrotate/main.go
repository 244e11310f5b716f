// Command keyrotate manages the DiversifiedCbc variant's master key: it can
// mint a fresh random master, and it can show the per-device diversified key
// derived from a master for a given device UID so an operator can verify a
// device was provisioned against the key they expect.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/barnettlynn/doorlink/pkg/doorproto"
)

func main() {
	masterKeyFile := flag.String("master-key-file", "", "hex-encoded 16-byte master key file (required)")
	rotate := flag.Bool("rotate", false, "generate a new random master key and write it to -master-key-file")
	deriveUID := flag.String("derive", "", "hex device UID to derive and print the diversified key for")
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
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

	if strings.TrimSpace(*masterKeyFile) == "" {
		log.Fatal("-master-key-file is required")
	}

	if *rotate {
		if err := rotateMaster(*masterKeyFile); err != nil {
			log.Fatalf("rotate master key: %v", err)
		}
		return
	}

	master, err := loadHexFile(*masterKeyFile)
	if err != nil {
		log.Fatalf("load master key: %v", err)
	}
	var masterArr [16]byte
	if len(master) != 16 {
		log.Fatalf("master key must be 16 bytes, got %d", len(master))
	}
	copy(masterArr[:], master)

	if strings.TrimSpace(*deriveUID) == "" {
		log.Fatal("one of -rotate or -derive is required")
	}
	uid, err := hex.DecodeString(strings.TrimSpace(*deriveUID))
	if err != nil {
		log.Fatalf("parse -derive UID: %v", err)
	}
	dk, err := doorproto.DiversifyDeviceKey(masterArr, uid)
	if err != nil {
		log.Fatalf("derive device key: %v", err)
	}
	fmt.Printf("device key for UID %s: %s\n", strings.ToLower(*deriveUID), hex.EncodeToString(dk[:]))
}

func rotateMaster(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists and will be overwritten. Every device diversified against the\n", path)
		fmt.Println("old master will stop authenticating until re-provisioned. Continue? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		confirm, readErr := reader.ReadString('\n')
		if readErr != nil {
			return fmt.Errorf("read confirmation: %w", readErr)
		}
		confirm = strings.ToLower(strings.TrimSpace(confirm))
		if confirm != "y" && confirm != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var master [16]byte
	if _, err := rand.Read(master[:]); err != nil {
		return fmt.Errorf("generate master key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(master[:])+"\n"), 0o600); err != nil {
		return fmt.Errorf("write master key: %w", err)
	}
	fmt.Printf("New master key written to %s\n", path)
	return nil
}

func loadHexFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimSpace(string(content)))
}
