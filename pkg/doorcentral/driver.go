package doorcentral

import (
	"context"
	"crypto/ecdh"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/barnettlynn/doorlink/pkg/doorproto"
)

// State is the mobile central driver's position in the unlock flow.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateDiscovering
	StateSubscribing
	StateAuthenticating
	StateSendingCredential
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateConnecting:
		return "Connecting"
	case StateDiscovering:
		return "Discovering"
	case StateSubscribing:
		return "Subscribing"
	case StateAuthenticating:
		return "Authenticating"
	case StateSendingCredential:
		return "SendingCredential"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Stage timeouts the driver enforces independently of the peripheral's own
// challenge lifetime.
const (
	ScanTimeout           = 5 * time.Second
	ConnectTimeout        = 5 * time.Second
	DiscoveryTimeout      = 5 * time.Second
	AuthResponseTimeout   = 3 * time.Second
	CredentialRespTimeout = 3 * time.Second
)

// VariantConfig is whatever credential material and key context a run needs
// for the variant it speaks. Exactly one of the EcdhGcm/DiversifiedCbc/
// SymmetricDemo fields is populated.
type VariantConfig struct {
	EcdhGcm        *EcdhGcmParams
	DiversifiedCbc *DiversifiedCbcParams
	SymmetricDemo  *SymmetricDemoParams
}

type EcdhGcmParams struct {
	DevicePriv  *ecdh.PrivateKey // the device's own persistent P-256 key
	IntercomPub *ecdh.PublicKey
	Credential  []byte // serialized CredentialA, bound to DevicePriv's public key
}

type DiversifiedCbcParams struct {
	DeviceUID []byte
	Key       [16]byte // the device's own diversified key
	Cred      doorproto.CredentialB
}

type SymmetricDemoParams struct {
	Master     [16]byte
	DeviceID   []byte
	Credential []byte
}

// Result is the terminal outcome of one Run.
type Result struct {
	Status    doorproto.StatusCode
	DoorState doorproto.DoorState
}

// Driver runs the mobile central side of one unlock attempt against one
// Adapter. It is not reused across attempts; construct a fresh Driver per
// Run.
type Driver struct {
	adapter Adapter
	variant VariantConfig

	mu    sync.Mutex
	state State
}

func New(adapter Adapter, variant VariantConfig) *Driver {
	return &Driver{adapter: adapter, variant: variant, state: StateIdle}
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Run drives one full attempt: enable the adapter, scan for the door by
// name, connect, discover the three characteristics, read the Challenge
// nonce, run the variant handshake, and return the final status.
func (d *Driver) Run(ctx context.Context, targetName string) (Result, error) {
	if err := d.adapter.Enable(); err != nil {
		d.setState(StateFailed)
		return Result{}, fmt.Errorf("enable adapter: %w", err)
	}

	d.setState(StateScanning)
	scanCtx, cancel := context.WithTimeout(ctx, ScanTimeout)
	devices, err := d.adapter.Scan(scanCtx, ServiceUUID)
	cancel()
	if err != nil {
		d.setState(StateFailed)
		return Result{}, fmt.Errorf("scan: %w", err)
	}
	dev, err := pickDevice(devices, targetName)
	if err != nil {
		d.setState(StateFailed)
		return Result{}, err
	}

	d.setState(StateConnecting)
	connCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	conn, err := d.adapter.Connect(connCtx, dev.MAC)
	cancel()
	if err != nil {
		d.setState(StateFailed)
		return Result{}, fmt.Errorf("connect: %w", err)
	}
	defer conn.Disconnect()

	d.setState(StateDiscovering)
	discoveryDone := make(chan error, 1)
	var challengeChar, authChar, respChar Characteristic
	go func() {
		var derr error
		challengeChar, derr = conn.DiscoverCharacteristic(ServiceUUID, ChallengeCharUUID)
		if derr != nil {
			discoveryDone <- derr
			return
		}
		authChar, derr = conn.DiscoverCharacteristic(ServiceUUID, AuthCharUUID)
		if derr != nil {
			discoveryDone <- derr
			return
		}
		respChar, derr = conn.DiscoverCharacteristic(ServiceUUID, ResponseCharUUID)
		discoveryDone <- derr
	}()
	select {
	case err := <-discoveryDone:
		if err != nil {
			d.setState(StateFailed)
			return Result{}, fmt.Errorf("discover characteristics: %w", err)
		}
	case <-time.After(DiscoveryTimeout):
		d.setState(StateFailed)
		return Result{}, errors.New("discovery timed out")
	}

	d.setState(StateSubscribing)
	nonce, err := d.subscribeChallenge(challengeChar)
	if err != nil {
		d.setState(StateFailed)
		return Result{}, err
	}

	d.setState(StateAuthenticating)
	respCh := make(chan []byte, 1)
	if err := respChar.Subscribe(func(b []byte) {
		select {
		case respCh <- b:
		default:
		}
	}); err != nil {
		d.setState(StateFailed)
		return Result{}, fmt.Errorf("subscribe response: %w", err)
	}

	result, err := d.runHandshake(ctx, nonce, authChar, respCh)
	if err != nil {
		d.setState(StateFailed)
		return Result{}, err
	}
	d.setState(StateComplete)
	return result, nil
}

func pickDevice(devices []Device, targetName string) (Device, error) {
	for _, dev := range devices {
		if dev.Name == targetName {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("device %q not found in scan results", targetName)
}

func (d *Driver) subscribeChallenge(challengeChar Characteristic) ([16]byte, error) {
	var nonce [16]byte
	raw, err := challengeChar.Read()
	if err != nil {
		return nonce, fmt.Errorf("read challenge: %w", err)
	}
	if len(raw) != 16 {
		return nonce, fmt.Errorf("challenge nonce: expected 16 bytes, got %d", len(raw))
	}
	copy(nonce[:], raw)
	return nonce, nil
}

func (d *Driver) runHandshake(ctx context.Context, nonce [16]byte, authChar Characteristic, respCh chan []byte) (Result, error) {
	switch {
	case d.variant.EcdhGcm != nil:
		return d.runEcdhGcm(nonce, authChar, respCh)
	case d.variant.DiversifiedCbc != nil:
		return d.runDiversifiedCbc(authChar, respCh)
	case d.variant.SymmetricDemo != nil:
		return d.runSymmetricDemo(nonce, authChar, respCh)
	default:
		return Result{}, errors.New("no variant configured")
	}
}

func (d *Driver) runEcdhGcm(nonce [16]byte, authChar Characteristic, respCh chan []byte) (Result, error) {
	p := d.variant.EcdhGcm
	frame, keys, err := doorproto.MobileAuthA(p.DevicePriv, p.IntercomPub, nonce, p.Credential)
	if err != nil {
		return Result{}, fmt.Errorf("build auth frame: %w", err)
	}
	var raw []byte
	if werr := authChar.Write(frame); werr != nil {
		// A rejected write may still have delivered a status frame on the
		// Response characteristic; that status is reported when present.
		select {
		case raw = <-respCh:
		default:
			return Result{}, fmt.Errorf("write auth frame: %w", werr)
		}
	} else if raw, err = waitResponse(respCh, AuthResponseTimeout); err != nil {
		return Result{}, err
	}
	body, err := doorproto.MobileDecryptResponseA(keys, raw)
	if err != nil {
		return Result{}, fmt.Errorf("decrypt response: %w", err)
	}
	return Result{Status: body.Status, DoorState: body.DoorState}, nil
}

func (d *Driver) runDiversifiedCbc(authChar Characteristic, respCh chan []byte) (Result, error) {
	p := d.variant.DiversifiedCbc

	const firstSeq = 0x00
	first, err := doorproto.MobileAuthFirstB(p.DeviceUID, firstSeq)
	if err != nil {
		return Result{}, fmt.Errorf("build auth-first frame: %w", err)
	}
	if err := authChar.Write(first); err != nil {
		return Result{}, fmt.Errorf("write auth-first: %w", err)
	}
	raw, err := waitResponse(respCh, AuthResponseTimeout)
	if err != nil {
		return Result{}, err
	}
	rndA, rndB, second, err := doorproto.MobileHandleAuthFirstRespB(p.Key, p.DeviceUID, firstSeq, raw)
	if err != nil {
		return Result{}, fmt.Errorf("auth-first response: %w", err)
	}
	secondSeq := doorproto.NextSeq(firstSeq)

	if err := authChar.Write(second); err != nil {
		return Result{}, fmt.Errorf("write auth-second: %w", err)
	}
	raw, err = waitResponse(respCh, AuthResponseTimeout)
	if err != nil {
		return Result{}, err
	}
	sk, err := doorproto.MobileHandleAuthSecondRespB(p.Key, rndA, rndB, raw)
	if err != nil {
		return Result{}, fmt.Errorf("auth-second response: %w", err)
	}

	d.setState(StateSendingCredential)
	credFrame, err := doorproto.MobileCredentialB(sk, doorproto.NextSeq(secondSeq), p.Cred, p.DeviceUID)
	if err != nil {
		return Result{}, fmt.Errorf("build credential frame: %w", err)
	}
	if err := authChar.Write(credFrame); err != nil {
		return Result{}, fmt.Errorf("write credential: %w", err)
	}
	raw, err = waitResponse(respCh, CredentialRespTimeout)
	if err != nil {
		return Result{}, err
	}
	body, err := doorproto.MobileDecodeCredentialRespB(sk, raw, p.DeviceUID)
	if err != nil {
		return Result{}, fmt.Errorf("decode credential response: %w", err)
	}
	return Result{Status: body.Status, DoorState: body.DoorState}, nil
}

func (d *Driver) runSymmetricDemo(nonce [16]byte, authChar Characteristic, respCh chan []byte) (Result, error) {
	p := d.variant.SymmetricDemo
	frame, err := doorproto.MobileAuthSym(p.Master, p.DeviceID, nonce, p.Credential)
	if err != nil {
		return Result{}, fmt.Errorf("build auth frame: %w", err)
	}
	if err := authChar.Write(frame); err != nil {
		return Result{}, fmt.Errorf("write auth frame: %w", err)
	}
	raw, err := waitResponse(respCh, AuthResponseTimeout)
	if err != nil {
		return Result{}, err
	}
	body, err := doorproto.MobileDecodeSymResponse(p.Master, p.DeviceID, raw)
	if err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	return Result{Status: body.Status, DoorState: body.DoorState}, nil
}

func waitResponse(ch chan []byte, timeout time.Duration) ([]byte, error) {
	select {
	case b := <-ch:
		return b, nil
	case <-time.After(timeout):
		return nil, errors.New("timed out waiting for response")
	}
}
