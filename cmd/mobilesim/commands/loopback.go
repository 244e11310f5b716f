package commands

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"

	"github.com/barnettlynn/doorlink/pkg/doorcentral"
	"github.com/barnettlynn/doorlink/pkg/doorproto"
	"github.com/barnettlynn/doorlink/pkg/doorproto/simactuator"
)

// loopbackAdapter is an in-process doorcentral.Adapter wired directly to a
// live doorproto.PeripheralEngine, letting mobilesim exercise the full wire
// protocol without a physical BLE radio or a second running process.
type loopbackAdapter struct {
	doorID      string
	engine      *doorproto.PeripheralEngine
	intercomPub *ecdh.PublicKey
	signerPub   ed25519.PublicKey
	signerPriv  ed25519.PrivateKey
}

func newLoopbackAdapter() *loopbackAdapter {
	return newLoopbackAdapterFor("front-door")
}

func newLoopbackAdapterFor(doorID string) *loopbackAdapter {
	intercomPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	signerPub, signerPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{
		Variant:  doorproto.EcdhGcm{PrivI: intercomPriv, PubI: intercomPriv.PublicKey(), SignerPub: signerPub},
		Actuator: simactuator.New(),
		CredentialVerifier: &doorproto.CredentialVerifier{
			SignerPub:   signerPub,
			DoorAliases: map[string]bool{doorID: true},
			Now:         time.Now,
		},
	})

	return &loopbackAdapter{doorID: doorID, engine: engine, intercomPub: intercomPriv.PublicKey(), signerPub: signerPub, signerPriv: signerPriv}
}

// mintCredential signs a fresh CredentialA binding devicePriv's public key to
// this adapter's door, standing in for the backend's issuance step so the
// simulator can exercise the full protocol without a network dependency.
func (a *loopbackAdapter) mintCredential(devicePriv *ecdh.PrivateKey, ttl time.Duration) []byte {
	var pub [65]byte
	copy(pub[:], devicePriv.PublicKey().Bytes())
	cred := doorproto.CredentialA{
		DevicePubKey: pub,
		DoorID:       a.doorID,
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(ttl),
	}
	sig := ed25519.Sign(a.signerPriv, cred.CanonicalBytes())
	copy(cred.Signature[:], sig)
	return doorproto.EncodeCredentialA(cred)
}

func (a *loopbackAdapter) Enable() error { return nil }

func (a *loopbackAdapter) Scan(ctx context.Context, serviceUUID string) ([]doorcentral.Device, error) {
	return []doorcentral.Device{{Name: a.doorID, MAC: "loopback", RSSI: -30}}, nil
}

func (a *loopbackAdapter) Connect(ctx context.Context, mac string) (doorcentral.Connection, error) {
	session, err := a.engine.OnConnect(mac, 247)
	if err != nil {
		return nil, err
	}
	return &loopbackConnection{adapter: a, session: session}, nil
}

type loopbackConnection struct {
	adapter *loopbackAdapter
	session *doorproto.Session
	respCb  func([]byte)
}

func (c *loopbackConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (doorcentral.Characteristic, error) {
	switch charUUID {
	case doorcentral.ChallengeCharUUID:
		return &loopbackCharacteristic{readFn: func() ([]byte, error) {
			nonce, err := c.adapter.engine.OnReadChallenge(c.session)
			if err != nil {
				return nil, err
			}
			return nonce[:], nil
		}}, nil
	case doorcentral.AuthCharUUID:
		return &loopbackCharacteristic{writeFn: func(raw []byte) error {
			out, authErr := c.adapter.engine.OnWriteAuth(context.Background(), c.session, raw)
			if out != nil && c.respCb != nil {
				c.respCb(out)
			}
			return authErr
		}}, nil
	case doorcentral.ResponseCharUUID:
		return &loopbackCharacteristic{subscribeFn: func(cb func([]byte)) error {
			c.respCb = cb
			return nil
		}}, nil
	default:
		return nil, errors.New("unknown characteristic")
	}
}

func (c *loopbackConnection) Disconnect() error {
	c.adapter.engine.OnDisconnect(c.session.PeerHandle)
	return nil
}

func (c *loopbackConnection) OnDisconnect(func()) {}

type loopbackCharacteristic struct {
	writeFn     func([]byte) error
	readFn      func() ([]byte, error)
	subscribeFn func(func([]byte)) error
}

func (c *loopbackCharacteristic) Write(data []byte) error {
	if c.writeFn == nil {
		return errors.New("not writable")
	}
	return c.writeFn(data)
}

func (c *loopbackCharacteristic) Read() ([]byte, error) {
	if c.readFn == nil {
		return nil, errors.New("not readable")
	}
	return c.readFn()
}

func (c *loopbackCharacteristic) Subscribe(cb func([]byte)) error {
	if c.subscribeFn == nil {
		return errors.New("not subscribable")
	}
	return c.subscribeFn(cb)
}
