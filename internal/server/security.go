package server

import (
	"crypto/tls"
	"fmt"
	"net"
)

// TLSListener opens TLS listeners with a certificate loaded once at construction.
type TLSListener struct {
	config *tls.Config
}

// NewTLSListener loads the key pair and returns a listener factory that
// only accepts TLS 1.2 or later.
func NewTLSListener(certFileName, privateKeyFileName string) (*TLSListener, error) {
	cert, err := tls.LoadX509KeyPair(certFileName, privateKeyFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &TLSListener{
		config: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	ln, err := tls.Listen(protocol, addr, l.config)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// PlainListener opens unencrypted listeners.
type PlainListener struct{}

func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	ln, err := net.Listen(protocol, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
