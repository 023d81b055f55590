// Package certs implements the load-or-generate self-signed certificate
// policy the front-end uses to terminate optional TLS for LAN access.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mcphost/bridge/pkg/bridgeerr"
	"github.com/mcphost/bridge/pkg/logger"
)

const (
	certFileName = "cert.pem"
	keyFileName  = "key.pem"
	validity     = 5 * 365 * 24 * time.Hour
	keyBits      = 2048
)

// Manager loads or regenerates the self-signed certificate pair in a
// single directory.
type Manager struct {
	dir string
}

// NewManager constructs a Manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// LoadOrGenerate returns PEM-encoded (cert, key). If an existing pair is
// present and still covers the host's current primary IPv4 address in its
// SANs, it is reused; otherwise a fresh self-signed RSA-2048 certificate is
// generated and written. On any failure, both return values are empty
// strings and the caller refuses to enable remote access.
func (m *Manager) LoadOrGenerate() (certPEM, keyPEM string, err error) {
	primaryIP := primaryIPv4()

	certPath := filepath.Join(m.dir, certFileName)
	keyPath := filepath.Join(m.dir, keyFileName)

	if existingCert, existingKey, ok := tryLoad(certPath, keyPath, primaryIP); ok {
		return existingCert, existingKey, nil
	}

	certPEM, keyPEM, err = generate(primaryIP)
	if err != nil {
		return "", "", bridgeerr.NewCertificateError("failed to generate self-signed certificate", err)
	}

	if err := write(certPath, keyPath, certPEM, keyPEM); err != nil {
		logger.Warnf("certs: failed to persist generated certificate: %v", err)
	}

	return certPEM, keyPEM, nil
}

func tryLoad(certPath, keyPath string, primaryIP net.IP) (certPEM, keyPEM string, ok bool) {
	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return "", "", false
	}
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return "", "", false
	}

	block, _ := pem.Decode(certBytes)
	if block == nil {
		return "", "", false
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", "", false
	}

	if primaryIP != nil && !containsIP(cert.IPAddresses, primaryIP) {
		return "", "", false
	}
	return string(certBytes), string(keyBytes), true
}

func containsIP(ips []net.IP, target net.IP) bool {
	for _, ip := range ips {
		if ip.Equal(target) {
			return true
		}
	}
	return false
}

func generate(primaryIP net.IP) (certPEM, keyPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return "", "", err
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return "", "", err
	}

	sans := []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}
	if primaryIP != nil {
		sans = append(sans, primaryIP)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "mcphost-bridge"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           sans,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return "", "", err
	}

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return certPEM, keyPEM, nil
}

func write(certPath, keyPath, certPEM, keyPEM string) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(certPath, []byte(certPEM), 0o644); err != nil {
		return err
	}
	mode := os.FileMode(0o600)
	if runtime.GOOS == "windows" {
		mode = 0o666 // owner-only modes are POSIX semantics
	}
	return os.WriteFile(keyPath, []byte(keyPEM), mode)
}

// primaryIPv4 returns the host's primary non-loopback IPv4 address, or nil
// if none can be determined.
func primaryIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4
		}
	}
	return nil
}
