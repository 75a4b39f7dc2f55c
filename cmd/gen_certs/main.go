// Command gen_certs writes a throwaway dev CA, server, and client
// certificate chain for the PPP control channel's mTLS transport.
// Adapted from the teacher's tools/gen_certs.go: same
// CA -> server -> client chain-building shape, retargeted at the control
// plane's certs directory instead of a PTY-shell client's.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

func main() {
	dir := "certs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Printf("failed to create %s: %v\n", dir, err)
		os.Exit(1)
	}

	caKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	randOrg := make([]byte, 8)
	rand.Read(randOrg)
	orgStr := fmt.Sprintf("pppd-CA-%X", randOrg)
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(2025),
		Subject:               pkix.Name{Organization: []string{orgStr}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	caCertDER, _ := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	writePem(dir+"/ca.crt", "CERTIFICATE", caCertDER)
	writePem(dir+"/ca.key", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(caKey))

	serverKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	randCNServ := make([]byte, 8)
	rand.Read(randCNServ)
	serverIP := "127.0.0.1"
	if len(os.Args) > 2 {
		serverIP = os.Args[2]
	}
	serverTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2026),
		Subject:      pkix.Name{CommonName: fmt.Sprintf("pppd-%X", randCNServ)},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(5, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP(serverIP)},
	}
	serverCertDER, _ := x509.CreateCertificate(rand.Reader, serverTemplate, caTemplate, &serverKey.PublicKey, caKey)
	writePem(dir+"/server.crt", "CERTIFICATE", serverCertDER)
	writePem(dir+"/server.key", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(serverKey))

	clientKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	randCNCli := make([]byte, 8)
	rand.Read(randCNCli)
	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2027),
		Subject:      pkix.Name{CommonName: fmt.Sprintf("pppctl-%X", randCNCli)},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(5, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientCertDER, _ := x509.CreateCertificate(rand.Reader, clientTemplate, caTemplate, &clientKey.PublicKey, caKey)
	writePem(dir+"/client.crt", "CERTIFICATE", clientCertDER)
	writePem(dir+"/client.key", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(clientKey))

	fmt.Printf("certificates written to %s\n", dir)
}

func writePem(path, typ string, der []byte) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("failed to write %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	pem.Encode(f, &pem.Block{Type: typ, Bytes: der})
}
