// Package ami resolves a caller's phone number from a PBX call UUID via the
// Asterisk Manager Interface's plain-text "Getvar" action (§4.9, §6). No
// repository in the reference corpus ships an AMI client, so this is a
// minimal hand-rolled implementation over net.Conn/bufio (see DESIGN.md):
// one action per connection, login then Getvar then logoff, matching the
// simplest possible reading of the line-oriented AMI wire protocol.
package ami

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// DialTimeout bounds the TCP connect plus the full login/Getvar/logoff
// exchange (§6: "timeouts... treated as unknown caller").
const DialTimeout = 3 * time.Second

// Client dials a fresh AMI connection per lookup rather than holding one
// open: call volume is low enough that connection reuse isn't worth the
// added state (reconnect-on-drop, concurrent action interleaving).
type Client struct {
	addr     string
	username string
	secret   string
}

// New builds a Client against host:port.
func New(host, port, username, secret string) *Client {
	return &Client{addr: net.JoinHostPort(host, port), username: username, secret: secret}
}

// CallerNumber resolves CALLER_<uniqueID>, the channel variable the dialplan
// stashes the caller's number under before bridging to AudioSocket (§6). A
// dial failure, login failure, or missing variable all yield ("", err) or
// ("", nil) respectively — the caller (callsession) treats both as unknown.
func (c *Client) CallerNumber(ctx context.Context, uniqueID string) (string, error) {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", fmt.Errorf("ami: dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(DialTimeout))

	r := bufio.NewReader(conn)

	// Discard the banner line AMI sends immediately after connect.
	if _, err := r.ReadString('\n'); err != nil {
		return "", fmt.Errorf("ami: banner: %w", err)
	}

	if err := writeAction(conn, map[string]string{
		"Action":   "Login",
		"Username": c.username,
		"Secret":   c.secret,
	}); err != nil {
		return "", err
	}
	loginResp, err := readBlock(r)
	if err != nil {
		return "", fmt.Errorf("ami: login read: %w", err)
	}
	if loginResp["Response"] != "Success" {
		return "", fmt.Errorf("ami: login failed: %s", loginResp["Message"])
	}

	if err := writeAction(conn, map[string]string{
		"Action":   "Getvar",
		"Variable": "CALLER_" + uniqueID,
	}); err != nil {
		return "", err
	}
	varResp, err := readBlock(r)
	if err != nil {
		return "", fmt.Errorf("ami: getvar read: %w", err)
	}

	_ = writeAction(conn, map[string]string{"Action": "Logoff"})

	if varResp["Response"] != "Success" {
		return "", nil // variable missing: unknown caller, not an error
	}
	return strings.TrimSpace(varResp["Value"]), nil
}

func writeAction(w net.Conn, fields map[string]string) error {
	var b strings.Builder
	for k, v := range fields {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	b.WriteString("\r\n")
	_, err := w.Write([]byte(b.String()))
	return err
}

// readBlock reads one CRLF-terminated key/value block up to the blank line
// that ends an AMI response.
func readBlock(r *bufio.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return fields, nil
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
}
