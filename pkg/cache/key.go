// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// KeyGenerator generates cache keys.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a new key generator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		prefix: "page",
	}
}

// Normalize turns a URL into a canonical cache key: scheme and host are
// lower-cased, default ports and fragments dropped, query parameters sorted
// and an empty path replaced by "/". Keys for one origin therefore share the
// prefix "scheme://host/", which BoundedCache.RemovePrefix relies on.
func (kg *KeyGenerator) Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q: scheme and host are required", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		host = net.JoinHostPort(host, port)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	key := scheme + "://" + host + path
	if u.RawQuery != "" {
		// Encode sorts by key.
		key += "?" + u.Query().Encode()
	}
	return key, nil
}

// Origin returns the "scheme://host/" prefix of a normalized key.
func (kg *KeyGenerator) Origin(rawURL string) (string, error) {
	key, err := kg.Normalize(rawURL)
	if err != nil {
		return "", err
	}
	rest := key[strings.Index(key, "://")+3:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return key[:strings.Index(key, "://")+3] + rest + "/", nil
}

// Generate generates an opaque key from inputs.
func (kg *KeyGenerator) Generate(inputs ...string) string {
	h := sha256.New()
	for _, input := range inputs {
		h.Write([]byte(input))
		h.Write([]byte{0})
	}
	return kg.prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
