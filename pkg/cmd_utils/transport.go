// Copyright 2025 CineVision
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd_utils

import (
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

const (
	dialTimeout         = 30 * time.Second
	keepAlive           = 30 * time.Second
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	maxIdleConnsPerHost = 16
	http2ReadIdle       = 30 * time.Second
	http2PingTimeout    = 15 * time.Second
)

// NewTransport returns the transport shared by coordinator calls and part uploads.
// timeout bounds how long to wait for response headers; zero means no limit.
func NewTransport(timeout time.Duration) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
	}

	// Dead h2 connections are detected by pings instead of hanging a part upload forever.
	h2, err := http2.ConfigureTransports(transport)
	if err != nil {
		log.Warnf("Unable to configure http2 transport, falling back to http/1.1: %v", err)
		return transport
	}
	h2.ReadIdleTimeout = http2ReadIdle
	h2.PingTimeout = http2PingTimeout

	return transport
}
